//go:build linux

package twai

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// canRawErrFilter is CAN_RAW_ERR_FILTER from linux/can/raw.h.
const canRawErrFilter = 2

// readerPoll bounds how long the reader goroutine blocks before checking
// for a stop request.
const readerPoll = 50 * time.Millisecond

// SocketCANDriver is a Driver over a Linux SocketCAN interface. A reader
// goroutine, running between Start and Stop, moves frames into a receive
// queue of the configured depth and turns error frames into alerts.
type SocketCANDriver struct {
	iface string
	opts  SocketCANOptions

	mu        sync.Mutex
	fd        int
	installed bool
	started   bool
	state     BusState
	gen       GeneralConfig
	timing    TimingProfile
	filter    FilterConfig
	rx        *msgQueue
	alerts    *alertLatch
	stopCh    chan struct{}
	done      chan struct{}

	txErr    uint32
	rxErr    uint32
	rxMissed uint32
	overrun  uint32
	arbLost  uint32
	busErrs  uint32
	txFailed uint32
}

var _ Driver = (*SocketCANDriver)(nil)

// NewSocketCANDriver returns a driver for the named interface (e.g. "can0").
// Nothing is opened until Install.
func NewSocketCANDriver(iface string, opts SocketCANOptions) (*SocketCANDriver, error) {
	if err := checkIfName(iface); err != nil {
		return nil, err
	}
	return &SocketCANDriver{iface: iface, opts: opts, fd: -1}, nil
}

func (s *SocketCANDriver) Install(g GeneralConfig, t TimingProfile, f FilterConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.installed {
		return ErrInvalidState
	}
	if g.RxQueueLen < 1 {
		return ErrInvalidArg
	}
	if s.opts.ConfigureLink {
		if err := s.configureLink(g, t); err != nil {
			return &Error{C: ErrFail, Op: "install", Err: err}
		}
	}
	fd, err := openCANSocket(s.iface)
	if err != nil {
		return &Error{C: ErrFail, Op: "install", Err: err}
	}
	s.fd = fd
	s.gen, s.timing, s.filter = g, t, f
	s.rx = newMsgQueue(g.RxQueueLen)
	s.alerts = newAlertLatch(g.Alerts)
	s.state = BusStopped
	s.installed = true
	return nil
}

func (s *SocketCANDriver) configureLink(g GeneralConfig, t TimingProfile) error {
	if err := SetInterfaceDown(s.iface); err != nil {
		return RequireRootOrCapNetAdmin(err)
	}
	return ConfigureLinuxCANInterface(s.iface, linkOptions(g, t))
}

// linkOptions maps the install configuration onto `ip link` settings. The
// bit rate is the one the timing profile actually produces.
func linkOptions(g GeneralConfig, t TimingProfile) LinuxCANInterfaceOptions {
	bitrate := uint32(t.NominalBitrate())
	listenOnly := g.Mode == ModeListenOnly
	loopback := g.Mode == ModeLoopback
	restart := uint32(0) // recovery is requested explicitly
	opts := LinuxCANInterfaceOptions{
		Bitrate:    &bitrate,
		RestartMs:  &restart,
		ListenOnly: &listenOnly,
		Loopback:   &loopback,
	}
	if g.TxQueueLen > 0 {
		txq := g.TxQueueLen
		opts.TxQueueLen = &txq
	}
	return opts
}

func openCANSocket(iface string) (int, error) {
	netIf, err := net.InterfaceByName(iface)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return -1, err
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: netIf.Index}); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, canRawErrFilter, canErrMask); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func (s *SocketCANDriver) Uninstall() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.installed || s.started {
		return ErrInvalidState
	}
	err := unix.Close(s.fd)
	s.fd = -1
	s.installed = false
	s.rx = nil
	if err != nil {
		return &Error{C: ErrFail, Op: "uninstall", Err: err}
	}
	return nil
}

func (s *SocketCANDriver) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.installed || s.started {
		return ErrInvalidState
	}
	if s.opts.ConfigureLink {
		if err := SetInterfaceUp(s.iface); err != nil {
			return &Error{C: ErrFail, Op: "start", Err: RequireRootOrCapNetAdmin(err)}
		}
	} else if up, err := IsInterfaceUp(s.iface); err != nil {
		return &Error{C: ErrFail, Op: "start", Err: err}
	} else if !up {
		return &Error{C: ErrInvalidState, Op: "start", Err: fmt.Errorf("interface %s is down", s.iface)}
	}
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.started = true
	s.state = BusRunning
	go s.readLoop(s.fd, s.stopCh, s.done)
	return nil
}

func (s *SocketCANDriver) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrInvalidState
	}
	stopCh, done := s.stopCh, s.done
	s.started = false
	s.state = BusStopped
	s.mu.Unlock()

	close(stopCh)
	<-done
	if s.opts.ConfigureLink {
		if err := SetInterfaceDown(s.iface); err != nil {
			return &Error{C: ErrFail, Op: "stop", Err: RequireRootOrCapNetAdmin(err)}
		}
	}
	return nil
}

func (s *SocketCANDriver) readLoop(fd int, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, frameSize)
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := unix.Poll(pfd, int(readerPoll/time.Millisecond))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return
		}
		if n == 0 || pfd[0].Revents&unix.POLLIN == 0 {
			continue
		}
		rn, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return
		}
		if rn != frameSize {
			continue
		}
		s.handleFrame(buf)
	}
}

func (s *SocketCANDriver) handleFrame(buf []byte) {
	id := binary.LittleEndian.Uint32(buf[0:4])
	if id&canErrFlag != 0 {
		var data [8]byte
		copy(data[:], buf[8:16])
		s.handleErrorFrame(decodeErrorFrame(id&canErrMask, data))
		return
	}
	var m Message
	if err := m.UnmarshalBinary(buf); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == BusOff || !s.filter.Accepts(m) {
		return
	}
	if !s.rx.push(m) {
		s.rxMissed++
		s.alerts.raise(AlertRxQueueFull)
		return
	}
	s.alerts.raise(AlertRxData)
}

func (s *SocketCANDriver) handleErrorFrame(ef errorFrame) {
	s.mu.Lock()
	switch {
	case ef.busOff:
		s.state = BusOff
	case ef.restart:
		s.state = BusRunning
	}
	if ef.counters {
		s.txErr, s.rxErr = ef.txErr, ef.rxErr
	}
	if ef.alerts&AlertRxFIFOOverrun != 0 {
		s.overrun++
	}
	if ef.alerts&AlertArbLost != 0 {
		s.arbLost++
	}
	if ef.alerts&AlertBusError != 0 {
		s.busErrs++
	}
	if ef.alerts&AlertTxFailed != 0 {
		s.txFailed++
	}
	l := s.alerts
	s.mu.Unlock()
	l.raise(ef.alerts)
}

// Transmit writes m, waiting up to timeout for socket buffer space.
func (s *SocketCANDriver) Transmit(m Message, timeout time.Duration) error {
	buf, err := m.MarshalBinary()
	if err != nil {
		return ErrInvalidArg
	}
	s.mu.Lock()
	fd, started, state, mode, l := s.fd, s.started, s.state, s.gen.Mode, s.alerts
	s.mu.Unlock()
	switch {
	case !started || state == BusOff:
		return ErrInvalidState
	case mode == ModeListenOnly:
		return ErrNotSupported
	}

	deadline := time.Now().Add(timeout)
	for {
		n, werr := unix.Write(fd, buf)
		if werr == nil {
			if n != len(buf) {
				return &Error{C: ErrFail, Op: "transmit", Err: errors.New("short write")}
			}
			l.raise(AlertTxSuccess)
			return nil
		}
		if !errors.Is(werr, unix.EAGAIN) && !errors.Is(werr, unix.ENOBUFS) {
			return &Error{C: ErrFail, Op: "transmit", Err: werr}
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return ErrTimeout
		}
		pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		if _, perr := unix.Poll(pfd, int(wait/time.Millisecond)+1); perr != nil && !errors.Is(perr, unix.EINTR) {
			return &Error{C: ErrFail, Op: "transmit", Err: perr}
		}
	}
}

func (s *SocketCANDriver) Receive(timeout time.Duration) (Message, error) {
	s.mu.Lock()
	if !s.installed {
		s.mu.Unlock()
		return Message{}, ErrInvalidState
	}
	q := s.rx
	s.mu.Unlock()
	return q.pop(timeout)
}

func (s *SocketCANDriver) ReadAlerts(timeout time.Duration) (Alert, error) {
	s.mu.Lock()
	if !s.installed {
		s.mu.Unlock()
		return 0, ErrInvalidState
	}
	l := s.alerts
	s.mu.Unlock()
	return l.read(timeout)
}

func (s *SocketCANDriver) ReconfigureAlerts(enable Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.installed {
		return ErrInvalidState
	}
	s.alerts.setEnabled(enable)
	return nil
}

func (s *SocketCANDriver) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.installed {
		return Status{}, ErrInvalidState
	}
	return Status{
		State:          s.state,
		MsgsToRx:       s.rx.len(),
		TxErrorCounter: s.txErr,
		RxErrorCounter: s.rxErr,
		TxFailedCount:  s.txFailed,
		RxMissedCount:  s.rxMissed,
		RxOverrunCount: s.overrun,
		ArbLostCount:   s.arbLost,
		BusErrorCount:  s.busErrs,
	}, nil
}

func (s *SocketCANDriver) ClearReceiveQueue() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.installed {
		return ErrInvalidState
	}
	s.rx.clear()
	return nil
}

// InitiateRecovery asks the kernel to restart the controller. Completion
// is reported by AlertBusRecovered when the restart error frame arrives.
func (s *SocketCANDriver) InitiateRecovery() error {
	s.mu.Lock()
	if s.state != BusOff {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.state = BusRecovering
	s.mu.Unlock()
	if err := RestartLinuxCANInterface(s.iface); err != nil {
		s.mu.Lock()
		s.state = BusOff
		s.mu.Unlock()
		return &Error{C: ErrFail, Op: "initiate recovery", Err: err}
	}
	return nil
}

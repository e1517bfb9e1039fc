package twai

import (
	"sync"
	"time"
)

// LoopbackBus is an in-memory CAN bus for tests and simulations. Every
// endpoint opened from the bus is a LoopbackDriver that behaves like a TWAI
// peripheral: frames transmitted by one started endpoint are received by
// every other started endpoint.
type LoopbackBus struct {
	mu        sync.RWMutex
	closed    bool
	endpoints map[*LoopbackDriver]struct{}
}

// NewLoopbackBus creates a new loopback bus.
func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{endpoints: make(map[*LoopbackDriver]struct{})}
}

// Open creates a new endpoint attached to the bus.
func (b *LoopbackBus) Open() *LoopbackDriver {
	d := &LoopbackDriver{bus: b}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		d.closed = true
		return d
	}
	b.endpoints[d] = struct{}{}
	return d
}

// Close closes the bus and detaches all endpoints.
func (b *LoopbackBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	eps := b.endpoints
	b.endpoints = nil
	b.mu.Unlock()
	for d := range eps {
		d.markClosed()
	}
	return nil
}

// LoopbackDriver is a Driver on a LoopbackBus. Out-of-order lifecycle calls
// fail with ErrInvalidState, as on the hardware: Uninstall requires a
// stopped driver and InitiateRecovery requires bus-off.
type LoopbackDriver struct {
	bus *LoopbackBus

	mu        sync.Mutex
	closed    bool
	installed bool
	started   bool
	busOff    bool
	gen       GeneralConfig
	timing    TimingProfile
	filter    FilterConfig
	rx        *msgQueue
	alerts    *alertLatch

	txCount   uint32
	rxMissed  uint32
	txFailed  uint32
	recovered uint32
}

var _ Driver = (*LoopbackDriver)(nil)

// Install allocates the receive queue and alert latch for g.
func (d *LoopbackDriver) Install(g GeneralConfig, t TimingProfile, f FilterConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.installed {
		return ErrInvalidState
	}
	if g.RxQueueLen < 1 {
		return ErrInvalidArg
	}
	d.gen, d.timing, d.filter = g, t, f
	d.rx = newMsgQueue(g.RxQueueLen)
	d.alerts = newAlertLatch(g.Alerts)
	d.installed = true
	return nil
}

// Uninstall releases the receive queue. The endpoint must be stopped.
func (d *LoopbackDriver) Uninstall() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.installed || d.started {
		return ErrInvalidState
	}
	d.installed = false
	d.rx = nil
	return nil
}

// Start attaches the endpoint to bus traffic and clears bus-off.
func (d *LoopbackDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if !d.installed || d.started {
		return ErrInvalidState
	}
	d.started = true
	d.busOff = false
	return nil
}

// Stop detaches the endpoint from bus traffic.
func (d *LoopbackDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return ErrInvalidState
	}
	d.started = false
	return nil
}

// Transmit delivers m to every other started endpoint immediately; the
// timeout is not used. In ModeLoopback, or when m requests self
// reception, the sender receives the frame too.
func (d *LoopbackDriver) Transmit(m Message, timeout time.Duration) error {
	if err := m.Validate(); err != nil {
		return ErrInvalidArg
	}
	d.mu.Lock()
	switch {
	case d.closed:
		d.mu.Unlock()
		return ErrClosed
	case !d.started || d.busOff:
		d.mu.Unlock()
		return ErrInvalidState
	case d.gen.Mode == ModeListenOnly:
		d.mu.Unlock()
		return ErrNotSupported
	}
	self := d.gen.Mode == ModeLoopback || m.SelfReception
	d.txCount++
	alerts := d.alerts
	d.mu.Unlock()

	// Snapshot endpoints under bus lock to avoid holding while delivering.
	d.bus.mu.RLock()
	targets := make([]*LoopbackDriver, 0, len(d.bus.endpoints))
	for ep := range d.bus.endpoints {
		if ep != d || self {
			targets = append(targets, ep)
		}
	}
	d.bus.mu.RUnlock()

	for _, t := range targets {
		t.deliver(m)
	}
	alerts.raise(AlertTxSuccess | AlertTxIdle)
	return nil
}

// Inject places m in the receive queue as if it arrived from the bus.
func (d *LoopbackDriver) Inject(m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	ok := d.started
	d.mu.Unlock()
	if !ok {
		return ErrInvalidState
	}
	d.deliver(m)
	return nil
}

func (d *LoopbackDriver) deliver(m Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.busOff || !d.filter.Accepts(m) {
		return
	}
	m.SingleShot, m.SelfReception = false, false
	if !d.rx.push(m) {
		d.rxMissed++
		d.alerts.raise(AlertRxQueueFull)
		return
	}
	d.alerts.raise(AlertRxData)
}

// Receive takes the oldest queued message, waiting up to timeout.
func (d *LoopbackDriver) Receive(timeout time.Duration) (Message, error) {
	d.mu.Lock()
	if !d.installed {
		d.mu.Unlock()
		return Message{}, ErrInvalidState
	}
	q := d.rx
	d.mu.Unlock()
	return q.pop(timeout)
}

// ReadAlerts returns and clears the pending enabled alerts.
func (d *LoopbackDriver) ReadAlerts(timeout time.Duration) (Alert, error) {
	d.mu.Lock()
	if !d.installed {
		d.mu.Unlock()
		return 0, ErrInvalidState
	}
	l := d.alerts
	d.mu.Unlock()
	return l.read(timeout)
}

// ReconfigureAlerts replaces the enabled alert set.
func (d *LoopbackDriver) ReconfigureAlerts(enable Alert) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.installed {
		return ErrInvalidState
	}
	d.alerts.setEnabled(enable)
	return nil
}

// Status reports the bus state, queue occupancy and error counts.
func (d *LoopbackDriver) Status() (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.installed {
		return Status{}, ErrInvalidState
	}
	st := Status{
		MsgsToRx:      d.rx.len(),
		RxMissedCount: d.rxMissed,
		TxFailedCount: d.txFailed,
	}
	switch {
	case d.busOff:
		st.State = BusOff
		st.TxErrorCounter = 256
	case d.started:
		st.State = BusRunning
	default:
		st.State = BusStopped
	}
	return st, nil
}

// ClearReceiveQueue drops every queued message.
func (d *LoopbackDriver) ClearReceiveQueue() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.installed {
		return ErrInvalidState
	}
	d.rx.clear()
	return nil
}

// InitiateRecovery leaves bus-off and raises AlertBusRecovered.
func (d *LoopbackDriver) InitiateRecovery() error {
	d.mu.Lock()
	if !d.busOff {
		d.mu.Unlock()
		return ErrInvalidState
	}
	d.busOff = false
	d.recovered++
	alerts := d.alerts
	d.mu.Unlock()
	alerts.raise(AlertBusRecovered)
	return nil
}

// InjectAlerts raises alerts as the peripheral would. AlertBusOff also puts
// the endpoint in bus-off, where it neither transmits nor receives.
func (d *LoopbackDriver) InjectAlerts(a Alert) {
	d.mu.Lock()
	if !d.installed {
		d.mu.Unlock()
		return
	}
	if a&AlertBusOff != 0 {
		d.busOff = true
		d.txFailed++
	}
	alerts := d.alerts
	d.mu.Unlock()
	alerts.raise(a)
}

// Recoveries counts completed InitiateRecovery calls.
func (d *LoopbackDriver) Recoveries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.recovered)
}

// Transmitted counts successful Transmit calls.
func (d *LoopbackDriver) Transmitted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.txCount)
}

// Close detaches the endpoint from the bus. Further calls fail with
// ErrClosed or ErrInvalidState.
func (d *LoopbackDriver) Close() error {
	d.bus.mu.Lock()
	if d.bus.endpoints != nil {
		delete(d.bus.endpoints, d)
	}
	d.bus.mu.Unlock()
	d.markClosed()
	return nil
}

func (d *LoopbackDriver) markClosed() {
	d.mu.Lock()
	d.closed = true
	d.started = false
	d.mu.Unlock()
}

package twai

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the controller lifecycle state.
type State uint8

const (
	StateUninstalled State = iota
	StateInstalled
	StateStarted
	StateEnded // terminal
)

func (s State) String() string {
	switch s {
	case StateUninstalled:
		return "uninstalled"
	case StateInstalled:
		return "installed"
	case StateStarted:
		return "started"
	case StateEnded:
		return "ended"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Controller manages one TWAI peripheral through its Driver: lifecycle,
// message transmit and receive, and alert driven fault handling.
//
// Methods are safe for concurrent use. Handlers run on the goroutine that
// called Poll (the background task when started with async) without any
// controller lock held, so they may call SendMessage, SetTxMessage or the
// setters. A handler must not call Poll or End.
type Controller struct {
	Handlers

	drv Driver
	log *slog.Logger

	mu        sync.Mutex
	cfg       Config
	timing    TimingProfile
	filter    FilterConfig
	installed bool
	started   bool
	ended     bool
	alerts    Alert   // last nonzero mask processed
	rx        Message // most recently received
	tx        Message // next to transmit
	task      *pollTask
	stopFirst bool

	pollMu sync.Mutex // one poll cycle at a time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for warnings and alert reports.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithFilter replaces the accept-all acceptance filter.
func WithFilter(f FilterConfig) Option {
	return func(c *Controller) { c.filter = f }
}

// WithOrderedShutdown makes End stop the bus before uninstalling the
// driver, for drivers that refuse to uninstall while running.
func WithOrderedShutdown() Option {
	return func(c *Controller) { c.stopFirst = true }
}

// New returns a controller for drv. The driver is not touched until Install.
func New(drv Driver, cfg Config, opts ...Option) (*Controller, error) {
	if drv == nil {
		return nil, fmt.Errorf("%w: nil driver", ErrInvalidArg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		drv:    drv,
		log:    slog.Default(),
		cfg:    cfg,
		filter: AcceptAll(),
	}
	for _, o := range opts {
		o(c)
	}
	c.SetBitrate(cfg.Bitrate)
	return c, nil
}

// Install asks the driver to allocate its resources. On failure the
// controller is left uninstalled.
//
// Install is not idempotent: calling it while installed requests a second
// allocation from the driver.
func (c *Controller) Install() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return ErrInvalidState
	}
	if c.installed {
		c.log.Warn("twai install while installed")
	}
	err := c.drv.Install(c.generalConfigLocked(), c.timing, c.filter)
	c.installed = err == nil
	return err
}

// Start begins bus activity and enables MonitoredAlerts. It fails with
// ErrInvalidState, changing nothing, unless the controller is installed and
// not yet started.
//
// With async set, a successful Start also launches the background task
// that calls Poll every PollInterval until End. At most one task runs.
func (c *Controller) Start(async bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.installed || c.started {
		return ErrInvalidState
	}
	err := c.drv.Start()
	c.started = err == nil
	if !c.started {
		return err
	}
	if aerr := c.drv.ReconfigureAlerts(MonitoredAlerts); aerr != nil {
		c.log.Warn("twai enable alerts failed", "alerts", MonitoredAlerts, "error", aerr)
	}
	if async && c.task == nil {
		c.task = startPollTask(c.Poll, c.cfg.PollInterval, c.cfg.TaskCore)
	}
	return nil
}

// End stops the background task, waiting for an in-flight poll cycle to
// finish, then uninstalls and stops the driver.
//
// By default End uninstalls first and, if uninstalling fails, returns that
// error without stopping the bus; the controller keeps its state and End
// may be retried. WithOrderedShutdown reverses the order.
func (c *Controller) End() error {
	c.mu.Lock()
	t := c.task
	c.task = nil
	c.mu.Unlock()
	if t != nil {
		t.stop()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopFirst {
		return c.stopThenUninstallLocked()
	}
	if err := c.drv.Uninstall(); err != nil {
		c.log.Warn("twai uninstall failed, bus not stopped", "error", err)
		return err
	}
	c.installed = false
	c.ended = true
	err := c.drv.Stop()
	c.started = false
	return err
}

func (c *Controller) stopThenUninstallLocked() error {
	if c.started {
		if err := c.drv.Stop(); err != nil {
			return err
		}
		c.started = false
	}
	if err := c.drv.Uninstall(); err != nil {
		return err
	}
	c.installed = false
	c.ended = true
	return nil
}

// SetMode changes the operating mode used by the next Install. While the
// controller is running the call is ignored and a warning is logged.
func (c *Controller) SetMode(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installed && c.started {
		c.log.Warn("twai cannot change mode while driver is running", "mode", mode, "current", c.cfg.Mode)
		return
	}
	c.cfg.Mode = mode
}

// SetBitrate selects the timing profile for bitrate. Unsupported rates fall
// back to the 125 kbit/s profile with a warning. The profile applies at
// the next Install.
func (c *Controller) SetBitrate(bitrate int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := ResolveTiming(bitrate, c.cfg.Capabilities)
	if !ok {
		c.log.Warn("twai unsupported bitrate, defaulting to 125 kbit/s", "bitrate", bitrate)
	}
	c.timing = p
	c.cfg.Bitrate = p.Bitrate
}

// IsRunning reports whether the driver is both installed and started.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installed && c.started
}

// State reports the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.ended:
		return StateEnded
	case c.installed && c.started:
		return StateStarted
	case c.installed:
		return StateInstalled
	}
	return StateUninstalled
}

// Config returns a copy of the current configuration.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Timing returns the selected timing profile.
func (c *Controller) Timing() TimingProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timing
}

// AvailableMessages returns the number of messages waiting in the receive
// queue, or -1 when the driver status cannot be read.
func (c *Controller) AvailableMessages() int {
	st, err := c.drv.Status()
	if err != nil {
		return -1
	}
	return st.MsgsToRx
}

// ReceiveMessage takes one message from the receive queue into the rx slot.
func (c *Controller) ReceiveMessage(timeout time.Duration) error {
	_, err := c.receive(timeout)
	return err
}

func (c *Controller) receive(timeout time.Duration) (Message, error) {
	m, err := c.drv.Receive(timeout)
	if err != nil {
		return Message{}, err
	}
	c.mu.Lock()
	c.rx = m
	c.mu.Unlock()
	return m, nil
}

// SendMessage queues the tx slot for transmission. There is no retry. The
// slot is copied before the driver call, so the controller is not locked
// while the transmit waits.
func (c *Controller) SendMessage(timeout time.Duration) error {
	c.mu.Lock()
	m := c.tx
	c.mu.Unlock()
	return c.drv.Transmit(m, timeout)
}

// RxMessage returns the most recently received message.
func (c *Controller) RxMessage() Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rx
}

// TxMessage returns the message SendMessage will transmit.
func (c *Controller) TxMessage() Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx
}

// SetTxMessage overwrites the tx slot.
func (c *Controller) SetTxMessage(m Message) {
	c.mu.Lock()
	c.tx = m
	c.mu.Unlock()
}

// ReadAlerts reads the driver's alerts, waiting at most timeout. A mask is
// handled only when it is nonzero and differs from the last handled mask;
// the comparison is on the whole mask, not per flag.
//
//   - AlertBusRecovered runs the bus-recovered handler.
//   - AlertRxQueueFull runs the rx-queue-full handler, then clears the
//     receive queue.
//   - AlertBusOff runs the bus-off handler, then requests recovery when
//     autorecover is enabled.
//
// A timeout is not an error.
func (c *Controller) ReadAlerts(timeout time.Duration) error {
	alerts, err := c.drv.ReadAlerts(timeout)
	if err != nil && !errors.Is(err, ErrTimeout) {
		return err
	}
	c.mu.Lock()
	if alerts == 0 || alerts == c.alerts {
		c.mu.Unlock()
		return nil
	}
	c.alerts = alerts
	autorecover := c.cfg.AutoRecover
	c.mu.Unlock()

	c.handleAlerts(alerts, autorecover)
	return nil
}

func (c *Controller) handleAlerts(alerts Alert, autorecover bool) {
	h := c.snapshot()
	if alerts&AlertBusRecovered != 0 {
		c.log.Info("twai bus recovery completed", "alerts", alerts)
		if h.busRecovered != nil {
			h.busRecovered()
		}
	}
	if alerts&AlertRxQueueFull != 0 {
		c.log.Warn("twai rx queue full, frame lost; clearing queue", "alerts", alerts)
		if h.rxQueueFull != nil {
			h.rxQueueFull()
		}
		if err := c.drv.ClearReceiveQueue(); err != nil {
			c.log.Error("twai clear receive queue failed", "error", err)
		}
	}
	if alerts&AlertBusOff != 0 {
		if h.busOff != nil {
			h.busOff()
		}
		if !autorecover {
			c.log.Warn("twai bus-off, controller can no longer influence the bus", "alerts", alerts)
			return
		}
		c.log.Warn("twai bus-off, initiating recovery", "alerts", alerts)
		if err := c.drv.InitiateRecovery(); err != nil {
			c.log.Error("twai initiate recovery failed", "error", err)
		}
	}
}

// Poll runs one cycle: ReadAlerts, then drains the receive queue, handing
// each message to the message handler in arrival order. Poll returns once
// the driver reports an empty queue or a receive fails.
func (c *Controller) Poll() {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	c.mu.Lock()
	alertTimeout, ioTimeout := c.cfg.AlertTimeout, c.cfg.IOTimeout
	c.mu.Unlock()

	if err := c.ReadAlerts(alertTimeout); err != nil {
		c.log.Debug("twai read alerts failed", "error", err)
	}
	for c.AvailableMessages() > 0 {
		m, err := c.receive(ioTimeout)
		if err != nil {
			c.log.Debug("twai receive failed", "error", err)
			return
		}
		if fn := c.snapshot().message; fn != nil {
			fn(m)
		}
	}
}

func (c *Controller) generalConfigLocked() GeneralConfig {
	return GeneralConfig{
		Mode:       c.cfg.Mode,
		TxPin:      c.cfg.TxPin,
		RxPin:      c.cfg.RxPin,
		TxQueueLen: c.cfg.TxQueueLen,
		RxQueueLen: c.cfg.RxQueueLen,
		Alerts:     AlertNone,
	}
}

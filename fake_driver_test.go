package twai

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// fakeDriver is a scripted Driver that records every call.
type fakeDriver struct {
	mu    sync.Mutex
	calls []string

	installErr   error
	uninstallErr error
	startErr     error
	stopErr      error
	statusErr    error

	alerts  []Alert // returned in order by ReadAlerts; 0 reads as a timeout
	queue   []Message
	sent    []Message
	enabled Alert
	gen     GeneralConfig
	timing  TimingProfile
}

var _ Driver = (*fakeDriver)(nil)

func (f *fakeDriver) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeDriver) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDriver) count(call string) int {
	n := 0
	for _, c := range f.callLog() {
		if c == call {
			n++
		}
	}
	return n
}

// index returns the position of the first call, or -1.
func (f *fakeDriver) index(call string) int {
	for i, c := range f.callLog() {
		if c == call {
			return i
		}
	}
	return -1
}

func (f *fakeDriver) queued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

func (f *fakeDriver) Install(g GeneralConfig, t TimingProfile, _ FilterConfig) error {
	f.record("install")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen, f.timing = g, t
	return f.installErr
}

func (f *fakeDriver) Uninstall() error {
	f.record("uninstall")
	return f.uninstallErr
}

func (f *fakeDriver) Start() error {
	f.record("start")
	return f.startErr
}

func (f *fakeDriver) Stop() error {
	f.record("stop")
	return f.stopErr
}

func (f *fakeDriver) Transmit(m Message, _ time.Duration) error {
	f.record("transmit")
	f.mu.Lock()
	f.sent = append(f.sent, m)
	f.mu.Unlock()
	return nil
}

func (f *fakeDriver) Receive(time.Duration) (Message, error) {
	f.record("receive")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return Message{}, ErrTimeout
	}
	m := f.queue[0]
	f.queue = f.queue[1:]
	return m, nil
}

func (f *fakeDriver) ReadAlerts(time.Duration) (Alert, error) {
	f.record("read_alerts")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.alerts) == 0 {
		return 0, ErrTimeout
	}
	a := f.alerts[0]
	f.alerts = f.alerts[1:]
	if a == 0 {
		return 0, ErrTimeout
	}
	return a, nil
}

func (f *fakeDriver) ReconfigureAlerts(enable Alert) error {
	f.record("reconfigure_alerts")
	f.mu.Lock()
	f.enabled = enable
	f.mu.Unlock()
	return nil
}

func (f *fakeDriver) Status() (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return Status{}, f.statusErr
	}
	return Status{State: BusRunning, MsgsToRx: len(f.queue)}, nil
}

func (f *fakeDriver) ClearReceiveQueue() error {
	f.record("clear_receive_queue")
	f.mu.Lock()
	f.queue = nil
	f.mu.Unlock()
	return nil
}

func (f *fakeDriver) InitiateRecovery() error {
	f.record("initiate_recovery")
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

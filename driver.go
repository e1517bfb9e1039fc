package twai

import "time"

// Driver is the CAN peripheral driver the controller manages. Every call
// completes with a status: nil on success, otherwise an error whose Code
// (see CodeOf) tells the reason. Blocking calls wait at most timeout.
//
// The expected lifecycle is Install, Start, Stop, Uninstall. Implementations
// decide whether out-of-order calls fail with ErrInvalidState.
//
// ReadAlerts, Receive and Status may be called from the controller's
// background task while other methods run on the caller's goroutine, so
// implementations must be safe for concurrent use.
type Driver interface {
	// Install allocates driver resources.
	Install(g GeneralConfig, t TimingProfile, f FilterConfig) error
	// Uninstall releases driver resources.
	Uninstall() error
	// Start begins bus activity.
	Start() error
	// Stop ends bus activity.
	Stop() error

	// Transmit queues m for transmission.
	Transmit(m Message, timeout time.Duration) error
	// Receive takes the oldest message from the receive queue.
	Receive(timeout time.Duration) (Message, error)

	// ReadAlerts returns, and clears, the pending enabled alerts. It returns
	// ErrTimeout with a zero mask when nothing is raised within timeout.
	ReadAlerts(timeout time.Duration) (Alert, error)
	// ReconfigureAlerts replaces the set of enabled alerts.
	ReconfigureAlerts(enable Alert) error

	// Status reports bus state and queue occupancy.
	Status() (Status, error)
	// ClearReceiveQueue drops every queued received message.
	ClearReceiveQueue() error
	// InitiateRecovery starts bus-off recovery.
	InitiateRecovery() error
}

// BusState is the peripheral's bus state.
type BusState uint8

const (
	BusStopped BusState = iota
	BusRunning
	BusOff
	BusRecovering
)

func (s BusState) String() string {
	switch s {
	case BusStopped:
		return "stopped"
	case BusRunning:
		return "running"
	case BusOff:
		return "bus_off"
	case BusRecovering:
		return "recovering"
	}
	return "unknown"
}

// Status is a snapshot of the peripheral.
type Status struct {
	State          BusState
	MsgsToTx       int // messages waiting in the tx queue
	MsgsToRx       int // messages waiting in the rx queue
	TxErrorCounter uint32
	RxErrorCounter uint32
	TxFailedCount  uint32
	RxMissedCount  uint32 // frames lost to a full rx queue
	RxOverrunCount uint32
	ArbLostCount   uint32
	BusErrorCount  uint32
}

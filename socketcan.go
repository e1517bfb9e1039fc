package twai

// SocketCANOptions configures a SocketCAN driver.
type SocketCANOptions struct {
	// ConfigureLink applies bit rate, mode and tx queue length with `ip link`
	// on Install and toggles IFF_UP on Start and Stop. Requires
	// CAP_NET_ADMIN. When false the interface is used as already configured
	// and Start fails with ErrInvalidState while it is down.
	ConfigureLink bool
}

// Linux CAN error frame classes (can_id with CAN_ERR_FLAG set).
const (
	canErrTxTimeout = 0x00000001
	canErrLostArb   = 0x00000002
	canErrCrtl      = 0x00000004
	canErrProt      = 0x00000008
	canErrTrx       = 0x00000010
	canErrAck       = 0x00000020
	canErrBusOff    = 0x00000040
	canErrBusError  = 0x00000080
	canErrRestarted = 0x00000100
	canErrCnt       = 0x00000200

	canErrMask = 0x1FFFFFFF
)

// Controller problem details in data[1] of a CAN_ERR_CRTL frame.
const (
	canErrCrtlRxOverflow = 0x01
	canErrCrtlTxOverflow = 0x02
	canErrCrtlRxWarning  = 0x04
	canErrCrtlTxWarning  = 0x08
	canErrCrtlRxPassive  = 0x10
	canErrCrtlTxPassive  = 0x20
	canErrCrtlActive     = 0x40
)

// errorFrame is a decoded CAN error frame.
type errorFrame struct {
	alerts   Alert
	busOff   bool
	restart  bool
	counters bool
	txErr    uint32
	rxErr    uint32
}

// decodeErrorFrame translates a SocketCAN error frame into TWAI alerts.
func decodeErrorFrame(class uint32, data [8]byte) errorFrame {
	var ef errorFrame
	if class&canErrTxTimeout != 0 {
		ef.alerts |= AlertTxFailed
	}
	if class&canErrLostArb != 0 {
		ef.alerts |= AlertArbLost
	}
	if class&canErrCrtl != 0 {
		ctrl := data[1]
		if ctrl&(canErrCrtlRxOverflow|canErrCrtlTxOverflow) != 0 {
			ef.alerts |= AlertRxFIFOOverrun
		}
		if ctrl&(canErrCrtlRxWarning|canErrCrtlTxWarning) != 0 {
			ef.alerts |= AlertAboveErrWarn
		}
		if ctrl&(canErrCrtlRxPassive|canErrCrtlTxPassive) != 0 {
			ef.alerts |= AlertErrPass
		}
		if ctrl&canErrCrtlActive != 0 {
			ef.alerts |= AlertErrActive
		}
	}
	if class&(canErrProt|canErrTrx|canErrAck|canErrBusError) != 0 {
		ef.alerts |= AlertBusError
	}
	if class&canErrBusOff != 0 {
		ef.alerts |= AlertBusOff
		ef.busOff = true
	}
	if class&canErrRestarted != 0 {
		ef.alerts |= AlertBusRecovered
		ef.restart = true
	}
	if class&canErrCnt != 0 {
		ef.counters = true
		ef.txErr = uint32(data[6])
		ef.rxErr = uint32(data[7])
	}
	return ef
}

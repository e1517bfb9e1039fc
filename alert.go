package twai

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Alert is a bitmask of hardware alert conditions. The bit values follow
// the TWAI peripheral's alert register.
type Alert uint32

const (
	AlertTxIdle             Alert = 0x00000001 // no more messages queued for transmission
	AlertTxSuccess          Alert = 0x00000002 // previous transmission was successful
	AlertRxData             Alert = 0x00000004 // a frame was received and queued
	AlertBelowErrWarn       Alert = 0x00000008 // both error counters dropped below the warning limit
	AlertErrActive          Alert = 0x00000010 // controller became error active
	AlertRecoveryInProgress Alert = 0x00000020 // bus recovery has started
	AlertBusRecovered       Alert = 0x00000040 // bus recovery completed
	AlertArbLost            Alert = 0x00000080 // previous transmission lost arbitration
	AlertAboveErrWarn       Alert = 0x00000100 // an error counter exceeded the warning limit
	AlertBusError           Alert = 0x00000200 // a bit, stuff, CRC, form or ACK error occurred
	AlertTxFailed           Alert = 0x00000400 // previous transmission failed
	AlertRxQueueFull        Alert = 0x00000800 // rx queue full, a received frame was lost
	AlertErrPass            Alert = 0x00001000 // controller became error passive
	AlertBusOff             Alert = 0x00002000 // bus-off, controller no longer influences the bus
	AlertRxFIFOOverrun      Alert = 0x00004000 // hardware rx FIFO overran

	AlertNone Alert = 0
	AlertAll  Alert = 0x00007FFF
)

// MonitoredAlerts is the alert set enabled on a successful Start.
const MonitoredAlerts = AlertBusRecovered | AlertBusOff | AlertRxQueueFull | AlertRxFIFOOverrun

var alertNames = map[Alert]string{
	AlertTxIdle:             "tx_idle",
	AlertTxSuccess:          "tx_success",
	AlertRxData:             "rx_data",
	AlertBelowErrWarn:       "below_err_warn",
	AlertErrActive:          "err_active",
	AlertRecoveryInProgress: "recovery_in_progress",
	AlertBusRecovered:       "bus_recovered",
	AlertArbLost:            "arb_lost",
	AlertAboveErrWarn:       "above_err_warn",
	AlertBusError:           "bus_error",
	AlertTxFailed:           "tx_failed",
	AlertRxQueueFull:        "rx_queue_full",
	AlertErrPass:            "err_pass",
	AlertBusOff:             "bus_off",
	AlertRxFIFOOverrun:      "rx_fifo_overrun",
}

// Has reports whether every bit of flag is set in a.
func (a Alert) Has(flag Alert) bool { return flag != 0 && a&flag == flag }

// String lists the set flags in bit order, e.g. "bus_off|rx_queue_full".
func (a Alert) String() string {
	if a == 0 {
		return "none"
	}
	bits := maps.Keys(alertNames)
	slices.Sort(bits)
	var parts []string
	for _, bit := range bits {
		if a&bit != 0 {
			parts = append(parts, alertNames[bit])
		}
	}
	if rest := a &^ AlertAll; rest != 0 {
		parts = append(parts, "unknown")
	}
	return strings.Join(parts, "|")
}

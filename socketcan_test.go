package twai

import "testing"

func TestDecodeErrorFrame(t *testing.T) {
	cases := []struct {
		name  string
		class uint32
		data  [8]byte
		want  Alert
	}{
		{"tx timeout", canErrTxTimeout, [8]byte{}, AlertTxFailed},
		{"arbitration", canErrLostArb, [8]byte{}, AlertArbLost},
		{"rx overflow", canErrCrtl, [8]byte{1: canErrCrtlRxOverflow}, AlertRxFIFOOverrun},
		{"warning", canErrCrtl, [8]byte{1: canErrCrtlTxWarning}, AlertAboveErrWarn},
		{"passive", canErrCrtl, [8]byte{1: canErrCrtlRxPassive}, AlertErrPass},
		{"active", canErrCrtl, [8]byte{1: canErrCrtlActive}, AlertErrActive},
		{"ack", canErrAck, [8]byte{}, AlertBusError},
		{"bus-off", canErrBusOff, [8]byte{}, AlertBusOff},
		{"restarted", canErrRestarted, [8]byte{}, AlertBusRecovered},
		{"counters only", canErrCnt, [8]byte{6: 96, 7: 3}, AlertNone},
	}
	for _, tc := range cases {
		ef := decodeErrorFrame(tc.class, tc.data)
		if ef.alerts != tc.want {
			t.Fatalf("%s: alerts %v, want %v", tc.name, ef.alerts, tc.want)
		}
	}

	ef := decodeErrorFrame(canErrBusOff|canErrCnt, [8]byte{6: 255, 7: 12})
	if !ef.busOff || ef.restart || !ef.counters || ef.txErr != 255 || ef.rxErr != 12 {
		t.Fatalf("bus-off frame: %+v", ef)
	}
	if ef := decodeErrorFrame(canErrRestarted, [8]byte{}); !ef.restart || ef.busOff {
		t.Fatalf("restart frame: %+v", ef)
	}
}

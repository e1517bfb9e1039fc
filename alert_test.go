package twai

import "testing"

func TestAlert_String(t *testing.T) {
	cases := []struct {
		a    Alert
		want string
	}{
		{0, "none"},
		{AlertBusOff, "bus_off"},
		{AlertRxQueueFull | AlertBusRecovered, "bus_recovered|rx_queue_full"},
		{AlertBusOff | 0x80000000, "bus_off|unknown"},
	}
	for _, tc := range cases {
		if got := tc.a.String(); got != tc.want {
			t.Fatalf("%#x: got %q want %q", uint32(tc.a), got, tc.want)
		}
	}
}

func TestAlert_Has(t *testing.T) {
	a := AlertBusOff | AlertRxQueueFull
	if !a.Has(AlertBusOff) || !a.Has(AlertBusOff|AlertRxQueueFull) {
		t.Fatalf("Has should match set flags")
	}
	if a.Has(AlertBusRecovered) || a.Has(0) {
		t.Fatalf("Has should not match unset or empty flags")
	}
	if !MonitoredAlerts.Has(AlertBusRecovered | AlertBusOff | AlertRxQueueFull | AlertRxFIFOOverrun) {
		t.Fatalf("monitored set: %v", MonitoredAlerts)
	}
}

package main

import (
	"errors"
	"testing"

	"github.com/notnil/twai"
)

func TestParseMessage(t *testing.T) {
	cases := []struct {
		args     []string
		extended bool
		rtr      bool
		want     string
	}{
		{[]string{"123", "DEAD"}, false, false, "123 [2] DE AD"},
		{[]string{"0x7ff"}, false, false, "7FF [0]"},
		{[]string{"800"}, false, false, "00000800 [0]"},
		{[]string{"10"}, true, false, "00000010 [0]"},
		{[]string{"10"}, false, true, "010 [0] RTR"},
	}
	for _, tc := range cases {
		m, err := parseMessage(tc.args, tc.extended, tc.rtr)
		if err != nil {
			t.Fatalf("%v: %v", tc.args, err)
		}
		if got := m.String(); got != tc.want {
			t.Fatalf("%v: got %q want %q", tc.args, got, tc.want)
		}
	}
}

func TestParseMessage_Errors(t *testing.T) {
	if _, err := parseMessage([]string{"xyz"}, false, false); err == nil {
		t.Fatalf("bad id accepted")
	}
	if _, err := parseMessage([]string{"1", "0g"}, false, false); err == nil {
		t.Fatalf("bad data accepted")
	}
	if _, err := parseMessage([]string{"1", "000102030405060708"}, false, false); !errors.Is(err, twai.ErrInvalidLen) {
		t.Fatalf("9 bytes: %v", err)
	}
	if _, err := parseMessage([]string{"20000000"}, false, false); !errors.Is(err, twai.ErrInvalidID) {
		t.Fatalf("30-bit id: %v", err)
	}
}

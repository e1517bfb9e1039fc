package twai

import (
	"bytes"
	"errors"
	"testing"
)

func TestMessage_Validate_Marshal_Unmarshal_String(t *testing.T) {
	cases := []struct {
		name    string
		msg     Message
		wantStr string
	}{
		{
			name:    "standard frame with data",
			msg:     MustMessage(0x123, []byte{0xDE, 0xAD}),
			wantStr: "123 [2] DE AD",
		},
		{
			name:    "extended RTR, zero length",
			msg:     Message{ID: 0x1ABCDEFF, Extended: true, RTR: true, Len: 0},
			wantStr: "1ABCDEFF [0] RTR",
		},
		{
			name:    "standard empty",
			msg:     MustMessage(0x7FF, nil),
			wantStr: "7FF [0]",
		},
	}

	for _, tc := range cases {
		if err := tc.msg.Validate(); err != nil {
			t.Fatalf("%s: Validate() error = %v", tc.name, err)
		}
		b, err := tc.msg.MarshalBinary()
		if err != nil {
			t.Fatalf("%s: MarshalBinary() error = %v", tc.name, err)
		}
		if len(b) != frameSize {
			t.Fatalf("%s: encoded %d bytes", tc.name, len(b))
		}
		var g Message
		if err := g.UnmarshalBinary(b); err != nil {
			t.Fatalf("%s: UnmarshalBinary() error = %v", tc.name, err)
		}
		if g != tc.msg {
			t.Fatalf("%s: roundtrip mismatch: got %+v want %+v", tc.name, g, tc.msg)
		}
		if got := g.String(); got != tc.wantStr {
			t.Fatalf("%s: String() = %q, want %q", tc.name, got, tc.wantStr)
		}
	}
}

func TestMessage_Invalid(t *testing.T) {
	if err := (Message{ID: 0x800}).Validate(); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("standard 0x800: got %v", err)
	}
	if err := (Message{ID: 0x20000000, Extended: true}).Validate(); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("extended 0x20000000: got %v", err)
	}
	if err := (Message{ID: 1, Len: 9}).Validate(); !errors.Is(err, ErrInvalidLen) {
		t.Fatalf("len 9: got %v", err)
	}
	if _, err := (Message{ID: 1, Len: 9}).MarshalBinary(); err == nil {
		t.Fatalf("marshal of invalid message should fail")
	}
	var m Message
	if err := m.UnmarshalBinary(make([]byte, 8)); err == nil {
		t.Fatalf("short buffer should fail")
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustMessage should panic for len>8")
		}
	}()
	_ = MustMessage(0x123, make([]byte, 9))
}

func TestMessage_TransmitFlagsNotOnWire(t *testing.T) {
	m := MustMessage(0x10, []byte{1})
	m.SingleShot = true
	m.SelfReception = true
	b, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var g Message
	if err := g.UnmarshalBinary(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if g.SingleShot || g.SelfReception {
		t.Fatalf("transmit flags decoded from wire: %+v", g)
	}
	if !bytes.Equal(g.Payload(), []byte{1}) {
		t.Fatalf("payload: %x", g.Payload())
	}
}

func TestMustMessage_ExtendedByRange(t *testing.T) {
	if MustMessage(0x7FF, nil).Extended {
		t.Fatalf("0x7FF should be standard")
	}
	if !MustMessage(0x800, nil).Extended {
		t.Fatalf("0x800 should be extended")
	}
}

package twai

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Message is a classical CAN (2.0A/2.0B) frame as handled by the TWAI
// controller.
//
// Supported features:
//   - Standard (11-bit) and Extended (29-bit) identifiers
//   - Data frames and Remote Transmission Request (RTR)
//   - Data length 0-8 bytes (classical CAN)
//   - Single-shot transmission and self reception requests
//
// Not implemented: CAN FD specific fields.
type Message struct {
	ID            uint32 // 11-bit (std) or 29-bit (ext)
	Extended      bool   // true for 29-bit identifier
	RTR           bool   // remote transmission request
	SingleShot    bool   // transmit once, no retransmission on error
	SelfReception bool   // receive the frame back when transmitted
	Len           uint8  // 0..8
	Data          [8]byte
}

// Validation limits.
const (
	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF
	maxLen   = 8
)

var (
	ErrInvalidID  = errors.New("twai: invalid identifier")
	ErrInvalidLen = errors.New("twai: invalid data length")
)

// Validate returns an error if the message is not valid.
func (m Message) Validate() error {
	if m.Len > maxLen {
		return ErrInvalidLen
	}
	if m.Extended {
		if m.ID > maxExtID {
			return ErrInvalidID
		}
	} else if m.ID > maxStdID {
		return ErrInvalidID
	}
	return nil
}

// Payload returns the valid data bytes.
func (m Message) Payload() []byte {
	n := m.Len
	if n > maxLen {
		n = maxLen
	}
	return m.Data[:n]
}

// MustMessage constructs a Message and panics if invalid. Identifiers above
// the standard range select the extended format.
func MustMessage(id uint32, data []byte) Message {
	var m Message
	m.ID = id
	if id > maxStdID {
		m.Extended = true
	}
	if len(data) > maxLen {
		panic(ErrInvalidLen)
	}
	m.Len = uint8(len(data))
	copy(m.Data[:], data)
	if err := m.Validate(); err != nil {
		panic(err)
	}
	return m
}

// String renders the message as "ID [LEN] DATA", e.g. "123 [2] DE AD".
func (m Message) String() string {
	var b strings.Builder
	if m.Extended {
		fmt.Fprintf(&b, "%08X", m.ID)
	} else {
		fmt.Fprintf(&b, "%03X", m.ID)
	}
	fmt.Fprintf(&b, " [%d]", m.Len)
	if m.RTR {
		b.WriteString(" RTR")
		return b.String()
	}
	for _, d := range m.Payload() {
		fmt.Fprintf(&b, " %02X", d)
	}
	return b.String()
}

// SocketCAN can_id flags.
const (
	canEffFlag = 0x80000000
	canRtrFlag = 0x40000000
	canErrFlag = 0x20000000
	canEffMask = 0x1FFFFFFF
	canStdMask = 0x7FF
)

// frameSize is sizeof(struct can_frame).
const frameSize = 16

// MarshalBinary encodes the message to the Linux SocketCAN "struct can_frame"
// layout (16 bytes). The single-shot and self-reception flags are transmit
// requests and are not part of the wire layout.
//
// Layout (little-endian):
//
//	0..3  can_id (with flags: EFF/RTR/ERR)
//	4     can_dlc (data length code)
//	5..7  padding (set to zero)
//	8..15 data bytes
func (m Message) MarshalBinary() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	id := m.ID
	if m.Extended {
		id |= canEffFlag
	}
	if m.RTR {
		id |= canRtrFlag
	}
	buf := make([]byte, frameSize)
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = m.Len
	copy(buf[8:16], m.Data[:])
	return buf, nil
}

// UnmarshalBinary decodes a message from the Linux SocketCAN can_frame layout.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) < frameSize {
		return fmt.Errorf("twai: need %d bytes, got %d", frameSize, len(data))
	}
	id := binary.LittleEndian.Uint32(data[0:4])
	*m = Message{}
	m.Extended = id&canEffFlag != 0
	m.RTR = id&canRtrFlag != 0
	if m.Extended {
		m.ID = id & canEffMask
	} else {
		m.ID = id & canStdMask
	}
	m.Len = data[4]
	copy(m.Data[:], data[8:16])
	return m.Validate()
}

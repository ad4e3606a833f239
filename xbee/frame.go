// Package xbee implements the 16-bit address API frames the Pilot and Tug radios exchange: the
// checksum, a field-by-field frame builder, the parser, and byte-at-a-time receive and transmit
// machines that run as services.
//
// Every frame in this deployment is 15 bytes:
//
//	0     0x7E
//	1-2   length, big endian, always 11 (API id through last payload byte)
//	3     API id: 0x01 TX request, 0x81 RX packet
//	4-7   TX: frame id, destination (2), options / RX: source (2), RSSI, options
//	8     message type
//	9-13  payload
//	14    checksum: 0xFF - sum(bytes 3..13)
package xbee

import (
	"encoding/binary"
	"fmt"
)

const (
	StartDelimiter byte = 0x7E
	APITx16        byte = 0x01
	APIRx16        byte = 0x81

	HeaderLen   = 3
	LengthField = 11
	FrameLen    = HeaderLen + LengthField + 1
	PayloadLen  = 5
	// MaxFrameLen bounds what the receiver will buffer; longer declared lengths are discarded
	MaxFrameLen = 64

	BroadcastAddress uint16 = 0xFFFF
)

const (
	offAPI      = 3
	offFrameID  = 4
	offDest     = 5
	offSource   = 4
	offRSSI     = 6
	offOptions  = 7
	offMsgType  = 8
	offPayload  = 9
	offChecksum = 14
)

// MessageType is the application byte that follows the address fields
type MessageType uint8

const (
	MsgControl             MessageType = 1
	MsgStatus              MessageType = 2
	MsgRequestToPair       MessageType = 3
	MsgPairingAcknowledged MessageType = 4
)

func (m MessageType) String() string {
	switch m {
	case MsgControl:
		return "Control"
	case MsgStatus:
		return "Status"
	case MsgRequestToPair:
		return "RequestToPair"
	case MsgPairingAcknowledged:
		return "PairingAcknowledged"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(m))
	}
}

// Checksum returns the byte that makes the sum of b plus itself equal 0xFF
func Checksum(b []byte) byte {
	return 0xFF - sum(b)
}

// Valid reports whether frame is complete according to its length field and its checksum holds
func Valid(frame []byte) bool {
	if len(frame) < HeaderLen+2 || frame[0] != StartDelimiter {
		return false
	}
	n := int(binary.BigEndian.Uint16(frame[1:3]))
	if len(frame) != HeaderLen+n+1 {
		return false
	}
	return sum(frame[HeaderLen:]) == 0xFF
}

func sum(b []byte) byte {
	var s byte
	for _, v := range b {
		s += v
	}
	return s
}

// Builder assembles one fixed-length frame field by field, keeping a running checksum of everything
// after the length field.
type Builder struct {
	buf [FrameLen]byte
	n   int
	acc byte
	err error
}

// NewBuilder starts a frame with the delimiter, the fixed length and the API id
func NewBuilder(api byte) *Builder {
	b := &Builder{}
	b.buf[0] = StartDelimiter
	binary.BigEndian.PutUint16(b.buf[1:3], LengthField)
	b.n = HeaderLen
	return b.Byte(api)
}

// Byte appends one field byte
func (b *Builder) Byte(v byte) *Builder {
	if b.err != nil {
		return b
	}
	if b.n >= offChecksum {
		b.err = ErrFrameTooLong
		return b
	}
	b.buf[b.n] = v
	b.acc += v
	b.n++
	return b
}

// Uint16 appends a big endian address
func (b *Builder) Uint16(v uint16) *Builder {
	return b.Byte(byte(v >> 8)).Byte(byte(v))
}

// Bytes appends a run of field bytes
func (b *Builder) Bytes(p []byte) *Builder {
	for _, v := range p {
		b.Byte(v)
	}
	return b
}

// Frame pads unused payload bytes with zero and appends the checksum
func (b *Builder) Frame() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.n <= offMsgType {
		return nil, ErrIncompleteFrame
	}
	// zero padding leaves the accumulator unchanged
	b.n = offChecksum
	b.buf[offChecksum] = 0xFF - b.acc
	out := make([]byte, FrameLen)
	copy(out, b.buf[:])
	return out, nil
}

// EncodeTx builds a TX request to dest
func EncodeTx(dest uint16, frameID byte, msg MessageType, payload []byte) ([]byte, error) {
	if len(payload) > PayloadLen {
		return nil, fmt.Errorf("%s payload of %d bytes: %w", msg, len(payload), ErrPayloadTooLong)
	}
	return NewBuilder(APITx16).
		Byte(frameID).
		Uint16(dest).
		Byte(0). // options
		Byte(byte(msg)).
		Bytes(payload).
		Frame()
}

// EncodeRx builds the frame a radio hands to its host when a packet from src arrives
func EncodeRx(src uint16, rssi, options byte, msg MessageType, payload []byte) ([]byte, error) {
	if len(payload) > PayloadLen {
		return nil, fmt.Errorf("%s payload of %d bytes: %w", msg, len(payload), ErrPayloadTooLong)
	}
	return NewBuilder(APIRx16).
		Uint16(src).
		Byte(rssi).
		Byte(options).
		Byte(byte(msg)).
		Bytes(payload).
		Frame()
}

// Packet is a parsed RX frame
type Packet struct {
	Source  uint16
	RSSI    byte
	Options byte
	Type    MessageType
	Payload [PayloadLen]byte
}

// TxRequest is a parsed TX frame, as seen by the radio
type TxRequest struct {
	FrameID byte
	Dest    uint16
	Options byte
	Type    MessageType
	Payload [PayloadLen]byte
}

// Parse applies the acceptance gates in order: API id, message type (when accept is not nil), checksum.
func Parse(frame []byte, accept func(MessageType) bool) (Packet, error) {
	if err := checkShape(frame); err != nil {
		return Packet{}, err
	}
	if frame[offAPI] != APIRx16 {
		return Packet{}, fmt.Errorf("api 0x%02X: %w", frame[offAPI], ErrWrongAPI)
	}
	msg := MessageType(frame[offMsgType])
	if accept != nil && !accept(msg) {
		return Packet{}, fmt.Errorf("%s: %w", msg, ErrUnexpectedType)
	}
	if !Valid(frame) {
		return Packet{}, ErrBadChecksum
	}

	p := Packet{
		Source:  binary.BigEndian.Uint16(frame[offSource:]),
		RSSI:    frame[offRSSI],
		Options: frame[offOptions],
		Type:    msg,
	}
	copy(p.Payload[:], frame[offPayload:offChecksum])
	return p, nil
}

// ParseTx decodes a TX request. Used on the radio side of the simulated link.
func ParseTx(frame []byte) (TxRequest, error) {
	if err := checkShape(frame); err != nil {
		return TxRequest{}, err
	}
	if frame[offAPI] != APITx16 {
		return TxRequest{}, fmt.Errorf("api 0x%02X: %w", frame[offAPI], ErrWrongAPI)
	}
	if !Valid(frame) {
		return TxRequest{}, ErrBadChecksum
	}
	r := TxRequest{
		FrameID: frame[offFrameID],
		Dest:    binary.BigEndian.Uint16(frame[offDest:]),
		Options: frame[offOptions],
		Type:    MessageType(frame[offMsgType]),
	}
	copy(r.Payload[:], frame[offPayload:offChecksum])
	return r, nil
}

// ToRx turns a TX request into the RX packet the addressed radio delivers
func ToRx(tx []byte, src uint16, rssi byte) ([]byte, uint16, error) {
	r, err := ParseTx(tx)
	if err != nil {
		return nil, 0, err
	}
	rx, err := EncodeRx(src, rssi, 0, r.Type, r.Payload[:])
	return rx, r.Dest, err
}

func checkShape(frame []byte) error {
	if len(frame) < FrameLen {
		return fmt.Errorf("%d bytes: %w", len(frame), ErrShortFrame)
	}
	if frame[0] != StartDelimiter {
		return ErrBadDelimiter
	}
	if n := binary.BigEndian.Uint16(frame[1:3]); int(n) != LengthField || len(frame) != FrameLen {
		return fmt.Errorf("length %d in %d byte frame: %w", n, len(frame), ErrBadLength)
	}
	return nil
}

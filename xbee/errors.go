package xbee

import "errors"

var (
	ErrShortFrame      = errors.New("frame too short")
	ErrBadDelimiter    = errors.New("frame does not start with 0x7E")
	ErrBadLength       = errors.New("length field does not match frame")
	ErrWrongAPI        = errors.New("unexpected API identifier")
	ErrUnexpectedType  = errors.New("message type not expected in this state")
	ErrBadChecksum     = errors.New("checksum mismatch")
	ErrPayloadTooLong  = errors.New("payload too long")
	ErrFrameTooLong    = errors.New("frame exceeds buffer")
	ErrBusy            = errors.New("transmitter busy")
	ErrUnknownMessage  = errors.New("unknown message type")
	ErrIncompleteFrame = errors.New("frame not fully built")
)

package xbee

import "encoding/binary"

// RxState is the position of the receiver inside a frame
type RxState uint8

const (
	RxIdle RxState = iota
	RxPrologue
	RxFrameData
)

func (s RxState) String() string {
	switch s {
	case RxIdle:
		return "Idle"
	case RxPrologue:
		return "Prologue"
	case RxFrameData:
		return "FrameData"
	default:
		return "Unknown"
	}
}

// Receiver reassembles frames from single bytes. Outside a frame everything but the start
// delimiter is discarded; inside one, 0x7E is ordinary data.
type Receiver struct {
	state    RxState
	buf      [MaxFrameLen]byte
	index    int
	length   int
	oversize int
}

// Feed consumes one byte. When it completes a frame the whole frame, delimiter through checksum, is
// returned as a fresh slice and the receiver is back in RxIdle.
func (r *Receiver) Feed(b byte) ([]byte, bool) {
	switch r.state {
	case RxIdle:
		if b == StartDelimiter {
			r.buf[0] = b
			r.index = 0
			r.length = 0
			r.state = RxPrologue
		}

	case RxPrologue:
		r.buf[1+r.index] = b
		r.index++
		if r.index < 2 {
			return nil, false
		}
		r.length = int(binary.BigEndian.Uint16(r.buf[1:3]))
		if r.length == 0 || HeaderLen+r.length+1 > MaxFrameLen {
			r.oversize++
			r.state = RxIdle
			return nil, false
		}
		r.index = 0
		r.state = RxFrameData

	case RxFrameData:
		r.buf[HeaderLen+r.index] = b
		r.index++
		// index > length once the checksum byte itself has been consumed
		if r.index <= r.length {
			return nil, false
		}
		r.state = RxIdle
		n := HeaderLen + r.length + 1
		out := make([]byte, n)
		copy(out, r.buf[:n])
		return out, true
	}
	return nil, false
}

// Abort drops a partial frame
func (r *Receiver) Abort() {
	r.state = RxIdle
	r.index = 0
	r.length = 0
}

func (r *Receiver) State() RxState {
	return r.state
}

// Busy reports whether a frame is partially received
func (r *Receiver) Busy() bool {
	return r.state != RxIdle
}

// Oversize counts frames dropped because their length field did not fit the buffer
func (r *Receiver) Oversize() int {
	return r.oversize
}

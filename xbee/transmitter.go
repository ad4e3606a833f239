package xbee

import "fmt"

// Transmitter holds one outgoing frame and hands it out a byte at a time
type Transmitter struct {
	buf  [MaxFrameLen]byte
	n    int
	next int
}

// Load copies frame into the transmit buffer. It fails while a previous frame is still going out.
func (t *Transmitter) Load(frame []byte) error {
	if t.Busy() {
		return ErrBusy
	}
	if len(frame) > MaxFrameLen {
		return fmt.Errorf("%d bytes: %w", len(frame), ErrFrameTooLong)
	}
	t.n = copy(t.buf[:], frame)
	t.next = 0
	return nil
}

// Next returns the next byte to write, or false once the frame is exhausted
func (t *Transmitter) Next() (byte, bool) {
	if t.next >= t.n {
		t.n, t.next = 0, 0
		return 0, false
	}
	b := t.buf[t.next]
	t.next++
	if t.next == t.n {
		t.n, t.next = 0, 0
	}
	return b, true
}

// Busy reports whether bytes remain to be sent
func (t *Transmitter) Busy() bool {
	return t.next < t.n
}

// Reset abandons the frame in flight
func (t *Transmitter) Reset() {
	t.n, t.next = 0, 0
}

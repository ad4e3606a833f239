package sim

import (
	"encoding/binary"
	"errors"
	"sync"

	"tinygo.org/x/drivers"

	"github.com/robotarena/esfw/hal"
)

var ErrWordSize = errors.New("sim bus transfers 16-bit words only")

// Bus is a shared-clock SPI link. The leader side is a drivers.SPI; the follower side is a
// hal.Follower whose transmit register is exchanged for the leader's word on every transfer.
type Bus struct {
	mu     sync.Mutex
	txReg  uint16
	rxReg  uint16
	rxFull bool

	// byte-wise Transfer state
	half    bool
	partial uint16

	transfers uint64
}

var (
	_ drivers.SPI  = (*Bus)(nil)
	_ hal.Follower = (*busFollower)(nil)
)

func NewBus() *Bus {
	return &Bus{}
}

// Tx exchanges one word, most significant byte first
func (b *Bus) Tx(w, r []byte) error {
	if len(w) != 2 || (r != nil && len(r) != 2) {
		return ErrWordSize
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.txReg
	b.rxReg = binary.BigEndian.Uint16(w)
	b.rxFull = true
	b.half = false
	b.transfers++
	if r != nil {
		binary.BigEndian.PutUint16(r, out)
	}
	return nil
}

// Transfer clocks one byte; two calls make one word
func (b *Bus) Transfer(c byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.half {
		b.half = true
		b.partial = uint16(c) << 8
		return byte(b.txReg >> 8), nil
	}
	b.half = false
	out := byte(b.txReg)
	b.rxReg = b.partial | uint16(c)
	b.rxFull = true
	b.transfers++
	return out, nil
}

// Follower returns the follower end of the bus
func (b *Bus) Follower() hal.Follower {
	return &busFollower{b}
}

// Transfers counts completed word exchanges
func (b *Bus) Transfers() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transfers
}

type busFollower struct {
	b *Bus
}

func (f *busFollower) RxFull() bool {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	return f.b.rxFull
}

func (f *busFollower) ReadWord() uint16 {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	f.b.rxFull = false
	return f.b.rxReg
}

func (f *busFollower) Transfers() uint64 {
	return f.b.Transfers()
}

func (f *busFollower) LoadWord(w uint16) uint64 {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	f.b.txReg = w
	return f.b.transfers
}

// Package sim provides in-process stand-ins for the board hardware: UARTs joined by a simulated XBee
// network, a shared-clock SPI bus and a drive train that moves in ticks. All types are safe to use
// from the goroutines of several boards at once.
package sim

import (
	"sync"

	"github.com/robotarena/esfw/hal"
)

// UART is a byte FIFO in each direction. What the board writes goes to sink; what arrives from the
// other side is appended with deliver.
type UART struct {
	mu   sync.Mutex
	rx   []byte
	sink func(b byte)
	// txBlocked makes TxReady report false, simulating a busy transmit register
	txBlocked bool
}

var _ hal.UART = (*UART)(nil)

// NewUARTPair returns two UARTs wired back to back
func NewUARTPair() (*UART, *UART) {
	a, b := &UART{}, &UART{}
	a.sink = b.deliver
	b.sink = a.deliver
	return a, b
}

func (u *UART) deliver(b byte) {
	u.mu.Lock()
	u.rx = append(u.rx, b)
	u.mu.Unlock()
}

// Inject makes bytes available to the board as if they had been received
func (u *UART) Inject(p []byte) {
	u.mu.Lock()
	u.rx = append(u.rx, p...)
	u.mu.Unlock()
}

func (u *UART) RxAvailable() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rx) > 0
}

func (u *UART) ReadByte() (byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.rx) == 0 {
		return 0, hal.ErrNoData
	}
	b := u.rx[0]
	u.rx = u.rx[1:]
	return b, nil
}

func (u *UART) TxReady() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return !u.txBlocked
}

func (u *UART) WriteByte(b byte) error {
	u.mu.Lock()
	sink := u.sink
	u.mu.Unlock()
	if sink != nil {
		sink(b)
	}
	return nil
}

// SetTxBlocked holds the transmitter busy
func (u *UART) SetTxBlocked(blocked bool) {
	u.mu.Lock()
	u.txBlocked = blocked
	u.mu.Unlock()
}

// Pending returns how many received bytes the board has not read yet
func (u *UART) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rx)
}

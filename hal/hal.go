// Package hal holds the narrow hardware interfaces the board services poll. Implementations live in
// sub-packages: sim for tests and the host simulator, serialport and spidev for host hardware, and
// machinehal for TinyGo targets.
package hal

import (
	"encoding/binary"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"tinygo.org/x/drivers"
)

var ErrNoData = errors.New("no data available")

// UART is the byte-at-a-time view of a serial port: poll a flag, then move one byte.
type UART interface {
	RxAvailable() bool
	ReadByte() (byte, error)
	TxReady() bool
	WriteByte(b byte) error
}

// Pin is a digital input. gpio.PinIn and gpiotest.Pin both satisfy it.
type Pin interface {
	Read() gpio.Level
}

// ADC is one analog channel. analog.PinADC satisfies it.
type ADC interface {
	Read() (analog.Sample, error)
}

// Follower is the slave end of the SPI link: a received-word latch and the transmit register that
// is clocked out on the next transfer.
type Follower interface {
	RxFull() bool
	ReadWord() uint16
	// LoadWord sets the transmit register and returns the number of transfers completed before it
	LoadWord(w uint16) uint64
	// Transfers counts completed exchanges, so a loaded word can be known to have gone out
	Transfers() uint64
}

// Leader drives the SPI link as master. Every transfer is full duplex: the word sent out is exchanged
// for whatever the follower left in its transmit register.
type Leader struct {
	bus    drivers.SPI
	tx, rx [2]byte
	latch  uint16
	full   bool
}

// NewLeader wraps any drivers.SPI bus. Words go out most significant byte first.
func NewLeader(bus drivers.SPI) *Leader {
	return &Leader{bus: bus}
}

// SendWord performs one 16-bit transfer and latches the word received during it
func (l *Leader) SendWord(w uint16) error {
	binary.BigEndian.PutUint16(l.tx[:], w)
	if err := l.bus.Tx(l.tx[:], l.rx[:]); err != nil {
		return fmt.Errorf("spi transfer 0x%04X: %w", w, err)
	}
	l.latch = binary.BigEndian.Uint16(l.rx[:])
	l.full = true
	return nil
}

// RxFull reports whether a received word is waiting
func (l *Leader) RxFull() bool {
	return l.full
}

// ReadWord returns the latched word and clears RxFull
func (l *Leader) ReadWord() uint16 {
	l.full = false
	return l.latch
}

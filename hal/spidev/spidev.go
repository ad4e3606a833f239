// Package spidev exposes a Linux spidev port as a drivers.SPI so the Main board's leader can run on a
// single-board computer wired to a Drive board.
package spidev

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

// Config has values for connecting to the port
type Config struct {
	// Device is a spireg name such as "/dev/spidev0.0" or "SPI0.0"; empty opens the first port
	Device    string
	Frequency physic.Frequency
	Mode      spi.Mode
}

func DefaultConfig() Config {
	return Config{
		Frequency: physic.MegaHertz,
		Mode:      spi.Mode1,
	}
}

// Device is a connected SPI port
type Device struct {
	port spi.PortCloser
	conn spi.Conn
	one  [1]byte
	rx   [1]byte
}

var _ drivers.SPI = (*Device)(nil)

// Open initialises the host drivers and connects to the port with 8-bit words
func Open(cfg Config) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("error initialising host drivers: %w", err)
	}
	p, err := spireg.Open(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("error opening spi port %q: %w", cfg.Device, err)
	}
	d, err := Connect(p, cfg)
	if err != nil {
		p.Close()
		return nil, err
	}
	return d, nil
}

// Connect uses an already opened port
func Connect(p spi.PortCloser, cfg Config) (*Device, error) {
	c, err := p.Connect(cfg.Frequency, cfg.Mode, 8)
	if err != nil {
		return nil, fmt.Errorf("error connecting to spi port: %w", err)
	}
	return &Device{port: p, conn: c}, nil
}

// Tx is a full duplex transfer; r may be nil
func (d *Device) Tx(w, r []byte) error {
	return d.conn.Tx(w, r)
}

func (d *Device) Transfer(b byte) (byte, error) {
	d.one[0] = b
	if err := d.conn.Tx(d.one[:], d.rx[:]); err != nil {
		return 0, err
	}
	return d.rx[0], nil
}

func (d *Device) Close() error {
	return d.port.Close()
}

func (d *Device) String() string {
	return d.conn.String()
}

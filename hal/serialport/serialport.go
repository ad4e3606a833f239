// Package serialport runs a hal.UART over a host serial port, e.g. an XBee on a USB adapter
package serialport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/robotarena/esfw/hal"
)

// Config has values for opening the port
type Config struct {
	Name     string
	BaudRate int
	// ReadTimeout bounds each blocking read of the background reader
	ReadTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaudRate:    9600,
		ReadTimeout: 50 * time.Millisecond,
	}
}

// Port buffers bytes read by a background goroutine so the board can poll RxAvailable without blocking
type Port struct {
	port serial.Port
	log  logrus.FieldLogger

	mu      sync.Mutex
	rx      []byte
	readErr error

	done chan struct{}
	wg   sync.WaitGroup
}

var _ hal.UART = (*Port)(nil)

// Open opens the port at 8N1 and starts the reader
func Open(cfg Config, log logrus.FieldLogger) (*Port, error) {
	if cfg.Name == "" {
		return nil, errors.New("serial port name is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	sp, err := serial.Open(cfg.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("error opening serial port %s: %w", cfg.Name, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := sp.SetReadTimeout(cfg.ReadTimeout); err != nil {
			sp.Close()
			return nil, fmt.Errorf("error setting read timeout: %w", err)
		}
	}

	p := &Port{
		port: sp,
		log:  log.WithField("port", cfg.Name),
		done: make(chan struct{}),
	}
	p.wg.Add(1)
	go p.readLoop()
	return p, nil
}

func (p *Port) readLoop() {
	defer p.wg.Done()
	buf := make([]byte, 64)
	for {
		select {
		case <-p.done:
			return
		default:
		}

		// a read timeout returns 0 bytes and no error
		n, err := p.port.Read(buf)
		if err != nil {
			select {
			case <-p.done:
			default:
				p.log.WithError(err).Error("serial read failed")
			}
			p.mu.Lock()
			p.readErr = err
			p.mu.Unlock()
			return
		}
		if n == 0 {
			continue
		}
		p.mu.Lock()
		p.rx = append(p.rx, buf[:n]...)
		p.mu.Unlock()
	}
}

func (p *Port) RxAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rx) > 0
}

func (p *Port) ReadByte() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rx) == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		return 0, hal.ErrNoData
	}
	b := p.rx[0]
	p.rx = p.rx[1:]
	return b, nil
}

// TxReady is always true; writes go straight to the OS buffer
func (p *Port) TxReady() bool {
	return true
}

func (p *Port) WriteByte(b byte) error {
	_, err := p.port.Write([]byte{b})
	return err
}

// Close stops the reader and closes the port
func (p *Port) Close() error {
	close(p.done)
	err := p.port.Close()
	p.wg.Wait()
	return err
}

// PortInfo describes one serial port found on the host
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID, PID     string
	SerialNumber string
	Product      string
}

// List returns the serial ports on the host, with USB details where the OS provides them
func List() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil && len(details) > 0 {
		out := make([]PortInfo, 0, len(details))
		for _, d := range details {
			out = append(out, PortInfo{
				Name:         d.Name,
				IsUSB:        d.IsUSB,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
				Product:      d.Product,
			})
		}
		return out, nil
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("error listing serial ports: %w", err)
	}
	out := make([]PortInfo, 0, len(names))
	for _, n := range names {
		out = append(out, PortInfo{Name: n})
	}
	return out, nil
}

package sim

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/robotarena/esfw/xbee"
)

// Air is a simulated XBee network. Every attached radio reassembles the TX requests its host writes
// and delivers them as RX packets to the addressed radio, or to every other radio for broadcasts.
type Air struct {
	mu     sync.Mutex
	radios map[uint16]*radio
	log    logrus.FieldLogger
	rssi   byte
	// drop returns true for frames the air should lose
	drop func(src, dest uint16, msg xbee.MessageType) bool
}

type radio struct {
	addr uint16
	uart *UART
	rx   xbee.Receiver
}

func NewAir(log logrus.FieldLogger) *Air {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Air{radios: map[uint16]*radio{}, log: log, rssi: 0x28}
}

// Attach adds a radio with the given 16-bit address and returns the UART its host board talks to
func (a *Air) Attach(addr uint16) *UART {
	r := &radio{addr: addr, uart: &UART{}}
	r.uart.sink = func(b byte) { a.fromHost(r, b) }

	a.mu.Lock()
	a.radios[addr] = r
	a.mu.Unlock()
	return r.uart
}

// SetDropFunc installs a filter that loses matching frames in the air
func (a *Air) SetDropFunc(fn func(src, dest uint16, msg xbee.MessageType) bool) {
	a.mu.Lock()
	a.drop = fn
	a.mu.Unlock()
}

func (a *Air) fromHost(r *radio, b byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	frame, ok := r.rx.Feed(b)
	if !ok {
		return
	}
	rx, dest, err := xbee.ToRx(frame, r.addr, a.rssi)
	if err != nil {
		a.log.WithError(err).WithField("radio", r.addr).Warn("radio rejected frame from host")
		return
	}
	if a.drop != nil && a.drop(r.addr, dest, xbee.MessageType(rx[8])) {
		return
	}

	if dest == xbee.BroadcastAddress {
		for addr, other := range a.radios {
			if addr != r.addr {
				other.uart.Inject(rx)
			}
		}
		return
	}
	if other, ok := a.radios[dest]; ok {
		other.uart.Inject(rx)
	}
}

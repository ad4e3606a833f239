// Package button debounces a push button: a checker reports the first active-going edge and then stays
// disarmed until the button's service sees its debounce timer expire.
package button

import (
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/hal"
)

// DefaultDebounceTicks is 50 ms at the 1 kHz tick
const DefaultDebounceTicks = 50

// Config has values for one button
type Config struct {
	Name string
	// ID is sent as the Param of the pressed event
	ID uint16
	// Pressed is the event kind posted to Dest
	Pressed es.EventKind
	Dest    es.Priority
	// Timer is the debounce timer; it must be bound to the button's own service
	Timer         es.TimerID
	DebounceTicks int32
	// ActiveLevel is the level a pressed button reads
	ActiveLevel gpio.Level
}

// Button is both the service owning the debounce timer and the source of its checker
type Button struct {
	rt    es.Runtime
	pin   hal.Pin
	cfg   Config
	log   logrus.FieldLogger
	last  gpio.Level
	armed bool

	presses uint64
}

func New(rt es.Runtime, pin hal.Pin, cfg Config, log logrus.FieldLogger) *Button {
	if cfg.DebounceTicks <= 0 {
		cfg.DebounceTicks = DefaultDebounceTicks
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Button{rt: rt, pin: pin, cfg: cfg, log: log.WithField("button", cfg.Name)}
}

func (b *Button) Init() error {
	b.last = b.pin.Read()
	b.armed = true
	return nil
}

func (b *Button) Run(e es.Event) es.Event {
	if e.Kind == es.Timeout && e.Param == uint16(b.cfg.Timer) {
		b.armed = true
	}
	return es.None
}

// Check samples the pin. The retained level is updated on every call so an edge is seen once.
func (b *Button) Check() bool {
	level := b.pin.Read()
	fired := false
	if b.armed && level != b.last && level == b.cfg.ActiveLevel {
		if err := b.rt.Post(b.cfg.Dest, es.Event{Kind: b.cfg.Pressed, Param: b.cfg.ID}); err == nil {
			fired = true
			b.presses++
			b.log.Debug("pressed")
		}
		b.armed = false
		if err := b.rt.InitTimer(b.cfg.Timer, b.cfg.DebounceTicks); err != nil {
			b.log.WithError(err).Error("debounce timer not armed, button stays disarmed")
		}
	}
	b.last = level
	return fired
}

// Armed reports whether the next edge will be reported
func (b *Button) Armed() bool {
	return b.armed
}

// Presses counts reported presses
func (b *Button) Presses() uint64 {
	return b.presses
}

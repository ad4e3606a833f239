package tug

import (
	"github.com/sirupsen/logrus"

	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/hal"
	"github.com/robotarena/esfw/xbee"
)

// Propulsion applies the paired Pilot's thrust. It idles on a session teardown and while the tank is
// empty.
type Propulsion struct {
	thrusters hal.Thrusters
	p         es.Poster
	fuel      es.Priority
	log       logrus.FieldLogger

	boost   bool
	empty   bool
	current hal.Thrust
}

func NewPropulsion(thrusters hal.Thrusters, p es.Poster, fuel es.Priority, log logrus.FieldLogger) *Propulsion {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Propulsion{thrusters: thrusters, p: p, fuel: fuel, log: log}
}

func (pr *Propulsion) Init() error {
	pr.idle()
	return nil
}

func (pr *Propulsion) Run(e es.Event) es.Event {
	switch e.Kind {
	case EvMode3:
		pr.boost = e.Param != 0

	case EvThrust:
		if pr.empty {
			return es.None
		}
		t := hal.Thrust{X: axis(uint8(e.Param >> 8)), Yaw: axis(uint8(e.Param)), Boost: pr.boost}
		pr.thrusters.Apply(t)
		pr.current = t
		if !t.IsZero() {
			if err := pr.p.Post(pr.fuel, es.Event{Kind: EvBurn}); err != nil {
				pr.log.WithError(err).Warn("burn not recorded")
			}
		}

	case EvPropulsionIdle:
		pr.boost = false
		pr.idle()

	case EvFuelEmpty:
		pr.empty = true
		pr.log.Warn("out of fuel, propulsion idled")
		pr.idle()

	case EvFuelRestored:
		pr.empty = false
	}
	return es.None
}

func (pr *Propulsion) idle() {
	pr.current = hal.Thrust{}
	pr.thrusters.Idle()
}

// Current returns the thrust last applied
func (pr *Propulsion) Current() hal.Thrust {
	return pr.current
}

// Empty reports whether propulsion is locked out for lack of fuel
func (pr *Propulsion) Empty() bool {
	return pr.empty
}

// axis turns an offset binary joystick byte into a signed value
func axis(b uint8) int8 {
	return int8(int(b) - xbee.NeutralAxis)
}

const (
	DefaultFuelCapacity   = 100
	DefaultBurnPerCommand = 1
)

// FuelConfig has values for the fuel tank
type FuelConfig struct {
	Capacity       uint8
	BurnPerCommand uint8
	Propulsion     es.Priority
}

// Fuel drains a little for every non-zero thrust command and refills on the Pilot's refuel flag
type Fuel struct {
	p     es.Poster
	cfg   FuelConfig
	log   logrus.FieldLogger
	level uint8
}

func NewFuel(p es.Poster, cfg FuelConfig, log logrus.FieldLogger) *Fuel {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultFuelCapacity
	}
	if cfg.BurnPerCommand == 0 {
		cfg.BurnPerCommand = DefaultBurnPerCommand
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fuel{p: p, cfg: cfg, log: log}
}

func (f *Fuel) Init() error {
	f.level = f.cfg.Capacity
	return nil
}

func (f *Fuel) Run(e es.Event) es.Event {
	switch e.Kind {
	case EvBurn:
		if f.level == 0 {
			return es.None
		}
		f.level -= min(f.cfg.BurnPerCommand, f.level)
		if f.level == 0 {
			f.notify(EvFuelEmpty)
		}

	case EvRefuel:
		wasEmpty := f.level == 0
		f.level = f.cfg.Capacity
		f.log.Debug("refuelled")
		if wasEmpty {
			f.notify(EvFuelRestored)
		}
	}
	return es.None
}

func (f *Fuel) notify(kind es.EventKind) {
	if err := f.p.Post(f.cfg.Propulsion, es.Event{Kind: kind}); err != nil {
		f.log.WithError(err).WithField("event", kind.String()).Warn("fuel event dropped")
	}
}

// Level returns the fuel left
func (f *Fuel) Level() uint8 {
	return f.level
}

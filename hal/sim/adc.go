package sim

import (
	"sync/atomic"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"

	"github.com/robotarena/esfw/hal"
)

// ADC is an analog channel whose raw reading is set from outside, e.g. by a console joystick
type ADC struct {
	raw atomic.Int32
	// MilliVoltsPerCount scales Raw into the sample voltage
	MilliVoltsPerCount int32
}

var _ hal.ADC = (*ADC)(nil)

func (a *ADC) Read() (analog.Sample, error) {
	raw := a.raw.Load()
	return analog.Sample{
		V:   physic.ElectricPotential(raw*a.MilliVoltsPerCount) * physic.MilliVolt,
		Raw: raw,
	}, nil
}

func (a *ADC) Set(raw int32) {
	a.raw.Store(raw)
}

// Nudge moves the reading by delta, clamped to [0, full]
func (a *ADC) Nudge(delta, full int32) int32 {
	for {
		old := a.raw.Load()
		next := min(max(old+delta, 0), full)
		if a.raw.CompareAndSwap(old, next) {
			return next
		}
	}
}

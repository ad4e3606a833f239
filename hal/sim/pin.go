package sim

import (
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
)

// Pin is a digital input another goroutine can drive, e.g. the console pressing a button
type Pin struct {
	level atomic.Bool
}

func (p *Pin) Read() gpio.Level {
	return gpio.Level(p.level.Load())
}

func (p *Pin) Set(l gpio.Level) {
	p.level.Store(bool(l))
}

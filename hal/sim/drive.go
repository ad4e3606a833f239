package sim

import (
	"sync"

	"periph.io/x/conn/v3/gpio"

	"github.com/robotarena/esfw/hal"
)

// hundredths of a unit covered per tick, by speed
var speedSteps = [4]uint32{0, 5, 10, 20}

// WorldConfig places the obstacles the simulated robot runs into
type WorldConfig struct {
	// BumpAfter closes the bump switch after this many cm of creeping; 0 never
	BumpAfter uint16
	// TapeAfter puts tape under the sensors after this many cm of creeping; 0 never
	TapeAfter uint16
	// BeaconAngle is where a spin first faces the beacon; 0 never
	BeaconAngle uint16
}

// DriveTrain moves only when Tick is called, so simulations stay deterministic
type DriveTrain struct {
	mu      sync.Mutex
	world   WorldConfig
	motion  hal.Motion
	moving  bool
	done    bool
	covered uint32 // hundredths
	starts  []hal.Motion
}

var _ hal.DriveTrain = (*DriveTrain)(nil)

func NewDriveTrain(world WorldConfig) *DriveTrain {
	return &DriveTrain{world: world}
}

func (d *DriveTrain) Start(m hal.Motion) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.motion = m
	d.moving = m.Kind != hal.MotionNone
	d.done = false
	d.covered = 0
	d.starts = append(d.starts, m)
}

func (d *DriveTrain) Stop() {
	d.mu.Lock()
	d.moving = false
	d.mu.Unlock()
}

func (d *DriveTrain) Done() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

func (d *DriveTrain) Travelled() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return uint16(d.covered / 100)
}

// Tick advances the current motion by one system tick
func (d *DriveTrain) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.moving {
		return
	}
	d.covered += speedSteps[d.motion.Speed&3]

	switch d.motion.Kind {
	case hal.MotionTranslate, hal.MotionRotate:
		if goal := uint32(d.motion.Amount) * 100; d.covered >= goal {
			d.covered = goal
			d.moving = false
			d.done = true
		}
	}
}

// Started returns every motion started so far
func (d *DriveTrain) Started() []hal.Motion {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]hal.Motion(nil), d.starts...)
}

func (d *DriveTrain) creptPast(cm uint16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cm > 0 && d.motion.Kind == hal.MotionCreep && d.covered >= uint32(cm)*100
}

// BeaconVisible reports whether a spin has turned far enough to face the beacon
func (d *DriveTrain) BeaconVisible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.world.BeaconAngle > 0 && d.motion.Kind == hal.MotionSpin && d.moving &&
		d.covered >= uint32(d.world.BeaconAngle)*100
}

// BumpPin reads High once a creep has reached the wall
func (d *DriveTrain) BumpPin() hal.Pin {
	return pinFunc(func() bool { return d.creptPast(d.world.BumpAfter) })
}

// TapePin reads High once a creep is over the tape
func (d *DriveTrain) TapePin() hal.Pin {
	return pinFunc(func() bool { return d.creptPast(d.world.TapeAfter) })
}

type pinFunc func() bool

func (f pinFunc) Read() gpio.Level {
	return gpio.Level(f())
}

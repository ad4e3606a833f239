// Package robot runs a Main board and a Drive board against one simulated world: an SPI bus between
// them, a drive train that only moves on a tick, and a beacon seen while the robot faces it.
package robot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/firmware/driveboard"
	"github.com/robotarena/esfw/firmware/mainboard"
	"github.com/robotarena/esfw/hal"
	"github.com/robotarena/esfw/hal/sim"
)

// Config has values for the simulated robot
type Config struct {
	Main  mainboard.Config
	Drive driveboard.Config
	World sim.WorldConfig

	// BeaconPeriod is the beacon pulse period in capture timer counts
	BeaconPeriod uint32
	// CountsPerTick is how far the capture timer advances per system tick
	CountsPerTick uint32
}

func DefaultConfig() Config {
	return Config{
		Main:  mainboard.DefaultConfig(),
		Drive: driveboard.DefaultConfig(),
		World: sim.WorldConfig{
			BumpAfter:   30,
			TapeAfter:   5,
			BeaconAngle: 45,
		},
		BeaconPeriod:  1250,
		CountsPerTick: 125,
	}
}

// Robot is both boards and their shared world
type Robot struct {
	Main     *mainboard.Board
	Drive    *driveboard.Board
	Train    *sim.DriveTrain
	StartPin *sim.Pin
	Bus      *sim.Bus

	beacon *sim.Beacon
	extra  []*es.Framework
	tick   time.Duration
	log    logrus.FieldLogger
	steps  uint64
}

func New(cfg Config, log logrus.FieldLogger) (*Robot, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Robot{
		Train:    sim.NewDriveTrain(cfg.World),
		StartPin: &sim.Pin{},
		Bus:      sim.NewBus(),
		tick:     cfg.Main.TickPeriod,
		log:      log,
	}
	if r.tick <= 0 {
		r.tick = es.DefaultTickPeriod
	}

	var err error
	r.Drive, err = driveboard.NewBoard(cfg.Drive, r.Bus.Follower(), r.Train, r.Train.BumpPin(), r.Train.TapePin(), log)
	if err != nil {
		return nil, fmt.Errorf("error creating drive board: %w", err)
	}
	r.Main, err = mainboard.NewBoard(cfg.Main, hal.NewLeader(r.Bus), r.StartPin, log)
	if err != nil {
		return nil, fmt.Errorf("error creating main board: %w", err)
	}

	r.beacon = &sim.Beacon{
		Visible:       r.Train.BeaconVisible,
		Period:        cfg.BeaconPeriod,
		CountsPerTick: cfg.CountsPerTick,
		Capture:       r.Main.Pulses.Capture,
		Rollover:      r.Main.Pulses.Rollover,
	}
	return r, nil
}

// Attach adds another board that shares the robot's clock, e.g. a Tug and Pilot over sim.Air. Attached
// boards are started after the robot and stepped after the Drive board.
func (r *Robot) Attach(fw *es.Framework) {
	r.extra = append(r.extra, fw)
}

// Start initialises the Drive board first so its response register is loaded before the first send
func (r *Robot) Start() error {
	if err := r.Drive.FW.Start(); err != nil {
		return fmt.Errorf("error starting drive board: %w", err)
	}
	if err := r.Main.FW.Start(); err != nil {
		return fmt.Errorf("error starting main board: %w", err)
	}
	var errs []error
	for _, fw := range r.extra {
		errs = append(errs, fw.Start())
	}
	return errors.Join(errs...)
}

// Step advances the world and both boards by one tick
func (r *Robot) Step() {
	r.Train.Tick()
	r.beacon.Tick()
	r.Main.FW.Step()
	r.Drive.FW.Step()
	for _, fw := range r.extra {
		fw.Step()
	}
	r.steps++
}

// StepUntil steps until done returns true or max steps have run, and reports whether done was reached
func (r *Robot) StepUntil(max int, done func() bool) bool {
	for i := 0; i < max; i++ {
		if done() {
			return true
		}
		r.Step()
	}
	return done()
}

// Steps returns the number of ticks simulated
func (r *Robot) Steps() uint64 {
	return r.steps
}

// Run steps in real time until the context is cancelled
func (r *Robot) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Step()
		}
	}
}

// Status is a one-line summary of both boards
func (r *Robot) Status() string {
	return fmt.Sprintf("t=%d %s | %s", r.steps, r.Main.Status(), r.Drive.Status())
}

// Package mainboard is the Main board image: the SPI leader that talks to the Drive board and the
// hierarchical game machine that decides what the robot does.
package mainboard

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotarena/esfw"
	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/firmware/beacon"
	"github.com/robotarena/esfw/firmware/button"
	"github.com/robotarena/esfw/hal"
	"github.com/robotarena/esfw/spicmd"
)

// Service priorities, lowest drained first
const (
	PrioStartButton es.Priority = iota
	PrioGame
	PrioLeader
)

// Timers
const (
	TimerPoll es.TimerID = iota
	TimerGame
	TimerStartDebounce
)

// Config has values for the Main board
type Config struct {
	Team          esfw.TeamColor
	TickPeriod    time.Duration
	PollTicks     int32
	GameTicks     int32
	DebounceTicks int32
	// beacon band in capture timer counts
	BeaconMinPeriod uint32
	BeaconMaxPeriod uint32

	SweepSpeed   spicmd.Speed
	AlignSpeed   spicmd.Speed
	AdvanceSpeed spicmd.Speed
	BackOffCM    uint8
	TurnDegrees  uint8
}

func DefaultConfig() Config {
	return Config{
		Team:            esfw.TeamRed,
		TickPeriod:      es.DefaultTickPeriod,
		PollTicks:       10,
		GameTicks:       130000,
		DebounceTicks:   button.DefaultDebounceTicks,
		BeaconMinPeriod: 1200,
		BeaconMaxPeriod: 1300,
		SweepSpeed:      spicmd.SpeedLow,
		AlignSpeed:      spicmd.SpeedLow,
		AdvanceSpeed:    spicmd.SpeedMedium,
		BackOffCM:       20,
		TurnDegrees:     90,
	}
}

// Board is a wired Main board
type Board struct {
	FW     *es.Framework
	Leader *Leader
	Game   *Game
	Start  *button.Button
	Pulses *beacon.PulseTimer
	Beacon *beacon.Checker
	cfg    Config
	log    logrus.FieldLogger
}

// NewBoard wires the services; start the board with FW.Start or FW.Run
func NewBoard(cfg Config, link Link, startPin hal.Pin, log logrus.FieldLogger) (*Board, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("board", esfw.BoardMain.String())
	fw := es.New(es.Config{TickPeriod: cfg.TickPeriod, Logger: log})

	b := &Board{FW: fw, Pulses: &beacon.PulseTimer{}, cfg: cfg, log: log}
	b.Leader = NewLeader(fw, link, LeaderConfig{
		PollTimer: TimerPoll,
		PollTicks: cfg.PollTicks,
		Notify:    PrioGame,
	}, log.WithField("service", "leader"))

	var err error
	b.Game, err = NewGame(fw, GameConfig{
		GameTimer:    TimerGame,
		GameTicks:    cfg.GameTicks,
		Leader:       PrioLeader,
		SweepSpeed:   cfg.SweepSpeed,
		AlignSpeed:   cfg.AlignSpeed,
		AdvanceSpeed: cfg.AdvanceSpeed,
		BackOffCM:    cfg.BackOffCM,
		TurnDegrees:  cfg.TurnDegrees,
	}, log.WithField("service", "game"))
	if err != nil {
		return nil, fmt.Errorf("error creating game machine: %w", err)
	}

	b.Start = button.New(fw, startPin, button.Config{
		Name:          "start",
		Pressed:       EvStartPressed,
		Dest:          PrioGame,
		Timer:         TimerStartDebounce,
		DebounceTicks: cfg.DebounceTicks,
		ActiveLevel:   gpio.High,
	}, log)

	b.Beacon = beacon.NewChecker(b.Pulses, fw, beacon.Config{
		MinPeriod: cfg.BeaconMinPeriod,
		MaxPeriod: cfg.BeaconMaxPeriod,
		Detected:  EvBeaconDetected,
		Lost:      EvBeaconLost,
		Dest:      PrioGame,
	}, log)

	for _, s := range []struct {
		prio es.Priority
		name string
		svc  es.Service
	}{
		{PrioStartButton, "start-button", b.Start},
		{PrioGame, "game", b.Game},
		{PrioLeader, "leader", b.Leader},
	} {
		if err := fw.Add(s.prio, s.name, s.svc, 0); err != nil {
			return nil, err
		}
	}

	for id, prio := range map[es.TimerID]es.Priority{
		TimerPoll:          PrioLeader,
		TimerGame:          PrioGame,
		TimerStartDebounce: PrioStartButton,
	} {
		if err := fw.BindTimer(id, prio); err != nil {
			return nil, err
		}
	}

	fw.AddChecker("start-button", b.Start.Check)
	fw.AddChecker("beacon", b.Beacon.Check)
	fw.AddChecker("spi-rx", LinkChecker(link, fw, PrioLeader))
	return b, nil
}

// Status is a one-line summary for the console
func (b *Board) Status() string {
	return fmt.Sprintf("team=%s game=%s leader=%s comms-errors=%d dropped=%d",
		b.cfg.Team, b.Game.State(), b.Leader.State(), b.Leader.CommsErrors(), b.FW.Dropped())
}

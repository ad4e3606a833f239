// Package tug is the Tug board image: an XBee link to one Pilot at a time, the pairing session machine,
// and the propulsion and fuel services the session drives.
package tug

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotarena/esfw"
	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/firmware/button"
	"github.com/robotarena/esfw/hal"
	"github.com/robotarena/esfw/xbee"
)

// Service priorities, lowest drained first
const (
	PrioXBeeRx es.Priority = iota
	PrioSession
	PrioPropulsion
	PrioFuel
	PrioXBeeTx
	PrioPairButton
)

// Timers
const (
	TimerComms es.TimerID = iota
	TimerTx
	TimerFrame
	TimerPairDebounce
)

// Config has values for the Tug board
type Config struct {
	Address           uint16
	Team              esfw.TeamColor
	TickPeriod        time.Duration
	CommsTimeoutTicks int32
	TxPeriodTicks     int32
	// FrameTimeoutTicks discards a partial frame after this long without a byte; 0 waits forever
	FrameTimeoutTicks int32
	DebounceTicks     int32
	PairActive        gpio.Level
	FuelCapacity      uint8
	BurnPerCommand    uint8
}

func DefaultConfig() Config {
	return Config{
		Address:           esfw.DefaultTugAddress,
		Team:              esfw.TeamRed,
		TickPeriod:        es.DefaultTickPeriod,
		CommsTimeoutTicks: DefaultCommsTimeoutTicks,
		TxPeriodTicks:     DefaultTxPeriodTicks,
		FrameTimeoutTicks: 100,
		DebounceTicks:     button.DefaultDebounceTicks,
		PairActive:        gpio.High,
		FuelCapacity:      DefaultFuelCapacity,
		BurnPerCommand:    DefaultBurnPerCommand,
	}
}

// Board is a wired Tug board
type Board struct {
	FW         *es.Framework
	Rx         *xbee.RxService
	Tx         *xbee.TxService
	Session    *Session
	Propulsion *Propulsion
	Fuel       *Fuel
	Pair       *button.Button
	cfg        Config
}

// NewBoard wires the services around a UART to the XBee. pairPin may be nil.
func NewBoard(cfg Config, uart hal.UART, pairPin hal.Pin, thrusters hal.Thrusters, log logrus.FieldLogger) (*Board, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("board", esfw.BoardTug.String())
	fw := es.New(es.Config{TickPeriod: cfg.TickPeriod, Logger: log})

	b := &Board{FW: fw, cfg: cfg}
	b.Tx = xbee.NewTxService(uart, log.WithField("service", "xbee-tx"))
	b.Fuel = NewFuel(fw, FuelConfig{
		Capacity:       cfg.FuelCapacity,
		BurnPerCommand: cfg.BurnPerCommand,
		Propulsion:     PrioPropulsion,
	}, log.WithField("service", "fuel"))
	b.Propulsion = NewPropulsion(thrusters, fw, PrioFuel, log.WithField("service", "propulsion"))

	var err error
	b.Session, err = NewSession(fw, b.Tx, b.Fuel, SessionConfig{
		Team:              cfg.Team,
		CommsTimer:        TimerComms,
		TxTimer:           TimerTx,
		CommsTimeoutTicks: cfg.CommsTimeoutTicks,
		TxPeriodTicks:     cfg.TxPeriodTicks,
		Self:              PrioSession,
		Propulsion:        PrioPropulsion,
		Fuel:              PrioFuel,
	}, log.WithField("service", "session"))
	if err != nil {
		return nil, fmt.Errorf("error creating session machine: %w", err)
	}
	b.Rx = xbee.NewRxService(fw, xbee.RxConfig{
		FrameTimer:        TimerFrame,
		FrameTimeoutTicks: cfg.FrameTimeoutTicks,
	}, b.Session.HandleFrame, log.WithField("service", "xbee-rx"))

	services := []struct {
		prio es.Priority
		name string
		svc  es.Service
	}{
		{PrioXBeeRx, "xbee-rx", b.Rx},
		{PrioSession, "session", b.Session},
		{PrioPropulsion, "propulsion", b.Propulsion},
		{PrioFuel, "fuel", b.Fuel},
		{PrioXBeeTx, "xbee-tx", b.Tx},
	}
	if pairPin != nil {
		b.Pair = button.New(fw, pairPin, button.Config{
			Name:          "pair",
			Pressed:       EvPairButton,
			Dest:          PrioSession,
			Timer:         TimerPairDebounce,
			DebounceTicks: cfg.DebounceTicks,
			ActiveLevel:   cfg.PairActive,
		}, log)
		services = append(services, struct {
			prio es.Priority
			name string
			svc  es.Service
		}{PrioPairButton, "pair-button", b.Pair})
	}
	for _, s := range services {
		if err := fw.Add(s.prio, s.name, s.svc, 0); err != nil {
			return nil, err
		}
	}

	for id, prio := range map[es.TimerID]es.Priority{
		TimerComms:        PrioSession,
		TimerTx:           PrioSession,
		TimerFrame:        PrioXBeeRx,
		TimerPairDebounce: PrioPairButton,
	} {
		if err := fw.BindTimer(id, prio); err != nil {
			return nil, err
		}
	}

	fw.AddChecker("xbee-rx", xbee.RxChecker(uart, fw, PrioXBeeRx, log))
	fw.AddChecker("xbee-tx", xbee.TxChecker(uart, b.Tx, fw, PrioXBeeTx))
	if b.Pair != nil {
		fw.AddChecker("pair-button", b.Pair.Check)
	}
	return b, nil
}

// Status is a one-line summary for the console
func (b *Board) Status() string {
	t := b.Propulsion.Current()
	return fmt.Sprintf("team=%s session=%s peer=0x%04X fuel=%d thrust=(%d,%d boost=%t) rejected=%d dropped=%d",
		b.cfg.Team, b.Session.State(), b.Session.Peer(), b.Fuel.Level(), t.X, t.Yaw, t.Boost,
		b.Session.Rejected(), b.FW.Dropped())
}

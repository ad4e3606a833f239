// Package pilot is the Pilot board image: it pairs with one Tug over XBee and streams the operator's
// joystick and buttons to it.
package pilot

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
	PrioLink
	PrioXBeeTx
	PrioRefuelButton
)

// Timers
const (
	TimerComms es.TimerID = iota
	TimerTx
	TimerFrame
	TimerRefuelDebounce
)

// Config has values for the Pilot board
type Config struct {
	Address           uint16
	Tug               uint16
	Team              esfw.TeamColor
	TickPeriod        time.Duration
	CommsTimeoutTicks int32
	TxPeriodTicks     int32
	FrameTimeoutTicks int32
	DebounceTicks     int32
	RefuelActive      gpio.Level
	ADCMax            int32
}

func DefaultConfig() Config {
	return Config{
		Address:           esfw.DefaultPilotAddress,
		Tug:               esfw.DefaultTugAddress,
		Team:              esfw.TeamRed,
		TickPeriod:        es.DefaultTickPeriod,
		CommsTimeoutTicks: DefaultCommsTimeoutTicks,
		TxPeriodTicks:     DefaultTxPeriodTicks,
		FrameTimeoutTicks: 100,
		DebounceTicks:     button.DefaultDebounceTicks,
		RefuelActive:      gpio.High,
		ADCMax:            DefaultADCMax,
	}
}

// Inputs are the Pilot's operator controls; any of them may be nil
type Inputs struct {
	Thrust hal.ADC
	Yaw    hal.ADC
	Refuel hal.Pin
	Mode3  hal.Pin
}

// Board is a wired Pilot board
type Board struct {
	FW     *es.Framework
	Rx     *xbee.RxService
	Tx     *xbee.TxService
	Link   *Link
	Refuel *button.Button
	cfg    Config
}

func NewBoard(cfg Config, uart hal.UART, in Inputs, log logrus.FieldLogger) (*Board, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("board", esfw.BoardPilot.String())
	fw := es.New(es.Config{TickPeriod: cfg.TickPeriod, Logger: log})

	b := &Board{FW: fw, cfg: cfg}
	b.Tx = xbee.NewTxService(uart, log.WithField("service", "xbee-tx"))

	var err error
	b.Link, err = NewLink(fw, b.Tx, Controls{
		Thrust: in.Thrust,
		Yaw:    in.Yaw,
		Mode3:  in.Mode3,
		ADCMax: cfg.ADCMax,
	}, LinkConfig{
		Tug:               cfg.Tug,
		Team:              cfg.Team,
		CommsTimer:        TimerComms,
		TxTimer:           TimerTx,
		CommsTimeoutTicks: cfg.CommsTimeoutTicks,
		TxPeriodTicks:     cfg.TxPeriodTicks,
		Self:              PrioLink,
	}, log.WithField("service", "link"))
	if err != nil {
		return nil, fmt.Errorf("error creating link machine: %w", err)
	}
	b.Rx = xbee.NewRxService(fw, xbee.RxConfig{
		FrameTimer:        TimerFrame,
		FrameTimeoutTicks: cfg.FrameTimeoutTicks,
	}, b.Link.HandleFrame, log.WithField("service", "xbee-rx"))

	if err := fw.Add(PrioXBeeRx, "xbee-rx", b.Rx, 0); err != nil {
		return nil, err
	}
	if err := fw.Add(PrioLink, "link", b.Link, 0); err != nil {
		return nil, err
	}
	if err := fw.Add(PrioXBeeTx, "xbee-tx", b.Tx, 0); err != nil {
		return nil, err
	}
	if in.Refuel != nil {
		b.Refuel = button.New(fw, in.Refuel, button.Config{
			Name:          "refuel",
			Pressed:       EvRefuelPressed,
			Dest:          PrioLink,
			Timer:         TimerRefuelDebounce,
			DebounceTicks: cfg.DebounceTicks,
			ActiveLevel:   cfg.RefuelActive,
		}, log)
		if err := fw.Add(PrioRefuelButton, "refuel-button", b.Refuel, 0); err != nil {
			return nil, err
		}
	}

	for id, prio := range map[es.TimerID]es.Priority{
		TimerComms:          PrioLink,
		TimerTx:             PrioLink,
		TimerFrame:          PrioXBeeRx,
		TimerRefuelDebounce: PrioRefuelButton,
	} {
		if err := fw.BindTimer(id, prio); err != nil {
			return nil, err
		}
	}

	fw.AddChecker("xbee-rx", xbee.RxChecker(uart, fw, PrioXBeeRx, log))
	fw.AddChecker("xbee-tx", xbee.TxChecker(uart, b.Tx, fw, PrioXBeeTx))
	if b.Refuel != nil {
		fw.AddChecker("refuel-button", b.Refuel.Check)
	}
	return b, nil
}

// Status is a one-line summary for the console
func (b *Board) Status() string {
	st := b.Link.Status()
	return fmt.Sprintf("team=%s link=%s tug=0x%04X tug-fuel=%d sent=%d/%d rejected=%d dropped=%d",
		b.cfg.Team, b.Link.State(), b.cfg.Tug, st.Fuel,
		b.Link.Sent(xbee.MsgRequestToPair), b.Link.Sent(xbee.MsgControl), b.Link.Rejected(), b.FW.Dropped())
}

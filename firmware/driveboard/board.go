// Package driveboard is the Drive board image: an SPI follower that turns command words from the Main
// board into drive train motions and reports their outcomes.
package driveboard

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotarena/esfw"
	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/hal"
)

const PrioDecoder es.Priority = 0

// Config has values for the Drive board
type Config struct {
	TickPeriod time.Duration
	// levels read by a closed bump switch and by a sensor over tape
	BumpActive gpio.Level
	TapeActive gpio.Level
}

func DefaultConfig() Config {
	return Config{
		TickPeriod: es.DefaultTickPeriod,
		BumpActive: gpio.High,
		TapeActive: gpio.High,
	}
}

// Board is a wired Drive board
type Board struct {
	FW      *es.Framework
	Decoder *Decoder
	drive   hal.DriveTrain
}

func NewBoard(cfg Config, port hal.Follower, drive hal.DriveTrain, bump, tape hal.Pin, log logrus.FieldLogger) (*Board, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("board", esfw.BoardDrive.String())
	fw := es.New(es.Config{TickPeriod: cfg.TickPeriod, Logger: log})
	b := &Board{
		FW:      fw,
		Decoder: NewDecoder(port, drive, log.WithField("service", "decoder")),
		drive:   drive,
	}
	if err := fw.Add(PrioDecoder, "decoder", b.Decoder, 0); err != nil {
		return nil, err
	}

	// the command word is queued ahead of any outcome detected in the same pass
	fw.AddChecker("spi-rx", FollowerChecker(port, fw, PrioDecoder))
	fw.AddChecker("motion", edgeChecker(drive.Done, fw, EvMotionDone))
	if bump != nil {
		fw.AddChecker("bump", edgeChecker(func() bool { return bump.Read() == cfg.BumpActive }, fw, EvBumped))
	}
	if tape != nil {
		fw.AddChecker("tape", edgeChecker(func() bool { return tape.Read() == cfg.TapeActive }, fw, EvTapeFound))
	}
	return b, nil
}

// FollowerChecker posts WordReceived when the leader has clocked in a word
func FollowerChecker(port hal.Follower, p es.Poster, dest es.Priority) es.Checker {
	return func() bool {
		if !port.RxFull() {
			return false
		}
		return p.Post(dest, es.Event{Kind: es.WordReceived, Param: port.ReadWord()}) == nil
	}
}

// edgeChecker posts kind when sample goes from false to true
func edgeChecker(sample func() bool, p es.Poster, kind es.EventKind) es.Checker {
	last := false
	return func() bool {
		now := sample()
		fired := false
		if now && !last {
			fired = p.Post(PrioDecoder, es.Event{Kind: kind}) == nil
		}
		last = now
		return fired
	}
}

// Status is a one-line summary for the console
func (b *Board) Status() string {
	return fmt.Sprintf("drive=%s response=%s travelled=%d commands=%d",
		b.Decoder.State(), b.Decoder.Response(), b.drive.Travelled(), b.Decoder.Commands())
}

// Package beacon measures the period of the beacon's IR pulses. Capture and Rollover are called from
// the input-capture and timer-overflow interrupts; the main loop reads a snapshot published atomically
// after every capture.
package beacon

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/robotarena/esfw/es"
)

// PulseTimer is a single-producer single-consumer cell. Only the interrupt side writes rollovers and
// lastRise; the snapshot is the only value the main loop reads.
type PulseTimer struct {
	rollovers uint32
	lastRise  uint32
	primed    bool

	// period in the low 32 bits, capture sequence number in the high 32
	snapshot atomic.Uint64
}

// Rollover records a 16-bit capture timer overflow
func (p *PulseTimer) Rollover() {
	p.rollovers++
}

// Capture records a rising edge at capture timer value t
func (p *PulseTimer) Capture(t uint16) {
	now := p.rollovers<<16 | uint32(t)
	if p.primed {
		period := now - p.lastRise
		seq := p.snapshot.Load()>>32 + 1
		p.snapshot.Store(seq<<32 | uint64(period))
	}
	p.lastRise = now
	p.primed = true
}

// Period returns the last measured period in capture timer counts and the number of periods measured
// so far; a torn read is impossible.
func (p *PulseTimer) Period() (period uint32, seq uint32) {
	s := p.snapshot.Load()
	return uint32(s), uint32(s >> 32)
}

// Config describes the beacon the robot is looking for
type Config struct {
	MinPeriod, MaxPeriod uint32
	// StaleChecks drops the beacon when no capture arrived for this many checker calls
	StaleChecks int
	Detected    es.EventKind
	Lost        es.EventKind
	Dest        es.Priority
}

// Checker posts Detected when the measured period enters the band and Lost when it leaves it or the
// pulses stop.
type Checker struct {
	pulses  *PulseTimer
	p       es.Poster
	cfg     Config
	log     logrus.FieldLogger
	lastSeq uint32
	stale   int
	inBand  bool
}

func NewChecker(pulses *PulseTimer, p es.Poster, cfg Config, log logrus.FieldLogger) *Checker {
	if cfg.StaleChecks <= 0 {
		cfg.StaleChecks = 20
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Checker{pulses: pulses, p: p, cfg: cfg, log: log}
}

func (c *Checker) Check() bool {
	period, seq := c.pulses.Period()
	if seq != c.lastSeq {
		c.lastSeq = seq
		c.stale = 0
	} else if c.stale < c.cfg.StaleChecks {
		c.stale++
	}

	now := c.stale < c.cfg.StaleChecks && seq > 0 && period >= c.cfg.MinPeriod && period <= c.cfg.MaxPeriod
	prev := c.inBand
	c.inBand = now
	if now == prev {
		return false
	}

	kind := c.cfg.Lost
	if now {
		kind = c.cfg.Detected
	}
	if kind == es.NoEvent {
		return false
	}
	c.log.WithField("period", period).Debug(kind.String())
	return c.p.Post(c.cfg.Dest, es.Event{Kind: kind}) == nil
}

// InBand reports the retained detection state
func (c *Checker) InBand() bool {
	return c.inBand
}

package es

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Priority identifies a service and orders dispatch: lower values are drained first in every pass.
type Priority uint8

// Service is one state machine. Init sets up hardware and private state; it runs once from Start and a
// returned error leaves the service in its failed pseudo-state. Run consumes one event from the
// service's own queue and returns None, or an Error event on an unrecoverable fault.
type Service interface {
	Init() error
	Run(e Event) Event
}

// Poster is the part of the runtime services use to talk to each other
type Poster interface {
	Post(p Priority, e Event) error
}

// TimerControl arms and stops named timers
type TimerControl interface {
	InitTimer(id TimerID, ticks int32) error
	StopTimer(id TimerID)
}

// Runtime is everything a service may call on the framework
type Runtime interface {
	Poster
	TimerControl
}

// Checker polls one hardware signal and reports whether it posted an event
type Checker func() bool

// Config has values for the scheduler loop
type Config struct {
	// TickPeriod is the wall-clock length of one timer tick in Run
	TickPeriod time.Duration
	Logger     logrus.FieldLogger
}

// DefaultTickPeriod matches the 1 kHz system tick the board timers are written against
const DefaultTickPeriod = time.Millisecond

type entry struct {
	prio   Priority
	name   string
	svc    Service
	q      *queue
	failed bool
}

type namedChecker struct {
	name string
	fn   Checker
}

// Framework owns the services, their queues, the timer bank and the checker list for one board.
// It is not safe for concurrent use; everything is driven from the goroutine calling Step or Run.
type Framework struct {
	log      logrus.FieldLogger
	tick     time.Duration
	entries  []*entry
	byPrio   map[Priority]*entry
	timers   timerBank
	checkers []namedChecker
	started  bool
	dropped  uint64
}

var _ Runtime = (*Framework)(nil)

// New creates an empty Framework
func New(cfg Config) *Framework {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = DefaultTickPeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	f := &Framework{
		log:    cfg.Logger,
		tick:   cfg.TickPeriod,
		byPrio: map[Priority]*entry{},
	}
	f.timers.post = f.Post
	return f
}

// Add registers a service at a fixed priority. The name is only used in logs.
func (f *Framework) Add(prio Priority, name string, svc Service, queueSize int) error {
	if _, ok := f.byPrio[prio]; ok {
		return fmt.Errorf("add %q at %d: %w", name, prio, ErrDuplicateService)
	}
	e := &entry{prio: prio, name: name, svc: svc, q: newQueue(queueSize)}
	f.byPrio[prio] = e
	f.entries = append(f.entries, e)
	sort.Slice(f.entries, func(i, j int) bool { return f.entries[i].prio < f.entries[j].prio })
	return nil
}

// AddChecker appends an event checker; checkers run in registration order once per Step
func (f *Framework) AddChecker(name string, fn Checker) {
	f.checkers = append(f.checkers, namedChecker{name: name, fn: fn})
}

// Start runs every service's Init in priority order and posts Init to each one that succeeded.
// Services that fail are logged, never dispatched, and refuse posts; their errors are joined.
func (f *Framework) Start() error {
	var errs []error
	for _, e := range f.entries {
		if err := e.svc.Init(); err != nil {
			e.failed = true
			f.log.WithError(err).WithField("service", e.name).Error("service failed to initialise")
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
			continue
		}
		e.q.push(Event{Kind: Init})
	}
	f.started = true
	return errors.Join(errs...)
}

// Post appends an event to a service's queue. It never blocks; a full queue is reported and the
// event dropped.
func (f *Framework) Post(prio Priority, ev Event) error {
	e, ok := f.byPrio[prio]
	if !ok {
		return fmt.Errorf("post %v to %d: %w", ev, prio, ErrUnknownService)
	}
	if e.failed {
		return fmt.Errorf("post %v to %s: %w", ev, e.name, ErrServiceFailed)
	}
	if !e.q.push(ev) {
		f.dropped++
		f.log.WithField("service", e.name).WithField("event", ev.String()).Warn("queue full, event dropped")
		return fmt.Errorf("post %v to %s: %w", ev, e.name, ErrQueueFull)
	}
	return nil
}

// PostAll posts to every healthy service and returns the first failure
func (f *Framework) PostAll(ev Event) error {
	var first error
	for _, e := range f.entries {
		if e.failed {
			continue
		}
		if err := f.Post(e.prio, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// DispatchOnePass drains every queue once in ascending priority order. Events posted during the pass
// to a service that has already been drained wait for the next pass.
func (f *Framework) DispatchOnePass() int {
	handled := 0
	for _, e := range f.entries {
		if e.failed {
			continue
		}
		// self-posts append to the queue being drained and are handled in this pass
		for {
			ev, ok := e.q.pop()
			if !ok {
				break
			}
			handled++
			if out := e.svc.Run(ev); out.Kind == Error {
				f.log.WithField("service", e.name).WithField("event", ev.String()).
					WithField("param", out.Param).Error("service returned error event")
			}
		}
	}
	return handled
}

// RunCheckers calls every checker once
func (f *Framework) RunCheckers() {
	for _, c := range f.checkers {
		c.fn()
	}
}

// Step is one scheduler iteration: one timer tick, every checker, one dispatch pass
func (f *Framework) Step() {
	f.timers.tick()
	f.RunCheckers()
	f.DispatchOnePass()
}

// StepN runs n scheduler iterations
func (f *Framework) StepN(n int) {
	for i := 0; i < n; i++ {
		f.Step()
	}
}

// Run calls Start if needed and then steps once per tick period until the context is done
func (f *Framework) Run(ctx context.Context) error {
	if !f.started {
		if err := f.Start(); err != nil {
			f.log.WithError(err).Warn("running with failed services")
		}
	}

	ticker := time.NewTicker(f.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.Step()
		}
	}
}

// Pending returns the number of events waiting for a service
func (f *Framework) Pending(prio Priority) int {
	e, ok := f.byPrio[prio]
	if !ok {
		return 0
	}
	return e.q.len()
}

// Failed reports whether a service is in its failed pseudo-state
func (f *Framework) Failed(prio Priority) bool {
	e, ok := f.byPrio[prio]
	return ok && e.failed
}

// Dropped returns how many posts have been refused because a queue was full
func (f *Framework) Dropped() uint64 {
	return f.dropped
}

// Logger returns the framework logger so boards can derive service loggers from it
func (f *Framework) Logger() logrus.FieldLogger {
	return f.log
}

// BindTimer sets the service a timer's timeout is posted to
func (f *Framework) BindTimer(id TimerID, prio Priority) error {
	return f.timers.bind(id, prio)
}

// InitTimer (re)arms a timer. Arming an active timer restarts its countdown.
func (f *Framework) InitTimer(id TimerID, ticks int32) error {
	return f.timers.init(id, ticks)
}

// StopTimer deactivates a timer without firing it
func (f *Framework) StopTimer(id TimerID) {
	f.timers.stop(id)
}

// TimerActive reports whether a timer is counting down
func (f *Framework) TimerActive(id TimerID) bool {
	return f.timers.active(id)
}

// TimerRemaining returns the ticks left on an active timer, or 0
func (f *Framework) TimerRemaining(id TimerID) int32 {
	return f.timers.remaining(id)
}

// Tick advances only the timer bank; Step is normally used instead
func (f *Framework) Tick() {
	f.timers.tick()
}

// Package telemetry uploads state machine transitions to a match log server so a run can be replayed
// after the fact. Recording never blocks the scheduler: transitions are queued and posted from their own
// goroutine, and dropped when the queue is full.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/calvinmclean/babyapi"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

// DefaultQueueSize is how many transitions may wait for upload
const DefaultQueueSize = 64

// Sink receives transitions from board state machines
type Sink interface {
	Record(machine, from, to string)
}

// Noop discards everything
type Noop struct{}

func (Noop) Record(string, string, string) {}

// Transition is one state change of one machine on one board
type Transition struct {
	// include NilResource so we don't implement Render/Bind which are not needed
	*babyapi.NilResource

	ID      string    `json:"id"`
	Match   string    `json:"match"`
	Board   string    `json:"board"`
	Machine string    `json:"machine"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	At      time.Time `json:"at"`
}

func (t Transition) GetID() string {
	return t.ID
}

// Recorder is a Sink that posts to a match log server
type Recorder struct {
	client  *babyapi.Client[*Transition]
	match   string
	board   string
	queue   chan *Transition
	log     logrus.FieldLogger
	now     func() time.Time
	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

var _ Sink = (*Recorder)(nil)

// NewRecorder creates a recorder for one board. Every recorder created by a process should share the
// match ID so the server can group them; an empty match gets a fresh one.
func NewRecorder(addr, match, board string, queueSize int, log logrus.FieldLogger) *Recorder {
	if match == "" {
		match = NewMatchID()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{
		client: babyapi.NewClient[*Transition](addr, "/transitions"),
		match:  match,
		board:  board,
		queue:  make(chan *Transition, queueSize),
		log:    log.WithField("match", match),
		now:    time.Now,
	}
}

// NewMatchID returns a sortable unique match identifier
func NewMatchID() string {
	return xid.New().String()
}

func (r *Recorder) Match() string {
	return r.match
}

// Record queues a transition for upload
func (r *Recorder) Record(machine, from, to string) {
	t := &Transition{
		ID:      xid.New().String(),
		Match:   r.match,
		Board:   r.board,
		Machine: machine,
		From:    from,
		To:      to,
		At:      r.now(),
	}
	select {
	case r.queue <- t:
	default:
		r.dropped.Add(1)
	}
}

// Run uploads queued transitions until the context is done
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-r.queue:
			if err := r.post(ctx, t); err != nil {
				r.failed.Add(1)
				r.log.WithError(err).WithField("machine", t.Machine).Warn("transition not uploaded")
				continue
			}
			r.sent.Add(1)
		}
	}
}

func (r *Recorder) post(ctx context.Context, t *Transition) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.client.Post(ctx, t); err != nil {
		return fmt.Errorf("error posting transition: %w", err)
	}
	return nil
}

func (r *Recorder) Sent() uint64 {
	return r.sent.Load()
}

func (r *Recorder) Failed() uint64 {
	return r.failed.Load()
}

func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

package es

import "fmt"

// TimerID names one of the fixed timers. Boards declare their own constants below MaxTimers.
type TimerID uint8

// MaxTimers is the size of the timer bank
const MaxTimers = 16

type timer struct {
	bound  bool
	dest   Priority
	active bool
	count  int32
}

type timerBank struct {
	timers [MaxTimers]timer
	post   func(Priority, Event) error
}

func (tb *timerBank) bind(id TimerID, prio Priority) error {
	if int(id) >= MaxTimers {
		return fmt.Errorf("bind timer %d: %w", id, ErrInvalidTimer)
	}
	tb.timers[id].bound = true
	tb.timers[id].dest = prio
	return nil
}

func (tb *timerBank) init(id TimerID, ticks int32) error {
	if int(id) >= MaxTimers {
		return fmt.Errorf("init timer %d: %w", id, ErrInvalidTimer)
	}
	t := &tb.timers[id]
	if !t.bound {
		return fmt.Errorf("init timer %d: %w", id, ErrTimerUnbound)
	}
	// a zero-length timer still fires on the next tick rather than never
	if ticks < 1 {
		ticks = 1
	}
	t.count = ticks
	t.active = true
	return nil
}

func (tb *timerBank) stop(id TimerID) {
	if int(id) >= MaxTimers {
		return
	}
	tb.timers[id].active = false
	tb.timers[id].count = 0
}

func (tb *timerBank) active(id TimerID) bool {
	return int(id) < MaxTimers && tb.timers[id].active
}

func (tb *timerBank) remaining(id TimerID) int32 {
	if !tb.active(id) {
		return 0
	}
	return tb.timers[id].count
}

func (tb *timerBank) tick() {
	for i := range tb.timers {
		t := &tb.timers[i]
		if !t.active {
			continue
		}
		t.count--
		if t.count > 0 {
			continue
		}
		t.active = false
		// overflow is already logged by Post; the periodic nature of timers regenerates the signal
		_ = tb.post(t.dest, Event{Kind: Timeout, Param: uint16(i)})
	}
}

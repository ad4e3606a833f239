package es

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// During is the function a state runs for every event delivered while it is current, including the
// Entry, EntryHistory and Exit pseudo-events. It never changes the current state itself; it asks for a
// transition through its Result.
type During[S comparable] func(e Event) Result[S]

// Result is what a During function hands back to the machine. Event is passed on to the caller (and so
// to the parent level): return it unchanged to let the parent react too, remap it, or set it to None to
// consume it.
type Result[S comparable] struct {
	Event      Event
	Next       S
	Transition bool
}

// Pass forwards the event unchanged without a transition
func Pass[S comparable](e Event) Result[S] {
	return Result[S]{Event: e}
}

// Consume swallows the event
func Consume[S comparable]() Result[S] {
	return Result[S]{Event: None}
}

// GoTo requests a transition and consumes the event
func GoTo[S comparable](next S) Result[S] {
	return Result[S]{Event: None, Next: next, Transition: true}
}

// Machine is one level of a hierarchical state machine. A composite state's During function owns the
// child Machine: it calls Start on Entry, Stop on Exit and Run for everything else before deciding what
// to do at its own level.
type Machine[S comparable] struct {
	name    string
	initial S
	current S
	states  map[S]During[S]
	log     logrus.FieldLogger
	running bool

	// OnTransition is called after the new state's entry action ran
	OnTransition func(from, to S)
}

// NewMachine validates the state table and returns a stopped machine sitting in its initial state
func NewMachine[S comparable](name string, initial S, states map[S]During[S], log logrus.FieldLogger) (*Machine[S], error) {
	if _, ok := states[initial]; !ok {
		return nil, fmt.Errorf("machine %s initial state %v: %w", name, initial, ErrUnknownState)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Machine[S]{
		name:    name,
		initial: initial,
		current: initial,
		states:  states,
		log:     log.WithField("machine", name),
	}, nil
}

// Start enters the machine. With Entry the initial state is entered; with EntryHistory the state the
// machine was in when it was last stopped is resumed.
func (m *Machine[S]) Start(kind EventKind) {
	if kind != EntryHistory {
		kind = Entry
		m.current = m.initial
	}
	m.running = true
	m.enter(kind)
}

// Stop runs the exit action of the current state. The state is remembered for EntryHistory.
func (m *Machine[S]) Stop() {
	if !m.running {
		return
	}
	m.exit()
	m.running = false
}

// Run delivers one event to the current state and performs any transition it asks for: exit the old
// state, switch, enter the new one. The returned event is whatever the during function passed on. A
// machine that is not running hands every other event back unchanged.
func (m *Machine[S]) Run(e Event) Event {
	switch e.Kind {
	case Entry, EntryHistory:
		m.Start(e.Kind)
		return None
	case Exit:
		m.Stop()
		return None
	}
	if !m.running {
		return e
	}

	r := m.states[m.current](e)
	if r.Transition {
		m.transition(r.Next)
	}
	return r.Event
}

// Current returns the active state
func (m *Machine[S]) Current() S {
	return m.current
}

// Running reports whether the machine has been started and not stopped
func (m *Machine[S]) Running() bool {
	return m.running
}

func (m *Machine[S]) transition(next S) {
	if _, ok := m.states[next]; !ok {
		m.log.WithField("from", fmt.Sprint(m.current)).WithField("to", fmt.Sprint(next)).
			Error("refusing transition to unknown state")
		return
	}
	from := m.current
	m.exit()
	m.current = next
	m.enter(Entry)

	m.log.WithField("from", fmt.Sprint(from)).WithField("to", fmt.Sprint(next)).Debug("transition")
	if m.OnTransition != nil {
		m.OnTransition(from, next)
	}
}

// Transitions asked for while handling Entry or Exit are ignored.
func (m *Machine[S]) enter(kind EventKind) {
	m.states[m.current](Event{Kind: kind})
}

func (m *Machine[S]) exit() {
	m.states[m.current](Event{Kind: Exit})
}

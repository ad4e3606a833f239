// Package es is a small Events and Services runtime: bounded per-service event queues drained in
// priority order, a bank of tick-driven timers, polled event checkers and a driver for hierarchical
// state machines. Everything runs on one goroutine; a service's Run is never interrupted by another
// event.
package es

import (
	"fmt"
	"strconv"
	"sync"
)

// EventKind tags an Event. The framework reserves the values below UserEvent. Each board package numbers
// its events inside its own block of EventRange kinds above UserEvent, so kinds from different boards
// never collide in one binary.
type EventKind uint16

const (
	NoEvent EventKind = iota
	Error
	Init
	Timeout
	Entry
	EntryHistory
	Exit
	NewKey
	// ByteReceived carries one UART byte in Param
	ByteReceived
	// TxEmpty means the UART can take another byte
	TxEmpty
	// WordReceived carries one SPI word in Param
	WordReceived

	// UserEvent is the first kind available to application code
	UserEvent EventKind = 32
	// EventRange is the size of one board package's block of kinds
	EventRange EventKind = 32
)

var (
	namesMtx sync.RWMutex
	names    = map[EventKind]string{
		NoEvent:      "NoEvent",
		Error:        "Error",
		Init:         "Init",
		Timeout:      "Timeout",
		Entry:        "Entry",
		EntryHistory: "EntryHistory",
		Exit:         "Exit",
		NewKey:       "NewKey",
		ByteReceived: "ByteReceived",
		TxEmpty:      "TxEmpty",
		WordReceived: "WordReceived",
	}
)

// RegisterNames gives application event kinds a printable name for logs and the debug console. A kind
// that already has a different name is left alone and reported with ErrNameTaken; nothing from m is
// registered in that case.
func RegisterNames(m map[EventKind]string) error {
	namesMtx.Lock()
	defer namesMtx.Unlock()
	for k, v := range m {
		if old, ok := names[k]; ok && old != v {
			return fmt.Errorf("%w: kind %d is %q, not %q", ErrNameTaken, k, old, v)
		}
	}
	for k, v := range m {
		names[k] = v
	}
	return nil
}

// MustRegisterNames is RegisterNames for package init blocks
func MustRegisterNames(m map[EventKind]string) {
	err := RegisterNames(m)
	if err != nil {
		panic(err)
	}
}

func (k EventKind) String() string {
	namesMtx.RLock()
	name, ok := names[k]
	namesMtx.RUnlock()
	if ok {
		return name
	}
	return "Event(" + strconv.Itoa(int(k)) + ")"
}

// Event is copied into queues by value and read-only once posted
type Event struct {
	Kind  EventKind
	Param uint16
}

// None is the "no event" value returned by Run functions that consumed their input
var None = Event{Kind: NoEvent}

func (e Event) String() string {
	return e.Kind.String() + "(0x" + strconv.FormatUint(uint64(e.Param), 16) + ")"
}

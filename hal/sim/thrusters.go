package sim

import (
	"sync"

	"github.com/robotarena/esfw/hal"
)

// Thrusters remembers the last setting applied and how often the Tug was idled
type Thrusters struct {
	mu      sync.Mutex
	current hal.Thrust
	applied uint64
	idles   uint64
}

var _ hal.Thrusters = (*Thrusters)(nil)

func (t *Thrusters) Apply(th hal.Thrust) {
	t.mu.Lock()
	t.current = th
	t.applied++
	t.mu.Unlock()
}

func (t *Thrusters) Idle() {
	t.mu.Lock()
	t.current = hal.Thrust{}
	t.idles++
	t.mu.Unlock()
}

// Current returns the active setting
func (t *Thrusters) Current() hal.Thrust {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Applied counts Apply calls
func (t *Thrusters) Applied() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applied
}

// Idles counts Idle calls
func (t *Thrusters) Idles() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idles
}

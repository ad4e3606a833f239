package sim

// Beacon drives an input-capture pair from a free-running 16-bit timer. While visible reports true it
// captures a rising edge every Period counts.
type Beacon struct {
	Visible       func() bool
	Period        uint32
	CountsPerTick uint32
	Capture       func(t uint16)
	Rollover      func()

	clock    uint32
	nextRise uint32
}

// Tick advances the capture timer by one system tick
func (b *Beacon) Tick() {
	old := b.clock
	b.clock += b.CountsPerTick
	if old>>16 != b.clock>>16 && b.Rollover != nil {
		b.Rollover()
	}
	if b.Visible == nil || !b.Visible() || b.Capture == nil {
		return
	}
	if b.clock >= b.nextRise {
		b.Capture(uint16(b.clock))
		b.nextRise = b.clock + b.Period
	}
}

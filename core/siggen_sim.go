package core

import "errors"

// Software model of a 16-bit output-compare timer, used to run the signal
// engine off-target (tests, host-side simulation).

var ErrPeriodRange = errors.New("timer period out of range")

const simCounterMax = 0x10000

// SimTimer implements CompareTimer in software.
// Tick advances the counter by one step; matches latch a flag and apply the
// programmed output action, as an STM32 general-purpose timer does.
type SimTimer struct {
	period    uint32
	counter   uint32
	prescaler uint32
	enabled   bool

	compare [NumChannels]uint32
	action  [NumChannels]OutputAction
	match   [NumChannels]bool
	level   [NumChannels]bool

	ticks      uint64 // Counter steps taken while enabled
	tornWrites int    // Prescaler writes while the counter was running

	// OnEdge is called for every output level change
	OnEdge func(ch Channel, level bool, tick uint64)
}

var _ CompareTimer = (*SimTimer)(nil)

// NewSimTimer returns a stopped timer with a full 16-bit period
func NewSimTimer() *SimTimer {
	return &SimTimer{period: simCounterMax}
}

func (t *SimTimer) Configure(period uint32) error {
	if period == 0 || period > simCounterMax {
		return ErrPeriodRange
	}
	t.period = period
	t.counter = 0
	t.enabled = false
	t.compare = [NumChannels]uint32{}
	t.action = [NumChannels]OutputAction{}
	t.match = [NumChannels]bool{}
	return nil
}

func (t *SimTimer) MaxPrescaler() uint32 { return 0xFFFF }

func (t *SimTimer) SetPrescaler(psc uint32) {
	if t.enabled {
		t.tornWrites++
	}
	if psc > 0xFFFF {
		psc = 0xFFFF
	}
	t.prescaler = psc
}

func (t *SimTimer) Enable()  { t.enabled = true }
func (t *SimTimer) Disable() { t.enabled = false }

func (t *SimTimer) Counter() uint32     { return t.counter }
func (t *SimTimer) SetCounter(v uint32) { t.counter = v % t.period }

func (t *SimTimer) MatchPending(ch Channel) bool { return t.match[ch] }
func (t *SimTimer) ClearMatch(ch Channel)        { t.match[ch] = false }

func (t *SimTimer) SetCompare(ch Channel, v uint32) {
	t.compare[ch] = v
}

func (t *SimTimer) SetOutputAction(ch Channel, action OutputAction) {
	t.action[ch] = action
}

// Tick advances the counter one step and reports whether any channel matched
func (t *SimTimer) Tick() bool {
	if !t.enabled {
		return false
	}
	t.counter++
	if t.counter >= t.period {
		t.counter = 0
	}
	t.ticks++

	matched := false
	for ch := Channel(0); ch < NumChannels; ch++ {
		if t.counter != t.compare[ch] {
			continue
		}
		t.match[ch] = true
		matched = true
		t.apply(ch)
	}
	return matched
}

func (t *SimTimer) apply(ch Channel) {
	level := t.level[ch]
	switch t.action[ch] {
	case OutputActiveOnMatch:
		level = true
	case OutputInactiveOnMatch:
		level = false
	default:
		return
	}
	if level == t.level[ch] {
		return
	}
	t.level[ch] = level
	if t.OnEdge != nil {
		t.OnEdge(ch, level, t.ticks)
	}
}

// Level returns the output level of ch
func (t *SimTimer) Level(ch Channel) bool { return t.level[ch] }

// Enabled reports whether the counter runs
func (t *SimTimer) Enabled() bool { return t.enabled }

// Prescaler returns the divider-minus-one last written
func (t *SimTimer) Prescaler() uint32 { return t.prescaler }

// Ticks returns the number of counter steps taken while enabled
func (t *SimTimer) Ticks() uint64 { return t.ticks }

// TornWrites returns how many prescaler writes hit a running counter
func (t *SimTimer) TornWrites() int { return t.tornWrites }

// EdgeRecord is one output transition seen on the bench
type EdgeRecord struct {
	Channel Channel
	Level   bool
	Tick    uint64
}

// Bench wires a TimerScheduler to a SimTimer and dispatches both channel
// handlers on every match, cam first, the way a shared interrupt vector
// with cam priority would.
type Bench struct {
	Timer     *SimTimer
	Scheduler *TimerScheduler
	Crank     *Generator
	Cam       *Generator

	clockHz uint32
	edges   []EdgeRecord
}

// NewBench builds generators over crank and cam, initializes a scheduler
// on a fresh SimTimer and records every edge.
func NewBench(crank, cam *Wheel, clockHz uint32) (*Bench, error) {
	b := &Bench{
		Timer:   NewSimTimer(),
		Crank:   NewGenerator(crank),
		Cam:     NewGenerator(cam),
		clockHz: clockHz,
	}
	b.Timer.OnEdge = func(ch Channel, level bool, tick uint64) {
		b.edges = append(b.edges, EdgeRecord{Channel: ch, Level: level, Tick: tick})
	}
	b.Scheduler = NewTimerScheduler(b.Timer, clockHz)
	if err := b.Scheduler.Initialize(b.Cam, b.Crank); err != nil {
		return nil, err
	}
	return b, nil
}

// Run advances the timer by ticks counter steps
func (b *Bench) Run(ticks uint64) {
	for i := uint64(0); i < ticks; i++ {
		if b.Timer.Tick() {
			b.Scheduler.HandleSharedInterrupt()
		}
	}
}

// RunRevolutions advances the timer by n full counter periods
func (b *Bench) RunRevolutions(n int) {
	b.Run(uint64(n) * RevTicks)
}

// Edges returns the recorded transitions of ch
func (b *Bench) Edges(ch Channel) []EdgeRecord {
	var out []EdgeRecord
	for _, e := range b.edges {
		if e.Channel == ch {
			out = append(out, e)
		}
	}
	return out
}

// ClearEdges drops the recorded transitions
func (b *Bench) ClearEdges() {
	b.edges = b.edges[:0]
}

// TicksToTime converts counter steps to time ticks at the current prescaler
func (b *Bench) TicksToTime(ticks uint64) uint32 {
	t := ticks * (uint64(b.Timer.Prescaler()) + 1) * TimeTicksPerSecond / uint64(b.clockHz)
	return saturate32(t)
}

// MeasuredRPM derives the speed from the counter steps one revolution took
func (b *Bench) MeasuredRPM(revTicks uint64) uint32 {
	return TimeAngleToSpeed(RevTicks, b.TicksToTime(revTicks))
}

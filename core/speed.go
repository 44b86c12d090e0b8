package core

import "errors"

// Speed manager
// Turns queued speed commands into one speed value per poll period.

const (
	// SpeedBacklogSize is the number of commands that can wait in the backlog
	SpeedBacklogSize = 10

	// DefaultRampResolutionMS is the poll period the manager assumes by default
	DefaultRampResolutionMS = 10
)

var ErrBacklogFull = errors.New("speed backlog full")

// SpeedCommandKind selects how a SpeedCommand changes the speed
type SpeedCommandKind uint8

const (
	SpeedFixed SpeedCommandKind = iota // Jump to RPM
	SpeedRamp                          // Ramp linearly to RPM over DurationMS
	SpeedIncrement                     // Add RPM to the current speed
	SpeedDecrement                     // Subtract RPM from the current speed, floored at 0
)

// SpeedCommand is one request from the command channel
type SpeedCommand struct {
	Kind       SpeedCommandKind
	RPM        uint32
	DurationMS uint32 // Ramp only
}

func FixedSpeed(rpm uint32) SpeedCommand {
	return SpeedCommand{Kind: SpeedFixed, RPM: rpm}
}

func Ramp(rpm, durationMS uint32) SpeedCommand {
	return SpeedCommand{Kind: SpeedRamp, RPM: rpm, DurationMS: durationMS}
}

func Increment(rpm uint32) SpeedCommand {
	return SpeedCommand{Kind: SpeedIncrement, RPM: rpm}
}

func Decrement(rpm uint32) SpeedCommand {
	return SpeedCommand{Kind: SpeedDecrement, RPM: rpm}
}

// SpeedManager holds the current speed and a FIFO backlog of commands.
//
// Poll must be called once per resolution period from the foreground loop.
// Ramp timing is counted in polls, not wall time: if the loop polls late,
// ramps run slower than configured.
type SpeedManager struct {
	current uint32

	// Backlog ring, oldest command at head
	backlog [SpeedBacklogSize]SpeedCommand
	head    uint8
	count   uint8

	// Active command
	target     uint32
	delta      int64
	remaining  uint32 // ms left in a ramp, or 1 for a pending single step
	resolution uint32
	ramping    bool
}

// NewSpeedManager creates a manager polled every resolutionMS (0 selects the default)
func NewSpeedManager(resolutionMS uint32) *SpeedManager {
	if resolutionMS == 0 {
		resolutionMS = DefaultRampResolutionMS
	}
	return &SpeedManager{resolution: resolutionMS}
}

// Enqueue appends cmd to the backlog
func (m *SpeedManager) Enqueue(cmd SpeedCommand) error {
	if m.count >= SpeedBacklogSize {
		return ErrBacklogFull
	}
	m.backlog[(m.head+m.count)%SpeedBacklogSize] = cmd
	m.count++
	return nil
}

// ForceCommand drops the backlog and any command in progress, leaving cmd
// as the only pending command.
func (m *SpeedManager) ForceCommand(cmd SpeedCommand) {
	m.head = 0
	m.count = 0
	m.remaining = 0
	m.ramping = false
	m.delta = 0
	_ = m.Enqueue(cmd) // cannot fail on an empty backlog
}

func (m *SpeedManager) dequeue() (SpeedCommand, bool) {
	if m.count == 0 {
		return SpeedCommand{}, false
	}
	cmd := m.backlog[m.head]
	m.head = (m.head + 1) % SpeedBacklogSize
	m.count--
	return cmd, true
}

func (m *SpeedManager) load(cmd SpeedCommand) {
	switch cmd.Kind {
	case SpeedRamp:
		m.target = cmd.RPM
		m.delta = int64(cmd.RPM) - int64(m.current)
		m.remaining = cmd.DurationMS
		m.ramping = true
		if m.remaining == 0 {
			m.current = m.target
			m.ramping = false
		}
	case SpeedIncrement:
		m.delta = int64(cmd.RPM)
		m.remaining = 1
		m.ramping = false
	case SpeedDecrement:
		m.delta = -int64(cmd.RPM)
		m.remaining = 1
		m.ramping = false
	default:
		m.target = cmd.RPM
		m.current = cmd.RPM
		m.delta = 0
		m.remaining = 0
		m.ramping = false
	}
	RecordTiming(EvtSpeedCommand, uint8(cmd.Kind), GetTime(), cmd.RPM, cmd.DurationMS)
}

// Poll advances the active command by one resolution period and returns the
// speed to apply now.
func (m *SpeedManager) Poll() uint32 {
	if m.remaining == 0 {
		if cmd, ok := m.dequeue(); ok {
			m.load(cmd)
		}
	}

	switch {
	case m.remaining == 0:
		m.ramping = false

	case m.remaining == 1 && !m.ramping:
		// Single increment/decrement step
		m.current = addSpeed(m.current, m.delta)
		m.target = m.current
		m.delta = 0
		m.remaining = 0

	default:
		// Ramp step: spread what is left over the polls that are left
		steps := m.remaining / m.resolution
		if steps == 0 {
			steps = 1
		}
		m.delta = int64(m.target) - int64(m.current)
		m.current = addSpeed(m.current, m.delta/int64(steps))
		if m.remaining > m.resolution {
			m.remaining -= m.resolution
		} else {
			m.remaining = 0
		}
		if m.remaining == 0 {
			m.ramping = false
		}
	}

	return m.current
}

func addSpeed(cur uint32, delta int64) uint32 {
	v := int64(cur) + delta
	if v < 0 {
		return 0
	}
	if v > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(v)
}

// Current returns the last speed produced by Poll
func (m *SpeedManager) Current() uint32 {
	return m.current
}

// Target returns the speed the active command is heading to
func (m *SpeedManager) Target() uint32 {
	if m.remaining == 0 {
		return m.current
	}
	if m.ramping {
		return m.target
	}
	return addSpeed(m.current, m.delta)
}

// Pending returns the number of commands waiting in the backlog
func (m *SpeedManager) Pending() int {
	return int(m.count)
}

// Busy reports whether a ramp or step is in progress
func (m *SpeedManager) Busy() bool {
	return m.remaining != 0
}

// Resolution returns the poll period in milliseconds
func (m *SpeedManager) Resolution() uint32 {
	return m.resolution
}

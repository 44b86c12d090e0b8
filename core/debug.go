package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a signal-generation event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Source    uint8  // Channel or command kind
	Clock     uint32 // Counter or system clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtCompareSet   = 1 // Next compare programmed (v1=compare, v2=event index)
	EvtCamResync    = 2 // Cam event 0 reset the crank cursor and counter
	EvtPrescaler    = 3 // Prescaler written (v1=prescaler, v2=rpm)
	EvtSpeedCommand = 4 // Speed command loaded (v1=rpm, v2=duration)
	EvtStart        = 5 // Counter enabled (v1=prescaler)
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled bool = false

	// Timing capture ring buffer, written from interrupt context
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  bool = true
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// SetTimingEnabled turns the timing ring on or off
func SetTimingEnabled(enabled bool) {
	timingEnabled = enabled
}

// RecordTiming captures a timing event in the ring buffer.
// Safe to call from interrupt handlers: no allocation, no blocking. The
// foreground and the compare interrupts both record, so the slot claim and
// write run with interrupts masked.
func RecordTiming(eventType, source uint8, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	state := irqDisable()
	defer irqRestore(state)

	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Source:    source,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// TimingEvents returns the ring contents, oldest first, skipping empty slots
func TimingEvents() []TimingEvent {
	events := make([]TimingEvent, 0, TimingRingSize)
	state := irqDisable()
	defer irqRestore(state)

	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue
		}
		events = append(events, evt)
	}
	return events
}

func timingEventName(t uint8) string {
	switch t {
	case EvtCompareSet:
		return "COMPARE"
	case EvtCamResync:
		return "RESYNC"
	case EvtPrescaler:
		return "PRESCALER"
	case EvtSpeedCommand:
		return "SPEED_CMD"
	case EvtStart:
		return "START"
	}
	return "UNKNOWN"
}

// DumpTimingRing outputs the timing ring buffer through the debug writer.
// Call from the foreground loop only.
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + timingEventName(evt.EventType) +
			" src=" + utoa(uint32(evt.Source)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	state := irqDisable()
	defer irqRestore(state)

	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}

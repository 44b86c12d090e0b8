package core

// Channel identifies one output-compare channel of the signal timer
type Channel uint8

const (
	ChannelCrank Channel = iota
	ChannelCam
	NumChannels
)

func (c Channel) String() string {
	if c == ChannelCam {
		return "cam"
	}
	return "crank"
}

// OutputAction is what a channel does to its output pin on the next match
type OutputAction uint8

const (
	OutputFrozen          OutputAction = iota // Level unchanged
	OutputActiveOnMatch                       // Drive high
	OutputInactiveOnMatch                     // Drive low
)

// CompareTimer is the hardware abstraction for one up-counting timer with
// two output-compare channels sharing a counter and prescaler.
// Platform-specific implementations handle actual register access.
type CompareTimer interface {
	// Configure sets the counter period (counter wraps to 0 at period),
	// enables both compare outputs and their interrupts. The counter is
	// left disabled.
	Configure(period uint32) error

	// MaxPrescaler returns the largest value SetPrescaler accepts
	MaxPrescaler() uint32

	// SetPrescaler writes the clock divider minus one
	SetPrescaler(psc uint32)

	// Enable starts the counter
	Enable()

	// Disable stops the counter
	Disable()

	// Counter returns the current counter value
	Counter() uint32

	// SetCounter overwrites the counter value
	SetCounter(v uint32)

	// MatchPending reports whether the channel's match flag is set
	MatchPending(ch Channel) bool

	// ClearMatch clears the channel's match flag
	ClearMatch(ch Channel)

	// SetCompare programs the counter value of the channel's next match
	SetCompare(ch Channel, v uint32)

	// SetOutputAction selects the output change applied on the next match
	SetOutputAction(ch Channel, action OutputAction)
}

// SignalGenerator is the contract between the signal engine and the
// firmware around it: the entry point and the interrupt vectors.
// It is the only surface the hardware binding layer may call.
type SignalGenerator interface {
	// Initialize takes ownership of both generators and configures the timer
	Initialize(cam, crank *Generator) error

	// SetSpeedRPM updates the shared prescaler; 0 is treated as 1 RPM
	SetSpeedRPM(rpm uint32)

	// AdvanceCrankChannel runs once per crank compare-match interrupt
	AdvanceCrankChannel()

	// AdvanceCamChannel runs once per cam compare-match interrupt
	AdvanceCamChannel()

	// Start preloads the first events and enables the counter
	Start()
}

// actionFor maps an event to the output action realizing it
func actionFor(ev AngleEvent) OutputAction {
	if !ev.Generates {
		return OutputFrozen
	}
	if ev.Edge == EdgeRising {
		return OutputActiveOnMatch
	}
	return OutputInactiveOnMatch
}

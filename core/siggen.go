package core

import "errors"

// Crank/cam signal scheduler
//
// Contexts allowed to touch a TimerScheduler:
//   - the foreground loop: Initialize, SetSpeedRPM, Start
//   - the crank compare interrupt: AdvanceCrankChannel
//   - the cam compare interrupt: AdvanceCamChannel
//
// No locks are taken. The crank cursor and compare register are written
// only by the crank handler, the cam ones only by the cam handler. The cam
// handler also resets the crank cursor on cam event 0; this is safe because
// the cam interrupt has strictly higher priority than the crank interrupt
// and runs to completion on a single core. The prescaler is written only
// from the foreground with the counter stopped.

var ErrMissingGenerator = errors.New("signal generator needs both cam and crank generators")

// TimerScheduler turns wheel events into output-compare programming.
// The counter period is RevTicks and angle deltas are used as literal
// counter ticks; the prescaler sets how long a revolution lasts.
type TimerScheduler struct {
	timer   CompareTimer
	clockHz uint32

	crank *Generator
	cam   *Generator

	prescaler   uint32
	lastCompare [NumChannels]uint32
	speedRPM    uint32
	started     bool
	spurious    uint32
}

var _ SignalGenerator = (*TimerScheduler)(nil)

// NewTimerScheduler creates a scheduler over timer, whose input clock runs at clockHz
func NewTimerScheduler(timer CompareTimer, clockHz uint32) *TimerScheduler {
	return &TimerScheduler{
		timer:     timer,
		clockHz:   clockHz,
		prescaler: timer.MaxPrescaler(),
	}
}

// Initialize takes ownership of both generators and configures the timer.
// Calling it again reconfigures the hardware and stops the counter until
// the next Start.
func (s *TimerScheduler) Initialize(cam, crank *Generator) error {
	if cam == nil || crank == nil {
		return ErrMissingGenerator
	}

	s.timer.Disable()
	if err := s.timer.Configure(RevTicks); err != nil {
		return err
	}
	s.timer.SetPrescaler(s.prescaler)

	s.cam = cam
	s.crank = crank
	s.lastCompare = [NumChannels]uint32{}
	s.started = false
	return nil
}

// PrescalerFor returns the divider-minus-one that makes one counter period
// of RevTicks last one revolution at rpm, saturated to max.
func PrescalerFor(clockHz, rpm, max uint32) uint32 {
	rpm = ClampSpeed(rpm)
	div := uint64(clockHz) * 60 / (uint64(RevTicks) * uint64(rpm))
	if div == 0 {
		return 0
	}
	psc := div - 1
	if psc > uint64(max) {
		return max
	}
	return uint32(psc)
}

// SetSpeedRPM updates the prescaler for rpm. The counter is stopped around
// the write so a period is never split between two dividers. Cursor
// positions are left alone.
func (s *TimerScheduler) SetSpeedRPM(rpm uint32) {
	rpm = ClampSpeed(rpm)
	s.speedRPM = rpm
	s.prescaler = PrescalerFor(s.clockHz, rpm, s.timer.MaxPrescaler())

	s.timer.Disable()
	s.timer.SetPrescaler(s.prescaler)
	if s.started {
		s.timer.Enable()
	}
	RecordTiming(EvtPrescaler, 0, GetTime(), s.prescaler, rpm)
}

// AdvanceCrankChannel programs the next crank event.
// Must be called once per crank compare interrupt.
func (s *TimerScheduler) AdvanceCrankChannel() {
	if s.crank == nil {
		return
	}
	// Shared vectors call both handlers; only act on our own match
	if !s.timer.MatchPending(ChannelCrank) {
		s.spurious++
		return
	}
	s.timer.ClearMatch(ChannelCrank)
	s.schedule(ChannelCrank, s.crank)
}

// AdvanceCamChannel programs the next cam event and resynchronizes the
// crank when the cam starts a new revolution.
// Must be called once per cam compare interrupt.
func (s *TimerScheduler) AdvanceCamChannel() {
	if s.cam == nil {
		return
	}
	if !s.timer.MatchPending(ChannelCam) {
		s.spurious++
		return
	}
	s.timer.ClearMatch(ChannelCam)
	ev := s.schedule(ChannelCam, s.cam)
	if ev.Index == 0 {
		s.resync()
	}
}

// Start preloads the first event of both channels from counter 0, then
// enables the counter.
func (s *TimerScheduler) Start() {
	if s.cam == nil || s.crank == nil {
		return
	}

	s.timer.Disable()
	s.timer.SetCounter(0)
	s.timer.ClearMatch(ChannelCam)
	s.timer.ClearMatch(ChannelCrank)

	s.cam.Reset()
	ev := s.schedule(ChannelCam, s.cam)
	if ev.Index == 0 {
		s.resync()
	}
	s.schedule(ChannelCrank, s.crank)

	s.started = true
	s.timer.Enable()
	RecordTiming(EvtStart, 0, GetTime(), s.prescaler, s.speedRPM)
}

// Stop halts the counter; outputs keep their current level
func (s *TimerScheduler) Stop() {
	s.timer.Disable()
	s.started = false
}

// HandleSharedInterrupt services both channels from one vector, cam first
func (s *TimerScheduler) HandleSharedInterrupt() {
	s.AdvanceCamChannel()
	s.AdvanceCrankChannel()
}

// schedule pulls the next event of gen and programs it on ch
func (s *TimerScheduler) schedule(ch Channel, gen *Generator) AngleEvent {
	ev := gen.Next()
	cnt := s.timer.Counter()
	next := wrapAdd(cnt, ev.Delta, RevTicks)

	s.timer.SetCompare(ch, next)
	s.timer.SetOutputAction(ch, actionFor(ev))
	s.lastCompare[ch] = next

	RecordTiming(EvtCompareSet, uint8(ch), cnt, next, uint32(ev.Index))
	return ev
}

// resync puts the crank back on its reference and restarts the revolution count
func (s *TimerScheduler) resync() {
	s.timer.SetCounter(0)
	s.crank.Reset()
	RecordTiming(EvtCamResync, uint8(ChannelCam), 0, s.lastCompare[ChannelCam], 0)
}

// SpeedRPM returns the last commanded speed after clamping
func (s *TimerScheduler) SpeedRPM() uint32 {
	return s.speedRPM
}

// Prescaler returns the divider-minus-one currently applied
func (s *TimerScheduler) Prescaler() uint32 {
	return s.prescaler
}

// EffectiveRPM returns the speed actually produced by the current prescaler
func (s *TimerScheduler) EffectiveRPM() uint32 {
	revTime := uint64(RevTicks) * (uint64(s.prescaler) + 1) * TimeTicksPerSecond / uint64(s.clockHz)
	return TimeAngleToSpeed(RevTicks, saturate32(revTime))
}

// LastCompare returns the compare value last programmed on ch
func (s *TimerScheduler) LastCompare(ch Channel) uint32 {
	return s.lastCompare[ch]
}

// Spurious returns how many handler calls found their match flag clear
func (s *TimerScheduler) Spurious() uint32 {
	return s.spurious
}

// Started reports whether the counter has been started since the last Initialize
func (s *TimerScheduler) Started() bool {
	return s.started
}

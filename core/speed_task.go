package core

// SpeedTask is the periodic foreground task that drives a SignalGenerator
// from a SpeedManager.
//
// Every resolution period it polls the manager once and forwards the result
// to SetSpeedRPM when it differs from the last applied speed. The next wake
// time is counted from the actual dispatch time, so a late loop stretches
// ramps instead of bunching polls.
type SpeedTask struct {
	timer  Timer
	speed  *SpeedManager
	gen    SignalGenerator
	period uint32 // System ticks between polls

	applied    uint32
	hasApplied bool
	polls      uint32
	running    bool
}

// NewSpeedTask binds a manager to a generator; the period follows the
// manager's resolution.
func NewSpeedTask(speed *SpeedManager, gen SignalGenerator) *SpeedTask {
	t := &SpeedTask{
		speed:  speed,
		gen:    gen,
		period: TimerFromMS(speed.Resolution()),
	}
	t.timer.Handler = t.poll
	return t
}

// Start schedules the first poll one period from now
func (t *SpeedTask) Start() {
	if t.running {
		return
	}
	t.timer.WakeTime = GetTime() + t.period
	t.running = true
	ScheduleTimer(&t.timer)
}

// Stop removes the task from the timer list
func (t *SpeedTask) Stop() {
	if !t.running {
		return
	}
	CancelTimer(&t.timer)
	t.running = false
}

// MarkApplied records a speed pushed to the generator outside the task
func (t *SpeedTask) MarkApplied(rpm uint32) {
	t.applied = rpm
	t.hasApplied = true
}

func (t *SpeedTask) poll(tm *Timer) uint8 {
	rpm := t.speed.Poll()
	t.polls++
	if !t.hasApplied || rpm != t.applied {
		t.gen.SetSpeedRPM(rpm)
		t.MarkApplied(rpm)
	}

	tm.WakeTime = CurrentTime() + t.period
	return SF_RESCHEDULE
}

// Applied returns the last speed handed to the generator
func (t *SpeedTask) Applied() uint32 {
	return t.applied
}

// Polls returns how many times the task ran
func (t *SpeedTask) Polls() uint32 {
	return t.polls
}

// Period returns the poll period in system ticks
func (t *SpeedTask) Period() uint32 {
	return t.period
}

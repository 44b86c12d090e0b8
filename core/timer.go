package core

// System time
// Foreground time is kept in microsecond ticks. Targets advance it from
// their own clock (SysTick, machine ticks, time.Since) before each loop pass.

const (
	// TimerFreq is the rate of the foreground system time
	TimerFreq = 1000000
)

// GetTime returns the current system time in ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime overwrites the system time
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// AdvanceTime moves system time forward by delta ticks and returns the new time
func AdvanceTime(delta uint32) uint32 {
	return addSystemTicks(delta)
}

// TimerFromMS converts milliseconds to system ticks
func TimerFromMS(ms uint32) uint32 {
	return ms * (TimerFreq / 1000)
}

// TimerToMS converts system ticks to milliseconds
func TimerToMS(ticks uint32) uint32 {
	return ticks / (TimerFreq / 1000)
}

// ProcessTimers runs every foreground timer that is due
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}

package core

// Angle/time fixed-point conversions.
//
// Angles are expressed in ticks of RevTicks per revolution (0.01 deg).
// Times are expressed in ticks of TimeTicksPerSecond (10 ns), which is the
// unit that makes time = angle * 1e6 / (rpm * 6) hold at RevTicks = 36000.

const (
	// RevTicks is the number of angle ticks in one revolution, for crank and cam alike
	RevTicks = 36000

	// TimeTicksPerSecond is the time resolution used by the conversion functions
	TimeTicksPerSecond = 100000000

	// MinSpeedRPM is substituted for a requested speed of 0
	MinSpeedRPM = 1
)

// ClampSpeed returns rpm, or MinSpeedRPM when rpm is 0
func ClampSpeed(rpm uint32) uint32 {
	if rpm < MinSpeedRPM {
		return MinSpeedRPM
	}
	return rpm
}

// SpeedAngleToTicks returns the time ticks needed to travel angle ticks at rpm
func SpeedAngleToTicks(rpm uint32, angle uint32) uint32 {
	rpm = ClampSpeed(rpm)
	t := uint64(angle) * 1000000 / (uint64(rpm) * 6)
	return saturate32(t)
}

// SpeedTimeToAngle returns the angle ticks travelled during time ticks at rpm
func SpeedTimeToAngle(rpm uint32, ticks uint32) uint32 {
	rpm = ClampSpeed(rpm)
	a := uint64(ticks) * uint64(rpm) * 6 / 1000000
	return saturate32(a)
}

// TimeAngleToSpeed returns the rpm at which angle ticks take time ticks.
// A zero time is treated as one tick.
func TimeAngleToSpeed(angle uint32, ticks uint32) uint32 {
	if ticks == 0 {
		ticks = 1
	}
	s := uint64(angle) * 1000000 / (uint64(ticks) * 6)
	return saturate32(s)
}

// SaturateU16 narrows v to a 16-bit register value, clamping at 0xFFFF
func SaturateU16(v uint64) uint16 {
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

func saturate32(v uint64) uint32 {
	if v > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(v)
}

// wrapAdd returns (cv + a) mod lim without overflowing 32 bits
func wrapAdd(cv, a, lim uint32) uint32 {
	return uint32((uint64(cv) + uint64(a)) % uint64(lim))
}

package core

import "testing"

func TestSpeedAngleToTicks(t *testing.T) {
	testCases := []struct {
		rpm, angle, expected uint32
	}{
		{1000, RevTicks, 6000000}, // 60 ms per revolution
		{6000, RevTicks, 1000000},
		{1000, 300, 50000},
		{3000, 36000, 2000000},
		{1, 6, 1000000},
	}

	for _, tc := range testCases {
		got := SpeedAngleToTicks(tc.rpm, tc.angle)
		if got != tc.expected {
			t.Errorf("SpeedAngleToTicks(%d, %d): expected %d, got %d", tc.rpm, tc.angle, tc.expected, got)
		}
	}
}

func TestAngleConversionRoundTrip(t *testing.T) {
	angles := []uint32{roundTripMinAngle, 600, 1000, 3600, 18000, 36000}
	speeds := []uint32{100, 750, 1000, 3000, 6000, 8000}

	for _, ag := range angles {
		for _, spd := range speeds {
			ticks := SpeedAngleToTicks(spd, ag)

			back := SpeedTimeToAngle(spd, ticks)
			if diff(back, ag) > 1 {
				t.Errorf("angle %d at %d rpm: round trip gave %d", ag, spd, back)
			}

			rpm := TimeAngleToSpeed(ag, ticks)
			if diff(rpm, spd) > 1 {
				t.Errorf("angle %d at %d rpm: speed round trip gave %d", ag, spd, rpm)
			}
		}
	}
}

// With truncating division the round trip stays within one unit from this
// angle up, for any speed between 100 and 8000 rpm
const roundTripMinAngle = 190

func TestAngleRoundTripSmallAngles(t *testing.T) {
	for ag := uint32(roundTripMinAngle); ag < 1200; ag++ {
		for spd := uint32(100); spd <= 8000; spd++ {
			ticks := SpeedAngleToTicks(spd, ag)
			if back := SpeedTimeToAngle(spd, ticks); diff(back, ag) > 1 {
				t.Fatalf("angle %d at %d rpm: round trip gave %d", ag, spd, back)
			}
			if rpm := TimeAngleToSpeed(ag, ticks); diff(rpm, spd) > 1 {
				t.Fatalf("angle %d at %d rpm: speed round trip gave %d", ag, spd, rpm)
			}
		}
	}

	// One tick below, the speed comes back 2 rpm high
	ag := uint32(roundTripMinAngle - 1)
	if rpm := TimeAngleToSpeed(ag, SpeedAngleToTicks(7999, ag)); rpm != 8001 {
		t.Errorf("angle %d at 7999 rpm: expected 8001, got %d", ag, rpm)
	}
}

func TestZeroSpeedGuard(t *testing.T) {
	if got, want := SpeedAngleToTicks(0, 600), SpeedAngleToTicks(1, 600); got != want {
		t.Errorf("SpeedAngleToTicks(0): expected %d (same as 1 rpm), got %d", want, got)
	}
	if got, want := SpeedTimeToAngle(0, 1000000), SpeedTimeToAngle(1, 1000000); got != want {
		t.Errorf("SpeedTimeToAngle(0): expected %d, got %d", want, got)
	}
	if got := TimeAngleToSpeed(600, 0); got != TimeAngleToSpeed(600, 1) {
		t.Errorf("TimeAngleToSpeed with zero time: got %d", got)
	}
	if ClampSpeed(0) != MinSpeedRPM {
		t.Errorf("ClampSpeed(0) = %d", ClampSpeed(0))
	}
}

func TestSaturation(t *testing.T) {
	if got := SaturateU16(0x12345); got != 0xFFFF {
		t.Errorf("SaturateU16(0x12345) = 0x%X", got)
	}
	if got := SaturateU16(1234); got != 1234 {
		t.Errorf("SaturateU16(1234) = %d", got)
	}
	// 1 rpm over a full revolution is 60 s, beyond 32 bits of 10 ns ticks
	if got := SpeedAngleToTicks(1, RevTicks); got != 0xFFFFFFFF {
		t.Errorf("SpeedAngleToTicks(1, RevTicks) = %d", got)
	}
	if got := SpeedTimeToAngle(0xFFFFFFFF, 0xFFFFFFFF); got != 0xFFFFFFFF {
		t.Errorf("SpeedTimeToAngle should saturate, got %d", got)
	}
}

func TestWrapAdd(t *testing.T) {
	testCases := []struct {
		cv, a, lim, expected uint32
	}{
		{0, 300, RevTicks, 300},
		{35900, 300, RevTicks, 200},
		{0, RevTicks, RevTicks, 0},
		{0xFFFFFFF0, 0x20, 0xFFFFFFFF, 0x11},
	}

	for _, tc := range testCases {
		if got := wrapAdd(tc.cv, tc.a, tc.lim); got != tc.expected {
			t.Errorf("wrapAdd(%d, %d, %d): expected %d, got %d", tc.cv, tc.a, tc.lim, tc.expected, got)
		}
	}
}

func diff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

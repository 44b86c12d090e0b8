package core

import (
	"errors"
	"testing"
)

func TestSpeedFixed(t *testing.T) {
	m := NewSpeedManager(10)
	if err := m.Enqueue(FixedSpeed(2000)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if got := m.Poll(); got != 2000 {
		t.Errorf("Expected 2000 on the dequeuing poll, got %d", got)
	}
	if got := m.Poll(); got != 2000 {
		t.Errorf("Idle poll should hold the speed, got %d", got)
	}
}

func TestSpeedRamp(t *testing.T) {
	m := NewSpeedManager(10)
	m.Enqueue(FixedSpeed(1000))
	m.Poll()

	m.Enqueue(Ramp(6000, 100))
	prev := m.Current()
	for i := 0; i < 10; i++ {
		got := m.Poll()
		if got < prev {
			t.Errorf("Poll %d: ramp went backwards (%d -> %d)", i, prev, got)
		}
		if got > 6000 {
			t.Errorf("Poll %d: ramp overshot to %d", i, got)
		}
		prev = got
	}
	if prev != 6000 {
		t.Errorf("Expected 6000 after 10 polls, got %d", prev)
	}
	if m.Busy() {
		t.Error("Ramp should be finished")
	}
}

func TestSpeedRampDown(t *testing.T) {
	m := NewSpeedManager(10)
	m.Enqueue(FixedSpeed(6000))
	m.Poll()

	m.Enqueue(Ramp(1000, 95))
	var got uint32
	for i := 0; i < 10; i++ {
		got = m.Poll()
	}
	if got != 1000 {
		t.Errorf("Expected 1000 at the end of the ramp, got %d", got)
	}
}

func TestSpeedRampZeroDuration(t *testing.T) {
	m := NewSpeedManager(10)
	m.Enqueue(Ramp(3000, 0))
	if got := m.Poll(); got != 3000 {
		t.Errorf("Zero-duration ramp should apply at once, got %d", got)
	}
}

func TestSpeedIncrementDecrement(t *testing.T) {
	m := NewSpeedManager(10)
	m.Enqueue(FixedSpeed(1000))
	m.Enqueue(Increment(500))
	m.Enqueue(Decrement(2000))

	expected := []uint32{1000, 1500, 0}
	for i, want := range expected {
		if got := m.Poll(); got != want {
			t.Errorf("Poll %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestSpeedBacklogOrder(t *testing.T) {
	m := NewSpeedManager(10)
	for _, rpm := range []uint32{100, 200, 300} {
		m.Enqueue(FixedSpeed(rpm))
	}
	if m.Pending() != 3 {
		t.Errorf("Expected 3 pending, got %d", m.Pending())
	}
	for _, want := range []uint32{100, 200, 300} {
		if got := m.Poll(); got != want {
			t.Errorf("Expected %d, got %d", want, got)
		}
	}
}

func TestSpeedBacklogFull(t *testing.T) {
	m := NewSpeedManager(10)
	for i := 0; i < SpeedBacklogSize; i++ {
		if err := m.Enqueue(FixedSpeed(uint32(i))); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
	}
	if err := m.Enqueue(FixedSpeed(99)); !errors.Is(err, ErrBacklogFull) {
		t.Errorf("Expected ErrBacklogFull, got %v", err)
	}
}

func TestSpeedForceCommand(t *testing.T) {
	m := NewSpeedManager(10)
	m.Enqueue(FixedSpeed(1000))
	m.Poll()
	m.Enqueue(Ramp(6000, 100))
	m.Poll()
	m.Enqueue(FixedSpeed(5))

	m.ForceCommand(FixedSpeed(2000))
	if m.Pending() != 1 {
		t.Errorf("Expected only the forced command pending, got %d", m.Pending())
	}
	if got := m.Poll(); got != 2000 {
		t.Errorf("Expected forced speed 2000, got %d", got)
	}
	if got := m.Poll(); got != 2000 {
		t.Errorf("Aborted ramp resumed: got %d", got)
	}
}

func TestSpeedDefaultResolution(t *testing.T) {
	m := NewSpeedManager(0)
	if m.Resolution() != DefaultRampResolutionMS {
		t.Errorf("Expected default resolution %d, got %d", DefaultRampResolutionMS, m.Resolution())
	}
}

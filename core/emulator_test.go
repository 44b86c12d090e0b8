package core

import (
	"crkcam/protocol"
	"errors"
	"testing"
)

// statusRecorder captures status responses
type statusRecorder struct {
	statuses []protocol.Status
}

func (r *statusRecorder) SendCommand(cmdID uint16, args func(output protocol.OutputBuffer)) {
	if cmdID != protocol.RespStatus {
		return
	}
	out := protocol.NewScratchOutput()
	args(out)
	data := append([]byte(nil), out.Result()...)
	st, err := protocol.DecodeStatus(&data)
	if err == nil {
		r.statuses = append(r.statuses, st)
	}
}

func (r *statusRecorder) last() protocol.Status {
	return r.statuses[len(r.statuses)-1]
}

func resetForegroundTime(t *testing.T) {
	t.Helper()
	ResetTimers()
	SetTime(0)
	t.Cleanup(ResetTimers)
}

// runFor advances system time in 1 ms steps, servicing the emulator
func runFor(emu *Emulator, ms int) {
	for i := 0; i < ms; i++ {
		AdvanceTime(TimerFromMS(1))
		emu.Service()
	}
}

func TestTimerListOrderAndWrap(t *testing.T) {
	resetForegroundTime(t)

	var order []int
	mk := func(id int, wake uint32) *Timer {
		return &Timer{WakeTime: wake, Handler: func(*Timer) uint8 {
			order = append(order, id)
			return SF_DONE
		}}
	}

	// Wake times straddle the 32-bit wrap
	SetTime(0xFFFFFF00)
	ScheduleTimer(mk(3, 0x00000010))
	ScheduleTimer(mk(1, 0xFFFFFF10))
	ScheduleTimer(mk(2, 0xFFFFFFF0))

	SetTime(0x00000020)
	ProcessTimers()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("Expected timers in wake order across wrap, got %v", order)
	}
}

func TestCancelTimer(t *testing.T) {
	resetForegroundTime(t)

	fired := false
	tm := &Timer{WakeTime: 100, Handler: func(*Timer) uint8 {
		fired = true
		return SF_DONE
	}}
	ScheduleTimer(tm)
	CancelTimer(tm)

	SetTime(200)
	ProcessTimers()
	if fired {
		t.Error("Cancelled timer ran")
	}
}

func TestEmulatorRequiresSelection(t *testing.T) {
	resetForegroundTime(t)

	emu := NewEmulator(NewSimTimer(), testClockHz, 10)
	if err := emu.Start(1000); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
	if err := emu.SelectConfig(9, 0); !errors.Is(err, ErrUnknownConfig) {
		t.Errorf("Expected ErrUnknownConfig, got %v", err)
	}
}

func TestEmulatorRampThroughSpeedTask(t *testing.T) {
	resetForegroundTime(t)

	timer := NewSimTimer()
	emu := NewEmulator(timer, testClockHz, 10)
	if err := emu.SelectConfig(0, 0); err != nil {
		t.Fatalf("SelectConfig failed: %v", err)
	}
	if err := emu.Start(1000); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if emu.Scheduler().Prescaler() != 119 {
		t.Errorf("Expected prescaler 119 at 1000 rpm, got %d", emu.Scheduler().Prescaler())
	}

	if err := emu.Enqueue(Ramp(6000, 100)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	prev := emu.Scheduler().SpeedRPM()
	for i := 0; i < 10; i++ {
		runFor(emu, 10)
		rpm := emu.Scheduler().SpeedRPM()
		if rpm < prev {
			t.Errorf("Poll %d: speed went backwards (%d -> %d)", i, prev, rpm)
		}
		prev = rpm
	}
	if prev != 6000 {
		t.Errorf("Expected 6000 rpm after the ramp, got %d", prev)
	}
	if timer.TornWrites() != 0 {
		t.Errorf("Prescaler written %d times with the counter running", timer.TornWrites())
	}
}

func TestEmulatorSelectConfigWhileRunning(t *testing.T) {
	resetForegroundTime(t)

	timer := NewSimTimer()
	emu := NewEmulator(timer, testClockHz, 10)
	emu.SelectConfig(0, 0)
	emu.Start(3000)

	if err := emu.SelectConfig(1, 2); err != nil {
		t.Fatalf("SelectConfig failed: %v", err)
	}
	st := emu.Status()
	if st.Crank != 1 || st.Cam != 2 || !st.Running {
		t.Errorf("Unexpected status after reselect: %+v", st)
	}
	if !timer.Enabled() || emu.Scheduler().SpeedRPM() != 3000 {
		t.Errorf("Emulator should restart at 3000 rpm, enabled=%v rpm=%d", timer.Enabled(), emu.Scheduler().SpeedRPM())
	}
	// 36-1 crank: event 0 is 500 ticks out
	if got := emu.Scheduler().LastCompare(ChannelCrank); got != 500 {
		t.Errorf("Expected crank compare 500, got %d", got)
	}
}

// disableWatchTimer notes the crank wheel bound when the counter is stopped
type disableWatchTimer struct {
	*SimTimer
	emu  *Emulator
	seen []*Wheel
}

func (w *disableWatchTimer) Disable() {
	if w.emu != nil && w.emu.crank != nil {
		w.seen = append(w.seen, w.emu.crank.Wheel())
	}
	w.SimTimer.Disable()
}

func TestEmulatorSelectStopsBeforeRebind(t *testing.T) {
	resetForegroundTime(t)

	timer := &disableWatchTimer{SimTimer: NewSimTimer()}
	emu := NewEmulator(timer, testClockHz, 10)
	timer.emu = emu
	emu.SelectConfig(0, 0)
	emu.Start(1000)

	old, _ := CrankWheel(0)
	timer.seen = nil
	if err := emu.SelectConfig(1, 0); err != nil {
		t.Fatalf("SelectConfig failed: %v", err)
	}
	if len(timer.seen) == 0 || timer.seen[0] != old {
		t.Error("Counter must stop while the old wheels are still bound")
	}
	if !timer.Enabled() || !emu.Running() {
		t.Error("Emulator should be running again after reselect")
	}
}

func TestEmulatorStop(t *testing.T) {
	resetForegroundTime(t)

	timer := NewSimTimer()
	emu := NewEmulator(timer, testClockHz, 10)
	emu.SelectConfig(0, 0)
	emu.Start(1000)
	emu.Stop()

	if timer.Enabled() || emu.Running() {
		t.Error("Stop should halt the counter")
	}

	emu.Enqueue(FixedSpeed(4000))
	runFor(emu, 50)
	if emu.Scheduler().SpeedRPM() != 1000 {
		t.Errorf("Stopped emulator should not poll speed, got %d", emu.Scheduler().SpeedRPM())
	}
}

func TestEmulatorCommands(t *testing.T) {
	resetForegroundTime(t)

	registry := NewCommandRegistry()
	rec := &statusRecorder{}
	emu := NewEmulator(NewSimTimer(), testClockHz, 10)
	emu.SelectConfig(0, 0)
	emu.Start(1000)
	if err := RegisterEmulatorCommands(registry, emu, rec); err != nil {
		t.Fatalf("RegisterEmulatorCommands failed: %v", err)
	}

	dispatch := func(id uint16, args ...uint32) {
		t.Helper()
		out := protocol.NewScratchOutput()
		for _, a := range args {
			protocol.EncodeVLQUint(out, a)
		}
		data := append([]byte(nil), out.Result()...)
		if err := registry.Dispatch(id, &data); err != nil {
			t.Fatalf("Dispatch %s failed: %v", protocol.CommandName(id), err)
		}
		if len(data) != 0 {
			t.Errorf("%s left %d argument bytes", protocol.CommandName(id), len(data))
		}
	}

	dispatch(protocol.CmdSetSpeed, 2000)
	if st := rec.last(); st.Error != protocol.StatusOK || st.Backlog != 1 {
		t.Errorf("set_speed: unexpected status %+v", st)
	}

	runFor(emu, 10)
	dispatch(protocol.CmdGetStatus)
	if st := rec.last(); st.RPM != 2000 || st.Backlog != 0 || !st.Running {
		t.Errorf("get_status: unexpected status %+v", st)
	}

	dispatch(protocol.CmdRampSpeed, 3000, 50)
	dispatch(protocol.CmdIncSpeed, 100)
	dispatch(protocol.CmdDecSpeed, 50)
	if st := rec.last(); st.Backlog != 3 {
		t.Errorf("Expected 3 queued commands, got %+v", st)
	}

	runFor(emu, 100)
	dispatch(protocol.CmdGetStatus)
	if st := rec.last(); st.RPM != 3050 {
		t.Errorf("Expected 3050 rpm after ramp, inc and dec, got %d", st.RPM)
	}

	// Fill the backlog
	for i := 0; i < SpeedBacklogSize; i++ {
		dispatch(protocol.CmdSetSpeed, 1000)
	}
	dispatch(protocol.CmdSetSpeed, 1000)
	if st := rec.last(); st.Error != protocol.StatusBacklogFull || int(st.Backlog) != SpeedBacklogSize {
		t.Errorf("Expected backlog-full status, got %+v", st)
	}

	dispatch(protocol.CmdForceSpeed, 5000)
	if st := rec.last(); st.Backlog != 1 {
		t.Errorf("force_speed should leave only itself queued, got %+v", st)
	}
	runFor(emu, 10)
	if emu.Scheduler().SpeedRPM() != 5000 {
		t.Errorf("Expected forced 5000 rpm, got %d", emu.Scheduler().SpeedRPM())
	}

	dispatch(protocol.CmdSelectConfig, 7, 0)
	if st := rec.last(); st.Error != protocol.StatusUnknownConfig || st.Crank != 0 {
		t.Errorf("Expected unknown-config status, got %+v", st)
	}
	dispatch(protocol.CmdSelectConfig, 2, 1)
	if st := rec.last(); st.Error != protocol.StatusOK || st.Crank != 2 || st.Cam != 1 {
		t.Errorf("select_config: unexpected status %+v", st)
	}
}

func TestEmulatorCommandBadArgs(t *testing.T) {
	registry := NewCommandRegistry()
	emu := NewEmulator(NewSimTimer(), testClockHz, 10)
	rec := &statusRecorder{}
	RegisterEmulatorCommands(registry, emu, rec)

	var data []byte
	if err := registry.Dispatch(protocol.CmdRampSpeed, &data); err == nil {
		t.Error("ramp_speed without arguments should fail")
	}
	if len(rec.statuses) != 1 || rec.last().Error != protocol.StatusBadArgs {
		t.Errorf("Expected a bad-args status, got %+v", rec.statuses)
	}
}

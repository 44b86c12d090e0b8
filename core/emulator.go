package core

import "errors"

var ErrNotInitialized = errors.New("emulator has no wheels selected")

// CustomSelector marks wheels installed with SelectWheels rather than a table index
const CustomSelector = 0xFF

// Status is a snapshot of the emulator for the command channel
type Status struct {
	RPM       uint32 // Speed applied to the timer
	Target    uint32 // Speed the active command heads to
	Backlog   int
	Prescaler uint32
	Crank     uint8
	Cam       uint8
	Running   bool
}

// Emulator owns the whole signal chain: generators over the selected
// wheels, the timer scheduler, the speed manager and the task polling it.
// All methods run in the foreground loop.
type Emulator struct {
	sched *TimerScheduler
	crank *Generator
	cam   *Generator
	speed *SpeedManager
	task  *SpeedTask

	crankSel uint8
	camSel   uint8
	selected bool
	running  bool
}

// NewEmulator builds the signal chain over timer; resolutionMS is the speed
// poll period (0 selects the default).
func NewEmulator(timer CompareTimer, clockHz, resolutionMS uint32) *Emulator {
	e := &Emulator{
		sched: NewTimerScheduler(timer, clockHz),
		speed: NewSpeedManager(resolutionMS),
	}
	e.task = NewSpeedTask(e.speed, e.sched)
	return e
}

// SelectConfig switches to static wheels by table index.
// A running emulator restarts at its current speed.
func (e *Emulator) SelectConfig(crankIdx, camIdx uint8) error {
	crank, err := CrankWheel(crankIdx)
	if err != nil {
		return err
	}
	cam, err := CamWheel(camIdx)
	if err != nil {
		return err
	}
	if err := e.SelectWheels(crank, cam); err != nil {
		return err
	}
	e.crankSel = crankIdx
	e.camSel = camIdx
	return nil
}

// SelectWheels installs arbitrary wheels
func (e *Emulator) SelectWheels(crank, cam *Wheel) error {
	if crank == nil || cam == nil {
		return ErrEmptyWheel
	}
	// No compare interrupt may run between the rebind and the restart
	if e.running {
		e.sched.Stop()
	}
	if e.crank == nil {
		e.crank = NewGenerator(crank)
		e.cam = NewGenerator(cam)
	} else {
		e.crank.Bind(crank)
		e.cam.Bind(cam)
	}

	if err := e.sched.Initialize(e.cam, e.crank); err != nil {
		return err
	}
	e.selected = true
	e.crankSel = CustomSelector
	e.camSel = CustomSelector

	if e.running {
		e.sched.SetSpeedRPM(e.task.Applied())
		e.sched.Start()
	}
	return nil
}

// Start forces rpm, starts both channels and begins polling the speed manager
func (e *Emulator) Start(rpm uint32) error {
	if !e.selected {
		return ErrNotInitialized
	}

	e.speed.ForceCommand(FixedSpeed(rpm))
	rpm = e.speed.Poll()
	e.sched.SetSpeedRPM(rpm)
	e.task.MarkApplied(rpm)

	e.sched.Start()
	e.task.Start()
	e.running = true
	DebugPrintln("[EMU] started at " + utoa(rpm) + " rpm")
	return nil
}

// Stop halts the outputs and the speed task
func (e *Emulator) Stop() {
	e.task.Stop()
	e.sched.Stop()
	e.running = false
}

// Service runs due foreground work; call it from the main loop after
// advancing system time.
func (e *Emulator) Service() {
	ProcessTimers()
}

// Enqueue appends a speed command to the backlog
func (e *Emulator) Enqueue(cmd SpeedCommand) error {
	return e.speed.Enqueue(cmd)
}

// Force drops the backlog and any ramp in progress in favour of cmd
func (e *Emulator) Force(cmd SpeedCommand) {
	e.speed.ForceCommand(cmd)
}

// Signal returns the generator the interrupt vectors must call
func (e *Emulator) Signal() SignalGenerator {
	return e.sched
}

// Scheduler returns the timer scheduler
func (e *Emulator) Scheduler() *TimerScheduler {
	return e.sched
}

// Speed returns the speed manager
func (e *Emulator) Speed() *SpeedManager {
	return e.speed
}

// Running reports whether Start was called since the last Stop
func (e *Emulator) Running() bool {
	return e.running
}

// Status returns a snapshot for the command channel
func (e *Emulator) Status() Status {
	return Status{
		RPM:       e.sched.SpeedRPM(),
		Target:    e.speed.Target(),
		Backlog:   e.speed.Pending(),
		Prescaler: e.sched.Prescaler(),
		Crank:     e.crankSel,
		Cam:       e.camSel,
		Running:   e.running,
	}
}

package core

// PotConfig describes how a speed potentiometer is sampled and mapped
type PotConfig struct {
	MinRPM      uint32 // Speed at the bottom of the travel
	MaxRPM      uint32 // Speed at the top of the travel
	DeadbandRPM uint32 // Changes up to this size are ignored
	SampleCount uint8  // Readings averaged per update
	SampleMS    uint32 // Between readings
	UpdateMS    uint32 // Between speed updates
}

// DefaultPotConfig is the bench knob: 100 to 8000 rpm, 8x oversampled
var DefaultPotConfig = PotConfig{
	MinRPM:      100,
	MaxRPM:      8000,
	DeadbandRPM: 20,
	SampleCount: 8,
	SampleMS:    1,
	UpdateMS:    100,
}

// PotTask samples a potentiometer from the timer list and queues the
// matching speed on an emulator. It runs until Stop, which the firmware
// calls once a host starts sending commands.
type PotTask struct {
	timer Timer
	cfg   PotConfig
	read  func() uint16
	emu   *Emulator

	sum     uint32
	samples uint8

	last    uint32
	hasLast bool
	running bool
}

// NewPotTask binds read, a 16-bit scaled ADC sample, to emu
func NewPotTask(emu *Emulator, read func() uint16, cfg PotConfig) *PotTask {
	if cfg.SampleCount == 0 {
		cfg.SampleCount = 1
	}
	if cfg.MaxRPM < cfg.MinRPM {
		cfg.MinRPM, cfg.MaxRPM = cfg.MaxRPM, cfg.MinRPM
	}
	p := &PotTask{cfg: cfg, read: read, emu: emu}
	p.timer.Handler = p.sample
	return p
}

// Start schedules the first reading
func (p *PotTask) Start() {
	if p.running {
		return
	}
	p.sum, p.samples = 0, 0
	p.timer.WakeTime = GetTime() + TimerFromMS(p.cfg.SampleMS)
	p.running = true
	ScheduleTimer(&p.timer)
}

// Stop removes the task from the timer list
func (p *PotTask) Stop() {
	if !p.running {
		return
	}
	CancelTimer(&p.timer)
	p.running = false
}

// Running reports whether the knob still controls the speed
func (p *PotTask) Running() bool {
	return p.running
}

// Last returns the last speed queued from the knob
func (p *PotTask) Last() uint32 {
	return p.last
}

func (p *PotTask) sample(t *Timer) uint8 {
	p.sum += uint32(p.read())
	p.samples++
	if p.samples < p.cfg.SampleCount {
		t.WakeTime = CurrentTime() + TimerFromMS(p.cfg.SampleMS)
		return SF_RESCHEDULE
	}

	raw := uint16(p.sum / uint32(p.samples))
	p.sum, p.samples = 0, 0

	rpm := PotToRPM(raw, p.cfg.MinRPM, p.cfg.MaxRPM)
	if !p.hasLast || absDiff(rpm, p.last) > p.cfg.DeadbandRPM {
		// A full backlog retries on the next update
		if p.emu.Enqueue(FixedSpeed(rpm)) == nil {
			p.last = rpm
			p.hasLast = true
		}
	}

	t.WakeTime = CurrentTime() + TimerFromMS(p.cfg.UpdateMS)
	return SF_RESCHEDULE
}

// PotToRPM maps a 16-bit reading linearly onto [min, max]
func PotToRPM(raw uint16, min, max uint32) uint32 {
	return min + uint32(uint64(raw)*uint64(max-min)/0xFFFF)
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

package core

// CrankConfig describes a crankshaft wheel with a missing-tooth gap
type CrankConfig struct {
	Name         string
	ToothCount   uint8
	MissingTeeth uint8
	MainEdge     Edge // Edge of event 0; edges alternate from there
}

// Validate checks the tooth counts against the wheel capacity
func (c *CrankConfig) Validate() error {
	if c.MissingTeeth == 0 || c.MissingTeeth >= c.ToothCount {
		return ErrInvalidCrankConfig
	}
	if int(c.ToothCount)*2 > WheelCapacity {
		return ErrConfigOverflow
	}
	return nil
}

// BuildCrankWheel derives the event sequence of a crank wheel.
//
// Each tooth produces two events (main edge and its inverse) of
// RevTicks/ToothCount/2 ticks. The 2*MissingTeeth events following event 0
// do not generate, which leaves the gap the ECU synchronizes on. Any
// truncation remainder is added to the last event so the wheel always
// covers exactly RevTicks.
func BuildCrankWheel(cfg *CrankConfig) (*Wheel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Wheel{}
	n := int(cfg.ToothCount) * 2
	delta := uint32(RevTicks) / uint32(cfg.ToothCount) / 2
	gapEnd := int(cfg.MissingTeeth) * 2

	for idx := 0; idx < n; idx++ {
		edge := cfg.MainEdge
		if idx%2 != 0 {
			edge = edge.Invert()
		}
		generates := idx == 0 || idx > gapEnd
		w.push(delta, edge, generates)
	}

	if rem := uint32(RevTicks) - delta*uint32(n); rem != 0 {
		w.events[n-1].Delta += rem
	}

	return w, nil
}

// MustCrankWheel builds a wheel from a static table and panics on a bad table
func MustCrankWheel(cfg *CrankConfig) *Wheel {
	w, err := BuildCrankWheel(cfg)
	if err != nil {
		panic("crank config " + cfg.Name + ": " + err.Error())
	}
	return w
}

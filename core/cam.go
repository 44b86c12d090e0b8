package core

// CamEntry is one calibrated cam position: the angle since the previous
// entry and the edge produced there.
type CamEntry struct {
	Angle uint32
	Edge  Edge
}

// CamConfig is a calibration profile for the camshaft signal.
//
//	Level
//	^
//	0      1      2                3              4
//	|------+      +----------------+              +------
//	|  ag0 |  ag1 |      ag2       |     ag3      |  ag4
//	+------+------+----------------+--------------+------> Angle
//
// The first angle is measured from the crank reference (the gap), the last
// one closes the revolution. When Alternate is set, entry edges are ignored
// and derived from FirstEdge, alternating from entry 0.
type CamConfig struct {
	Name      string
	Entries   []CamEntry
	Alternate bool
	FirstEdge Edge
}

// Validate checks capacity and that the profile covers exactly one revolution
func (c *CamConfig) Validate() error {
	if len(c.Entries) == 0 {
		return ErrEmptyWheel
	}
	if len(c.Entries) > WheelCapacity {
		return ErrConfigOverflow
	}
	var sum uint64
	for _, e := range c.Entries {
		sum += uint64(e.Angle)
	}
	if sum != RevTicks {
		return ErrCamAngleSum
	}
	return nil
}

// EdgeAt returns the configured edge for entry i
func (c *CamConfig) EdgeAt(i int) Edge {
	if !c.Alternate {
		return c.Entries[i].Edge
	}
	if i%2 == 0 {
		return c.FirstEdge
	}
	return c.FirstEdge.Invert()
}

// BuildCamWheel copies a calibration profile into a wheel. Every cam event generates.
func BuildCamWheel(cfg *CamConfig) (*Wheel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Wheel{}
	for i, e := range cfg.Entries {
		w.push(e.Angle, cfg.EdgeAt(i), true)
	}
	return w, nil
}

// MustCamWheel builds a wheel from a static table and panics on a bad table
func MustCamWheel(cfg *CamConfig) *Wheel {
	w, err := BuildCamWheel(cfg)
	if err != nil {
		panic("cam config " + cfg.Name + ": " + err.Error())
	}
	return w
}

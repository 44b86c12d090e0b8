package bench

import (
	"errors"
	"fmt"

	"crkcam/config"
	"crkcam/core"
)

var ErrNoRevolutions = errors.New("revolutions must be positive")

// SimReport summarizes an offline run of the signal chain
type SimReport struct {
	RPM          uint32 // Requested
	EffectiveRPM uint32 // What the prescaler produces
	MeasuredRPM  uint32 // From one simulated revolution
	Prescaler    uint32
	Revolutions  int

	CrankEdges int // Per revolution
	CamEdges   int
	Spurious   uint32

	// First recorded revolution, in counter positions
	CrankPositions []uint32
	CamPositions   []uint32
}

// Simulate runs the profile's wheels at rpm on a simulated timer and
// records revs revolutions after a settling one.
func Simulate(cfg *config.BenchConfig, rpm uint32, revs int) (*SimReport, error) {
	if revs <= 0 {
		return nil, ErrNoRevolutions
	}

	crank, cam, err := cfg.Wheels()
	if err != nil {
		return nil, err
	}
	b, err := core.NewBench(crank, cam, cfg.SimClockHz)
	if err != nil {
		return nil, fmt.Errorf("bench: %w", err)
	}

	b.Scheduler.SetSpeedRPM(rpm)
	b.Scheduler.Start()

	// The outputs start low; settle for one revolution before recording
	b.RunRevolutions(1)
	b.ClearEdges()
	start := b.Timer.Ticks()
	b.RunRevolutions(revs)

	crankEdges := b.Edges(core.ChannelCrank)
	camEdges := b.Edges(core.ChannelCam)

	return &SimReport{
		RPM:            core.ClampSpeed(rpm),
		EffectiveRPM:   b.Scheduler.EffectiveRPM(),
		MeasuredRPM:    b.MeasuredRPM(core.RevTicks),
		Prescaler:      b.Scheduler.Prescaler(),
		Revolutions:    revs,
		CrankEdges:     len(crankEdges) / revs,
		CamEdges:       len(camEdges) / revs,
		Spurious:       b.Scheduler.Spurious(),
		CrankPositions: firstRevolution(crankEdges, start),
		CamPositions:   firstRevolution(camEdges, start),
	}, nil
}

func firstRevolution(edges []core.EdgeRecord, start uint64) []uint32 {
	var pos []uint32
	for _, e := range edges {
		if e.Tick > start+core.RevTicks {
			break
		}
		pos = append(pos, uint32(e.Tick%core.RevTicks))
	}
	return pos
}

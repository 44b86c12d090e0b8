package core

import "errors"

// ErrUnknownConfig is returned for a selector outside the static tables
var ErrUnknownConfig = errors.New("unknown wheel config")

// CrankConfigs is the static crank table, selectable by index
var CrankConfigs = [...]CrankConfig{
	{Name: "60-2", ToothCount: 60, MissingTeeth: 2, MainEdge: EdgeFalling},
	{Name: "36-1", ToothCount: 36, MissingTeeth: 1, MainEdge: EdgeRising},
	{Name: "120-2", ToothCount: 120, MissingTeeth: 2, MainEdge: EdgeFalling},
}

// CamConfigs is the static cam table, selectable by index
var CamConfigs = [...]CamConfig{
	{
		// Bench calibration profile, 21 events
		Name: "bench-21",
		Entries: []CamEntry{
			{1445, EdgeFalling},
			{500, EdgeRising},
			{4000, EdgeFalling},
			{500, EdgeRising},
			{1000, EdgeFalling},
			{500, EdgeRising},
			{2500, EdgeFalling},
			{500, EdgeRising},
			{2500, EdgeFalling},
			{500, EdgeRising},
			{5500, EdgeFalling},
			{500, EdgeRising},
			{5500, EdgeFalling},
			{500, EdgeRising},
			{2500, EdgeFalling},
			{500, EdgeRising},
			{2500, EdgeFalling},
			{500, EdgeRising},
			{1000, EdgeFalling},
			{500, EdgeRising},
			{2555, EdgeRising},
		},
	},
	{
		Name:      "half-moon",
		Entries:   []CamEntry{{Angle: 18000}, {Angle: 18000}},
		Alternate: true,
		FirstEdge: EdgeRising,
	},
	{
		Name: "4-tooth",
		Entries: []CamEntry{
			{Angle: 4500}, {Angle: 4500}, {Angle: 4500}, {Angle: 4500},
			{Angle: 4500}, {Angle: 4500}, {Angle: 4500}, {Angle: 4500},
		},
		Alternate: true,
		FirstEdge: EdgeRising,
	},
}

// Wheels are built once from the static tables; a bad table halts at init.
var (
	crankWheels = buildCrankWheels()
	camWheels   = buildCamWheels()
)

func buildCrankWheels() []*Wheel {
	wheels := make([]*Wheel, len(CrankConfigs))
	for i := range CrankConfigs {
		wheels[i] = MustCrankWheel(&CrankConfigs[i])
	}
	return wheels
}

func buildCamWheels() []*Wheel {
	wheels := make([]*Wheel, len(CamConfigs))
	for i := range CamConfigs {
		wheels[i] = MustCamWheel(&CamConfigs[i])
	}
	return wheels
}

// CrankWheel returns the prebuilt wheel for crank selector idx
func CrankWheel(idx uint8) (*Wheel, error) {
	if int(idx) >= len(crankWheels) {
		return nil, ErrUnknownConfig
	}
	return crankWheels[idx], nil
}

// CamWheel returns the prebuilt wheel for cam selector idx
func CamWheel(idx uint8) (*Wheel, error) {
	if int(idx) >= len(camWheels) {
		return nil, ErrUnknownConfig
	}
	return camWheels[idx], nil
}

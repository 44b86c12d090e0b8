package config

// SerialConfig selects the command channel port
type SerialConfig struct {
	Device        string // e.g. "/dev/ttyUSB0", "COM3"
	Baud          int
	ReadTimeoutMS int
}

// CrankWheelConfig describes a custom missing-tooth crank wheel
type CrankWheelConfig struct {
	Name         string
	Teeth        uint8
	MissingTeeth uint8
	MainEdge     string // "rising" or "falling"
}

// CamWheelConfig describes a custom cam profile in angle ticks
// (36000 per revolution). Without Edges, edges alternate from FirstEdge.
type CamWheelConfig struct {
	Name      string
	Angles    []uint32
	Edges     []string // Optional, one per angle
	FirstEdge string
}

// BenchConfig is the host-side bench profile
type BenchConfig struct {
	Serial SerialConfig

	Crank uint8 // Static crank table index
	Cam   uint8 // Static cam table index

	StartRPM         uint32
	RampResolutionMS uint32

	// Offline simulator
	SimClockHz  uint32
	CustomCrank *CrankWheelConfig // Overrides Crank when set
	CustomCam   *CamWheelConfig   // Overrides Cam when set
}

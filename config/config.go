package config

import (
	"crkcam/core"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrBadEdge = errors.New("edge must be \"rising\" or \"falling\"")

// Load parses a JSON bench profile and fills in missing values
func Load(jsonData []byte) (*BenchConfig, error) {
	var cfg BenchConfig
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and parses a bench profile from path
func LoadFile(path string) (*BenchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *BenchConfig) {
	if cfg.Serial.Device == "" {
		cfg.Serial.Device = "/dev/ttyUSB0"
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 115200
	}
	if cfg.Serial.ReadTimeoutMS == 0 {
		cfg.Serial.ReadTimeoutMS = 100
	}

	if cfg.StartRPM == 0 {
		cfg.StartRPM = 1000
	}
	if cfg.RampResolutionMS == 0 {
		cfg.RampResolutionMS = core.DefaultRampResolutionMS
	}
	if cfg.SimClockHz == 0 {
		cfg.SimClockHz = 72000000 // STM32F103 timer clock
	}

	if cfg.CustomCrank != nil && cfg.CustomCrank.MainEdge == "" {
		cfg.CustomCrank.MainEdge = "falling"
	}
	if cfg.CustomCam != nil && cfg.CustomCam.FirstEdge == "" {
		cfg.CustomCam.FirstEdge = "rising"
	}
}

// Validate checks selectors and builds any custom wheel once
func (c *BenchConfig) Validate() error {
	if int(c.Crank) >= len(core.CrankConfigs) {
		return fmt.Errorf("crank %d: %w", c.Crank, core.ErrUnknownConfig)
	}
	if int(c.Cam) >= len(core.CamConfigs) {
		return fmt.Errorf("cam %d: %w", c.Cam, core.ErrUnknownConfig)
	}
	_, _, err := c.Wheels()
	return err
}

// Wheels returns the crank and cam wheels the profile selects
func (c *BenchConfig) Wheels() (crank, cam *core.Wheel, err error) {
	if c.CustomCrank != nil {
		crank, err = c.CustomCrank.Build()
	} else {
		crank, err = core.CrankWheel(c.Crank)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("crank wheel: %w", err)
	}

	if c.CustomCam != nil {
		cam, err = c.CustomCam.Build()
	} else {
		cam, err = core.CamWheel(c.Cam)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("cam wheel: %w", err)
	}
	return crank, cam, nil
}

// Build derives the crank wheel
func (w *CrankWheelConfig) Build() (*core.Wheel, error) {
	edge, err := ParseEdge(w.MainEdge)
	if err != nil {
		return nil, err
	}
	return core.BuildCrankWheel(&core.CrankConfig{
		Name:         w.Name,
		ToothCount:   w.Teeth,
		MissingTeeth: w.MissingTeeth,
		MainEdge:     edge,
	})
}

// Build derives the cam wheel
func (w *CamWheelConfig) Build() (*core.Wheel, error) {
	cfg := &core.CamConfig{
		Name:    w.Name,
		Entries: make([]core.CamEntry, len(w.Angles)),
	}

	if len(w.Edges) == 0 {
		first, err := ParseEdge(w.FirstEdge)
		if err != nil {
			return nil, err
		}
		cfg.Alternate = true
		cfg.FirstEdge = first
	} else if len(w.Edges) != len(w.Angles) {
		return nil, fmt.Errorf("%d edges for %d angles", len(w.Edges), len(w.Angles))
	}

	for i, a := range w.Angles {
		cfg.Entries[i].Angle = a
		if cfg.Alternate {
			continue
		}
		edge, err := ParseEdge(w.Edges[i])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		cfg.Entries[i].Edge = edge
	}

	return core.BuildCamWheel(cfg)
}

// ParseEdge accepts "rising"/"r"/"1" and "falling"/"f"/"0", case-insensitive
func ParseEdge(s string) (core.Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising", "r", "1":
		return core.EdgeRising, nil
	case "falling", "f", "0":
		return core.EdgeFalling, nil
	}
	return core.EdgeFalling, fmt.Errorf("%q: %w", s, ErrBadEdge)
}

// Default returns the canonical bench: 60-2 crank, calibrated cam, 1000 rpm
func Default() *BenchConfig {
	cfg := &BenchConfig{}
	applyDefaults(cfg)
	return cfg
}

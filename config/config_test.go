package config

import (
	"crkcam/core"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load([]byte(`{"Serial": {"Device": "/dev/ttyACM0"}, "Crank": 1}`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Serial.Device != "/dev/ttyACM0" {
		t.Errorf("Device not kept: %s", cfg.Serial.Device)
	}
	if cfg.Serial.Baud != 115200 || cfg.Serial.ReadTimeoutMS != 100 {
		t.Errorf("Serial defaults not applied: %+v", cfg.Serial)
	}
	if cfg.StartRPM != 1000 || cfg.RampResolutionMS != core.DefaultRampResolutionMS || cfg.SimClockHz != 72000000 {
		t.Errorf("Defaults not applied: %+v", cfg)
	}
	if cfg.Crank != 1 || cfg.Cam != 0 {
		t.Errorf("Selectors: crank %d cam %d", cfg.Crank, cfg.Cam)
	}
}

func TestLoadRejectsUnknownSelector(t *testing.T) {
	_, err := Load([]byte(`{"Cam": 42}`))
	if !errors.Is(err, core.ErrUnknownConfig) {
		t.Errorf("Expected ErrUnknownConfig, got %v", err)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	if _, err := Load([]byte(`{"Crank": `)); err == nil {
		t.Error("Expected error for truncated JSON")
	}
}

func TestCustomWheels(t *testing.T) {
	cfg, err := Load([]byte(`{
		"CustomCrank": {"Name": "36-2", "Teeth": 36, "MissingTeeth": 2, "MainEdge": "rising"},
		"CustomCam": {"Name": "two-step", "Angles": [9000, 27000], "Edges": ["r", "f"]}
	}`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	crank, cam, err := cfg.Wheels()
	if err != nil {
		t.Fatalf("Wheels failed: %v", err)
	}
	if crank.Len() != 72 || crank.Event(0).Edge != core.EdgeRising {
		t.Errorf("Unexpected crank wheel: %d events, first edge %v", crank.Len(), crank.Event(0).Edge)
	}
	if cam.Len() != 2 || cam.Event(0).Edge != core.EdgeRising || cam.Event(1).Edge != core.EdgeFalling {
		t.Errorf("Unexpected cam wheel")
	}
}

func TestCustomCamAlternates(t *testing.T) {
	cfg, err := Load([]byte(`{"CustomCam": {"Angles": [18000, 18000], "FirstEdge": "falling"}}`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	_, cam, _ := cfg.Wheels()
	if cam.Event(0).Edge != core.EdgeFalling || cam.Event(1).Edge != core.EdgeRising {
		t.Error("Edges should alternate from FirstEdge")
	}
}

func TestCustomWheelErrors(t *testing.T) {
	testCases := []struct {
		name     string
		json     string
		expected error
	}{
		{"cam sum", `{"CustomCam": {"Angles": [1000, 2000]}}`, core.ErrCamAngleSum},
		{"crank gap", `{"CustomCrank": {"Teeth": 10, "MissingTeeth": 0}}`, core.ErrInvalidCrankConfig},
		{"bad edge", `{"CustomCrank": {"Teeth": 10, "MissingTeeth": 1, "MainEdge": "up"}}`, ErrBadEdge},
	}

	for _, tc := range testCases {
		if _, err := Load([]byte(tc.json)); !errors.Is(err, tc.expected) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.expected, err)
		}
	}

	if _, err := Load([]byte(`{"CustomCam": {"Angles": [36000], "Edges": ["r", "f"]}}`)); err == nil {
		t.Error("Expected error for mismatched edge count")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.json")
	if err := os.WriteFile(path, []byte(`{"StartRPM": 3000}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.StartRPM != 3000 {
		t.Errorf("Expected StartRPM 3000, got %d", cfg.StartRPM)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default profile invalid: %v", err)
	}
	crank, cam, _ := cfg.Wheels()
	if crank.Len() != 120 || cam.Len() != len(core.CamConfigs[0].Entries) {
		t.Errorf("Default should be the 60-2 crank with the bench cam")
	}
}

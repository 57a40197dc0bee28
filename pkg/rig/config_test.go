package rig

import (
	"path/filepath"
	"testing"
)

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soilrig.json")

	cfg := DefaultConfig()
	cfg.Scale.Factor = 412.5
	cfg.Scale.Offset = 83250
	cfg.Camera.SaveDir = "/data/captures"
	cfg.Camera.GNSSPort = "/dev/ttyACM0"

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if loaded.Scale.Factor != 412.5 {
		t.Errorf("factor = %g, want 412.5", loaded.Scale.Factor)
	}
	if loaded.Scale.Offset != 83250 {
		t.Errorf("offset = %g, want 83250", loaded.Scale.Offset)
	}
	if loaded.Scale.DataPin != "GPIO27" || loaded.Scale.ClockPin != "GPIO17" {
		t.Errorf("pins = %s/%s, want GPIO27/GPIO17",
			loaded.Scale.DataPin, loaded.Scale.ClockPin)
	}
	if loaded.Camera.GNSSPort != "/dev/ttyACM0" {
		t.Errorf("gnss port = %q, want /dev/ttyACM0", loaded.Camera.GNSSPort)
	}
}

func TestLoadConfigFromMissing(t *testing.T) {
	if _, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestIsCalibrated(t *testing.T) {
	tests := []struct {
		name   string
		factor float64
		want   bool
	}{
		{"unset", 0, false},
		{"default", 1, false},
		{"calibrated", 412.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &ScaleConfig{Factor: tt.factor}
			if got := s.IsCalibrated(); got != tt.want {
				t.Errorf("IsCalibrated() = %v, want %v", got, tt.want)
			}
		})
	}
}

package rig

import (
	"encoding/json"
	"os"
)

const DefaultConfigFile = "soilrig.json"

// Config holds the rig configuration shared by the soilrig subcommands
// and the hxcal calibration helper
type Config struct {
	Scale  ScaleConfig  `json:"scale"`
	Camera CameraConfig `json:"camera,omitempty"`
}

// ScaleConfig holds the HX711 load-cell wiring and calibration
type ScaleConfig struct {
	DataPin  string `json:"data_pin"`
	ClockPin string `json:"clock_pin"`
	// Factor converts tared raw counts to grams (counts per gram).
	Factor float64 `json:"factor,omitempty"`
	// Offset is the raw reading of the empty platform at calibration time.
	Offset float64 `json:"offset,omitempty"`
}

// CameraConfig carries defaults for the camera subcommand
type CameraConfig struct {
	SaveDir  string  `json:"save_dir,omitempty"`
	GNSSPort string  `json:"gnss_port,omitempty"`
	HFOVDeg  float64 `json:"hfov_deg,omitempty"`
}

// DefaultConfig returns the rig's wiring defaults with an uncalibrated
// scale
func DefaultConfig() *Config {
	return &Config{
		Scale: ScaleConfig{DataPin: "GPIO27", ClockPin: "GPIO17", Factor: 1},
	}
}

// IsCalibrated returns true if a scale factor has been stored
func (s *ScaleConfig) IsCalibrated() bool {
	return s.Factor != 0 && s.Factor != 1
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}

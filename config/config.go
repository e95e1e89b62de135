// Package config loads bus instance configuration from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"i2cctl/core"
)

// Config is the top-level configuration file.
type Config struct {
	Fcy   uint32      `json:"fcy"`
	Buses []BusConfig `json:"buses"`
}

// BusConfig describes one bus instance. Pointer fields distinguish
// "absent" from an explicit false.
type BusConfig struct {
	Module       uint8  `json:"module"`
	Mode         string `json:"mode"` // master, slave7, slave10
	Speed        uint32 `json:"speed"`
	Address      uint16 `json:"address"`
	TimeoutMs    uint16 `json:"timeout_ms"`
	GeneralCall  bool   `json:"general_call"`
	SlewRate     *bool  `json:"slew_rate"`
	SMBus        bool   `json:"smbus"`
	Interrupts   *bool  `json:"interrupts"`
	ScanOverflow string `json:"scan_overflow"` // drop, count
}

// LoadConfig parses JSON configuration and applies defaults.
func LoadConfig(jsonData []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(config *Config) {
	if config.Fcy == 0 {
		config.Fcy = core.DefaultFcy
	}

	for i := range config.Buses {
		bus := &config.Buses[i]
		if bus.Module == 0 {
			bus.Module = uint8(i + 1)
		}
		if bus.Mode == "" {
			bus.Mode = "master"
		}
		if bus.Speed == 0 {
			bus.Speed = uint32(core.I2CSpeed100kHz)
		}
		if bus.TimeoutMs == 0 {
			bus.TimeoutMs = core.DefaultTimeoutMs
		}
		if bus.SlewRate == nil {
			on := true
			bus.SlewRate = &on
		}
		if bus.Interrupts == nil {
			// Slave modes are interrupt driven.
			on := bus.Mode != "master"
			bus.Interrupts = &on
		}
		if bus.ScanOverflow == "" {
			bus.ScanOverflow = "drop"
		}
	}
}

var modes = map[string]core.I2CMode{
	"master":  core.I2CModeMaster,
	"slave7":  core.I2CModeSlave7Bit,
	"slave10": core.I2CModeSlave10Bit,
}

var overflowPolicies = map[string]core.ScanOverflow{
	"drop":  core.ScanOverflowDrop,
	"count": core.ScanOverflowCount,
}

// Validate checks enumerated fields and address ranges.
func (c *Config) Validate() error {
	seen := make(map[uint8]bool, len(c.Buses))
	for i, bus := range c.Buses {
		mode, ok := modes[bus.Mode]
		if !ok {
			return fmt.Errorf("bus %d: unknown mode %q", i, bus.Mode)
		}
		if _, ok := overflowPolicies[bus.ScanOverflow]; !ok {
			return fmt.Errorf("bus %d: unknown scan_overflow %q", i, bus.ScanOverflow)
		}
		if mode == core.I2CModeSlave7Bit && bus.Address > 0x7F {
			return fmt.Errorf("bus %d: address 0x%X exceeds 7 bits", i, bus.Address)
		}
		if mode == core.I2CModeSlave10Bit && bus.Address > 0x3FF {
			return fmt.Errorf("bus %d: address 0x%X exceeds 10 bits", i, bus.Address)
		}
		if seen[bus.Module] {
			return fmt.Errorf("bus %d: module %d configured twice", i, bus.Module)
		}
		seen[bus.Module] = true
	}
	return nil
}

// I2CConfig converts b to the controller's configuration. The callback
// is left for the caller to install.
func (b BusConfig) I2CConfig() core.I2CConfig {
	return core.I2CConfig{
		Module:       core.I2CModule(b.Module),
		Mode:         modes[b.Mode],
		Speed:        core.I2CSpeed(b.Speed),
		Address:      b.Address,
		GeneralCall:  b.GeneralCall,
		SlewRate:     b.SlewRate == nil || *b.SlewRate,
		SMBus:        b.SMBus,
		TimeoutMs:    b.TimeoutMs,
		Interrupts:   b.Interrupts != nil && *b.Interrupts,
		ScanOverflow: overflowPolicies[b.ScanOverflow],
	}
}

// Default returns a single 100 kHz master on module 1.
func Default() *Config {
	config := &Config{Buses: []BusConfig{{Module: 1}}}
	applyDefaults(config)
	return config
}

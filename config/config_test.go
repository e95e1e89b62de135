package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"i2cctl/core"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{"buses":[{},{"mode":"slave7","address":64}]}`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Fcy != core.DefaultFcy {
		t.Errorf("Expected default Fcy %d, got %d", core.DefaultFcy, cfg.Fcy)
	}

	master := cfg.Buses[0].I2CConfig()
	if master.Module != 1 || master.Mode != core.I2CModeMaster {
		t.Errorf("Expected master on module 1, got %+v", master)
	}
	if master.Speed != core.I2CSpeed100kHz || master.TimeoutMs != core.DefaultTimeoutMs {
		t.Errorf("Expected 100kHz and default timeout, got %d / %d", master.Speed, master.TimeoutMs)
	}
	if !master.SlewRate || master.Interrupts {
		t.Errorf("Expected slew rate on and interrupts off for master, got %v / %v", master.SlewRate, master.Interrupts)
	}
	if master.ScanOverflow != core.ScanOverflowDrop {
		t.Errorf("Expected drop overflow policy by default")
	}

	slave := cfg.Buses[1].I2CConfig()
	if slave.Module != 2 || slave.Mode != core.I2CModeSlave7Bit || slave.Address != 0x40 {
		t.Errorf("Unexpected slave config %+v", slave)
	}
	if !slave.Interrupts {
		t.Error("Expected interrupts on by default for slave modes")
	}
}

func TestLoadConfigExplicit(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{
		"fcy": 16000000,
		"buses": [{"module": 2, "speed": 400000, "slew_rate": false,
		           "interrupts": true, "smbus": true, "scan_overflow": "count"}]
	}`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	bus := cfg.Buses[0].I2CConfig()
	if bus.SlewRate || !bus.Interrupts || !bus.SMBus {
		t.Errorf("Expected explicit flags kept, got %+v", bus)
	}
	if bus.ScanOverflow != core.ScanOverflowCount {
		t.Error("Expected count overflow policy")
	}
	if cfg.Fcy != 16000000 {
		t.Errorf("Expected Fcy 16000000, got %d", cfg.Fcy)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"syntax", `{"buses":[`, "unexpected"},
		{"mode", `{"buses":[{"mode":"multi"}]}`, "unknown mode"},
		{"overflow", `{"buses":[{"scan_overflow":"wrap"}]}`, "unknown scan_overflow"},
		{"address7", `{"buses":[{"mode":"slave7","address":200}]}`, "exceeds 7 bits"},
		{"address10", `{"buses":[{"mode":"slave10","address":2048}]}`, "exceeds 10 bits"},
		{"duplicate", `{"buses":[{"module":1},{"module":1}]}`, "configured twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig([]byte(tt.json))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "i2c.json")
	if err := os.WriteFile(path, []byte(`{"buses":[{"mode":"slave10","address":801}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if bus := cfg.Buses[0].I2CConfig(); bus.Mode != core.I2CModeSlave10Bit || bus.Address != 801 {
		t.Errorf("Unexpected bus %+v", bus)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if len(cfg.Buses) != 1 || cfg.Buses[0].Mode != "master" {
		t.Errorf("Unexpected default %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

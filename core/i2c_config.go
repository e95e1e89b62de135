package core

import "log/slog"

// I2CModule identifies one physical adapter (I2C1, I2C2, ...).
type I2CModule uint8

const (
	I2CModule1 I2CModule = 1
	I2CModule2 I2CModule = 2
)

// I2CMode selects master or slave operation.
type I2CMode uint8

const (
	I2CModeMaster I2CMode = iota
	I2CModeSlave7Bit
	I2CModeSlave10Bit
)

func (m I2CMode) String() string {
	switch m {
	case I2CModeMaster:
		return "master"
	case I2CModeSlave7Bit:
		return "slave-7bit"
	case I2CModeSlave10Bit:
		return "slave-10bit"
	default:
		return "unknown"
	}
}

// I2CSpeed is the SCL frequency in Hz. Any value is accepted; the
// constants are the standard bus speeds.
type I2CSpeed uint32

const (
	I2CSpeed100kHz I2CSpeed = 100000  // standard mode
	I2CSpeed400kHz I2CSpeed = 400000  // fast mode
	I2CSpeed1MHz   I2CSpeed = 1000000 // fast mode plus
)

// ScanOverflow selects what ScanBus does with responders that do not
// fit the caller's output.
type ScanOverflow uint8

const (
	// ScanOverflowDrop silently ignores extra responders.
	ScanOverflowDrop ScanOverflow = iota
	// ScanOverflowCount counts extra responders; see LastScanOverflow.
	ScanOverflowCount
)

// DefaultFcy is the instruction clock the baud-rate generator runs from.
const DefaultFcy uint32 = 40000000

// DefaultTimeoutMs is the condition-wait budget used by the default configs.
const DefaultTimeoutMs uint16 = 1000

// I2CCallback receives slave-mode events from HandleInterrupt. It runs in
// interrupt context and must not call blocking primitives; replies to
// EventDataRequested go through bus.PutByte.
type I2CCallback func(bus *I2CBus, event I2CEvent, data byte)

// I2CConfig describes one adapter.
type I2CConfig struct {
	Module  I2CModule
	Mode    I2CMode
	Speed   I2CSpeed
	Address uint16 // own address in slave modes (7 or 10 bits)

	GeneralCall bool
	SlewRate    bool // slew-rate control enabled
	SMBus       bool

	TimeoutMs  uint16
	Interrupts bool
	Callback   I2CCallback

	ScanOverflow ScanOverflow
}

// DefaultMasterConfig returns a 100 kHz master configuration.
func DefaultMasterConfig(module I2CModule) I2CConfig {
	return I2CConfig{
		Module:    module,
		Mode:      I2CModeMaster,
		Speed:     I2CSpeed100kHz,
		SlewRate:  true,
		TimeoutMs: DefaultTimeoutMs,
	}
}

// DefaultSlaveConfig returns a 7-bit slave configuration answering at 0x40.
func DefaultSlaveConfig(module I2CModule) I2CConfig {
	return I2CConfig{
		Module:      module,
		Mode:        I2CModeSlave7Bit,
		Speed:       I2CSpeed100kHz,
		Address:     0x40,
		GeneralCall: true,
		SlewRate:    true,
		TimeoutMs:   DefaultTimeoutMs,
		Interrupts:  true,
	}
}

// LogValue implements slog.LogValuer.
func (c I2CConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("module", int(c.Module)),
		slog.String("mode", c.Mode.String()),
		slog.Uint64("speed", uint64(c.Speed)),
		slog.Int("address", int(c.Address)),
		slog.Int("timeout_ms", int(c.TimeoutMs)),
		slog.Bool("general_call", c.GeneralCall),
		slog.Bool("smbus", c.SMBus),
		slog.Bool("interrupts", c.Interrupts),
	)
}

// CalculateBRG returns the baud-rate generator reload value for the
// requested SCL speed: BRG = Fcy/(2*Fscl) - 2, clamped to [2, 0xFFFF].
func CalculateBRG(fcy uint32, speed I2CSpeed) uint16 {
	if speed == 0 {
		return 0xFFFF
	}
	brg := int64(fcy)/(2*int64(speed)) - 2
	if brg > 0xFFFF {
		brg = 0xFFFF
	}
	if brg < 2 {
		brg = 2
	}
	return uint16(brg)
}

// controlBits returns the control register value Init programs for cfg.
func (c *I2CConfig) controlBits() uint16 {
	con := ConI2CEN
	if c.Mode == I2CModeSlave10Bit {
		con |= ConA10M
	}
	if c.SMBus {
		con |= ConSMEN
	}
	if !c.SlewRate {
		con |= ConDISSLW
	}
	if c.GeneralCall {
		con |= ConGCEN
	}
	return con
}

// slaveAddress returns the address register value for slave modes.
func (c *I2CConfig) slaveAddress() uint16 {
	switch c.Mode {
	case I2CModeSlave7Bit:
		return c.Address & 0x7F
	case I2CModeSlave10Bit:
		return c.Address & 0x3FF
	default:
		return 0
	}
}

package bridge

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"

	"i2cctl/core"
)

// result turns the error code of a response into an error value that
// matches the core sentinels with errors.Is.
func result(op string, module core.I2CModule, r *Response) error {
	err := core.CodeError(uint8(r.Uint("error")))
	if err == nil {
		return nil
	}
	state := core.I2CState(r.Uint("state"))
	return fmt.Errorf("%s on i2c%d (%s): %w", op, module, state, err)
}

func (c *Client) simple(op string, module core.I2CModule, args ...any) error {
	r, err := c.Request(op, "i2c_result", append([]any{module}, args...)...)
	if err != nil {
		return err
	}
	return result(op, module, r)
}

// Configure initialises a bus instance on the firmware. The callback in
// cfg is ignored; slave modes get the firmware's buffered callback.
func (c *Client) Configure(cfg core.I2CConfig) error {
	return c.simple("i2c_config", cfg.Module,
		cfg.Mode, cfg.Speed, cfg.Address, cfg.TimeoutMs, core.ConfigFlags(&cfg))
}

// Deinit disables a bus instance.
func (c *Client) Deinit(module core.I2CModule) error {
	return c.simple("i2c_deinit", module)
}

// ResetBus re-initialises a bus instance with its stored configuration.
func (c *Client) ResetBus(module core.I2CModule) error {
	return c.simple("i2c_reset", module)
}

// ClearErrors clears the sideband state and error latches.
func (c *Client) ClearErrors(module core.I2CModule) error {
	return c.simple("i2c_clear", module)
}

// SetTimeout replaces the condition-wait budget.
func (c *Client) SetTimeout(module core.I2CModule, ms uint16) error {
	return c.simple("i2c_set_timeout", module, ms)
}

// Write writes data to addr in one bracket.
func (c *Client) Write(module core.I2CModule, addr uint8, data []byte) error {
	if len(data) > core.ReadMax {
		return fmt.Errorf("write of %d bytes: %w", len(data), core.ErrInvalidArgument)
	}
	return c.simple("i2c_write", module, addr, data)
}

// Read reads n bytes from addr. A non-empty reg is written first with a
// repeated START in between. Reads beyond one response continue
// without reg, which suits auto-incrementing devices.
func (c *Client) Read(module core.I2CModule, addr uint8, reg []byte, n int) ([]byte, error) {
	if n <= 0 {
		return nil, core.ErrInvalidArgument
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		count := n - len(out)
		if count > core.ReadMax {
			count = core.ReadMax
		}
		r, err := c.Request("i2c_read", "i2c_read_response", module, addr, reg, count)
		if err != nil {
			return nil, err
		}
		if err := result("i2c_read", module, r); err != nil {
			return nil, err
		}
		out = append(out, r.Bytes["data"]...)
		reg = nil
	}
	return out, nil
}

// Probe reports whether addr acknowledges its address.
func (c *Client) Probe(module core.I2CModule, addr uint8) (bool, error) {
	err := c.simple("i2c_probe", module, addr)
	if errors.Is(err, core.ErrAddressNack) {
		return false, nil
	}
	return err == nil, err
}

// Scan lists up to max responding addresses.
func (c *Client) Scan(module core.I2CModule, max int) (core.ScanResult, error) {
	r, err := c.Request("i2c_scan", "i2c_scan_response", module, max)
	if err != nil {
		return core.ScanResult{}, err
	}
	if err := result("i2c_scan", module, r); err != nil {
		return core.ScanResult{}, err
	}
	return core.ScanResult{
		Devices:  r.Bytes["devices"],
		Overflow: int(r.Uint("overflow")),
	}, nil
}

// Status returns a snapshot of a bus instance.
func (c *Client) Status(module core.I2CModule) (core.I2CStatus, error) {
	r, err := c.Request("i2c_status", "i2c_status_response", module)
	if err != nil {
		return core.I2CStatus{}, err
	}
	if err := result("i2c_status", module, r); err != nil {
		return core.I2CStatus{}, err
	}
	return core.I2CStatus{
		Module:    module,
		Mode:      core.I2CMode(r.Uint("mode")),
		Speed:     core.I2CSpeed(r.Uint("speed")),
		Address:   uint16(r.Uint("address")),
		TimeoutMs: uint16(r.Uint("timeout")),
		BRG:       uint16(r.Uint("brg")),
		State:     core.I2CState(r.Uint("state")),
		Busy:      r.Uint("busy") != 0,
		Control:   uint16(r.Uint("con")),
		Status:    uint16(r.Uint("stat")),
	}, nil
}

// SlaveQueue queues reply bytes for an external master.
func (c *Client) SlaveQueue(module core.I2CModule, data []byte) error {
	return c.simple("i2c_slave_queue", module, data)
}

// SlaveData is what a slave-mode bus collected since the last drain.
type SlaveData struct {
	Data          []byte
	Starts, Stops int
}

// SlaveDrain collects bytes written by an external master.
func (c *Client) SlaveDrain(module core.I2CModule) (SlaveData, error) {
	r, err := c.Request("i2c_slave_drain", "i2c_slave_data", module)
	if err != nil {
		return SlaveData{}, err
	}
	if err := result("i2c_slave_drain", module, r); err != nil {
		return SlaveData{}, err
	}
	return SlaveData{
		Data:   r.Bytes["data"],
		Starts: int(r.Uint("starts")),
		Stops:  int(r.Uint("stops")),
	}, nil
}

// FirmwareConfig is the reply to get_config.
type FirmwareConfig struct {
	Configured bool
	CRC        uint32
	Shutdown   bool
	Buses      int
}

// GetConfig queries the firmware state.
func (c *Client) GetConfig() (FirmwareConfig, error) {
	r, err := c.Request("get_config", "config")
	if err != nil {
		return FirmwareConfig{}, err
	}
	return FirmwareConfig{
		Configured: r.Uint("is_config") != 0,
		CRC:        r.Uint("crc"),
		Shutdown:   r.Uint("is_shutdown") != 0,
		Buses:      int(r.Uint("buses")),
	}, nil
}

// EmergencyStop disables every bus and puts the firmware in shutdown.
func (c *Client) EmergencyStop() error {
	_, err := c.Request("emergency_stop", "shutdown")
	return err
}

// ConfigReset leaves shutdown and drops every bus.
func (c *Client) ConfigReset() error {
	return c.Send("config_reset")
}

// Bus returns a drivers.I2C running on module, so stock device drivers
// can talk to devices behind the firmware.
func (c *Client) Bus(module core.I2CModule) drivers.I2C {
	return &remoteBus{c: c, module: module}
}

type remoteBus struct {
	c      *Client
	module core.I2CModule
}

var _ drivers.I2C = (*remoteBus)(nil)

func (b *remoteBus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return core.ErrInvalidArgument
	}
	switch {
	case len(r) > 0:
		data, err := b.c.Read(b.module, uint8(addr), w, len(r))
		if err != nil {
			return err
		}
		copy(r, data)
		return nil
	case len(w) > 0:
		return b.c.Write(b.module, uint8(addr), w)
	default:
		ok, err := b.c.Probe(b.module, uint8(addr))
		if err == nil && !ok {
			err = core.ErrAddressNack
		}
		return err
	}
}

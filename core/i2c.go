package core

import "i2cctl/protocol"

// ReadMax is the largest read or scan a single command returns; the
// response has to fit one block.
const ReadMax = 48

// Flags of the i2c_config command.
const (
	ConfigGeneralCall uint32 = 1 << iota
	ConfigSlewRate
	ConfigSMBus
	ConfigInterrupts
	ConfigScanCount
)

// ConfigFlags packs the boolean fields of cfg for i2c_config.
func ConfigFlags(cfg *I2CConfig) uint32 {
	var flags uint32
	if cfg.GeneralCall {
		flags |= ConfigGeneralCall
	}
	if cfg.SlewRate {
		flags |= ConfigSlewRate
	}
	if cfg.SMBus {
		flags |= ConfigSMBus
	}
	if cfg.Interrupts {
		flags |= ConfigInterrupts
	}
	if cfg.ScanOverflow == ScanOverflowCount {
		flags |= ConfigScanCount
	}
	return flags
}

func (f *Firmware) registerI2CCommands() {
	r := f.registry
	r.Register("i2c_config", "module=%c mode=%c speed=%u address=%hu timeout=%hu flags=%c", f.handleI2CConfig)
	r.Register("i2c_deinit", "module=%c", f.handleI2CDeinit)
	r.Register("i2c_reset", "module=%c", f.handleI2CReset)
	r.Register("i2c_write", "module=%c addr=%c data=%*s", f.handleI2CWrite)
	r.Register("i2c_read", "module=%c addr=%c reg=%*s count=%c", f.handleI2CRead)
	r.Register("i2c_probe", "module=%c addr=%c", f.handleI2CProbe)
	r.Register("i2c_scan", "module=%c max=%c", f.handleI2CScan)
	r.Register("i2c_status", "module=%c", f.handleI2CStatus)
	r.Register("i2c_clear", "module=%c", f.handleI2CClear)
	r.Register("i2c_set_timeout", "module=%c timeout=%hu", f.handleI2CSetTimeout)
	r.Register("i2c_slave_queue", "module=%c data=%*s", f.handleI2CSlaveQueue)
	r.Register("i2c_slave_drain", "module=%c", f.handleI2CSlaveDrain)

	r.RegisterResponse("i2c_result", "module=%c error=%c state=%c")
	r.RegisterResponse("i2c_read_response", "module=%c error=%c state=%c data=%*s")
	r.RegisterResponse("i2c_scan_response", "module=%c error=%c overflow=%c devices=%*s")
	r.RegisterResponse("i2c_status_response",
		"module=%c error=%c mode=%c state=%c busy=%c speed=%u address=%hu timeout=%hu brg=%hu con=%hu stat=%hu")
	r.RegisterResponse("i2c_slave_data", "module=%c error=%c starts=%u stops=%u data=%*s")

	f.dict.AddConstant("I2C_READ_MAX", ReadMax)
	f.dict.AddConstant("I2C_MODULES", len(f.ctrl.Modules()))
	f.dict.AddEnumeration("i2c_mode", []string{
		I2CModeMaster:     I2CModeMaster.String(),
		I2CModeSlave7Bit:  I2CModeSlave7Bit.String(),
		I2CModeSlave10Bit: I2CModeSlave10Bit.String(),
	})
	f.dict.AddEnumeration("i2c_state", stateNames[:])
	f.dict.AddEnumeration("i2c_error", errorNames())
}

// bus resolves a module argument. Bus commands are refused in shutdown.
func (f *Firmware) bus(module uint32) (*I2CBus, error) {
	if f.IsShutdown() {
		return nil, ErrShutdown
	}
	bus, ok := f.ctrl.Bus(I2CModule(module))
	if !ok {
		return nil, ErrNotConfigured
	}
	return bus, nil
}

func (f *Firmware) sendResult(module uint32, err error, state I2CState) error {
	return f.SendResponse("i2c_result", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, module)
		protocol.EncodeVLQUint(output, uint32(ErrorCode(err)))
		protocol.EncodeVLQUint(output, uint32(state))
	})
}

// handleI2CConfig initialises a module. Slave modes get a SlaveBuffer
// callback served by i2c_slave_queue and i2c_slave_drain.
func (f *Firmware) handleI2CConfig(data *[]byte) error {
	args, err := protocol.DecodeVLQArgs(data, 6)
	if err != nil {
		return err
	}
	module := args[0]
	if f.IsShutdown() {
		return f.sendResult(module, ErrShutdown, I2CStateIdle)
	}

	cfg := &I2CConfig{
		Module:      I2CModule(module),
		Mode:        I2CMode(args[1]),
		Speed:       I2CSpeed(args[2]),
		Address:     uint16(args[3]),
		TimeoutMs:   uint16(args[4]),
		GeneralCall: args[5]&ConfigGeneralCall != 0,
		SlewRate:    args[5]&ConfigSlewRate != 0,
		SMBus:       args[5]&ConfigSMBus != 0,
		Interrupts:  args[5]&ConfigInterrupts != 0,
	}
	if args[5]&ConfigScanCount != 0 {
		cfg.ScanOverflow = ScanOverflowCount
	}
	if cfg.Mode > I2CModeSlave10Bit {
		return f.sendResult(module, ErrInvalidArgument, I2CStateIdle)
	}
	var sb *SlaveBuffer
	if cfg.Mode != I2CModeMaster {
		sb = NewSlaveBuffer()
		cfg.Callback = sb.Handle
	}

	bus, err := f.ctrl.Init(cfg)
	if err != nil {
		return f.sendResult(module, err, I2CStateIdle)
	}
	if sb != nil {
		f.slaves[cfg.Module] = sb
	} else {
		delete(f.slaves, cfg.Module)
	}
	f.log.Info("bus configured", "config", cfg)
	return f.sendResult(module, nil, bus.LastError())
}

func (f *Firmware) handleI2CDeinit(data *[]byte) error {
	module, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if _, err := f.bus(module); err != nil {
		return f.sendResult(module, err, I2CStateIdle)
	}
	f.ctrl.Deinit(I2CModule(module))
	return f.sendResult(module, nil, I2CStateIdle)
}

// handleI2CReset re-initialises a module, the way out of a timeout.
func (f *Firmware) handleI2CReset(data *[]byte) error {
	module, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if _, err := f.bus(module); err != nil {
		return f.sendResult(module, err, I2CStateIdle)
	}
	bus, err := f.ctrl.Reset(I2CModule(module))
	if err != nil {
		return f.sendResult(module, err, I2CStateIdle)
	}
	return f.sendResult(module, nil, bus.LastError())
}

func (f *Firmware) handleI2CWrite(data *[]byte) error {
	args, err := protocol.DecodeVLQArgs(data, 2)
	if err != nil {
		return err
	}
	payload, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}
	module, addr := args[0], uint8(args[1])

	bus, err := f.bus(module)
	if err != nil {
		return f.sendResult(module, err, I2CStateIdle)
	}
	if len(payload) == 0 || addr > 0x7F {
		return f.sendResult(module, ErrInvalidArgument, bus.LastError())
	}
	opErr := bus.run(func() bool { return bus.WriteData(addr, payload) })
	return f.sendResult(module, opErr, bus.LastError())
}

// handleI2CRead reads count bytes, after writing reg with a repeated
// START when reg is not empty.
func (f *Firmware) handleI2CRead(data *[]byte) error {
	args, err := protocol.DecodeVLQArgs(data, 2)
	if err != nil {
		return err
	}
	reg, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	module, addr := args[0], uint8(args[1])

	var buf []byte
	var opErr error
	state := I2CStateIdle

	bus, err := f.bus(module)
	switch {
	case err != nil:
		opErr = err
	case count == 0 || count > ReadMax || addr > 0x7F:
		opErr = ErrInvalidArgument
		state = bus.LastError()
	default:
		buf = make([]byte, count)
		opErr = bus.run(func() bool {
			if len(reg) == 0 {
				return bus.ReadData(addr, buf)
			}
			return bus.WriteRead(addr, reg, buf)
		})
		state = bus.LastError()
		if opErr != nil {
			buf = nil
		}
	}

	return f.SendResponse("i2c_read_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, module)
		protocol.EncodeVLQUint(output, uint32(ErrorCode(opErr)))
		protocol.EncodeVLQUint(output, uint32(state))
		protocol.EncodeVLQBytes(output, buf)
	})
}

func (f *Firmware) handleI2CProbe(data *[]byte) error {
	args, err := protocol.DecodeVLQArgs(data, 2)
	if err != nil {
		return err
	}
	module, addr := args[0], uint8(args[1])

	bus, err := f.bus(module)
	if err != nil {
		return f.sendResult(module, err, I2CStateIdle)
	}
	if addr > 0x7F {
		return f.sendResult(module, ErrInvalidArgument, bus.LastError())
	}
	opErr := bus.run(func() bool { return bus.CheckDevice(addr) })
	if opErr == ErrBusError {
		// CheckDevice closes the bracket, so a plain NACK leaves no state.
		opErr = ErrAddressNack
	}
	return f.sendResult(module, opErr, bus.LastError())
}

func (f *Firmware) handleI2CScan(data *[]byte) error {
	args, err := protocol.DecodeVLQArgs(data, 2)
	if err != nil {
		return err
	}
	module, max := args[0], int(args[1])
	if max > ReadMax {
		max = ReadMax
	}

	var res ScanResult
	bus, opErr := f.bus(module)
	switch {
	case opErr != nil:
	case bus.IsBusy():
		opErr = ErrBusBusy
	default:
		res = bus.ScanDevices(max)
	}

	return f.SendResponse("i2c_scan_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, module)
		protocol.EncodeVLQUint(output, uint32(ErrorCode(opErr)))
		protocol.EncodeVLQUint(output, uint32(res.Overflow))
		protocol.EncodeVLQBytes(output, res.Devices)
	})
}

func (f *Firmware) handleI2CStatus(data *[]byte) error {
	module, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	var st I2CStatus
	bus, opErr := f.bus(module)
	if opErr == nil {
		st = bus.Status()
	}

	return f.SendResponse("i2c_status_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, module)
		protocol.EncodeVLQUint(output, uint32(ErrorCode(opErr)))
		protocol.EncodeVLQUint(output, uint32(st.Mode))
		protocol.EncodeVLQUint(output, uint32(st.State))
		protocol.EncodeVLQUint(output, boolArg(st.Busy))
		protocol.EncodeVLQUint(output, uint32(st.Speed))
		protocol.EncodeVLQUint(output, uint32(st.Address))
		protocol.EncodeVLQUint(output, uint32(st.TimeoutMs))
		protocol.EncodeVLQUint(output, uint32(st.BRG))
		protocol.EncodeVLQUint(output, uint32(st.Control))
		protocol.EncodeVLQUint(output, uint32(st.Status))
	})
}

func (f *Firmware) handleI2CClear(data *[]byte) error {
	module, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	bus, err := f.bus(module)
	if err != nil {
		return f.sendResult(module, err, I2CStateIdle)
	}
	bus.ClearErrors()
	return f.sendResult(module, nil, bus.LastError())
}

func (f *Firmware) handleI2CSetTimeout(data *[]byte) error {
	args, err := protocol.DecodeVLQArgs(data, 2)
	if err != nil {
		return err
	}
	module := args[0]
	bus, err := f.bus(module)
	if err != nil {
		return f.sendResult(module, err, I2CStateIdle)
	}
	bus.SetTimeout(uint16(args[1]))
	return f.sendResult(module, nil, bus.LastError())
}

// slaveBuffer returns the SlaveBuffer installed by i2c_config.
func (f *Firmware) slaveBuffer(module uint32) (*I2CBus, *SlaveBuffer, error) {
	bus, err := f.bus(module)
	if err != nil {
		return nil, nil, err
	}
	sb, ok := f.slaves[I2CModule(module)]
	if !ok {
		return bus, nil, ErrInvalidArgument
	}
	return bus, sb, nil
}

func (f *Firmware) handleI2CSlaveQueue(data *[]byte) error {
	module, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	payload, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}

	bus, sb, err := f.slaveBuffer(module)
	if err != nil {
		return f.sendResult(module, err, I2CStateIdle)
	}
	state := disableInterrupts()
	n := sb.Queue(payload)
	restoreInterrupts(state)
	if n < len(payload) {
		return f.sendResult(module, ErrOverrun, bus.LastError())
	}
	return f.sendResult(module, nil, bus.LastError())
}

func (f *Firmware) handleI2CSlaveDrain(data *[]byte) error {
	module, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	var buf []byte
	var starts, stops int
	_, sb, opErr := f.slaveBuffer(module)
	if opErr == nil {
		buf = make([]byte, ReadMax)
		state := disableInterrupts()
		buf = buf[:sb.Drain(buf)]
		starts, stops = sb.Transactions()
		restoreInterrupts(state)
	}

	return f.SendResponse("i2c_slave_data", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, module)
		protocol.EncodeVLQUint(output, uint32(ErrorCode(opErr)))
		protocol.EncodeVLQUint(output, uint32(starts))
		protocol.EncodeVLQUint(output, uint32(stops))
		protocol.EncodeVLQBytes(output, buf)
	})
}

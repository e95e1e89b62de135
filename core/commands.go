package core

import "i2cctl/protocol"

// registerCoreCommands registers the link-level commands. identify_response
// and identify must take IDs 0 and 1: the host bootstraps with them
// before it has a dictionary.
func (f *Firmware) registerCoreCommands() {
	r := f.registry
	r.RegisterResponse("identify_response", "offset=%u data=%*s") // 0
	r.Register("identify", "offset=%u count=%c", f.handleIdentify) // 1

	r.Register("get_config", "", f.handleGetConfig)
	r.Register("config_reset", "", f.handleConfigReset)
	r.Register("finalize_config", "crc=%u", f.handleFinalizeConfig)
	r.Register("emergency_stop", "", f.handleEmergencyStop)

	r.RegisterResponse("config", "is_config=%c crc=%u is_shutdown=%c buses=%c")
	r.RegisterResponse("shutdown", "reason=%*s")

	f.dict.AddConstant("MCU", "i2cctl")
	f.dict.AddConstant("CLOCK_FREQ", f.ctrl.fcy)
}

// handleIdentify returns one chunk of the compressed dictionary.
func (f *Firmware) handleIdentify(data *[]byte) error {
	args, err := protocol.DecodeVLQArgs(data, 2)
	if err != nil {
		return err
	}
	offset, count := args[0], uint8(args[1])

	chunk := f.dict.GetChunk(offset, count)
	return f.SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
}

func (f *Firmware) handleGetConfig(data *[]byte) error {
	crc := f.configCRC.Load()
	return f.SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolArg(crc != 0))
		protocol.EncodeVLQUint(output, crc)
		protocol.EncodeVLQUint(output, boolArg(f.IsShutdown()))
		protocol.EncodeVLQUint(output, uint32(len(f.ctrl.buses)))
	})
}

// handleConfigReset drops every bus and leaves shutdown.
func (f *Firmware) handleConfigReset(data *[]byte) error {
	f.ctrl.DeinitAll()
	f.configCRC.Store(0)
	f.shutdown.Store(false)
	return nil
}

func (f *Firmware) handleFinalizeConfig(data *[]byte) error {
	crc, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	f.configCRC.Store(crc)
	return nil
}

func (f *Firmware) handleEmergencyStop(data *[]byte) error {
	f.Shutdown("emergency_stop")
	return f.SendResponse("shutdown", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQString(output, "emergency_stop")
	})
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

package core_test

import (
	"testing"

	"i2cctl/core"
	"i2cctl/protocol"
	"i2cctl/sim"
	"i2cctl/tinycompress"
)

func encodeBlock(seq uint8, id uint16, args ...uint32) []byte {
	out := protocol.NewScratchOutput()
	protocol.EncodeFrame(out, seq, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(id))
		for _, a := range args {
			protocol.EncodeVLQUint(output, a)
		}
	})
	return append([]byte(nil), out.Result()...)
}

func splitReply(out []byte) (acks []uint8, msgs [][]byte) {
	var d protocol.Decoder
	d.Decode(out, func(f protocol.Frame) {
		if f.IsAck() {
			acks = append(acks, f.Sequence)
			return
		}
		msgs = append(msgs, append([]byte(nil), f.Payload...))
	})
	return acks, msgs
}

func commandID(t *testing.T, fw *core.Firmware, name string) uint16 {
	t.Helper()
	cmd, ok := fw.Registry().GetCommandByName(name)
	if !ok {
		t.Fatalf("Expected %s registered", name)
	}
	return cmd.ID
}

// decodeArgs returns the response ID and its numeric arguments.
func decodeArgs(t *testing.T, msg []byte, n int) (uint16, []uint32) {
	t.Helper()
	id, err := protocol.DecodeVLQUint(&msg)
	if err != nil {
		t.Fatalf("Decoding response ID: %v", err)
	}
	args, err := protocol.DecodeVLQArgs(&msg, n)
	if err != nil {
		t.Fatalf("Decoding response arguments: %v", err)
	}
	return uint16(id), args
}

func TestFirmwareIdentify(t *testing.T) {
	fw := core.NewFirmware(sim.NewBench().Controller())

	var compressed []byte
	seq := uint8(protocol.MessageDest)
	for offset := uint32(0); ; {
		acks, msgs := splitReply(fw.Process(encodeBlock(seq, 1, offset, 40)))
		seq = protocol.NextSequence(seq)

		if len(acks) != 1 || acks[0] != seq {
			t.Fatalf("Expected one ACK for %#x, got % x", seq, acks)
		}
		if len(msgs) != 1 {
			t.Fatalf("Expected one identify_response, got %d", len(msgs))
		}

		msg := msgs[0]
		id, _ := protocol.DecodeVLQUint(&msg)
		got, _ := protocol.DecodeVLQUint(&msg)
		chunk, err := protocol.DecodeVLQBytes(&msg)
		if id != 0 || got != offset || err != nil {
			t.Fatalf("Unexpected identify_response id=%d offset=%d err=%v", id, got, err)
		}
		compressed = append(compressed, chunk...)
		offset += uint32(len(chunk))
		if len(chunk) < 40 {
			break
		}
	}

	raw, err := tinycompress.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	dict, err := protocol.ParseDictionary(raw)
	if err != nil {
		t.Fatalf("ParseDictionary: %v", err)
	}
	if dict.Version != protocol.Version {
		t.Errorf("Expected version %s, got %s", protocol.Version, dict.Version)
	}
	want := "i2c_write module=%c addr=%c data=%*s"
	if id, ok := dict.Commands[want]; !ok || id != int(commandID(t, fw, "i2c_write")) {
		t.Errorf("Expected %q in the dictionary", want)
	}
	if dict.Config["MCU"] != "i2cctl" {
		t.Errorf("Expected MCU constant, got %v", dict.Config["MCU"])
	}
}

func TestFirmwareSplitDelivery(t *testing.T) {
	fw := core.NewFirmware(sim.NewBench().Controller())
	probe := commandID(t, fw, "i2c_probe")
	result := commandID(t, fw, "i2c_result")

	block := encodeBlock(protocol.MessageDest, probe, 1, 0x50)
	var out []byte
	for i := range block {
		out = append(out, fw.Process(block[i:i+1])...)
	}

	acks, msgs := splitReply(out)
	if len(acks) != 1 || len(msgs) != 1 {
		t.Fatalf("Expected one response and one ACK, got %d and %d", len(msgs), len(acks))
	}
	id, args := decodeArgs(t, msgs[0], 3)
	if id != result || args[0] != 1 || args[1] != uint32(core.ErrorCode(core.ErrNotConfigured)) {
		t.Errorf("Expected i2c_result with not-configured, got id=%d args=%v", id, args)
	}
	tail, _ := splitReply(out[len(out)-protocol.MessageLengthMin:])
	if len(tail) != 1 {
		t.Error("Expected the response ahead of the ACK")
	}
}

func TestFirmwareProbe(t *testing.T) {
	fw := core.NewFirmware(sim.NewBench().Controller())
	seq := uint8(protocol.MessageDest)
	send := func(name string, args ...uint32) [][]byte {
		t.Helper()
		_, msgs := splitReply(fw.Process(encodeBlock(seq, commandID(t, fw, name), args...)))
		seq = protocol.NextSequence(seq)
		return msgs
	}

	msgs := send("i2c_config", 1, uint32(core.I2CModeMaster), 100000, 0, 50, core.ConfigSlewRate)
	if _, args := decodeArgs(t, msgs[0], 3); args[1] != 0 {
		t.Fatalf("Expected i2c_config to succeed, got error code %d", args[1])
	}

	msgs = send("i2c_probe", 1, sim.RTCAddress)
	if _, args := decodeArgs(t, msgs[0], 3); args[1] != 0 {
		t.Errorf("Expected the RTC to answer, got error code %d", args[1])
	}
	msgs = send("i2c_probe", 1, 0x11)
	if _, args := decodeArgs(t, msgs[0], 3); args[1] != uint32(core.ErrorCode(core.ErrAddressNack)) {
		t.Errorf("Expected address-nack for 0x11, got error code %d", args[1])
	}

	bus, _ := fw.Controller().Bus(core.I2CModule1)
	if bus.Config().TimeoutMs != 50 || !bus.Config().SlewRate {
		t.Errorf("Unexpected configuration %+v", bus.Config())
	}
}

func TestFirmwareUnknownCommand(t *testing.T) {
	fw := core.NewFirmware(sim.NewBench().Controller())

	acks, msgs := splitReply(fw.Process(encodeBlock(protocol.MessageDest, 200)))
	if len(acks) != 1 || len(msgs) != 0 {
		t.Errorf("Expected a bare ACK, got %d acks and %d messages", len(acks), len(msgs))
	}
	if _, failed := fw.Stats(); failed != 1 {
		t.Errorf("Expected 1 failed command, got %d", failed)
	}
}

func TestFirmwareShutdown(t *testing.T) {
	bench := sim.NewBench()
	fw := core.NewFirmware(bench.Controller())
	seq := uint8(protocol.MessageDest)
	send := func(name string, args ...uint32) [][]byte {
		t.Helper()
		_, msgs := splitReply(fw.Process(encodeBlock(seq, commandID(t, fw, name), args...)))
		seq = protocol.NextSequence(seq)
		return msgs
	}

	send("i2c_config", 1, uint32(core.I2CModeMaster), 100000, 0, 50, 0)
	msgs := send("emergency_stop")
	if len(msgs) != 1 || !fw.IsShutdown() {
		t.Fatalf("Expected a shutdown report, got %d messages shutdown=%v", len(msgs), fw.IsShutdown())
	}
	if _, ok := fw.Controller().Bus(core.I2CModule1); ok {
		t.Error("Expected every bus disabled")
	}

	msgs = send("i2c_probe", 1, sim.RTCAddress)
	if _, args := decodeArgs(t, msgs[0], 3); args[1] != uint32(core.ErrorCode(core.ErrShutdown)) {
		t.Errorf("Expected shutdown error code, got %d", args[1])
	}

	// A host restarting its sequence clears the shutdown.
	seq = protocol.MessageDest
	msgs = send("get_config")
	_, args := decodeArgs(t, msgs[0], 4)
	if fw.IsShutdown() || args[2] != 0 {
		t.Errorf("Expected shutdown cleared by the host reset, got %v", args)
	}
}

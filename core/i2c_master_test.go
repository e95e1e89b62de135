package core_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"tinygo.org/x/drivers/at24cx"
	"tinygo.org/x/drivers/ds3231"
	"tinygo.org/x/drivers/tester"

	"i2cctl/core"
	"i2cctl/sim"
)

func masterBus(t *testing.T, mutate func(*core.I2CConfig)) (*core.I2CBus, *sim.Bench, *core.Controller) {
	t.Helper()
	bench := sim.NewBench()
	ctrl := bench.Controller()

	cfg := core.DefaultMasterConfig(core.I2CModule1)
	if mutate != nil {
		mutate(&cfg)
	}
	bus, err := ctrl.Init(&cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	bench.Ports[core.I2CModule1].ResetTrace()
	return bus, bench, ctrl
}

func TestStartWhileBusy(t *testing.T) {
	bus, bench, _ := masterBus(t, nil)
	port := bench.Ports[core.I2CModule1]

	if !bus.Start() {
		t.Fatal("Expected the first Start to succeed")
	}
	port.ResetTrace()
	before := port.Snapshot()

	if bus.Start() {
		t.Error("Expected Start to fail while a bracket is open")
	}
	if tr := port.Trace(); tr.RegisterWrites != 0 || tr.Starts != 0 {
		t.Errorf("Expected no register access, got %+v", tr)
	}
	if port.Snapshot() != before {
		t.Error("Expected registers unchanged")
	}
	if !bus.IsBusy() || bus.LastError() != core.I2CStateBusy {
		t.Errorf("Expected busy bracket kept, got busy=%v state=%s", bus.IsBusy(), bus.LastError())
	}
	if !bus.Stop() || bus.IsBusy() || bus.LastError() != core.I2CStateIdle {
		t.Errorf("Expected Stop to close the bracket, got busy=%v state=%s", bus.IsBusy(), bus.LastError())
	}
}

func TestWriteData(t *testing.T) {
	bus, bench, _ := masterBus(t, nil)
	port := bench.Ports[core.I2CModule1]

	if !bus.WriteData(sim.RTCAddress, []byte{0x10, 0x01, 0x02}) {
		t.Fatalf("WriteData failed: %s", bus.LastError())
	}

	tr := port.Trace()
	expected := []byte{sim.RTCAddress << 1, 0x10, 0x01, 0x02}
	if !bytes.Equal(tr.Transmitted, expected) {
		t.Errorf("Expected % x on the wire, got % x", expected, tr.Transmitted)
	}
	if tr.Starts != 1 || tr.Stops != 1 {
		t.Errorf("Expected one START and one STOP, got %d and %d", tr.Starts, tr.Stops)
	}
	if bench.RTC.Registers[0x10] != 0x01 || bench.RTC.Registers[0x11] != 0x02 {
		t.Errorf("Unexpected RTC registers % x", bench.RTC.Registers[0x10:0x12])
	}
	if bus.LastError() != core.I2CStateIdle || bus.IsBusy() {
		t.Errorf("Expected idle bus, got %s", bus.LastError())
	}

	if bus.WriteData(sim.RTCAddress, nil) {
		t.Error("Expected an empty write to fail")
	}
}

func TestAddressNack(t *testing.T) {
	bus, bench, _ := masterBus(t, nil)
	port := bench.Ports[core.I2CModule1]

	if bus.WriteData(0x21, []byte{1, 2}) {
		t.Fatal("Expected WriteData to an absent device to fail")
	}
	if bus.LastError() != core.I2CStateAddressNack {
		t.Errorf("Expected address-nack, got %s", bus.LastError())
	}
	if !errors.Is(bus.Err(), core.ErrAddressNack) {
		t.Errorf("Expected ErrAddressNack, got %v", bus.Err())
	}
	tr := port.Trace()
	if len(tr.Transmitted) != 1 || tr.Stops != 1 {
		t.Errorf("Expected the address byte then STOP, got % x and %d stops", tr.Transmitted, tr.Stops)
	}
	if bus.IsBusy() {
		t.Error("Expected the bracket closed")
	}
}

func TestTesterDevice(t *testing.T) {
	bus, bench, _ := masterBus(t, nil)
	dev := tester.NewI2CDevice8(t, 0x3C)
	bench.Ports[core.I2CModule1].Bus().Attach(0x3C, sim.NewTesterDevice(dev))

	if !bus.WriteData(0x3C, []byte{0x04, 0xAA, 0xBB}) {
		t.Fatalf("WriteData failed: %s", bus.LastError())
	}
	if dev.Registers[0x04] != 0xAA || dev.Registers[0x05] != 0xBB {
		t.Errorf("Unexpected registers % x", dev.Registers[0x04:0x06])
	}
	if got := bus.ReadRegister(0x3C, 0x05); got != 0xBB {
		t.Errorf("Expected 0xBB, got %#x", got)
	}
}

// shortBuffer acknowledges its address and then accepts n data bytes.
type shortBuffer struct {
	n, got int
}

func (s *shortBuffer) Start(read bool) bool { s.got = 0; return true }
func (s *shortBuffer) Write(byte) bool      { s.got++; return s.got <= s.n }
func (s *shortBuffer) Read() byte           { return 0 }
func (s *shortBuffer) Stop()                {}

func TestDataNack(t *testing.T) {
	bus, bench, _ := masterBus(t, nil)
	port := bench.Ports[core.I2CModule1]
	port.Bus().Attach(0x2A, &shortBuffer{n: 2})

	if bus.WriteData(0x2A, []byte{1, 2, 3, 4}) {
		t.Fatal("Expected the third byte to be refused")
	}
	if bus.LastError() != core.I2CStateDataNack {
		t.Errorf("Expected data-nack, got %s", bus.LastError())
	}
	if !errors.Is(bus.Err(), core.ErrDataNack) {
		t.Errorf("Expected ErrDataNack, got %v", bus.Err())
	}
	tr := port.Trace()
	if len(tr.Transmitted) != 4 || tr.Stops != 1 {
		t.Errorf("Expected transfer to stop after the NACKed byte, got % x and %d stops", tr.Transmitted, tr.Stops)
	}
	if bus.IsBusy() {
		t.Error("Expected the bracket closed")
	}
}

func TestReadDataAcknowledges(t *testing.T) {
	bus, bench, _ := masterBus(t, nil)
	port := bench.Ports[core.I2CModule1]
	bench.EEPROM.Load(0, []byte{1, 2, 3, 4})

	if !bus.WriteData(sim.EEPROMAddress, []byte{0, 0}) {
		t.Fatal("Setting the EEPROM pointer failed")
	}
	port.ResetTrace()

	buf := make([]byte, 4)
	if !bus.ReadData(sim.EEPROMAddress, buf) {
		t.Fatalf("ReadData failed: %s", bus.LastError())
	}
	if !bytes.Equal(buf, []byte{1, 2, 3, 4}) {
		t.Errorf("Expected 01 02 03 04, got % x", buf)
	}

	acks := port.Trace().Acks
	expected := []bool{true, true, true, false}
	if len(acks) != len(expected) {
		t.Fatalf("Expected %d acknowledge sequences, got %d", len(expected), len(acks))
	}
	for i := range expected {
		if acks[i] != expected[i] {
			t.Errorf("Ack %d: expected %v, got %v", i, expected[i], acks[i])
		}
	}
}

func TestWriteRead(t *testing.T) {
	bus, bench, _ := masterBus(t, nil)
	port := bench.Ports[core.I2CModule1]

	var temp [2]byte
	if !bus.WriteRead(sim.RTCAddress, []byte{0x11}, temp[:]) {
		t.Fatalf("WriteRead failed: %s", bus.LastError())
	}
	if temp[0] != 25 {
		t.Errorf("Expected 25, got %d", temp[0])
	}
	tr := port.Trace()
	if tr.Starts != 1 || tr.Restarts != 1 || tr.Stops != 1 {
		t.Errorf("Expected START, repeated START and STOP, got %+v", tr)
	}
	expected := []byte{sim.RTCAddress << 1, 0x11, sim.RTCAddress<<1 | core.DirRead}
	if !bytes.Equal(tr.Transmitted, expected) {
		t.Errorf("Expected % x on the wire, got % x", expected, tr.Transmitted)
	}
}

func TestRegisterRoundTrip(t *testing.T) {
	bus, _, _ := masterBus(t, nil)

	for reg, v := range map[uint8]uint8{0x00: 0x59, 0x05: 0x42, 0xFF: 0x01} {
		if !bus.WriteRegister(sim.RTCAddress, reg, v) {
			t.Fatalf("WriteRegister %#x failed", reg)
		}
		if got := bus.ReadRegister(sim.RTCAddress, reg); got != v {
			t.Errorf("Register %#x: expected %#x, got %#x", reg, v, got)
		}
	}
}

func TestReadRegisterFailure(t *testing.T) {
	bus, bench, _ := masterBus(t, nil)
	port := bench.Ports[core.I2CModule1]

	if got := bus.ReadRegister(0x22, 0x01); got != 0 {
		t.Errorf("Expected 0 from an absent device, got %#x", got)
	}
	tr := port.Trace()
	if tr.Starts != 1 || tr.Receives != 0 {
		t.Errorf("Expected no read phase, got %d starts and %d receives", tr.Starts, tr.Receives)
	}
	if bus.LastError() != core.I2CStateAddressNack {
		t.Errorf("Expected address-nack, got %s", bus.LastError())
	}
}

func TestStopTimeoutNeedsInit(t *testing.T) {
	bus, bench, ctrl := masterBus(t, func(c *core.I2CConfig) { c.TimeoutMs = 1 })
	port := bench.Ports[core.I2CModule1]

	port.FailNext(sim.CondStop, sim.FaultStall)
	if bus.WriteData(sim.RTCAddress, []byte{0, 1}) {
		t.Fatal("Expected a stalled STOP to fail")
	}
	if bus.LastError() != core.I2CStateTimeout || !bus.IsBusy() {
		t.Fatalf("Expected timeout with the bracket open, got %s busy=%v", bus.LastError(), bus.IsBusy())
	}

	bus.ClearErrors()
	if bus.LastError() != core.I2CStateIdle {
		t.Errorf("Expected ClearErrors to reset the state, got %s", bus.LastError())
	}
	if !bus.IsBusy() {
		t.Error("Expected ClearErrors to leave the bracket open")
	}
	if err := bus.Tx(sim.RTCAddress, []byte{0}, nil); !errors.Is(err, core.ErrBusBusy) {
		t.Errorf("Expected ErrBusBusy, got %v", err)
	}

	if _, err := ctrl.Init(&core.I2CConfig{
		Module: core.I2CModule1, Speed: core.I2CSpeed100kHz, TimeoutMs: 1,
	}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if bus.IsBusy() || port.Stalled() {
		t.Error("Expected Init to recover the bus")
	}
	if !bus.WriteData(sim.RTCAddress, []byte{0, 1}) {
		t.Errorf("Expected a write after Init to succeed, got %s", bus.LastError())
	}
}

func TestStartTimeout(t *testing.T) {
	bus, bench, _ := masterBus(t, func(c *core.I2CConfig) { c.TimeoutMs = 1 })
	bench.Ports[core.I2CModule1].FailNext(sim.CondStart, sim.FaultStall)

	if bus.Start() {
		t.Fatal("Expected a stalled START to fail")
	}
	if bus.LastError() != core.I2CStateTimeout {
		t.Errorf("Expected timeout, got %s", bus.LastError())
	}
	if bus.IsBusy() {
		t.Error("Expected a failed START to leave the bus free")
	}
}

func TestErrorLatches(t *testing.T) {
	tests := []struct {
		name  string
		cond  sim.Condition
		fault sim.FaultKind
		state core.I2CState
		err   error
	}{
		{"arbitration", sim.CondStart, sim.FaultArbitration, core.I2CStateArbitrationLost, core.ErrArbitrationLost},
		{"collision", sim.CondTransmit, sim.FaultCollision, core.I2CStateBusCollision, core.ErrWriteCollision},
		{"overrun", sim.CondReceive, sim.FaultOverrun, core.I2CStateOverrun, core.ErrOverrun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus, bench, _ := masterBus(t, nil)
			bench.Ports[core.I2CModule1].FailNext(tt.cond, tt.fault)

			var buf [2]byte
			err := bus.Tx(sim.RTCAddress, []byte{0x11}, buf[:])
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}
			if bus.LastError() != tt.state {
				t.Errorf("Expected %s, got %s", tt.state, bus.LastError())
			}

			bus.ClearErrors()
			if bus.Registers().Status()&core.StatErrorMask != 0 {
				t.Error("Expected ClearErrors to clear the latches")
			}
			if bus.IsBusy() && !bus.Stop() {
				t.Errorf("Expected Stop to succeed once cleared, got %s", bus.LastError())
			}
			if err := bus.Tx(sim.RTCAddress, []byte{0x11}, buf[:]); err != nil {
				t.Errorf("Expected the bus usable again, got %v", err)
			}
		})
	}
}

func TestReadByteBestEffort(t *testing.T) {
	bus, bench, _ := masterBus(t, func(c *core.I2CConfig) { c.TimeoutMs = 1 })

	if !bus.Start() || !bus.WriteByte(sim.RTCAddress<<1) || !bus.WriteByte(0x11) {
		t.Fatal("Setting the register pointer failed")
	}
	if !bus.Restart() || !bus.WriteByte(sim.RTCAddress<<1|core.DirRead) {
		t.Fatal("Read addressing failed")
	}

	bench.Ports[core.I2CModule1].FailNext(sim.CondReceive, sim.FaultStall)
	if v := bus.ReadByte(false); v != 25 {
		t.Errorf("Expected the latched byte 25, got %d", v)
	}
	if bus.LastError() != core.I2CStateTimeout {
		t.Errorf("Expected the wait failure in LastError, got %s", bus.LastError())
	}
}

func TestCheckDevice(t *testing.T) {
	bus, bench, _ := masterBus(t, nil)
	port := bench.Ports[core.I2CModule1]

	if !bus.CheckDevice(sim.EEPROMAddress) {
		t.Error("Expected the EEPROM to answer")
	}
	if bus.CheckDevice(0x10) {
		t.Error("Expected 0x10 to be absent")
	}
	if tr := port.Trace(); tr.Starts != 2 || tr.Stops != 2 {
		t.Errorf("Expected every probe bracketed, got %d starts and %d stops", tr.Starts, tr.Stops)
	}
	if bus.IsBusy() {
		t.Error("Expected the bus free after probing")
	}
}

func TestScanBus(t *testing.T) {
	bus, bench, _ := masterBus(t, nil)
	port := bench.Ports[core.I2CModule1]

	out := make([]uint8, 8)
	if !bus.ScanBus(out, len(out)) {
		t.Fatal("Expected devices to be found")
	}
	if !bytes.Equal(out[:2], []uint8{sim.EEPROMAddress, sim.RTCAddress}) || out[2] != 0 {
		t.Errorf("Expected 50 68, got % x", out)
	}
	if tr := port.Trace(); tr.Starts != int(core.ScanLast-core.ScanFirst)+1 {
		t.Errorf("Expected one probe per address, got %d", tr.Starts)
	}
	for _, b := range port.Trace().Transmitted {
		if b == 0x00 || b == 0x7F<<1 || b>>1 < core.ScanFirst || b>>1 > core.ScanLast {
			t.Errorf("Expected addresses 0x01..0x7e only, transmitted %#x", b)
		}
	}
	if bus.LastError() != core.I2CStateIdle {
		t.Errorf("Expected absent devices not to count as errors, got %s", bus.LastError())
	}

	res := bus.ScanDevices(1)
	if !bytes.Equal(res.Devices, []uint8{sim.EEPROMAddress}) || res.Overflow != 0 {
		t.Errorf("Expected [50] without overflow under drop, got %+v", res)
	}
}

func TestScanOverflowCount(t *testing.T) {
	bus, bench, _ := masterBus(t, func(c *core.I2CConfig) { c.ScanOverflow = core.ScanOverflowCount })
	bench.Ports[core.I2CModule1].Bus().Attach(0x77, sim.NewRegisterDevice())

	out := make([]uint8, 1)
	if !bus.ScanBus(out, 5) {
		t.Fatal("Expected devices to be found")
	}
	if out[0] != sim.EEPROMAddress {
		t.Errorf("Expected 0x50 stored, got %#x", out[0])
	}
	if got := bus.LastScanOverflow(); got != 2 {
		t.Errorf("Expected 2 responders counted, got %d", got)
	}

	res := bus.ScanDevices(0)
	if len(res.Devices) != 0 || res.Overflow != 3 {
		t.Errorf("Expected everything counted, got %+v", res)
	}
}

func TestScanEmptyBus(t *testing.T) {
	bench := sim.NewBench()
	ctrl := bench.Controller()
	cfg := core.DefaultMasterConfig(core.I2CModule2)
	bus, err := ctrl.Init(&cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	out := make([]uint8, 4)
	if bus.ScanBus(out, 4) {
		t.Error("Expected no devices on an empty bus")
	}
}

func TestTxDrivers(t *testing.T) {
	bus, bench, _ := masterBus(t, nil)

	rtc := ds3231.New(bus)
	when := time.Date(2031, time.July, 4, 23, 59, 58, 0, time.UTC)
	if err := rtc.SetTime(when); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	got, err := rtc.ReadTime()
	if err != nil || !got.Equal(when) {
		t.Errorf("Expected %v, got %v (%v)", when, got, err)
	}
	if temp, err := rtc.ReadTemperature(); err != nil || temp != 25000 {
		t.Errorf("Expected 25000 mC, got %d (%v)", temp, err)
	}

	eeprom := at24cx.New(bus)
	eeprom.Configure(at24cx.Config{})
	if err := eeprom.WriteByte(0x0FFF, 0x5A); err != nil {
		t.Fatalf("WriteByte: %v", err)
	}
	if v, err := eeprom.ReadByte(0x0FFF); err != nil || v != 0x5A {
		t.Errorf("Expected 0x5A, got %#x (%v)", v, err)
	}
	if bench.EEPROM.Bytes()[0x0FFF] != 0x5A {
		t.Error("Expected the EEPROM cell written")
	}

	if err := bus.Tx(0x80, nil, nil); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for a 10-bit address, got %v", err)
	}
	if err := bus.Tx(0x23, nil, nil); !errors.Is(err, core.ErrAddressNack) {
		t.Errorf("Expected ErrAddressNack for an absent device, got %v", err)
	}
}

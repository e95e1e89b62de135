package sim

import "tinygo.org/x/drivers/tester"

// RegisterDevice is a target with 256 8-bit registers behind an
// auto-incrementing register pointer, the layout of most sensors and
// RTCs. The first byte of a write sets the pointer.
type RegisterDevice struct {
	Registers [256]byte

	// Nack makes the device ignore its address.
	Nack bool

	ptr     uint8
	havePtr bool
}

// NewRegisterDevice returns a device with all registers zero.
func NewRegisterDevice() *RegisterDevice {
	return &RegisterDevice{}
}

func (d *RegisterDevice) Start(read bool) bool {
	if d.Nack {
		return false
	}
	if !read {
		d.havePtr = false
	}
	return true
}

func (d *RegisterDevice) Write(b byte) bool {
	if !d.havePtr {
		d.ptr = b
		d.havePtr = true
		return true
	}
	d.Registers[d.ptr] = b
	d.ptr++
	return true
}

func (d *RegisterDevice) Read() byte {
	v := d.Registers[d.ptr]
	d.ptr++
	return v
}

func (d *RegisterDevice) Stop() {}

// EEPROM is a serial memory with a 16-bit big-endian address pointer,
// as used by the 24Cxx family.
type EEPROM struct {
	mem      []byte
	ptr      uint16
	addrSeen int
}

// NewEEPROM returns an erased memory of size bytes.
func NewEEPROM(size int) *EEPROM {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &EEPROM{mem: mem}
}

// Bytes returns a copy of the memory contents.
func (e *EEPROM) Bytes() []byte {
	return append([]byte(nil), e.mem...)
}

// Load copies data into memory at offset.
func (e *EEPROM) Load(offset int, data []byte) {
	copy(e.mem[offset:], data)
}

func (e *EEPROM) Start(read bool) bool {
	if !read {
		e.addrSeen = 0
	}
	return len(e.mem) > 0
}

func (e *EEPROM) Write(b byte) bool {
	switch e.addrSeen {
	case 0:
		e.ptr = uint16(b) << 8
		e.addrSeen++
	case 1:
		e.ptr |= uint16(b)
		e.addrSeen++
	default:
		e.mem[int(e.ptr)%len(e.mem)] = b
		e.ptr++
	}
	return true
}

func (e *EEPROM) Read() byte {
	v := e.mem[int(e.ptr)%len(e.mem)]
	e.ptr++
	return v
}

func (e *EEPROM) Stop() {}

// TesterDevice puts a tester.I2CDevice8 mock on a simulated bus. Writes
// are collected until the transaction ends and then applied with Tx;
// reads fetch one register at a time from the pointer set by the write.
type TesterDevice struct {
	dev *tester.I2CDevice8
	w   []byte
	reg uint8
}

// NewTesterDevice wraps dev.
func NewTesterDevice(dev *tester.I2CDevice8) *TesterDevice {
	return &TesterDevice{dev: dev}
}

func (t *TesterDevice) Start(read bool) bool {
	if !read {
		t.w = t.w[:0]
	}
	return t.dev.Err == nil
}

func (t *TesterDevice) Write(b byte) bool {
	if len(t.w) == 0 {
		t.reg = b
	}
	t.w = append(t.w, b)
	return true
}

func (t *TesterDevice) Read() byte {
	var v [1]byte
	if err := t.dev.Tx([]byte{t.reg}, v[:]); err != nil {
		return 0xFF
	}
	t.reg++
	return v[0]
}

func (t *TesterDevice) Stop() {
	if len(t.w) > 1 {
		t.dev.Tx(t.w, nil)
	}
	t.w = t.w[:0]
}

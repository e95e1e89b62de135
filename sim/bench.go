package sim

import "i2cctl/core"

// Well-known addresses of the devices on a Bench.
const (
	RTCAddress    = 0x68 // DS3231-style real-time clock
	EEPROMAddress = 0x50 // 24C32-style serial memory
	EEPROMSize    = 4096
)

// Bench is a simulated board with two adapters. Module 1 carries an RTC
// and an EEPROM; module 2 has an empty bus and suits slave mode.
type Bench struct {
	Ports  map[core.I2CModule]*RegisterFile
	RTC    *RegisterDevice
	EEPROM *EEPROM
}

// NewBench builds the board. The RTC reads 25 degrees.
func NewBench() *Bench {
	b := &Bench{
		Ports: map[core.I2CModule]*RegisterFile{
			core.I2CModule1: NewRegisterFile(nil),
			core.I2CModule2: NewRegisterFile(nil),
		},
		RTC:    NewRegisterDevice(),
		EEPROM: NewEEPROM(EEPROMSize),
	}
	b.RTC.Registers[0x11] = 25

	bus := b.Ports[core.I2CModule1].Bus()
	bus.Attach(RTCAddress, b.RTC)
	bus.Attach(EEPROMAddress, b.EEPROM)
	return b
}

// Controller returns a controller over the bench adapters.
func (b *Bench) Controller(opts ...core.ControllerOption) *core.Controller {
	ports := make(map[core.I2CModule]core.I2CRegisters, len(b.Ports))
	for m, r := range b.Ports {
		ports[m] = r
	}
	return core.NewController(ports, opts...)
}

//go:build tinygo

// Package mmio maps core.I2CRegisters onto the memory-mapped special
// function registers of an I2CxCON/I2CxSTAT style adapter.
package mmio

import (
	"runtime/volatile"
	"unsafe"

	"i2cctl/core"
)

// Layout locates one adapter's registers. The seven data registers sit
// in consecutive 16-bit words starting at Base: RCV, TRN, BRG, CON,
// STAT, ADD, MSK.
type Layout struct {
	Base uintptr

	// IFS and IEC hold the interrupt flag and enable bits; IRQMask
	// selects the adapter's bits (master and slave events).
	IFS, IEC uintptr
	IRQMask  uint16
}

// DefaultLayouts is the register map of the dsPIC33FJ family.
var DefaultLayouts = map[core.I2CModule]Layout{
	core.I2CModule1: {Base: 0x0200, IFS: 0x0086, IEC: 0x0096, IRQMask: 0x0003},
	core.I2CModule2: {Base: 0x0210, IFS: 0x008A, IEC: 0x009A, IRQMask: 0x0006},
}

const (
	offRCV  = 0x0
	offTRN  = 0x2
	offBRG  = 0x4
	offCON  = 0x6
	offSTAT = 0x8
	offADD  = 0xA
	offMSK  = 0xC
)

// Registers is one adapter's register set.
type Registers struct {
	rcv, trn, brg, con, stat, add, msk *volatile.Register16
	ifs, iec                           *volatile.Register16
	irq                                uint16
}

var _ core.I2CRegisters = (*Registers)(nil)

func reg16(addr uintptr) *volatile.Register16 {
	return (*volatile.Register16)(unsafe.Pointer(addr))
}

// New maps l.
func New(l Layout) *Registers {
	return &Registers{
		rcv:  reg16(l.Base + offRCV),
		trn:  reg16(l.Base + offTRN),
		brg:  reg16(l.Base + offBRG),
		con:  reg16(l.Base + offCON),
		stat: reg16(l.Base + offSTAT),
		add:  reg16(l.Base + offADD),
		msk:  reg16(l.Base + offMSK),
		ifs:  reg16(l.IFS),
		iec:  reg16(l.IEC),
		irq:  l.IRQMask,
	}
}

// Ports maps every layout, ready for core.NewController.
func Ports(layouts map[core.I2CModule]Layout) map[core.I2CModule]core.I2CRegisters {
	ports := make(map[core.I2CModule]core.I2CRegisters, len(layouts))
	for m, l := range layouts {
		ports[m] = New(l)
	}
	return ports
}

func (r *Registers) Control() uint16     { return r.con.Get() }
func (r *Registers) SetControl(v uint16) { r.con.Set(v) }
func (r *Registers) Status() uint16      { return r.stat.Get() }

// ClearStatus clears the error latches in mask. S and P are read-only
// and ignore the write.
func (r *Registers) ClearStatus(mask uint16) {
	r.stat.ClearBits(mask)
}

func (r *Registers) Address() uint16      { return r.add.Get() }
func (r *Registers) SetAddress(v uint16)  { r.add.Set(v) }
func (r *Registers) Mask() uint16         { return r.msk.Get() }
func (r *Registers) SetMask(v uint16)     { r.msk.Set(v) }
func (r *Registers) BaudRate() uint16     { return r.brg.Get() }
func (r *Registers) SetBaudRate(v uint16) { r.brg.Set(v) }

func (r *Registers) Transmit(b byte) { r.trn.Set(uint16(b)) }

// Receive reads RCV; the read clears RBF.
func (r *Registers) Receive() byte { return byte(r.rcv.Get()) }

func (r *Registers) InterruptFlag() bool { return r.ifs.HasBits(r.irq) }
func (r *Registers) ClearInterruptFlag() { r.ifs.ClearBits(r.irq) }
func (r *Registers) SetInterruptFlag()   { r.ifs.SetBits(r.irq) }

func (r *Registers) EnableInterrupt(enable bool) {
	if enable {
		r.iec.SetBits(r.irq)
	} else {
		r.iec.ClearBits(r.irq)
	}
}

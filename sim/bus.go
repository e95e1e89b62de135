// Package sim provides a simulated two-wire adapter. RegisterFile
// implements core.I2CRegisters over a Bus of simulated targets, so the
// controller runs unchanged in tests and in the host loopback mode.
package sim

import "sort"

// Target is a device attached to a simulated Bus.
type Target interface {
	// Start is called when the target is addressed. It returns the
	// acknowledge for the address byte.
	Start(read bool) bool
	// Write receives one byte from the master and returns its acknowledge.
	Write(b byte) bool
	// Read supplies one byte to the master.
	Read() byte
	// Stop ends the transaction.
	Stop()
}

// Bus connects simulated targets by 7-bit address.
type Bus struct {
	targets map[uint8]Target
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{targets: make(map[uint8]Target)}
}

// Attach places t at addr, replacing any previous target there.
func (b *Bus) Attach(addr uint8, t Target) {
	b.targets[addr&0x7F] = t
}

// Detach removes the target at addr.
func (b *Bus) Detach(addr uint8) {
	delete(b.targets, addr&0x7F)
}

// Target returns the target at addr.
func (b *Bus) Target(addr uint8) (Target, bool) {
	t, ok := b.targets[addr&0x7F]
	return t, ok
}

// Addresses returns the occupied addresses in ascending order.
func (b *Bus) Addresses() []uint8 {
	addrs := make([]uint8, 0, len(b.targets))
	for a := range b.targets {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

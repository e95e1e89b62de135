package sim

import "i2cctl/core"

// The Master* methods play an external master against a RegisterFile in
// slave mode. Each step latches the status bits real hardware would and
// raises the interrupt flag; the caller then runs bus.HandleInterrupt.

// MasterStart drives a START condition.
func (r *RegisterFile) MasterStart() {
	r.stat |= core.StatS
	r.stat &^= core.StatP | core.StatRW | core.StatDA
	r.ifs = true
}

// MasterAddress sends an address byte and reports whether the adapter
// matched it. addr is 7-bit, or 10-bit when the adapter has A10M set.
// A match latches the address byte in the receive register with RBF set
// and D_A clear, and raises the interrupt. A match while RBF is still
// set overflows and is NACKed.
func (r *RegisterFile) MasterAddress(addr uint16, read bool) bool {
	if r.con&core.ConI2CEN == 0 {
		return false
	}
	r.stat &^= core.StatGCSTAT | core.StatADD10 | core.StatRW | core.StatDA

	if r.con&core.ConA10M != 0 {
		if addr&0x3FF&^r.msk != r.add&0x3FF&^r.msk {
			return false
		}
		r.stat |= core.StatADD10
	} else {
		a := addr & 0x7F
		switch {
		case a&^r.msk == r.add&0x7F&^r.msk:
		case a == uint16(core.AddrGeneralCall) && r.con&core.ConGCEN != 0 && !read:
			r.stat |= core.StatGCSTAT
		default:
			return false
		}
	}

	if r.stat&core.StatRBF != 0 {
		r.stat |= core.StatI2COV
		return false
	}
	r.rcv = byte(addr << 1)
	r.stat |= core.StatRBF
	if read {
		r.rcv |= core.DirRead
		r.stat |= core.StatRW
	}
	r.ifs = true
	return true
}

// MasterWrite sends one data byte. It is NACKed, latching overflow, if
// the previous byte was never read.
func (r *RegisterFile) MasterWrite(b byte) bool {
	if r.con&core.ConI2CEN == 0 || r.stat&core.StatRW != 0 {
		return false
	}
	if r.stat&core.StatRBF != 0 {
		r.stat |= core.StatI2COV
		return false
	}
	r.rcv = b
	r.stat |= core.StatRBF | core.StatDA
	r.ifs = true
	return true
}

// MasterRead clocks one byte out of the adapter. ok is false when the
// adapter had nothing queued. The acknowledge lands in ACKSTAT; only an
// ACK asks for the next byte.
func (r *RegisterFile) MasterRead(ack bool) (b byte, ok bool) {
	if r.stat&core.StatRW == 0 || r.stat&core.StatTBF == 0 {
		return 0xFF, false
	}
	b = r.trn
	r.stat &^= core.StatTBF
	r.stat |= core.StatDA
	if ack {
		r.stat &^= core.StatACKSTAT
	} else {
		r.stat |= core.StatACKSTAT
	}
	r.con &^= core.ConSCLREL
	r.ifs = true
	return b, true
}

// MasterStop drives a STOP condition.
func (r *RegisterFile) MasterStop() {
	r.stat |= core.StatP
	r.stat &^= core.StatS | core.StatRW | core.StatDA
	r.ifs = true
}

// Raise latches arbitrary status bits and raises the interrupt flag.
func (r *RegisterFile) Raise(bits uint16) {
	r.stat |= bits
	r.ifs = true
}

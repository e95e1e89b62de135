package core

// WriteData writes data to the 7-bit address addr in one bracket. A
// failed byte still releases the bus with Stop; the call then returns
// false and LastError reports the byte failure. Otherwise the result is
// the Stop outcome.
func (b *I2CBus) WriteData(addr uint8, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if !b.Start() {
		return false
	}
	if !b.writeAddress(addr, DirWrite) {
		return b.abort()
	}
	for _, v := range data {
		if !b.WriteByte(v) {
			return b.abort()
		}
	}
	return b.Stop()
}

// ReadData fills buf from the 7-bit address addr in one bracket. Every
// byte is ACKed except the last, which ends the slave's transmission.
func (b *I2CBus) ReadData(addr uint8, buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	if !b.Start() {
		return false
	}
	if !b.writeAddress(addr, DirRead) {
		return b.abort()
	}
	b.readInto(buf)
	return b.Stop()
}

// WriteRegister writes one byte to register reg of device dev.
func (b *I2CBus) WriteRegister(dev, reg, v uint8) bool {
	return b.WriteData(dev, []byte{reg, v})
}

// ReadRegister reads register reg of device dev. It returns 0 without a
// read phase when the register pointer cannot be written.
func (b *I2CBus) ReadRegister(dev, reg uint8) uint8 {
	if !b.WriteData(dev, []byte{reg}) {
		return 0
	}
	var v [1]byte
	b.ReadData(dev, v[:])
	return v[0]
}

// WriteRead writes w, issues a repeated START and reads len(r) bytes,
// all in one bracket. Either slice may be empty; with both empty it only
// addresses the device.
func (b *I2CBus) WriteRead(addr uint8, w, r []byte) bool {
	if !b.Start() {
		return false
	}
	if len(w) > 0 || len(r) == 0 {
		if !b.writeAddress(addr, DirWrite) {
			return b.abort()
		}
		for _, v := range w {
			if !b.WriteByte(v) {
				return b.abort()
			}
		}
	}
	if len(r) > 0 {
		if len(w) > 0 && !b.Restart() {
			return b.abort()
		}
		if !b.writeAddress(addr, DirRead) {
			return b.abort()
		}
		b.readInto(r)
		if b.state.IsError() {
			return b.abort()
		}
	}
	return b.Stop()
}

// Tx implements drivers.I2C so device drivers can run on the bus.
func (b *I2CBus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return ErrInvalidArgument
	}
	return b.run(func() bool { return b.WriteRead(uint8(addr), w, r) })
}

// run executes a bracketed operation and classifies its failure. A
// bracket left open by an earlier failure is reported as ErrBusBusy
// without touching the registers.
func (b *I2CBus) run(op func() bool) error {
	if b.busy {
		return ErrBusBusy
	}
	return opError(b, op())
}

func (b *I2CBus) writeAddress(addr uint8, dir byte) bool {
	if b.WriteByte(addr<<1 | dir) {
		return true
	}
	if b.state == I2CStateDataNack {
		b.state = I2CStateAddressNack
	}
	return false
}

func (b *I2CBus) readInto(buf []byte) {
	last := len(buf) - 1
	for i := range buf {
		buf[i] = b.ReadByte(i < last)
	}
}

// abort releases the bus after a failed byte. A clean Stop keeps the
// byte failure in State.
func (b *I2CBus) abort() bool {
	cause := b.state
	if b.Stop() {
		b.state = cause
	}
	b.log.Debug("transfer aborted", "state", b.state, "busy", b.busy)
	return false
}

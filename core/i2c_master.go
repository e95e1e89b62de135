package core

// Start opens a transaction bracket with a START condition. It fails
// without touching the registers when a bracket is already open.
func (b *I2CBus) Start() bool {
	if b.busy {
		return false
	}
	b.busy = true
	b.state = I2CStateBusy

	b.regs.SetControl(b.regs.Control() | ConSEN)
	if !b.waitCondition() {
		b.busy = false
		return false
	}
	return true
}

// Restart issues a repeated START inside the open bracket.
func (b *I2CBus) Restart() bool {
	b.regs.SetControl(b.regs.Control() | ConRSEN)
	return b.waitCondition()
}

// Stop closes the bracket. On failure the bracket stays open and the bus
// must be re-initialised.
func (b *I2CBus) Stop() bool {
	b.regs.SetControl(b.regs.Control() | ConPEN)
	if !b.waitCondition() {
		return false
	}
	b.busy = false
	b.state = I2CStateIdle
	return true
}

// WriteByte transmits one byte and checks the acknowledge from the
// receiver. A NACK sets State to DataNack.
func (b *I2CBus) WriteByte(v byte) bool {
	b.regs.Transmit(v)
	if !b.waitCondition() {
		return false
	}
	if b.regs.Status()&StatACKSTAT != 0 {
		b.state = I2CStateDataNack
		return false
	}
	return true
}

// ReadByte receives one byte and answers it with ACK (ack true) or NACK.
// The last byte of a read must be NACKed.
//
// Wait failures are ignored and the receive register is returned as is.
// Check LastError when the result matters.
func (b *I2CBus) ReadByte(ack bool) byte {
	b.setAckData(ack)
	b.regs.SetControl(b.regs.Control() | ConRCEN)
	b.waitCondition()

	v := b.regs.Receive()

	b.regs.SetControl(b.regs.Control() | ConACKEN)
	b.waitCondition()
	return v
}

// SendAck runs an acknowledge sequence with ACK.
func (b *I2CBus) SendAck() bool {
	return b.sendAcknowledge(true)
}

// SendNack runs an acknowledge sequence with NACK.
func (b *I2CBus) SendNack() bool {
	return b.sendAcknowledge(false)
}

func (b *I2CBus) sendAcknowledge(ack bool) bool {
	b.setAckData(ack)
	b.regs.SetControl(b.regs.Control() | ConACKEN)
	return b.waitCondition()
}

func (b *I2CBus) setAckData(ack bool) {
	con := b.regs.Control()
	if ack {
		con &^= ConACKDT
	} else {
		con |= ConACKDT
	}
	b.regs.SetControl(con)
}

package core

// pollsPerMs approximates one millisecond of condition polling. It is a
// loop count, not a calibrated clock.
const pollsPerMs = 1000

// inProgress reports whether a condition or byte transfer is pending.
func (b *I2CBus) inProgress() bool {
	return b.regs.Control()&ConConditionMask != 0 || b.regs.Status()&StatTRSTAT != 0
}

// waitCondition spins until the pending condition completes or the
// timeout budget runs out. Latched overrun, write collision and bus
// collision abort the wait and classify State.
func (b *I2CBus) waitCondition() bool {
	budget := uint32(b.cfg.TimeoutMs) * pollsPerMs
	for budget > 0 {
		stat := b.regs.Status()
		switch {
		case stat&StatI2COV != 0:
			b.state = I2CStateOverrun
			b.log.Debug("wait aborted", "state", b.state)
			return false
		case stat&StatIWCOL != 0:
			b.state = I2CStateBusCollision
			b.log.Debug("wait aborted", "state", b.state)
			return false
		case stat&StatBCL != 0:
			b.state = I2CStateArbitrationLost
			b.log.Debug("wait aborted", "state", b.state)
			return false
		}
		if !b.inProgress() {
			return true
		}
		budget--
	}
	b.state = I2CStateTimeout
	b.log.Warn("condition timeout", "timeout_ms", b.cfg.TimeoutMs, "control", b.regs.Control())
	return false
}

// WaitIdle waits up to timeoutMs for any pending condition or transfer
// to finish. It does not touch State.
func (b *I2CBus) WaitIdle(timeoutMs uint16) bool {
	for budget := uint32(timeoutMs) * pollsPerMs; budget > 0; budget-- {
		if !b.inProgress() {
			return true
		}
	}
	return !b.inProgress()
}

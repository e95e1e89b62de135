package sim

import "i2cctl/core"

// Condition names a bus action a fault can be attached to.
type Condition uint8

const (
	CondStart Condition = iota
	CondRestart
	CondStop
	CondTransmit
	CondReceive
	CondAck
)

func (c Condition) String() string {
	switch c {
	case CondStart:
		return "start"
	case CondRestart:
		return "restart"
	case CondStop:
		return "stop"
	case CondTransmit:
		return "transmit"
	case CondReceive:
		return "receive"
	case CondAck:
		return "ack"
	default:
		return "unknown"
	}
}

// FaultKind is what goes wrong when an armed fault fires.
type FaultKind uint8

const (
	// FaultStall leaves the condition pending until the module is
	// disabled, so every wait times out.
	FaultStall FaultKind = iota + 1
	// FaultOverrun latches I2COV.
	FaultOverrun
	// FaultCollision latches IWCOL.
	FaultCollision
	// FaultArbitration latches BCL.
	FaultArbitration
)

// FailNext arms a one-shot fault on the next occurrence of c.
func (r *RegisterFile) FailNext(c Condition, k FaultKind) {
	if r.faults == nil {
		r.faults = make(map[Condition]FaultKind)
	}
	r.faults[c] = k
}

// ClearFaults disarms every pending fault.
func (r *RegisterFile) ClearFaults() {
	r.faults = nil
}

func (r *RegisterFile) fire(c Condition) {
	k, ok := r.faults[c]
	if !ok {
		return
	}
	delete(r.faults, c)
	switch k {
	case FaultStall:
		r.stalled = true
	case FaultOverrun:
		r.stat |= core.StatI2COV
	case FaultCollision:
		r.stat |= core.StatIWCOL
	case FaultArbitration:
		r.stat |= core.StatBCL
	}
}

package sim

import "i2cctl/core"

// Trace records what the master side of a RegisterFile did on the bus.
type Trace struct {
	Starts   int
	Restarts int
	Stops    int
	Receives int

	// Transmitted holds every byte the master loaded for transfer,
	// address bytes included.
	Transmitted []byte
	// Acks holds the acknowledge sequences sent by the master, true = ACK.
	Acks []bool

	// RegisterWrites counts writes to any register.
	RegisterWrites int
}

// Registers is a raw copy of the register file.
type Registers struct {
	Con, Stat, Add, Msk, Brg uint16
	Trn, Rcv                 byte
	IF, IE                   bool
}

// RegisterFile is a simulated adapter implementing core.I2CRegisters.
// In master mode its transfers drive the targets of its Bus. In slave
// mode it is driven by the Master* methods.
//
// Condition bits stay set for Latency polls of Control or Status before
// completing. RegisterFile is not safe for concurrent use.
type RegisterFile struct {
	bus *Bus

	con, stat uint16
	add, msk  uint16
	brg       uint16
	trn, rcv  byte
	ifs, iec  bool

	latency   int
	countdown int
	stalled   bool
	faults    map[Condition]FaultKind

	master     bool
	expectAddr bool
	target     Target
	reading    bool

	trace Trace
}

var _ core.I2CRegisters = (*RegisterFile)(nil)

// NewRegisterFile returns a disabled adapter attached to bus. A nil bus
// gets an empty one.
func NewRegisterFile(bus *Bus) *RegisterFile {
	if bus == nil {
		bus = NewBus()
	}
	return &RegisterFile{bus: bus}
}

// Bus returns the bus the adapter drives.
func (r *RegisterFile) Bus() *Bus { return r.bus }

// SetLatency sets how many polls a condition stays pending.
func (r *RegisterFile) SetLatency(polls int) {
	if polls < 0 {
		polls = 0
	}
	r.latency = polls
}

// Trace returns a copy of the recorded activity.
func (r *RegisterFile) Trace() Trace {
	t := r.trace
	t.Transmitted = append([]byte(nil), r.trace.Transmitted...)
	t.Acks = append([]bool(nil), r.trace.Acks...)
	return t
}

// ResetTrace clears the recorded activity.
func (r *RegisterFile) ResetTrace() {
	r.trace = Trace{}
}

// Snapshot returns the raw registers without advancing any condition.
func (r *RegisterFile) Snapshot() Registers {
	return Registers{
		Con: r.con, Stat: r.stat, Add: r.add, Msk: r.msk, Brg: r.brg,
		Trn: r.trn, Rcv: r.rcv, IF: r.ifs, IE: r.iec,
	}
}

// Stalled reports whether a stall fault is holding a condition.
func (r *RegisterFile) Stalled() bool { return r.stalled }

// InterruptEnabled reports the interrupt enable bit.
func (r *RegisterFile) InterruptEnabled() bool { return r.iec }

func (r *RegisterFile) Control() uint16 {
	r.tick()
	return r.con
}

func (r *RegisterFile) SetControl(v uint16) {
	r.trace.RegisterWrites++
	started := v & core.ConConditionMask &^ r.con
	r.con = v
	if v&core.ConI2CEN == 0 {
		r.disable()
		return
	}
	if started == 0 {
		return
	}
	r.countdown = r.latency
	switch {
	case started&core.ConSEN != 0:
		r.start()
	case started&core.ConRSEN != 0:
		r.restart()
	case started&core.ConPEN != 0:
		r.stop()
	case started&core.ConRCEN != 0:
		r.receive()
	case started&core.ConACKEN != 0:
		r.acknowledge()
	}
}

func (r *RegisterFile) Status() uint16 {
	r.tick()
	return r.stat
}

func (r *RegisterFile) ClearStatus(mask uint16) {
	r.trace.RegisterWrites++
	// S and P are read-only, as on hardware.
	r.stat &^= mask & core.StatErrorMask
}

func (r *RegisterFile) Address() uint16 { return r.add }

func (r *RegisterFile) SetAddress(v uint16) {
	r.trace.RegisterWrites++
	r.add = v
}

func (r *RegisterFile) Mask() uint16 { return r.msk }

func (r *RegisterFile) SetMask(v uint16) {
	r.trace.RegisterWrites++
	r.msk = v
}

func (r *RegisterFile) BaudRate() uint16 { return r.brg }

func (r *RegisterFile) SetBaudRate(v uint16) {
	r.trace.RegisterWrites++
	r.brg = v
}

func (r *RegisterFile) Transmit(b byte) {
	r.trace.RegisterWrites++
	if !r.master {
		// Slave reply for the external master.
		if r.stat&core.StatTBF != 0 {
			r.stat |= core.StatIWCOL
			return
		}
		r.trn = b
		r.stat |= core.StatTBF
		return
	}
	r.tick()
	if r.stat&core.StatTRSTAT != 0 || r.con&core.ConConditionMask != 0 {
		r.stat |= core.StatIWCOL
		return
	}

	r.trn = b
	r.trace.Transmitted = append(r.trace.Transmitted, b)
	r.countdown = r.latency
	r.stat |= core.StatTRSTAT
	r.fire(CondTransmit)

	if r.transfer(b) {
		r.stat &^= core.StatACKSTAT
	} else {
		r.stat |= core.StatACKSTAT
	}
}

func (r *RegisterFile) Receive() byte {
	r.stat &^= core.StatRBF
	return r.rcv
}

func (r *RegisterFile) InterruptFlag() bool { return r.ifs }

func (r *RegisterFile) ClearInterruptFlag() {
	r.trace.RegisterWrites++
	r.ifs = false
}

func (r *RegisterFile) SetInterruptFlag() {
	r.trace.RegisterWrites++
	r.ifs = true
}

func (r *RegisterFile) EnableInterrupt(enable bool) {
	r.trace.RegisterWrites++
	r.iec = enable
}

// tick advances a pending condition by one poll.
func (r *RegisterFile) tick() {
	if r.con&core.ConConditionMask == 0 && r.stat&core.StatTRSTAT == 0 {
		return
	}
	if r.stalled {
		return
	}
	if r.countdown > 0 {
		r.countdown--
		return
	}
	r.con &^= core.ConConditionMask
	r.stat &^= core.StatTRSTAT
}

func (r *RegisterFile) disable() {
	r.con &^= core.ConConditionMask
	r.stat = 0
	r.stalled = false
	r.endTarget()
	r.master = false
	r.expectAddr = false
}

func (r *RegisterFile) start() {
	r.trace.Starts++
	r.master = true
	r.expectAddr = true
	r.fire(CondStart)
}

func (r *RegisterFile) restart() {
	r.trace.Restarts++
	r.expectAddr = true
	r.fire(CondRestart)
}

func (r *RegisterFile) stop() {
	r.trace.Stops++
	r.endTarget()
	r.master = false
	r.expectAddr = false
	r.fire(CondStop)
}

func (r *RegisterFile) receive() {
	r.trace.Receives++
	v := byte(0xFF)
	if r.target != nil && r.reading {
		v = r.target.Read()
	}
	if r.stat&core.StatRBF != 0 {
		r.stat |= core.StatI2COV
	}
	r.rcv = v
	r.stat |= core.StatRBF
	r.fire(CondReceive)
}

func (r *RegisterFile) acknowledge() {
	r.trace.Acks = append(r.trace.Acks, r.con&core.ConACKDT == 0)
	r.fire(CondAck)
}

// transfer puts b on the bus and returns the receiver's acknowledge.
func (r *RegisterFile) transfer(b byte) bool {
	if r.expectAddr {
		r.expectAddr = false
		r.endTarget()
		t, ok := r.bus.Target(b >> 1)
		if !ok {
			return false
		}
		read := b&core.DirRead != 0
		if !t.Start(read) {
			return false
		}
		r.target = t
		r.reading = read
		return true
	}
	if r.target == nil || r.reading {
		return false
	}
	return r.target.Write(b)
}

func (r *RegisterFile) endTarget() {
	if r.target != nil {
		r.target.Stop()
		r.target = nil
	}
	r.reading = false
}

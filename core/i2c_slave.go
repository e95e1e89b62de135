package core

import "i2cctl/protocol"

// HandleInterrupt services the adapter interrupt. Call it from the
// adapter's interrupt vector only. The interrupt flag is cleared first;
// without a callback nothing else happens. Otherwise at most one event is
// dispatched, the first of START, STOP, data received, data requested.
// Matched address bytes are read and dropped; a read address goes
// straight to data requested.
//
// S and P are read-only and stay set until the opposite condition, so
// START and STOP are dispatched once per edge. A byte left waiting behind
// a START or STOP pends the interrupt again.
func (b *I2CBus) HandleInterrupt() {
	b.regs.ClearInterruptFlag()

	cb := b.callback
	if cb == nil {
		return
	}

	stat := b.regs.Status()
	switch {
	case stat&StatS != 0 && !b.active:
		b.active = true
		cb(b, EventStart, 0)
	case stat&StatP != 0 && b.active:
		b.active = false
		cb(b, EventStop, 0)
	case stat&StatRBF != 0 && stat&StatDA != 0:
		cb(b, EventDataReceived, b.regs.Receive())
		return
	case stat&StatRW != 0 && stat&StatTBF == 0 && (stat&StatDA == 0 || stat&StatACKSTAT == 0):
		if stat&StatRBF != 0 {
			b.regs.Receive()
		}
		// The callback replies with PutByte.
		cb(b, EventDataRequested, 0)
		return
	case stat&StatRBF != 0:
		b.regs.Receive()
		return
	default:
		return
	}

	if b.regs.Status()&StatRBF != 0 {
		b.regs.SetInterruptFlag()
	}
}

// stopPending reports a STOP not yet dispatched. Adapters without a
// STOP interrupt only show it in the status register.
func (b *I2CBus) stopPending() bool {
	return b.active && b.callback != nil && b.regs.Status()&StatP != 0
}

// PollInterrupts runs HandleInterrupt for each initialised bus whose
// interrupt flag is pending or whose STOP has not been dispatched, in
// module order, and returns how many it serviced. Platforms that cannot
// install the adapter vector call it from their main loop.
func (c *Controller) PollInterrupts() int {
	n := 0
	for _, m := range c.Modules() {
		bus, ok := c.buses[m]
		if !ok || !(bus.regs.InterruptFlag() || bus.stopPending()) {
			continue
		}
		bus.HandleInterrupt()
		n++
	}
	return n
}

// PutByte queues v for the master and releases the clock. It does not
// wait for the byte to be clocked out.
func (b *I2CBus) PutByte(v byte) {
	b.regs.Transmit(v)
	b.regs.SetControl(b.regs.Control() | ConSCLREL)
}

// GetByte returns the receive register and clears RBF.
func (b *I2CBus) GetByte() byte {
	return b.regs.Receive()
}

// DataReady reports whether a received byte is waiting.
func (b *I2CBus) DataReady() bool {
	return b.regs.Status()&StatRBF != 0
}

// GetReceivedAddress returns the last matched address byte, shifted back
// to a 7-bit address, or 0 if the last byte received was data.
func (b *I2CBus) GetReceivedAddress() uint8 {
	if b.regs.Status()&StatDA != 0 {
		return 0
	}
	return b.regs.Receive() >> 1
}

// SlaveBufferSize is the capacity of each SlaveBuffer ring.
const SlaveBufferSize = 256

// SlaveBuffer is a ready-made slave callback. Bytes written by the master
// collect in a receive ring; reads are answered from a transmit ring,
// with 0xFF once it runs dry.
type SlaveBuffer struct {
	rx *protocol.FifoBuffer
	tx *protocol.FifoBuffer

	starts, stops int
}

// NewSlaveBuffer returns an empty SlaveBuffer.
func NewSlaveBuffer() *SlaveBuffer {
	return &SlaveBuffer{
		rx: protocol.NewFifoBuffer(SlaveBufferSize),
		tx: protocol.NewFifoBuffer(SlaveBufferSize),
	}
}

// Handle is the I2CCallback; install it with bus.SetCallback(sb.Handle).
func (s *SlaveBuffer) Handle(bus *I2CBus, event I2CEvent, data byte) {
	switch event {
	case EventStart:
		s.starts++
	case EventStop:
		s.stops++
	case EventDataReceived:
		// Overflowing bytes are dropped.
		s.rx.Write([]byte{data})
	case EventDataRequested:
		var out [1]byte
		if s.tx.Read(out[:]) == 0 {
			out[0] = 0xFF
		}
		bus.PutByte(out[0])
	}
}

// Queue appends reply bytes for the master and returns how many fit.
func (s *SlaveBuffer) Queue(data []byte) int {
	return s.tx.Write(data)
}

// Drain moves received bytes into p and returns the count.
func (s *SlaveBuffer) Drain(p []byte) int {
	return s.rx.Read(p)
}

// RxCount returns the number of received bytes not yet drained.
func (s *SlaveBuffer) RxCount() int { return s.rx.Available() }

// TxCount returns the number of queued reply bytes.
func (s *SlaveBuffer) TxCount() int { return s.tx.Available() }

// Transactions returns the START and STOP counts seen so far.
func (s *SlaveBuffer) Transactions() (starts, stops int) {
	return s.starts, s.stops
}

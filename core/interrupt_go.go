//go:build !tinygo

package core

// irqState stands in for the saved interrupt mask on regular Go.
type irqState uintptr

// disableInterrupts is a no-op on regular Go, where HandleInterrupt is
// called synchronously by tests and the simulator.
func disableInterrupts() irqState {
	return 0
}

func restoreInterrupts(irqState) {}

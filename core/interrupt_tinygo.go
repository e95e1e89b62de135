//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts so foreground code can update state
// the bus interrupt handler reads.
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}

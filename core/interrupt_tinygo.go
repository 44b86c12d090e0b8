//go:build tinygo

package core

import "runtime/interrupt"

// irqState is the saved interrupt mask
type irqState = interrupt.State

// irqDisable masks interrupts and returns the previous mask
func irqDisable() irqState {
	return interrupt.Disable()
}

// irqRestore puts back a mask returned by irqDisable
func irqRestore(state irqState) {
	interrupt.Restore(state)
}

//go:build !tinygo

package core

// irqState is the saved interrupt mask; host builds have no interrupts
type irqState uintptr

func irqDisable() irqState {
	return 0
}

func irqRestore(irqState) {}

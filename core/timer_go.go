//go:build !tinygo

package core

// Host builds keep system time in a plain variable driven by tests or the simulator

var systemTicks uint32

func getSystemTicks() uint32 {
	return systemTicks
}

func setSystemTicks(ticks uint32) {
	systemTicks = ticks
}

func addSystemTicks(delta uint32) uint32 {
	systemTicks += delta
	return systemTicks
}

//go:build tinygo

package core

import "sync/atomic"

// Written by the target's tick source, read by the foreground loop
var systemTicksValue uint32

func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicksValue)
}

func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicksValue, ticks)
}

func addSystemTicks(delta uint32) uint32 {
	return atomic.AddUint32(&systemTicksValue, delta)
}

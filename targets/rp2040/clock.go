//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"crkcam/core"
)

// RP2040 Timer peripheral: free-running 64-bit microsecond counter
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// UpdateSystemTime copies the hardware microsecond clock into the
// foreground timer list. The low word wraps with system time.
func UpdateSystemTime() {
	core.SetTime(timerRAWL.Get())
}

//go:build stm32f103

package main

import (
	"time"

	"crkcam/core"
)

var bootTime = time.Now()

// UpdateSystemTime copies the runtime's microsecond clock into the
// foreground timer list
func UpdateSystemTime() {
	core.SetTime(uint32(time.Since(bootTime) / time.Microsecond))
}

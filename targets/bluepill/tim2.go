//go:build stm32f103

package main

import (
	"device/stm32"
	"machine"
	"runtime/interrupt"

	"crkcam/core"
)

// TIM2 register bits
const (
	timCR1CEN  = 1 << 0
	timEGRUG   = 1 << 0
	timSRUIF   = 1 << 0
	timSRCC1IF = 1 << 1
	timSRCC2IF = 1 << 2

	timDIERCC1IE = 1 << 1
	timDIERCC2IE = 1 << 2

	timCCERCC1E = 1 << 0
	timCCERCC2E = 1 << 4

	timOC1MPos = 4
	timOC2MPos = 12
	timOCMMask = 0x7
)

// Output compare modes
const (
	ocModeFrozen   = 0 // Level unchanged
	ocModeActive   = 1 // Forced high on match
	ocModeInactive = 2 // Forced low on match
)

// Tim2 drives the crank on CH1 (PA0) and the cam on CH2 (PA1).
// Both channels share one counter and one interrupt vector.
type Tim2 struct {
	intr interrupt.Interrupt
}

var _ core.CompareTimer = (*Tim2)(nil)

// sched is the scheduler serviced by the TIM2 vector
var sched *core.TimerScheduler

// NewTim2 powers the timer and hooks its interrupt
func NewTim2() *Tim2 {
	stm32.RCC.APB2ENR.SetBits(stm32.RCC_APB2ENR_IOPAEN)
	stm32.RCC.APB1ENR.SetBits(stm32.RCC_APB1ENR_TIM2EN)

	machine.PA0.Configure(machine.PinConfig{Mode: machine.PinOutput50MHz + machine.PinOutputModeAltPushPull})
	machine.PA1.Configure(machine.PinConfig{Mode: machine.PinOutput50MHz + machine.PinOutputModeAltPushPull})

	t := &Tim2{intr: interrupt.New(stm32.IRQ_TIM2, handleTIM2)}
	t.intr.SetPriority(0x00)
	return t
}

func handleTIM2(interrupt.Interrupt) {
	if sched != nil {
		sched.HandleSharedInterrupt()
	}
}

// Configure wraps the counter at period and arms both compare interrupts
func (t *Tim2) Configure(period uint32) error {
	if period == 0 || period > 0x10000 {
		return core.ErrPeriodRange
	}

	tim := stm32.TIM2
	tim.CR1.Set(0)
	tim.ARR.Set(period - 1)
	tim.CCMR1_Output.Set(0)
	tim.CCER.Set(timCCERCC1E | timCCERCC2E)
	tim.DIER.Set(timDIERCC1IE | timDIERCC2IE)
	tim.SR.Set(0)

	t.intr.Enable()
	return nil
}

func (t *Tim2) MaxPrescaler() uint32 { return 0xFFFF }

// SetPrescaler loads psc at once. The update event that latches it also
// clears the counter, so the counter is saved around it.
func (t *Tim2) SetPrescaler(psc uint32) {
	tim := stm32.TIM2
	cnt := tim.CNT.Get()
	tim.PSC.Set(psc)
	tim.EGR.Set(timEGRUG)
	tim.CNT.Set(cnt)
	tim.SR.Set(^uint32(timSRUIF))
}

func (t *Tim2) Enable()  { stm32.TIM2.CR1.SetBits(timCR1CEN) }
func (t *Tim2) Disable() { stm32.TIM2.CR1.ClearBits(timCR1CEN) }

func (t *Tim2) Counter() uint32     { return stm32.TIM2.CNT.Get() }
func (t *Tim2) SetCounter(v uint32) { stm32.TIM2.CNT.Set(v) }

func (t *Tim2) MatchPending(ch core.Channel) bool {
	return stm32.TIM2.SR.HasBits(srFlag(ch))
}

// ClearMatch writes zero to the flag; the others are write-one-ignored
func (t *Tim2) ClearMatch(ch core.Channel) {
	stm32.TIM2.SR.Set(^srFlag(ch))
}

func (t *Tim2) SetCompare(ch core.Channel, v uint32) {
	if ch == core.ChannelCam {
		stm32.TIM2.CCR2.Set(v)
		return
	}
	stm32.TIM2.CCR1.Set(v)
}

func (t *Tim2) SetOutputAction(ch core.Channel, action core.OutputAction) {
	mode := uint32(ocModeFrozen)
	switch action {
	case core.OutputActiveOnMatch:
		mode = ocModeActive
	case core.OutputInactiveOnMatch:
		mode = ocModeInactive
	}

	pos := uint8(timOC1MPos)
	if ch == core.ChannelCam {
		pos = timOC2MPos
	}
	stm32.TIM2.CCMR1_Output.ReplaceBits(mode, timOCMMask, pos)
}

func srFlag(ch core.Channel) uint32 {
	if ch == core.ChannelCam {
		return timSRCC2IF
	}
	return timSRCC1IF
}

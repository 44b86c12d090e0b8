//go:build rp2040

package main

import (
	"device/rp"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"crkcam/core"
)

// Raw encodings for instructions built without the assembler
const (
	pioMovXNotNull  = 0xa02b // mov x, ~null
	pioMovYStatus   = 0xa045 // mov y, status
	pioMovISRNotX   = 0xa0c9 // mov isr, ~x
	pioPushNoblock  = 0x8000 // push noblock
	pioIRQNowaitRel = 0xc010 // irq nowait 0 rel
)

// Edge program, one state machine per channel. Each TX word is one event:
//
//	Bits 0-1:  output action (0 frozen, 1 high, 2 low)
//	Bits 2-31: delay in PIO cycles
//
// After every edge the state machine raises its IRQ flag, then counts in
// steps of 3 cycles until the next word arrives and pushes that count to
// the RX FIFO. From one edge to the next there are
// delay + edgeOverhead + 3*stall cycles whatever the actions, so the clock
// divider plays the role of the prescaler and a PIO cycle is one tick.
func buildEdgeProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		pioMovXNotNull,                                   // 0: mov x, ~null
		pioMovYStatus,                                    // 1: mov y, status (all ones while TX is empty)
		asm.Jmp(4, rp2pio.JmpYZero).Encode(),             // 2: jmp !y, 4
		asm.Jmp(1, rp2pio.JmpXNZeroDec).Encode(),         // 3: jmp x--, 1
		pioMovISRNotX,                                    // 4: mov isr, ~x (stall count)
		pioPushNoblock,                                   // 5: push noblock
		asm.Pull(false, true).Encode(),                   // 6: pull block
		asm.Out(rp2pio.OutDestY, 2).Encode(),             // 7: out y, 2 (action)
		asm.Out(rp2pio.OutDestX, 30).Encode(),            // 8: out x, 30 (delay)
		asm.Jmp(9, rp2pio.JmpXNZeroDec).Encode(),         // 9: jmp x--, 9
		asm.Jmp(15, rp2pio.JmpYZero).Encode(),            // 10: jmp !y, 15 (frozen)
		asm.Jmp(12, rp2pio.JmpYNZeroDec).Encode(),        // 11: jmp y--, 12 (always taken)
		asm.Jmp(16, rp2pio.JmpYZero).Encode(),            // 12: jmp !y, 16 (high)
		asm.Set(rp2pio.SetDestPins, 0).Encode(),          // 13: set pins, 0
		asm.Jmp(17, rp2pio.JmpAlways).Encode(),           // 14: jmp 17
		asm.Jmp(17, rp2pio.JmpAlways).Delay(3).Encode(),  // 15: jmp 17 [3]
		asm.Set(rp2pio.SetDestPins, 1).Delay(1).Encode(), // 16: set pins, 1 [1]
		pioIRQNowaitRel,                                  // 17: irq nowait 0 rel
		// .wrap
	}
}

const (
	edgePIOOrigin = 0  // Absolute jump targets
	edgeOverhead  = 15 // Cycles from one edge to the next outside the delay loop
	edgeStartLead = 3  // Cycles from a restart to the stall check, as after an edge
	edgeStallStep = 3  // Cycles per stall count
	edgeMaxDelay  = 1<<30 - 1

	execCtrlStatusMask = 0x1F // STATUS_SEL and STATUS_N
	execCtrlTxEmpty    = 0x01 // TX level below 1
)

// PioTimer emulates a two-channel compare timer with two PIO state
// machines. The counter is virtual and kept by a core.EdgeQueue; a match is
// the state machine's IRQ flag, raised once the last queued edge has been
// driven.
type PioTimer struct {
	pio    *rp2pio.PIO
	hw     *rp.PIO0_Type
	sm     [core.NumChannels]rp2pio.StateMachine
	pins   [core.NumChannels]machine.Pin
	offset uint8

	period  uint32
	queue   *core.EdgeQueue
	pending [core.NumChannels]uint32 // Delay of the word SetOutputAction queues
	enabled bool
}

var _ core.CompareTimer = (*PioTimer)(nil)

// NewPioTimer loads the edge program on p and binds state machines 0 and 1
// to the crank and cam pins.
func NewPioTimer(p *rp2pio.PIO, crankPin, camPin machine.Pin) (*PioTimer, error) {
	t := &PioTimer{
		pio:    p,
		hw:     rp.PIO0,
		period: core.RevTicks,
		queue:  core.NewEdgeQueue(core.RevTicks, edgeOverhead, edgeStartLead),
	}
	if p == rp2pio.PIO1 {
		t.hw = rp.PIO1
	}
	t.pins[core.ChannelCrank] = crankPin
	t.pins[core.ChannelCam] = camPin

	program := buildEdgeProgram()
	offset, err := p.AddProgram(program, edgePIOOrigin)
	if err != nil {
		return nil, err
	}
	t.offset = offset

	for ch := range t.sm {
		sm := p.StateMachine(uint8(ch))
		sm.TryClaim()
		pin := t.pins[ch]
		pin.Configure(machine.PinConfig{Mode: p.PinMode()})

		cfg := rp2pio.DefaultStateMachineConfig()
		cfg.SetSetPins(pin, 1)
		cfg.SetOutShift(true, false, 32)
		cfg.SetInShift(false, false, 32)
		cfg.SetWrap(offset+uint8(len(program))-1, offset)
		cfg.SetClkDivIntFrac(0xFFFF, 0)

		sm.Init(offset, cfg)
		sm.SetPindirsConsecutive(pin, 1, true)
		sm.SetPinsConsecutive(pin, 1, false)
		t.sm[ch] = sm
	}

	// mov status reads all ones while the TX FIFO is empty
	t.hw.SM0_EXECCTRL.ReplaceBits(execCtrlTxEmpty, execCtrlStatusMask, 0)
	t.hw.SM1_EXECCTRL.ReplaceBits(execCtrlTxEmpty, execCtrlStatusMask, 0)

	t.restart(0)
	return t, nil
}

// Configure sets the wrap of the virtual counter and discards queued events
func (t *PioTimer) Configure(period uint32) error {
	if period == 0 || period > edgeMaxDelay {
		return core.ErrPeriodRange
	}
	t.period = period
	t.Disable()
	t.restart(0)
	for ch := range t.sm {
		t.sm[ch].SetPinsConsecutive(t.pins[ch], 1, false)
	}
	return nil
}

// MaxPrescaler keeps the divider within the 16-bit integer field
func (t *PioTimer) MaxPrescaler() uint32 { return 0xFFFE }

func (t *PioTimer) SetPrescaler(psc uint32) {
	if psc > t.MaxPrescaler() {
		psc = t.MaxPrescaler()
	}
	for _, sm := range t.sm {
		sm.SetClkDiv(uint16(psc+1), 0)
	}
}

// Enable starts both state machines with their dividers in phase
func (t *PioTimer) Enable() {
	for _, sm := range t.sm {
		sm.ClkDivRestart()
	}
	for _, sm := range t.sm {
		sm.SetEnabled(true)
	}
	t.enabled = true
	t.queue.Run()
}

func (t *PioTimer) Disable() {
	for _, sm := range t.sm {
		sm.SetEnabled(false)
	}
	t.enabled = false
}

// Counter returns the position of the edge being serviced
func (t *PioTimer) Counter() uint32 {
	return t.queue.Now()
}

// SetCounter rebases both channels, keeping their relative phase and
// whatever is queued. A stopped timer that has run since its last restart
// is restarted instead, dropping what the previous run left behind.
func (t *PioTimer) SetCounter(v uint32) {
	if !t.enabled && !t.queue.Fresh() {
		t.restart(v)
		return
	}
	t.queue.Rebase(v)
}

// MatchPending reports that the channel's last queued edge has been driven
func (t *PioTimer) MatchPending(ch core.Channel) bool {
	return t.hw.IRQ.HasBits(1 << ch)
}

// ClearMatch acknowledges the edge on ch and makes it the current position
func (t *PioTimer) ClearMatch(ch core.Channel) {
	t.hw.IRQ.Set(1 << ch)
	t.queue.Acknowledge(ch)
}

// HoldCrank reports that the cam edge due at the crank's current position
// has not been driven yet. The crank waits for it so a cam resync lands
// before the crank takes its next event.
func (t *PioTimer) HoldCrank() bool {
	return t.queue.CamDue() && !t.MatchPending(core.ChannelCam)
}

// SetCompare takes the stall reports up to the previous edge and works out
// the delay of the next word
func (t *PioTimer) SetCompare(ch core.Channel, v uint32) {
	sm := t.sm[ch]
	for !sm.IsRxFIFOEmpty() {
		t.queue.AddStall(ch, sm.RxGet()*edgeStallStep)
	}
	t.pending[ch] = t.queue.Queue(ch, v)
}

// SetOutputAction queues the event ending at the last compare value
func (t *PioTimer) SetOutputAction(ch core.Channel, action core.OutputAction) {
	delay := t.pending[ch]
	if delay > edgeMaxDelay {
		delay = edgeMaxDelay
	}
	sm := t.sm[ch]
	for sm.IsTxFIFOFull() {
	}
	sm.TxPut(uint32(action)&0x3 | delay<<2)
}

// restart parks both state machines on the stall check with empty FIFOs
func (t *PioTimer) restart(v uint32) {
	for _, sm := range t.sm {
		sm.ClearFIFOs()
		sm.Restart()
		sm.Exec(rp2pio.EncodeJmp(t.offset, rp2pio.JmpAlways))
	}
	t.hw.IRQ.Set(1<<core.NumChannels - 1)
	t.queue.Restart(t.period, v)
}

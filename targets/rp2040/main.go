//go:build rp2040

package main

import (
	"machine"
	"runtime"
	"time"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"crkcam/core"
	"crkcam/protocol"
)

// Power-on selection and pins
const (
	defaultCrank = 0 // 60-2
	defaultCam   = 0 // bench-21
	defaultRPM   = 1000

	crankPin = machine.GPIO2
	camPin   = machine.GPIO3
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	emu      *core.Emulator
	sigTimer *PioTimer

	msgerrors uint32

	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Clear any watchdog state left by a previous reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	// Signals still run without a host; the channel counts as disconnected
	if err := InitUSB(); err != nil {
		msgerrors++
		usbWasDisconnected = true
		core.DebugPrintln("[USB] configure: " + err.Error())
	}
	UpdateSystemTime()

	var err error
	sigTimer, err = NewPioTimer(rp2pio.PIO0, crankPin, camPin)
	if err != nil {
		panic(err)
	}

	// The PIO divider counts system clock cycles
	emu = core.NewEmulator(sigTimer, machine.CPUFrequency(), core.DefaultRampResolutionMS)
	if err := emu.SelectConfig(defaultCrank, defaultCam); err != nil {
		panic(err)
	}
	if err := emu.Start(defaultRPM); err != nil {
		panic(err)
	}

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	transport.SetResetCallback(outputBuffer.Reset)
	transport.SetFlushCallback(writeUSB)
	if err := core.InitEmulatorCommands(emu, transport); err != nil {
		panic(err)
	}

	go usbReaderLoop()
	go signalLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
			}
			writeUSB()

			emu.Service()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// signalLoop stands in for the compare interrupt: it feeds each state
// machine its next event once the previous edge has been driven. Cam goes
// first, and a crank edge sharing its position with a pending cam edge
// waits for it.
func signalLoop() {
	sched := emu.Scheduler()
	for {
		if sigTimer.MatchPending(core.ChannelCam) {
			sched.AdvanceCamChannel()
		}
		if sigTimer.MatchPending(core.ChannelCrank) && !sigTimer.HoldCrank() {
			sched.AdvanceCrankChannel()
		}
		runtime.Gosched()
	}
}

func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			b, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(time.Millisecond)
				continue
			}

			// Fresh connection: drop whatever the last one left behind
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				consecutiveWriteFailures = 0
			}

			if err := inputBuffer.WriteByte(b); err != nil {
				msgerrors++
			}
			continue
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB flushes the output buffer; repeated failures mark the host gone
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}

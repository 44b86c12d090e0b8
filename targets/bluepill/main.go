//go:build stm32f103

package main

import (
	"machine"
	"time"

	"crkcam/core"
	"crkcam/protocol"
)

// Power-on selection
const (
	defaultCrank = 0 // 60-2
	defaultCam   = 0 // bench-21
	defaultRPM   = 1000

	timerClockHz = 72000000 // TIM2 runs at twice the 36 MHz APB1 clock
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	emu *core.Emulator
	pot *core.PotTask

	msgerrors uint32
)

func main() {
	InitUART()
	core.SetDebugWriter(func(s string) { println(s) })

	timer := NewTim2()
	emu = core.NewEmulator(timer, timerClockHz, core.DefaultRampResolutionMS)
	sched = emu.Scheduler()
	if err := emu.SelectConfig(defaultCrank, defaultCam); err != nil {
		panic(err)
	}

	UpdateSystemTime()
	if err := emu.Start(defaultRPM); err != nil {
		panic(err)
	}

	// The knob on PA4 sets the speed until the host speaks
	machine.InitADC()
	knob := machine.ADC{Pin: machine.PA4}
	knob.Configure(machine.ADCConfig{})
	pot = core.NewPotTask(emu, knob.Get, core.DefaultPotConfig)
	pot.Start()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, handleCommand)
	// A restarted host gets no replies meant for its previous session
	transport.SetResetCallback(outputBuffer.Reset)
	transport.SetFlushCallback(writeUART)
	if err := core.InitEmulatorCommands(emu, transport); err != nil {
		panic(err)
	}

	go uartReaderLoop()

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

			writeUART()

			emu.Service()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// handleCommand hands control to the host on its first command
func handleCommand(cmdID uint16, data *[]byte) error {
	if pot.Running() {
		pot.Stop()
		core.DebugPrintln("[MAIN] host connected, knob released")
	}
	return core.DispatchCommand(cmdID, data)
}

func uartReaderLoop() {
	for {
		if UARTAvailable() > 0 {
			b, err := UARTRead()
			if err != nil {
				msgerrors++
				continue
			}
			if err := inputBuffer.WriteByte(b); err != nil {
				msgerrors++
			}
			continue
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func writeUART() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := UARTWriteBytes(result[written:])
		if err != nil || n == 0 {
			msgerrors++
			break
		}
		written += n
	}
	outputBuffer.Reset()
}

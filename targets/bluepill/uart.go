//go:build stm32f103

package main

import "machine"

// InitUART sets up USART1 (PA9 TX, PA10 RX) as the command channel
func InitUART() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 115200})
}

func UARTAvailable() int {
	return machine.Serial.Buffered()
}

func UARTRead() (byte, error) {
	return machine.Serial.ReadByte()
}

func UARTWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}

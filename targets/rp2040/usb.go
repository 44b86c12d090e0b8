//go:build rp2040

package main

import "machine"

// InitUSB sets up the USB CDC-ACM command channel
func InitUSB() error {
	return machine.Serial.Configure(machine.UARTConfig{})
}

func USBAvailable() int {
	return machine.Serial.Buffered()
}

func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}

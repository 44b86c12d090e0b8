package serial

import "io"

// Port is the byte stream to the emulator's command channel.
// Native ports come from Open; tests use an in-memory pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush pushes out any buffered data
	Flush() error
}

// Config holds serial port settings
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate; the STM32 USART is set up for 115200
	Baud int

	// ReadTimeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the settings the emulator firmware expects
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}

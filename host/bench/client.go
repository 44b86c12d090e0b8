// Package bench drives a crank/cam emulator over its serial command channel.
package bench

import (
	"errors"
	"fmt"
	"io"
	"time"

	"crkcam/host/serial"
	"crkcam/protocol"
)

// Errors reported by the firmware in the status error field
var (
	ErrBacklogFull   = errors.New("speed backlog full")
	ErrUnknownConfig = errors.New("unknown wheel configuration")
	ErrNotRunning    = errors.New("emulator not running")
	ErrBadArgs       = errors.New("bad command arguments")
)

// ErrUnexpectedResponse is returned when a command is not answered by a status
var ErrUnexpectedResponse = errors.New("unexpected response")

// Client is a connection to one emulator
type Client struct {
	transport *protocol.HostTransport
	timeout   time.Duration
	last      protocol.Status
}

// Connect opens device with the default serial settings
func Connect(device string) (*Client, error) {
	return ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens the serial port described by cfg
func ConnectWithConfig(cfg *serial.Config) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	c := NewClient(port)

	// Give the board time to come out of reset
	time.Sleep(100 * time.Millisecond)
	return c, nil
}

// NewClient wraps an already open byte stream
func NewClient(port io.ReadWriteCloser) *Client {
	return &Client{
		transport: protocol.NewHostTransport(port),
		timeout:   protocol.DefaultTimeout,
	}
}

// SetTimeout bounds each request
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SetTrace logs raw blocks in both directions
func (c *Client) SetTrace(trace protocol.TraceFunc) {
	c.transport.SetTrace(trace)
}

// Close shuts the transport and the port
func (c *Client) Close() error {
	return c.transport.Close()
}

// Status queries the emulator state
func (c *Client) Status() (protocol.Status, error) {
	return c.request(protocol.CmdGetStatus, nil)
}

// SetSpeed queues a jump to rpm
func (c *Client) SetSpeed(rpm uint32) (protocol.Status, error) {
	return c.request(protocol.CmdSetSpeed, args(rpm))
}

// Ramp queues a linear ramp to rpm over ms milliseconds
func (c *Client) Ramp(rpm, ms uint32) (protocol.Status, error) {
	return c.request(protocol.CmdRampSpeed, args(rpm, ms))
}

// Increment queues a relative speed increase
func (c *Client) Increment(rpm uint32) (protocol.Status, error) {
	return c.request(protocol.CmdIncSpeed, args(rpm))
}

// Decrement queues a relative speed decrease
func (c *Client) Decrement(rpm uint32) (protocol.Status, error) {
	return c.request(protocol.CmdDecSpeed, args(rpm))
}

// Force drops the backlog and any ramp and jumps to rpm
func (c *Client) Force(rpm uint32) (protocol.Status, error) {
	return c.request(protocol.CmdForceSpeed, args(rpm))
}

// SelectConfig switches the crank and cam wheels
func (c *Client) SelectConfig(crank, cam uint8) (protocol.Status, error) {
	return c.request(protocol.CmdSelectConfig, args(uint32(crank), uint32(cam)))
}

// WaitForSpeed polls until the emulator reports rpm with an empty backlog
func (c *Client) WaitForSpeed(rpm uint32, timeout time.Duration) (protocol.Status, error) {
	deadline := time.Now().Add(timeout)
	for {
		st, err := c.Status()
		if err != nil {
			return st, err
		}
		if st.RPM == rpm && st.Backlog == 0 {
			return st, nil
		}
		if time.Now().After(deadline) {
			return st, fmt.Errorf("speed %d rpm not reached after %v (at %d)", rpm, timeout, st.RPM)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// LastStatus returns the most recent status received
func (c *Client) LastStatus() protocol.Status {
	return c.last
}

func (c *Client) request(cmdID uint16, encode func(output protocol.OutputBuffer)) (protocol.Status, error) {
	msg, err := c.transport.Request(cmdID, encode, c.timeout)
	if err != nil {
		return protocol.Status{}, fmt.Errorf("%s: %w", protocol.CommandName(cmdID), err)
	}

	payload := msg.Payload
	id, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return protocol.Status{}, fmt.Errorf("%s: %w", protocol.CommandName(cmdID), err)
	}
	if uint16(id) != protocol.RespStatus {
		return protocol.Status{}, fmt.Errorf("%s: %w: %s", protocol.CommandName(cmdID),
			ErrUnexpectedResponse, protocol.CommandName(uint16(id)))
	}

	st, err := protocol.DecodeStatus(&payload)
	if err != nil {
		return protocol.Status{}, fmt.Errorf("%s: decode status: %w", protocol.CommandName(cmdID), err)
	}
	c.last = st

	if err := statusError(st.Error); err != nil {
		return st, fmt.Errorf("%s: %w", protocol.CommandName(cmdID), err)
	}
	return st, nil
}

func args(values ...uint32) func(output protocol.OutputBuffer) {
	return func(output protocol.OutputBuffer) {
		for _, v := range values {
			protocol.EncodeVLQUint(output, v)
		}
	}
}

func statusError(code uint8) error {
	switch code {
	case protocol.StatusOK:
		return nil
	case protocol.StatusBacklogFull:
		return ErrBacklogFull
	case protocol.StatusUnknownConfig:
		return ErrUnknownConfig
	case protocol.StatusNotRunning:
		return ErrNotRunning
	case protocol.StatusBadArgs:
		return ErrBadArgs
	}
	return fmt.Errorf("firmware error %d", code)
}

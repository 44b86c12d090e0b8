package core

import (
	"crkcam/protocol"
	"errors"
)

// ResponseSender frames one response; *protocol.Transport implements it
type ResponseSender interface {
	SendCommand(cmdID uint16, args func(output protocol.OutputBuffer))
}

// emulatorCommands binds the command set to one emulator.
// Every command answers with a status carrying its result code.
type emulatorCommands struct {
	emu *Emulator
	out ResponseSender
}

// InitEmulatorCommands registers the emulator command set on the global registry
func InitEmulatorCommands(emu *Emulator, out ResponseSender) error {
	return RegisterEmulatorCommands(globalRegistry, emu, out)
}

// RegisterEmulatorCommands registers the emulator command set on r
func RegisterEmulatorCommands(r *CommandRegistry, emu *Emulator, out ResponseSender) error {
	c := &emulatorCommands{emu: emu, out: out}

	table := []Command{
		{protocol.CmdGetStatus, "get_status", "", c.handleGetStatus},
		{protocol.CmdSetSpeed, "set_speed", protocol.FormatSetSpeed, c.handleSetSpeed},
		{protocol.CmdRampSpeed, "ramp_speed", protocol.FormatRampSpeed, c.handleRampSpeed},
		{protocol.CmdIncSpeed, "inc_speed", protocol.FormatSetSpeed, c.handleIncSpeed},
		{protocol.CmdDecSpeed, "dec_speed", protocol.FormatSetSpeed, c.handleDecSpeed},
		{protocol.CmdForceSpeed, "force_speed", protocol.FormatSetSpeed, c.handleForceSpeed},
		{protocol.CmdSelectConfig, "select_config", protocol.FormatSelectConfig, c.handleSelectConfig},

		// Responses (MCU -> host)
		{protocol.RespStatus, "status", protocol.FormatStatus, nil},
	}
	for i := range table {
		cmd := &table[i]
		if err := r.Register(cmd.ID, cmd.Name, cmd.Format, cmd.Handler); err != nil {
			return err
		}
	}
	return nil
}

func (c *emulatorCommands) handleGetStatus(data *[]byte) error {
	c.reply(nil)
	return nil
}

func (c *emulatorCommands) handleSetSpeed(data *[]byte) error {
	var rpm uint32
	if err := c.decode(data, &rpm); err != nil {
		return err
	}
	c.reply(c.emu.Enqueue(FixedSpeed(rpm)))
	return nil
}

func (c *emulatorCommands) handleRampSpeed(data *[]byte) error {
	var rpm, ms uint32
	if err := c.decode(data, &rpm, &ms); err != nil {
		return err
	}
	c.reply(c.emu.Enqueue(Ramp(rpm, ms)))
	return nil
}

func (c *emulatorCommands) handleIncSpeed(data *[]byte) error {
	var rpm uint32
	if err := c.decode(data, &rpm); err != nil {
		return err
	}
	c.reply(c.emu.Enqueue(Increment(rpm)))
	return nil
}

func (c *emulatorCommands) handleDecSpeed(data *[]byte) error {
	var rpm uint32
	if err := c.decode(data, &rpm); err != nil {
		return err
	}
	c.reply(c.emu.Enqueue(Decrement(rpm)))
	return nil
}

// handleForceSpeed drops the backlog and any ramp in progress
func (c *emulatorCommands) handleForceSpeed(data *[]byte) error {
	var rpm uint32
	if err := c.decode(data, &rpm); err != nil {
		return err
	}
	c.emu.Force(FixedSpeed(rpm))
	c.reply(nil)
	return nil
}

func (c *emulatorCommands) handleSelectConfig(data *[]byte) error {
	var crank, cam uint32
	if err := c.decode(data, &crank, &cam); err != nil {
		return err
	}
	if crank > 0xFF || cam > 0xFF {
		c.reply(ErrUnknownConfig)
		return nil
	}
	err := c.emu.SelectConfig(uint8(crank), uint8(cam))
	if err == nil {
		DebugPrintln("[CMD] config crank=" + utoa(crank) + " cam=" + utoa(cam))
	}
	c.reply(err)
	return nil
}

// decode reads the arguments, answering with a bad-args status when short
func (c *emulatorCommands) decode(data *[]byte, dst ...*uint32) error {
	err := protocol.DecodeArgs(data, dst...)
	if err != nil {
		c.reply(err)
	}
	return err
}

func (c *emulatorCommands) reply(result error) {
	if c.out == nil {
		return
	}
	st := c.emu.Status()
	resp := protocol.Status{
		RPM:       st.RPM,
		Target:    st.Target,
		Backlog:   uint8(st.Backlog),
		Prescaler: st.Prescaler,
		Crank:     st.Crank,
		Cam:       st.Cam,
		Running:   st.Running,
		Error:     statusCode(result),
	}
	c.out.SendCommand(protocol.RespStatus, func(output protocol.OutputBuffer) {
		protocol.EncodeStatus(output, &resp)
	})
}

func statusCode(err error) uint8 {
	switch {
	case err == nil:
		return protocol.StatusOK
	case errors.Is(err, ErrBacklogFull):
		return protocol.StatusBacklogFull
	case errors.Is(err, ErrUnknownConfig):
		return protocol.StatusUnknownConfig
	case errors.Is(err, ErrNotInitialized):
		return protocol.StatusNotRunning
	}
	return protocol.StatusBadArgs
}

package protocol

import "errors"

// Command ids are fixed and shared by firmware and host; there is no
// dictionary exchange.
const (
	CmdGetStatus    uint16 = 1 // get_status
	CmdSetSpeed     uint16 = 2 // set_speed rpm=%hu
	CmdRampSpeed    uint16 = 3 // ramp_speed rpm=%hu ms=%hu
	CmdIncSpeed     uint16 = 4 // inc_speed rpm=%hu
	CmdDecSpeed     uint16 = 5 // dec_speed rpm=%hu
	CmdForceSpeed   uint16 = 6 // force_speed rpm=%hu
	CmdSelectConfig uint16 = 7 // select_config crank=%c cam=%c

	RespStatus uint16 = 16 // status, sent after every command
)

// Command formats, for diagnostics
const (
	FormatSetSpeed     = "rpm=%hu"
	FormatRampSpeed    = "rpm=%hu ms=%hu"
	FormatSelectConfig = "crank=%c cam=%c"
	FormatStatus       = "rpm=%u target=%u backlog=%c prescaler=%u crank=%c cam=%c running=%c error=%c"
)

// Status result codes
const (
	StatusOK            uint8 = 0
	StatusBacklogFull   uint8 = 1
	StatusUnknownConfig uint8 = 2
	StatusNotRunning    uint8 = 3
	StatusBadArgs       uint8 = 4
)

var ErrUnknownCommand = errors.New("unknown command")

// Status is the emulator state reported after each command
type Status struct {
	RPM       uint32
	Target    uint32
	Backlog   uint8
	Prescaler uint32
	Crank     uint8
	Cam       uint8
	Running   bool
	Error     uint8 // Result of the command that triggered the report
}

// EncodeStatus writes s in FormatStatus order
func EncodeStatus(output OutputBuffer, s *Status) {
	EncodeVLQUint(output, s.RPM)
	EncodeVLQUint(output, s.Target)
	EncodeVLQUint(output, uint32(s.Backlog))
	EncodeVLQUint(output, s.Prescaler)
	EncodeVLQUint(output, uint32(s.Crank))
	EncodeVLQUint(output, uint32(s.Cam))
	EncodeVLQUint(output, boolToUint(s.Running))
	EncodeVLQUint(output, uint32(s.Error))
}

// DecodeStatus reads a status written by EncodeStatus
func DecodeStatus(data *[]byte) (Status, error) {
	var v [8]uint32
	for i := range v {
		x, err := DecodeVLQUint(data)
		if err != nil {
			return Status{}, err
		}
		v[i] = x
	}
	return Status{
		RPM:       v[0],
		Target:    v[1],
		Backlog:   uint8(v[2]),
		Prescaler: v[3],
		Crank:     uint8(v[4]),
		Cam:       uint8(v[5]),
		Running:   v[6] != 0,
		Error:     uint8(v[7]),
	}, nil
}

// CommandName returns the wire name of a command or response id
func CommandName(id uint16) string {
	switch id {
	case CmdGetStatus:
		return "get_status"
	case CmdSetSpeed:
		return "set_speed"
	case CmdRampSpeed:
		return "ramp_speed"
	case CmdIncSpeed:
		return "inc_speed"
	case CmdDecSpeed:
		return "dec_speed"
	case CmdForceSpeed:
		return "force_speed"
	case CmdSelectConfig:
		return "select_config"
	case RespStatus:
		return "status"
	}
	return "unknown"
}

func boolToUint(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

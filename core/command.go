package core

import (
	"crkcam/protocol"
	"errors"
	"sync"
)

// CommandHandler decodes its own arguments from data and executes the command
type CommandHandler func(data *[]byte) error

// Command is one entry of the command table. Responses (MCU -> host) are
// registered with a nil handler so the table documents both directions.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "rpm=%hu ms=%hu"
	Handler CommandHandler
}

var ErrDuplicateCommand = errors.New("command id already registered")

// CommandRegistry maps fixed command ids to handlers
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
	nameToID map[string]uint16
	maxID    uint16
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// RegisterCommand adds a command to the global registry
func RegisterCommand(id uint16, name, format string, handler CommandHandler) error {
	return globalRegistry.Register(id, name, format, handler)
}

// Register adds a command under a fixed id
func (r *CommandRegistry) Register(id uint16, name, format string, handler CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[id]; exists {
		return ErrDuplicateCommand
	}

	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id
	if id > r.maxID {
		r.maxID = id
	}
	return nil
}

// GetCommand retrieves a command by id
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// GetCommandByName retrieves a command by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands and responses
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler registered for cmdID
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return protocol.ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// Dictionary lists the table one "id name format" line per entry, by id
func (r *CommandRegistry) Dictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dict := ""
	for id := uint16(0); id <= r.maxID; id++ {
		cmd, ok := r.commands[id]
		if !ok {
			continue
		}
		dict += utoa(uint32(id)) + " " + cmd.Name
		if cmd.Format != "" {
			dict += " " + cmd.Format
		}
		dict += "\n"
	}
	return dict
}

// DispatchCommand dispatches through the global registry.
// Its signature matches protocol.CommandHandler.
func DispatchCommand(cmdID uint16, data *[]byte) error {
	return globalRegistry.Dispatch(cmdID, data)
}

// GetGlobalRegistry returns the registry used by DispatchCommand
func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}

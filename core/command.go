package core

import (
	"errors"
	"fmt"
	"sync"
)

// CommandHandler decodes its own arguments from data and runs.
type CommandHandler func(data *[]byte) error

// Command is one dictionary entry. Responses (firmware to host) have a
// nil Handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "module=%c addr=%c data=%*s"
	Handler CommandHandler
}

// Key returns the dictionary key "name format".
func (c *Command) Key() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// CommandRegistry assigns message IDs in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
	nameToID map[string]uint16
	nextID   uint16
}

// ErrUnknownCommand is returned by Dispatch for unregistered IDs.
var ErrUnknownCommand = errors.New("unknown command")

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// Register adds a command and returns its ID. Registering a name twice
// returns the existing ID.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}

	id := r.nextID
	r.nextID++
	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id
	return id
}

// RegisterResponse adds a firmware-to-host message.
func (r *CommandRegistry) RegisterResponse(name string, format string) uint16 {
	return r.Register(name, format, nil)
}

// GetCommand retrieves a command by ID.
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// GetCommandByName retrieves a command by name.
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered messages.
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler for cmdID. It has the protocol.CommandHandler
// signature so a Transport can call it directly.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return fmt.Errorf("%w %d", ErrUnknownCommand, cmdID)
	}
	return cmd.Handler(data)
}

// GetCommandsAndResponses returns the dictionary sections keyed by
// "name format".
func (r *CommandRegistry) GetCommandsAndResponses() (map[string]int, map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make(map[string]int)
	responses := make(map[string]int)
	for _, cmd := range r.commands {
		if cmd.Handler != nil {
			commands[cmd.Key()] = int(cmd.ID)
		} else {
			responses[cmd.Key()] = int(cmd.ID)
		}
	}
	return commands, responses
}

package core

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"i2cctl/protocol"
)

// Firmware is the command side of the controller: it owns the command
// registry, the dictionary and the link transport, and drives a
// Controller on the host's behalf. It is not safe for concurrent use;
// one loop calls Process or Serve.
type Firmware struct {
	ctrl      *Controller
	registry  *CommandRegistry
	dict      *Dictionary
	transport *protocol.Transport
	slaves    map[I2CModule]*SlaveBuffer

	input   *protocol.FifoBuffer
	output  *protocol.ScratchOutput
	pending []byte

	configCRC atomic.Uint32
	shutdown  atomic.Bool

	received, failed uint32

	log *slog.Logger
}

// FirmwareOption configures a Firmware.
type FirmwareOption func(*Firmware)

// WithFirmwareLogger sets the logger for command handling.
func WithFirmwareLogger(l *slog.Logger) FirmwareOption {
	return func(f *Firmware) { f.log = l }
}

// WithVersion overrides the version reported in the dictionary.
func WithVersion(v string) FirmwareOption {
	return func(f *Firmware) { f.dict.SetVersion(v) }
}

// WithConstant adds a dictionary constant.
func WithConstant(name string, value any) FirmwareOption {
	return func(f *Firmware) { f.dict.AddConstant(name, value) }
}

// NewFirmware registers the command set for ctrl and builds the
// dictionary.
func NewFirmware(ctrl *Controller, opts ...FirmwareOption) *Firmware {
	f := &Firmware{
		ctrl:     ctrl,
		registry: NewCommandRegistry(),
		slaves:   make(map[I2CModule]*SlaveBuffer),
		input:    protocol.NewFifoBuffer(256),
		output:   protocol.NewScratchOutput(),
	}
	f.dict = NewDictionary(f.registry)

	f.registerCoreCommands()
	f.registerI2CCommands()

	for _, opt := range opts {
		opt(f)
	}
	f.log = componentLogger(f.log, ComponentFirmware)

	f.transport = protocol.NewTransport(f.output, f.registry.Dispatch)
	f.transport.SetResetCallback(func() {
		f.log.Info("host reset")
		f.configCRC.Store(0)
		f.shutdown.Store(false)
	})
	// Each ACK closes a block; move it out so the scratch never fills.
	f.transport.SetFlushCallback(f.flush)
	f.transport.SetErrorCallback(func(cmdID uint16, err error) {
		f.failed++
		name := "?"
		if cmd, ok := f.registry.GetCommand(cmdID); ok {
			name = cmd.Name
		}
		f.log.Warn("command failed", "command", name, "err", err)
	})

	if err := f.dict.Build(); err != nil {
		f.log.Error("dictionary build failed", "err", err)
	}
	return f
}

// Controller returns the controller driven by the firmware.
func (f *Firmware) Controller() *Controller { return f.ctrl }

// Registry returns the command registry.
func (f *Firmware) Registry() *CommandRegistry { return f.registry }

// Dictionary returns the data dictionary.
func (f *Firmware) Dictionary() *Dictionary { return f.dict }

// IsShutdown reports whether emergency_stop has been received.
func (f *Firmware) IsShutdown() bool { return f.shutdown.Load() }

// Shutdown disables every bus and rejects bus commands until
// config_reset.
func (f *Firmware) Shutdown(reason string) {
	if f.shutdown.Swap(true) {
		return
	}
	f.ctrl.DeinitAll()
	f.log.Warn("shutdown", "reason", reason)
}

// Stats returns the number of Process calls and failed commands.
func (f *Firmware) Stats() (received, failed uint32) {
	return f.received, f.failed
}

// SendResponse encodes a registered response. Responses go out ahead
// of the ACK of the block that produced them.
func (f *Firmware) SendResponse(name string, args func(output protocol.OutputBuffer)) error {
	cmd, ok := f.registry.GetCommandByName(name)
	if !ok || cmd.Handler != nil {
		return ErrUnknownCommand
	}
	f.transport.SendCommand(cmd.ID, args)
	return nil
}

func (f *Firmware) flush() {
	f.pending = append(f.pending, f.output.Result()...)
	f.output.Reset()
}

// Process consumes bytes received from the host and returns the bytes
// to send back. The returned slice is valid until the next call.
func (f *Firmware) Process(data []byte) []byte {
	f.received++
	f.pending = f.pending[:0]

	for len(data) > 0 {
		n := f.input.Write(data)
		data = data[n:]
		before := f.input.Available()
		f.transport.Receive(f.input)
		if n == 0 && f.input.Available() == before {
			// Full of a block that cannot complete.
			f.input.Reset()
		}
	}

	// Responses of a handler that failed before the ACK.
	f.flush()
	return f.pending
}

// Serve runs the command loop over rw until the link closes.
func (f *Firmware) Serve(rw io.ReadWriter) error {
	buf := make([]byte, protocol.MessageLengthMax)
	for {
		n, err := rw.Read(buf)
		if n > 0 {
			if out := f.Process(buf[:n]); len(out) > 0 {
				if _, werr := rw.Write(out); werr != nil {
					return werr
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
	}
}

// Package bridge drives bus instances of a remote controller over the
// framed command link.
package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"i2cctl/core"
	"i2cctl/host/serial"
	"i2cctl/protocol"
	"i2cctl/tinycompress"
)

var (
	ErrNoDictionary   = errors.New("bridge: dictionary not loaded")
	ErrUnknownMessage = errors.New("bridge: unknown message")
	ErrArgumentCount  = errors.New("bridge: wrong argument count")
	ErrArgumentType   = errors.New("bridge: unsupported argument type")
)

// identifyChunk is the dictionary chunk size requested per identify.
const identifyChunk = 40

// DefaultTimeout bounds each request's wait for its response.
const DefaultTimeout = 2 * time.Second

// Client is a connection to the controller firmware. Requests are
// serialized; a Client is safe for concurrent use.
type Client struct {
	transport *protocol.HostTransport

	dict      *protocol.Dictionary
	raw       []byte
	commands  map[string]protocol.MessageFormat
	responses map[string]protocol.MessageFormat

	timeout time.Duration
	mu      sync.Mutex

	log *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the response timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Dial opens a serial port and connects to the firmware on it.
func Dial(cfg *serial.Config, opts ...Option) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	c, err := Connect(port, opts...)
	if err != nil {
		port.Close()
		return nil, err
	}
	return c, nil
}

// Connect starts a transport over port and fetches the dictionary. The
// client owns port from here on.
func Connect(port io.ReadWriteCloser, opts ...Option) (*Client, error) {
	c := &Client{
		transport: protocol.NewHostTransport(port),
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = core.Logger()
	}
	c.log = c.log.With("component", "bridge")

	if err := c.retrieveDictionary(); err != nil {
		c.transport.Close()
		return nil, fmt.Errorf("retrieve dictionary: %w", err)
	}
	return c, nil
}

// Close shuts the link down.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Dictionary returns the parsed firmware dictionary.
func (c *Client) Dictionary() *protocol.Dictionary { return c.dict }

// RawDictionary returns the uncompressed dictionary JSON.
func (c *Client) RawDictionary() []byte { return c.raw }

// retrieveDictionary fetches the dictionary with the bootstrap IDs:
// identify is 1 and identify_response is 0.
func (c *Client) retrieveDictionary() error {
	var buf bytes.Buffer
	for offset := uint32(0); ; {
		chunk, err := c.identify(offset)
		if err != nil {
			return fmt.Errorf("chunk at %d: %w", offset, err)
		}
		buf.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < identifyChunk {
			break
		}
	}

	raw, err := tinycompress.Decompress(buf.Bytes())
	if err != nil {
		return err
	}
	dict, err := protocol.ParseDictionary(raw)
	if err != nil {
		return err
	}

	c.raw = raw
	c.dict = dict
	c.commands = protocol.Formats(dict.Commands)
	c.responses = protocol.Formats(dict.Responses)
	c.log.Debug("dictionary loaded", "version", dict.Version,
		"commands", len(c.commands), "responses", len(c.responses), "bytes", buf.Len())
	return nil
}

func (c *Client) identify(offset uint32) ([]byte, error) {
	c.transport.DrainResponses()
	err := c.transport.SendCommand(1, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, identifyChunk)
	})
	if err != nil {
		return nil, err
	}

	for {
		msg, err := c.transport.ReceiveResponse(c.timeout)
		if err != nil {
			return nil, err
		}
		if msg.ID != 0 {
			continue
		}
		args := msg.Args
		got, err := protocol.DecodeVLQUint(&args)
		if err != nil {
			return nil, err
		}
		if got != offset {
			return nil, fmt.Errorf("offset mismatch: sent %d, got %d", offset, got)
		}
		return protocol.DecodeVLQBytes(&args)
	}
}

// Response is a decoded response message.
type Response struct {
	Name  string
	Args  map[string]uint32
	Bytes map[string][]byte
}

// Uint returns a numeric argument.
func (r *Response) Uint(name string) uint32 { return r.Args[name] }

// Send encodes and sends a command by name without waiting for a
// response. Numeric parameters take integer or bool arguments; %*s
// parameters take []byte or string.
func (c *Client) Send(name string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(name, args)
}

// Request sends a command and waits for the named response.
func (c *Client) Request(name, response string, args ...any) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rf, ok := c.responses[response]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, response)
	}

	c.transport.DrainResponses()
	if err := c.send(name, args); err != nil {
		return nil, err
	}

	for {
		msg, err := c.transport.ReceiveResponse(c.timeout)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if msg.ID != rf.ID {
			c.log.Debug("unexpected response", "id", msg.ID, "waiting", response)
			continue
		}
		return decodeResponse(rf, msg.Args)
	}
}

func (c *Client) send(name string, args []any) error {
	if c.commands == nil {
		return ErrNoDictionary
	}
	mf, ok := c.commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, name)
	}
	if len(args) != len(mf.Params) {
		return fmt.Errorf("%w: %s takes %d, got %d", ErrArgumentCount, name, len(mf.Params), len(args))
	}

	// Validate before the transport starts encoding.
	encoded := make([]func(protocol.OutputBuffer), len(args))
	for i, p := range mf.Params {
		enc, err := encodeArg(p, args[i])
		if err != nil {
			return fmt.Errorf("%s %s: %w", name, p.Name, err)
		}
		encoded[i] = enc
	}

	return c.transport.SendCommand(mf.ID, func(output protocol.OutputBuffer) {
		for _, enc := range encoded {
			enc(output)
		}
	})
}

func encodeArg(p protocol.Param, arg any) (func(protocol.OutputBuffer), error) {
	if p.IsBytes() {
		var b []byte
		switch v := arg.(type) {
		case []byte:
			b = v
		case string:
			b = []byte(v)
		default:
			return nil, fmt.Errorf("%w %T", ErrArgumentType, arg)
		}
		return func(output protocol.OutputBuffer) { protocol.EncodeVLQBytes(output, b) }, nil
	}

	var u uint32
	switch v := arg.(type) {
	case bool:
		if v {
			u = 1
		}
	case int:
		u = uint32(v)
	case uint:
		u = uint32(v)
	case uint8:
		u = uint32(v)
	case uint16:
		u = uint32(v)
	case uint32:
		u = v
	case core.I2CModule:
		u = uint32(v)
	case core.I2CMode:
		u = uint32(v)
	case core.I2CSpeed:
		u = uint32(v)
	default:
		return nil, fmt.Errorf("%w %T", ErrArgumentType, arg)
	}
	return func(output protocol.OutputBuffer) { protocol.EncodeVLQUint(output, u) }, nil
}

func decodeResponse(mf protocol.MessageFormat, data []byte) (*Response, error) {
	r := &Response{
		Name:  mf.Name,
		Args:  make(map[string]uint32, len(mf.Params)),
		Bytes: make(map[string][]byte),
	}
	for _, p := range mf.Params {
		if p.IsBytes() {
			b, err := protocol.DecodeVLQBytes(&data)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", mf.Name, p.Name, err)
			}
			r.Bytes[p.Name] = b
			continue
		}
		v, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", mf.Name, p.Name, err)
		}
		r.Args[p.Name] = v
	}
	return r, nil
}

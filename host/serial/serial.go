// Package serial opens the link to the controller firmware.
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaud is the UART rate of the firmware link. USB CDC ports
// ignore it.
const DefaultBaud = 115200

// Port is a byte stream to the firmware.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	Device string // e.g. /dev/ttyUSB0, COM3
	Baud   int

	// ReadTimeout bounds each Read; zero blocks.
	ReadTimeout time.Duration
}

// DefaultConfig returns the link settings for device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// NativePort is a Port over github.com/tarm/serial.
type NativePort struct {
	port *serial.Port
	cfg  Config
}

// Open opens the port described by cfg.
func Open(cfg *Config) (*NativePort, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, errors.New("serial: no device")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	return &NativePort{port: port, cfg: *cfg}, nil
}

// Read returns 0, nil when the read timeout expires without data.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) && p.cfg.ReadTimeout > 0 {
		// A timed-out tty read reports EOF.
		return 0, nil
	}
	return n, err
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *NativePort) Close() error {
	return p.port.Close()
}

// Flush discards unread input.
func (p *NativePort) Flush() error {
	return p.port.Flush()
}

// Device returns the device path.
func (p *NativePort) Device() string { return p.cfg.Device }

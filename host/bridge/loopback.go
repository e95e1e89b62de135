package bridge

import (
	"net"

	"i2cctl/core"
)

// Loopback serves fw on one end of an in-memory pipe and connects a
// client to the other. Closing the client stops the firmware loop.
func Loopback(fw *core.Firmware, opts ...Option) (*Client, error) {
	host, mcu := net.Pipe()

	go func() {
		defer mcu.Close()
		if err := fw.Serve(mcu); err != nil {
			core.Logger().Warn("loopback firmware stopped", "err", err)
		}
	}()

	c, err := Connect(host, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

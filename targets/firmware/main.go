//go:build tinygo

// Command firmware serves the I2C command set over the board's serial
// console, driving the adapters through their memory-mapped registers.
package main

import (
	"io"
	"log/slog"
	"machine"
	"time"

	"i2cctl/core"
	"i2cctl/targets/mmio"
)

// fcy is the instruction clock of the board.
const fcy = 40000000

var (
	msgerrors uint32
	rx        [64]byte
)

func main() {
	// The console carries the framed link; log output would corrupt it.
	core.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctrl := core.NewController(mmio.Ports(mmio.DefaultLayouts), core.WithFcy(fcy))
	fw := core.NewFirmware(ctrl, core.WithConstant("BOARD", "dspic33fj"))

	serial := machine.Serial

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
				}
			}()

			n := 0
			for n < len(rx) && serial.Buffered() > 0 {
				b, err := serial.ReadByte()
				if err != nil {
					msgerrors++
					break
				}
				rx[n] = b
				n++
			}
			if n > 0 {
				writeAll(serial, fw.Process(rx[:n]))
			}

			// Slave-mode events on adapters without an installed vector.
			ctrl.PollInterrupts()
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// writeAll writes out, handling partial writes. A stalled console drops
// the rest; the host retransmits unacknowledged blocks.
func writeAll(w io.Writer, out []byte) {
	for written := 0; written < len(out); {
		n, err := w.Write(out[written:])
		if err != nil || n == 0 {
			msgerrors++
			return
		}
		written += n
	}
}

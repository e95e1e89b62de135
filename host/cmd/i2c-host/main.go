package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/shlex"

	"i2cctl/config"
	"i2cctl/core"
	"i2cctl/host/bridge"
	"i2cctl/host/serial"
	"i2cctl/sim"
)

var (
	device     = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud       = flag.Int("baud", serial.DefaultBaud, "Baud rate (ignored for USB CDC)")
	simulate   = flag.Bool("sim", false, "Run against a simulated board instead of a serial device")
	configPath = flag.String("config", "", "JSON bus configuration applied after connecting")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	if *verbose {
		core.SetLogLevel(slog.LevelDebug)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	client, err := connect(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	dict := client.Dictionary()
	fmt.Printf("Connected to %s (%d commands, %d responses)\n",
		dict.Version, len(dict.Commands), len(dict.Responses))

	for _, b := range cfg.Buses {
		if err := client.Configure(b.I2CConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: configure i2c%d: %v\n", b.Module, err)
			os.Exit(1)
		}
		fmt.Printf("i2c%d: %s at %d Hz\n", b.Module, b.Mode, b.Speed)
	}

	s := &session{client: client, module: core.I2CModule1}
	if len(cfg.Buses) > 0 {
		s.module = core.I2CModule(cfg.Buses[0].Module)
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("i2c%d> ", s.module)
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		if args[0] == "quit" || args[0] == "exit" || args[0] == "q" {
			return
		}
		if err := s.run(args[0], args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// connect opens the serial device, or a simulated board when -sim is set.
func connect(cfg *config.Config) (*bridge.Client, error) {
	if *simulate {
		bench := sim.NewBench()
		fw := core.NewFirmware(bench.Controller(core.WithFcy(cfg.Fcy)))
		fmt.Printf("Simulated board: RTC at %#02x, EEPROM at %#02x on i2c1\n",
			sim.RTCAddress, sim.EEPROMAddress)
		return bridge.Loopback(fw)
	}

	sc := serial.DefaultConfig(*device)
	sc.Baud = *baud
	fmt.Printf("Connecting to %s...\n", *device)
	return bridge.Dial(sc)
}

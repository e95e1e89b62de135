package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"tinygo.org/x/drivers/at24cx"
	"tinygo.org/x/drivers/ds3231"

	"i2cctl/core"
	"i2cctl/host/bridge"
)

var errUsage = errors.New("bad arguments (see help)")

type session struct {
	client *bridge.Client
	module core.I2CModule
}

type command struct {
	usage string
	help  string
	run   func(s *session, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":         {"", "Show this help message", (*session).help},
		"module":       {"<n>", "Select the bus instance for later commands", (*session).selectModule},
		"scan":         {"[max]", "List responding addresses", (*session).scan},
		"probe":        {"<addr>", "Check whether an address acknowledges", (*session).probe},
		"write":        {"<addr> <byte>...", "Write bytes in one transaction", (*session).write},
		"read":         {"<addr> <n> [reg]...", "Read n bytes, writing reg first if given", (*session).read},
		"regread":      {"<addr> <reg> [n]", "Read n registers starting at reg", (*session).regRead},
		"regwrite":     {"<addr> <reg> <byte>...", "Write registers starting at reg", (*session).regWrite},
		"status":       {"", "Show the bus state and registers", (*session).status},
		"clear":        {"", "Clear the error state", (*session).clear},
		"reset":        {"", "Re-initialise the bus (recovers from timeouts)", (*session).reset},
		"timeout":      {"<ms>", "Set the condition-wait budget", (*session).timeout},
		"rtc":          {"[now|<RFC3339>]", "Read or set a DS3231 clock", (*session).rtc},
		"eeprom-read":  {"<offset> <n>", "Read a 24Cxx EEPROM", (*session).eepromRead},
		"eeprom-write": {"<offset> <text>", "Write text to a 24Cxx EEPROM", (*session).eepromWrite},
		"slave-queue":  {"<byte>...", "Queue reply bytes in slave mode", (*session).slaveQueue},
		"slave-drain":  {"", "Show bytes received in slave mode", (*session).slaveDrain},
		"config":       {"", "Show the firmware configuration state", (*session).config},
		"estop":        {"", "Emergency stop: disable every bus", (*session).estop},
		"config-reset": {"", "Leave shutdown and drop every bus", (*session).configReset},
		"dict":         {"", "Print dictionary summary", (*session).dict},
		"raw":          {"", "Print raw dictionary data", (*session).raw},
	}
}

func (s *session) run(name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", name)
	}
	return cmd.run(s, args)
}

func (s *session) help([]string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nAvailable commands:")
	for _, name := range names {
		c := commands[name]
		fmt.Printf("  %-32s - %s\n", name+" "+c.usage, c.help)
	}
	fmt.Printf("  %-32s - %s\n\n", "quit/exit/q", "Exit the program")
	return nil
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, errUsage)
	}
	return v, nil
}

func parseAddr(s string) (uint8, error) {
	v, err := parseUint(s, 8)
	if err != nil || v > 0x7F {
		return 0, fmt.Errorf("address %q: %w", s, errUsage)
	}
	return uint8(v), nil
}

func parseBytes(args []string) ([]byte, error) {
	out := make([]byte, len(args))
	for i, a := range args {
		v, err := parseUint(a, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

func (s *session) selectModule(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	v, err := parseUint(args[0], 8)
	if err != nil {
		return err
	}
	s.module = core.I2CModule(v)
	return nil
}

func (s *session) scan(args []string) error {
	max := core.ReadMax
	if len(args) > 0 {
		v, err := parseUint(args[0], 8)
		if err != nil {
			return err
		}
		max = int(v)
	}
	res, err := s.client.Scan(s.module, max)
	if err != nil {
		return err
	}
	for _, addr := range res.Devices {
		fmt.Printf("  %#02x\n", addr)
	}
	fmt.Printf("%d device(s)", len(res.Devices))
	if res.Overflow > 0 {
		fmt.Printf(", %d more not listed", res.Overflow)
	}
	fmt.Println()
	return nil
}

func (s *session) probe(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	ok, err := s.client.Probe(s.module, addr)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("%#02x: present\n", addr)
	} else {
		fmt.Printf("%#02x: no response\n", addr)
	}
	return nil
}

func (s *session) write(args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	data, err := parseBytes(args[1:])
	if err != nil {
		return err
	}
	return s.client.Write(s.module, addr, data)
}

func (s *session) read(args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	n, err := parseUint(args[1], 16)
	if err != nil {
		return err
	}
	reg, err := parseBytes(args[2:])
	if err != nil {
		return err
	}
	data, err := s.client.Read(s.module, addr, reg, int(n))
	if err != nil {
		return err
	}
	fmt.Print(hex.Dump(data))
	return nil
}

func (s *session) regRead(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	n := "1"
	if len(args) == 3 {
		n = args[2]
	}
	return s.read([]string{args[0], n, args[1]})
}

func (s *session) regWrite(args []string) error {
	if len(args) < 3 {
		return errUsage
	}
	return s.write(args)
}

func (s *session) status([]string) error {
	st, err := s.client.Status(s.module)
	if err != nil {
		return err
	}
	fmt.Printf("i2c%d: %s, %d Hz, state %s", st.Module, st.Mode, st.Speed, st.State)
	if st.Busy {
		fmt.Print(" (bracket open)")
	}
	fmt.Println()
	if st.Mode != core.I2CModeMaster {
		fmt.Printf("  own address %#x\n", st.Address)
	}
	fmt.Printf("  timeout %d ms, BRG %d, CON %#04x, STAT %#04x\n",
		st.TimeoutMs, st.BRG, st.Control, st.Status)
	return nil
}

func (s *session) clear([]string) error {
	return s.client.ClearErrors(s.module)
}

func (s *session) reset([]string) error {
	return s.client.ResetBus(s.module)
}

func (s *session) timeout(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ms, err := parseUint(args[0], 16)
	if err != nil {
		return err
	}
	return s.client.SetTimeout(s.module, uint16(ms))
}

func (s *session) rtc(args []string) error {
	dev := ds3231.New(s.client.Bus(s.module))

	if len(args) > 0 {
		t := time.Now().UTC()
		if args[0] != "now" {
			var err error
			if t, err = time.Parse(time.RFC3339, args[0]); err != nil {
				return err
			}
		}
		if err := dev.SetTime(t); err != nil {
			return err
		}
	}

	t, err := dev.ReadTime()
	if err != nil {
		return err
	}
	temp, err := dev.ReadTemperature()
	if err != nil {
		return err
	}
	fmt.Printf("%s  %.2f C  running=%v\n", t.Format(time.RFC3339), float64(temp)/1000, dev.IsRunning())
	return nil
}

func (s *session) eeprom() *at24cx.Device {
	dev := at24cx.New(s.client.Bus(s.module))
	dev.Configure(at24cx.Config{})
	return &dev
}

func (s *session) eepromRead(args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	off, err := parseUint(args[0], 16)
	if err != nil {
		return err
	}
	n, err := parseUint(args[1], 16)
	if err != nil {
		return err
	}
	buf := make([]byte, n)
	if _, err := s.eeprom().ReadAt(buf, int64(off)); err != nil {
		return err
	}
	fmt.Print(hex.Dump(buf))
	return nil
}

func (s *session) eepromWrite(args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	off, err := parseUint(args[0], 16)
	if err != nil {
		return err
	}
	n, err := s.eeprom().WriteAt([]byte(args[1]), int64(off))
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d bytes at %#04x\n", n, off)
	return nil
}

func (s *session) slaveQueue(args []string) error {
	data, err := parseBytes(args)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errUsage
	}
	return s.client.SlaveQueue(s.module, data)
}

func (s *session) slaveDrain([]string) error {
	sd, err := s.client.SlaveDrain(s.module)
	if err != nil {
		return err
	}
	fmt.Printf("%d start(s), %d stop(s), %d byte(s)\n", sd.Starts, sd.Stops, len(sd.Data))
	if len(sd.Data) > 0 {
		fmt.Print(hex.Dump(sd.Data))
	}
	return nil
}

func (s *session) config([]string) error {
	fc, err := s.client.GetConfig()
	if err != nil {
		return err
	}
	fmt.Printf("configured=%v crc=%#08x shutdown=%v buses=%d\n",
		fc.Configured, fc.CRC, fc.Shutdown, fc.Buses)
	return nil
}

func (s *session) estop([]string) error {
	return s.client.EmergencyStop()
}

func (s *session) configReset([]string) error {
	return s.client.ConfigReset()
}

func (s *session) dict([]string) error {
	d := s.client.Dictionary()
	fmt.Printf("Version: %s\n", d.Version)
	fmt.Printf("Build: %s\n", d.BuildVersions)

	printSection := func(title string, m map[string]int) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return m[keys[i]] < m[keys[j]] })
		fmt.Printf("\n%s (%d):\n", title, len(keys))
		for _, k := range keys {
			fmt.Printf("  %3d: %s\n", m[k], k)
		}
	}
	printSection("Commands", d.Commands)
	printSection("Responses", d.Responses)

	fmt.Printf("\nConstants (%d):\n", len(d.Config))
	for k, v := range d.Config {
		fmt.Printf("  %s = %v\n", k, v)
	}
	fmt.Println()
	return nil
}

func (s *session) raw([]string) error {
	raw := s.client.RawDictionary()
	fmt.Printf("Raw dictionary data (%d bytes):\n%s\n", len(raw), raw)
	return nil
}

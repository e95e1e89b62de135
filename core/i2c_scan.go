package core

// CheckDevice reports whether addr acknowledges a write-direction
// address byte. The bracket is always closed.
func (b *I2CBus) CheckDevice(addr uint8) bool {
	if !b.Start() {
		return false
	}
	ok := b.WriteByte(addr<<1 | DirWrite)
	b.Stop()
	return ok
}

// ScanBus probes addresses 0x01 through 0x7E and stores responders in
// out, up to max entries (or len(out) if smaller). It reports whether
// any device answered. Responders that do not fit are handled per the
// configured ScanOverflow policy; see LastScanOverflow.
func (b *I2CBus) ScanBus(out []uint8, max int) bool {
	stored, extra := b.scan(out, max)
	return stored+extra > 0
}

// LastScanOverflow returns how many responders the last scan could not
// store. It is always zero under ScanOverflowDrop.
func (b *I2CBus) LastScanOverflow() int {
	return b.scanOverflow
}

// ScanResult is the outcome of ScanDevices.
type ScanResult struct {
	Devices  []uint8
	Overflow int // responders beyond max; zero under ScanOverflowDrop
}

// ScanDevices scans the bus and returns at most max responders.
func (b *I2CBus) ScanDevices(max int) ScanResult {
	if max < 0 {
		max = 0
	}
	out := make([]uint8, max)
	stored, _ := b.scan(out, max)
	return ScanResult{Devices: out[:stored], Overflow: b.scanOverflow}
}

func (b *I2CBus) scan(out []uint8, max int) (stored, extra int) {
	if max > len(out) {
		max = len(out)
	}
	for addr := ScanFirst; addr <= ScanLast; addr++ {
		if !b.CheckDevice(addr) {
			continue
		}
		if stored < max {
			out[stored] = addr
			stored++
		} else {
			extra++
		}
	}

	b.scanOverflow = 0
	if b.cfg.ScanOverflow == ScanOverflowCount {
		b.scanOverflow = extra
	}
	// Absent devices are not errors.
	if !b.busy {
		b.state = I2CStateIdle
	}
	b.log.Debug("scan complete", "found", stored+extra, "stored", stored)
	return stored, extra
}

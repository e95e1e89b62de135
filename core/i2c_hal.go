package core

// I2CRegisters is the register set of one two-wire adapter.
// Platform code maps it onto memory-mapped registers (targets/mmio)
// or a simulated register file (sim). Bit positions follow the
// I2CxCON / I2CxSTAT layout below.
type I2CRegisters interface {
	// Control returns the control register.
	Control() uint16
	// SetControl replaces the control register. Setting one of the
	// condition bits (SEN, RSEN, PEN, RCEN, ACKEN) starts that condition;
	// hardware clears the bit when the condition completes.
	SetControl(v uint16)

	// Status returns the status register.
	Status() uint16
	// ClearStatus clears the latched error bits in mask. S, P and the
	// other read-only bits are ignored.
	ClearStatus(mask uint16)

	Address() uint16
	SetAddress(v uint16)
	Mask() uint16
	SetMask(v uint16)
	BaudRate() uint16
	SetBaudRate(v uint16)

	// Transmit loads the transmit register. In master mode this starts
	// a byte transfer; in slave mode it queues the reply byte.
	Transmit(b byte)
	// Receive returns the receive register and clears RBF.
	Receive() byte

	// InterruptFlag reports the adapter's pending interrupt flag.
	InterruptFlag() bool
	ClearInterruptFlag()
	// SetInterruptFlag pends the adapter interrupt from software.
	SetInterruptFlag()
	EnableInterrupt(enable bool)
}

// Control register bits (I2CxCON)
const (
	ConSEN     uint16 = 1 << 0  // START condition enable
	ConRSEN    uint16 = 1 << 1  // repeated START condition enable
	ConPEN     uint16 = 1 << 2  // STOP condition enable
	ConRCEN    uint16 = 1 << 3  // receive enable
	ConACKEN   uint16 = 1 << 4  // acknowledge sequence enable
	ConACKDT   uint16 = 1 << 5  // acknowledge data bit (1 = NACK)
	ConSTREN   uint16 = 1 << 6  // clock stretch enable
	ConGCEN    uint16 = 1 << 7  // general call enable
	ConSMEN    uint16 = 1 << 8  // SMBus input levels
	ConDISSLW  uint16 = 1 << 9  // disable slew rate control
	ConA10M    uint16 = 1 << 10 // 10-bit slave address
	ConIPMIEN  uint16 = 1 << 11
	ConSCLREL  uint16 = 1 << 12 // release SCL clock (slave)
	ConI2CSIDL uint16 = 1 << 13
	ConI2CEN   uint16 = 1 << 15 // module enable

	// ConConditionMask covers the bits hardware clears when a condition completes.
	ConConditionMask = ConSEN | ConRSEN | ConPEN | ConRCEN | ConACKEN
)

// Status register bits (I2CxSTAT)
const (
	StatTBF     uint16 = 1 << 0 // transmit buffer full
	StatRBF     uint16 = 1 << 1 // receive buffer full
	StatRW      uint16 = 1 << 2 // read/write information (slave: 1 = master reads)
	StatS       uint16 = 1 << 3 // START detected
	StatP       uint16 = 1 << 4 // STOP detected
	StatDA      uint16 = 1 << 5 // last byte was data (0 = address)
	StatI2COV   uint16 = 1 << 6 // receive overflow
	StatIWCOL   uint16 = 1 << 7 // write collision
	StatADD10   uint16 = 1 << 8
	StatGCSTAT  uint16 = 1 << 9  // general call address received
	StatBCL     uint16 = 1 << 10 // master bus collision (arbitration lost)
	StatTRSTAT  uint16 = 1 << 14 // master transmit in progress
	StatACKSTAT uint16 = 1 << 15 // NACK received from slave

	// StatErrorMask covers the latched error indicators ClearErrors resets.
	StatErrorMask = StatI2COV | StatIWCOL | StatBCL
)

// Address byte helpers
const (
	DirWrite byte = 0x00
	DirRead  byte = 0x01
)

// Reserved and special addresses
const (
	AddrGeneralCall byte = 0x00
	AddrStartByte   byte = 0x01
	AddrCBUS        byte = 0x02
	AddrReserved    byte = 0x04
	AddrHSModeCode  byte = 0x05

	// ScanFirst and ScanLast bound the addresses probed by ScanBus.
	ScanFirst byte = 0x01
	ScanLast  byte = 0x7E
)

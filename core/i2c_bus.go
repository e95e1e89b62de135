package core

import (
	"log/slog"
	"sort"
)

// I2CBus is one physical adapter: its configuration, sideband state,
// busy token, callback and register set. Obtain it from Controller.Init
// and pass it to every operation.
//
// Master primitives run from the foreground only; HandleInterrupt runs
// from the adapter's interrupt only. The busy flag is cooperative and
// protects callers that go through the bus methods.
type I2CBus struct {
	module I2CModule
	regs   I2CRegisters
	cfg    I2CConfig
	fcy    uint32

	state    I2CState
	busy     bool
	callback I2CCallback
	// active is set between a dispatched START and its STOP.
	active bool

	scanOverflow int

	log *slog.Logger
}

// Controller owns the bus instances of one system, indexed by module.
type Controller struct {
	fcy   uint32
	ports map[I2CModule]I2CRegisters
	buses map[I2CModule]*I2CBus
	log   *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithFcy sets the instruction clock used for baud-rate calculation.
func WithFcy(fcy uint32) ControllerOption {
	return func(c *Controller) { c.fcy = fcy }
}

// WithLogger sets the logger used by the controller and its buses.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.log = l }
}

// NewController builds a controller over the given register sets. A
// module without a register set cannot be initialised.
func NewController(ports map[I2CModule]I2CRegisters, opts ...ControllerOption) *Controller {
	c := &Controller{
		fcy:   DefaultFcy,
		ports: make(map[I2CModule]I2CRegisters, len(ports)),
		buses: make(map[I2CModule]*I2CBus, len(ports)),
	}
	for m, r := range ports {
		c.ports[m] = r
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = componentLogger(c.log, ComponentBus)
	return c
}

// Init configures the adapter named by cfg.Module and returns its bus.
// A nil cfg is a no-op. Re-initialising a module reuses its instance and
// clears busy and state, which is the recovery path after a timeout.
func (c *Controller) Init(cfg *I2CConfig) (*I2CBus, error) {
	if cfg == nil {
		return nil, ErrInvalidArgument
	}
	regs, ok := c.ports[cfg.Module]
	if !ok {
		return nil, ErrNotConfigured
	}

	bus := c.buses[cfg.Module]
	if bus == nil {
		bus = &I2CBus{
			module: cfg.Module,
			regs:   regs,
			log:    c.log.With("module", int(cfg.Module)),
		}
		c.buses[cfg.Module] = bus
	}
	bus.fcy = c.fcy
	bus.configure(*cfg)
	return bus, nil
}

// Bus returns the initialised bus for module.
func (c *Controller) Bus(module I2CModule) (*I2CBus, bool) {
	bus, ok := c.buses[module]
	return bus, ok
}

// Modules lists the modules that have a register set, in order.
func (c *Controller) Modules() []I2CModule {
	mods := make([]I2CModule, 0, len(c.ports))
	for m := range c.ports {
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i] < mods[j] })
	return mods
}

// Deinit disables the adapter and drops its instance.
func (c *Controller) Deinit(module I2CModule) {
	bus, ok := c.buses[module]
	if !ok {
		return
	}
	bus.shutdown()
	delete(c.buses, module)
}

// DeinitAll disables every initialised adapter.
func (c *Controller) DeinitAll() {
	for m := range c.buses {
		c.Deinit(m)
	}
}

// Reset disables module and reprograms it with its current
// configuration. The instance is kept, so existing handles stay valid.
func (c *Controller) Reset(module I2CModule) (*I2CBus, error) {
	bus, ok := c.buses[module]
	if !ok {
		return nil, ErrNotConfigured
	}
	bus.shutdown()
	bus.fcy = c.fcy
	bus.configure(bus.cfg)
	return bus, nil
}

func (b *I2CBus) configure(cfg I2CConfig) {
	b.cfg = cfg

	// Disable while reprogramming.
	b.regs.SetControl(0)
	b.regs.SetBaudRate(CalculateBRG(b.fcy, cfg.Speed))
	if cfg.Mode != I2CModeMaster {
		b.regs.SetAddress(cfg.slaveAddress())
		b.regs.SetMask(0)
	}
	b.regs.SetControl(cfg.controlBits())

	if cfg.Interrupts {
		b.regs.ClearInterruptFlag()
		b.regs.EnableInterrupt(true)
	}

	b.state = I2CStateIdle
	b.busy = false
	b.active = false
	b.scanOverflow = 0
	b.SetCallback(cfg.Callback)

	b.log.Debug("bus configured", "config", cfg)
}

func (b *I2CBus) shutdown() {
	b.regs.SetControl(0)
	b.regs.EnableInterrupt(false)
	b.state = I2CStateIdle
	b.busy = false
	b.log.Debug("bus disabled")
}

// Module returns the adapter identity.
func (b *I2CBus) Module() I2CModule { return b.module }

// Config returns a copy of the current configuration.
func (b *I2CBus) Config() I2CConfig { return b.cfg }

// Registers returns the adapter's register set.
func (b *I2CBus) Registers() I2CRegisters { return b.regs }

// LastError returns the sideband state of the last operation.
func (b *I2CBus) LastError() I2CState { return b.state }

// Err returns LastError as an error value, or nil.
func (b *I2CBus) Err() error { return b.state.Err() }

// IsBusy reports whether a transaction bracket is open.
func (b *I2CBus) IsBusy() bool { return b.busy }

// ClearErrors resets the state to idle and clears the latched error
// bits. It does not close an open bracket: after a timeout the bus
// stays busy until it is re-initialised.
func (b *I2CBus) ClearErrors() {
	b.state = I2CStateIdle
	b.regs.ClearStatus(StatErrorMask)
}

// SetTimeout replaces the condition-wait budget.
func (b *I2CBus) SetTimeout(ms uint16) {
	b.cfg.TimeoutMs = ms
}

// SetSlaveAddress changes the own address used in slave modes.
func (b *I2CBus) SetSlaveAddress(addr uint16) {
	b.cfg.Address = addr
	b.regs.SetAddress(b.cfg.slaveAddress())
}

// EnableGeneralCall turns recognition of address 0 on or off.
func (b *I2CBus) EnableGeneralCall(enable bool) {
	b.cfg.GeneralCall = enable
	con := b.regs.Control()
	if enable {
		con |= ConGCEN
	} else {
		con &^= ConGCEN
	}
	b.regs.SetControl(con)
}

// SetCallback installs the slave event callback; nil removes it.
func (b *I2CBus) SetCallback(cb I2CCallback) {
	state := disableInterrupts()
	b.callback = cb
	b.cfg.Callback = cb
	restoreInterrupts(state)
}

// EnableInterrupts turns the adapter interrupt on or off.
func (b *I2CBus) EnableInterrupts(enable bool) {
	b.cfg.Interrupts = enable
	if enable {
		b.regs.ClearInterruptFlag()
	}
	b.regs.EnableInterrupt(enable)
}

// Enable sets the module enable bit.
func (b *I2CBus) Enable() {
	b.regs.SetControl(b.regs.Control() | ConI2CEN)
}

// Disable clears the module enable bit.
func (b *I2CBus) Disable() {
	b.regs.SetControl(b.regs.Control() &^ ConI2CEN)
}

// I2CStatus is a snapshot of a bus for diagnostics.
type I2CStatus struct {
	Module    I2CModule
	Mode      I2CMode
	Speed     I2CSpeed
	Address   uint16
	TimeoutMs uint16
	BRG       uint16
	State     I2CState
	Busy      bool
	Control   uint16
	Status    uint16
}

// Status returns a snapshot of the bus configuration and registers.
func (b *I2CBus) Status() I2CStatus {
	return I2CStatus{
		Module:    b.module,
		Mode:      b.cfg.Mode,
		Speed:     b.cfg.Speed,
		Address:   b.cfg.Address,
		TimeoutMs: b.cfg.TimeoutMs,
		BRG:       b.regs.BaudRate(),
		State:     b.state,
		Busy:      b.busy,
		Control:   b.regs.Control(),
		Status:    b.regs.Status(),
	}
}

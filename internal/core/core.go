package core

import (
	"fmt"
	"log"
)

// Core is the node's control core. One scheduler owns an instance and calls
// Tick at a fixed minimum cadence; commands are applied between ticks.
// Not safe for concurrent use; callers serialize Tick and Apply.
type Core struct {
	cfg   Config
	ports Ports
	log   *log.Logger

	arb Arbitration
	rep reporter
	ctl controller

	heating    bool
	fault      bool
	activity   bool
	halted     bool
	haltReason string
}

// New creates a core in its initial state. A nil logger means log.Default().
func New(cfg Config, ports Ports, logger *log.Logger) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("core config: %w", err)
	}
	if ports.Sensor == nil || ports.Actuator == nil || ports.Telemetry == nil || ports.Fault == nil {
		return nil, fmt.Errorf("core: sensor, actuator, telemetry and fault ports are required")
	}
	if logger == nil {
		logger = log.Default()
	}
	c := &Core{cfg: cfg, ports: ports, log: logger}
	c.Reset()
	return c, nil
}

// Reset returns every piece of control and report state to its defaults and
// drives the heater off. It is the only supported abort.
func (c *Core) Reset() {
	c.arb = newArbitration(c.cfg)
	c.rep = reporter{}
	c.ctl = newController(c.cfg)
	c.halted = false
	c.haltReason = ""
	c.drive(DriveOff)
	c.setFault(false)
	c.setActivity(false)
}

// Tick advances the reporting machine and the control machine by at most one
// step each. It never blocks beyond a single sensor read and a single send
// per machine.
func (c *Core) Tick(now Tick) {
	if c.halted {
		return
	}
	c.rep.step(&c.arb, c.ports.Telemetry)
	c.stepControl(now)
}

// Apply applies an inbound command. Invalid commands are rejected with an
// error and change nothing.
func (c *Core) Apply(cmd Command) error {
	if c.halted {
		return ErrHalted
	}
	return c.arb.Apply(cmd)
}

// Halt parks the core permanently: heater off, fault indicator on, ticks and
// commands ignored. Used for unrecoverable initialization failures.
func (c *Core) Halt(reason string) {
	c.drive(DriveOff)
	c.setActivity(false)
	c.setFault(true)
	c.halted = true
	c.haltReason = reason
	c.log.Printf("core: halted: %s", reason)
}

// Status is a point-in-time view of the core.
// It is a value type and stays valid after the next Tick.
type Status struct {
	Arbitration  ArbitrationState
	ReportNeeded bool
	ReportState  ReportState
	ControlState ControlState
	Reading      Reading
	HaveReading  bool
	Temperature  ReportRecord
	Humidity     ReportRecord
	Heating      bool
	Fault        bool
	Activity     bool
	Halted       bool
	HaltReason   string
	Capabilities Capabilities
}

// Status returns the current state of the core.
func (c *Core) Status() Status {
	return Status{
		Arbitration:  c.arb.State(),
		ReportNeeded: c.arb.ReportNeeded(),
		ReportState:  c.rep.state,
		ControlState: c.ctl.state,
		Reading:      c.ctl.reading,
		HaveReading:  c.ctl.haveReading,
		Temperature:  c.ctl.temperature.Record(),
		Humidity:     c.ctl.humidity.Record(),
		Heating:      c.heating,
		Fault:        c.fault,
		Activity:     c.activity,
		Halted:       c.halted,
		HaltReason:   c.haltReason,
		Capabilities: c.cfg.Capabilities,
	}
}

func (c *Core) drive(d Drive) {
	c.ports.Actuator.Drive(d)
	c.heating = d == DriveHeating
}

func (c *Core) setFault(on bool) {
	c.fault = on
	c.ports.Fault.Set(on)
}

func (c *Core) setActivity(on bool) {
	c.activity = on
	if c.ports.Activity != nil {
		c.ports.Activity.Set(on)
	}
}

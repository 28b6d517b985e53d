package core

import (
	"fmt"
	"math"
)

// ArbitrationState is the control state set by remote commands. Values of an
// inactive surface are retained but unused.
type ArbitrationState struct {
	Mode              Mode
	OnOffHeating      bool
	ThermostatHeating bool
	ThermostatTarget  float64
	TemperatureOffset float64
}

// Arbitration applies commands last-writer-wins and tracks whether the
// reporting cycle must run.
type Arbitration struct {
	cfg          Config
	state        ArbitrationState
	reportNeeded bool
	// changes counts report-flagging events so a cycle can tell whether
	// something changed after it started.
	changes uint32
}

func newArbitration(cfg Config) Arbitration {
	return Arbitration{
		cfg: cfg,
		state: ArbitrationState{
			Mode:             ModeNone,
			ThermostatTarget: clamp(cfg.DefaultTarget, cfg.ClampMin, cfg.ClampMax),
		},
		// Announce the full status once after start; the announcement is
		// the first event.
		reportNeeded: true,
		changes:      1,
	}
}

// State returns a copy of the current arbitration state.
func (a *Arbitration) State() ArbitrationState {
	return a.state
}

// ReportNeeded reports whether a status report cycle is pending.
func (a *Arbitration) ReportNeeded() bool {
	return a.reportNeeded
}

func (a *Arbitration) flag() {
	a.reportNeeded = true
	a.changes++
}

// clear resets ReportNeeded unless an event arrived after the cycle that
// observed generation started. Returns true if the flag was cleared.
func (a *Arbitration) clear(generation uint32) bool {
	if a.changes != generation {
		return false
	}
	a.reportNeeded = false
	return true
}

// ApplyOnOff makes the on/off surface authoritative.
func (a *Arbitration) ApplyOnOff(on bool) error {
	if a.cfg.Capabilities == ThermostatOnly {
		return fmt.Errorf("%w: no on/off surface", ErrUnsupportedCommand)
	}
	a.state.Mode = ModeOnOff
	a.state.OnOffHeating = on
	a.flag()
	return nil
}

// ApplyThermostatMode makes the thermostat authoritative and engages or
// disengages it.
func (a *Arbitration) ApplyThermostatMode(on bool) error {
	a.state.Mode = ModeThermostat
	a.state.ThermostatHeating = on
	a.flag()
	return nil
}

// ApplyThermostatTarget makes the thermostat authoritative and sets its
// target according to the configured setpoint policy.
func (a *Arbitration) ApplyThermostatTarget(target float64) error {
	if math.IsNaN(target) {
		return fmt.Errorf("%w: NaN", ErrSetpointOutOfRange)
	}
	switch a.cfg.SetpointPolicy {
	case PolicyReject:
		if target < a.cfg.RejectMin || target > a.cfg.RejectMax {
			return fmt.Errorf("%w: %v not in [%v,%v]", ErrSetpointOutOfRange, target, a.cfg.RejectMin, a.cfg.RejectMax)
		}
	default:
		target = clamp(target, a.cfg.ClampMin, a.cfg.ClampMax)
	}
	a.state.Mode = ModeThermostat
	a.state.ThermostatTarget = target
	a.flag()
	return nil
}

// ApplyTemperatureOffset sets the calibration offset added to each reading.
// It changes neither the mode nor the report flag.
func (a *Arbitration) ApplyTemperatureOffset(offset float64) error {
	if math.IsNaN(offset) || math.Abs(offset) > a.cfg.MaxOffset {
		return fmt.Errorf("%w: %v", ErrOffsetOutOfRange, offset)
	}
	a.state.TemperatureOffset = offset
	return nil
}

// Apply dispatches a decoded command. Rejected commands leave the state
// untouched.
func (a *Arbitration) Apply(cmd Command) error {
	switch {
	case cmd.Surface == SurfaceOnOff && cmd.Kind == CommandStatus:
		return a.ApplyOnOff(cmd.On)
	case cmd.Surface == SurfaceThermostat && cmd.Kind == CommandFlowState:
		return a.ApplyThermostatMode(cmd.On)
	case cmd.Surface == SurfaceThermostat && cmd.Kind == CommandSetpoint:
		return a.ApplyThermostatTarget(cmd.Value)
	case cmd.Surface == SurfaceThermostat && cmd.Kind == CommandOffset:
		return a.ApplyTemperatureOffset(cmd.Value)
	}
	return fmt.Errorf("%w: %s on %s surface", ErrUnsupportedCommand, cmd.Kind, cmd.Surface)
}

package core

import (
	"errors"
	"fmt"
)

// Capabilities selects which remote-control surfaces the node exposes.
type Capabilities int

const (
	// DualSurface exposes both the on/off switch and the thermostat.
	DualSurface Capabilities = iota
	// ThermostatOnly exposes the thermostat surface alone.
	ThermostatOnly
)

func (c Capabilities) String() string {
	if c == ThermostatOnly {
		return "thermostat"
	}
	return "dual"
}

// SetpointPolicy decides what happens to out-of-range thermostat targets.
type SetpointPolicy int

const (
	// PolicyClamp clamps the target into [ClampMin, ClampMax].
	PolicyClamp SetpointPolicy = iota
	// PolicyReject drops targets outside [RejectMin, RejectMax].
	PolicyReject
)

func (p SetpointPolicy) String() string {
	if p == PolicyReject {
		return "reject"
	}
	return "clamp"
}

// Config holds the tunables of the control core. Intervals are in ticks.
type Config struct {
	Capabilities   Capabilities
	SetpointPolicy SetpointPolicy

	ClampMin  float64
	ClampMax  float64
	RejectMin float64
	RejectMax float64

	DefaultTarget float64
	MaxOffset     float64

	TemperatureThreshold float64
	HumidityThreshold    float64

	ReportInterval Tick // minimum spacing of debounced reports
	HeatDwell      Tick // minimum heating burst in thermostat mode
	ErrorBackoff   Tick // wait before retrying a failed sensor read
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		Capabilities:         DualSurface,
		SetpointPolicy:       PolicyClamp,
		ClampMin:             0,
		ClampMax:             35,
		RejectMin:            0,
		RejectMax:            40,
		DefaultTarget:        19.0,
		MaxOffset:            5,
		TemperatureThreshold: 0.1,
		HumidityThreshold:    0.5,
		ReportInterval:       30_000,
		HeatDwell:            60_000,
		ErrorBackoff:         10_000,
	}
}

// Validate checks the config for internal consistency.
func (c Config) Validate() error {
	var errs []error
	if c.Capabilities != DualSurface && c.Capabilities != ThermostatOnly {
		errs = append(errs, fmt.Errorf("unknown capabilities %d", c.Capabilities))
	}
	if c.SetpointPolicy != PolicyClamp && c.SetpointPolicy != PolicyReject {
		errs = append(errs, fmt.Errorf("unknown setpoint policy %d", c.SetpointPolicy))
	}
	if c.ClampMin > c.ClampMax {
		errs = append(errs, fmt.Errorf("clamp range [%v,%v] is inverted", c.ClampMin, c.ClampMax))
	}
	if c.RejectMin > c.RejectMax {
		errs = append(errs, fmt.Errorf("reject range [%v,%v] is inverted", c.RejectMin, c.RejectMax))
	}
	if c.MaxOffset < 0 {
		errs = append(errs, fmt.Errorf("max offset %v is negative", c.MaxOffset))
	}
	if c.TemperatureThreshold < 0 || c.HumidityThreshold < 0 {
		errs = append(errs, errors.New("report thresholds must not be negative"))
	}
	if c.ReportInterval == 0 || c.HeatDwell == 0 || c.ErrorBackoff == 0 {
		errs = append(errs, errors.New("intervals must be positive"))
	}
	return errors.Join(errs...)
}

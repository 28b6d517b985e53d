// Package core contains the control core of the heater node: remote-control
// arbitration, telemetry debouncing and the two cooperative state machines
// that are stepped once per tick.
// This package has NO external dependencies (no GPIO, MQTT, OS, or sleeping).
// Time is always injected as a Tick.
package core

import (
	"errors"
	"math"
)

// Tick is a monotonic millisecond counter. It wraps at 2^32; elapsed time
// must always be computed with Sub.
type Tick uint32

// Sub returns the number of ticks elapsed since start. Correct across a
// single wraparound of the counter.
func (t Tick) Sub(start Tick) Tick {
	return t - start
}

// Mode is the remote-control surface currently governing the heater.
type Mode int

const (
	ModeNone Mode = iota
	ModeOnOff
	ModeThermostat
)

func (m Mode) String() string {
	switch m {
	case ModeOnOff:
		return "onoff"
	case ModeThermostat:
		return "thermostat"
	default:
		return "none"
	}
}

// MarshalText renders the mode for JSON and YAML encoders.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Surface identifies one of the remote-control input channels.
type Surface int

const (
	SurfaceOnOff Surface = iota
	SurfaceThermostat
)

func (s Surface) String() string {
	switch s {
	case SurfaceOnOff:
		return "onoff"
	case SurfaceThermostat:
		return "thermostat"
	default:
		return "unknown"
	}
}

// CommandKind is the kind of an inbound control command.
type CommandKind int

const (
	// CommandStatus switches the on/off surface (payload: On).
	CommandStatus CommandKind = iota
	// CommandFlowState engages or disengages the thermostat (payload: On).
	CommandFlowState
	// CommandSetpoint sets the thermostat target in degrees (payload: Value).
	CommandSetpoint
	// CommandOffset sets the temperature calibration offset (payload: Value).
	CommandOffset
)

func (k CommandKind) String() string {
	switch k {
	case CommandStatus:
		return "status"
	case CommandFlowState:
		return "flow_state"
	case CommandSetpoint:
		return "setpoint"
	case CommandOffset:
		return "offset"
	default:
		return "unknown"
	}
}

// Command is an inbound control command, already decoded by the transport.
type Command struct {
	Surface Surface
	Kind    CommandKind
	On      bool
	Value   float64
}

// Thermostat flow states as carried on the wire.
const (
	FlowHeatOn         = "HeatOn"
	FlowOff            = "Off"
	FlowAutoChangeOver = "AutoChangeOver"
	FlowCoolOn         = "CoolOn"
)

// FlowEngaged reports whether a thermostat flow state means "heating engaged".
// Only HeatOn and AutoChangeOver engage; every other value disengages.
func FlowEngaged(flow string) bool {
	return flow == FlowHeatOn || flow == FlowAutoChangeOver
}

// FlowState is the outbound flow state for the given engagement.
func FlowState(engaged bool) string {
	if engaged {
		return FlowHeatOn
	}
	return FlowOff
}

// Metric identifies an outbound telemetry value.
type Metric int

const (
	MetricStatus Metric = iota
	MetricFlowState
	MetricSetpoint
	MetricTemperature
	MetricHumidity
)

func (m Metric) String() string {
	switch m {
	case MetricStatus:
		return "status"
	case MetricFlowState:
		return "flow_state"
	case MetricSetpoint:
		return "setpoint"
	case MetricTemperature:
		return "temperature"
	case MetricHumidity:
		return "humidity"
	default:
		return "unknown"
	}
}

// Report is a single outbound telemetry message.
type Report struct {
	Metric Metric
	On     bool    // MetricStatus, MetricFlowState
	Value  float64 // MetricSetpoint, MetricTemperature, MetricHumidity
}

// Drive is the logical heater drive signal.
type Drive int

const (
	DriveOff Drive = iota
	DriveHeating
)

func (d Drive) String() string {
	if d == DriveHeating {
		return "HEATING"
	}
	return "OFF"
}

// Reading is one temperature/humidity sample. Humidity is in percent; unit
// normalization is the sensor adapter's job.
type Reading struct {
	Temperature float64
	Humidity    float64
}

// Sensor reads the temperature/humidity transducer. Read is synchronous and
// must return within bounded time.
type Sensor interface {
	Read() (Reading, error)
}

// Actuator drives the heating element. Drive is fire-and-forget and
// idempotent.
type Actuator interface {
	Drive(d Drive)
}

// Telemetry sends reports. Send returns true when the message was accepted
// for transmission; it never blocks indefinitely.
type Telemetry interface {
	Send(r Report) bool
}

// Indicator is a binary visual or alarm signal.
type Indicator interface {
	Set(on bool)
}

// Ports bundles the external collaborators of the core. Activity is optional.
type Ports struct {
	Sensor    Sensor
	Actuator  Actuator
	Telemetry Telemetry
	Fault     Indicator
	Activity  Indicator
}

var (
	// ErrUnsupportedCommand is returned for commands this node cannot handle.
	ErrUnsupportedCommand = errors.New("unsupported command")
	// ErrSetpointOutOfRange is returned by the reject policy.
	ErrSetpointOutOfRange = errors.New("setpoint out of range")
	// ErrOffsetOutOfRange is returned for calibration offsets above the limit.
	ErrOffsetOutOfRange = errors.New("offset out of range")
	// ErrHalted is returned for commands received after a fatal fault.
	ErrHalted = errors.New("core halted")
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

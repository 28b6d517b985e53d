package core

// ControlState is a state of the sense-and-actuate machine.
type ControlState int

const (
	ControlRead ControlState = iota
	ControlReportTemperature
	ControlReportHumidity
	ControlDispatch
	ControlThermostat0
	ControlThermostat1
	ControlOnOff
	ControlNone
	ControlError0
	ControlError1
)

func (s ControlState) String() string {
	switch s {
	case ControlRead:
		return "read"
	case ControlReportTemperature:
		return "report_temperature"
	case ControlReportHumidity:
		return "report_humidity"
	case ControlDispatch:
		return "control"
	case ControlThermostat0:
		return "thermostat_0"
	case ControlThermostat1:
		return "thermostat_1"
	case ControlOnOff:
		return "onoff"
	case ControlNone:
		return "none"
	case ControlError0:
		return "error_0"
	case ControlError1:
		return "error_1"
	default:
		return "unknown"
	}
}

// controller holds what the control machine remembers between ticks.
type controller struct {
	state       ControlState
	entered     Tick
	reading     Reading
	haveReading bool
	temperature *Debouncer
	humidity    *Debouncer
}

func newController(cfg Config) controller {
	return controller{
		state:       ControlRead,
		temperature: NewDebouncer(cfg.TemperatureThreshold, cfg.ReportInterval),
		humidity:    NewDebouncer(cfg.HumidityThreshold, cfg.ReportInterval),
	}
}

// stepControl advances the control machine by exactly one state.
func (c *Core) stepControl(now Tick) {
	ctl := &c.ctl
	arb := c.arb.State()

	switch ctl.state {
	case ControlRead:
		c.setActivity(true)
		r, err := c.ports.Sensor.Read()
		if err != nil {
			c.log.Printf("core: sensor read failed: %v", err)
			ctl.state = ControlError0
			return
		}
		r.Temperature += arb.TemperatureOffset
		ctl.reading = r
		ctl.haveReading = true
		c.setFault(false)
		ctl.state = ControlReportTemperature

	case ControlReportTemperature:
		c.reportMeasured(ctl.temperature, MetricTemperature, ctl.reading.Temperature, now)
		ctl.state = ControlReportHumidity

	case ControlReportHumidity:
		c.reportMeasured(ctl.humidity, MetricHumidity, ctl.reading.Humidity, now)
		ctl.state = ControlDispatch

	case ControlDispatch:
		c.setActivity(false)
		switch arb.Mode {
		case ModeThermostat:
			ctl.state = ControlThermostat0
		case ModeOnOff:
			ctl.state = ControlOnOff
		default:
			ctl.state = ControlNone
		}

	case ControlThermostat0:
		if !arb.ThermostatHeating || ctl.reading.Temperature > arb.ThermostatTarget {
			c.drive(DriveOff)
			ctl.state = ControlRead
			return
		}
		c.drive(DriveHeating)
		ctl.entered = now
		ctl.state = ControlThermostat1

	case ControlThermostat1:
		// Minimum burst length; the heater stays on even if the target
		// is crossed meanwhile.
		if now.Sub(ctl.entered) < c.cfg.HeatDwell {
			return
		}
		ctl.state = ControlRead

	case ControlOnOff:
		if arb.OnOffHeating {
			c.drive(DriveHeating)
		} else {
			c.drive(DriveOff)
		}
		ctl.state = ControlRead

	case ControlNone:
		c.drive(DriveOff)
		ctl.state = ControlRead

	case ControlError0:
		c.drive(DriveOff)
		c.setActivity(false)
		c.setFault(true)
		ctl.entered = now
		ctl.state = ControlError1

	case ControlError1:
		if now.Sub(ctl.entered) < c.cfg.ErrorBackoff {
			return
		}
		ctl.state = ControlRead
	}
}

// reportMeasured sends a debounced metric. Each report event forces one send
// per metric, even if the status cycle has already cleared ReportNeeded. A
// failed send leaves the record untouched and never blocks progress.
func (c *Core) reportMeasured(d *Debouncer, m Metric, value float64, now Tick) {
	gen := c.arb.changes
	if !d.ShouldReport(value, now, d.Pending(gen)) {
		return
	}
	if c.ports.Telemetry.Send(Report{Metric: m, Value: value}) {
		d.Reported(value, now)
		d.Cover(gen)
	}
}

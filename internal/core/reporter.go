package core

// ReportState is a state of the status reporting machine.
type ReportState int

const (
	ReportIdle ReportState = iota
	ReportSendOnOff
	ReportSendFlow
	ReportSendTarget
	ReportClear
)

func (s ReportState) String() string {
	switch s {
	case ReportIdle:
		return "idle"
	case ReportSendOnOff:
		return "send_onoff"
	case ReportSendFlow:
		return "send_flow"
	case ReportSendTarget:
		return "send_target"
	case ReportClear:
		return "clear"
	default:
		return "unknown"
	}
}

// reporter pushes the three status facets in fixed order, one message per
// step, retrying a step until its send succeeds.
type reporter struct {
	state      ReportState
	generation uint32
}

func (r *reporter) step(arb *Arbitration, tel Telemetry) {
	st := arb.State()

	switch r.state {
	case ReportIdle:
		if !arb.ReportNeeded() {
			return
		}
		r.generation = arb.changes
		if arb.cfg.Capabilities == ThermostatOnly {
			r.state = ReportSendFlow
			return
		}
		r.state = ReportSendOnOff

	case ReportSendOnOff:
		if tel.Send(Report{Metric: MetricStatus, On: st.OnOffHeating}) {
			r.state = ReportSendFlow
		}

	case ReportSendFlow:
		if tel.Send(Report{Metric: MetricFlowState, On: st.ThermostatHeating}) {
			r.state = ReportSendTarget
		}

	case ReportSendTarget:
		if tel.Send(Report{Metric: MetricSetpoint, Value: st.ThermostatTarget}) {
			r.state = ReportClear
		}

	case ReportClear:
		// A command that landed mid-cycle keeps the flag set, so Idle
		// starts another full cycle on the next step.
		arb.clear(r.generation)
		r.state = ReportIdle
	}
}

// Package metrics exposes heater-node state as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/heater-node/internal/core"
)

// Metrics holds the node collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	sends           *prometheus.CounterVec
	commands        *prometheus.CounterVec
	commandsDropped *prometheus.CounterVec
	sensorFaults    prometheus.Counter
	heating         prometheus.Gauge
	fault           prometheus.Gauge
	temperature     prometheus.Gauge
	humidity        prometheus.Gauge
	setpoint        prometheus.Gauge
	mode            *prometheus.GaugeVec

	lastFault bool
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heater_node_sends_total",
			Help: "Outbound reports by metric and result.",
		}, []string{"metric", "result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heater_node_commands_total",
			Help: "Inbound commands applied to the core by result.",
		}, []string{"result"}),
		commandsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heater_node_commands_dropped_total",
			Help: "Inbound messages dropped before reaching the core, by reason.",
		}, []string{"reason"}),
		sensorFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heater_node_sensor_faults_total",
			Help: "Transitions into the sensor fault state.",
		}),
		heating: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heater_node_heating",
			Help: "1 while the heating element is driven.",
		}),
		fault: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heater_node_fault",
			Help: "1 while the fault indicator is raised.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heater_node_temperature_celsius",
			Help: "Last corrected temperature reading.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heater_node_humidity_percent",
			Help: "Last relative humidity reading.",
		}),
		setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heater_node_setpoint_celsius",
			Help: "Thermostat target temperature.",
		}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heater_node_mode",
			Help: "1 for the control surface currently governing the heater.",
		}, []string{"mode"}),
	}

	m.registry.MustRegister(
		m.sends,
		m.commands,
		m.commandsDropped,
		m.sensorFaults,
		m.heating,
		m.fault,
		m.temperature,
		m.humidity,
		m.setpoint,
		m.mode,
	)
	return m
}

// SendResult counts one outbound report attempt.
func (m *Metrics) SendResult(metric string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.sends.WithLabelValues(metric, result).Inc()
}

// CommandDropped counts one inbound message that never reached the core.
func (m *Metrics) CommandDropped(reason string) {
	m.commandsDropped.WithLabelValues(reason).Inc()
}

// CommandApplied counts one command handed to the core; err is its result.
func (m *Metrics) CommandApplied(err error) {
	result := "applied"
	if err != nil {
		result = "rejected"
	}
	m.commands.WithLabelValues(result).Inc()
}

// Observe updates the gauges from a core status. Called once per tick.
func (m *Metrics) Observe(st core.Status) {
	m.heating.Set(boolGauge(st.Heating))
	m.fault.Set(boolGauge(st.Fault))
	if st.Fault && !m.lastFault && !st.Halted {
		m.sensorFaults.Inc()
	}
	m.lastFault = st.Fault

	if st.HaveReading {
		m.temperature.Set(st.Reading.Temperature)
		m.humidity.Set(st.Reading.Humidity)
	}
	m.setpoint.Set(st.Arbitration.ThermostatTarget)
	for _, mode := range []core.Mode{core.ModeNone, core.ModeOnOff, core.ModeThermostat} {
		m.mode.WithLabelValues(mode.String()).Set(boolGauge(st.Arbitration.Mode == mode))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

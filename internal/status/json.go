package status

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/heater-node/internal/core"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	Heater        string       `json:"heater"`
	Ready         bool         `json:"ready"`
	Fault         bool         `json:"fault"`
	Halted        bool         `json:"halted"`
	HaltReason    string       `json:"halt_reason,omitempty"`
	OnOff         bool         `json:"on_off"`
	Flow          string       `json:"flow"`
	Setpoint      float64      `json:"setpoint"`
	Offset        float64      `json:"offset"`
	Temperature   *float64     `json:"temperature,omitempty"`
	Humidity      *float64     `json:"humidity,omitempty"`
	ReportNeeded  bool         `json:"report_needed"`
	ControlState  string       `json:"control_state"`
	ReportState   string       `json:"report_state"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Commands      CommandsJSON `json:"commands"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CommandsJSON is the JSON representation of command counts.
type CommandsJSON struct {
	Applied  int `json:"applied"`
	Rejected int `json:"rejected"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	NodeID         int    `json:"node_id"`
	Capabilities   string `json:"capabilities"`
	SetpointPolicy string `json:"setpoint_policy"`
	TickMs         int64  `json:"tick_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

// round1 matches the one-decimal precision of the MySensors reports.
func round1(v float64) *float64 {
	r := math.Round(v*10) / 10
	return &r
}

func buildInner(snap Snapshot) StatusInner {
	st := snap.Core
	mode := "UNKNOWN"
	if snap.Updated {
		mode = st.Arbitration.Mode.String()
	}
	heater := core.DriveOff.String()
	if st.Heating {
		heater = core.DriveHeating.String()
	}

	inner := StatusInner{
		Mode:          mode,
		Heater:        heater,
		Ready:         snap.Updated && st.HaveReading && !st.Halted,
		Fault:         st.Fault,
		Halted:        st.Halted,
		HaltReason:    st.HaltReason,
		OnOff:         st.Arbitration.OnOffHeating,
		Flow:          core.FlowState(st.Arbitration.ThermostatHeating),
		Setpoint:      st.Arbitration.ThermostatTarget,
		Offset:        st.Arbitration.TemperatureOffset,
		ReportNeeded:  st.ReportNeeded,
		ControlState:  st.ControlState.String(),
		ReportState:   st.ReportState.String(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Commands: CommandsJSON{
			Applied:  snap.Commands.Applied,
			Rejected: snap.Commands.Rejected,
		},
		Config: ConfigJSON{
			NodeID:         snap.Config.NodeID,
			Capabilities:   snap.Config.Capabilities,
			SetpointPolicy: snap.Config.SetpointPolicy,
			TickMs:         snap.Config.TickMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
	if st.HaveReading {
		inner.Temperature = round1(st.Reading.Temperature)
		inner.Humidity = round1(st.Reading.Humidity)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/heater-node/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"celsius": func(v float64) string {
		return fmt.Sprintf("%.1f °C", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Heater Node {{.Config.NodeID}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.fault { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Heater Node {{.Config.NodeID}}</h1>
{{if .Core.Halted}}<p class="fault">Halted: {{.Core.HaltReason}}</p>{{end}}

<h2>Heater</h2>
<table>
<tr><th>Element</th><td id="heater" class="{{if .Core.Heating}}on{{else}}off{{end}}">{{if .Core.Heating}}HEATING{{else}}OFF{{end}}</td></tr>
<tr><th>Mode</th><td>{{if .Updated}}{{.Core.Arbitration.Mode}}{{else}}<span class="unknown">UNKNOWN</span>{{end}}</td></tr>
{{if eq .Config.Capabilities "dual"}}<tr><th>Switch</th><td>{{if .Core.Arbitration.OnOffHeating}}on{{else}}off{{end}}</td></tr>{{end}}
<tr><th>Thermostat</th><td>{{if .Core.Arbitration.ThermostatHeating}}engaged{{else}}off{{end}}</td></tr>
<tr><th>Setpoint</th><td>{{celsius .Core.Arbitration.ThermostatTarget}}</td></tr>
<tr><th>Offset</th><td>{{printf "%+.1f" .Core.Arbitration.TemperatureOffset}}</td></tr>
<tr><th>Sensor</th><td class="{{if .Core.Fault}}fault{{end}}">{{if .Core.Fault}}fault{{else}}ok{{end}}</td></tr>
</table>

<h2>Readings</h2>
<table>
{{if .Core.HaveReading}}<tr><th>Temperature</th><td>{{celsius .Core.Reading.Temperature}}</td></tr>
<tr><th>Humidity</th><td>{{printf "%.1f" .Core.Reading.Humidity}} %</td></tr>
{{else}}<tr><th>Temperature</th><td class="unknown">no reading</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Commands</h2>
<table>
<tr><th>Applied</th><td>{{.Commands.Applied}}</td></tr>
<tr><th>Rejected</th><td>{{.Commands.Rejected}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Capabilities</th><td>{{.Config.Capabilities}}</td></tr>
<tr><th>Setpoint policy</th><td>{{.Config.SetpointPolicy}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
<tr><th>State machines</th><td>control={{.Core.ControlState}} report={{.Core.ReportState}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}

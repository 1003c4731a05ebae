package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/dht-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string {
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>DHT Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.value { font-size: 1.3em; font-weight: bold; }
.stale, .unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>DHT Sensor</h1>

<h2>Measurement</h2>
<table>
{{if .HasReading}}<tr><th>Temperature</th><td class="value">{{.Reading.Temperature}} °C</td></tr>
<tr><th>Humidity</th><td class="value">{{.Reading.Humidity}} % RH</td></tr>
<tr><th>Age</th><td{{if .IsStale}} class="stale"{{end}}>{{duration .Age}}{{if .IsStale}} (stale){{end}}</td></tr>
{{else}}<tr><th>Reading</th><td class="unknown">no measurement yet</td></tr>{{end}}
</table>

<h2>Sensor</h2>
<table>
<tr><th>Driver</th><td>{{.Config.Driver}} (GPIO{{.Config.Pin}})</td></tr>
<tr><th>Successful reads</th><td>{{.Counts.Successes}}</td></tr>
<tr><th>Failures</th><td>{{.Counts.Failures}} (timeout {{.Counts.Timeout}}, checksum {{.Counts.Checksum}}, protocol {{.Counts.Protocol}})</td></tr>
<tr><th>Consecutive failures</th><td>{{.ConsecutiveFailures}}</td></tr>
{{if .LastError}}<tr><th>Last error</th><td>{{.LastError}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}} ({{.Config.Broker}})</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms (retry {{.Config.RetryMs}}ms)</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/measurement">measurement</a> · <a href="/index.json">JSON</a> · <a href="/alive">alive</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has methods but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Age     time.Duration
		IsStale bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Age:      snap.Age(),
		IsStale:  snap.Stale(time.Duration(snap.Config.StaleAfterMs) * time.Millisecond),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("render index: %v", err)
	}
}

package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/relay-rig/internal/sense"
	"github.com/sweeney/relay-rig/internal/status"
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
	"orNone": func(s string) string {
		if s == "" {
			return "none"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Relay Rig</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.error { color: red; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Relay Rig</h1>

<h2>Profile</h2>
<table>
<tr><th>Model</th><td>{{orNone (printf "%s" .Rig.Profile.Model)}}</td></tr>
<tr><th>PEK</th><td>{{if .Rig.Profile.HasPEK}}yes{{else}}no{{end}}</td></tr>
<tr><th>RH</th><td>{{if .Rig.Profile.HasRH}}yes{{else}}no{{end}}</td></tr>
<tr><th>RC</th><td>{{if .Rig.Profile.HasRC}}yes{{else}}no{{end}}</td></tr>
<tr><th>In phase</th><td>{{if .Rig.Profile.InPhase}}yes{{else}}no{{end}}</td></tr>
<tr><th>ACC-</th><td>{{if .Rig.Profile.AccMinus}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Relays</h2>
<table>
<tr><th>Configuration</th><td id="configured">{{orNone .Rig.Configured}}</td></tr>
<tr><th>Active pins</th><td id="active-pins">{{range $i, $p := .Rig.ActivePins}}{{if $i}} {{end}}{{$p}}{{else}}none{{end}}</td></tr>
<tr><th>Aquastat</th><td>mode {{.Rig.AquastatMode}}, contact {{.Rig.AquastatState}}</td></tr>
<tr><th>DUT</th><td>{{if .Rig.DUTPresent}}present{{else}}absent{{end}}</td></tr>
{{if .RigError}}<tr><th>Error</th><td class="error">{{.RigError}}</td></tr>{{end}}
</table>

<h2>Sense</h2>
<table>
{{range .Wires}}<tr><th>{{.Name}}</th><td class="{{if .On}}on{{else}}off{{end}}">{{if .On}}ON{{else}}OFF{{end}}</td></tr>
{{end}}<tr><th>Raw</th><td>{{.Rig.Sense}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
{{range .EventTypes}}<tr><th>{{.}}</th><td>{{index $.Counts .}}</td></tr>
{{else}}<tr><td>no events</td></tr>
{{end}}</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sense poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>I2C bus</th><td>{{.Config.I2CBus}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/metrics">metrics</a></p>
</body>
</html>
`

type wireState struct {
	Name string
	On   bool
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	wires := make([]wireState, len(sense.Monitored))
	for i, wire := range sense.Monitored {
		wires[i] = wireState{Name: wire.Name, On: snap.Rig.Sense&wire.Bit != 0}
	}
	counts := make(map[string]int, len(snap.Counts))
	for k, v := range snap.Counts {
		counts[string(k)] = v
	}

	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		Wires      []wireState
		EventTypes []string
		Counts     map[string]int
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		Wires:      wires,
		EventTypes: status.SortedCounts(snap),
		Counts:     counts,
	}
	indexTmpl.Execute(w, data)
}

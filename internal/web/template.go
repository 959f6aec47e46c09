package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/blinkd/internal/status"
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>blinkd</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.error { color: red; }
</style>
</head>
<body>
<h1>blinkd</h1>

<h2>State</h2>
<table>
<tr><th>Module</th><td class="{{if .Running}}connected{{else}}disconnected{{end}}">{{if .Running}}loaded{{else}}unloaded{{end}}</td></tr>
{{with stateOrUnknown (printf "%s" .Level)}}<tr><th>Level</th><td id="level" class="{{if eq . "ON"}}on{{else if eq . "OFF"}}off{{else}}unknown{{end}}">{{.}}</td></tr>{{end}}
<tr><th>Firings</th><td>{{.Counts.Firings}}</td></tr>
<tr><th>Edges</th><td>{{.Counts.Edges}}</td></tr>
{{if .LastError}}<tr><th>Last error</th><td class="error">{{.LastError}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Chip</th><td>{{.Config.Chip}}</td></tr>
<tr><th>Outputs</th><td>{{.Config.PrimaryPin}}, {{.Config.SecondaryPin}}</td></tr>
<tr><th>Input</th><td>{{.Config.InputPin}}</td></tr>
<tr><th>Period</th><td>{{.Config.TogglePeriod}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.Heartbeat 0}}disabled{{else}}{{.Config.Heartbeat}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTP}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/healthz">health</a></p>
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
	if err := indexTmpl.Execute(w, data); err != nil {
		fmt.Fprintf(w, "<!-- render: %v -->", err)
	}
}

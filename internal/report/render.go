// Package report turns a finished session's action log into a markdown
// summary and, optionally, mails it.
package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/host"

	"github.com/Hara602/opsclean/pkg/action"
)

// Host is the machine the session ran on.
type Host struct {
	Hostname string
	Platform string
	Kernel   string
	Uptime   time.Duration
}

// CollectHost reads host facts. Missing facts are left empty rather than failing the report.
func CollectHost(ctx context.Context) Host {
	info, err := host.InfoWithContext(ctx)
	if err != nil || info == nil {
		name, _ := os.Hostname()
		return Host{Hostname: name}
	}
	platform := strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	return Host{
		Hostname: info.Hostname,
		Platform: platform,
		Kernel:   strings.TrimSpace(info.KernelVersion + " " + info.KernelArch),
		Uptime:   time.Duration(info.Uptime) * time.Second,
	}
}

// Data is everything the report template sees.
type Data struct {
	Title    string
	Session  string
	Started  time.Time
	Finished time.Time
	Host     Host
	Records  []action.Record
	JSONPath string
}

// Count is the number of records of one kind.
type Count struct {
	Kind  action.Kind
	Count int
}

// Counts returns per-kind totals in declaration order, skipping zeros.
func (d Data) Counts() []Count {
	totals := make(map[action.Kind]int)
	for _, r := range d.Records {
		totals[r.Action.Kind]++
	}
	var out []Count
	for _, k := range action.Kinds {
		if n := totals[k]; n > 0 {
			out = append(out, Count{Kind: k, Count: n})
		}
	}
	return out
}

// Failures returns the Error records.
func (d Data) Failures() []action.Record {
	var out []action.Record
	for _, r := range d.Records {
		if r.Action.IsError() {
			out = append(out, r)
		}
	}
	return out
}

func (d Data) Duration() time.Duration {
	return d.Finished.Sub(d.Started).Round(time.Millisecond)
}

const markdownTemplate = `# {{.Title}}

- Session: ` + "`{{.Session}}`" + `
- Host: {{if .Host.Hostname}}{{.Host.Hostname}}{{else}}unknown{{end}}{{with .Host.Platform}} ({{.}}){{end}}{{with .Host.Kernel}}, kernel {{.}}{{end}}
- Started: {{.Started.Format "2006-01-02T15:04:05Z07:00"}}
- Duration: {{.Duration}}
{{- with .JSONPath}}
- Action log: ` + "`{{.}}`" + `
{{- end}}

## Summary

{{with .Counts -}}
| Action | Count |
|---|---|
{{range .}}| {{.Kind}} | {{.Count}} |
{{end}}{{else}}No actions were recorded.
{{end}}
{{- with .Failures}}
## Failures

{{range .}}- {{.Timestamp.Format "15:04:05"}} {{.Action.Detail}}
{{end}}{{end}}
## Timeline

{{range .Records}}- {{.Timestamp.Format "15:04:05.000"}} **{{.Action.Kind}}**{{with .Action.Detail}} {{.}}{{end}}
{{else}}_empty_
{{end}}`

var tmpl = template.Must(template.New("report").Parse(markdownTemplate))

// Render produces the markdown report.
func Render(d Data) (string, error) {
	if d.Title == "" {
		d.Title = "Cleanup Report"
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return "", cerr.Wrap(err, "render report")
	}
	return buf.String(), nil
}

// WriteMarkdown renders d into path, creating parent directories.
func WriteMarkdown(path string, d Data) (string, error) {
	body, err := Render(d)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", cerr.Wrapf(err, "create report dir for %s", path)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", cerr.Wrapf(err, "write report %s", path)
	}
	return body, nil
}

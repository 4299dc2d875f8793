package render

import (
	"html/template"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/prowl"
)

// HTML renders the report as a standalone document. The template is
// compiled in; the light/dark theme only switches the palette.
type HTML struct {
	opts Options
	tmpl *template.Template
}

func NewHTML(opts Options) *HTML {
	return &HTML{
		opts: opts,
		tmpl: template.Must(template.New("report").Funcs(template.FuncMap{
			"header": headerName,
			"cell":   cellValue,
			"wide": func(m map[string]struct{}, col string) bool {
				_, ok := m[col]
				return ok
			},
		}).Parse(reportTemplate)),
	}
}

type htmlContext struct {
	Report    *prowl.Report
	Theme     string
	Generated string
}

func (h *HTML) Render(report *prowl.Report) error {
	if err := os.MkdirAll(h.opts.OutputDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create report directory")
	}

	fpath := h.opts.outputPath(".html")
	f, err := os.Create(fpath)
	if err != nil {
		return errors.Wrap(err, "failed to create report file")
	}
	defer f.Close()

	ctx := htmlContext{
		Report:    report,
		Theme:     h.opts.Theme,
		Generated: time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := h.tmpl.Execute(f, ctx); err != nil {
		return errors.Wrap(err, "failed to render HTML report")
	}

	log.Info().Str("path", fpath).Msg("HTML report written")
	return nil
}

const reportTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Scan Report</title>
<style>
body { font-family: sans-serif; margin: 2em; }
{{if eq .Theme "dark"}}
body { background: #1e1e1e; color: #ddd; }
th { background: #333; }
td, th { border-color: #444; }
{{else}}
body { background: #fff; color: #222; }
th { background: #eee; }
{{end}}
h2 { border-bottom: 2px solid #888; padding-bottom: 4px; }
table { border-collapse: collapse; margin: 1em 0; width: 100%; }
td, th { border: 1px solid #bbb; padding: 6px 8px; text-align: left; vertical-align: top; }
td.wide { max-width: none; word-break: break-all; }
td { max-width: 24em; overflow-wrap: break-word; }
.meta { color: #888; font-size: 0.9em; }
.severity-high, .severity-critical { color: #c0392b; font-weight: bold; }
.severity-medium { color: #d68910; }
</style>
</head>
<body>
<h1>Scan Report</h1>
<p class="meta">Targets: {{range $i, $t := .Report.Targets}}{{if $i}}, {{end}}{{$t}}{{end}}
&middot; generated {{.Generated}}</p>

{{range .Report.Sections}}
<h2>{{.Category}}</h2>
{{range .Groups}}
<h3>{{.Plugin}}</h3>
{{if .Summary}}<p class="meta">{{.Summary}}</p>{{end}}
<table>
<tr>
<th>Source</th>
<th>Severity</th>
{{range .Columns}}<th>{{header .}}</th>{{end}}
</tr>
{{$group := .}}
{{range .Findings}}
{{$f := .}}
<tr>
<td>{{.Source}}</td>
<td class="severity-{{.Severity}}">{{.Severity}}</td>
{{range $group.Columns}}<td{{if wide $group.WideFields .}} class="wide"{{end}}>{{cell (index $f.Data .)}}</td>{{end}}
</tr>
{{end}}
</table>
{{end}}
{{end}}
</body>
</html>
`

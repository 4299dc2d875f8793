// Package render turns the aggregated report structure into concrete
// output formats. Renderers consume the ordered sections as-is; all
// grouping and ordering decisions were made upstream.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/prowl"
)

type Renderer interface {
	// Render writes one report in the renderer's format.
	Render(report *prowl.Report) error
}

// Options shared by the file-producing renderers.
type Options struct {
	OutputDir string
	Theme     string
	Timestamp time.Time
}

func (o Options) outputPath(ext string) string {
	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	name := fmt.Sprintf("report_%s%s", ts.Format("20060102_150405"), ext)
	return filepath.Join(o.OutputDir, name)
}

// Resolves a configured format name to a renderer.
func ForFormat(format string, opts Options) (Renderer, error) {
	switch strings.ToLower(format) {
	case "terminal":
		return NewTerminal(), nil
	case "html":
		return NewHTML(opts), nil
	case "json":
		return NewJSON(opts), nil
	default:
		return nil, errors.Errorf("unknown report format %q", format)
	}
}

// Empties the report output directory. Files only; failures are
// logged and skipped.
func ClearReports(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fpath := filepath.Join(dir, e.Name())
		if err := os.Remove(fpath); err != nil {
			log.Warn().Str("file", fpath).Err(err).Msg("failed to remove old report")
		}
	}
}

// column headers render as "Service Name", not "service_name"
func headerName(field string) string {
	words := strings.Split(strings.ReplaceAll(field, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

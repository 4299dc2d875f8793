package render

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/prowl"
)

// JSON exports the aggregated report for downstream consumers,
// keeping the category/plugin grouping and column metadata intact.
type JSON struct {
	opts Options
}

func NewJSON(opts Options) *JSON {
	return &JSON{opts: opts}
}

type jsonFinding struct {
	Target   string          `json:"target"`
	Severity prowl.Severity  `json:"severity"`
	Source   prowl.SourceTag `json:"source"`
	Data     prowl.Data      `json:"data"`
}

type jsonGroup struct {
	Plugin     string        `json:"plugin"`
	Columns    []string      `json:"columns"`
	WideFields []string      `json:"wide_fields"`
	Summary    string        `json:"summary,omitempty"`
	Findings   []jsonFinding `json:"findings"`
}

type jsonSection struct {
	Category string      `json:"category"`
	Groups   []jsonGroup `json:"groups"`
}

type jsonReport struct {
	Targets  []string      `json:"targets"`
	Sections []jsonSection `json:"sections"`
}

func (j *JSON) Render(report *prowl.Report) error {
	if err := os.MkdirAll(j.opts.OutputDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create report directory")
	}

	out := jsonReport{Targets: report.Targets}
	for _, section := range report.Sections {
		js := jsonSection{Category: section.Category}
		for _, group := range section.Groups {
			jg := jsonGroup{
				Plugin:  group.Plugin,
				Columns: group.Columns,
				Summary: group.Summary,
			}
			for w := range group.WideFields {
				jg.WideFields = append(jg.WideFields, w)
			}
			sort.Strings(jg.WideFields)
			for _, f := range group.Findings {
				jg.Findings = append(jg.Findings, jsonFinding{
					Target:   f.Target,
					Severity: f.Severity,
					Source:   f.Source,
					Data:     f.Data(),
				})
			}
			js.Groups = append(js.Groups, jg)
		}
		out.Sections = append(out.Sections, js)
	}

	fpath := j.opts.outputPath(".json")
	f, err := os.Create(fpath)
	if err != nil {
		return errors.Wrap(err, "failed to create report file")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return errors.Wrap(err, "failed to encode JSON report")
	}

	log.Info().Str("path", fpath).Msg("JSON report written")
	return nil
}

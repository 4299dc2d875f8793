package render

import (
	"strings"
	"unicode/utf8"

	"github.com/pterm/pterm"

	"github.com/prowl"
)

// width cells wrap at unless the adapter declared the field wide
const cellWidth = 40

// Terminal renders the report as pterm tables, one per plugin group,
// honoring the adapter's column order and wide-field declarations.
type Terminal struct{}

func NewTerminal() *Terminal {
	return &Terminal{}
}

func (t *Terminal) Render(report *prowl.Report) error {
	if len(report.Sections) == 0 {
		pterm.Info.Println("no findings to report")
		return nil
	}

	pterm.DefaultHeader.Println("Scan Report: " + strings.Join(report.Targets, ", "))

	for _, section := range report.Sections {
		pterm.DefaultSection.Println(section.Category)

		for _, group := range section.Groups {
			pterm.DefaultSection.WithLevel(2).Println(section.Category + " / " + group.Plugin)
			if group.Summary != "" {
				pterm.Info.Println(group.Summary)
			}

			if err := t.renderGroup(group); err != nil {
				return err
			}
			pterm.Println()
		}
	}
	return nil
}

func (t *Terminal) renderGroup(group *prowl.PluginGroup) error {
	headers := []string{"Source"}
	for _, col := range group.Columns {
		headers = append(headers, headerName(col))
	}

	data := pterm.TableData{headers}
	for _, f := range group.Findings {
		row := []string{string(f.Source)}
		for _, col := range group.Columns {
			_, wide := group.WideFields[col]
			row = append(row, wrapCell(cellValue(f.Data()[col]), wide))
		}
		data = append(data, row)
	}

	return pterm.DefaultTable.
		WithHasHeader(true).
		WithBoxed(false).
		WithData(data).
		Render()
}

// non-wide cells hard-wrap so a single banner cannot blow up the
// whole table; wrapping counts runes so multi-byte banner text is
// never split mid-sequence
func wrapCell(s string, wide bool) string {
	if wide || utf8.RuneCountInString(s) <= cellWidth {
		return s
	}

	var b strings.Builder
	count := 0
	for _, r := range s {
		if count == cellWidth {
			b.WriteByte('\n')
			count = 0
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

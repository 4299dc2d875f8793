// Package nikto adapts the nikto web server scanner: JSON artifacts,
// one finding per reported vulnerability. Nikto findings are never
// merged across identifier kinds; the same URL reached via IP and via
// domain can hit different virtual hosts.
package nikto

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/prowl"
)

const (
	Name     = "nikto"
	Category = "Application Security"
)

var levelArgs = map[prowl.Level][]string{
	prowl.LevelEasy:    {"-Tuning", "1,2,3"},
	prowl.LevelMiddle:  {"-Tuning", "1,2,3,4,5"},
	prowl.LevelHard:    {"-Tuning", "x", "6"},
	prowl.LevelExtreme: {"-Tuning", "x"},
}

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string     { return Name }
func (a *Adapter) Category() string { return Category }

func (a *Adapter) Scan(ctx context.Context, ident string, kind prowl.IdentKind, level prowl.Level, workdir string) (*prowl.RawArtifact, error) {
	out, err := prowl.ArtifactPath(workdir, Name, kind, ".json")
	if err != nil {
		return nil, &prowl.ScanError{Plugin: Name, Kind: prowl.ScanNonZeroExit, Err: err}
	}

	args, ok := levelArgs[level]
	if !ok {
		args = levelArgs[prowl.LevelEasy]
	}

	tc := prowl.ToolCommand{
		Bin:  "nikto",
		Args: append(append([]string{"-h", ident}, args...), "-Format", "json", "-o", out),
	}
	if err := prowl.RunTool(ctx, Name, tc); err != nil {
		return nil, err
	}

	return &prowl.RawArtifact{Plugin: Name, Kind: kind, Path: out}, nil
}

// nikto emits backslashes JSON does not allow (windows paths in msg
// strings, raw newlines inside msg strings); escape them before
// decoding. Only string contents are touched: structural whitespace
// between tokens stays as-is.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}

		switch c {
		case '\\':
			if i+1 < len(s) && strings.ContainsRune(`"\/bfnrtu`, rune(s[i+1])) {
				b.WriteByte(c)
				b.WriteByte(s[i+1])
				i++
				continue
			}
			b.WriteString(`\\`)
		case '"':
			inString = false
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

type niktoReport struct {
	Host            string               `json:"host"`
	Vulnerabilities []niktoVulnerability `json:"vulnerabilities"`
}

type niktoVulnerability struct {
	URL        string `json:"url"`
	Method     string `json:"method"`
	Msg        string `json:"msg"`
	ID         string `json:"id"`
	References string `json:"references"`
}

func (a *Adapter) Parse(artifact *prowl.RawArtifact) ([]*prowl.Finding, error) {
	b, err := os.ReadFile(artifact.Path)
	if err != nil {
		return nil, &prowl.ParseError{Plugin: Name, Path: artifact.Path, Err: err}
	}

	raw := strings.TrimSpace(sanitize(string(b)))
	if raw == "" {
		// nikto ran and wrote nothing: no findings
		return nil, nil
	}

	var reports []niktoReport
	if err := json.Unmarshal([]byte(raw), &reports); err != nil {
		// some nikto builds emit a single object instead of a list
		var single niktoReport
		if err2 := json.Unmarshal([]byte(raw), &single); err2 != nil {
			return nil, &prowl.ParseError{Plugin: Name, Path: artifact.Path, Err: errors.Wrap(err, "not a nikto JSON document")}
		}
		reports = []niktoReport{single}
	}

	var findings []*prowl.Finding
	for _, report := range reports {
		for _, vuln := range report.Vulnerabilities {
			findings = append(findings, prowl.NewFinding("", Name, Category, prowl.Data{
				"url":        orDash(vuln.URL),
				"method":     orDash(vuln.Method),
				"msg":        orDash(vuln.Msg),
				"id":         orDash(vuln.ID),
				"references": orDash(vuln.References),
			}))
		}
	}
	return findings, nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// MergeEntries keeps both sets as-is: web findings are host-header
// sensitive, so ip- and domain-sourced results are distinct evidence.
func (a *Adapter) MergeEntries(fromIP, fromDomain []*prowl.Finding) ([]*prowl.Finding, error) {
	return append(fromIP, fromDomain...), nil
}

func (a *Adapter) ColumnOrder() []string {
	return []string{"url", "method", "msg", "id", "references"}
}

func (a *Adapter) WideFields() []string {
	return []string{"url", "msg", "references"}
}

// Summary names the checks that fired.
func (a *Adapter) Summary(findings []*prowl.Finding) string {
	var parts []string
	for _, f := range findings {
		if id, ok := f.Data()["id"].(string); ok && id != "-" {
			parts = append(parts, id)
		}
	}
	return strings.Join(parts, " | ")
}

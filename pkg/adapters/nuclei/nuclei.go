// Package nuclei adapts the nuclei template scanner: JSON-lines
// artifacts, one finding per matched template. Severity comes from
// the template's own info block.
package nuclei

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/prowl"
)

const (
	Name     = "nuclei"
	Category = "Vulnerability Scan"
)

var levelArgs = map[prowl.Level][]string{
	prowl.LevelEasy:    {"-severity", "high,critical"},
	prowl.LevelMiddle:  {"-severity", "medium,high,critical"},
	prowl.LevelHard:    {"-severity", "low,medium,high,critical"},
	prowl.LevelExtreme: {},
}

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string     { return Name }
func (a *Adapter) Category() string { return Category }

func (a *Adapter) Scan(ctx context.Context, ident string, kind prowl.IdentKind, level prowl.Level, workdir string) (*prowl.RawArtifact, error) {
	out, err := prowl.ArtifactPath(workdir, Name, kind, ".jsonl")
	if err != nil {
		return nil, &prowl.ScanError{Plugin: Name, Kind: prowl.ScanNonZeroExit, Err: err}
	}

	args := []string{"-u", "http://" + ident, "-jsonl", "-o", out}
	if extra, ok := levelArgs[level]; ok {
		args = append(args, extra...)
	}

	tc := prowl.ToolCommand{Bin: "nuclei", Args: args}
	if err := prowl.RunTool(ctx, Name, tc); err != nil {
		return nil, err
	}

	return &prowl.RawArtifact{Plugin: Name, Kind: kind, Path: out}, nil
}

type nucleiMatch struct {
	TemplateID string `json:"template-id"`
	Info       struct {
		Name     string `json:"name"`
		Severity string `json:"severity"`
	} `json:"info"`
	Type      string `json:"type"`
	Host      string `json:"host"`
	MatchedAt string `json:"matched-at"`
}

var severities = map[string]prowl.Severity{
	"info":     prowl.SeverityInfo,
	"low":      prowl.SeverityLow,
	"medium":   prowl.SeverityMedium,
	"high":     prowl.SeverityHigh,
	"critical": prowl.SeverityCritical,
}

// Parse decodes one match per line. Unparseable lines are skipped;
// the artifact as a whole only fails when it cannot be read.
func (a *Adapter) Parse(artifact *prowl.RawArtifact) ([]*prowl.Finding, error) {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return nil, &prowl.ParseError{Plugin: Name, Path: artifact.Path, Err: err}
	}
	defer f.Close()

	var findings []*prowl.Finding
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var match nucleiMatch
		if err := json.Unmarshal([]byte(line), &match); err != nil || match.TemplateID == "" {
			continue
		}

		finding := prowl.NewFinding("", Name, Category, prowl.Data{
			"template_id": match.TemplateID,
			"name":        orDash(match.Info.Name),
			"severity":    orDash(match.Info.Severity),
			"matched_at":  orDash(match.MatchedAt),
			"type":        orDash(match.Type),
			"host":        orDash(match.Host),
		})
		if sev, ok := severities[strings.ToLower(match.Info.Severity)]; ok {
			finding.Severity = sev
		}
		findings = append(findings, finding)
	}

	if err := scanner.Err(); err != nil {
		return nil, &prowl.ParseError{Plugin: Name, Path: artifact.Path, Err: err}
	}
	return findings, nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// MergeEntries collapses matches of the same template and type seen
// from both identifiers; the domain-sourced match wins since its
// matched-at URL names the virtual host.
func (a *Adapter) MergeEntries(fromIP, fromDomain []*prowl.Finding) ([]*prowl.Finding, error) {
	type mergeKey struct{ template, typ string }
	keyOf := func(f *prowl.Finding) mergeKey {
		d := f.Data()
		t, _ := d["template_id"].(string)
		typ, _ := d["type"].(string)
		return mergeKey{t, typ}
	}

	fromIPKeys := make(map[mergeKey]struct{})
	for _, f := range fromIP {
		fromIPKeys[keyOf(f)] = struct{}{}
	}

	merged := make(map[mergeKey]struct{})
	var out []*prowl.Finding
	for _, f := range fromDomain {
		k := keyOf(f)
		if _, ok := fromIPKeys[k]; ok {
			f.Source = prowl.SourceBoth
			merged[k] = struct{}{}
		}
		out = append(out, f)
	}
	for _, f := range fromIP {
		if _, ok := merged[keyOf(f)]; ok {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (a *Adapter) ColumnOrder() []string {
	return []string{"template_id", "name", "severity", "matched_at", "type", "host"}
}

func (a *Adapter) WideFields() []string {
	return []string{"name", "matched_at"}
}

// Summary names the matched templates.
func (a *Adapter) Summary(findings []*prowl.Finding) string {
	var parts []string
	for _, f := range findings {
		d := f.Data()
		id, _ := d["template_id"].(string)
		name, _ := d["name"].(string)
		parts = append(parts, id+" - "+name)
	}
	return strings.Join(parts, " | ")
}

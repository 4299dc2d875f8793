// Package dig adapts the dig DNS client. Domain scans resolve a set
// of record types; IP scans do a reverse (PTR) lookup. The artifact is
// dig's +noall +answer output captured to a file.
package dig

import (
	"context"
	"os"
	"strings"

	"github.com/prowl"
)

const (
	Name     = "dig"
	Category = "DNS Health"
)

var levelRecords = map[prowl.Level][]string{
	prowl.LevelEasy:    {"A", "MX"},
	prowl.LevelMiddle:  {"A", "AAAA", "MX", "NS"},
	prowl.LevelHard:    {"A", "AAAA", "MX", "NS", "TXT", "SOA"},
	prowl.LevelExtreme: {"A", "AAAA", "MX", "NS", "TXT", "SOA", "CAA", "SRV"},
}

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string     { return Name }
func (a *Adapter) Category() string { return Category }

func (a *Adapter) Scan(ctx context.Context, ident string, kind prowl.IdentKind, level prowl.Level, workdir string) (*prowl.RawArtifact, error) {
	out, err := prowl.ArtifactPath(workdir, Name, kind, ".txt")
	if err != nil {
		return nil, &prowl.ScanError{Plugin: Name, Kind: prowl.ScanNonZeroExit, Err: err}
	}

	args := []string{"+noall", "+answer"}
	if kind == prowl.KindIP {
		args = append(args, "-x", ident)
	} else {
		records, ok := levelRecords[level]
		if !ok {
			records = levelRecords[prowl.LevelEasy]
		}
		for _, r := range records {
			args = append(args, ident, r)
		}
	}

	tc := prowl.ToolCommand{Bin: "dig", Args: args, StdoutPath: out}
	if err := prowl.RunTool(ctx, Name, tc); err != nil {
		return nil, err
	}

	return &prowl.RawArtifact{Plugin: Name, Kind: kind, Path: out}, nil
}

// Parse reads dig answer lines: "name ttl class type value".
// Comment and blank lines are skipped; a line with fewer than five
// columns yields no finding rather than an error.
func (a *Adapter) Parse(artifact *prowl.RawArtifact) ([]*prowl.Finding, error) {
	b, err := os.ReadFile(artifact.Path)
	if err != nil {
		return nil, &prowl.ParseError{Plugin: Name, Path: artifact.Path, Err: err}
	}

	var findings []*prowl.Finding
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		cols := strings.Fields(line)
		if len(cols) < 5 {
			continue
		}

		findings = append(findings, prowl.NewFinding("", Name, Category, prowl.Data{
			"name":        strings.TrimSuffix(cols[0], "."),
			"ttl":         cols[1],
			"record_type": cols[3],
			"value":       strings.Join(cols[4:], " "),
		}))
	}
	return findings, nil
}

type mergeKey struct {
	recordType string
	value      string
}

func keyOf(f *prowl.Finding) mergeKey {
	d := f.Data()
	rt, _ := d["record_type"].(string)
	v, _ := d["value"].(string)
	return mergeKey{rt, v}
}

// MergeEntries collapses records seen from both lookups by
// (record_type, value); identical records become one "Both" entry.
func (a *Adapter) MergeEntries(fromIP, fromDomain []*prowl.Finding) ([]*prowl.Finding, error) {
	seen := make(map[mergeKey]*prowl.Finding)
	var out []*prowl.Finding

	for _, f := range append(append([]*prowl.Finding{}, fromIP...), fromDomain...) {
		k := keyOf(f)
		if prior, ok := seen[k]; ok {
			prior.Source = prowl.SourceBoth
			continue
		}
		seen[k] = f
		out = append(out, f)
	}
	return out, nil
}

func (a *Adapter) ColumnOrder() []string {
	return []string{"name", "record_type", "ttl", "value"}
}

func (a *Adapter) WideFields() []string {
	return []string{"value"}
}

func (a *Adapter) SortKey() string {
	return "record_type"
}

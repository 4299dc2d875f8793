// Package nmap adapts the nmap port scanner: XML artifacts produced
// with -oX, one finding per scanned port.
package nmap

import (
	"context"
	"os"
	"strconv"
	"strings"

	gonmap "github.com/Ullaakut/nmap/v3"
	"github.com/pkg/errors"

	"github.com/prowl"
)

const (
	Name     = "nmap"
	Category = "Network Security"
)

// fields the merge step considers authoritative
var importantFields = []string{
	"port", "protocol", "state", "reason", "service_name",
	"product", "version", "extra", "cpe", "script_output",
}

var levelArgs = map[prowl.Level][]string{
	prowl.LevelEasy:    {"-T4", "--top-ports", "100"},
	prowl.LevelMiddle:  {"-T4", "-sV", "--top-ports", "1000"},
	prowl.LevelHard:    {"-T4", "-sV", "-sC"},
	prowl.LevelExtreme: {"-T4", "-sV", "-sC", "-p-"},
}

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string     { return Name }
func (a *Adapter) Category() string { return Category }

func (a *Adapter) Scan(ctx context.Context, ident string, kind prowl.IdentKind, level prowl.Level, workdir string) (*prowl.RawArtifact, error) {
	out, err := prowl.ArtifactPath(workdir, Name, kind, ".xml")
	if err != nil {
		return nil, &prowl.ScanError{Plugin: Name, Kind: prowl.ScanNonZeroExit, Err: err}
	}

	args, ok := levelArgs[level]
	if !ok {
		args = levelArgs[prowl.LevelEasy]
	}

	tc := prowl.ToolCommand{
		Bin:  "nmap",
		Args: append(append([]string{}, args...), ident, "-oX", out),
	}
	if err := prowl.RunTool(ctx, Name, tc); err != nil {
		return nil, err
	}

	return &prowl.RawArtifact{Plugin: Name, Kind: kind, Path: out}, nil
}

func (a *Adapter) Parse(artifact *prowl.RawArtifact) ([]*prowl.Finding, error) {
	b, err := os.ReadFile(artifact.Path)
	if err != nil {
		return nil, &prowl.ParseError{Plugin: Name, Path: artifact.Path, Err: err}
	}

	var run gonmap.Run
	if err := gonmap.Parse(b, &run); err != nil {
		return nil, &prowl.ParseError{Plugin: Name, Path: artifact.Path, Err: errors.Wrap(err, "not an nmap XML document")}
	}

	var findings []*prowl.Finding
	for _, host := range run.Hosts {
		for _, port := range host.Ports {
			findings = append(findings, prowl.NewFinding("", Name, Category, portData(port)))
		}
	}
	return findings, nil
}

func portData(port gonmap.Port) prowl.Data {
	var scripts []string
	for _, s := range port.Scripts {
		if out := strings.TrimSpace(s.Output); out != "" {
			scripts = append(scripts, out)
		}
	}

	cpe := "-"
	if len(port.Service.CPEs) > 0 {
		var parts []string
		for _, c := range port.Service.CPEs {
			parts = append(parts, string(c))
		}
		cpe = strings.Join(parts, "; ")
	}

	return prowl.Data{
		"port":          int(port.ID),
		"protocol":      orDash(port.Protocol),
		"state":         orDash(port.State.State),
		"reason":        orDash(port.State.Reason),
		"service_name":  orDash(port.Service.Name),
		"product":       orDash(port.Service.Product),
		"version":       orDash(port.Service.Version),
		"extra":         orDash(port.Service.ExtraInfo),
		"cpe":           cpe,
		"script_output": orDash(strings.Join(scripts, "; ")),
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

type mergeKey struct {
	port     int
	protocol string
	service  string
}

func keyOf(f *prowl.Finding) mergeKey {
	d := f.Data()
	port, _ := d["port"].(int)
	if port == 0 {
		// rehydrated findings carry JSON numbers
		if pf, ok := d["port"].(float64); ok {
			port = int(pf)
		}
	}
	protocol, _ := d["protocol"].(string)
	service, _ := d["service_name"].(string)
	return mergeKey{port, protocol, service}
}

// MergeEntries reconciles ip- and domain-sourced port findings by
// (port, protocol, service_name). Equivalent entries collapse into a
// single "Both" finding whose fields prefer the domain-sourced value:
// service text resolved via the domain is generally the more complete.
// Entries only collapse across the two sets; same-key findings within
// one set (a domain resolving to several hosts) all pass through.
func (a *Adapter) MergeEntries(fromIP, fromDomain []*prowl.Finding) ([]*prowl.Finding, error) {
	out := append([]*prowl.Finding{}, fromIP...)

	// unconsumed ip-side slots per key, in input order
	slots := make(map[mergeKey][]int)
	for i, f := range fromIP {
		k := keyOf(f)
		slots[k] = append(slots[k], i)
	}

	for _, f := range fromDomain {
		k := keyOf(f)
		open := slots[k]
		if len(open) == 0 {
			out = append(out, f)
			continue
		}

		i := open[0]
		slots[k] = open[1:]
		f.SetData(unionData(out[i].Data(), f.Data()))
		f.Source = prowl.SourceBoth
		out[i] = f
	}
	return out, nil
}

// field-wise union, domain values winning whenever they are filled in
func unionData(ip, domain prowl.Data) prowl.Data {
	out := prowl.Data{}
	for _, k := range importantFields {
		dv, dok := domain[k]
		if dok && !placeholder(dv) {
			out[k] = dv
			continue
		}
		if iv, iok := ip[k]; iok && !placeholder(iv) {
			out[k] = iv
			continue
		}
		if dok {
			out[k] = dv
		} else if iv, iok := ip[k]; iok {
			out[k] = iv
		}
	}
	return out
}

func placeholder(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return strings.TrimSpace(s) == "" || s == "-"
}

func (a *Adapter) ColumnOrder() []string {
	return []string{
		"port", "protocol", "state", "reason", "service_name",
		"product", "version", "extra", "cpe", "script_output",
	}
}

func (a *Adapter) WideFields() []string {
	return []string{"product", "version", "extra", "cpe", "script_output"}
}

func (a *Adapter) SortKey() string {
	return "port"
}

// Summary renders the "443/tcp open" digest line of a report group.
func (a *Adapter) Summary(findings []*prowl.Finding) string {
	var parts []string
	for _, f := range findings {
		d := f.Data()
		parts = append(parts, strings.TrimSpace(
			valueOf(d, "port")+"/"+stringOf(d, "protocol")+" "+stringOf(d, "state")))
	}
	return strings.Join(parts, " | ")
}

func valueOf(d prowl.Data, k string) string {
	switch v := d[k].(type) {
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.Itoa(int(v))
	case string:
		return v
	default:
		return "?"
	}
}

func stringOf(d prowl.Data, k string) string {
	if s, ok := d[k].(string); ok {
		return s
	}
	return "?"
}

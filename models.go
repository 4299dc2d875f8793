package prowl

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// The subject of a run. Both identifiers may be present; when they are,
// they refer to the same logical host and adapters may merge across them.
type Target struct {
	IP     string
	Domain string
}

func (t Target) Empty() bool {
	return t.IP == "" && t.Domain == ""
}

// Returns the identifier kinds present on the target.
func (t Target) Kinds() []IdentKind {
	var kinds []IdentKind
	if t.IP != "" {
		kinds = append(kinds, KindIP)
	}
	if t.Domain != "" {
		kinds = append(kinds, KindDomain)
	}
	return kinds
}

// Resolves an identifier kind to the concrete identifier.
func (t Target) Ident(kind IdentKind) string {
	if kind == KindDomain {
		return t.Domain
	}
	return t.IP
}

type IdentKind string

const (
	KindIP     IdentKind = "ip"
	KindDomain IdentKind = "domain"
)

// Provenance of a finding after collection.
type SourceTag string

const (
	SourceIP     SourceTag = "IP"
	SourceDomain SourceTag = "Domain"
	// Result of merging an ip-sourced and a domain-sourced finding
	// that describe the same observation.
	SourceBoth SourceTag = "Both"
)

func (k IdentKind) Tag() SourceTag {
	if k == KindDomain {
		return SourceDomain
	}
	return SourceIP
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severity ranks, used only for ordering within a report
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func (s Severity) Rank() int {
	return severityRank[s]
}

// Reference to a raw scanner output on disk. Produced by the runner,
// consumed exactly once by the collector, not retained after parsing.
type RawArtifact struct {
	// Adapter that produced it
	Plugin string
	// Identifier kind the scan ran against
	Kind IdentKind
	// Location of the artifact
	Path string
}

// Data is the open, scanner-specific payload of a finding.
// The collector and aggregator treat it as opaque except for the
// trivial-data filter, which inspects value shape only.
type Data map[string]any

// One normalized, persisted security observation.
// Rows are append-only; dedup happens in the adapter merge step
// before persistence, never in the store.
type Finding struct {
	gorm.Model

	// Identifier the finding applies to
	Target string `gorm:"index"`
	// Adapter identifier
	Plugin string `gorm:"index"`
	// Report grouping, assigned by the adapter
	Category string
	Severity Severity
	Source   SourceTag
	Raw      datatypes.JSON

	// Decoded payload. Populated by the adapter before persistence
	// and rehydrated from Raw on query.
	data Data `gorm:"-"`
}

func NewFinding(target, plugin, category string, data Data) *Finding {
	return &Finding{
		Target:   target,
		Plugin:   plugin,
		Category: category,
		Severity: SeverityInfo,
		data:     data,
	}
}

func (f *Finding) Data() Data {
	return f.data
}

func (f *Finding) SetData(d Data) {
	f.data = d
}

// Encodes the payload into the JSON column. Called by the store
// before insert.
func (f *Finding) pack() error {
	if f.Severity == "" {
		f.Severity = SeverityInfo
	}

	raw, err := json.Marshal(f.data)
	if err != nil {
		return err
	}
	f.Raw = datatypes.JSON(raw)
	return nil
}

// Decodes the JSON column back into the payload. Called by the store
// after query.
func (f *Finding) unpack() error {
	if len(f.Raw) == 0 {
		f.data = Data{}
		return nil
	}
	return json.Unmarshal(f.Raw, &f.data)
}

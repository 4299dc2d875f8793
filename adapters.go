// Adapters wrap one external scanning tool each. The pipeline talks to
// them through a fixed capability set: run the tool against a target,
// parse its raw artifact into findings, and reconcile findings obtained
// through different identifier kinds.
package prowl

import "context"

// Adapter-defined intensity tier. The adapter maps it to concrete
// tool arguments.
type Level string

const (
	LevelEasy    Level = "easy"
	LevelMiddle  Level = "middle"
	LevelHard    Level = "hard"
	LevelExtreme Level = "extreme"
)

type Adapter interface {
	// Stable identifier of the adapter, e.g. the scanner name
	Name() string
	// Report category its findings belong to
	Category() string

	// Invokes the external tool against one identifier of the target
	// and writes the raw artifact under workdir. The context carries
	// the caller-imposed timeout; on expiry the underlying process is
	// terminated and a ScanError{Timeout} returned.
	Scan(ctx context.Context, ident string, kind IdentKind, level Level, workdir string) (*RawArtifact, error)

	// Pure transformation of one artifact into zero or more findings.
	// Returns ParseError only when the artifact is not readable as the
	// expected format at all; malformed entries yield an empty set.
	Parse(artifact *RawArtifact) ([]*Finding, error)

	// Reconciles the findings of an ip-identified and a domain-identified
	// scan of the same host. Equivalent findings collapse into one with
	// source "Both"; the rest pass through unchanged.
	MergeEntries(fromIP, fromDomain []*Finding) ([]*Finding, error)

	// Preferred display order of data sub-fields
	ColumnOrder() []string
	// Fields that may carry long text and should not be truncated
	WideFields() []string
}

// Optional capability: a one-line summary of the adapter's findings,
// used by the terminal report header.
type Summarizer interface {
	Summary(findings []*Finding) string
}

// Registry of available adapters. Adapters register at startup; the
// runner resolves the enabled subset by name from the settings.
type AdapterRegistry struct {
	adapters map[string]Adapter
	order    []string
}

func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{adapters: make(map[string]Adapter)}
}

func (r *AdapterRegistry) Register(a Adapter) {
	name := a.Name()
	if _, ok := r.adapters[name]; !ok {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

func (r *AdapterRegistry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Returns adapters in registration order.
func (r *AdapterRegistry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

// Resolves the enabled {adapter: level} mapping against the registry.
// Unknown names are skipped; the caller decides whether to report them.
func (r *AdapterRegistry) Resolve(enabled map[string]Level) ([]EnabledAdapter, []string) {
	var (
		out     []EnabledAdapter
		missing []string
	)
	for _, name := range r.order {
		level, ok := enabled[name]
		if !ok {
			continue
		}
		out = append(out, EnabledAdapter{Adapter: r.adapters[name], Level: level})
	}
	for name := range enabled {
		if _, ok := r.adapters[name]; !ok {
			missing = append(missing, name)
		}
	}
	return out, missing
}

// An adapter paired with its configured scan level.
type EnabledAdapter struct {
	Adapter Adapter
	Level   Level
}

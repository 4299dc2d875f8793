package prowl

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// A scan failure kept alongside the manifest so the run report can
// name what was skipped.
type SkippedScan struct {
	Plugin string
	Kind   IdentKind
	Err    error
}

// The collected artifact references of one scan phase. Content is
// never read here; the collector owns interpretation.
type Manifest struct {
	Target    Target
	Artifacts []*RawArtifact
	Skipped   []SkippedScan
}

// Returns the artifacts produced by one adapter, keyed by the
// identifier kind they were scanned under.
func (m *Manifest) ByPlugin(plugin string) map[IdentKind]*RawArtifact {
	out := make(map[IdentKind]*RawArtifact)
	for _, a := range m.Artifacts {
		if a.Plugin == plugin {
			out[a.Kind] = a
		}
	}
	return out
}

// Plugins returns the adapter names present in the manifest, in
// first-seen order.
func (m *Manifest) Plugins() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, a := range m.Artifacts {
		if _, ok := seen[a.Plugin]; ok {
			continue
		}
		seen[a.Plugin] = struct{}{}
		names = append(names, a.Plugin)
	}
	return names
}

// Runner drives the scan phase: one invocation per enabled
// (adapter, identifier kind) pair, all independent of each other.
type Runner struct {
	adapters []EnabledAdapter
	workdir  string
	// per-invocation timeout imposed on every scan
	timeout time.Duration
}

func NewRunner(adapters []EnabledAdapter, workdir string, timeout time.Duration) *Runner {
	return &Runner{adapters: adapters, workdir: workdir, timeout: timeout}
}

// Runs every (adapter, kind) pair concurrently and gathers the
// artifact references into a single manifest. A failed pair is logged,
// recorded as skipped, and omitted; it never aborts the run.
func (r *Runner) Run(ctx context.Context, target Target) (*Manifest, error) {
	kinds := target.Kinds()
	if len(kinds) == 0 {
		return nil, &ScanError{Kind: ScanToolMissing, Err: errNoTarget}
	}

	manifest := &Manifest{Target: target}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, ea := range r.adapters {
		for _, kind := range kinds {
			wg.Add(1)
			go func(ea EnabledAdapter, kind IdentKind) {
				defer wg.Done()

				artifact, err := r.scanOne(ctx, ea, target, kind)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					log.Warn().
						Str("plugin", ea.Adapter.Name()).
						Str("kind", string(kind)).
						Err(err).
						Msg("scan skipped")
					manifest.Skipped = append(manifest.Skipped, SkippedScan{
						Plugin: ea.Adapter.Name(),
						Kind:   kind,
						Err:    err,
					})
					return
				}
				manifest.Artifacts = append(manifest.Artifacts, artifact)
			}(ea, kind)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// a cancelled run yields no manifest at all; in-flight
		// processes were already killed through the context
		return nil, err
	}
	return manifest, nil
}

func (r *Runner) scanOne(ctx context.Context, ea EnabledAdapter, target Target, kind IdentKind) (*RawArtifact, error) {
	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	artifact, err := ea.Adapter.Scan(sctx, target.Ident(kind), kind, ea.Level, r.workdir)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("plugin", ea.Adapter.Name()).
		Str("kind", string(kind)).
		Dur("took", time.Since(start)).
		Msg("scan complete")
	return artifact, nil
}

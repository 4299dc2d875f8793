package prowl

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Collector consumes one manifest: it parses every artifact through
// its owning adapter, reconciles ip- and domain-sourced findings,
// drops uninformative records, and persists the survivors.
type Collector struct {
	registry *AdapterRegistry
	repo     *FindingRepo

	// purge all prior findings for the run's targets before writing
	purge bool
}

func NewCollector(registry *AdapterRegistry, repo *FindingRepo, purge bool) *Collector {
	return &Collector{registry: registry, repo: repo, purge: purge}
}

// the parsed, merged and filtered contribution of one adapter,
// ready for persistence
type batch struct {
	plugin   string
	findings []*Finding
}

// Collect processes the manifest and returns the number of findings
// persisted. Parse and merge run concurrently across adapters; the
// purge-then-write sequence is a single critical section per run so
// no adapter's write can land before the purge.
func (c *Collector) Collect(ctx context.Context, manifest *Manifest) (int, error) {
	plugins := manifest.Plugins()

	batches := make(chan batch, len(plugins))

	var wg sync.WaitGroup
	for _, name := range plugins {
		adapter, ok := c.registry.Get(name)
		if !ok {
			log.Warn().Str("plugin", name).Msg("manifest names an unregistered adapter")
			continue
		}

		wg.Add(1)
		go func(adapter Adapter) {
			defer wg.Done()
			findings := c.collectOne(adapter, manifest)
			batches <- batch{plugin: adapter.Name(), findings: findings}
		}(adapter)
	}

	go func() {
		wg.Wait()
		close(batches)
	}()

	if c.purge {
		if err := c.purgeTargets(manifest.Target); err != nil {
			return 0, err
		}
	}

	var total int
	for b := range batches {
		// a cancelled run discards everything not yet persisted
		if err := ctx.Err(); err != nil {
			return total, err
		}

		if len(b.findings) == 0 {
			continue
		}
		if err := c.repo.Insert(b.findings...); err != nil {
			// store failures end the collector phase; batches already
			// committed stay put
			return total, errors.Wrapf(err, "failed to persist findings for %s", b.plugin)
		}

		total += len(b.findings)
		log.Info().Str("plugin", b.plugin).Int("findings", len(b.findings)).Msg("findings persisted")
	}
	return total, nil
}

// parse, merge and filter one adapter's artifacts. Never fails the
// run: parse errors drop the adapter's contribution, merge errors
// downgrade to a pass-through of both unmerged sets.
func (c *Collector) collectOne(adapter Adapter, manifest *Manifest) []*Finding {
	artifacts := manifest.ByPlugin(adapter.Name())

	fromIP := c.parseOne(adapter, artifacts[KindIP], manifest.Target, KindIP)
	fromDomain := c.parseOne(adapter, artifacts[KindDomain], manifest.Target, KindDomain)

	var findings []*Finding
	switch {
	case len(fromIP) > 0 && len(fromDomain) > 0:
		merged, err := adapter.MergeEntries(fromIP, fromDomain)
		if err != nil {
			// never drop data over a failed merge
			log.Warn().Err(&MergeError{Plugin: adapter.Name(), Err: err}).Msg("merge failed, keeping both sets")
			findings = append(fromIP, fromDomain...)
			break
		}
		findings = merged
	case len(fromIP) > 0:
		findings = fromIP
	default:
		findings = fromDomain
	}

	kept := FilterFindings(findings)
	if dropped := len(findings) - len(kept); dropped > 0 {
		log.Debug().Str("plugin", adapter.Name()).Int("dropped", dropped).Msg("trivial findings filtered")
	}
	return kept
}

func (c *Collector) parseOne(adapter Adapter, artifact *RawArtifact, target Target, kind IdentKind) []*Finding {
	if artifact == nil {
		return nil
	}

	findings, err := adapter.Parse(artifact)
	if err != nil {
		// structurally unreadable artifact; this adapter's
		// contribution for the kind is dropped
		log.Error().Err(err).Str("plugin", adapter.Name()).Str("kind", string(kind)).Msg("artifact parse failed")
		return nil
	}

	for _, f := range findings {
		if f.Target == "" {
			f.Target = target.Ident(kind)
		}
		if f.Source == "" {
			f.Source = kind.Tag()
		}
	}
	return findings
}

// one logical purge per target identifier, before any write
func (c *Collector) purgeTargets(target Target) error {
	for _, kind := range target.Kinds() {
		ident := target.Ident(kind)
		if err := c.repo.Purge(ident); err != nil {
			return errors.Wrapf(err, "failed to purge findings for %s", ident)
		}
		log.Info().Str("target", ident).Msg("prior findings purged")
	}
	return nil
}

package prowl

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// a scripted adapter for pipeline tests
type testAdapter struct {
	name     string
	category string

	scanFn  func(ctx context.Context, ident string, kind IdentKind) (*RawArtifact, error)
	parseFn func(artifact *RawArtifact) ([]*Finding, error)
	mergeFn func(fromIP, fromDomain []*Finding) ([]*Finding, error)

	columns     []string
	wide        []string
	sortKey     string
	summary     string
	columnCalls atomic.Int32
}

func (a *testAdapter) Name() string     { return a.name }
func (a *testAdapter) Category() string { return a.category }

func (a *testAdapter) Scan(ctx context.Context, ident string, kind IdentKind, level Level, workdir string) (*RawArtifact, error) {
	if a.scanFn != nil {
		return a.scanFn(ctx, ident, kind)
	}
	return &RawArtifact{Plugin: a.name, Kind: kind, Path: "/dev/null"}, nil
}

func (a *testAdapter) Parse(artifact *RawArtifact) ([]*Finding, error) {
	if a.parseFn != nil {
		return a.parseFn(artifact)
	}
	return nil, nil
}

func (a *testAdapter) MergeEntries(fromIP, fromDomain []*Finding) ([]*Finding, error) {
	if a.mergeFn != nil {
		return a.mergeFn(fromIP, fromDomain)
	}
	return append(fromIP, fromDomain...), nil
}

func (a *testAdapter) ColumnOrder() []string {
	a.columnCalls.Add(1)
	return a.columns
}

func (a *testAdapter) WideFields() []string { return a.wide }

func (a *testAdapter) SortKey() string { return a.sortKey }

func (a *testAdapter) Summary(findings []*Finding) string { return a.summary }

func testTarget() Target {
	return Target{IP: "10.0.0.5", Domain: "example.test"}
}

func manifestFor(target Target, adapters ...string) *Manifest {
	m := &Manifest{Target: target}
	for _, name := range adapters {
		for _, kind := range target.Kinds() {
			m.Artifacts = append(m.Artifacts, &RawArtifact{Plugin: name, Kind: kind, Path: "/dev/null"})
		}
	}
	return m
}

// the netscan fixture of the merge scenarios: both scans see an open
// 443, the domain scan additionally resolves a TLS banner
func netscanAdapter() *testAdapter {
	return &testAdapter{
		name:     "netscan",
		category: "Network Security",
		columns:  []string{"port", "service", "banner"},
		parseFn: func(artifact *RawArtifact) ([]*Finding, error) {
			data := Data{"port": 443, "service": "https"}
			if artifact.Kind == KindDomain {
				data["banner"] = "TLSv1.3 cert=example.test"
			}
			return []*Finding{NewFinding("", "netscan", "Network Security", data)}, nil
		},
		mergeFn: func(fromIP, fromDomain []*Finding) ([]*Finding, error) {
			// same port+service: collapse, domain data wins
			if len(fromIP) == 1 && len(fromDomain) == 1 {
				merged := fromDomain[0]
				merged.Source = SourceBoth
				return []*Finding{merged}, nil
			}
			return append(fromIP, fromDomain...), nil
		},
	}
}

func TestCollectorMergesAcrossIdentifiers(t *testing.T) {
	repo := NewFindingRepo("-")
	registry := NewAdapterRegistry()
	registry.Register(netscanAdapter())

	collector := NewCollector(registry, repo, false)
	total, err := collector.Collect(context.Background(), manifestFor(testTarget(), "netscan"))
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 persisted finding, got %d", total)
	}

	stored, err := repo.Query(FindingQuery{Plugin: "netscan"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored finding, got %d", len(stored))
	}

	f := stored[0]
	if f.Source != SourceBoth {
		t.Errorf("expected source Both, got %s", f.Source)
	}
	if f.Data()["banner"] != "TLSv1.3 cert=example.test" {
		t.Errorf("merged finding lost the TLS banner: %v", f.Data())
	}
}

func TestCollectorDropsPlaceholderFindings(t *testing.T) {
	repo := NewFindingRepo("-")
	registry := NewAdapterRegistry()
	registry.Register(&testAdapter{
		name:     "netscan",
		category: "Network Security",
		parseFn: func(artifact *RawArtifact) ([]*Finding, error) {
			// ran successfully, found nothing actionable
			return []*Finding{NewFinding("", "netscan", "Network Security", Data{"status": "no_open_ports"})}, nil
		},
	})

	target := Target{Domain: "example.test"}
	collector := NewCollector(registry, repo, false)
	total, err := collector.Collect(context.Background(), manifestFor(target, "netscan"))
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no persisted findings, got %d", total)
	}

	stored, err := repo.Query(FindingQuery{Plugin: "netscan"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("placeholder finding reached the store: %v", stored[0].Data())
	}
}

func TestCollectorSingleKindTagsSource(t *testing.T) {
	tags := map[IdentKind]SourceTag{
		KindIP:     SourceIP,
		KindDomain: SourceDomain,
	}

	for kind, want := range tags {
		repo := NewFindingRepo("-")
		registry := NewAdapterRegistry()
		registry.Register(&testAdapter{
			name:     "netscan",
			category: "Network Security",
			parseFn: func(artifact *RawArtifact) ([]*Finding, error) {
				return []*Finding{NewFinding("", "netscan", "Network Security", Data{"port": 22})}, nil
			},
			// merge must not run at all for a single kind
			mergeFn: func(fromIP, fromDomain []*Finding) ([]*Finding, error) {
				t.Errorf("merge invoked for a single-kind manifest")
				return nil, nil
			},
		})

		target := Target{}
		if kind == KindIP {
			target.IP = "10.0.0.5"
		} else {
			target.Domain = "example.test"
		}

		collector := NewCollector(registry, repo, false)
		if _, err := collector.Collect(context.Background(), manifestFor(target, "netscan")); err != nil {
			t.Fatalf("collect failed: %v", err)
		}

		stored, err := repo.Query(FindingQuery{Plugin: "netscan"})
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(stored) != 1 {
			t.Fatalf("expected 1 finding, got %d", len(stored))
		}
		if stored[0].Source != want {
			t.Errorf("expected source %s, got %s", want, stored[0].Source)
		}
		if stored[0].Target != target.Ident(kind) {
			t.Errorf("expected target %s, got %s", target.Ident(kind), stored[0].Target)
		}
	}
}

func TestCollectorMergeErrorKeepsBothSets(t *testing.T) {
	repo := NewFindingRepo("-")
	registry := NewAdapterRegistry()

	adapter := netscanAdapter()
	adapter.mergeFn = func(fromIP, fromDomain []*Finding) ([]*Finding, error) {
		return nil, context.DeadlineExceeded
	}
	registry.Register(adapter)

	collector := NewCollector(registry, repo, false)
	total, err := collector.Collect(context.Background(), manifestFor(testTarget(), "netscan"))
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	// a failed merge must never drop data: both sets pass through
	if total != 2 {
		t.Fatalf("expected both unmerged findings persisted, got %d", total)
	}

	stored, _ := repo.Query(FindingQuery{Plugin: "netscan"})
	sources := map[SourceTag]int{}
	for _, f := range stored {
		sources[f.Source]++
	}
	if sources[SourceIP] != 1 || sources[SourceDomain] != 1 {
		t.Errorf("expected one IP and one Domain finding, got %v", sources)
	}
}

func TestCollectorPurgeOnStart(t *testing.T) {
	repo := NewFindingRepo("-")

	// a prior run's findings
	var prior []*Finding
	for i := 0; i < 10; i++ {
		prior = append(prior, NewFinding("10.0.0.5", "netscan", "Network Security", Data{"port": 1000 + i}))
	}
	if err := repo.Insert(prior...); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	registry := NewAdapterRegistry()
	registry.Register(&testAdapter{
		name:     "netscan",
		category: "Network Security",
		parseFn: func(artifact *RawArtifact) ([]*Finding, error) {
			return []*Finding{
				NewFinding("", "netscan", "Network Security", Data{"port": 22}),
				NewFinding("", "netscan", "Network Security", Data{"port": 80}),
				NewFinding("", "netscan", "Network Security", Data{"port": 443}),
			}, nil
		},
	})

	target := Target{IP: "10.0.0.5"}
	collector := NewCollector(registry, repo, true)
	if _, err := collector.Collect(context.Background(), manifestFor(target, "netscan")); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	stored, err := repo.Query(FindingQuery{Target: "10.0.0.5"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected exactly the 3 new findings, got %d", len(stored))
	}
}

func TestCollectorCancelledRunDiscardsUnpersisted(t *testing.T) {
	repo := NewFindingRepo("-")
	registry := NewAdapterRegistry()
	registry.Register(netscanAdapter())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	collector := NewCollector(registry, repo, false)
	if _, err := collector.Collect(ctx, manifestFor(testTarget(), "netscan")); err == nil {
		t.Fatal("expected a cancellation error")
	}

	stored, err := repo.Query(FindingQuery{Plugin: "netscan"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("cancelled run persisted %d findings", len(stored))
	}
}

func TestCollectorSkipsFailedAdapterOnly(t *testing.T) {
	repo := NewFindingRepo("-")
	registry := NewAdapterRegistry()
	registry.Register(netscanAdapter())
	registry.Register(&testAdapter{
		name:     "dnscheck",
		category: "DNS Health",
		parseFn: func(artifact *RawArtifact) ([]*Finding, error) {
			return []*Finding{NewFinding("", "dnscheck", "DNS Health", Data{"record_type": "A"})}, nil
		},
	})

	// dnscheck timed out in the scan phase: its artifacts never made
	// it into the manifest
	manifest := manifestFor(testTarget(), "netscan")
	manifest.Skipped = append(manifest.Skipped, SkippedScan{
		Plugin: "dnscheck",
		Kind:   KindIP,
		Err:    &ScanError{Plugin: "dnscheck", Kind: ScanTimeout, Err: context.DeadlineExceeded},
	})

	collector := NewCollector(registry, repo, false)
	if _, err := collector.Collect(context.Background(), manifest); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	if stored, _ := repo.Query(FindingQuery{Plugin: "dnscheck"}); len(stored) != 0 {
		t.Errorf("skipped adapter produced findings: %d", len(stored))
	}
	if stored, _ := repo.Query(FindingQuery{Plugin: "netscan"}); len(stored) != 1 {
		t.Errorf("surviving adapter lost findings: %d", len(stored))
	}
}

func TestMergeIdempotence(t *testing.T) {
	// merging with an empty counterpart set must yield the non-empty
	// set unchanged, tagged by its identifier kind
	repo := NewFindingRepo("-")
	registry := NewAdapterRegistry()

	adapter := netscanAdapter()
	adapter.parseFn = func(artifact *RawArtifact) ([]*Finding, error) {
		if artifact.Kind == KindDomain {
			return nil, nil
		}
		return []*Finding{NewFinding("", "netscan", "Network Security", Data{"port": 443, "service": "https"})}, nil
	}
	adapter.mergeFn = func(fromIP, fromDomain []*Finding) ([]*Finding, error) {
		t.Error("merge invoked although one set is empty")
		return nil, nil
	}
	registry.Register(adapter)

	collector := NewCollector(registry, repo, false)
	if _, err := collector.Collect(context.Background(), manifestFor(testTarget(), "netscan")); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	stored, _ := repo.Query(FindingQuery{Plugin: "netscan"})
	if len(stored) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(stored))
	}
	if stored[0].Source != SourceIP {
		t.Errorf("expected source IP, got %s", stored[0].Source)
	}
}

func TestRunnerTimeoutOmitsFromManifest(t *testing.T) {
	slow := &testAdapter{
		name:     "dnscheck",
		category: "DNS Health",
		scanFn: func(ctx context.Context, ident string, kind IdentKind) (*RawArtifact, error) {
			<-ctx.Done()
			return nil, &ScanError{Plugin: "dnscheck", Kind: ScanTimeout, Err: ctx.Err()}
		},
	}
	fast := &testAdapter{name: "netscan", category: "Network Security"}

	enabled := []EnabledAdapter{
		{Adapter: slow, Level: LevelEasy},
		{Adapter: fast, Level: LevelEasy},
	}

	runner := NewRunner(enabled, t.TempDir(), 50*time.Millisecond)
	manifest, err := runner.Run(context.Background(), testTarget())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, a := range manifest.Artifacts {
		if a.Plugin == "dnscheck" {
			t.Errorf("timed-out adapter present in manifest")
		}
	}

	// both kinds of the fast adapter made it
	byKind := manifest.ByPlugin("netscan")
	if len(byKind) != 2 {
		t.Errorf("expected 2 netscan artifacts, got %d", len(byKind))
	}

	if len(manifest.Skipped) != 2 {
		t.Errorf("expected 2 skipped scans, got %d", len(manifest.Skipped))
	}
}

package prowl

import (
	"fmt"
	"net"
	"sort"

	"github.com/pkg/errors"
)

// Category priority for report sectioning. Unknown categories land
// between DNS/web material and the catch-all.
var categoryPriority = map[string]int{
	"Network Security":     0,
	"Application Security": 1,
	"DNS Health":           2,
	"Vulnerability Scan":   3,
	"Web Catalog & Crawl":  4,
	"OSINT / Metadata":     5,
	"Database Security":    6,
	"Cloud & API Exposure": 7,
	"General Info":         99,
}

const unknownCategoryPriority = 50

func CategoryPriority(category string) int {
	if p, ok := categoryPriority[category]; ok {
		return p
	}
	return unknownCategoryPriority
}

// Optional adapter capability: names the data field findings should
// be ordered by within a report group, e.g. "port".
type SortKeyer interface {
	SortKey() string
}

// One plugin's block inside a report section. Column layout is
// resolved once per plugin per report and applied to every row.
type PluginGroup struct {
	Plugin     string
	Columns    []string
	WideFields map[string]struct{}
	Summary    string
	Findings   []*Finding
}

// One category's block of the report, plugins in first-seen order.
type Section struct {
	Category string
	Groups   []*PluginGroup
}

// The renderer-agnostic report structure: sections in category
// priority order, targets ip-first.
type Report struct {
	Targets  []string
	Sections []*Section
}

// Aggregator assembles stored findings into the structure renderers
// consume. It performs no formatting of any kind.
type Aggregator struct {
	registry *AdapterRegistry
	repo     *FindingRepo
}

func NewAggregator(registry *AdapterRegistry, repo *FindingRepo) *Aggregator {
	return &Aggregator{registry: registry, repo: repo}
}

// Builds the report for the given targets. An empty target list
// aggregates everything in the store.
func (a *Aggregator) Aggregate(targets ...string) (*Report, error) {
	findings, err := a.load(targets)
	if err != nil {
		return nil, err
	}

	// category -> plugin -> findings, tracking first-seen order
	type groupKey struct{ category, plugin string }
	grouped := make(map[groupKey][]*Finding)
	var order []groupKey
	for _, f := range findings {
		k := groupKey{f.Category, f.Plugin}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], f)
	}

	sections := make(map[string]*Section)
	var categories []string
	for _, k := range order {
		sec, ok := sections[k.category]
		if !ok {
			sec = &Section{Category: k.category}
			sections[k.category] = sec
			categories = append(categories, k.category)
		}
		sec.Groups = append(sec.Groups, a.makeGroup(k.plugin, grouped[k]))
	}

	sort.SliceStable(categories, func(i, j int) bool {
		return CategoryPriority(categories[i]) < CategoryPriority(categories[j])
	})

	report := &Report{Targets: orderTargets(findings)}
	for _, cat := range categories {
		report.Sections = append(report.Sections, sections[cat])
	}
	return report, nil
}

func (a *Aggregator) load(targets []string) ([]*Finding, error) {
	if len(targets) == 0 {
		return a.repo.All()
	}

	var findings []*Finding
	for _, t := range targets {
		found, err := a.repo.Query(FindingQuery{Target: t})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load findings for %s", t)
		}
		findings = append(findings, found...)
	}
	return findings, nil
}

// resolves the adapter's column layout exactly once and orders the
// group deterministically: target, then the adapter's sort key when
// present in data, then insertion order
func (a *Aggregator) makeGroup(plugin string, findings []*Finding) *PluginGroup {
	group := &PluginGroup{
		Plugin:     plugin,
		WideFields: make(map[string]struct{}),
		Findings:   findings,
	}

	adapter, ok := a.registry.Get(plugin)
	if !ok {
		// adapter no longer registered; rows render with the union of
		// their own fields, in first-seen order
		group.Columns = unionColumns(findings)
		sortGroup(group, "")
		return group
	}

	group.Columns = adapter.ColumnOrder()
	for _, w := range adapter.WideFields() {
		group.WideFields[w] = struct{}{}
	}

	var sortKey string
	if sk, ok := adapter.(SortKeyer); ok {
		sortKey = sk.SortKey()
	}
	sortGroup(group, sortKey)

	if sum, ok := adapter.(Summarizer); ok {
		group.Summary = sum.Summary(findings)
	}
	return group
}

func sortGroup(g *PluginGroup, sortKey string) {
	sort.SliceStable(g.Findings, func(i, j int) bool {
		a, b := g.Findings[i], g.Findings[j]
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if sortKey != "" {
			av, aok := a.Data()[sortKey]
			bv, bok := b.Data()[sortKey]
			if aok && bok {
				if c := compareValues(av, bv); c != 0 {
					return c < 0
				}
			}
		}
		// insertion order
		return a.ID < b.ID
	})
}

func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

func unionColumns(findings []*Finding) []string {
	var cols []string
	seen := make(map[string]struct{})
	for _, f := range findings {
		for k := range f.Data() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return cols
}

// ip identifiers sort before domains, each group alphabetically
func orderTargets(findings []*Finding) []string {
	seen := make(map[string]struct{})
	var ips, domains []string
	for _, f := range findings {
		if _, ok := seen[f.Target]; ok {
			continue
		}
		seen[f.Target] = struct{}{}

		if net.ParseIP(f.Target) != nil {
			ips = append(ips, f.Target)
			continue
		}
		domains = append(domains, f.Target)
	}
	sort.Strings(ips)
	sort.Strings(domains)
	return append(ips, domains...)
}

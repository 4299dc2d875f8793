package prowl

import (
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type DatabaseLocation string

const (
	NO_DATABASE       DatabaseLocation = ""
	INMEMORY_DATABASE DatabaseLocation = ":memory:"
)

type Repository interface {
	WithTransaction(fn func(*gorm.DB) error) error
	connect() (*gorm.DB, error)
}

type repository struct {
	db *gorm.DB

	location string
	config   *gorm.Config
	models   []any
}

// do whatever within a separate transaction
func (r *repository) WithTransaction(fn func(conn *gorm.DB) error) error {
	if _, err := r.connect(); err != nil {
		return err
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

func (r *repository) connect() (*gorm.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := gorm.Open(sqlite.Open(r.location), r.config)
	if err != nil {
		return nil, &StoreError{Kind: StoreConnectionLost, Err: errors.Wrap(err, "failed to open database connection")}
	}

	db = db.Exec("PRAGMA foreign_keys = ON")
	if err := db.AutoMigrate(r.models...); err != nil {
		return nil, &StoreError{Kind: StoreConnectionLost, Err: err}
	}
	r.db = db

	return db, nil
}

// maps a gorm error onto the store taxonomy
func storeErr(err error, msg string) error {
	if err == nil {
		return nil
	}

	kind := StoreConnectionLost
	if strings.Contains(strings.ToLower(err.Error()), "constraint") {
		kind = StoreConstraintViolation
	}
	return &StoreError{Kind: kind, Err: errors.Wrap(err, msg)}
}

// Query filter for stored findings. Zero-value fields are ignored.
type FindingQuery struct {
	Target   string
	Plugin   string
	Category string
}

func (q FindingQuery) conds() *Finding {
	return &Finding{Target: q.Target, Plugin: q.Plugin, Category: q.Category}
}

// The append-only finding store. Rows are never updated in place;
// a run either accumulates on top of prior runs or purges a target
// first. Query results are cached per target and expired on writes.
type FindingRepo struct {
	Repository
	cache *expirable.LRU[string, []*Finding]
}

func (r *FindingRepo) Insert(f ...*Finding) error {
	if len(f) == 0 {
		return nil
	}

	for _, finding := range f {
		if err := finding.pack(); err != nil {
			return &StoreError{Kind: StoreConstraintViolation, Err: errors.Wrap(err, "failed to encode finding data")}
		}
	}

	return r.WithTransaction(func(d *gorm.DB) error {
		q := d.Create(f)
		if err := q.Error; err != nil {
			return storeErr(err, "failed to create finding(s)")
		}

		for _, finding := range f {
			r.cache.Remove(finding.Target)
		}
		return nil
	})
}

// Removes every stored finding for the target identifier.
func (r *FindingRepo) Purge(target string) error {
	return r.WithTransaction(func(d *gorm.DB) error {
		q := d.Unscoped().Where(&Finding{Target: target}).Delete(&Finding{})
		if err := q.Error; err != nil {
			return storeErr(err, "failed to purge findings")
		}

		r.cache.Remove(target)
		return nil
	})
}

func (r *FindingRepo) Query(filter FindingQuery) ([]*Finding, error) {
	// only plain by-target lookups hit the cache; they are what the
	// aggregator issues per report
	cacheable := filter.Target != "" && filter.Plugin == "" && filter.Category == ""
	if cacheable {
		if found, ok := r.cache.Get(filter.Target); ok {
			return found, nil
		}
	}

	var findings []*Finding
	err := r.WithTransaction(func(d *gorm.DB) error {
		q := d.Where(filter.conds()).Order("id").Find(&findings)
		if err := q.Error; err != nil {
			return storeErr(err, "failed to find findings")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, f := range findings {
		if err := f.unpack(); err != nil {
			return nil, &StoreError{Kind: StoreConstraintViolation, Err: errors.Wrap(err, "failed to decode finding data")}
		}
	}

	if cacheable {
		r.cache.Add(filter.Target, findings)
	}
	return findings, nil
}

// Returns every stored finding, ordered by insertion.
func (r *FindingRepo) All() ([]*Finding, error) {
	return r.Query(FindingQuery{})
}

type repositoryBuilder struct {
	home     string
	location string
	config   *gorm.Config
	models   []any
}

func newRepositoryBuilder(home string) *repositoryBuilder {
	return &repositoryBuilder{
		home: home,
		config: &gorm.Config{
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		},
	}
}

func (b *repositoryBuilder) setLocation(name string) *repositoryBuilder {
	b.location = name
	return b
}

func (b *repositoryBuilder) setName(n string) *repositoryBuilder {
	switch b.home {
	case "-":
		return b.setLocation(string(INMEMORY_DATABASE))
	default:
		return b.setLocation(path.Join(b.home, n))
	}
}

func (b *repositoryBuilder) setModels(m []any) *repositoryBuilder {
	b.models = m
	return b
}

func (b *repositoryBuilder) reset() {
	b.models = nil
	b.location = ""
}

func (b *repositoryBuilder) build() *repository {
	repo := &repository{
		config:   b.config,
		location: b.location,
		models:   b.models,
	}
	defer b.reset()
	return repo
}

// Opens the finding store under home. Pass "-" for an in-memory
// database, which tests rely on.
func NewFindingRepo(home string) *FindingRepo {
	b := newRepositoryBuilder(home)
	repo := b.setModels([]any{&Finding{}}).setName("findings.db").build()

	cache := expirable.NewLRU[string, []*Finding](64, nil, 5*time.Minute)
	return &FindingRepo{repo, cache}
}

// Package register serves named, tenant-scoped registers from a
// store.RecordStore.
//
// A Registry resolves register names to *Register handles, creating each
// handle at most once per process. Handles are cheap and hold no data; every
// read goes to the store's current generation.
package register

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/registers/entry"
	"github.com/acksell/registers/ingest"
	"github.com/acksell/registers/store"
)

var (
	// ErrTenantNotFound is returned for a register with no published data.
	ErrTenantNotFound = errors.New("register not found")
	// ErrEmptyResult is returned by FindLatest when nothing matches. It is
	// also a store.ErrNotFound.
	ErrEmptyResult = fmt.Errorf("empty result: %w", store.ErrNotFound)
)

// Loader runs an ingestion for a register. *ingest.Pipeline implements it.
type Loader interface {
	Run(ctx context.Context, tenant, source string) (ingest.Report, error)
}

// Result is one page of a Find.
type Result struct {
	Meta    store.Meta    `json:"meta"`
	Entries []entry.Entry `json:"entries"`
}

// Schema returns the field names of the first entry, "name" first.
func (r Result) Schema() []string {
	return entry.SchemaOf(r.Entries)
}

// Register is a handle on one register.
type Register struct {
	name       string
	store      store.RecordStore
	loader     Loader
	pageSize   int
	archiveURL func(name string) string
}

// Name returns the canonical lower-case register name.
func (r *Register) Name() string {
	return r.name
}

// Get returns the entry with the given hash.
func (r *Register) Get(ctx context.Context, hash string) (entry.Entry, error) {
	return r.store.Get(ctx, r.name, hash)
}

// Find returns one page of entries matching q, most recently ingested first
// unless q orders them.
func (r *Register) Find(ctx context.Context, q store.Query, page int) (Result, error) {
	meta, entries, err := r.store.Find(ctx, r.name, q, page, r.pageSize)
	if err != nil {
		return Result{}, err
	}
	return Result{Meta: meta, Entries: entries}, nil
}

// FindLatest returns the most recently ingested entry matching q.
func (r *Register) FindLatest(ctx context.Context, q store.Query) (entry.Entry, error) {
	res, err := r.Find(ctx, q, 1)
	if err != nil {
		return entry.Entry{}, err
	}
	if len(res.Entries) == 0 {
		return entry.Entry{}, fmt.Errorf("register %q: %w", r.name, ErrEmptyResult)
	}
	return res.Entries[0], nil
}

// Load ingests source into a new generation and publishes it. An empty
// source loads the register's configured archive.
func (r *Register) Load(ctx context.Context, source string) (ingest.Report, error) {
	if r.loader == nil {
		return ingest.Report{}, fmt.Errorf("register %q: no loader configured", r.name)
	}
	if source == "" {
		if r.archiveURL == nil {
			return ingest.Report{}, fmt.Errorf("register %q: no source and no archive configured", r.name)
		}
		source = r.archiveURL(r.name)
	}
	return r.loader.Run(ctx, r.name, source)
}

// Generation returns the id of the current generation.
func (r *Register) Generation(ctx context.Context) (string, error) {
	return r.store.CurrentGeneration(ctx, r.name)
}

// Package store defines the persistence contract a register is served from.
//
// A RecordStore keeps, per tenant, any number of generations of entries and
// a pointer naming the current one. Reads only ever see the current
// generation. Writers fill a fresh generation with BulkWrite and publish it
// with a single SetCurrentGeneration call, so readers observe either the
// whole old generation or the whole new one.
package store

import (
	"context"
	"errors"

	"github.com/acksell/registers/entry"
)

var (
	// ErrNotFound is returned when a tenant, generation or entry does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPage is returned for page numbers or sizes below one.
	ErrInvalidPage = errors.New("invalid page")
	// ErrConflict is returned by SetCurrentGeneration when another writer
	// moved the pointer after it was read.
	ErrConflict = errors.New("generation pointer changed concurrently")
)

// RecordStore is implemented by the storage backends.
//
// Implementations must be safe for concurrent use. No method retries or
// imposes a timeout; callers bound blocking calls through ctx.
type RecordStore interface {
	// Get returns the entry with the given hash in the tenant's current
	// generation.
	Get(ctx context.Context, tenant, hash string) (entry.Entry, error)
	// Find returns one page of the current generation's entries matching q,
	// most recently written first unless q.OrderBy is set. Pages are
	// 1-indexed; a page past the end is empty but Meta.Total is still set.
	Find(ctx context.Context, tenant string, q Query, page, pageSize int) (Meta, []entry.Entry, error)
	// CollectionExists reports whether the tenant has a current generation.
	CollectionExists(ctx context.Context, tenant string) (bool, error)
	// CurrentGeneration returns the id of the tenant's current generation.
	CurrentGeneration(ctx context.Context, tenant string) (string, error)
	// BulkWrite adds entries to a generation, upserting by hash. Writing to
	// a generation that is not current is invisible to readers.
	BulkWrite(ctx context.Context, tenant, generation string, entries []entry.Entry) error
	// SetCurrentGeneration atomically repoints the tenant at generation. It
	// fails with ErrConflict rather than overwrite a concurrent swap.
	SetCurrentGeneration(ctx context.Context, tenant, generation string) error
	// DropGeneration deletes a generation's entries. Dropping the current
	// generation is an error.
	DropGeneration(ctx context.Context, tenant, generation string) error
	Close() error
}

// Meta describes a page of results.
type Meta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Pages returns the number of pages needed to hold Total entries.
func (m Meta) Pages() int {
	if m.PageSize < 1 {
		return 0
	}
	return (m.Total + m.PageSize - 1) / m.PageSize
}

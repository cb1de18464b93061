// Package storetest holds the behavioural tests every store.RecordStore
// backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/acksell/registers/entry"
	"github.com/acksell/registers/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. It should register its own cleanup.
type Factory func(t *testing.T) store.RecordStore

// Country builds a one-field entry used throughout the suite.
func Country(name string) entry.Entry {
	return entry.New(entry.Fields{"name": entry.String(name)})
}

// Countries builds n distinct entries in write order.
func Countries(n int) []entry.Entry {
	out := make([]entry.Entry, n)
	for i := range out {
		out[i] = Country(fmt.Sprintf("country-%03d", i))
	}
	return out
}

// Publish writes entries into generation and makes it current.
func Publish(t *testing.T, s store.RecordStore, tenant, generation string, entries []entry.Entry) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.BulkWrite(ctx, tenant, generation, entries))
	require.NoError(t, s.SetCurrentGeneration(ctx, tenant, generation))
}

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("UnknownTenant", func(t *testing.T) { testUnknownTenant(t, newStore(t)) })
	t.Run("GetAfterPublish", func(t *testing.T) { testGetAfterPublish(t, newStore(t)) })
	t.Run("UnpublishedInvisible", func(t *testing.T) { testUnpublishedInvisible(t, newStore(t)) })
	t.Run("MostRecentFirst", func(t *testing.T) { testMostRecentFirst(t, newStore(t)) })
	t.Run("Pagination", func(t *testing.T) { testPagination(t, newStore(t)) })
	t.Run("Search", func(t *testing.T) { testSearch(t, newStore(t)) })
	t.Run("OrderBy", func(t *testing.T) { testOrderBy(t, newStore(t)) })
	t.Run("UpsertByHash", func(t *testing.T) { testUpsertByHash(t, newStore(t)) })
	t.Run("GenerationSwap", func(t *testing.T) { testGenerationSwap(t, newStore(t)) })
	t.Run("DropGeneration", func(t *testing.T) { testDropGeneration(t, newStore(t)) })
	t.Run("TenantIsolation", func(t *testing.T) { testTenantIsolation(t, newStore(t)) })
	t.Run("ConcurrentReadsDuringSwap", func(t *testing.T) { testConcurrentReadsDuringSwap(t, newStore(t)) })
}

func testUnknownTenant(t *testing.T, s store.RecordStore) {
	ctx := context.Background()

	exists, err := s.CollectionExists(ctx, "country")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Get(ctx, "country", Country("France").Hash)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CurrentGeneration(ctx, "country")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, _, err = s.Find(ctx, "country", store.Query{}, 1, 10)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testGetAfterPublish(t *testing.T, s store.RecordStore) {
	ctx := context.Background()
	france := entry.New(entry.Fields{
		"name":   entry.String("France"),
		"fields": entry.List("name", "official-name"),
	})
	Publish(t, s, "country", "gen-1", []entry.Entry{france})

	exists, err := s.CollectionExists(ctx, "country")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.Get(ctx, "country", france.Hash)
	require.NoError(t, err)
	assert.Equal(t, france, got)

	_, err = s.Get(ctx, "country", Country("Spain").Hash)
	assert.ErrorIs(t, err, store.ErrNotFound)

	gen, err := s.CurrentGeneration(ctx, "country")
	require.NoError(t, err)
	assert.Equal(t, "gen-1", gen)
}

func testUnpublishedInvisible(t *testing.T, s store.RecordStore) {
	ctx := context.Background()
	Publish(t, s, "country", "gen-1", []entry.Entry{Country("France")})

	require.NoError(t, s.BulkWrite(ctx, "country", "gen-2", []entry.Entry{Country("Spain")}))

	_, err := s.Get(ctx, "country", Country("Spain").Hash)
	assert.ErrorIs(t, err, store.ErrNotFound)

	meta, got, err := s.Find(ctx, "country", store.Query{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Total)
	assert.Equal(t, []entry.Entry{Country("France")}, got)
}

func testMostRecentFirst(t *testing.T, s store.RecordStore) {
	ctx := context.Background()
	entries := Countries(5)
	// Two writes to the same generation keep a single write order.
	require.NoError(t, s.BulkWrite(ctx, "country", "gen-1", entries[:3]))
	require.NoError(t, s.BulkWrite(ctx, "country", "gen-1", entries[3:]))
	require.NoError(t, s.SetCurrentGeneration(ctx, "country", "gen-1"))

	_, got, err := s.Find(ctx, "country", store.Query{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i := range got {
		assert.Equal(t, entries[len(entries)-1-i], got[i])
	}
}

func testPagination(t *testing.T, s store.RecordStore) {
	ctx := context.Background()
	const n, size = 23, 5
	Publish(t, s, "country", "gen-1", Countries(n))

	for page := 1; page <= 6; page++ {
		meta, got, err := s.Find(ctx, "country", store.Query{}, page, size)
		require.NoError(t, err)
		assert.Equal(t, store.Meta{Total: n, Page: page, PageSize: size}, meta)
		assert.Len(t, got, min(size, max(0, n-(page-1)*size)), "page %d", page)
	}

	_, _, err := s.Find(ctx, "country", store.Query{}, 0, size)
	assert.ErrorIs(t, err, store.ErrInvalidPage)
}

func testSearch(t *testing.T, s store.RecordStore) {
	ctx := context.Background()
	Publish(t, s, "country", "gen-1", []entry.Entry{Country("France")})

	q := store.Query{}.Where("name", store.Contains("fra"))
	meta, got, err := s.Find(ctx, "country", q, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Total)
	assert.Equal(t, []entry.Entry{Country("France")}, got)

	q = store.Query{}.Where("name", store.Exact("fra"))
	meta, got, err = s.Find(ctx, "country", q, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Total)
	assert.Empty(t, got)
}

func testOrderBy(t *testing.T, s store.RecordStore) {
	ctx := context.Background()
	Publish(t, s, "country", "gen-1", []entry.Entry{Country("b"), Country("c"), Country("a")})

	_, got, err := s.Find(ctx, "country", store.Query{OrderBy: "name"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []entry.Entry{Country("a"), Country("b"), Country("c")}, got)
}

func testUpsertByHash(t *testing.T, s store.RecordStore) {
	ctx := context.Background()
	france, spain := Country("France"), Country("Spain")
	require.NoError(t, s.BulkWrite(ctx, "country", "gen-1", []entry.Entry{france, spain}))
	require.NoError(t, s.BulkWrite(ctx, "country", "gen-1", []entry.Entry{france}))
	require.NoError(t, s.SetCurrentGeneration(ctx, "country", "gen-1"))

	meta, got, err := s.Find(ctx, "country", store.Query{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Total)
	assert.Equal(t, []entry.Entry{france, spain}, got)
}

func testGenerationSwap(t *testing.T, s store.RecordStore) {
	ctx := context.Background()
	Publish(t, s, "country", "gen-1", []entry.Entry{Country("France")})
	Publish(t, s, "country", "gen-2", []entry.Entry{Country("Spain"), Country("Italy")})

	meta, got, err := s.Find(ctx, "country", store.Query{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Total)
	assert.Equal(t, []entry.Entry{Country("Italy"), Country("Spain")}, got)

	_, err = s.Get(ctx, "country", Country("France").Hash)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDropGeneration(t *testing.T, s store.RecordStore) {
	ctx := context.Background()
	Publish(t, s, "country", "gen-1", []entry.Entry{Country("France")})
	require.NoError(t, s.BulkWrite(ctx, "country", "gen-2", Countries(3)))

	require.NoError(t, s.DropGeneration(ctx, "country", "gen-2"))
	assert.Error(t, s.DropGeneration(ctx, "country", "gen-1"), "current generation cannot be dropped")

	// A dropped generation published later is empty.
	require.NoError(t, s.SetCurrentGeneration(ctx, "country", "gen-2"))
	meta, _, err := s.Find(ctx, "country", store.Query{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Total)
}

func testTenantIsolation(t *testing.T, s store.RecordStore) {
	ctx := context.Background()
	Publish(t, s, "country", "gen-1", []entry.Entry{Country("France")})
	Publish(t, s, "territory", "gen-1", []entry.Entry{Country("Gibraltar")})

	_, err := s.Get(ctx, "country", Country("Gibraltar").Hash)
	assert.ErrorIs(t, err, store.ErrNotFound)

	meta, _, err := s.Find(ctx, "territory", store.Query{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Total)
}

// Readers running while generations are swapped must only ever see one
// complete generation.
func testConcurrentReadsDuringSwap(t *testing.T, s store.RecordStore) {
	ctx := context.Background()
	small, large := Countries(3), Countries(8)
	Publish(t, s, "country", "gen-0", small)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 8)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				meta, got, err := s.Find(ctx, "country", store.Query{}, 1, 100)
				if err != nil {
					errs <- err
					return
				}
				if meta.Total != len(got) || (meta.Total != len(small) && meta.Total != len(large)) {
					errs <- fmt.Errorf("observed partial generation: total=%d len=%d", meta.Total, len(got))
					return
				}
			}
		}()
	}

	for i := 1; i <= 10; i++ {
		set := small
		if i%2 == 1 {
			set = large
		}
		Publish(t, s, "country", fmt.Sprintf("gen-%d", i), set)
	}
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

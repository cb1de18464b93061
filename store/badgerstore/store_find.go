package badgerstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/acksell/registers/entry"
	"github.com/acksell/registers/store"
	"github.com/dgraph-io/badger/v4"
)

// Find returns one page of the current generation's entries matching q.
func (s *Store) Find(ctx context.Context, tenant string, q store.Query, page, pageSize int) (store.Meta, []entry.Entry, error) {
	if err := ctx.Err(); err != nil {
		return store.Meta{}, nil, err
	}
	if page < 1 || pageSize < 1 {
		return store.Meta{}, nil, store.ErrInvalidPage
	}

	var (
		meta    store.Meta
		entries []entry.Entry
	)
	err := s.db.View(func(txn *badger.Txn) error {
		gen, err := currentGeneration(txn, tenant)
		if err != nil {
			return err
		}

		// Unfiltered, unordered listings only decode the requested window.
		if len(q.Match) == 0 && q.OrderBy == "" {
			meta, entries, err = findWindow(txn, tenant, gen, page, pageSize)
			return err
		}

		all, err := scanGeneration(txn, tenant, gen, nil)
		if err != nil {
			return err
		}
		meta, entries, err = store.Paginate(all, q, page, pageSize)
		return err
	})
	if err != nil {
		return store.Meta{}, nil, err
	}
	return meta, entries, nil
}

// findWindow counts the generation's keys and decodes only the page.
func findWindow(txn *badger.Txn, tenant, gen string, page, pageSize int) (store.Meta, []entry.Entry, error) {
	prefix := sequencePrefix(tenant, gen)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	total := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		total++
	}
	it.Close()

	start, end, err := store.Window(total, page, pageSize)
	if err != nil {
		return store.Meta{}, nil, err
	}
	meta := store.Meta{Total: total, Page: page, PageSize: pageSize}
	if start == end {
		return meta, []entry.Entry{}, nil
	}

	window := &[2]int{start, end}
	entries, err := scanGeneration(txn, tenant, gen, window)
	if err != nil {
		return store.Meta{}, nil, err
	}
	return meta, entries, nil
}

// scanGeneration returns the generation's entries most recent first. If
// window is set, only positions [window[0], window[1]) are decoded.
func scanGeneration(txn *badger.Txn, tenant, gen string, window *[2]int) ([]entry.Entry, error) {
	prefix := sequencePrefix(tenant, gen)

	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var entries []entry.Entry
	pos := 0
	for it.Seek(incrementBytes(prefix)); it.Valid(); it.Next() {
		if !bytes.HasPrefix(it.Item().Key(), prefix) {
			break
		}
		if window != nil {
			if pos >= window[1] {
				break
			}
			if pos < window[0] {
				pos++
				continue
			}
		}
		pos++

		hash, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("read sequence index: %w", err)
		}
		r, err := getRecord(txn, tenant, gen, string(hash))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry.Entry{Hash: string(hash), Fields: r.Fields})
	}
	return entries, nil
}

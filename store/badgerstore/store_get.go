package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/registers/entry"
	"github.com/acksell/registers/store"
	"github.com/dgraph-io/badger/v4"
)

// Get retrieves an entry of the tenant's current generation by hash.
func (s *Store) Get(ctx context.Context, tenant, hash string) (entry.Entry, error) {
	if err := ctx.Err(); err != nil {
		return entry.Entry{}, err
	}

	var e entry.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		gen, err := currentGeneration(txn, tenant)
		if err != nil {
			return err
		}
		r, err := getRecord(txn, tenant, gen, hash)
		if err != nil {
			return err
		}
		e = entry.Entry{Hash: hash, Fields: r.Fields}
		return nil
	})
	if err != nil {
		return entry.Entry{}, err
	}
	return e, nil
}

func getRecord(txn *badger.Txn, tenant, gen, hash string) (record, error) {
	item, err := txn.Get(hashKey(tenant, gen, hash))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record{}, fmt.Errorf("entry %s: %w", hash, store.ErrNotFound)
	}
	if err != nil {
		return record{}, fmt.Errorf("get entry %s: %w", hash, err)
	}
	var r record
	err = item.Value(func(val []byte) error {
		r, err = decodeRecord(val)
		return err
	})
	return r, err
}

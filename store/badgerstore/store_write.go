package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/registers/entry"
	"github.com/acksell/registers/store"
	"github.com/dgraph-io/badger/v4"
)

// BulkWrite adds entries to a generation in a single transaction. An entry
// whose hash is already present moves to the most recent position.
func (s *Store) BulkWrite(ctx context.Context, tenant, generation string, entries []entry.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if generation == "" {
		return fmt.Errorf("generation is required")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		next, err := readNextSeq(txn, tenant, generation)
		if err != nil {
			return err
		}

		for _, e := range entries {
			key := hashKey(tenant, generation, e.Hash)

			// Drop the old position of a re-written hash.
			old, err := getRecord(txn, tenant, generation, e.Hash)
			switch {
			case err == nil:
				if err := txn.Delete(sequenceKey(tenant, generation, old.Seq)); err != nil {
					return fmt.Errorf("delete sequence %d: %w", old.Seq, err)
				}
			case !errors.Is(err, store.ErrNotFound):
				return err
			}

			val, err := encodeRecord(record{Seq: next, Fields: e.Fields})
			if err != nil {
				return err
			}
			if err := txn.Set(key, val); err != nil {
				return fmt.Errorf("set entry %s: %w", e.Hash, err)
			}
			if err := txn.Set(sequenceKey(tenant, generation, next), []byte(e.Hash)); err != nil {
				return fmt.Errorf("set sequence %d: %w", next, err)
			}
			next++
		}

		return txn.Set(nextSeqKey(tenant, generation), encodeUint64(next))
	})
	if err != nil {
		return fmt.Errorf("bulk write %s/%s: %w", tenant, generation, err)
	}
	return nil
}

func readNextSeq(txn *badger.Txn, tenant, generation string) (uint64, error) {
	item, err := txn.Get(nextSeqKey(tenant, generation))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read sequence counter: %w", err)
	}
	var next uint64
	err = item.Value(func(val []byte) error {
		next, err = decodeUint64(val)
		return err
	})
	return next, err
}

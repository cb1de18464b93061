package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/registers/store"
	"github.com/dgraph-io/badger/v4"
)

// SetCurrentGeneration repoints the tenant at generation with a single key
// write, then drops the superseded generation. Readers that started before
// the swap keep their snapshot, so the drop never shows them partial data.
func (s *Store) SetCurrentGeneration(ctx context.Context, tenant, generation string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if generation == "" {
		return fmt.Errorf("generation is required")
	}

	var previous string
	err := s.db.Update(func(txn *badger.Txn) error {
		prev, err := currentGeneration(txn, tenant)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		previous = prev
		return txn.Set(pointerKey(tenant), []byte(generation))
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("set current generation %s/%s: %w", tenant, generation, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("set current generation %s/%s: %w", tenant, generation, err)
	}

	if previous != "" && previous != generation {
		if err := s.dropGeneration(tenant, previous); err != nil {
			// The swap is committed; a leftover generation only costs space.
			s.log.Warn("drop superseded generation",
				"register", tenant, "generation", previous, "error", err)
		}
	}
	return nil
}

// DropGeneration deletes every entry of a generation that is not current.
func (s *Store) DropGeneration(ctx context.Context, tenant, generation string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	current, err := s.CurrentGeneration(ctx, tenant)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if current == generation {
		return fmt.Errorf("drop generation %s/%s: generation is current", tenant, generation)
	}
	return s.dropGeneration(tenant, generation)
}

func (s *Store) dropGeneration(tenant, generation string) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		for _, prefix := range [][]byte{sequencePrefix(tenant, generation), hashPrefix(tenant, generation)} {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("list generation %s/%s: %w", tenant, generation, err)
	}
	keys = append(keys, nextSeqKey(tenant, generation))

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("drop generation %s/%s: %w", tenant, generation, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("drop generation %s/%s: %w", tenant, generation, err)
	}
	s.log.Debug("dropped generation", "register", tenant, "generation", generation, "keys", len(keys))
	return nil
}

// Package badgerstore is a store.RecordStore backed by BadgerDB.
//
// Every read runs inside a single Badger read transaction, so the generation
// pointer and the entries it names are always read from the same snapshot.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/acksell/registers/store"
	"github.com/dgraph-io/badger/v4"
)

// Store is a RecordStore backed by BadgerDB.
type Store struct {
	db  *badger.DB
	log *slog.Logger
}

var _ store.RecordStore = (*Store)(nil)

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger receives store and BadgerDB logs. If nil, BadgerDB logging is
	// disabled and store logs go to slog.Default().
	Logger *slog.Logger
}

// New opens a BadgerDB-backed record store.
func New(opts StoreOptions) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)

	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	logger := opts.Logger
	if logger != nil {
		badgerOpts = badgerOpts.WithLogger(newBadgerLogger(logger))
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
		logger = slog.Default()
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	return &Store{
		db:  db,
		log: logger.With("component", "badgerstore"),
	}, nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CollectionExists reports whether the tenant has a current generation.
func (s *Store) CollectionExists(ctx context.Context, tenant string) (bool, error) {
	_, err := s.CurrentGeneration(ctx, tenant)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CurrentGeneration returns the tenant's current generation id.
func (s *Store) CurrentGeneration(ctx context.Context, tenant string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var gen string
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		gen, err = currentGeneration(txn, tenant)
		return err
	})
	return gen, err
}

// currentGeneration reads the generation pointer inside txn.
func currentGeneration(txn *badger.Txn, tenant string) (string, error) {
	item, err := txn.Get(pointerKey(tenant))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("register %q: %w", tenant, store.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read generation pointer: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", fmt.Errorf("read generation pointer: %w", err)
	}
	return string(val), nil
}

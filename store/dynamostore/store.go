// Package dynamostore is a store.RecordStore backed by a DynamoDB table.
//
// The table needs a string partition key "pk" and a string sort key "sk".
// Each entry is written twice: once under a write-ordered sort key for
// listings and once under its hash for lookups. Publishing a generation is
// a single PutItem of the tenant's pointer item.
//
// DynamoDB reads are not snapshot-isolated, so superseded generations are
// kept for one extra swap and readers validate the pointer after reading.
// A reader therefore never observes a generation while it is being dropped.
package dynamostore

import (
	"fmt"
	"log/slog"

	"github.com/acksell/registers/store"
)

const (
	// batchWriteLimit is DynamoDB's maximum number of requests per BatchWriteItem.
	batchWriteLimit = 25

	defaultMaxAttempts = 8
	// readAttempts bounds re-reads when a generation is retired mid-read.
	readAttempts = 3
)

// Store is a RecordStore backed by DynamoDB.
type Store struct {
	client Client
	table  string
	opts   options
}

var _ store.RecordStore = (*Store)(nil)

type options struct {
	log         *slog.Logger
	backoff     BackoffFunc
	maxAttempts int
}

// Option configures a Store.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithBackoff sets the wait between re-submissions of unprocessed batch items.
func WithBackoff(fn BackoffFunc) Option {
	return func(o *options) {
		o.backoff = fn
	}
}

// WithMaxAttempts bounds how many times a batch with unprocessed items is
// submitted before BulkWrite fails.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// New returns a store using the given table.
func New(client Client, table string, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("dynamodb client is required")
	}
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	o := options{
		log:         slog.Default(),
		backoff:     DefaultBackoff,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = o.log.With("component", "dynamostore", "table", table)
	return &Store{
		client: client,
		table:  table,
		opts:   o,
	}, nil
}

// Close is a no-op; the DynamoDB client holds no resources of its own.
func (s *Store) Close() error {
	return nil
}

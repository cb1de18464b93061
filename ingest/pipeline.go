// Package ingest loads a register from its canonical archive into a fresh
// generation of a store.RecordStore and publishes it atomically.
//
// A run either publishes a complete new generation or leaves the previous
// one current. Failures before the first write are reported as *Error;
// store failures are returned wrapped.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/acksell/registers/entry"
	"github.com/acksell/registers/metric"
	"github.com/acksell/registers/store"
	"github.com/google/uuid"
)

// DefaultBatchSize is the number of entries per BulkWrite call.
const DefaultBatchSize = 500

// Report summarises a successful run.
type Report struct {
	Register   string        `json:"register"`
	Generation string        `json:"generation"`
	Source     string        `json:"source"`
	Files      int           `json:"files"`
	Records    int           `json:"records"`
	Entries    int           `json:"entries"`
	Duration   time.Duration `json:"duration"`
}

// Pipeline runs ingestions against one store. It is safe for concurrent use;
// concurrent runs for the same register each publish their own generation
// and the last swap wins.
type Pipeline struct {
	store     store.RecordStore
	fetcher   Fetcher
	batchSize int
	log       *slog.Logger
	metrics   *metric.Metrics
	newID     func() (string, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFetcher sets how archives are retrieved. Defaults to NewFetcher(nil).
func WithFetcher(f Fetcher) Option {
	return func(p *Pipeline) {
		p.fetcher = f
	}
}

// WithBatchSize sets the number of entries per BulkWrite call.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

func WithMetrics(m *metric.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New returns a pipeline writing to s.
func New(s store.RecordStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     s,
		fetcher:   NewFetcher(nil),
		batchSize: DefaultBatchSize,
		log:       slog.Default(),
		newID:     newGenerationID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// newGenerationID returns a time-ordered UUIDv7.
func newGenerationID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Run fetches source, parses every record file under its data/ directory
// and publishes the records as a new generation of tenant.
func (p *Pipeline) Run(ctx context.Context, tenant, source string) (Report, error) {
	start := time.Now()
	report, err := p.run(ctx, tenant, source)
	report.Duration = time.Since(start)

	p.metrics.RecordIngest(tenant, outcome(err), report.Entries, report.Duration)
	if err != nil {
		p.log.Error("ingestion failed", "register", tenant, "source", source, "error", err)
		return report, err
	}
	p.log.Info("ingestion complete",
		"register", tenant,
		"generation", report.Generation,
		"files", report.Files,
		"entries", report.Entries,
		"duration", report.Duration,
	)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, tenant, source string) (Report, error) {
	report := Report{Register: tenant, Source: source}

	data, err := p.fetcher.Fetch(ctx, source)
	if err != nil {
		return report, &Error{Kind: KindDownload, Source: source, Err: err}
	}

	files, err := readArchive(data)
	if err != nil {
		return report, &Error{Kind: KindCorrupt, Source: source, Err: err}
	}
	report.Files = len(files)

	var records []entry.Entry
	for _, f := range files {
		fields, err := parseRecords(f.Name, f.Data)
		if err != nil {
			return report, &Error{Kind: KindParse, Source: source, File: f.Name, Err: err}
		}
		for _, rec := range fields {
			records = append(records, entry.New(rec))
		}
	}
	report.Records = len(records)
	entries := dedupe(records)

	gen, err := p.newID()
	if err != nil {
		return report, fmt.Errorf("new generation id: %w", err)
	}
	report.Generation = gen
	p.log.Debug("writing generation", "register", tenant, "generation", gen, "entries", len(entries))

	for start := 0; start < len(entries); start += p.batchSize {
		end := min(start+p.batchSize, len(entries))
		if err := p.store.BulkWrite(ctx, tenant, gen, entries[start:end]); err != nil {
			return report, p.abort(ctx, tenant, gen, fmt.Errorf("write generation %s: %w", gen, err))
		}
	}
	if err := p.store.SetCurrentGeneration(ctx, tenant, gen); err != nil {
		return report, p.abort(ctx, tenant, gen, fmt.Errorf("publish generation %s: %w", gen, err))
	}
	report.Entries = len(entries)
	return report, nil
}

// abort drops a partially written generation. The drop runs even when ctx
// is canceled; its failure is joined to cause.
func (p *Pipeline) abort(ctx context.Context, tenant, gen string, cause error) error {
	if err := p.store.DropGeneration(context.WithoutCancel(ctx), tenant, gen); err != nil {
		return errors.Join(cause, fmt.Errorf("drop generation %s: %w", gen, err))
	}
	return cause
}

// dedupe collapses entries with equal hashes. The last occurrence keeps
// its position, matching the upsert semantics of the store.
func dedupe(entries []entry.Entry) []entry.Entry {
	seen := make(map[string]bool, len(entries))
	out := make([]entry.Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if seen[e.Hash] {
			continue
		}
		seen[e.Hash] = true
		out = append(out, e)
	}
	slices.Reverse(out)
	return out
}

func outcome(err error) string {
	var ie *Error
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &ie):
		return ie.Kind.String()
	default:
		return "store"
	}
}

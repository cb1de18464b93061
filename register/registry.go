package register

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/acksell/registers/metric"
	"github.com/acksell/registers/store"
	"golang.org/x/sync/singleflight"
)

// DefaultPageSize is the number of entries per Find page.
const DefaultPageSize = 100

// Registry caches one *Register per name for the life of the process.
// There is no eviction; the set of registers is small and fixed by what
// has been ingested.
type Registry struct {
	store store.RecordStore
	opts  options

	mu        sync.RWMutex
	registers map[string]*Register
	group     singleflight.Group
}

type options struct {
	loader     Loader
	pageSize   int
	archiveURL func(string) string
	log        *slog.Logger
	metrics    *metric.Metrics
}

// Option configures a Registry.
type Option func(*options)

// WithLoader sets the ingestion used by Register.Load.
func WithLoader(l Loader) Option {
	return func(o *options) {
		o.loader = l
	}
}

// WithPageSize sets the page size of Register.Find.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithArchiveURL sets the default archive location of a register.
func WithArchiveURL(fn func(name string) string) Option {
	return func(o *options) {
		o.archiveURL = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// NewRegistry returns an empty registry over s.
func NewRegistry(s store.RecordStore, opts ...Option) *Registry {
	o := options{
		pageSize: DefaultPageSize,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		store:     s,
		opts:      o,
		registers: make(map[string]*Register),
	}
}

// GetOrInit returns the register called name, creating the handle on first
// use. A register without published data is ErrTenantNotFound. Concurrent
// first calls for one name share a single store lookup.
func (r *Registry) GetOrInit(ctx context.Context, name string) (*Register, error) {
	name = normalize(name)
	if name == "" {
		return nil, fmt.Errorf("empty register name: %w", ErrTenantNotFound)
	}
	if reg, ok := r.cached(name); ok {
		r.opts.metrics.RecordCacheLookup(true)
		return reg, nil
	}
	r.opts.metrics.RecordCacheLookup(false)

	// The lookup is shared, so one caller's cancellation must not fail the
	// others. Each caller stops waiting when its own ctx is done.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(name, func() (any, error) {
		if reg, ok := r.cached(name); ok {
			return reg, nil
		}
		exists, err := r.store.CollectionExists(shared, name)
		if err != nil {
			r.opts.metrics.RecordRegisterInit("error")
			return nil, fmt.Errorf("register %q: %w", name, err)
		}
		if !exists {
			r.opts.metrics.RecordRegisterInit("not_found")
			return nil, fmt.Errorf("register %q: %w", name, ErrTenantNotFound)
		}
		r.opts.metrics.RecordRegisterInit("created")
		r.opts.log.Info("register initialised", "register", name)
		return r.add(name), nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("register %q: %w", name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Register), nil
	}
}

// Create returns the register called name without checking that it has
// data. It is used to load a register for the first time.
func (r *Registry) Create(name string) (*Register, error) {
	name = normalize(name)
	if name == "" {
		return nil, errors.New("empty register name")
	}
	return r.add(name), nil
}

// Names returns the cached register names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.registers))
	for name := range r.registers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) cached(name string) (*Register, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.registers[name]
	return reg, ok
}

// add returns the cached register or stores a new one.
func (r *Registry) add(name string) *Register {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.registers[name]; ok {
		return reg
	}
	reg := &Register{
		name:       name,
		store:      r.store,
		loader:     r.opts.loader,
		pageSize:   r.opts.pageSize,
		archiveURL: r.opts.archiveURL,
	}
	r.registers[name] = reg
	return reg
}

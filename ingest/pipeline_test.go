package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/acksell/registers/entry"
	"github.com/acksell/registers/store"
	"github.com/acksell/registers/store/badgerstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *badgerstore.Store {
	s, err := badgerstore.New(badgerstore.StoreOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// serve returns a server answering every request with body, and a function
// replacing the body. A nil body answers 404.
func serve(t *testing.T, body []byte) (*httptest.Server, func([]byte)) {
	t.Helper()
	var mu sync.Mutex
	current := body
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if current == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write(current)
	}))
	t.Cleanup(srv.Close)
	return srv, func(b []byte) {
		mu.Lock()
		defer mu.Unlock()
		current = b
	}
}

func fields(name, country string) entry.Fields {
	return entry.Fields{"name": entry.String(name), "country": entry.String(country)}
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	srv, _ := serve(t, buildZip(t, countryFiles...))
	p := New(s, WithFetcher(NewFetcher(srv.Client())))

	report, err := p.Run(ctx, "country", srv.URL+"/master.zip")
	require.NoError(t, err)
	assert.Equal(t, "country", report.Register)
	assert.Equal(t, 3, report.Files)
	assert.Equal(t, 3, report.Entries)
	assert.NotEmpty(t, report.Generation)

	gen, err := s.CurrentGeneration(ctx, "country")
	require.NoError(t, err)
	assert.Equal(t, report.Generation, gen)

	// Files are written in path order, so the last file is the most recent.
	meta, got, err := s.Find(ctx, "country", store.Query{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, meta.Total)
	assert.Equal(t, []entry.Entry{
		entry.New(fields("United Kingdom", "GB")),
		entry.New(fields("France", "FR")),
		entry.New(fields("Germany", "DE")),
	}, got)

	// Lookup by the independently computed address.
	want := entry.New(fields("France", "FR"))
	e, err := s.Get(ctx, "country", want.Hash)
	require.NoError(t, err)
	assert.Equal(t, want, e)
	assert.True(t, e.Verify())
}

func TestPipeline_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	srv, _ := serve(t, buildZip(t, countryFiles...))
	p := New(s, WithFetcher(NewFetcher(srv.Client())))

	first, err := p.Run(ctx, "country", srv.URL)
	require.NoError(t, err)
	_, before, err := s.Find(ctx, "country", store.Query{}, 1, 10)
	require.NoError(t, err)

	second, err := p.Run(ctx, "country", srv.URL)
	require.NoError(t, err)
	_, after, err := s.Find(ctx, "country", store.Query{}, 1, 10)
	require.NoError(t, err)

	assert.NotEqual(t, first.Generation, second.Generation)
	assert.Equal(t, before, after)
}

func TestPipeline_Dedupe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	srv, _ := serve(t, buildZip(t,
		archiveFile{Name: "r/data/a.yaml", Body: "name: France\ncountry: FR\n"},
		archiveFile{Name: "r/data/b.yaml", Body: "name: Spain\ncountry: ES\n"},
		archiveFile{Name: "r/data/c.json", Body: `{"country": "FR", "name": "France"}`},
	))
	p := New(s, WithFetcher(NewFetcher(srv.Client())))

	report, err := p.Run(ctx, "country", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, 2, report.Entries)

	_, got, err := s.Find(ctx, "country", store.Query{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []entry.Entry{
		entry.New(fields("France", "FR")),
		entry.New(fields("Spain", "ES")),
	}, got)
}

func TestPipeline_FailuresKeepPreviousGeneration(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		kind Kind
		file string
	}{
		{name: "download", body: nil, kind: KindDownload},
		{name: "corrupt", body: []byte("not a zip"), kind: KindCorrupt},
		{
			name: "parse",
			body: func() []byte {
				return buildZip(t,
					archiveFile{Name: "r/data/a.yaml", Body: "name: ok\n"},
					archiveFile{Name: "r/data/b.yaml", Body: "name: [broken\n"},
				)
			}(),
			kind: KindParse,
			file: "r/data/b.yaml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)
			srv, setBody := serve(t, buildZip(t, countryFiles...))
			p := New(s, WithFetcher(NewFetcher(srv.Client())))

			first, err := p.Run(ctx, "country", srv.URL)
			require.NoError(t, err)

			setBody(tt.body)
			_, err = p.Run(ctx, "country", srv.URL)
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)

			var ie *Error
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, srv.URL, ie.Source)
			assert.Equal(t, tt.file, ie.File)

			gen, err := s.CurrentGeneration(ctx, "country")
			require.NoError(t, err)
			assert.Equal(t, first.Generation, gen)
			meta, _, err := s.Find(ctx, "country", store.Query{}, 1, 10)
			require.NoError(t, err)
			assert.Equal(t, 3, meta.Total)
		})
	}
}

// failingStore fails the BulkWrite call numbered failOn and records drops.
type failingStore struct {
	store.RecordStore
	failOn  int
	calls   int
	dropped []string
	dropErr error
}

var errWrite = errors.New("disk full")

func (f *failingStore) BulkWrite(ctx context.Context, tenant, gen string, entries []entry.Entry) error {
	f.calls++
	if f.calls == f.failOn {
		return errWrite
	}
	return f.RecordStore.BulkWrite(ctx, tenant, gen, entries)
}

func (f *failingStore) DropGeneration(ctx context.Context, tenant, gen string) error {
	f.dropped = append(f.dropped, gen)
	if f.dropErr != nil {
		return f.dropErr
	}
	return f.RecordStore.DropGeneration(ctx, tenant, gen)
}

func TestPipeline_StoreFailure(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	srv, _ := serve(t, buildZip(t, countryFiles...))
	fetcher := WithFetcher(NewFetcher(srv.Client()))

	first, err := New(base, fetcher).Run(ctx, "country", srv.URL)
	require.NoError(t, err)

	fs := &failingStore{RecordStore: base, failOn: 2}
	report, err := New(fs, fetcher, WithBatchSize(1)).Run(ctx, "country", srv.URL)
	require.ErrorIs(t, err, errWrite)
	assert.False(t, IsKind(err, KindParse))
	assert.Equal(t, []string{report.Generation}, fs.dropped)

	gen, err := base.CurrentGeneration(ctx, "country")
	require.NoError(t, err)
	assert.Equal(t, first.Generation, gen)

	t.Run("drop failure is reported", func(t *testing.T) {
		dropErr := errors.New("drop failed")
		fs := &failingStore{RecordStore: base, failOn: 1, dropErr: dropErr}
		_, err := New(fs, fetcher).Run(ctx, "country", srv.URL)
		assert.ErrorIs(t, err, errWrite)
		assert.ErrorIs(t, err, dropErr)
	})
}

// gatedStore lets the first BulkWrite through, then holds the second until
// release is closed and fails it, leaving a partly written generation.
type gatedStore struct {
	store.RecordStore
	calls   int
	partial chan struct{}
	release chan struct{}
}

func (g *gatedStore) BulkWrite(ctx context.Context, tenant, gen string, entries []entry.Entry) error {
	g.calls++
	if g.calls == 2 {
		close(g.partial)
		<-g.release
		return errWrite
	}
	return g.RecordStore.BulkWrite(ctx, tenant, gen, entries)
}

func TestPipeline_ReadersNeverSeePartialGeneration(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	srv, setBody := serve(t, buildZip(t, countryFiles...))
	fetcher := WithFetcher(NewFetcher(srv.Client()))

	_, err := New(base, fetcher).Run(ctx, "country", srv.URL)
	require.NoError(t, err)
	_, before, err := base.Find(ctx, "country", store.Query{}, 1, 10)
	require.NoError(t, err)

	// Files are written in path order, so Spain is written before the failure.
	spain := entry.New(fields("Spain", "ES"))
	setBody(buildZip(t,
		archiveFile{Name: "r/data/it.yaml", Body: "name: Italy\ncountry: IT\n"},
		archiveFile{Name: "r/data/pt.yaml", Body: "name: Portugal\ncountry: PT\n"},
		archiveFile{Name: "r/data/es.yaml", Body: "name: Spain\ncountry: ES\n"},
	))

	var (
		mu         sync.Mutex
		reads      int
		mismatches []string
	)
	read := func() {
		_, got, err := base.Find(ctx, "country", store.Query{}, 1, 10)
		_, getErr := base.Get(ctx, "country", spain.Hash)
		mu.Lock()
		defer mu.Unlock()
		reads++
		switch {
		case err != nil:
			mismatches = append(mismatches, "find: "+err.Error())
		case !assert.ObjectsAreEqual(before, got):
			mismatches = append(mismatches, "find returned entries of the new generation")
		case !errors.Is(getErr, store.ErrNotFound):
			mismatches = append(mismatches, "new entry visible by hash")
		}
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for range 4 {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					read()
				}
			}
		}()
	}

	gs := &gatedStore{RecordStore: base, partial: make(chan struct{}), release: make(chan struct{})}
	runErr := make(chan error, 1)
	go func() {
		_, err := New(gs, fetcher, WithBatchSize(1)).Run(ctx, "country", srv.URL)
		runErr <- err
	}()

	<-gs.partial
	for range 20 {
		read()
	}
	close(gs.release)
	require.ErrorIs(t, <-runErr, errWrite)
	for range 20 {
		read()
	}
	close(stop)
	readers.Wait()

	assert.GreaterOrEqual(t, reads, 40)
	assert.Empty(t, mismatches)
}

// conflictStore loses every pointer swap to another writer.
type conflictStore struct {
	store.RecordStore
	dropped []string
}

func (c *conflictStore) SetCurrentGeneration(ctx context.Context, tenant, gen string) error {
	return store.ErrConflict
}

func (c *conflictStore) DropGeneration(ctx context.Context, tenant, gen string) error {
	c.dropped = append(c.dropped, gen)
	return c.RecordStore.DropGeneration(ctx, tenant, gen)
}

func TestPipeline_PublishConflict(t *testing.T) {
	ctx := context.Background()
	base := newTestStore(t)
	srv, _ := serve(t, buildZip(t, countryFiles...))
	fetcher := WithFetcher(NewFetcher(srv.Client()))

	first, err := New(base, fetcher).Run(ctx, "country", srv.URL)
	require.NoError(t, err)

	cs := &conflictStore{RecordStore: base}
	report, err := New(cs, fetcher).Run(ctx, "country", srv.URL)
	require.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, []string{report.Generation}, cs.dropped)

	gen, err := base.CurrentGeneration(ctx, "country")
	require.NoError(t, err)
	assert.Equal(t, first.Generation, gen)
}

func TestPipeline_FileSource(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "country.tar.gz")
	require.NoError(t, os.WriteFile(path, buildTarGz(t, countryFiles...), 0o644))
	p := New(s)

	for _, source := range []string{path, "file://" + path} {
		report, err := p.Run(ctx, "country", source)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Entries)
	}

	_, err := p.Run(ctx, "country", filepath.Join(t.TempDir(), "missing.zip"))
	assert.True(t, IsKind(err, KindDownload))
}

func TestHTTPFetcher_MaxBytes(t *testing.T) {
	srv, _ := serve(t, make([]byte, 100))
	f := HTTPFetcher{Client: srv.Client(), MaxBytes: 10}
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "exceeds 10 bytes")
}

func TestError(t *testing.T) {
	err := &Error{Kind: KindParse, Source: "https://x", File: "data/a.yaml", Err: errors.New("bad")}
	assert.Equal(t, "ingest https://x: parse: data/a.yaml: bad", err.Error())

	wrapped := errors.Join(errors.New("context"), err)
	assert.True(t, IsKind(wrapped, KindParse))
	assert.False(t, IsKind(wrapped, KindDownload))
	assert.False(t, IsKind(errors.New("plain"), KindParse))
}

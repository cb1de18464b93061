package register

import (
	"context"
	"errors"
	"testing"

	"github.com/acksell/registers/entry"
	"github.com/acksell/registers/ingest"
	"github.com/acksell/registers/store"
	"github.com/acksell/registers/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func country(name, code string) entry.Entry {
	return entry.New(entry.Fields{
		"name":    entry.String(name),
		"country": entry.String(code),
	})
}

func TestRegister_FindMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	gb, fr, de := country("United Kingdom", "GB"), country("France", "FR"), country("Germany", "DE")
	storetest.Publish(t, s, "country", "gen-1", []entry.Entry{gb, fr, de})
	reg, err := NewRegistry(s, WithPageSize(2)).GetOrInit(ctx, "country")
	require.NoError(t, err)

	res, err := reg.Find(ctx, store.Query{}, 1)
	require.NoError(t, err)
	assert.Equal(t, store.Meta{Total: 3, Page: 1, PageSize: 2}, res.Meta)
	assert.Equal(t, []entry.Entry{de, fr}, res.Entries)
	assert.Equal(t, []string{"name", "country"}, res.Schema())

	res, err = reg.Find(ctx, store.Query{}, 2)
	require.NoError(t, err)
	assert.Equal(t, []entry.Entry{gb}, res.Entries)

	latest, err := reg.FindLatest(ctx, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, de, latest)

	_, err = reg.Find(ctx, store.Query{}, 0)
	assert.ErrorIs(t, err, store.ErrInvalidPage)
}

func TestRegister_FindLatest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	old := entry.New(entry.Fields{"name": entry.String("Czechia"), "version": entry.String("1")})
	cur := entry.New(entry.Fields{"name": entry.String("Czechia"), "version": entry.String("2")})
	other := country("Slovakia", "SK")
	storetest.Publish(t, s, "country", "gen-1", []entry.Entry{old, cur, other})
	reg, err := NewRegistry(s).GetOrInit(ctx, "country")
	require.NoError(t, err)

	got, err := reg.FindLatest(ctx, store.Query{}.Where("name", store.Exact("Czechia")))
	require.NoError(t, err)
	assert.Equal(t, cur, got)

	_, err = reg.FindLatest(ctx, store.Query{}.Where("name", store.Exact("Atlantis")))
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegister_GetAndGeneration(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fr := country("France", "FR")
	storetest.Publish(t, s, "country", "gen-1", []entry.Entry{fr})
	reg, err := NewRegistry(s).GetOrInit(ctx, "country")
	require.NoError(t, err)

	got, err := reg.Get(ctx, fr.Hash)
	require.NoError(t, err)
	assert.Equal(t, fr, got)

	_, err = reg.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	gen, err := reg.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen-1", gen)
}

type fakeLoader struct {
	tenant, source string
	err            error
}

func (f *fakeLoader) Run(ctx context.Context, tenant, source string) (ingest.Report, error) {
	f.tenant, f.source = tenant, source
	return ingest.Report{Register: tenant, Source: source}, f.err
}

func TestRegister_Load(t *testing.T) {
	ctx := context.Background()
	l := &fakeLoader{}
	r := NewRegistry(newTestStore(t),
		WithLoader(l),
		WithArchiveURL(func(name string) string { return "https://example.org/" + name + ".zip" }),
	)
	reg, err := r.Create("country")
	require.NoError(t, err)

	_, err = reg.Load(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "country", l.tenant)
	assert.Equal(t, "https://example.org/country.zip", l.source)

	_, err = reg.Load(ctx, "/tmp/country.zip")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/country.zip", l.source)

	l.err = &ingest.Error{Kind: ingest.KindDownload, Source: "x", Err: errors.New("timeout")}
	_, err = reg.Load(ctx, "")
	assert.True(t, ingest.IsKind(err, ingest.KindDownload))
}

func TestRegister_LoadWithoutLoader(t *testing.T) {
	reg, err := NewRegistry(newTestStore(t)).Create("country")
	require.NoError(t, err)
	_, err = reg.Load(context.Background(), "x")
	assert.Error(t, err)

	reg, err = NewRegistry(newTestStore(t), WithLoader(&fakeLoader{})).Create("country")
	require.NoError(t, err)
	_, err = reg.Load(context.Background(), "")
	assert.ErrorContains(t, err, "no source")
}

// Entries ingested through the pipeline are found under the same address
// the entry package computes.
func TestRegister_LoadThenLookup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := t.TempDir()
	path := writeArchive(t, dir, map[string]string{
		"country.register-master/data/country/fr.yaml": "name: France\ncountry: FR\n",
		"country.register-master/data/country/gb.yaml": "name: United Kingdom\ncountry: GB\n",
	})
	r := NewRegistry(s, WithLoader(ingest.New(s)))
	reg, err := r.Create("country")
	require.NoError(t, err)

	report, err := reg.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Entries)

	want := country("France", "FR")
	got, err := reg.Get(ctx, want.Hash)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	latest, err := reg.FindLatest(ctx, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, country("United Kingdom", "GB"), latest)
}

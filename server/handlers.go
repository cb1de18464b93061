package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/acksell/registers/entry"
	"github.com/acksell/registers/ingest"
	"github.com/acksell/registers/register"
	"github.com/acksell/registers/representation"
	"github.com/acksell/registers/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultFormat is the representation used when a request names none.
const DefaultFormat = "json"

// Handler serves the register routes.
type Handler struct {
	registry *register.Registry
	codecs   *representation.Registry
	opts     options
}

type options struct {
	log      *slog.Logger
	gatherer prometheus.Gatherer
	tenant   func(*http.Request) string
}

// Option configures a Handler.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithGatherer serves the gatherer's metrics on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) {
		o.gatherer = g
	}
}

// WithRegister serves a single register regardless of the request host.
func WithRegister(name string) Option {
	return func(o *options) {
		o.tenant = func(*http.Request) string { return name }
	}
}

// NewHandler returns a handler serving registry in the representations of
// codecs.
func NewHandler(registry *register.Registry, codecs *representation.Registry, opts ...Option) *Handler {
	o := options{
		log: slog.Default(),
		tenant: func(r *http.Request) string {
			return register.ResolveTenant(r.Host)
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Handler{registry: registry, codecs: codecs, opts: o}
}

// RegisterRoutes registers all routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.listEntries)
	mux.HandleFunc("GET /{resource}", h.resource)
	mux.HandleFunc("GET /hash/{hash}", h.entryByHash)
	mux.HandleFunc("GET /{field}/{value}", h.latestByField)
	mux.HandleFunc("POST /load-data", h.loadData)
	if h.opts.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.opts.gatherer, promhttp.HandlerOpts{}))
	}
}

// Routes returns a mux with all routes registered.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

// resource serves the single-segment paths /entries.<suffix> and
// /search[.<suffix>].
func (h *Handler) resource(w http.ResponseWriter, r *http.Request) {
	name, suffix := splitSuffix(r.PathValue("resource"))
	switch name {
	case "entries":
		h.find(w, r, store.Query{}, suffix)
	case "search":
		h.find(w, r, searchQuery(r), suffix)
	default:
		writeError(w, http.StatusNotFound, "not found: "+r.URL.Path)
	}
}

// listEntries serves the most recent entries, ?page= selecting the page.
func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	h.find(w, r, store.Query{}, "")
}

// searchQuery matches ?value= case-insensitively within ?field=. Without
// both parameters every entry matches.
func searchQuery(r *http.Request) store.Query {
	field, value := r.URL.Query().Get("field"), r.URL.Query().Get("value")
	if field == "" || value == "" {
		return store.Query{}
	}
	return store.Query{}.Where(field, store.Contains(value))
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request, q store.Query, suffix string) {
	codec, err := h.codec(r, suffix)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	q.OrderBy = r.URL.Query().Get("orderBy")

	reg, err := h.registry.GetOrInit(r.Context(), h.opts.tenant(r))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	res, err := reg.Find(r.Context(), q, page)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	body, err := codec.EncodeMany(res.Entries)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(res.Meta.Total))
	w.Header().Set("X-Page", strconv.Itoa(res.Meta.Page))
	w.Header().Set("X-Page-Size", strconv.Itoa(res.Meta.PageSize))
	writeBody(w, codec.ContentType(), body)
}

// entryByHash serves /hash/<hash>[.<suffix>].
func (h *Handler) entryByHash(w http.ResponseWriter, r *http.Request) {
	hash, suffix := splitSuffix(r.PathValue("hash"))
	codec, err := h.codec(r, suffix)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	reg, err := h.registry.GetOrInit(r.Context(), h.opts.tenant(r))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	e, err := reg.Get(r.Context(), hash)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeEntry(w, codec, e)
}

// latestByField serves the most recent entry whose field equals value.
func (h *Handler) latestByField(w http.ResponseWriter, r *http.Request) {
	codec, err := h.codec(r, "")
	if err != nil {
		h.writeErr(w, err)
		return
	}
	reg, err := h.registry.GetOrInit(r.Context(), h.opts.tenant(r))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	q := store.Query{}.Where(r.PathValue("field"), store.Exact(r.PathValue("value")))
	e, err := reg.FindLatest(r.Context(), q)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeEntry(w, codec, e)
}

// loadData ingests the register's configured archive. The source cannot be
// chosen by the client. A client that disconnects does not abort the load.
func (h *Handler) loadData(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registry.Create(h.opts.tenant(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := reg.Load(context.WithoutCancel(r.Context()), "")
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// codec picks the representation from the path suffix, then ?format=.
func (h *Handler) codec(r *http.Request, suffix string) (representation.Codec, error) {
	if suffix == "" {
		suffix = r.URL.Query().Get("format")
	}
	if suffix == "" {
		suffix = DefaultFormat
	}
	return h.codecs.Get(suffix)
}

func (h *Handler) writeEntry(w http.ResponseWriter, codec representation.Codec, e entry.Entry) {
	body, err := codec.Encode(e)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeBody(w, codec.ContentType(), body)
}

// writeErr maps err to a status. Server errors are logged and not echoed.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.opts.log.Error("request failed", "error", err)
		writeError(w, status, http.StatusText(status))
		return
	}
	writeError(w, status, err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, register.ErrTenantNotFound),
		errors.Is(err, representation.ErrUnknownRepresentation),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidPage):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case ingest.IsKind(err, ingest.KindDownload):
		return http.StatusBadGateway
	case ingest.IsKind(err, ingest.KindCorrupt), ingest.IsKind(err, ingest.KindParse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// splitSuffix splits "abc.json" into "abc" and "json".
func splitSuffix(s string) (name, suffix string) {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func parsePage(r *http.Request) (int, error) {
	s := r.URL.Query().Get("page")
	if s == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(s)
	if err != nil || page < 1 {
		return 0, store.ErrInvalidPage
	}
	return page, nil
}

func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

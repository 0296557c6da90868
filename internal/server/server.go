// Package server exposes an opened dataset over HTTP.
//
// Routes:
//
//	GET /records/{seq}                     one record
//	GET /records/{seq}/metadata            its metadata row
//	GET /records?start=&end=&shuffle=      NDJSON stream of {"seq":..,"value":..}
//	GET /shards/{shard}/lines/{line}       one raw shard line
//	GET /stats                             dataset statistics
//	GET /healthz
//	GET /metrics                           Prometheus, when a gatherer is set
//
// Record routes accept extract=record|fulltext|pair; fulltext and pair apply
// the configured preprocessing unless raw=true.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/coredata"
)

// DefaultMaxRange bounds the records of one /records stream.
const DefaultMaxRange = 10000

// Observer records served requests.
type Observer interface {
	ObserveHTTP(route string, code int, d time.Duration)
}

type Server struct {
	store      *coredata.Store
	router     *mux.Router
	logger     *slog.Logger
	observer   Observer
	gatherer   prometheus.Gatherer
	maxRange   int
	preprocess coredata.PreprocessOptions
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithObserver(o Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

func WithMaxRange(n int) Option {
	return func(s *Server) { s.maxRange = n }
}

func WithPreprocess(o coredata.PreprocessOptions) Option {
	return func(s *Server) { s.preprocess = o }
}

// New creates a server for store. The caller keeps ownership of store.
func New(store *coredata.Store, opts ...Option) *Server {
	s := &Server{
		store:      store,
		router:     mux.NewRouter(),
		logger:     slog.New(slog.DiscardHandler),
		maxRange:   DefaultMaxRange,
		preprocess: coredata.DefaultPreprocessOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(s.instrument)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/records", s.handleRecords).Methods(http.MethodGet)
	s.router.HandleFunc("/records/{seq:[0-9]+}", s.handleRecord).Methods(http.MethodGet)
	s.router.HandleFunc("/records/{seq:[0-9]+}/metadata", s.handleMetadata).Methods(http.MethodGet)
	s.router.HandleFunc("/shards/{shard:[0-9]+}/lines/{line:[0-9]+}", s.handleLine).Methods(http.MethodGet)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if s.observer != nil {
			s.observer.ObserveHTTP(route, rec.code, time.Since(start))
		}
		s.logger.DebugContext(r.Context(), "request served",
			"route", route,
			"code", rec.code,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, s.store.Stats())
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	seq, _ := strconv.Atoi(mux.Vars(r)["seq"])

	ex, err := s.extractor(r)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, _, err := s.store.FetchRecord(r.Context(), seq, coredata.WithExtractor(ex))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, v)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	seq, _ := strconv.Atoi(mux.Vars(r)["seq"])

	md, err := s.store.Metadata(seq)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, md)
}

func (s *Server) handleLine(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	shardID, _ := strconv.Atoi(vars["shard"])
	line, _ := strconv.Atoi(vars["line"])

	b, err := s.store.FetchLine(r.Context(), shardID, line)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

type streamItem struct {
	Seq   int `json:"seq"`
	Value any `json:"value"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := intParam(q.Get("start"), 0)
	if err != nil {
		respondError(w, "invalid start", http.StatusBadRequest)
		return
	}
	end, err := intParam(q.Get("end"), start+s.maxRange-1)
	if err != nil {
		respondError(w, "invalid end", http.StatusBadRequest)
		return
	}
	if start < 0 || end < start {
		respondError(w, "start must be non-negative and not after end", http.StatusBadRequest)
		return
	}
	if end-start >= s.maxRange {
		respondError(w, "range exceeds "+strconv.Itoa(s.maxRange)+" records", http.StatusBadRequest)
		return
	}
	shuffle, err := boolParam(q.Get("shuffle"))
	if err != nil {
		respondError(w, "invalid shuffle", http.StatusBadRequest)
		return
	}
	ex, err := s.extractor(r)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := []coredata.ReadOption{coredata.Range(start, end), coredata.WithExtractor(ex)}
	if shuffle {
		opts = append(opts, coredata.Shuffle())
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	for seq, v := range s.store.Iterate(r.Context(), opts...) {
		if err := enc.Encode(streamItem{Seq: seq, Value: v}); err != nil {
			s.logger.WarnContext(r.Context(), "stream aborted", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

var errUnknownExtract = errors.New("extract must be record, fulltext or pair")

func (s *Server) extractor(r *http.Request) (coredata.Extractor, error) {
	raw, err := boolParam(r.URL.Query().Get("raw"))
	if err != nil {
		return nil, errors.New("invalid raw")
	}
	var opts *coredata.PreprocessOptions
	if !raw {
		o := s.preprocess
		opts = &o
	}

	switch r.URL.Query().Get("extract") {
	case "", "record":
		return coredata.IdentityExtractor, nil
	case "fulltext":
		return coredata.FullTextExtractor(opts), nil
	case "pair":
		return coredata.MetadataFullTextPairExtractor(opts), nil
	default:
		return nil, errUnknownExtract
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coredata.ErrRecordNotFound), errors.Is(err, coredata.ErrLineOutOfRange):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, coredata.ErrClosed):
		respondError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, "internal error", http.StatusInternalServerError)
	}
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func boolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": message,
	})
}

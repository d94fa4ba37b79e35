// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves a read-only HTTP view of the configuration held by a
// watching process.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/trainconf/internal/config"
	tclog "github.com/ManuGH/trainconf/internal/log"
	"github.com/ManuGH/trainconf/internal/metrics"
	"github.com/ManuGH/trainconf/internal/telemetry"
)

const serviceName = "trainconf"

// ConfigSource is the view of a config.Holder the server needs.
type ConfigSource interface {
	Current() *config.Snapshot
	LastChange() config.ChangeSummary
	LastError() error
}

// Options tune the server.
type Options struct {
	RateLimit RateLimitConfig
	// Metrics serves /metrics. Defaults to promhttp.Handler().
	Metrics http.Handler
	// TracerProvider traces requests. Defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Server routes requests to handlers backed by a ConfigSource.
type Server struct {
	source  ConfigSource
	router  *chi.Mux
	handler http.Handler
	logger  zerolog.Logger
}

// New returns a server over source.
func New(source ConfigSource, opts Options) *Server {
	s := &Server{
		source: source,
		router: chi.NewRouter(),
		logger: tclog.WithComponent("api"),
	}

	metricsHandler := opts.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	if opts.RateLimit.RequestLimit > 0 {
		r.Use(RateLimit(opts.RateLimit))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/config", s.handleConfig)
	r.Get("/config/diff", s.handleDiff)
	r.Get("/config/explain", s.handleExplain)
	r.Get("/config/provenance", s.handleProvenance)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	s.handler = otelhttp.NewHandler(r, serviceName,
		otelhttp.WithTracerProvider(telemetry.TracerProvider(opts.TracerProvider)),
		otelhttp.WithFilter(shouldTrace),
		otelhttp.WithSpanNameFormatter(spanName),
	)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// shouldTrace skips probes and scrapes.
func shouldTrace(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return false
	}
	return true
}

// spanName is "HTTP {METHOD} {PATH}"; query values stay out of span names.
func spanName(_ string, r *http.Request) string {
	return "HTTP " + r.Method + " " + r.URL.Path
}

// observe logs and counts every request by its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		took := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveHTTPRequest(r.Method, route, status, took)
		s.logger.Debug().
			Str(tclog.FieldEvent, "http.request").
			Str("method", r.Method).
			Str(tclog.FieldPath, r.URL.Path).
			Int("status", status).
			Int64(tclog.FieldDuration, took.Milliseconds()).
			Msg("request served")
	})
}

type healthResponse struct {
	Status       string    `json:"status"`
	ResolutionID string    `json:"resolution_id"`
	LoadedAt     time.Time `json:"loaded_at"`
	LastError    string    `json:"last_error,omitempty"`
}

// handleHealth reports "degraded" while the last reload failed; the previous
// snapshot is still served.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Current()
	resp := healthResponse{
		Status:       "ok",
		ResolutionID: snap.ResolutionID(),
		LoadedAt:     snap.LoadedAt(),
	}
	if err := s.source.LastError(); err != nil {
		resp.Status = "degraded"
		resp.LastError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Current()

	var (
		body        []byte
		err         error
		contentType string
	)
	switch r.URL.Query().Get("format") {
	case "", "yaml":
		body, err = snap.YAML()
		contentType = "application/yaml"
	case "json":
		body, err = snap.JSON()
		contentType = "application/json"
	default:
		writeError(w, http.StatusBadRequest, errors.New("format must be yaml or json"))
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str(tclog.FieldEvent, "api.encode_failed").Msg("failed to encode configuration")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Resolution-ID", snap.ResolutionID())
	_, _ = w.Write(body)
}

type diffResponse struct {
	ChangedPaths    []string `json:"changed_paths"`
	TopologyChanged bool     `json:"topology_changed"`
}

func (s *Server) handleDiff(w http.ResponseWriter, _ *http.Request) {
	change := s.source.LastChange()
	paths := change.ChangedPaths
	if paths == nil {
		paths = []string{}
	}
	writeJSON(w, http.StatusOK, diffResponse{ChangedPaths: paths, TopologyChanged: change.TopologyChanged})
}

type explainResponse struct {
	Path     string `json:"path"`
	Value    any    `json:"value"`
	Fragment string `json:"fragment,omitempty"`
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, errors.New("path query parameter is required"))
		return
	}
	snap := s.source.Current()
	v, ok := snap.Lookup(path)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no such path: "+path))
		return
	}
	origin, _ := snap.Provenance(path)
	writeJSON(w, http.StatusOK, explainResponse{Path: path, Value: v, Fragment: origin})
}

type provenanceEntry struct {
	Path     string `json:"path"`
	Fragment string `json:"fragment"`
}

// handleProvenance lists the fragment behind every composed leaf.
func (s *Server) handleProvenance(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Current()
	paths := snap.ProvenancePaths()
	out := make([]provenanceEntry, 0, len(paths))
	for _, p := range paths {
		origin, _ := snap.Provenance(p)
		out = append(out, provenanceEntry{Path: p, Fragment: origin})
	}
	w.Header().Set("X-Resolution-ID", snap.ResolutionID())
	writeJSON(w, http.StatusOK, out)
}

// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/trainconf/internal/config"
)

type fakeSource struct {
	snap   *config.Snapshot
	change config.ChangeSummary
	err    error
}

func (f *fakeSource) Current() *config.Snapshot         { return f.snap }
func (f *fakeSource) LastChange() config.ChangeSummary { return f.change }
func (f *fakeSource) LastError() error                 { return f.err }

func newSource(t *testing.T) *fakeSource {
	t.Helper()
	snap, err := config.NewLoader(config.Options{}).Load(context.Background())
	require.NoError(t, err)
	return &fakeSource{snap: snap}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "192.0.2.1:4321"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	src := newSource(t)
	srv := New(src, Options{})

	w := get(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, src.snap.ResolutionID(), body.ResolutionID)

	src.err = errors.New("fragment not found")
	w = get(t, srv, "/healthz")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "fragment not found", body.LastError)
}

func TestConfig_YAML(t *testing.T) {
	src := newSource(t)
	w := get(t, New(src, Options{}), "/config")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Equal(t, src.snap.ResolutionID(), w.Header().Get("X-Resolution-ID"))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "fsdp", got["strategy"])
	assert.Equal(t, config.TargetFSDPActor, got["_target_"])
}

func TestConfig_JSON(t *testing.T) {
	w := get(t, New(newSource(t), Options{}), "/config?format=json")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1.0, got["grad_clip"])
}

func TestConfig_BadFormat(t *testing.T) {
	w := get(t, New(newSource(t), Options{}), "/config?format=xml")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiff(t *testing.T) {
	src := newSource(t)
	srv := New(src, Options{})

	w := get(t, srv, "/config/diff")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"changed_paths":[],"topology_changed":false}`, w.Body.String())

	src.change = config.ChangeSummary{ChangedPaths: []string{"fsdp_config.fsdp_size"}, TopologyChanged: true}
	w = get(t, srv, "/config/diff")
	assert.JSONEq(t, `{"changed_paths":["fsdp_config.fsdp_size"],"topology_changed":true}`, w.Body.String())
}

func TestExplain(t *testing.T) {
	srv := New(newSource(t), Options{})

	w := get(t, srv, "/config/explain?path=optim.lr")
	require.Equal(t, http.StatusOK, w.Code)
	var body explainResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "optim.lr", body.Path)
	assert.Equal(t, 1e-6, body.Value)
	assert.Equal(t, "actor/actor", body.Fragment)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/config/explain").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/config/explain?path=nope").Code)
}

func TestProvenance(t *testing.T) {
	src := newSource(t)
	w := get(t, New(src, Options{}), "/config/provenance")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, src.snap.ResolutionID(), w.Header().Get("X-Resolution-ID"))

	var body []provenanceEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body, len(src.snap.ProvenancePaths()))

	byPath := make(map[string]string, len(body))
	for i, e := range body {
		if i > 0 {
			assert.Less(t, body[i-1].Path, e.Path)
		}
		byPath[e.Path] = e.Fragment
	}
	assert.Equal(t, "actor/actor", byPath["optim.lr"])
	assert.Equal(t, "actor/dp_actor", byPath["strategy"])
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	srv := New(newSource(t), Options{TracerProvider: tp})

	require.Equal(t, http.StatusOK, get(t, srv, "/config?format=json").Code)
	require.Equal(t, http.StatusOK, get(t, srv, "/healthz").Code)
	require.Equal(t, http.StatusOK, get(t, srv, "/metrics").Code)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET /config", spans[0].Name())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := New(newSource(t), Options{})
	_ = get(t, srv, "/config")

	w := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trainconf_resolutions_total")
	assert.Contains(t, w.Body.String(), `trainconf_http_requests_total{method="GET",route="/config",status="200"}`)
}

func TestRateLimit(t *testing.T) {
	srv := New(newSource(t), Options{RateLimit: RateLimitConfig{RequestLimit: 2, WindowSize: time.Minute}})

	assert.Equal(t, http.StatusOK, get(t, srv, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, srv, "/healthz").Code)

	w := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}

func TestRateLimit_ZeroWindowUsesDefault(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestLimit: 1})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	assert.Equal(t, http.StatusNoContent, get(t, h, "/").Code)
	w := get(t, h, "/")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestUnknownRoute(t *testing.T) {
	w := get(t, New(newSource(t), Options{}), "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

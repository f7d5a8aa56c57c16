package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	jobs := NewJobMetrics(metrics.Registerer())
	// Counter vecs export nothing until a child exists, so record one run.
	jobs.Track("ledger:integrity").End(nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	metrics.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "bakehouse_jobs_total") {
		t.Fatalf("expected body to contain bakehouse_jobs_total, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsRR := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	metricsBody := metricsRR.Body.String()
	if !strings.Contains(metricsBody, "http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestJobTrackerCountsOutcomes(t *testing.T) {
	metrics := NewMetrics()
	jobs := NewJobMetrics(metrics.Registerer())

	if err := jobs.Track("ledger:integrity").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantErr := errors.New("boom")
	if err := jobs.Track("ledger:integrity").End(wantErr); !errors.Is(err, wantErr) {
		t.Fatalf("tracker must return the error untouched, got: %v", err)
	}
	jobs.AddLedgerDrift("raw_materials", 42, 1)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	if !strings.Contains(body, "bakehouse_jobs_total{job=\"ledger:integrity\",status=\"success\"} 1") {
		t.Fatalf("expected success count, got: %s", body)
	}
	if !strings.Contains(body, "bakehouse_jobs_failures_total{job=\"ledger:integrity\"} 1") {
		t.Fatalf("expected failure count, got: %s", body)
	}
	if !strings.Contains(body, "bakehouse_ledger_drift_total{entity_id=\"42\",ledger=\"raw_materials\"} 1") {
		t.Fatalf("expected drift count, got: %s", body)
	}
}

func TestNilMetricsDegrade(t *testing.T) {
	var metrics *Metrics
	var jobs *JobMetrics

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	rr := httptest.NewRecorder()
	metrics.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("nil middleware must pass through, got %d", rr.Code)
	}

	if err := jobs.Track("x").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobs.AddLedgerDrift("raw_materials", 1, 1)
}

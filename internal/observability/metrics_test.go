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

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()

	body := scrape(t, metrics)
	if !strings.Contains(body, "cowork_session_cache_evictions_total 0") {
		t.Fatalf("expected body to contain job collectors, got: %s", body)
	}

	_ = metrics.Jobs().Track("session:invalidate").End(errors.New("boom"))
	body = scrape(t, metrics)
	if !strings.Contains(body, `cowork_jobs_total{job="session:invalidate",status="failure"} 1`) {
		t.Fatalf("expected failed job run, got: %s", body)
	}
	if !strings.Contains(body, `cowork_jobs_failures_total{job="session:invalidate"} 1`) {
		t.Fatalf("expected failure counter, got: %s", body)
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

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "cowork_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "cowork_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestMetricsObserveGateAndSession(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveGateDecision("unauthorized")
	metrics.ObserveGateDecision("unauthorized")
	metrics.ObserveSessionFetch("authenticated")

	body := scrape(t, metrics)
	if !strings.Contains(body, `cowork_access_gate_decisions_total{status="unauthorized"} 2`) {
		t.Fatalf("expected gate decisions, got: %s", body)
	}
	if !strings.Contains(body, `cowork_session_fetches_total{outcome="authenticated"} 1`) {
		t.Fatalf("expected session fetches, got: %s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveGateDecision("authorized")
	metrics.ObserveSessionFetch("error")
	if metrics.Jobs() != nil {
		t.Fatal("expected nil job metrics")
	}
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trip_planner/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record one sample per family so the series show up
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveAgent("lodging", false, 40*time.Millisecond)
	observability.ObserveCacheN("retrieval", "expire", 3)
	observability.ObserveOrchestration("parallel", "partial")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, want := range []string{
		"trip_http_requests_total",
		`trip_agent_runs_total{domain="lodging",status="failed"}`,
		`trip_cache_events_total{cache="retrieval",event="expire"}`,
		`trip_orchestrations_total{mode="parallel",outcome="partial"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in output", want)
		}
	}
}

func TestNewLogger_LevelFallback(t *testing.T) {
	l := observability.NewLogger("prod", "bogus")
	if got := l.GetLevel().String(); got != "info" {
		t.Fatalf("expected info level, got %s", got)
	}
	l = observability.NewLogger("dev", "debug")
	if got := l.GetLevel().String(); got != "debug" {
		t.Fatalf("expected debug level, got %s", got)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumenmarket/api/internal/domain"
)

func TestHealthzReportsUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	current := start
	handler := NewHealthHandlers(WithHealthClock(func() time.Time { return current }))
	current = start.Add(90 * time.Second)

	rr := httptest.NewRecorder()
	handler.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected status %v", payload["status"])
	}
	if payload["uptime"] != "1m30s" {
		t.Fatalf("unexpected uptime %v", payload["uptime"])
	}
}

func TestReadyzDegradedStillReady(t *testing.T) {
	system := &stubSystemService{
		reportFunc: func(ctx context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
					"redis":     {Status: domain.HealthStatusDegraded, Error: "slow response"},
				},
			}, nil
		},
	}
	handler := NewHealthHandlers(WithSystemService(system))

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("degraded dependencies should stay ready, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["status"] != domain.HealthStatusDegraded {
		t.Fatalf("unexpected status %v", payload["status"])
	}
}

func TestReadyzErrorStatusNotReady(t *testing.T) {
	system := &stubSystemService{
		reportFunc: func(ctx context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{Status: domain.HealthStatusError}, nil
		},
	}
	handler := NewHealthHandlers(WithSystemService(system))

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestReadyzCollectFailure(t *testing.T) {
	system := &stubSystemService{
		reportFunc: func(ctx context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{}, errors.New("probe failed")
		},
	}
	handler := NewHealthHandlers(WithSystemService(system))

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

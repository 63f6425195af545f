package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		wantCode int
		wantBody string
	}{
		{"healthy", Healthy(""), http.StatusOK, "OK"},
		{"degraded", Degraded(""), http.StatusOK, "DEGRADED"},
		{"unhealthy", Unhealthy("", ErrCheckFailed), http.StatusServiceUnavailable, "UNHEALTHY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator()
			agg.Register(NewCheckerFunc("c", func(ctx context.Context) Result { return tt.result }))

			rec := httptest.NewRecorder()
			ReadinessHandler(agg)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestDetailedHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Register(NewCheckerFunc("caches", func(ctx context.Context) Result {
		return Healthy("2 cache(s) registered").WithDetails(map[string]any{"notes": map[string]any{"hits": 10}})
	}))
	agg.Register(NewCheckerFunc("reader", func(ctx context.Context) Result {
		return Unhealthy("backlog", ErrCheckFailed)
	}))

	rec := httptest.NewRecorder()
	DetailedHandler(agg)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when any check is unhealthy", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Status != "unhealthy" {
		t.Errorf("composite status = %q, want unhealthy", body.Status)
	}
	if len(body.Checks) != 2 {
		t.Fatalf("got %d checks, want 2", len(body.Checks))
	}
	if body.Checks["reader"].Error == "" {
		t.Error("failed check should carry its error message")
	}
	if body.Checks["caches"].Details == nil {
		t.Error("details should be serialized")
	}
}

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReady(t *testing.T) {
	h := NewHandler()
	h.RegisterChecker(CheckerFunc{CheckName: "bus", Fn: func(context.Context) error { return nil }})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.Ready(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ready" || resp.Checks["bus"] != "ok" {
		t.Errorf("response = %+v", resp)
	}
}

func TestReadyFailingChecker(t *testing.T) {
	h := NewHandler()
	h.RegisterChecker(CheckerFunc{CheckName: "ok", Fn: func(context.Context) error { return nil }})
	h.RegisterChecker(CheckerFunc{CheckName: "archive", Fn: func(context.Context) error {
		return errors.New("database locked")
	}})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.Ready(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "not_ready" || resp.Checks["archive"] != "database locked" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHealthAndLive(t *testing.T) {
	h := NewHandler()

	for name, fn := range map[string]http.HandlerFunc{"health": h.Health, "live": h.Live} {
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", name, rec.Code)
		}
	}
}

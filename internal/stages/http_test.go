package stages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPStageUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"count": 42}`))
	}))
	defer srv.Close()

	stage, err := newHTTPStage(nil)
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	result := stage.Check(context.Background(), srv.URL, false, rc)

	if result.Status != "up" {
		t.Fatalf("expected up, got %s: %s", result.Status, result.Message)
	}
	if result.Message != "200" {
		t.Fatalf("expected message '200', got %q", result.Message)
	}
	if got := result.Details["status_code"]; got != http.StatusOK {
		t.Fatalf("expected details.status_code=200, got %v", got)
	}
	if len(rc.ResponseBody) == 0 {
		t.Fatalf("expected response body to be captured in context")
	}
}

func TestHTTPStageDegradedOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	stage, err := newHTTPStage(nil)
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	result := stage.Check(context.Background(), srv.URL, false, NewRunContext())
	if result.Status != "degraded" {
		t.Fatalf("expected degraded for 5xx, got %s", result.Status)
	}
}

func TestHTTPStageDownOnTransportError(t *testing.T) {
	stage, err := newHTTPStage(nil)
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	result := stage.Check(context.Background(), "http://127.0.0.1:1", false, NewRunContext())
	if result.Status != "down" {
		t.Fatalf("expected down on connection refused, got %s", result.Status)
	}
	if result.ElapsedMs <= 0 {
		t.Fatalf("expected positive elapsed time, got %f", result.ElapsedMs)
	}
	if _, ok := result.Details["error"]; !ok {
		t.Fatalf("expected details.error to be set")
	}
}

func TestHTTPStageRejectsNonStringHeader(t *testing.T) {
	_, err := newHTTPStage(map[string]any{"headers": map[string]any{"X-Test": 1}})
	if err == nil {
		t.Fatalf("expected error for non-string header value")
	}
}

package stages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSSLStageDownOnSelfSignedTestCert(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// httptest's generated certificate is long-lived but self-signed;
	// the handshake itself will fail certificate verification since
	// the stage does not skip verification (spec: "always verify").
	stage, err := newSSLStage(map[string]any{"warn_days": float64(30)})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	result := stage.Check(context.Background(), srv.URL, false, NewRunContext())
	if result.Status != "down" {
		t.Fatalf("expected down on unverifiable self-signed cert, got %s: %s", result.Status, result.Message)
	}
}

func TestSSLStageDownOnUnreachableHost(t *testing.T) {
	stage, err := newSSLStage(nil)
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	result := stage.Check(context.Background(), "https://127.0.0.1:1", false, NewRunContext())
	if result.Status != "down" {
		t.Fatalf("expected down for unreachable host, got %s", result.Status)
	}
}

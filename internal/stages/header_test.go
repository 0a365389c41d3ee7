package stages

import (
	"context"
	"net/http"
	"testing"
)

func TestHeaderStageExtractsValue(t *testing.T) {
	stage, err := newHeaderStage(map[string]any{"pattern": "X-Request-Id", "store_as": "rid"})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	rc.ResponseHeaders = http.Header{"X-Request-Id": []string{"abc-123"}}

	result := stage.Check(context.Background(), "", false, rc)
	if result.Status != "up" {
		t.Fatalf("expected up, got %s: %s", result.Status, result.Message)
	}
	if rc.Values["rid"] != "abc-123" {
		t.Fatalf("expected stored value 'abc-123', got %v", rc.Values["rid"])
	}
}

func TestHeaderStageDownOnMissingHeader(t *testing.T) {
	stage, err := newHeaderStage(map[string]any{"pattern": "X-Missing"})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	result := stage.Check(context.Background(), "", false, NewRunContext())
	if result.Status != "down" {
		t.Fatalf("expected down on missing header, got %s", result.Status)
	}
}

func TestNewHeaderStageRequiresPattern(t *testing.T) {
	if _, err := newHeaderStage(map[string]any{}); err == nil {
		t.Fatalf("expected error when pattern is missing")
	}
}

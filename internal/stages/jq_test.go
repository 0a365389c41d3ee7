package stages

import (
	"context"
	"testing"
)

func TestJQStageExtractsValue(t *testing.T) {
	stage, err := newJQStage(map[string]any{"expr": ".count", "store_as": "c"})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	rc.ResponseBody = []byte(`{"count": 42}`)

	result := stage.Check(context.Background(), "", false, rc)
	if result.Status != "up" {
		t.Fatalf("expected up, got %s: %s", result.Status, result.Message)
	}
	if rc.Values["c"] != 42.0 {
		t.Fatalf("expected stored value 42, got %v", rc.Values["c"])
	}
}

func TestJQStageDownOnInvalidJSON(t *testing.T) {
	stage, err := newJQStage(map[string]any{"expr": "."})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	rc.ResponseBody = []byte(`not json`)

	result := stage.Check(context.Background(), "", false, rc)
	if result.Status != "down" {
		t.Fatalf("expected down on invalid JSON, got %s", result.Status)
	}
}

func TestJQStageDownOnMissingBody(t *testing.T) {
	stage, err := newJQStage(map[string]any{"expr": "."})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	result := stage.Check(context.Background(), "", false, NewRunContext())
	if result.Status != "down" {
		t.Fatalf("expected down on missing body, got %s", result.Status)
	}
}

func TestNewJQStageRejectsInvalidExpr(t *testing.T) {
	if _, err := newJQStage(map[string]any{"expr": ".["}); err == nil {
		t.Fatalf("expected error for invalid jq expression")
	}
}

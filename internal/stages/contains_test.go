package stages

import (
	"context"
	"testing"
)

func TestContainsStageUpOnMatch(t *testing.T) {
	stage, err := newContainsStage(map[string]any{"pattern": "healthy"})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	rc.ResponseBody = []byte("status: healthy")

	result := stage.Check(context.Background(), "", false, rc)
	if result.Status != "up" {
		t.Fatalf("expected up, got %s: %s", result.Status, result.Message)
	}
}

func TestContainsStageDownOnNoMatch(t *testing.T) {
	stage, err := newContainsStage(map[string]any{"pattern": "healthy"})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	rc.ResponseBody = []byte("status: degraded")

	result := stage.Check(context.Background(), "", false, rc)
	if result.Status != "down" {
		t.Fatalf("expected down, got %s", result.Status)
	}
}

func TestContainsStageNegateFlipsResult(t *testing.T) {
	stage, err := newContainsStage(map[string]any{"pattern": "error", "negate": true})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	rc.ResponseBody = []byte("fatal error occurred")

	result := stage.Check(context.Background(), "", false, rc)
	if result.Status != "down" {
		t.Fatalf("expected down when negated pattern is found, got %s", result.Status)
	}
	if result.Message != "unexpectedly_found" {
		t.Fatalf("expected message 'unexpectedly_found', got %q", result.Message)
	}
}

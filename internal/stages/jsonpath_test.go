package stages

import (
	"context"
	"testing"
)

func TestJSONPathStageSingleMatch(t *testing.T) {
	stage, err := newJSONPathStage(map[string]any{"expr": "$.data.count", "store_as": "count"})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	rc.ResponseBody = []byte(`{"data": {"count": 7}}`)

	result := stage.Check(context.Background(), "", false, rc)
	if result.Status != "up" {
		t.Fatalf("expected up, got %s: %s", result.Status, result.Message)
	}
	if rc.Values["count"] != 7.0 {
		t.Fatalf("expected stored value 7, got %v", rc.Values["count"])
	}
}

func TestJSONPathStageDownOnNoMatch(t *testing.T) {
	stage, err := newJSONPathStage(map[string]any{"expr": "$.missing"})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	rc.ResponseBody = []byte(`{"data": {}}`)

	result := stage.Check(context.Background(), "", false, rc)
	if result.Status != "down" {
		t.Fatalf("expected down on no match, got %s", result.Status)
	}
}

func TestJSONPathStageMultiMatchProducesArray(t *testing.T) {
	stage, err := newJSONPathStage(map[string]any{"expr": "$.items[*].id", "store_as": "ids"})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	rc.ResponseBody = []byte(`{"items": [{"id": 1}, {"id": 2}]}`)

	result := stage.Check(context.Background(), "", false, rc)
	if result.Status != "up" {
		t.Fatalf("expected up, got %s: %s", result.Status, result.Message)
	}
	if result.Details["match_count"] != 2 {
		t.Fatalf("expected match_count=2, got %v", result.Details["match_count"])
	}
}

package stages

import (
	"context"
	"testing"
)

func TestJSONSchemaStageUpOnValidDocument(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
	}
	stage, err := newJSONSchemaStage(map[string]any{"schema": schema})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	rc.ResponseBody = []byte(`{"name": "widget"}`)

	result := stage.Check(context.Background(), "", false, rc)
	if result.Status != "up" {
		t.Fatalf("expected up, got %s: %s", result.Status, result.Message)
	}
}

func TestJSONSchemaStageDownOnViolation(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"name"},
	}
	stage, err := newJSONSchemaStage(map[string]any{"schema": schema})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	rc.ResponseBody = []byte(`{}`)

	result := stage.Check(context.Background(), "", false, rc)
	if result.Status != "down" {
		t.Fatalf("expected down, got %s", result.Status)
	}
}

func TestJSONSchemaStageDownOnInvalidJSON(t *testing.T) {
	stage, err := newJSONSchemaStage(map[string]any{"schema": map[string]any{"type": "object"}})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	rc := NewRunContext()
	rc.ResponseBody = []byte(`not json`)

	result := stage.Check(context.Background(), "", false, rc)
	if result.Status != "down" {
		t.Fatalf("expected down, got %s", result.Status)
	}
}

func TestNewJSONSchemaStageRejectsInvalidSchema(t *testing.T) {
	if _, err := newJSONSchemaStage(map[string]any{"schema": map[string]any{"type": "not-a-real-type"}}); err == nil {
		t.Fatalf("expected error compiling invalid schema")
	}
}

package stages

import (
	"context"
	"testing"
)

func TestDNSStageResolvesLoopback(t *testing.T) {
	stage, err := newDNSStage(nil)
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	result := stage.Check(context.Background(), "http://localhost", false, NewRunContext())
	if result.Status != "up" {
		t.Fatalf("expected up resolving localhost, got %s: %s", result.Status, result.Message)
	}
}

func TestDNSStageDegradedOnExpectedIPMismatch(t *testing.T) {
	stage, err := newDNSStage(map[string]any{"expected_ip": "203.0.113.99"})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	result := stage.Check(context.Background(), "http://localhost", false, NewRunContext())
	if result.Status != "degraded" {
		t.Fatalf("expected degraded on expected_ip mismatch, got %s", result.Status)
	}
}

func TestDNSStageDownOnUnresolvableHost(t *testing.T) {
	stage, err := newDNSStage(nil)
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	result := stage.Check(context.Background(), "http://this-host-should-not-exist.invalid", false, NewRunContext())
	if result.Status != "down" {
		t.Fatalf("expected down for unresolvable host, got %s", result.Status)
	}
}

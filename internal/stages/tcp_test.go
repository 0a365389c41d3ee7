package stages

import (
	"context"
	"net"
	"testing"
)

func TestTCPStageUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	stage, err := newTCPStage(map[string]any{"port": float64(port)})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	result := stage.Check(context.Background(), "http://127.0.0.1", false, NewRunContext())
	if result.Status != "up" {
		t.Fatalf("expected up, got %s", result.Status)
	}
}

func TestTCPStageDownOnClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	stage, err := newTCPStage(map[string]any{"port": float64(port)})
	if err != nil {
		t.Fatalf("unexpected error constructing stage: %v", err)
	}

	result := stage.Check(context.Background(), "http://127.0.0.1", false, NewRunContext())
	if result.Status != "down" {
		t.Fatalf("expected down on closed port, got %s", result.Status)
	}
}

func TestTCPTargetDefaultsFromScheme(t *testing.T) {
	host, port, err := tcpTarget("https://example.com/path", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "example.com" || port != 443 {
		t.Fatalf("expected example.com:443, got %s:%d", host, port)
	}

	host, port, err = tcpTarget("http://example.com", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 80 {
		t.Fatalf("expected default port 80 for http scheme, got %d", port)
	}
}

func TestTCPStageRejectsInvalidPort(t *testing.T) {
	if _, err := newTCPStage(map[string]any{"port": float64(99999)}); err == nil {
		t.Fatalf("expected error for out-of-range port")
	}
}

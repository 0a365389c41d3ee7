package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

var errPermissionDenied = errors.New("operation not permitted")

type fakePinger struct {
	privileged bool
	runErr     error
	stats      *probing.Statistics
}

func (p *fakePinger) Run() error                     { return p.runErr }
func (p *fakePinger) Stop()                           {}
func (p *fakePinger) SetPrivileged(v bool)             { p.privileged = v }
func (p *fakePinger) Privileged() bool                 { return p.privileged }
func (p *fakePinger) SetCount(int)                     {}
func (p *fakePinger) SetTimeout(time.Duration)         {}
func (p *fakePinger) Statistics() *probing.Statistics  { return p.stats }

func TestPingStageUpOnReply(t *testing.T) {
	fp := &fakePinger{stats: &probing.Statistics{PacketsSent: 3, PacketsRecv: 3}}
	stage := &pingStage{count: 3, timeout: time.Second, newPinger: func(string) (pinger, error) { return fp, nil }}

	result := stage.Check(context.Background(), "http://example.com", false, NewRunContext())
	if result.Status != "up" {
		t.Fatalf("expected up, got %s: %s", result.Status, result.Message)
	}
}

func TestPingStageDownOnNoReply(t *testing.T) {
	fp := &fakePinger{stats: &probing.Statistics{PacketsSent: 3, PacketsRecv: 0}}
	stage := &pingStage{count: 3, timeout: time.Second, newPinger: func(string) (pinger, error) { return fp, nil }}

	result := stage.Check(context.Background(), "http://example.com", false, NewRunContext())
	if result.Status != "down" {
		t.Fatalf("expected down, got %s", result.Status)
	}
}

func TestPingStageFallsBackToUnprivileged(t *testing.T) {
	calls := 0
	fp := &fakePinger{stats: &probing.Statistics{PacketsSent: 3, PacketsRecv: 3}}
	stage := &pingStage{count: 3, timeout: time.Second, newPinger: func(string) (pinger, error) {
		calls++
		return &sequencedPinger{fakePinger: fp, failFirst: true}, nil
	}}

	result := stage.Check(context.Background(), "http://example.com", false, NewRunContext())
	if result.Status != "up" {
		t.Fatalf("expected up after fallback, got %s: %s", result.Status, result.Message)
	}
	if calls != 1 {
		t.Fatalf("expected a single pinger construction, got %d", calls)
	}
}

// sequencedPinger fails its first Run to exercise the
// privileged-to-unprivileged fallback path.
type sequencedPinger struct {
	*fakePinger
	failFirst bool
	ran       bool
}

func (p *sequencedPinger) Run() error {
	if !p.ran {
		p.ran = true
		if p.failFirst {
			return errPermissionDenied
		}
	}
	return nil
}

func TestHostOfExtractsHostname(t *testing.T) {
	host, err := hostOf("https://example.com:8443/path")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "example.com" {
		t.Fatalf("expected 'example.com', got %q", host)
	}
}

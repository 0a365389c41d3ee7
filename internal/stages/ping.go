package stages

import (
	"context"
	"fmt"
	"net/url"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("ping", newPingStage, Metadata{
		Name:           "Ping",
		Description:    "Check ICMP reachability",
		IsNetworkStage: true,
		Options: []Option{
			{Name: "count", Label: "Packet Count", Type: "number", Default: 3, Description: "Number of ICMP echo requests to send"},
			{Name: "timeout", Label: "Timeout (s)", Type: "number", Default: 5, Description: "Overall ping timeout in seconds"},
		},
	})
}

// pinger is the subset of pro-bing's Pinger the stage needs, split out
// the same way the teacher's ping.go does so tests can substitute a
// fake without sending real ICMP packets.
type pinger interface {
	Run() error
	Stop()
	SetPrivileged(bool)
	Privileged() bool
	SetCount(int)
	SetTimeout(time.Duration)
	Statistics() *probing.Statistics
}

type probingPinger struct {
	*probing.Pinger
}

func (p *probingPinger) SetCount(count int)          { p.Pinger.Count = count }
func (p *probingPinger) SetTimeout(t time.Duration)  { p.Pinger.Timeout = t }

func defaultPingerFactory(target string) (pinger, error) {
	p, err := probing.NewPinger(target)
	if err != nil {
		return nil, err
	}
	return &probingPinger{Pinger: p}, nil
}

// pingStage sends ICMP echo requests, falling back from privileged to
// unprivileged (UDP-based) mode on permission failure, same as the
// teacher's PingMonitor.
type pingStage struct {
	count     int
	timeout   time.Duration
	newPinger func(string) (pinger, error)
}

func newPingStage(options map[string]any) (Stage, error) {
	count := 3
	if raw, ok := options["count"]; ok {
		f, err := toFloat64(raw)
		if err != nil {
			return nil, &BadStageConfigError{StageType: "ping", Reason: fmt.Sprintf("invalid count: %s", err)}
		}
		count = int(f)
	}

	timeout := 5 * time.Second
	if raw, ok := options["timeout"]; ok {
		f, err := toFloat64(raw)
		if err != nil {
			return nil, &BadStageConfigError{StageType: "ping", Reason: fmt.Sprintf("invalid timeout: %s", err)}
		}
		timeout = time.Duration(f * float64(time.Second))
	}

	return &pingStage{count: count, timeout: timeout, newPinger: defaultPingerFactory}, nil
}

func (s *pingStage) Name() string         { return "ping" }
func (s *pingStage) Description() string  { return "Check ICMP reachability" }
func (s *pingStage) IsNetworkStage() bool { return true }

func (s *pingStage) Check(ctx context.Context, rawURL string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	host, err := hostOf(rawURL)
	if err != nil {
		return downResult(start, "bad_target", map[string]any{"error": err.Error()})
	}

	p, err := s.newPinger(host)
	if err != nil {
		return downResult(start, "setup_failed", map[string]any{"error": err.Error()})
	}

	p.SetCount(s.count)
	p.SetTimeout(s.timeout)
	p.SetPrivileged(true)

	if runErr := runPinger(ctx, p); runErr != nil {
		p.SetPrivileged(false)
		if runErr = runPinger(ctx, p); runErr != nil {
			return models.StageResult{
				Status:    models.StatusDown,
				Message:   "unreachable",
				ElapsedMs: time.Since(start).Seconds() * 1000,
				Details:   map[string]any{"error": runErr.Error()},
			}
		}
	}

	stats := p.Statistics()
	elapsed := time.Since(start)
	details := map[string]any{
		"packets_sent":    stats.PacketsSent,
		"packets_recv":    stats.PacketsRecv,
		"packet_loss_pct": stats.PacketLoss,
		"avg_rtt_ms":      float64(stats.AvgRtt.Microseconds()) / 1000,
	}

	if stats.PacketsRecv == 0 {
		return models.StageResult{Status: models.StatusDown, Message: "no_reply", ElapsedMs: elapsed.Seconds() * 1000, Details: details}
	}

	return models.StageResult{Status: models.StatusUp, Message: "reachable", ElapsedMs: elapsed.Seconds() * 1000, Details: details}
}

func runPinger(ctx context.Context, p pinger) error {
	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	select {
	case <-ctx.Done():
		p.Stop()
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Hostname() != "" {
		return u.Hostname(), nil
	}
	return rawURL, nil
}

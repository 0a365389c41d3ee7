package stages

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("dns", newDNSStage, Metadata{
		Name:           "DNS",
		Description:    "Check DNS resolution",
		IsNetworkStage: true,
		Options: []Option{
			{Name: "expected_ip", Label: "Expected IP", Type: "string", Description: "Validate DNS resolves to this IP"},
		},
	})
}

// dnsStage resolves the monitor URL's host and optionally checks an
// expected A record. Unlike original_source/dns.py, a mismatch against
// expected_ip degrades rather than failing outright.
type dnsStage struct {
	expectedIP string
}

func newDNSStage(options map[string]any) (Stage, error) {
	expected := ""
	if raw, ok := options["expected_ip"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, &BadStageConfigError{StageType: "dns", Reason: "expected_ip must be a string"}
		}
		expected = s
	}
	return &dnsStage{expectedIP: expected}, nil
}

func (s *dnsStage) Name() string         { return "dns" }
func (s *dnsStage) Description() string  { return "Check DNS resolution" }
func (s *dnsStage) IsNetworkStage() bool { return true }

func (s *dnsStage) Check(ctx context.Context, rawURL string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	u, err := url.Parse(rawURL)
	host := u.Hostname()
	if err != nil || host == "" {
		host = rawURL
	}

	ctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	resolver := &net.Resolver{PreferGo: true}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	elapsed := time.Since(start)

	if err != nil {
		return models.StageResult{
			Status:    models.StatusDown,
			Message:   "resolution_failed",
			ElapsedMs: elapsed.Seconds() * 1000,
			Details:   map[string]any{"error": err.Error()},
		}
	}

	var answers []string
	for _, a := range addrs {
		if a.IP.To4() != nil {
			answers = append(answers, a.IP.String())
		}
	}

	details := map[string]any{"answers": answers}

	if s.expectedIP != "" {
		matched := false
		for _, a := range answers {
			if a == s.expectedIP {
				matched = true
				break
			}
		}
		details["expected_ip"] = s.expectedIP
		details["matched"] = matched
		if !matched {
			return models.StageResult{
				Status:    models.StatusDegraded,
				Message:   "expected_ip_not_matched",
				ElapsedMs: elapsed.Seconds() * 1000,
				Details:   details,
			}
		}
	}

	return models.StageResult{
		Status:    models.StatusUp,
		Message:   "resolved",
		ElapsedMs: elapsed.Seconds() * 1000,
		Details:   details,
	}
}

package stages

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("ssl", newSSLStage, Metadata{
		Name:           "SSL Certificate",
		Description:    "Check SSL certificate validity and expiration",
		IsNetworkStage: true,
		Options: []Option{
			{Name: "warn_days", Label: "Warning Days", Type: "number", Default: 30, Description: "Days before expiry to show warning"},
		},
	})
}

// sslStage connects to host:port from the monitor URL and inspects
// the peer certificate chain, grounded on original_source/stages/ssl.py
// but re-expressed with crypto/tls instead of Python's ssl module
// .
type sslStage struct {
	warnDays int
}

func newSSLStage(options map[string]any) (Stage, error) {
	warnDays := 30
	if raw, ok := options["warn_days"]; ok {
		f, err := toFloat64(raw)
		if err != nil {
			return nil, &BadStageConfigError{StageType: "ssl", Reason: fmt.Sprintf("invalid warn_days: %s", err)}
		}
		warnDays = int(f)
	}
	return &sslStage{warnDays: warnDays}, nil
}

func (s *sslStage) Name() string         { return "ssl" }
func (s *sslStage) Description() string  { return "Check SSL certificate validity and expiration" }
func (s *sslStage) IsNetworkStage() bool { return true }

func (s *sslStage) Check(ctx context.Context, rawURL string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	host, port, err := tcpTarget(rawURL, 0)
	if err != nil {
		return downResult(start, "bad_target", map[string]any{"error": err.Error()})
	}
	if port == 80 {
		port = 443
	}

	dialer := &net.Dialer{Timeout: defaultDialTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", fmt.Sprintf("%s:%d", host, port), &tls.Config{ServerName: host})
	elapsed := time.Since(start)
	if err != nil {
		return models.StageResult{
			Status:    models.StatusDown,
			Message:   "handshake_failed",
			ElapsedMs: elapsed.Seconds() * 1000,
			Details:   map[string]any{"error": err.Error()},
		}
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return models.StageResult{
			Status:    models.StatusDown,
			Message:   "no_certificate",
			ElapsedMs: elapsed.Seconds() * 1000,
		}
	}
	cert := certs[0]

	daysRemaining := int(time.Until(cert.NotAfter).Hours() / 24)
	details := map[string]any{
		"subject":        cert.Subject.CommonName,
		"issuer":         cert.Issuer.CommonName,
		"not_after":      cert.NotAfter,
		"days_remaining": daysRemaining,
	}

	switch {
	case time.Now().After(cert.NotAfter):
		return models.StageResult{Status: models.StatusDown, Message: "certificate_expired", ElapsedMs: elapsed.Seconds() * 1000, Details: details}
	case daysRemaining <= s.warnDays:
		return models.StageResult{Status: models.StatusDegraded, Message: "certificate_expiring_soon", ElapsedMs: elapsed.Seconds() * 1000, Details: details}
	default:
		return models.StageResult{Status: models.StatusUp, Message: "valid", ElapsedMs: elapsed.Seconds() * 1000, Details: details}
	}
}

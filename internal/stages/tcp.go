package stages

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("tcp", newTCPStage, Metadata{
		Name:           "TCP Port",
		Description:    "Check TCP port connectivity",
		IsNetworkStage: true,
		Options: []Option{
			{Name: "port", Label: "Port", Type: "number", Required: true, Description: "Port to check"},
		},
	})
}

const defaultDialTimeout = 5 * time.Second

// tcpStage opens a TCP connection to (host, port) and reports whether
// it was accepted within the dial timeout.
type tcpStage struct {
	port int
}

func newTCPStage(options map[string]any) (Stage, error) {
	if _, ok := options["port"]; !ok {
		return nil, &BadStageConfigError{StageType: "tcp", Reason: "port is required"}
	}
	port := 0
	if raw, ok := options["port"]; ok {
		f, err := toFloat64(raw)
		if err != nil {
			return nil, &BadStageConfigError{StageType: "tcp", Reason: fmt.Sprintf("invalid port: %s", err)}
		}
		port = int(f)
		if port < 1 || port > 65535 {
			return nil, &BadStageConfigError{StageType: "tcp", Reason: fmt.Sprintf("port must be between 1 and 65535, got %d", port)}
		}
	}
	return &tcpStage{port: port}, nil
}

func (s *tcpStage) Name() string         { return "tcp" }
func (s *tcpStage) Description() string  { return "Check TCP port connectivity" }
func (s *tcpStage) IsNetworkStage() bool { return true }

func (s *tcpStage) Check(ctx context.Context, rawURL string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	host, port, err := tcpTarget(rawURL, s.port)
	if err != nil {
		return downResult(start, "bad_target", map[string]any{"error": err.Error()})
	}

	dialer := &net.Dialer{Timeout: defaultDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	elapsed := time.Since(start)

	if err != nil {
		return models.StageResult{
			Status:    models.StatusDown,
			Message:   "connection_failed",
			ElapsedMs: elapsed.Seconds() * 1000,
			Details:   map[string]any{"port": port, "connected": false, "error": err.Error()},
		}
	}
	conn.Close()

	return models.StageResult{
		Status:    models.StatusUp,
		Message:   "connected",
		ElapsedMs: elapsed.Seconds() * 1000,
		Details:   map[string]any{"port": port, "connected": true},
	}
}

// tcpTarget derives host and port from the monitor URL, overriding the
// URL's own port with an explicit stage option when given.
func tcpTarget(rawURL string, explicitPort int) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("invalid url: %w", err)
	}

	host := u.Hostname()
	if host == "" {
		host = rawURL
	}

	if explicitPort != 0 {
		return host, explicitPort, nil
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port in url: %w", err)
		}
		return host, port, nil
	}

	switch u.Scheme {
	case "https":
		return host, 443, nil
	default:
		return host, 80, nil
	}
}

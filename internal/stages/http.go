package stages

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("http", newHTTPStage, Metadata{
		Name:           "HTTP",
		Description:    "HTTP check with redirect following",
		IsNetworkStage: true,
		Options: []Option{
			{Name: "timeout", Label: "Timeout (s)", Type: "number", Default: 10, Description: "Request timeout in seconds"},
			{Name: "headers", Label: "Custom Headers", Type: "object", Description: "Custom HTTP headers to send"},
		},
	})
}

// httpStage performs a GET request, following redirects, and reports
// up/degraded/down by final status code.
type httpStage struct {
	timeout time.Duration
	headers map[string]string
}

const maxRedirects = 5

func newHTTPStage(options map[string]any) (Stage, error) {
	timeout := 10 * time.Second
	if raw, ok := options["timeout"]; ok {
		secs, err := toFloat64(raw)
		if err != nil {
			return nil, &BadStageConfigError{StageType: "http", Reason: fmt.Sprintf("invalid timeout: %s", err)}
		}
		timeout = time.Duration(secs * float64(time.Second))
		if timeout > 60*time.Second {
			timeout = 60 * time.Second
		}
	}

	headers := map[string]string{}
	if raw, ok := options["headers"]; ok {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, &BadStageConfigError{StageType: "http", Reason: "headers must be an object"}
		}
		for k, v := range m {
			s, ok := v.(string)
			if !ok {
				return nil, &BadStageConfigError{StageType: "http", Reason: fmt.Sprintf("header %q value must be a string", k)}
			}
			headers[k] = s
		}
	}

	return &httpStage{timeout: timeout, headers: headers}, nil
}

func (s *httpStage) Name() string         { return "http" }
func (s *httpStage) Description() string  { return "HTTP check with redirect following" }
func (s *httpStage) IsNetworkStage() bool { return true }

func (s *httpStage) Check(ctx context.Context, url string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	var redirects []map[string]any
	client := &http.Client{
		Timeout: s.timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: false},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			redirects = append(redirects, map[string]any{
				"status_code": via[len(via)-1].Response.StatusCode,
				"location":    req.URL.String(),
			})
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return downResult(start, "transport_error", map[string]any{"error": err.Error()})
	}

	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "hallmonitor/1.0")
	}

	resp, err := client.Do(req)
	if err != nil {
		return downResult(start, "transport_error", map[string]any{"error": err.Error()})
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	rc.ResponseBody = body
	rc.ResponseHeaders = resp.Header

	elapsed := time.Since(start)
	SeedBuiltins(rc, elapsed.Seconds()*1000, resp.StatusCode, resp.Request.URL.String())
	rc.Values["http_version"] = resp.Proto
	rc.Values["server"] = resp.Header.Get("Server")
	rc.Values["content_type"] = resp.Header.Get("Content-Type")
	rc.Values["redirects"] = redirects

	details := map[string]any{
		"status_code":  resp.StatusCode,
		"http_version": resp.Proto,
		"final_url":    resp.Request.URL.String(),
		"server":       resp.Header.Get("Server"),
		"content_type": resp.Header.Get("Content-Type"),
		"redirects":    redirects,
	}

	status := models.StatusUp
	message := strconv.Itoa(resp.StatusCode)
	if resp.StatusCode >= 400 {
		status = models.StatusDegraded
		message = fmt.Sprintf("%d", resp.StatusCode)
	}

	return models.StageResult{
		Status:    status,
		Message:   message,
		ElapsedMs: elapsed.Seconds() * 1000,
		Details:   details,
	}
}

func downResult(start time.Time, message string, details map[string]any) models.StageResult {
	return models.StageResult{
		Status:    models.StatusDown,
		Message:   message,
		ElapsedMs: time.Since(start).Seconds() * 1000,
		Details:   details,
	}
}

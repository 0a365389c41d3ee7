package stages

import (
	"context"
	"strings"
	"time"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("contains", newContainsStage, Metadata{
		Name:           "Contains",
		Description:    "Check if response contains/excludes text",
		IsNetworkStage: false,
		Options: []Option{
			{Name: "pattern", Label: "Pattern", Type: "string", Required: true, Description: "Text to search for"},
			{Name: "negate", Label: "Negate", Type: "boolean", Default: false, Description: "Fail if pattern IS found (expect absence)"},
		},
	})
}

// containsStage is a plain substring test on response_body (spec
// §4.6) — deliberately simpler than original_source/contains.py,
// which tries a regex match before falling back to a literal search.
type containsStage struct {
	pattern string
	negate  bool
}

func newContainsStage(options map[string]any) (Stage, error) {
	patternRaw, ok := options["pattern"]
	if !ok {
		return nil, &BadStageConfigError{StageType: "contains", Reason: "pattern is required"}
	}
	pattern, ok := patternRaw.(string)
	if !ok || pattern == "" {
		return nil, &BadStageConfigError{StageType: "contains", Reason: "pattern must be a non-empty string"}
	}

	negate := false
	if raw, ok := options["negate"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return nil, &BadStageConfigError{StageType: "contains", Reason: "negate must be a boolean"}
		}
		negate = b
	}

	return &containsStage{pattern: pattern, negate: negate}, nil
}

func (s *containsStage) Name() string         { return "contains" }
func (s *containsStage) Description() string  { return "Check if response contains/excludes text" }
func (s *containsStage) IsNetworkStage() bool { return false }

func (s *containsStage) Check(ctx context.Context, url string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	found := strings.Contains(string(rc.ResponseBody), s.pattern)
	ok := found != s.negate

	status := models.StatusDown
	message := "not_found"
	if ok {
		status = models.StatusUp
		message = "matched"
	} else if found {
		message = "unexpectedly_found"
	}

	return models.StageResult{
		Status:    status,
		Message:   message,
		ElapsedMs: time.Since(start).Seconds() * 1000,
		Details:   map[string]any{"found": found},
	}
}

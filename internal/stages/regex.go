package stages

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("regex", newRegexStage, Metadata{
		Name:           "Regex",
		Description:    "Match response against regex pattern",
		IsNetworkStage: false,
		Options: []Option{
			{Name: "pattern", Label: "Pattern", Type: "string", Required: true, Description: "Regular expression pattern"},
			{Name: "store_as", Label: "Store As", Type: "string", Description: "Key to store extracted value"},
		},
	})
}

// regexStage matches a regular expression against the textual body,
// taking group 1 when the pattern has groups or the whole match
// otherwise.
type regexStage struct {
	re      *regexp.Regexp
	storeAs string
}

func newRegexStage(options map[string]any) (Stage, error) {
	patternRaw, ok := options["pattern"]
	if !ok {
		return nil, &BadStageConfigError{StageType: "regex", Reason: "pattern is required"}
	}
	pattern, ok := patternRaw.(string)
	if !ok || pattern == "" {
		return nil, &BadStageConfigError{StageType: "regex", Reason: "pattern must be a non-empty string"}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &BadStageConfigError{StageType: "regex", Reason: fmt.Sprintf("invalid pattern: %s", err)}
	}

	storeAs, _ := options["store_as"].(string)

	return &regexStage{re: re, storeAs: storeAs}, nil
}

func (s *regexStage) Name() string         { return "regex" }
func (s *regexStage) Description() string  { return "Match response against regex pattern" }
func (s *regexStage) IsNetworkStage() bool { return false }

func (s *regexStage) Check(ctx context.Context, url string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	if len(rc.ResponseBody) == 0 {
		return downResult(start, "no_response_body", nil)
	}

	match := s.re.FindStringSubmatch(string(rc.ResponseBody))
	if match == nil {
		return downResult(start, "no_match", nil)
	}

	value := match[0]
	if len(match) > 1 {
		value = match[1]
	}

	if s.storeAs != "" {
		rc.Values[s.storeAs] = value
	}

	return models.StageResult{
		Status:    models.StatusUp,
		Message:   "matched",
		ElapsedMs: time.Since(start).Seconds() * 1000,
		Details:   map[string]any{"value": value},
	}
}

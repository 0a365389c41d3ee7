package stages

import (
	"context"
	"time"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("header", newHeaderStage, Metadata{
		Name:           "Header",
		Description:    "Extract a response header value",
		IsNetworkStage: false,
		Options: []Option{
			{Name: "pattern", Label: "Header Name", Type: "string", Required: true, Description: "Header name to look up"},
			{Name: "store_as", Label: "Store As", Type: "string", Description: "Key to store extracted value"},
		},
	})
}

// headerStage does a case-insensitive lookup of a response header.
// headerStage is a pure extractor (no expected-value comparison),
// unlike original_source/stages/header.py's optional validation.
type headerStage struct {
	header  string
	storeAs string
}

func newHeaderStage(options map[string]any) (Stage, error) {
	nameRaw, ok := options["pattern"]
	if !ok {
		return nil, &BadStageConfigError{StageType: "header", Reason: "pattern is required"}
	}
	name, ok := nameRaw.(string)
	if !ok || name == "" {
		return nil, &BadStageConfigError{StageType: "header", Reason: "pattern must be a non-empty string"}
	}

	storeAs, _ := options["store_as"].(string)

	return &headerStage{header: name, storeAs: storeAs}, nil
}

func (s *headerStage) Name() string         { return "header" }
func (s *headerStage) Description() string  { return "Extract a response header value" }
func (s *headerStage) IsNetworkStage() bool { return false }

func (s *headerStage) Check(ctx context.Context, url string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	value, ok := rc.Header(s.header)
	if !ok {
		return downResult(start, "header_missing", map[string]any{"header": s.header})
	}

	if s.storeAs != "" {
		rc.Values[s.storeAs] = value
	}

	return models.StageResult{
		Status:    models.StatusUp,
		Message:   "found",
		ElapsedMs: time.Since(start).Seconds() * 1000,
		Details:   map[string]any{"value": value},
	}
}

package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("jq", newJQStage, Metadata{
		Name:           "jq",
		Description:    "Extract values using jq expressions",
		IsNetworkStage: false,
		Options: []Option{
			{Name: "expr", Label: "Expression", Type: "string", Required: true, Description: "jq expression"},
			{Name: "store_as", Label: "Store As", Type: "string", Description: "Key to store extracted value"},
		},
	})
}

// jqStage evaluates a real jq program against the JSON response body
// — original_source hand-rolls a dot/pipe subset parser; this wraps
// itchyny/gojq instead of reimplementing a subset.
type jqStage struct {
	query   *gojq.Query
	storeAs string
}

func newJQStage(options map[string]any) (Stage, error) {
	exprRaw, ok := options["expr"]
	if !ok {
		return nil, &BadStageConfigError{StageType: "jq", Reason: "expr is required"}
	}
	expr, ok := exprRaw.(string)
	if !ok || expr == "" {
		return nil, &BadStageConfigError{StageType: "jq", Reason: "expr must be a non-empty string"}
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, &BadStageConfigError{StageType: "jq", Reason: fmt.Sprintf("invalid expression: %s", err)}
	}

	storeAs, _ := options["store_as"].(string)

	return &jqStage{query: query, storeAs: storeAs}, nil
}

func (s *jqStage) Name() string         { return "jq" }
func (s *jqStage) Description() string  { return "Extract values using jq expressions" }
func (s *jqStage) IsNetworkStage() bool { return false }

func (s *jqStage) Check(ctx context.Context, url string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	if len(rc.ResponseBody) == 0 {
		return downResult(start, "no_response_body", nil)
	}

	var doc any
	if err := json.Unmarshal(rc.ResponseBody, &doc); err != nil {
		return downResult(start, "invalid_json", map[string]any{"error": err.Error()})
	}

	iter := s.query.RunWithContext(ctx, doc)
	first, ok := iter.Next()
	if !ok {
		return downResult(start, "no_result", nil)
	}
	if err, isErr := first.(error); isErr {
		return downResult(start, "extraction_error", map[string]any{"error": err.Error()})
	}

	if _, hasMore := iter.Next(); hasMore {
		return downResult(start, "multiple_results", nil)
	}

	if s.storeAs != "" {
		rc.Values[s.storeAs] = first
	}

	return models.StageResult{
		Status:    models.StatusUp,
		Message:   "extracted",
		ElapsedMs: time.Since(start).Seconds() * 1000,
		Details:   map[string]any{"value": first},
	}
}

package stages

import (
	"context"
	"encoding/json"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("jsonpath", newJSONPathStage, Metadata{
		Name:           "JSONPath",
		Description:    "Extract values using JSONPath expressions",
		IsNetworkStage: false,
		Options: []Option{
			{Name: "expr", Label: "Expression", Type: "string", Required: true, Description: "JSONPath expression"},
			{Name: "store_as", Label: "Store As", Type: "string", Description: "Key to store extracted value for later stages"},
		},
	})
}

// jsonPathStage evaluates a real JSONPath expression against the JSON
// response body via PaesslerAG/jsonpath, replacing
// original_source's hand-rolled recursive-descent subset parser.
type jsonPathStage struct {
	expr    string
	storeAs string
}

func newJSONPathStage(options map[string]any) (Stage, error) {
	exprRaw, ok := options["expr"]
	if !ok {
		return nil, &BadStageConfigError{StageType: "jsonpath", Reason: "expr is required"}
	}
	expr, ok := exprRaw.(string)
	if !ok || expr == "" {
		return nil, &BadStageConfigError{StageType: "jsonpath", Reason: "expr must be a non-empty string"}
	}

	storeAs, _ := options["store_as"].(string)

	return &jsonPathStage{expr: expr, storeAs: storeAs}, nil
}

func (s *jsonPathStage) Name() string         { return "jsonpath" }
func (s *jsonPathStage) Description() string  { return "Extract values using JSONPath expressions" }
func (s *jsonPathStage) IsNetworkStage() bool { return false }

func (s *jsonPathStage) Check(ctx context.Context, url string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	if len(rc.ResponseBody) == 0 {
		return downResult(start, "no_response_body", nil)
	}

	var doc any
	if err := json.Unmarshal(rc.ResponseBody, &doc); err != nil {
		return downResult(start, "invalid_json", map[string]any{"error": err.Error()})
	}

	result, err := jsonpath.Get(s.expr, doc)
	if err != nil {
		return downResult(start, "no_match", map[string]any{"error": err.Error()})
	}

	var value any = result
	matchCount := 1
	if list, ok := result.([]any); ok {
		matchCount = len(list)
		if matchCount == 0 {
			return downResult(start, "no_match", nil)
		}
		if matchCount == 1 {
			value = list[0]
		}
	}

	if s.storeAs != "" {
		rc.Values[s.storeAs] = value
	}

	return models.StageResult{
		Status:    models.StatusUp,
		Message:   "extracted",
		ElapsedMs: time.Since(start).Seconds() * 1000,
		Details:   map[string]any{"value": value, "match_count": matchCount},
	}
}

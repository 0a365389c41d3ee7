package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("threshold", newThresholdStage, Metadata{
		Name:           "Threshold",
		Description:    "Assert value is within bounds",
		IsNetworkStage: false,
		Options: []Option{
			{Name: "value", Label: "Value Reference", Type: "string", Required: true, Description: "Value to check ($elapsed_ms, $status_code, or stored key)"},
			{Name: "min", Label: "Minimum", Type: "number", Description: "Minimum allowed value"},
			{Name: "max", Label: "Maximum", Type: "number", Description: "Maximum allowed value"},
		},
	})
}

// thresholdStage resolves value (literal or $ref) and asserts it lies
// within [min, max], either bound optional.
type thresholdStage struct {
	value any
	min   *float64
	max   *float64
}

func newThresholdStage(options map[string]any) (Stage, error) {
	value, ok := options["value"]
	if !ok {
		return nil, &BadStageConfigError{StageType: "threshold", Reason: "value is required"}
	}

	var minPtr, maxPtr *float64
	if raw, ok := options["min"]; ok {
		f, err := toFloat64(raw)
		if err != nil {
			return nil, &BadStageConfigError{StageType: "threshold", Reason: fmt.Sprintf("invalid min: %s", err)}
		}
		minPtr = &f
	}
	if raw, ok := options["max"]; ok {
		f, err := toFloat64(raw)
		if err != nil {
			return nil, &BadStageConfigError{StageType: "threshold", Reason: fmt.Sprintf("invalid max: %s", err)}
		}
		maxPtr = &f
	}
	if minPtr == nil && maxPtr == nil {
		return nil, &BadStageConfigError{StageType: "threshold", Reason: "at least one of min, max is required"}
	}

	return &thresholdStage{value: value, min: minPtr, max: maxPtr}, nil
}

func (s *thresholdStage) Name() string         { return "threshold" }
func (s *thresholdStage) Description() string  { return "Assert value is within bounds" }
func (s *thresholdStage) IsNetworkStage() bool { return false }

func (s *thresholdStage) Check(ctx context.Context, url string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	v, err := ResolveNumber(s.value, rc)
	if err != nil {
		if _, unresolved := err.(*UnresolvedValueError); unresolved {
			return downResult(start, err.Error(), nil)
		}
		return downResult(start, "invalid_value", map[string]any{"error": err.Error()})
	}

	if s.min != nil && v < *s.min {
		return models.StageResult{
			Status:    models.StatusDown,
			Message:   "out_of_range",
			ElapsedMs: time.Since(start).Seconds() * 1000,
			Details:   map[string]any{"value": v, "min": *s.min},
		}
	}
	if s.max != nil && v > *s.max {
		return models.StageResult{
			Status:    models.StatusDown,
			Message:   "out_of_range",
			ElapsedMs: time.Since(start).Seconds() * 1000,
			Details:   map[string]any{"value": v, "max": *s.max},
		}
	}

	return models.StageResult{
		Status:    models.StatusUp,
		Message:   "in_range",
		ElapsedMs: time.Since(start).Seconds() * 1000,
		Details:   map[string]any{"value": v},
	}
}

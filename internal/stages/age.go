package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("age", newAgeStage, Metadata{
		Name:           "Age",
		Description:    "Check data freshness (timestamp age)",
		IsNetworkStage: false,
		Options: []Option{
			{Name: "value", Label: "Timestamp Reference", Type: "string", Required: true, Description: "Timestamp to check ($ref or literal ISO-8601)"},
			{Name: "max_age", Label: "Max Age (seconds)", Type: "number", Required: true, Description: "Maximum allowed age in seconds"},
		},
	})
}

// ageStage parses value as an ISO-8601 timestamp and asserts its age
// against max_age, up to 2x degraded. There is no
// original_source reference for this stage; it is built purely from
// the specification and the decided Open Question on max_age=0.
type ageStage struct {
	value  any
	maxAge float64 // seconds
}

func newAgeStage(options map[string]any) (Stage, error) {
	value, ok := options["value"]
	if !ok {
		return nil, &BadStageConfigError{StageType: "age", Reason: "value is required"}
	}

	maxAgeRaw, ok := options["max_age"]
	if !ok {
		return nil, &BadStageConfigError{StageType: "age", Reason: "max_age is required"}
	}
	maxAge, err := toFloat64(maxAgeRaw)
	if err != nil {
		return nil, &BadStageConfigError{StageType: "age", Reason: fmt.Sprintf("invalid max_age: %s", err)}
	}
	if maxAge < 0 {
		return nil, &BadStageConfigError{StageType: "age", Reason: "max_age must be non-negative"}
	}

	return &ageStage{value: value, maxAge: maxAge}, nil
}

func (s *ageStage) Name() string         { return "age" }
func (s *ageStage) Description() string  { return "Check data freshness (timestamp age)" }
func (s *ageStage) IsNetworkStage() bool { return false }

func (s *ageStage) Check(ctx context.Context, url string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	raw, err := ResolveRef(s.value, rc)
	if err != nil {
		return downResult(start, err.Error(), nil)
	}

	tsStr, ok := raw.(string)
	if !ok {
		return downResult(start, "value_not_timestamp", map[string]any{"value": raw})
	}

	ts, err := time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return downResult(start, "invalid_timestamp", map[string]any{"error": err.Error()})
	}

	ageSeconds := time.Since(ts).Seconds()
	details := map[string]any{"age_seconds": ageSeconds, "max_age": s.maxAge}

	// max_age == 0 is up iff the timestamp is strictly in the past
	// with zero delta, compared at whole-second resolution.
	if s.maxAge == 0 {
		if int64(ageSeconds) == 0 && ageSeconds >= 0 {
			return models.StageResult{Status: models.StatusUp, Message: "fresh", ElapsedMs: time.Since(start).Seconds() * 1000, Details: details}
		}
		return models.StageResult{Status: models.StatusDown, Message: "stale", ElapsedMs: time.Since(start).Seconds() * 1000, Details: details}
	}

	switch {
	case ageSeconds <= s.maxAge:
		return models.StageResult{Status: models.StatusUp, Message: "fresh", ElapsedMs: time.Since(start).Seconds() * 1000, Details: details}
	case ageSeconds <= 2*s.maxAge:
		return models.StageResult{Status: models.StatusDegraded, Message: "aging", ElapsedMs: time.Since(start).Seconds() * 1000, Details: details}
	default:
		return models.StageResult{Status: models.StatusDown, Message: "stale", ElapsedMs: time.Since(start).Seconds() * 1000, Details: details}
	}
}

package stages

import (
	"fmt"
	"strconv"
	"strings"
)

// ResolveRef resolves an assertion-style stage input that may be
// either a literal or a $name reference into context.Values. A
// missing name is a stage-level error.
func ResolveRef(raw any, rc *RunContext) (any, error) {
	s, ok := raw.(string)
	if !ok || !strings.HasPrefix(s, "$") {
		return raw, nil
	}

	name := strings.TrimPrefix(s, "$")
	v, ok := rc.Values[name]
	if !ok {
		return nil, &UnresolvedValueError{Name: name}
	}
	return v, nil
}

// ResolveNumber resolves raw the way ResolveRef does and then coerces
// the result to a float64, for stages like threshold that need a numeric value regardless of whether it arrived as a JSON
// number, a string, or an int from a prior extractor.
func ResolveNumber(raw any, rc *RunContext) (float64, error) {
	v, err := ResolveRef(raw, rc)
	if err != nil {
		return 0, err
	}
	return toFloat64(v)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as a number: %w", n, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to a number", v)
	}
}

// SeedBuiltins populates the $elapsed_ms, $status_code, and $final_url
// built-ins from the most recently executed network stage's result.
// Called by the executor (elapsed time only) after every network stage
// that does not end the run, and by the http stage itself, which also
// supplies its status code and final URL.
func SeedBuiltins(rc *RunContext, elapsedMs float64, statusCode int, finalURL string) {
	rc.Values["elapsed_ms"] = elapsedMs
	if statusCode != 0 {
		rc.Values["status_code"] = statusCode
	}
	if finalURL != "" {
		rc.Values["final_url"] = finalURL
	}
}

// Package stages implements the pluggable stage contract: the
// polymorphic interface every network probe, extractor, and assertion
// satisfies, plus the registry that maps stage-type names to
// constructors.
package stages

import (
	"context"
	"net/http"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

// RunContext is the transient, per-pipeline-run scratch space carried
// between stages. It is owned by the pipeline executor for the
// duration of exactly one run and must never outlive it.
type RunContext struct {
	ResponseBody    []byte
	ResponseHeaders http.Header
	Values          map[string]any
}

// NewRunContext creates an empty context pre-seeded with nothing; the
// executor seeds $elapsed_ms after each network stage has run, and the
// http stage also seeds $status_code and $final_url.
func NewRunContext() *RunContext {
	return &RunContext{
		ResponseHeaders: http.Header{},
		Values:          make(map[string]any),
	}
}

// Header looks up a response header case-insensitively.
func (rc *RunContext) Header(name string) (string, bool) {
	if rc.ResponseHeaders == nil {
		return "", false
	}
	v := rc.ResponseHeaders.Get(name)
	if v == "" {
		if _, ok := rc.ResponseHeaders[http.CanonicalHeaderKey(name)]; !ok {
			return "", false
		}
	}
	return v, true
}

// Stage is the sole extension point of the engine. Every network
// probe, extractor, and assertion implements it.
type Stage interface {
	// Name matches the registered type name.
	Name() string
	// Description is a short human string describing the stage.
	Description() string
	// IsNetworkStage declares whether this stage issues the primary
	// network request whose body/headers seed the context.
	IsNetworkStage() bool
	// Check runs the stage against url, using and mutating rc.
	Check(ctx context.Context, url string, verbose bool, rc *RunContext) models.StageResult
}

// Constructor builds a Stage from a stage spec's options map. It
// returns a *BadStageConfigError if option validation fails.
type Constructor func(options map[string]any) (Stage, error)

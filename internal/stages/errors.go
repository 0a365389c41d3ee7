package stages

import (
	"errors"
	"fmt"
)

// Sentinel errors for the stage-contract and pipeline-level failure
// kinds reported to the API layer.
var (
	// ErrUnknownStage indicates a stage spec named a type absent from
	// the registry.
	ErrUnknownStage = errors.New("unknown stage type")

	// ErrBadStageConfig indicates a stage constructor rejected its
	// options.
	ErrBadStageConfig = errors.New("invalid stage configuration")

	// ErrBadPipeline indicates a pipeline failed structural
	// validation before any stage ran.
	ErrBadPipeline = errors.New("invalid pipeline")

	// ErrStageTimeout indicates a single stage exceeded its timeout.
	ErrStageTimeout = errors.New("stage timed out")

	// ErrPipelineTimeout indicates the whole pipeline exceeded its
	// aggregate timeout budget.
	ErrPipelineTimeout = errors.New("pipeline timed out")

	// ErrUnresolvedValue indicates a $name reference had no entry in
	// the run context's value map.
	ErrUnresolvedValue = errors.New("unresolved value reference")
)

// UnknownStageError is raised by the registry when a spec's type does
// not resolve to a registered constructor.
type UnknownStageError struct {
	Type string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage type %q", e.Type)
}

func (e *UnknownStageError) Is(target error) bool { return target == ErrUnknownStage }

// BadStageConfigError is raised by a stage constructor when its
// options fail validation, referencing the monitor and stage index so
// the caller can point at the offending spec.
type BadStageConfigError struct {
	MonitorID  string
	StageIndex int
	StageType  string
	Reason     string
}

func (e *BadStageConfigError) Error() string {
	return fmt.Sprintf("monitor %s stage[%d] (%s): %s", e.MonitorID, e.StageIndex, e.StageType, e.Reason)
}

func (e *BadStageConfigError) Is(target error) bool { return target == ErrBadStageConfig }

// BadPipelineError is raised by the executor's pre-flight structural
// validation, e.g. an empty pipeline or one with no network stage.
type BadPipelineError struct {
	MonitorID string
	Reason    string
}

func (e *BadPipelineError) Error() string {
	return fmt.Sprintf("monitor %s: invalid pipeline: %s", e.MonitorID, e.Reason)
}

func (e *BadPipelineError) Is(target error) bool { return target == ErrBadPipeline }

// StageTimeoutError is raised when a single stage's Check call exceeds
// its timeout budget.
type StageTimeoutError struct {
	StageType string
	Timeout   string
}

func (e *StageTimeoutError) Error() string {
	return fmt.Sprintf("stage %s timed out after %s", e.StageType, e.Timeout)
}

func (e *StageTimeoutError) Is(target error) bool { return target == ErrStageTimeout }

// PipelineTimeoutError is raised when the whole pipeline run exceeds
// the sum of its stage timeouts plus slack.
type PipelineTimeoutError struct {
	MonitorID string
	Budget    string
}

func (e *PipelineTimeoutError) Error() string {
	return fmt.Sprintf("monitor %s: pipeline exceeded timeout budget %s", e.MonitorID, e.Budget)
}

func (e *PipelineTimeoutError) Is(target error) bool { return target == ErrPipelineTimeout }

// UnresolvedValueError is raised by $name resolution when the name is
// absent from the run context's value map.
type UnresolvedValueError struct {
	Name string
}

func (e *UnresolvedValueError) Error() string {
	return fmt.Sprintf("unresolved $%s", e.Name)
}

func (e *UnresolvedValueError) Is(target error) bool { return target == ErrUnresolvedValue }

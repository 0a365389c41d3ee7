// Package pipeline implements the core "construct, run, collect,
// aggregate" loop that turns a monitor's ordered stage list into a
// single CheckResult.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/hallmonitor/internal/logging"
	"github.com/1broseidon/hallmonitor/internal/metrics"
	"github.com/1broseidon/hallmonitor/internal/stages"
	"github.com/1broseidon/hallmonitor/pkg/models"
)

// ResultSink is the slice of the storage contract the executor needs:
// persisting the outcome and refreshing the monitor's denormalized
// last_check/last_status mirror. Kept narrow and local so the pipeline
// package does not need to depend on a concrete storage backend.
type ResultSink interface {
	AppendResult(ctx context.Context, result *models.CheckResult) error
	UpdateMonitorMirror(ctx context.Context, monitorID string, checkedAt time.Time, status models.Status) error
}

const (
	defaultStageTimeout    = 30 * time.Second
	maxNetworkStageTimeout = 60 * time.Second
	maxMessageLen          = 1024
	timeoutSlack           = 0.10
)

// Executor runs a monitor's pipeline and persists the resulting
// CheckResult.
type Executor struct {
	store   ResultSink
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewExecutor constructs an Executor. logger and metrics may be nil.
func NewExecutor(store ResultSink, logger *logging.Logger, m *metrics.Metrics) *Executor {
	return &Executor{store: store, logger: logger, metrics: m}
}

// Run executes mon's pipeline against a fresh RunContext, persists the
// resulting CheckResult, and returns it.
func (e *Executor) Run(ctx context.Context, mon *models.Monitor) (*models.CheckResult, error) {
	start := time.Now()

	if err := validatePipeline(mon); err != nil {
		result := &models.CheckResult{
			ID:        uuid.NewString(),
			MonitorID: mon.ID,
			CheckedAt: start,
			Status:    models.StatusDown,
			Message:   "pipeline_invalid",
			ElapsedMs: time.Since(start).Seconds() * 1000,
			Details:   map[string]any{"error": err.Error()},
		}
		e.persist(ctx, mon, result)
		return result, err
	}

	budget := pipelineBudget(mon.Pipeline)
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	rc := stages.NewRunContext()
	stageResults := make([]namedStageResult, 0, len(mon.Pipeline))
	seen := make(map[string]int)

	aggStatus := models.StatusUp
	var messages []string

	for _, spec := range mon.Pipeline {
		ctor, err := stages.Get(spec.Type)
		if err != nil {
			aggStatus = models.StatusDown
			messages = append(messages, fmt.Sprintf("%s: %s", spec.Type, err.Error()))
			break
		}

		stage, err := ctor(spec.Options)
		if err != nil {
			aggStatus = models.StatusDown
			messages = append(messages, fmt.Sprintf("%s: %s", spec.Type, err.Error()))
			break
		}

		detailKey := keyFor(spec.Type, seen)
		sr := e.runStage(runCtx, stage, mon.URL, rc, stageTimeout(spec))
		stageResults = append(stageResults, namedStageResult{key: detailKey, result: sr})

		aggStatus = models.Worse(aggStatus, sr.Status)
		messages = append(messages, fmt.Sprintf("%s: %s", spec.Type, sr.Message))

		if sr.Status == models.StatusDown {
			break
		}
		if stage.IsNetworkStage() {
			stages.SeedBuiltins(rc, sr.ElapsedMs, 0, "")
		}
	}

	details := make(map[string]any, len(stageResults))
	for _, sr := range stageResults {
		details[sr.key] = sr.result.Details
	}

	message := strings.Join(messages, "; ")
	if len(message) > maxMessageLen {
		message = message[:maxMessageLen]
	}

	result := &models.CheckResult{
		ID:        uuid.NewString(),
		MonitorID: mon.ID,
		CheckedAt: start,
		Status:    aggStatus,
		Message:   message,
		ElapsedMs: time.Since(start).Seconds() * 1000,
		Details:   details,
	}

	if runCtx.Err() != nil {
		result.Status = models.StatusDown
		result.Message = "pipeline_timeout"
	}

	e.persist(ctx, mon, result)

	if e.metrics != nil {
		e.metrics.RecordCheck(mon.ID, "pipeline", "", string(result.Status), time.Since(start))
		e.metrics.SetMonitorStatus(mon.ID, "pipeline", "", result.Status == models.StatusUp)
		if result.Status == models.StatusDown {
			e.metrics.RecordError(mon.ID, "pipeline", "", errorType(result.Message))
		}
	}
	if e.logger != nil {
		e.logger.WithComponent(logging.ComponentMonitor).
			WithMonitor(mon.Name, "pipeline", "").
			WithEvent(logging.EventCheckCompleted).
			WithFields(map[string]interface{}{
				"monitor_id": mon.ID,
				"status":     string(result.Status),
				"elapsed_ms": result.ElapsedMs,
			}).
			Debug("pipeline run completed")
	}

	return result, nil
}

type namedStageResult struct {
	key    string
	result models.StageResult
}

// runStage wraps a single stage's Check call with a hard timeout and
// converts panics/context deadlines into a down StageResult so a
// misbehaving stage cannot hang or crash the worker.
func (e *Executor) runStage(ctx context.Context, stage stages.Stage, url string, rc *stages.RunContext, timeout time.Duration) models.StageResult {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result models.StageResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		done <- outcome{result: stage.Check(stageCtx, url, false, rc)}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return models.StageResult{Status: models.StatusDown, Message: o.err.Error()}
		}
		return o.result
	case <-stageCtx.Done():
		return models.StageResult{
			Status:  models.StatusDown,
			Message: fmt.Sprintf("%s: %s", stage.Name(), "timeout"),
		}
	}
}

func (e *Executor) persist(ctx context.Context, mon *models.Monitor, result *models.CheckResult) {
	if e.store == nil {
		return
	}
	if err := e.store.AppendResult(ctx, result); err != nil && e.logger != nil {
		e.logger.WithComponent(logging.ComponentMonitor).WithError(err).Error("failed to append check result")
	}
	if err := e.store.UpdateMonitorMirror(ctx, mon.ID, result.CheckedAt, result.Status); err != nil && e.logger != nil {
		e.logger.WithComponent(logging.ComponentMonitor).WithError(err).Error("failed to update monitor mirror")
	}
}

// validatePipeline enforces the structural precondition: at least one
// network stage before anything else runs.
func validatePipeline(mon *models.Monitor) error {
	if len(mon.Pipeline) == 0 {
		return &stages.BadPipelineError{MonitorID: mon.ID, Reason: "empty pipeline"}
	}
	for _, spec := range mon.Pipeline {
		if stages.IsNetworkStage(spec.Type) {
			return nil
		}
	}
	return &stages.BadPipelineError{MonitorID: mon.ID, Reason: "no network stage"}
}

// pipelineBudget sums each stage's own deadline (see stageTimeout) plus
// 10% slack, used to bound the whole run independent of any single
// stage's configured timeout.
func pipelineBudget(pipeline []models.StageSpec) time.Duration {
	var total time.Duration
	for _, spec := range pipeline {
		total += stageTimeout(spec)
	}
	return total + time.Duration(float64(total)*timeoutSlack)
}

// stageTimeout derives one stage's deadline: network stages honor their
// own "timeout" option (seconds), capped at maxNetworkStageTimeout; every
// other stage, and any network stage without a valid timeout option,
// gets defaultStageTimeout. Per spec.md section 4.3.
func stageTimeout(spec models.StageSpec) time.Duration {
	if stages.IsNetworkStage(spec.Type) {
		if raw, ok := spec.Options["timeout"]; ok {
			if secs, err := toSeconds(raw); err == nil {
				t := time.Duration(secs * float64(time.Second))
				if t > maxNetworkStageTimeout {
					t = maxNetworkStageTimeout
				}
				return t
			}
		}
	}
	return defaultStageTimeout
}

func toSeconds(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a number")
	}
}

// errorType collapses a down result's message into a low-cardinality
// label for the errors_total counter: the two fixed pipeline-level
// reasons, or "stage_failure" for anything produced by an individual
// stage's own message.
func errorType(message string) string {
	switch message {
	case "pipeline_invalid", "pipeline_timeout":
		return message
	default:
		return "stage_failure"
	}
}

func keyFor(stageType string, seen map[string]int) string {
	n := seen[stageType]
	seen[stageType] = n + 1
	if n == 0 {
		return stageType
	}
	return fmt.Sprintf("%s#%d", stageType, n)
}

// Package storage implements the storage contract described in the
// engine design: monitor CRUD, an append-only per-monitor result log
// with bounded retention, and scheduler-job persistence. It is the
// only place in the core with durable I/O; every other layer treats a
// MonitorStore as a transactional-per-call black box.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

// ErrNotFound is returned by lookups (monitor or scheduler job) that
// find nothing with the given id.
var ErrNotFound = errors.New("storage: not found")

// MonitorPatch carries the subset of Monitor fields an update call
// changes. A nil field is left untouched; Tags and Pipeline are
// replaced wholesale when non-nil, matching the source's
// "exclude_unset" partial-update semantics.
type MonitorPatch struct {
	Name     *string
	URL      *string
	Pipeline []models.StageSpec
	Interval *int
	Schedule *string
	Enabled  *bool
	Tags     []string
}

// MonitorStore is the storage contract's monitor, result, and
// scheduler-job namespaces. Every backend in this package implements
// it; the API layer and the scheduler never see a concrete type.
type MonitorStore interface {
	CreateMonitor(ctx context.Context, m *models.Monitor) (*models.Monitor, error)
	GetMonitor(ctx context.Context, id string) (*models.Monitor, error)
	ListMonitors(ctx context.Context, tag string) ([]*models.Monitor, error)
	UpdateMonitor(ctx context.Context, id string, patch MonitorPatch) (*models.Monitor, error)
	DeleteMonitor(ctx context.Context, id string) error
	ListTags(ctx context.Context) ([]string, error)

	AppendResult(ctx context.Context, result *models.CheckResult) error
	ListResults(ctx context.Context, monitorID string, limit int) ([]*models.CheckResult, error)
	UpdateMonitorMirror(ctx context.Context, monitorID string, checkedAt time.Time, status models.Status) error

	UpsertSchedulerJob(ctx context.Context, job *models.SchedulerJob) error
	DeleteSchedulerJob(ctx context.Context, monitorID string) error
	ListSchedulerJobs(ctx context.Context) ([]*models.SchedulerJob, error)

	Close() error
}

// maxResultsListLimit mirrors spec.md §4.8: list_results' limit
// parameter is capped at 10000 regardless of what the caller asks for.
const maxResultsListLimit = 10000

// clampLimit applies the default/max rules shared by every backend's
// ListResults.
func clampLimit(limit int) int {
	if limit <= 0 {
		return maxResultsListLimit
	}
	if limit > maxResultsListLimit {
		return maxResultsListLimit
	}
	return limit
}

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

// MemoryStore is an in-process MonitorStore, useful for tests and for
// BackendMemory deployments where operators accept that state is lost
// on restart in exchange for zero setup. It implements the full
// contract (unlike a true no-op) so the scheduler-restart property in
// spec.md §8 can still be exercised against it within one process
// lifetime.
type MemoryStore struct {
	mu        sync.RWMutex
	monitors  map[string]*models.Monitor
	results   map[string][]*models.CheckResult // newest first
	jobs      map[string]*models.SchedulerJob
	retention int
}

// NewMemoryStore creates an empty MemoryStore with the given
// per-monitor result retention.
func NewMemoryStore(retention int) *MemoryStore {
	if retention <= 0 {
		retention = 1000
	}
	return &MemoryStore{
		monitors:  make(map[string]*models.Monitor),
		results:   make(map[string][]*models.CheckResult),
		jobs:      make(map[string]*models.SchedulerJob),
		retention: retention,
	}
}

func (ms *MemoryStore) CreateMonitor(ctx context.Context, m *models.Monitor) (*models.Monitor, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now().UTC()
	clone := *m
	clone.ID = uuid.NewString()
	clone.CreatedAt = now
	clone.UpdatedAt = now
	clone.Tags = dedupeTags(m.Tags)
	ms.monitors[clone.ID] = &clone

	out := clone
	return &out, nil
}

func (ms *MemoryStore) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	m, ok := ms.monitors[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m
	return &out, nil
}

func (ms *MemoryStore) ListMonitors(ctx context.Context, tag string) ([]*models.Monitor, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []*models.Monitor
	for _, m := range ms.monitors {
		if tag == "" || hasTag(m.Tags, tag) {
			clone := *m
			out = append(out, &clone)
		}
	}
	sortMonitorsByID(out)
	return out, nil
}

func (ms *MemoryStore) UpdateMonitor(ctx context.Context, id string, patch MonitorPatch) (*models.Monitor, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	m, ok := ms.monitors[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyPatch(m, patch)
	m.UpdatedAt = time.Now().UTC()

	out := *m
	return &out, nil
}

func (ms *MemoryStore) DeleteMonitor(ctx context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.monitors[id]; !ok {
		return ErrNotFound
	}
	delete(ms.monitors, id)
	delete(ms.jobs, id)
	return nil
}

func (ms *MemoryStore) ListTags(ctx context.Context) ([]string, error) {
	monitors, _ := ms.ListMonitors(ctx, "")
	return unionSortedTags(monitors), nil
}

func (ms *MemoryStore) AppendResult(ctx context.Context, result *models.CheckResult) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	existing := ms.results[result.MonitorID]
	updated := make([]*models.CheckResult, 0, len(existing)+1)
	updated = append(updated, result)
	updated = append(updated, existing...)
	if len(updated) > ms.retention {
		updated = updated[:ms.retention]
	}
	ms.results[result.MonitorID] = updated
	return nil
}

func (ms *MemoryStore) ListResults(ctx context.Context, monitorID string, limit int) ([]*models.CheckResult, error) {
	limit = clampLimit(limit)

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	results := ms.results[monitorID]
	if limit > len(results) {
		limit = len(results)
	}
	out := make([]*models.CheckResult, limit)
	copy(out, results[:limit])
	return out, nil
}

func (ms *MemoryStore) UpdateMonitorMirror(ctx context.Context, monitorID string, checkedAt time.Time, status models.Status) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	m, ok := ms.monitors[monitorID]
	if !ok {
		return nil
	}
	m.LastCheck = &checkedAt
	m.LastStatus = status
	return nil
}

func (ms *MemoryStore) UpsertSchedulerJob(ctx context.Context, job *models.SchedulerJob) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	clone := *job
	ms.jobs[job.MonitorID] = &clone
	return nil
}

func (ms *MemoryStore) DeleteSchedulerJob(ctx context.Context, monitorID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.jobs, monitorID)
	return nil
}

func (ms *MemoryStore) ListSchedulerJobs(ctx context.Context) ([]*models.SchedulerJob, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]*models.SchedulerJob, 0, len(ms.jobs))
	for _, j := range ms.jobs {
		clone := *j
		out = append(out, &clone)
	}
	return out, nil
}

func (ms *MemoryStore) Close() error { return nil }

func sortMonitorsByID(monitors []*models.Monitor) {
	for i := 1; i < len(monitors); i++ {
		for j := i; j > 0 && monitors[j-1].ID > monitors[j].ID; j-- {
			monitors[j-1], monitors[j] = monitors[j], monitors[j-1]
		}
	}
}

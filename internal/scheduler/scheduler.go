// Package scheduler runs every enabled monitor's pipeline at its declared
// cadence without external triggers, surviving process restarts by
// persisting jobs through the storage contract (spec.md section 4.7).
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/1broseidon/hallmonitor/internal/logging"
	"github.com/1broseidon/hallmonitor/internal/metrics"
	"github.com/1broseidon/hallmonitor/internal/pipeline"
	"github.com/1broseidon/hallmonitor/internal/storage"
	"github.com/1broseidon/hallmonitor/pkg/models"
)

const (
	tickInterval        = 1 * time.Second
	defaultWorkerCount  = 32
	shutdownGracePeriod = 30 * time.Second
)

// job is the scheduler's in-memory view of one monitor's trigger state.
// The persisted counterpart is models.SchedulerJob.
type job struct {
	monitorID     string
	trigger       Trigger
	nextRun       time.Time
	inFlight      bool
	overlapStreak int
}

// Scheduler owns the reconciliation loop, the persisted job table, and a
// bounded worker pool that actually executes pipelines.
type Scheduler struct {
	store    storage.MonitorStore
	executor *pipeline.Executor
	logger   *logging.Logger
	metrics  *metrics.Metrics
	pool     *workerPool

	mu      sync.Mutex
	jobs    map[string]*job
	running bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler constructs a Scheduler. workerCount <= 0 uses the default
// concurrency of 32 named in spec.md section 4.7.
func NewScheduler(store storage.MonitorStore, executor *pipeline.Executor, logger *logging.Logger, m *metrics.Metrics, workerCount int) *Scheduler {
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	return &Scheduler{
		store:    store,
		executor: executor,
		logger:   logger,
		metrics:  m,
		pool:     newWorkerPool(workerCount, logger),
		jobs:     make(map[string]*job),
		stopCh:   make(chan struct{}),
	}
}

// Start reconciles persisted jobs against the current monitor collection,
// then launches the worker pool and the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	if err := s.reconcile(ctx); err != nil {
		return fmt.Errorf("scheduler reconciliation failed: %w", err)
	}

	s.pool.Start(ctx)

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.WithComponent(logging.ComponentScheduler).
		WithFields(map[string]interface{}{"jobs": s.jobCount()}).
		Info("scheduler started")
	return nil
}

// Stop is cooperative: it stops submitting new ticks and gives in-flight
// tasks up to shutdownGracePeriod to finish before returning anyway.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	// Let the workers drain with their context still live; only cancel
	// it (aborting in-flight tasks) once the grace period has elapsed.
	done := make(chan struct{})
	go func() {
		close(s.pool.queue)
		s.pool.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGracePeriod):
		s.logger.WithComponent(logging.ComponentScheduler).
			Warn("scheduler shutdown grace period elapsed with tasks still in flight")
	}
	s.pool.cancel()
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) jobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// reconcile loads every enabled monitor and the persisted job table,
// then makes the in-memory job set agree with them: monitors with no
// job get one, jobs for unknown or disabled monitors are removed, and
// jobs whose trigger no longer matches the monitor are replaced.
func (s *Scheduler) reconcile(ctx context.Context) error {
	monitors, err := s.store.ListMonitors(ctx, "")
	if err != nil {
		return err
	}
	persisted, err := s.store.ListSchedulerJobs(ctx)
	if err != nil {
		return err
	}

	persistedByID := make(map[string]*models.SchedulerJob, len(persisted))
	for _, pj := range persisted {
		persistedByID[pj.MonitorID] = pj
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[string]bool, len(monitors))
	for _, mon := range monitors {
		if !mon.Enabled {
			continue
		}
		live[mon.ID] = true

		trigger, err := BuildTrigger(mon)
		if err != nil {
			s.logger.WithComponent(logging.ComponentScheduler).
				WithError(err).
				WithFields(map[string]interface{}{"monitor_id": mon.ID}).
				Warn("skipping monitor with invalid trigger during reconciliation")
			continue
		}

		if pj, ok := persistedByID[mon.ID]; ok && pj.TriggerKind == trigger.Kind() && pj.TriggerSpec == trigger.Spec() {
			s.jobs[mon.ID] = &job{monitorID: mon.ID, trigger: trigger, nextRun: pj.NextRunAt}
			continue
		}

		j := &job{monitorID: mon.ID, trigger: trigger, nextRun: trigger.Next(time.Now())}
		s.jobs[mon.ID] = j
		s.persistJob(ctx, j)
	}

	for id := range s.jobs {
		if !live[id] {
			delete(s.jobs, id)
			_ = s.store.DeleteSchedulerJob(ctx, id)
		}
	}
	for id := range persistedByID {
		if !live[id] {
			_ = s.store.DeleteSchedulerJob(ctx, id)
		}
	}

	return nil
}

func (s *Scheduler) persistJob(ctx context.Context, j *job) {
	rec := &models.SchedulerJob{
		MonitorID:   j.monitorID,
		TriggerKind: j.trigger.Kind(),
		TriggerSpec: j.trigger.Spec(),
		NextRunAt:   j.nextRun,
		LastUpdated: time.Now(),
	}
	if err := s.store.UpsertSchedulerJob(ctx, rec); err != nil {
		s.logger.WithComponent(logging.ComponentScheduler).WithError(err).Warn("failed to persist scheduler job")
	}
}

// loop is the scheduler's single ticking goroutine: once per second it
// finds due jobs and submits each to the worker pool.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.fireDueJobs(ctx, now)
		}
	}
}

func (s *Scheduler) fireDueJobs(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []*job
	for _, j := range s.jobs {
		if !now.Before(j.nextRun) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		s.fire(ctx, j, now)
	}
}

// fire advances j's schedule and, unless a previous run for the same
// monitor is still in flight, submits a pipeline run to the worker pool.
// Overlap coalescing follows spec.md section 4.7: skip silently on the
// first overlapping fire, and only on the second consecutive overlap
// record a single degraded "overlapped" result.
func (s *Scheduler) fire(ctx context.Context, j *job, now time.Time) {
	s.mu.Lock()
	j.nextRun = j.trigger.Next(now)
	s.persistJob(ctx, j)

	if j.inFlight {
		j.overlapStreak++
		streak := j.overlapStreak
		monitorID := j.monitorID
		s.mu.Unlock()

		if streak >= 2 {
			s.recordOverlap(ctx, monitorID)
			s.mu.Lock()
			j.overlapStreak = 0
			s.mu.Unlock()
		}
		return
	}

	j.inFlight = true
	j.overlapStreak = 0
	monitorID := j.monitorID
	s.mu.Unlock()

	submitted := s.pool.Submit(func(taskCtx context.Context) {
		defer s.markDone(monitorID)
		s.runMonitor(taskCtx, monitorID)
	})
	if !submitted {
		s.markDone(monitorID)
		s.logger.WithComponent(logging.ComponentScheduler).
			WithFields(map[string]interface{}{"monitor_id": monitorID}).
			Warn("worker pool full, skipping scheduled check")
	}
}

func (s *Scheduler) markDone(monitorID string) {
	s.mu.Lock()
	if j, ok := s.jobs[monitorID]; ok {
		j.inFlight = false
	}
	s.mu.Unlock()
}

func (s *Scheduler) runMonitor(ctx context.Context, monitorID string) {
	mon, err := s.store.GetMonitor(ctx, monitorID)
	if err != nil {
		if err != storage.ErrNotFound {
			s.logger.WithComponent(logging.ComponentScheduler).WithError(err).
				WithFields(map[string]interface{}{"monitor_id": monitorID}).
				Error("failed to load monitor for scheduled run")
		}
		return
	}
	if !mon.Enabled {
		return
	}

	s.metrics.IncrementRunningMonitors()
	defer s.metrics.DecrementRunningMonitors()

	if _, err := s.executor.Run(ctx, mon); err != nil {
		s.logger.WithComponent(logging.ComponentScheduler).WithError(err).
			WithFields(map[string]interface{}{"monitor_id": monitorID}).
			Warn("scheduled pipeline run failed validation")
	}
}

func (s *Scheduler) recordOverlap(ctx context.Context, monitorID string) {
	result := &models.CheckResult{
		ID:        fmt.Sprintf("%s-overlap-%d", monitorID, time.Now().UnixNano()),
		MonitorID: monitorID,
		CheckedAt: time.Now(),
		Status:    models.StatusDegraded,
		Message:   "overlapped",
	}
	if err := s.store.AppendResult(ctx, result); err != nil {
		s.logger.WithComponent(logging.ComponentScheduler).WithError(err).Warn("failed to record overlapped result")
		return
	}
	_ = s.store.UpdateMonitorMirror(ctx, monitorID, result.CheckedAt, result.Status)
}

// Reschedule installs or replaces the job for mon, applying the CRUD
// reactions from spec.md section 4.7. It is called by the API layer
// after any create/update that leaves the monitor enabled.
func (s *Scheduler) Reschedule(ctx context.Context, mon *models.Monitor) error {
	if !mon.Enabled {
		return s.Unschedule(ctx, mon.ID)
	}

	trigger, err := BuildTrigger(mon)
	if err != nil {
		return err
	}

	s.mu.Lock()
	j := &job{monitorID: mon.ID, trigger: trigger, nextRun: trigger.Next(time.Now())}
	s.jobs[mon.ID] = j
	s.persistJob(ctx, j)
	s.mu.Unlock()
	return nil
}

// Unschedule removes any job for monitorID, applying the CRUD reaction
// for update(enabled=false) or delete.
func (s *Scheduler) Unschedule(ctx context.Context, monitorID string) error {
	s.mu.Lock()
	delete(s.jobs, monitorID)
	s.mu.Unlock()
	return s.store.DeleteSchedulerJob(ctx, monitorID)
}

// RunCheckAll runs every monitor matching tag (all monitors if tag is
// empty) through the executor, bounded by the same worker pool limit as
// scheduled runs (spec.md section 6). Results are returned in monitor-ID
// order for deterministic API responses.
func (s *Scheduler) RunCheckAll(ctx context.Context, tag string) ([]*models.CheckResult, error) {
	monitors, err := s.store.ListMonitors(ctx, tag)
	if err != nil {
		return nil, err
	}

	sem := make(chan struct{}, s.pool.size)
	results := make([]*models.CheckResult, len(monitors))
	var wg sync.WaitGroup

	for i, mon := range monitors {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, mon *models.Monitor) {
			defer wg.Done()
			defer func() { <-sem }()
			result, _ := s.executor.Run(ctx, mon)
			results[i] = result
		}(i, mon)
	}
	wg.Wait()

	filtered := make([]*models.CheckResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			filtered = append(filtered, r)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].MonitorID < filtered[j].MonitorID })
	return filtered, nil
}

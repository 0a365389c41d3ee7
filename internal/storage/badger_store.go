package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/1broseidon/hallmonitor/internal/logging"
	"github.com/1broseidon/hallmonitor/pkg/models"
)

// BadgerStore is the embedded, default MonitorStore backend. It keeps
// three key namespaces in one Badger database: "monitor:", "result:",
// and "job:" — the same three logical collections spec.md §6 assigns
// to "monitors", "results", and "scheduler_jobs".
type BadgerStore struct {
	db        *badger.DB
	logger    *logging.Logger
	retention int
}

const (
	monitorKeyPrefix = "monitor:"
	resultKeyPrefix  = "result:"
	jobKeyPrefix     = "job:"
)

// NewBadgerStore opens (or creates) a Badger database at path and
// returns a MonitorStore backed by it. retention is the per-monitor
// result cap (RESULTS_RETENTION); a non-positive value defaults to
// 1000.
func NewBadgerStore(path string, retention int, logger *logging.Logger) (*BadgerStore, error) {
	if retention <= 0 {
		retention = 1000
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &BadgerStore{db: db, logger: logger, retention: retention}
	go store.runGC()

	logger.WithComponent("storage").
		WithFields(map[string]interface{}{"path": path, "retention": retention}).
		Info("Badger storage initialized")

	return store, nil
}

// resultOrderKey sorts newest-first under plain byte comparison by
// inverting the timestamp: a larger checked_at yields a smaller
// encoded value.
func resultOrderKey(checkedAt time.Time) string {
	inverted := math.MaxInt64 - checkedAt.UnixNano()
	return fmt.Sprintf("%020d", inverted)
}

func (bs *BadgerStore) CreateMonitor(ctx context.Context, m *models.Monitor) (*models.Monitor, error) {
	now := time.Now().UTC()
	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.Tags = dedupeTags(m.Tags)

	if err := bs.putMonitor(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (bs *BadgerStore) putMonitor(m *models.Monitor) error {
	value, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal monitor: %w", err)
	}
	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(monitorKeyPrefix+m.ID), value)
	})
}

func (bs *BadgerStore) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	var m models.Monitor
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(monitorKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monitor: %w", err)
	}
	return &m, nil
}

func (bs *BadgerStore) ListMonitors(ctx context.Context, tag string) ([]*models.Monitor, error) {
	var monitors []*models.Monitor

	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(monitorKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var m models.Monitor
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			if tag == "" || hasTag(m.Tags, tag) {
				monitors = append(monitors, &m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list monitors: %w", err)
	}

	sort.Slice(monitors, func(i, j int) bool { return monitors[i].ID < monitors[j].ID })
	return monitors, nil
}

func (bs *BadgerStore) UpdateMonitor(ctx context.Context, id string, patch MonitorPatch) (*models.Monitor, error) {
	m, err := bs.GetMonitor(ctx, id)
	if err != nil {
		return nil, err
	}
	applyPatch(m, patch)
	m.UpdatedAt = time.Now().UTC()

	if err := bs.putMonitor(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (bs *BadgerStore) DeleteMonitor(ctx context.Context, id string) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(monitorKeyPrefix + id)); err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		if err := txn.Delete([]byte(monitorKeyPrefix + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(jobKeyPrefix + id))
	})
	// Results for id are intentionally left in place: spec.md §3 says
	// deletion "does not cascade to existing results (they become
	// orphan history)".
}

func (bs *BadgerStore) ListTags(ctx context.Context) ([]string, error) {
	monitors, err := bs.ListMonitors(ctx, "")
	if err != nil {
		return nil, err
	}
	return unionSortedTags(monitors), nil
}

func (bs *BadgerStore) AppendResult(ctx context.Context, result *models.CheckResult) error {
	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	key := resultKeyPrefix + result.MonitorID + ":" + resultOrderKey(result.CheckedAt) + ":" + result.ID

	err = bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to append result: %w", err)
	}

	return bs.evictOldResults(result.MonitorID)
}

// evictOldResults keeps at most bs.retention results for monitorID,
// deleting the oldest first, per spec.md §3's CheckResult invariant.
func (bs *BadgerStore) evictOldResults(monitorID string) error {
	prefix := []byte(resultKeyPrefix + monitorID + ":")

	return bs.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		if len(keys) <= bs.retention {
			return nil
		}
		for _, key := range keys[bs.retention:] {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (bs *BadgerStore) ListResults(ctx context.Context, monitorID string, limit int) ([]*models.CheckResult, error) {
	limit = clampLimit(limit)
	prefix := []byte(resultKeyPrefix + monitorID + ":")

	var results []*models.CheckResult
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(results) < limit; it.Next() {
			var r models.CheckResult
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return err
			}
			results = append(results, &r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return results, nil
}

func (bs *BadgerStore) UpdateMonitorMirror(ctx context.Context, monitorID string, checkedAt time.Time, status models.Status) error {
	m, err := bs.GetMonitor(ctx, monitorID)
	if err != nil {
		if err == ErrNotFound {
			// Monitor was deleted between run start and persist; the
			// mirror update is best-effort per spec.md §4.8.
			return nil
		}
		return err
	}
	m.LastCheck = &checkedAt
	m.LastStatus = status
	return bs.putMonitor(m)
}

func (bs *BadgerStore) UpsertSchedulerJob(ctx context.Context, job *models.SchedulerJob) error {
	value, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal scheduler job: %w", err)
	}
	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(jobKeyPrefix+job.MonitorID), value)
	})
}

func (bs *BadgerStore) DeleteSchedulerJob(ctx context.Context, monitorID string) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(jobKeyPrefix + monitorID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (bs *BadgerStore) ListSchedulerJobs(ctx context.Context) ([]*models.SchedulerJob, error) {
	var jobs []*models.SchedulerJob
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var job models.SchedulerJob
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			}); err != nil {
				return err
			}
			jobs = append(jobs, &job)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduler jobs: %w", err)
	}
	return jobs, nil
}

func (bs *BadgerStore) Close() error {
	bs.logger.WithComponent("storage").Info("Closing Badger storage")
	return bs.db.Close()
}

func (bs *BadgerStore) runGC() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		err := bs.db.RunValueLogGC(0.5)
		if err != nil && err != badger.ErrNoRewrite {
			bs.logger.WithComponent("storage").WithError(err).Debug("value log GC completed with notice")
		}
	}
}

// badgerLogger adapts the engine's structured logger to Badger's
// logger interface.
type badgerLogger struct {
	logger *logging.Logger
}

func (bl *badgerLogger) Errorf(format string, args ...interface{}) {
	bl.logger.WithComponent("badger").Errorf(format, args...)
}

func (bl *badgerLogger) Warningf(format string, args ...interface{}) {
	bl.logger.WithComponent("badger").Warnf(format, args...)
}

func (bl *badgerLogger) Infof(format string, args ...interface{}) {
	bl.logger.WithComponent("badger").Infof(format, args...)
}

func (bl *badgerLogger) Debugf(format string, args ...interface{}) {
	bl.logger.WithComponent("badger").Debugf(format, args...)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func unionSortedTags(monitors []*models.Monitor) []string {
	seen := make(map[string]struct{})
	for _, m := range monitors {
		for _, t := range m.Tags {
			seen[t] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func applyPatch(m *models.Monitor, patch MonitorPatch) {
	if patch.Name != nil {
		m.Name = *patch.Name
	}
	if patch.URL != nil {
		m.URL = *patch.URL
	}
	if patch.Pipeline != nil {
		m.Pipeline = patch.Pipeline
	}
	if patch.Interval != nil {
		m.Interval = *patch.Interval
	}
	if patch.Schedule != nil {
		m.Schedule = *patch.Schedule
	}
	if patch.Enabled != nil {
		m.Enabled = *patch.Enabled
	}
	if patch.Tags != nil {
		m.Tags = dedupeTags(patch.Tags)
	}
}

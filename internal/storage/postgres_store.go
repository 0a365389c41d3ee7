package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/1broseidon/hallmonitor/internal/logging"
	"github.com/1broseidon/hallmonitor/pkg/models"
)

// PostgresStore is the MonitorStore backend for operators who prefer a
// managed relational database over the embedded Badger default. It
// implements the identical three-namespace contract as three tables.
type PostgresStore struct {
	pool      *pgxpool.Pool
	logger    *logging.Logger
	retention int
}

// NewPostgresStore connects to Postgres, runs the schema migration,
// and returns a MonitorStore backed by it.
func NewPostgresStore(connString string, retention int, logger *logging.Logger) (*PostgresStore, error) {
	if retention <= 0 {
		retention = 1000
	}

	ctx := context.Background()

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ps := &PostgresStore{pool: pool, logger: logger, retention: retention}
	if err := ps.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.WithComponent("storage").Info("Postgres storage initialized")
	return ps, nil
}

func (ps *PostgresStore) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS monitors (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		url         TEXT NOT NULL,
		username    TEXT,
		password    TEXT,
		pipeline    JSONB NOT NULL,
		interval    INTEGER,
		schedule    TEXT,
		enabled     BOOLEAN NOT NULL,
		tags        JSONB,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		last_check  TIMESTAMPTZ,
		last_status TEXT
	);

	CREATE TABLE IF NOT EXISTS check_results (
		id          TEXT PRIMARY KEY,
		monitor_id  TEXT NOT NULL,
		checked_at  TIMESTAMPTZ NOT NULL,
		status      TEXT NOT NULL,
		message     TEXT,
		elapsed_ms  DOUBLE PRECISION,
		details     JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_check_results_monitor_checked_at
		ON check_results (monitor_id, checked_at DESC);

	CREATE TABLE IF NOT EXISTS scheduler_jobs (
		monitor_id    TEXT PRIMARY KEY,
		trigger_kind  TEXT NOT NULL,
		trigger_spec  TEXT NOT NULL,
		next_run_at   TIMESTAMPTZ NOT NULL,
		last_updated  TIMESTAMPTZ NOT NULL
	);
	`
	_, err := ps.pool.Exec(ctx, schema)
	return err
}

func (ps *PostgresStore) CreateMonitor(ctx context.Context, m *models.Monitor) (*models.Monitor, error) {
	now := time.Now().UTC()
	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.Tags = dedupeTags(m.Tags)

	pipelineJSON, err := json.Marshal(m.Pipeline)
	if err != nil {
		return nil, err
	}
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return nil, err
	}

	_, err = ps.pool.Exec(ctx, `
		INSERT INTO monitors (id, name, url, username, password, pipeline, interval, schedule, enabled, tags, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		m.ID, m.Name, m.URL, m.Username, m.Password, pipelineJSON, m.Interval, m.Schedule, m.Enabled, tagsJSON, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert monitor: %w", err)
	}
	return m, nil
}

func (ps *PostgresStore) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	row := ps.pool.QueryRow(ctx, `
		SELECT id, name, url, username, password, pipeline, interval, schedule, enabled, tags, created_at, updated_at, last_check, last_status
		FROM monitors WHERE id = $1`, id)
	m, err := scanMonitor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (ps *PostgresStore) ListMonitors(ctx context.Context, tag string) ([]*models.Monitor, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id, name, url, username, password, pipeline, interval, schedule, enabled, tags, created_at, updated_at, last_check, last_status
		FROM monitors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitors: %w", err)
	}
	defer rows.Close()

	var monitors []*models.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		if tag == "" || hasTag(m.Tags, tag) {
			monitors = append(monitors, m)
		}
	}
	return monitors, rows.Err()
}

func (ps *PostgresStore) UpdateMonitor(ctx context.Context, id string, patch MonitorPatch) (*models.Monitor, error) {
	m, err := ps.GetMonitor(ctx, id)
	if err != nil {
		return nil, err
	}
	applyPatch(m, patch)
	m.UpdatedAt = time.Now().UTC()

	pipelineJSON, err := json.Marshal(m.Pipeline)
	if err != nil {
		return nil, err
	}
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return nil, err
	}

	_, err = ps.pool.Exec(ctx, `
		UPDATE monitors SET name=$1, url=$2, pipeline=$3, interval=$4, schedule=$5, enabled=$6, tags=$7, updated_at=$8
		WHERE id=$9`,
		m.Name, m.URL, pipelineJSON, m.Interval, m.Schedule, m.Enabled, tagsJSON, m.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update monitor: %w", err)
	}
	return m, nil
}

func (ps *PostgresStore) DeleteMonitor(ctx context.Context, id string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM monitors WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete monitor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = ps.pool.Exec(ctx, `DELETE FROM scheduler_jobs WHERE monitor_id=$1`, id)
	return err
	// check_results rows are left in place (ON DELETE CASCADE is not
	// used for that table) so history becomes orphaned, not erased,
	// matching spec.md §3's delete-cascade invariant.
}

func (ps *PostgresStore) ListTags(ctx context.Context) ([]string, error) {
	monitors, err := ps.ListMonitors(ctx, "")
	if err != nil {
		return nil, err
	}
	return unionSortedTags(monitors), nil
}

func (ps *PostgresStore) AppendResult(ctx context.Context, result *models.CheckResult) error {
	detailsJSON, err := json.Marshal(result.Details)
	if err != nil {
		return err
	}
	_, err = ps.pool.Exec(ctx, `
		INSERT INTO check_results (id, monitor_id, checked_at, status, message, elapsed_ms, details)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		result.ID, result.MonitorID, result.CheckedAt, string(result.Status), result.Message, result.ElapsedMs, detailsJSON)
	if err != nil {
		return fmt.Errorf("failed to append result: %w", err)
	}

	_, err = ps.pool.Exec(ctx, `
		DELETE FROM check_results WHERE monitor_id = $1 AND id NOT IN (
			SELECT id FROM check_results WHERE monitor_id = $1 ORDER BY checked_at DESC LIMIT $2
		)`, result.MonitorID, ps.retention)
	if err != nil {
		return fmt.Errorf("failed to evict old results: %w", err)
	}
	return nil
}

func (ps *PostgresStore) ListResults(ctx context.Context, monitorID string, limit int) ([]*models.CheckResult, error) {
	limit = clampLimit(limit)
	rows, err := ps.pool.Query(ctx, `
		SELECT id, monitor_id, checked_at, status, message, elapsed_ms, details
		FROM check_results WHERE monitor_id = $1 ORDER BY checked_at DESC LIMIT $2`, monitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*models.CheckResult
	for rows.Next() {
		var r models.CheckResult
		var status string
		var detailsJSON []byte
		if err := rows.Scan(&r.ID, &r.MonitorID, &r.CheckedAt, &status, &r.Message, &r.ElapsedMs, &detailsJSON); err != nil {
			return nil, err
		}
		r.Status = models.Status(status)
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &r.Details); err != nil {
				return nil, err
			}
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

func (ps *PostgresStore) UpdateMonitorMirror(ctx context.Context, monitorID string, checkedAt time.Time, status models.Status) error {
	_, err := ps.pool.Exec(ctx, `UPDATE monitors SET last_check=$1, last_status=$2 WHERE id=$3`,
		checkedAt, string(status), monitorID)
	return err
}

func (ps *PostgresStore) UpsertSchedulerJob(ctx context.Context, job *models.SchedulerJob) error {
	_, err := ps.pool.Exec(ctx, `
		INSERT INTO scheduler_jobs (monitor_id, trigger_kind, trigger_spec, next_run_at, last_updated)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (monitor_id) DO UPDATE SET
			trigger_kind=EXCLUDED.trigger_kind, trigger_spec=EXCLUDED.trigger_spec,
			next_run_at=EXCLUDED.next_run_at, last_updated=EXCLUDED.last_updated`,
		job.MonitorID, job.TriggerKind, job.TriggerSpec, job.NextRunAt, job.LastUpdated)
	return err
}

func (ps *PostgresStore) DeleteSchedulerJob(ctx context.Context, monitorID string) error {
	_, err := ps.pool.Exec(ctx, `DELETE FROM scheduler_jobs WHERE monitor_id=$1`, monitorID)
	return err
}

func (ps *PostgresStore) ListSchedulerJobs(ctx context.Context) ([]*models.SchedulerJob, error) {
	rows, err := ps.pool.Query(ctx, `SELECT monitor_id, trigger_kind, trigger_spec, next_run_at, last_updated FROM scheduler_jobs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.SchedulerJob
	for rows.Next() {
		var j models.SchedulerJob
		if err := rows.Scan(&j.MonitorID, &j.TriggerKind, &j.TriggerSpec, &j.NextRunAt, &j.LastUpdated); err != nil {
			return nil, err
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (ps *PostgresStore) Close() error {
	ps.pool.Close()
	return nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows, letting
// scanMonitor serve GetMonitor's single-row path and ListMonitors'
// multi-row path identically.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonitor(row rowScanner) (*models.Monitor, error) {
	var m models.Monitor
	var pipelineJSON, tagsJSON []byte
	var status *string

	err := row.Scan(&m.ID, &m.Name, &m.URL, &m.Username, &m.Password, &pipelineJSON,
		&m.Interval, &m.Schedule, &m.Enabled, &tagsJSON, &m.CreatedAt, &m.UpdatedAt, &m.LastCheck, &status)
	if err != nil {
		return nil, err
	}
	if status != nil {
		m.LastStatus = models.Status(*status)
	}
	if len(pipelineJSON) > 0 {
		if err := json.Unmarshal(pipelineJSON, &m.Pipeline); err != nil {
			return nil, err
		}
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &m.Tags); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

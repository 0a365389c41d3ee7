package storage

import (
	"fmt"

	"github.com/1broseidon/hallmonitor/internal/config"
	"github.com/1broseidon/hallmonitor/internal/logging"
)

// BackendType names a primary MonitorStore implementation.
type BackendType string

const (
	// BackendMemory keeps all state in process memory; state is lost
	// on restart. Used for tests and zero-setup demos.
	BackendMemory BackendType = "memory"
	// BackendBadger uses the embedded BadgerDB default.
	BackendBadger BackendType = "badger"
	// BackendPostgres uses a managed PostgreSQL database.
	BackendPostgres BackendType = "postgres"
)

// NewStore builds the primary MonitorStore named by cfg.Backend, and —
// if InfluxDB is enabled — wraps it in a MirroredStore so
// every appended result is also mirrored into InfluxDB for time-series
// querying alongside the primary store's bounded-retention log.
func NewStore(cfg *config.StorageConfig, logger *logging.Logger) (MonitorStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config cannot be nil")
	}

	var primary MonitorStore
	var err error

	switch BackendType(cfg.Backend) {
	case "", BackendBadger:
		logger.WithComponent("storage").Info("using Badger storage backend")
		primary, err = NewBadgerStore(cfg.Badger.Path, cfg.ResultsRetention, logger)

	case BackendPostgres:
		logger.WithComponent("storage").Info("using Postgres storage backend")
		connString := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User,
			cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode,
		)
		primary, err = NewPostgresStore(connString, cfg.ResultsRetention, logger)

	case BackendMemory:
		logger.WithComponent("storage").Info("using in-memory storage backend")
		primary = NewMemoryStore(cfg.ResultsRetention)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (valid options: badger, postgres, memory)", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.InfluxDB.Enabled {
		mirror, err := NewInfluxDBStore(cfg.InfluxDB.URL, cfg.InfluxDB.Token, cfg.InfluxDB.Org, cfg.InfluxDB.Bucket, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize influxdb result mirror: %w", err)
		}
		return NewMirroredStore(primary, mirror), nil
	}

	return primary, nil
}

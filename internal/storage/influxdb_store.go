package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/1broseidon/hallmonitor/internal/logging"
	"github.com/1broseidon/hallmonitor/pkg/models"
)

// ResultMirror is a supplemental, write-only sink for CheckResults.
// Unlike MonitorStore it carries no CRUD or scheduler-job contract —
// it exists purely so time-series tooling (Grafana, Flux queries) can
// chart check history without querying the primary store's append-only
// log directly. A mirror failure is logged and swallowed; it must
// never affect the outcome of a pipeline run (spec.md §7: StorageError
// for the scheduler append path is "log + drop", not "fail the run").
type ResultMirror interface {
	MirrorResult(ctx context.Context, monitorName string, result *models.CheckResult)
	Close() error
}

// InfluxDBStore mirrors CheckResults into InfluxDB as points in the
// "check_result" measurement, tagged by monitor and status so a
// dashboard can chart uptime/elapsed_ms over time with Flux/InfluxQL.
// It is wired as an optional decorator around whichever MonitorStore
// is primary (Badger, Postgres or Memory) — see internal/storage/factory.go.
type InfluxDBStore struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *logging.Logger
}

// NewInfluxDBStore connects to InfluxDB and returns a ResultMirror.
func NewInfluxDBStore(url, token, org, bucket string, logger *logging.Logger) (*InfluxDBStore, error) {
	client := influxdb2.NewClient(url, token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb health check failed: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("influxdb not healthy: %s", health.Status)
	}

	store := &InfluxDBStore{
		client:   client,
		writeAPI: client.WriteAPI(org, bucket),
		logger:   logger,
	}

	errCh := store.writeAPI.Errors()
	go func() {
		for err := range errCh {
			logger.WithComponent("storage").WithError(err).Warn("influxdb async write error")
		}
	}()

	logger.WithComponent("storage").Info("InfluxDB result mirror initialized")
	return store, nil
}

// MirrorResult writes one CheckResult as an InfluxDB point. Writes are
// asynchronous and best-effort: a failure only ever produces a log
// line, per this type's ResultMirror contract.
func (is *InfluxDBStore) MirrorResult(ctx context.Context, monitorName string, result *models.CheckResult) {
	p := write.NewPoint(
		"check_result",
		map[string]string{
			"monitor_id": result.MonitorID,
			"monitor":    monitorName,
			"status":     string(result.Status),
		},
		map[string]interface{}{
			"elapsed_ms": result.ElapsedMs,
			"message":    result.Message,
		},
		result.CheckedAt,
	)
	is.writeAPI.WritePoint(p)
}

// Close flushes pending writes and releases the client.
func (is *InfluxDBStore) Close() error {
	is.writeAPI.Flush()
	is.client.Close()
	return nil
}

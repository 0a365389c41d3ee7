package storage

import (
	"context"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

// MirroredStore decorates a primary MonitorStore with a ResultMirror:
// every AppendResult call is forwarded to the primary store (whose
// error is authoritative) and then, best-effort, to the mirror. This
// is how InfluxDB is wired into the engine without forcing it to
// implement the full monitor-CRUD/scheduler-job contract.
type MirroredStore struct {
	MonitorStore
	mirror      ResultMirror
	monitorName func(ctx context.Context, monitorID string) string
}

// NewMirroredStore wraps primary with mirror. monitorName resolves a
// monitor id to its display name for the mirror's tags; a resolution
// failure falls back to the id itself.
func NewMirroredStore(primary MonitorStore, mirror ResultMirror) *MirroredStore {
	return &MirroredStore{
		MonitorStore: primary,
		mirror:       mirror,
		monitorName: func(ctx context.Context, monitorID string) string {
			if m, err := primary.GetMonitor(ctx, monitorID); err == nil {
				return m.Name
			}
			return monitorID
		},
	}
}

func (s *MirroredStore) AppendResult(ctx context.Context, result *models.CheckResult) error {
	if err := s.MonitorStore.AppendResult(ctx, result); err != nil {
		return err
	}
	s.mirror.MirrorResult(ctx, s.monitorName(ctx, result.MonitorID), result)
	return nil
}

func (s *MirroredStore) Close() error {
	_ = s.mirror.Close()
	return s.MonitorStore.Close()
}

//go:build integration
// +build integration

package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/1broseidon/hallmonitor/internal/logging"
	"github.com/1broseidon/hallmonitor/pkg/models"
)

func getTestInfluxDBConfig() (url, token, org, bucket string) {
	url = os.Getenv("INFLUXDB_TEST_URL")
	if url == "" {
		url = "http://localhost:8086"
	}
	token = os.Getenv("INFLUXDB_TEST_TOKEN")
	if token == "" {
		token = "hallmonitor-test-token"
	}
	org = os.Getenv("INFLUXDB_TEST_ORG")
	if org == "" {
		org = "hallmonitor"
	}
	bucket = os.Getenv("INFLUXDB_TEST_BUCKET")
	if bucket == "" {
		bucket = "test"
	}
	return
}

func TestInfluxDBStore_MirrorResult(t *testing.T) {
	logger, _ := logging.InitLogger(logging.Config{Level: "error", Format: "json", Output: "stdout"})

	url, token, org, bucket := getTestInfluxDBConfig()
	store, err := NewInfluxDBStore(url, token, org, bucket, logger)
	if err != nil {
		t.Skipf("InfluxDB not available: %v", err)
	}
	defer store.Close()

	store.MirrorResult(context.Background(), "example", &models.CheckResult{
		MonitorID: "m1",
		CheckedAt: time.Now(),
		Status:    models.StatusUp,
		ElapsedMs: 12.5,
	})
}

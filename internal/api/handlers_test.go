package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/1broseidon/hallmonitor/internal/config"
	"github.com/1broseidon/hallmonitor/internal/logging"
	"github.com/1broseidon/hallmonitor/internal/metrics"
	"github.com/1broseidon/hallmonitor/internal/pipeline"
	"github.com/1broseidon/hallmonitor/internal/scheduler"
	"github.com/1broseidon/hallmonitor/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger, err := logging.InitLogger(logging.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("InitLogger: %v", err)
	}

	store := storage.NewMemoryStore(100)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	exec := pipeline.NewExecutor(store, logger, m)
	sched := scheduler.NewScheduler(store, exec, logger, m, 4)

	cfg := &config.Config{Server: config.ServerConfig{Port: "0"}}
	return NewServer(cfg, logger, m, store, exec, sched, prometheus.NewRegistry())
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)
	resp := doRequest(t, s, http.MethodGet, "/health", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("expected status healthy, got %v", body)
	}
}

func TestCreateAndGetMonitor(t *testing.T) {
	s := newTestServer(t)

	createBody := map[string]any{
		"name":     "homepage",
		"url":      "https://example.com",
		"interval": 30,
		"pipeline": []map[string]any{{"type": "http"}},
	}

	resp := doRequest(t, s, http.MethodPost, "/api/monitors", createBody)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created map[string]any
	json.NewDecoder(resp.Body).Decode(&created)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("expected created monitor to have an id")
	}

	getResp := doRequest(t, s, http.MethodGet, "/api/monitors/"+id, nil)
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", getResp.StatusCode)
	}
}

func TestCreateMonitorRejectsEmptyPipeline(t *testing.T) {
	s := newTestServer(t)

	createBody := map[string]any{
		"name":     "bad",
		"url":      "https://example.com",
		"interval": 30,
		"pipeline": []map[string]any{},
	}

	resp := doRequest(t, s, http.MethodPost, "/api/monitors", createBody)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty pipeline, got %d", resp.StatusCode)
	}
}

func TestGetMonitorNotFound(t *testing.T) {
	s := newTestServer(t)

	resp := doRequest(t, s, http.MethodGet, "/api/monitors/missing", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteMonitor(t *testing.T) {
	s := newTestServer(t)

	createBody := map[string]any{
		"name":     "to-delete",
		"url":      "https://example.com",
		"interval": 30,
		"pipeline": []map[string]any{{"type": "http"}},
	}
	resp := doRequest(t, s, http.MethodPost, "/api/monitors", createBody)
	var created map[string]any
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	id := created["id"].(string)

	delResp := doRequest(t, s, http.MethodDelete, "/api/monitors/"+id, nil)
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", delResp.StatusCode)
	}
}

func TestListTagsEmpty(t *testing.T) {
	s := newTestServer(t)

	resp := doRequest(t, s, http.MethodGet, "/api/monitors/tags", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var tags []string
	json.NewDecoder(resp.Body).Decode(&tags)
	if len(tags) != 0 {
		t.Fatalf("expected no tags, got %v", tags)
	}
}

func TestListStagesIncludesHTTP(t *testing.T) {
	s := newTestServer(t)

	resp := doRequest(t, s, http.MethodGet, "/api/stages", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var list []map[string]any
	json.NewDecoder(resp.Body).Decode(&list)
	found := false
	for _, entry := range list {
		if entry["type"] == "http" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected http stage in listing, got %v", list)
	}
}

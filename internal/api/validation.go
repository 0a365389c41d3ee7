package api

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/1broseidon/hallmonitor/internal/scheduler"
	"github.com/1broseidon/hallmonitor/internal/stages"
	"github.com/1broseidon/hallmonitor/internal/storage"
	"github.com/1broseidon/hallmonitor/pkg/models"
)

const (
	maxNameLen = 100
	maxURLLen  = 2048
	minIntervalSeconds = 10
)

// monitorCreateRequest is the JSON body accepted by POST /api/monitors.
type monitorCreateRequest struct {
	Name     string                `json:"name"`
	URL      string                `json:"url"`
	Username string                `json:"username,omitempty"`
	Password string                `json:"password,omitempty"`
	Pipeline []models.StageSpec    `json:"pipeline"`
	Interval int                   `json:"interval,omitempty"`
	Schedule string                `json:"schedule,omitempty"`
	Enabled  *bool                 `json:"enabled,omitempty"`
	Tags     []string              `json:"tags,omitempty"`
}

// validateMonitorCreate checks the structural preconditions from
// spec.md before a monitor is ever handed to storage: name length,
// a URL with a scheme (defaulting to https if absent), a pipeline of
// stages that both resolve to a registered type and accept their own
// options, at least one of them a network stage, a sane interval, and
// — if present — a parseable cron expression.
func validateMonitorCreate(req monitorCreateRequest) (*models.Monitor, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLen {
		return nil, fmt.Errorf("name must be 1-%d characters", maxNameLen)
	}

	normalizedURL, err := normalizeURL(req.URL)
	if err != nil {
		return nil, err
	}

	if len(req.Pipeline) == 0 {
		return nil, fmt.Errorf("pipeline must not be empty")
	}
	if err := validatePipelineSpecs("", req.Pipeline); err != nil {
		return nil, err
	}

	if req.Schedule != "" {
		if _, err := scheduler.NewCronTrigger(req.Schedule); err != nil {
			return nil, err
		}
	} else if req.Interval < minIntervalSeconds {
		return nil, fmt.Errorf("interval must be at least %d seconds", minIntervalSeconds)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	return &models.Monitor{
		Name:     name,
		URL:      normalizedURL,
		Username: req.Username,
		Password: req.Password,
		Pipeline: req.Pipeline,
		Interval: req.Interval,
		Schedule: req.Schedule,
		Enabled:  enabled,
		Tags:     dedupeTags(req.Tags),
	}, nil
}

// validatePipelineSpecs resolves every stage spec's type against the
// registry and invokes its constructor with the spec's own options, so
// a malformed option set (e.g. a threshold stage missing "value") is
// rejected here rather than surfacing later as a runtime down result.
// monitorID is "" for a not-yet-created monitor.
func validatePipelineSpecs(monitorID string, pipeline []models.StageSpec) error {
	hasNetworkStage := false
	for i, spec := range pipeline {
		ctor, err := stages.Get(spec.Type)
		if err != nil {
			return err
		}
		if _, err := ctor(spec.Options); err != nil {
			var badConfig *stages.BadStageConfigError
			if errors.As(err, &badConfig) {
				badConfig.MonitorID = monitorID
				badConfig.StageIndex = i
				return badConfig
			}
			return &stages.BadStageConfigError{MonitorID: monitorID, StageIndex: i, StageType: spec.Type, Reason: err.Error()}
		}
		if stages.IsNetworkStage(spec.Type) {
			hasNetworkStage = true
		}
	}
	if !hasNetworkStage {
		return &stages.BadPipelineError{MonitorID: monitorID, Reason: "no network stage"}
	}
	return nil
}

func normalizeURL(raw string) (string, error) {
	if raw == "" || len(raw) > maxURLLen {
		return "", fmt.Errorf("url must be 1-%d characters", maxURLLen)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("url is not valid: %s", raw)
	}
	return parsed.String(), nil
}

// monitorUpdateRequest is the JSON body accepted by PUT /api/monitors/{id}.
// A nil field leaves the stored value untouched.
type monitorUpdateRequest struct {
	Name     *string             `json:"name,omitempty"`
	URL      *string             `json:"url,omitempty"`
	Pipeline []models.StageSpec  `json:"pipeline,omitempty"`
	Interval *int                `json:"interval,omitempty"`
	Schedule *string             `json:"schedule,omitempty"`
	Enabled  *bool               `json:"enabled,omitempty"`
	Tags     []string            `json:"tags,omitempty"`
}

// validateMonitorUpdate mirrors validateMonitorCreate's checks for
// whichever fields are actually present in the patch. monitorID is
// embedded into any BadStageConfigError/BadPipelineError so the error
// points at the monitor being edited.
func validateMonitorUpdate(monitorID string, req monitorUpdateRequest) (storage.MonitorPatch, error) {
	patch := storage.MonitorPatch{
		Interval: req.Interval,
		Schedule: req.Schedule,
		Enabled:  req.Enabled,
		Pipeline: req.Pipeline,
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > maxNameLen {
			return patch, fmt.Errorf("name must be 1-%d characters", maxNameLen)
		}
		patch.Name = &name
	}

	if req.URL != nil {
		normalized, err := normalizeURL(*req.URL)
		if err != nil {
			return patch, err
		}
		patch.URL = &normalized
	}

	if req.Pipeline != nil {
		if err := validatePipelineSpecs(monitorID, req.Pipeline); err != nil {
			return patch, err
		}
	}

	if req.Schedule != nil && *req.Schedule != "" {
		if _, err := scheduler.NewCronTrigger(*req.Schedule); err != nil {
			return patch, err
		}
	} else if req.Interval != nil && *req.Interval < minIntervalSeconds {
		return patch, fmt.Errorf("interval must be at least %d seconds", minIntervalSeconds)
	}

	if req.Tags != nil {
		patch.Tags = dedupeTags(req.Tags)
	}

	return patch, nil
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

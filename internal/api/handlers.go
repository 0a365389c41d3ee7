package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1broseidon/hallmonitor/internal/stages"
	"github.com/1broseidon/hallmonitor/internal/storage"
	"github.com/1broseidon/hallmonitor/pkg/models"
)

func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

func (s *Server) readyHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ready"})
}

func (s *Server) metricsHandler(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	var buf bytes.Buffer
	req, _ := http.NewRequest("GET", "/metrics", nil)
	rw := &responseWriter{Buffer: &buf, header: make(http.Header)}

	gatherer, ok := s.prometheusReg.(prometheus.Gatherer)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).SendString("registry does not implement Gatherer")
	}
	promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP(rw, req)

	return c.SendString(buf.String())
}

type responseWriter struct {
	*bytes.Buffer
	header http.Header
}

func (rw *responseWriter) Header() http.Header         { return rw.header }
func (rw *responseWriter) WriteHeader(statusCode int)  {}
func (rw *responseWriter) Write(data []byte) (int, error) { return rw.Buffer.Write(data) }

// listMonitorsHandler serves GET /api/monitors[?tag=T].
func (s *Server) listMonitorsHandler(c *fiber.Ctx) error {
	tag := c.Query("tag")
	monitors, err := s.store.ListMonitors(c.Context(), tag)
	if err != nil {
		return storageErr(c, err)
	}
	return c.JSON(monitors)
}

// createMonitorHandler serves POST /api/monitors.
func (s *Server) createMonitorHandler(c *fiber.Ctx) error {
	var req monitorCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	mon, err := validateMonitorCreate(req)
	if err != nil {
		return badRequest(c, err)
	}

	created, err := s.store.CreateMonitor(c.Context(), mon)
	if err != nil {
		return storageErr(c, err)
	}

	if created.Enabled {
		if err := s.scheduler.Reschedule(c.Context(), created); err != nil {
			s.logger.WithComponent("api").WithError(err).Warn("failed to schedule newly created monitor")
		}
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// getMonitorHandler serves GET /api/monitors/{id}.
func (s *Server) getMonitorHandler(c *fiber.Ctx) error {
	mon, err := s.store.GetMonitor(c.Context(), c.Params("id"))
	if err != nil {
		return storageErr(c, err)
	}
	return c.JSON(mon)
}

// updateMonitorHandler serves PUT /api/monitors/{id}.
func (s *Server) updateMonitorHandler(c *fiber.Ctx) error {
	var req monitorUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err)
	}

	id := c.Params("id")
	patch, err := validateMonitorUpdate(id, req)
	if err != nil {
		return badRequest(c, err)
	}

	updated, err := s.store.UpdateMonitor(c.Context(), id, patch)
	if err != nil {
		return storageErr(c, err)
	}

	// Cosmetic-only patches (name, tags) don't touch interval/schedule/
	// enabled, so skip the reschedule churn per spec.md section 4.7.
	if patch.Interval != nil || patch.Schedule != nil || patch.Enabled != nil {
		if err := s.scheduler.Reschedule(c.Context(), updated); err != nil {
			s.logger.WithComponent("api").WithError(err).Warn("failed to reschedule updated monitor")
		}
	}

	return c.JSON(updated)
}

// deleteMonitorHandler serves DELETE /api/monitors/{id}.
func (s *Server) deleteMonitorHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.DeleteMonitor(c.Context(), id); err != nil {
		return storageErr(c, err)
	}
	if err := s.scheduler.Unschedule(c.Context(), id); err != nil {
		s.logger.WithComponent("api").WithError(err).Warn("failed to unschedule deleted monitor")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// checkMonitorHandler serves POST /api/monitors/{id}/check: an ad-hoc
// run that bypasses the scheduler entirely (spec.md section 4.7).
func (s *Server) checkMonitorHandler(c *fiber.Ctx) error {
	mon, err := s.store.GetMonitor(c.Context(), c.Params("id"))
	if err != nil {
		return storageErr(c, err)
	}

	result, err := s.executor.Run(c.Context(), mon)
	if err != nil {
		var badPipeline *stages.BadPipelineError
		if errors.As(err, &badPipeline) {
			return badRequest(c, err)
		}
		return storageErr(c, err)
	}
	return c.JSON(result)
}

// checkAllHandler serves POST /api/monitors/check-all[?tag=T].
func (s *Server) checkAllHandler(c *fiber.Ctx) error {
	tag := c.Query("tag")
	results, err := s.scheduler.RunCheckAll(c.Context(), tag)
	if err != nil {
		return storageErr(c, err)
	}
	return c.JSON(results)
}

// listResultsHandler serves GET /api/monitors/{id}/results[?limit=N].
func (s *Server) listResultsHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	limit := c.QueryInt("limit", 0)

	results, err := s.store.ListResults(c.Context(), id, limit)
	if err != nil {
		return storageErr(c, err)
	}
	if results == nil {
		results = []*models.CheckResult{}
	}
	return c.JSON(results)
}

// listTagsHandler serves GET /api/monitors/tags.
func (s *Server) listTagsHandler(c *fiber.Ctx) error {
	tags, err := s.store.ListTags(c.Context())
	if err != nil {
		return storageErr(c, err)
	}
	if tags == nil {
		tags = []string{}
	}
	return c.JSON(tags)
}

// listStagesHandler serves GET /api/stages.
func (s *Server) listStagesHandler(c *fiber.Ctx) error {
	return c.JSON(stages.List())
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": true, "message": err.Error()})
}

// storageErr maps storage.ErrNotFound to 404 and everything else to
// 500, per spec.md section 7's "StorageError ... caller's problem for
// API writes (500)" rule.
func storageErr(c *fiber.Ctx, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": true, "message": "not found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": true, "message": err.Error()})
}

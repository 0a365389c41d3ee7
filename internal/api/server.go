// Package api exposes the REST surface described in spec.md section 6:
// monitor CRUD, ad-hoc checks, results, tags, stage discovery, health
// and metrics — backed directly by a storage.MonitorStore, a
// pipeline.Executor, and a scheduler.Scheduler.
package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/1broseidon/hallmonitor/internal/config"
	"github.com/1broseidon/hallmonitor/internal/logging"
	"github.com/1broseidon/hallmonitor/internal/metrics"
	"github.com/1broseidon/hallmonitor/internal/pipeline"
	"github.com/1broseidon/hallmonitor/internal/scheduler"
	"github.com/1broseidon/hallmonitor/internal/storage"
)

// Server is the Fiber-backed HTTP surface over the core engine.
type Server struct {
	app           *fiber.App
	config        *config.Config
	logger        *logging.Logger
	metrics       *metrics.Metrics
	store         storage.MonitorStore
	executor      *pipeline.Executor
	scheduler     *scheduler.Scheduler
	prometheusReg prometheus.Registerer
}

// NewServer wires a Server over an already-constructed store, executor,
// and scheduler, matching the order main.go assembles them in.
func NewServer(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics, store storage.MonitorStore, executor *pipeline.Executor, sched *scheduler.Scheduler, prometheusReg prometheus.Registerer) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Hall Monitor v1.0",
		DisableStartupMessage: false,
		ServerHeader:          "HallMonitor",
		ErrorHandler:          errorHandler(logger),
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		ReadBufferSize:        8192,
	})

	s := &Server{
		app:           app,
		config:        cfg,
		logger:        logger,
		metrics:       m,
		store:         store,
		executor:      executor,
		scheduler:     sched,
		prometheusReg: prometheusReg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	s.app.Use(logger.New(logger.Config{
		Format: "${time} | ${status} | ${latency} | ${method} ${path}\n",
	}))

	corsOrigins := "*"
	if len(s.config.Server.CORSOrigins) > 0 {
		corsOrigins = strings.Join(s.config.Server.CORSOrigins, ",")
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	s.app.Use(timeout.NewWithContext(func(c *fiber.Ctx) error {
		return c.Next()
	}, 30*time.Second))

	// USERNAME/PASSWORD (spec.md section 6) gate the whole API behind
	// HTTP basic auth whenever a username is set; an empty username leaves
	// the API open, matching a local/dev deployment with no auth configured.
	if s.config.Server.Username != "" {
		s.app.Use(basicauth.New(basicauth.Config{
			Users: map[string]string{
				s.config.Server.Username: s.config.Server.Password,
			},
		}))
	}
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.healthHandler)
	s.app.Get("/ready", s.readyHandler)
	s.app.Get("/metrics", s.metricsHandler)

	api := s.app.Group("/api")

	api.Get("/monitors", s.listMonitorsHandler)
	api.Post("/monitors", s.createMonitorHandler)
	api.Get("/monitors/tags", s.listTagsHandler)
	api.Post("/monitors/check-all", s.checkAllHandler)
	api.Get("/monitors/:id", s.getMonitorHandler)
	api.Put("/monitors/:id", s.updateMonitorHandler)
	api.Delete("/monitors/:id", s.deleteMonitorHandler)
	api.Post("/monitors/:id/check", s.checkMonitorHandler)
	api.Get("/monitors/:id/results", s.listResultsHandler)

	api.Get("/stages", s.listStagesHandler)
}

// Start begins serving HTTP on the configured host:port.
func (s *Server) Start() error {
	address := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.WithComponent(logging.ComponentAPI).
		WithEvent(logging.EventServerStart).
		WithFields(map[string]interface{}{"address": address}).
		Info("starting HTTP server")
	return s.app.Listen(address)
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop() error {
	s.logger.WithComponent(logging.ComponentAPI).WithEvent(logging.EventServerStop).Info("stopping HTTP server")
	return s.app.Shutdown()
}

func errorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.WithComponent(logging.ComponentAPI).
			WithFields(map[string]interface{}{
				"method": c.Method(),
				"path":   c.Path(),
				"status": code,
			}).
			WithError(err).
			Error("HTTP request error")

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": err.Error(),
		})
	}
}

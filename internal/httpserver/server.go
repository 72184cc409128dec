// Package httpserver hosts the liveness responder and the ops endpoints.
package httpserver

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/channel-sweeper/internal/health"
	"github.com/p-blackswan/channel-sweeper/internal/metrics"
)

// Server is a fiber application bound to one address.
type Server struct {
	app    *fiber.App
	addr   string
	logger zerolog.Logger
}

func newServer(name, addr string, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", name).Logger()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		ReadBufferSize:        8192,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	return &Server{app: app, addr: addr, logger: logger}
}

// NewLiveness creates the liveness server. Every GET path answers 200.
func NewLiveness(addr string, logger zerolog.Logger) *Server {
	s := newServer("liveness", addr, logger)
	s.app.Get("/*", health.LivenessHandler())
	return s
}

// NewOps creates the ops server with /metrics, /readyz and /healthz.
func NewOps(addr string, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Server {
	s := newServer("ops", addr, logger)

	s.app.Get("/healthz", health.LivenessHandler())
	s.app.Get("/readyz", checker.ReadinessHandler())
	if m != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	} else {
		s.app.Get("/metrics", func(c *fiber.Ctx) error {
			return c.SendString("# No metrics collector configured\n")
		})
	}
	return s
}

// Start listens on the configured address. Blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("http server starting")
	return s.app.Listen(s.addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("http server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		fe := fiber.ErrInternalServerError
		errors.As(err, &fe)
		if fe.Code >= fiber.StatusInternalServerError {
			logger.Error().
				Err(err).
				Int("status", fe.Code).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("unhandled error")
		}
		return c.Status(fe.Code).SendString(fe.Message)
	}
}

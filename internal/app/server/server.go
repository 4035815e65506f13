package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/utmlink/config"
	"github.com/sifan077/utmlink/internal/app/service"
	"github.com/sifan077/utmlink/internal/http/handler"
	"github.com/sifan077/utmlink/internal/http/middleware"
	"github.com/sifan077/utmlink/internal/http/util"
	infraprom "github.com/sifan077/utmlink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// Dependencies bundles what the HTTP server needs to serve requests.
type Dependencies struct {
	Logger    *zap.Logger
	Server    config.ServerConfig
	Shortener config.ShortenerConfig
	Links     service.LinkService
	Campaigns service.CampaignService
	Sweeper   handler.Sweeper
	Redactor  *util.IPRedactor
	Metrics   *infraprom.Metrics
	// RateCounter enables the per-IP limiter when non-nil.
	RateCounter middleware.Counter
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with middleware and routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "utmlink",
		DisableStartupMessage: true,
		ProxyHeader:           deps.Server.ProxyHeader,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.Metrics(s.deps.Metrics))
	s.app.Use(middleware.CORS())

	if s.deps.RateCounter != nil && s.deps.Server.IPRateLimit > 0 {
		cfg := middleware.DefaultRateLimitConfig()
		cfg.MaxRequests = s.deps.Server.IPRateLimit
		s.app.Use(middleware.RateLimit(s.deps.RateCounter, cfg, s.deps.Logger))
	}
}

func (s *Server) registerRoutes() {
	handler.NewRedirectHandler(handler.RedirectDeps{
		Logger:        s.deps.Logger,
		LinkService:   s.deps.Links,
		Redactor:      s.deps.Redactor,
		CountryHeader: s.deps.Shortener.CountryHeader,
		NotFoundURL:   s.deps.Server.NotFoundURL,
		HomeURL:       s.deps.Shortener.BaseURL,
	}).Register(s.app)

	handler.NewAPIHandler(handler.APIDeps{
		Logger:          s.deps.Logger,
		LinkService:     s.deps.Links,
		CampaignService: s.deps.Campaigns,
		Sweeper:         s.deps.Sweeper,
		BaseURL:         s.deps.Shortener.BaseURL,
	}).Register(s.app)
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		if status >= fiber.StatusInternalServerError {
			logger.Error("unhandled request error", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(status).JSON(fiber.Map{
			"error": statusMessage(status, err),
		})
	}
}

func statusMessage(status int, err error) string {
	if status >= fiber.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

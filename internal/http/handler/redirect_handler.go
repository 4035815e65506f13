package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/utmlink/internal/app/service"
	"github.com/sifan077/utmlink/internal/http/util"
	"github.com/sifan077/utmlink/internal/http/view"
	"go.uber.org/zap"
)

const notFoundPath = "/s/not-found"

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	Redactor    *util.IPRedactor
	// CountryHeader names the edge header carrying the visitor's ISO country.
	CountryHeader string
	NotFoundURL   string
	HomeURL       string
}

// RedirectHandler serves the public short-link routes.
type RedirectHandler struct {
	logger        *zap.Logger
	links         service.LinkService
	redactor      *util.IPRedactor
	countryHeader string
	notFoundURL   string
	homeURL       string
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notFoundURL := deps.NotFoundURL
	if notFoundURL == "" {
		notFoundURL = notFoundPath
	}
	return &RedirectHandler{
		logger:        logger,
		links:         deps.LinkService,
		redactor:      deps.Redactor,
		countryHeader: deps.CountryHeader,
		notFoundURL:   notFoundURL,
		homeURL:       deps.HomeURL,
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get(notFoundPath, h.NotFound)
	router.Get("/s/:code", h.Resolve)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "utmlink",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /s/:code. Visitors never learn why a link failed:
// every failure redirects to the not-found page.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")

	ip := c.IP()
	if h.redactor != nil {
		ip = h.redactor.Redact(ip)
	}
	meta := service.RequestMeta{
		IP:        ip,
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Referrer:  c.Get(fiber.HeaderReferer),
	}
	if h.countryHeader != "" {
		meta.Country = c.Get(h.countryHeader)
	}

	c.Set(fiber.HeaderCacheControl, "no-store")

	target, err := h.links.Resolve(c.UserContext(), code, meta)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrInactive), errors.Is(err, service.ErrExpired):
			h.logger.Debug("short link unavailable", zap.String("code", code), zap.Error(err))
		default:
			h.logger.Error("failed to resolve short link", zap.String("code", code), zap.Error(err))
		}
		return c.Redirect(h.notFoundURL, fiber.StatusFound)
	}

	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", target))
	return c.Redirect(target, fiber.StatusFound)
}

// NotFound renders the page dead links are sent to.
func (h *RedirectHandler) NotFound(c *fiber.Ctx) error {
	html, err := view.RenderNotFoundPage(view.NotFoundPageData{HomeURL: h.homeURL})
	if err != nil {
		h.logger.Error("failed to render not-found page", zap.Error(err))
		return c.Status(fiber.StatusNotFound).SendString("link not found")
	}
	return c.Status(fiber.StatusNotFound).
		Type("html", "utf-8").
		SendString(html)
}

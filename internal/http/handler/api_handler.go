package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/utmlink/internal/app/model"
	"github.com/sifan077/utmlink/internal/app/service"
	"github.com/sifan077/utmlink/internal/http/middleware"
	"github.com/sifan077/utmlink/internal/http/util"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sweeper runs one expiration pass on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger          *zap.Logger
	LinkService     service.LinkService
	CampaignService service.CampaignService
	Sweeper         Sweeper
	// BaseURL prefixes codes to build short URLs, e.g. https://go.example.com
	BaseURL string
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger    *zap.Logger
	links     service.LinkService
	campaigns service.CampaignService
	sweeper   Sweeper
	baseURL   string
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:    logger,
		links:     deps.LinkService,
		campaigns: deps.CampaignService,
		sweeper:   deps.Sweeper,
		baseURL:   strings.TrimRight(deps.BaseURL, "/"),
	}
}

// Register wires API routes onto the provided router. Every route requires
// a principal.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api", middleware.Principal())
	{
		links := api.Group("/links")
		{
			links.Post("/", h.CreateLink)
			links.Post("/bulk", h.BulkCreate)
			links.Get("/", h.ListLinks)
			links.Get("/:code", h.GetLink)
			links.Patch("/:code", h.UpdateLink)
			links.Post("/:code/reset", h.ResetStats)
			links.Get("/:code/analytics", h.LinkAnalytics)
			links.Get("/:code/analytics/export", h.ExportLinkAnalytics)
			links.Get("/:code/qr", h.QRCode)
		}

		campaigns := api.Group("/campaigns")
		{
			campaigns.Post("/", h.CreateCampaign)
			campaigns.Post("/from-template", h.CreateCampaignFromTemplate)
			campaigns.Get("/:code", h.GetCampaign)
			campaigns.Patch("/:code", h.UpdateCampaign)
			campaigns.Get("/:code/analytics", h.CampaignAnalytics)
		}

		templates := api.Group("/templates")
		{
			templates.Post("/", h.CreateTemplate)
			templates.Get("/:code", h.GetTemplate)
		}

		api.Post("/admin/sweep", h.Sweep)
	}
}

// LinkResponse is the API view of a short link.
type LinkResponse struct {
	Code           string           `json:"code"`
	ShortURL       string           `json:"shortURL"`
	OriginalURL    string           `json:"originalURL"`
	DecoratedURL   string           `json:"decoratedURL"`
	CampaignCode   *string          `json:"campaignCode,omitempty"`
	Status         model.LinkStatus `json:"status"`
	ExpiresAt      *time.Time       `json:"expiresAt"`
	ClickCount     int64            `json:"clickCount"`
	UniqueVisitors int64            `json:"uniqueVisitors"`
	LastAccessedAt *time.Time       `json:"lastAccessedAt,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

func (h *APIHandler) linkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		Code:           link.Code,
		ShortURL:       h.baseURL + "/s/" + link.Code,
		OriginalURL:    link.OriginalURL,
		DecoratedURL:   link.DecoratedURL,
		CampaignCode:   link.CampaignCode,
		Status:         link.EffectiveStatus(time.Now()),
		ExpiresAt:      link.ExpiresAt,
		ClickCount:     link.ClickCount,
		UniqueVisitors: link.UniqueVisitorCount,
		LastAccessedAt: link.LastAccessedAt,
		CreatedAt:      link.CreatedAt,
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	OriginalURL string     `json:"originalURL" validate:"max=2048"`
	CampaignRef string     `json:"campaignRef" validate:"omitempty,max=32"`
	CustomAlias string     `json:"customAlias"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if handled, err := parseBody(c, &req); handled {
		return err
	}

	link, err := h.links.CreateLink(c.UserContext(), service.CreateLinkInput{
		OriginalURL:  req.OriginalURL,
		CampaignCode: req.CampaignRef,
		CustomAlias:  req.CustomAlias,
		ExpiresAt:    req.ExpiresAt,
	}, middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "create link", err)
	}

	return c.Status(fiber.StatusCreated).JSON(h.linkResponse(link))
}

// BulkItemRequest is one entry of a bulk creation request. Items are
// validated by the service so one bad item cannot fail the batch.
type BulkItemRequest struct {
	URL   string `json:"url"`
	Alias string `json:"alias"`
}

// BulkCreateRequest represents the request body for bulk link creation.
type BulkCreateRequest struct {
	CampaignRef string            `json:"campaignRef" validate:"omitempty,max=32"`
	Items       []BulkItemRequest `json:"items" validate:"required,min=1,max=500"`
}

// BulkErrorResponse reports one rejected bulk item.
type BulkErrorResponse struct {
	Index     int    `json:"index"`
	Reason    string `json:"reason"`
	ErrorKind string `json:"errorKind"`
}

// BulkCreateResponse summarises a bulk creation.
type BulkCreateResponse struct {
	CreatedCount int                 `json:"createdCount"`
	ErrorCount   int                 `json:"errorCount"`
	Created      []LinkResponse      `json:"created"`
	Errors       []BulkErrorResponse `json:"errors"`
}

// BulkCreate handles POST /api/links/bulk
func (h *APIHandler) BulkCreate(c *fiber.Ctx) error {
	var req BulkCreateRequest
	if handled, err := parseBody(c, &req); handled {
		return err
	}

	items := make([]service.BulkItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.BulkItem{URL: item.URL, Alias: item.Alias}
	}

	result, err := h.links.BulkCreate(c.UserContext(), req.CampaignRef, items, middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "bulk create", err)
	}

	resp := BulkCreateResponse{
		CreatedCount: len(result.Created),
		ErrorCount:   len(result.Errors),
		Created:      make([]LinkResponse, len(result.Created)),
		Errors:       make([]BulkErrorResponse, len(result.Errors)),
	}
	for i := range result.Created {
		resp.Created[i] = h.linkResponse(&result.Created[i])
	}
	for i, e := range result.Errors {
		resp.Errors[i] = BulkErrorResponse{Index: e.Index, Reason: e.Reason, ErrorKind: e.Kind}
	}

	status := fiber.StatusCreated
	if resp.CreatedCount == 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(resp)
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > service.MaxListLimit {
		limit = 20
	}
	offset := max(c.QueryInt("offset", 0), 0)

	links, err := h.links.ListLinks(c.UserContext(), middleware.PrincipalFrom(c), limit, offset)
	if err != nil {
		return writeError(c, h.logger, "list links", err)
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = h.linkResponse(&links[i])
	}

	return c.JSON(fiber.Map{
		"links":  response,
		"limit":  limit,
		"offset": offset,
		"count":  len(response),
	})
}

// GetLink handles GET /api/links/:code
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	link, err := h.links.GetLink(c.UserContext(), c.Params("code"), middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "get link", err)
	}
	return c.JSON(h.linkResponse(link))
}

// UpdateLinkRequest represents the request body for updating a link. An
// empty campaignRef detaches the campaign.
type UpdateLinkRequest struct {
	OriginalURL *string    `json:"originalURL" validate:"omitempty,max=2048"`
	CampaignRef *string    `json:"campaignRef" validate:"omitempty,max=32"`
	Status      *string    `json:"status" validate:"omitempty,oneof=Active Inactive"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	ClearExpiry bool       `json:"clearExpiry"`
}

// UpdateLink handles PATCH /api/links/:code
func (h *APIHandler) UpdateLink(c *fiber.Ctx) error {
	var req UpdateLinkRequest
	if handled, err := parseBody(c, &req); handled {
		return err
	}

	input := service.UpdateLinkInput{
		OriginalURL:  req.OriginalURL,
		CampaignCode: req.CampaignRef,
		ExpiresAt:    req.ExpiresAt,
		ClearExpiry:  req.ClearExpiry,
	}
	if req.Status != nil {
		status := model.LinkStatus(*req.Status)
		input.Status = &status
	}

	link, err := h.links.UpdateLink(c.UserContext(), c.Params("code"), input, middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "update link", err)
	}
	return c.JSON(h.linkResponse(link))
}

// ResetStats handles POST /api/links/:code/reset
func (h *APIHandler) ResetStats(c *fiber.Ctx) error {
	link, err := h.links.ResetStats(c.UserContext(), c.Params("code"), middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "reset stats", err)
	}
	return c.JSON(h.linkResponse(link))
}

// LinkAnalytics handles GET /api/links/:code/analytics
func (h *APIHandler) LinkAnalytics(c *fiber.Ctx) error {
	analytics, err := h.links.GetLinkAnalytics(c.UserContext(), c.Params("code"), middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "link analytics", err)
	}
	return c.JSON(analytics)
}

// ExportLinkAnalytics handles GET /api/links/:code/analytics/export
func (h *APIHandler) ExportLinkAnalytics(c *fiber.Ctx) error {
	code := c.Params("code")
	data, err := h.links.ExportLinkAnalytics(c.UserContext(), code, middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "export analytics", err)
	}
	c.Attachment(code + "-analytics.xlsx")
	c.Set(fiber.HeaderContentType, xlsxContentType)
	return c.Send(data)
}

// QRCode handles GET /api/links/:code/qr, a PNG of the short URL. The
// optional size query parameter sets the edge length in pixels.
func (h *APIHandler) QRCode(c *fiber.Ctx) error {
	size := c.QueryInt("size", util.DefaultQRSize)
	if size < util.MinQRSize || size > util.MaxQRSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     util.ErrQRSize.Error(),
			"errorKind": kindValidation,
		})
	}

	link, err := h.links.GetLink(c.UserContext(), c.Params("code"), middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "qr code", err)
	}

	png, err := util.QRCodePNG(h.linkResponse(link).ShortURL, size)
	if err != nil {
		h.logger.Error("failed to encode qr code", zap.String("code", link.Code), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":     "internal server error",
			"errorKind": "Internal",
		})
	}
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	c.Type("png")
	return c.Send(png)
}

// Sweep handles POST /api/admin/sweep
func (h *APIHandler) Sweep(c *fiber.Ctx) error {
	principal := middleware.PrincipalFrom(c)
	if !principal.HasRole(model.RoleAdmin) {
		return writeError(c, h.logger, "sweep", service.ErrPermissionDenied)
	}
	if h.sweeper == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":     "expiration sweeper is disabled",
			"errorKind": "Internal",
		})
	}

	n, err := h.sweeper.Sweep(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, "sweep", err)
	}
	h.logger.Info("manual sweep finished", zap.String("by", principal.ID), zap.Int("expired", n))
	return c.JSON(fiber.Map{"expired": n})
}

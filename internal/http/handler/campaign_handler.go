package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/utmlink/internal/app/model"
	"github.com/sifan077/utmlink/internal/app/service"
	"github.com/sifan077/utmlink/internal/http/middleware"
)

// CreateCampaignRequest represents the request body for creating a campaign.
type CreateCampaignRequest struct {
	Name        string `json:"name" validate:"max=140"`
	Description string `json:"description"`
	BaseURL     string `json:"base_url" validate:"omitempty,max=2048"`
	Source      string `json:"utm_source" validate:"max=140"`
	Medium      string `json:"utm_medium" validate:"max=140"`
	Campaign    string `json:"utm_campaign" validate:"max=140"`
	Term        string `json:"utm_term" validate:"omitempty,max=140"`
	Content     string `json:"utm_content" validate:"omitempty,max=140"`
}

// CreateCampaign handles POST /api/campaigns
func (h *APIHandler) CreateCampaign(c *fiber.Ctx) error {
	var req CreateCampaignRequest
	if handled, err := parseBody(c, &req); handled {
		return err
	}

	campaign, err := h.campaigns.CreateCampaign(c.UserContext(), service.CampaignInput{
		Name:        req.Name,
		Description: req.Description,
		BaseURL:     req.BaseURL,
		Source:      req.Source,
		Medium:      req.Medium,
		Campaign:    req.Campaign,
		Term:        req.Term,
		Content:     req.Content,
	}, middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "create campaign", err)
	}
	return c.Status(fiber.StatusCreated).JSON(campaign)
}

// FromTemplateRequest represents the request body for instantiating a template.
type FromTemplateRequest struct {
	TemplateCode string `json:"template_code" validate:"required,max=32"`
	CampaignName string `json:"campaign_name" validate:"max=140"`
	Platform     string `json:"platform" validate:"omitempty,max=64"`
	BaseURL      string `json:"base_url" validate:"omitempty,max=2048"`
}

// CreateCampaignFromTemplate handles POST /api/campaigns/from-template
func (h *APIHandler) CreateCampaignFromTemplate(c *fiber.Ctx) error {
	var req FromTemplateRequest
	if handled, err := parseBody(c, &req); handled {
		return err
	}

	campaign, err := h.campaigns.CreateCampaignFromTemplate(c.UserContext(), service.FromTemplateInput{
		TemplateCode: req.TemplateCode,
		CampaignName: req.CampaignName,
		Platform:     req.Platform,
		BaseURL:      req.BaseURL,
	}, middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "create campaign from template", err)
	}
	return c.Status(fiber.StatusCreated).JSON(campaign)
}

// GetCampaign handles GET /api/campaigns/:code
func (h *APIHandler) GetCampaign(c *fiber.Ctx) error {
	campaign, err := h.campaigns.GetCampaign(c.UserContext(), c.Params("code"), middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "get campaign", err)
	}
	return c.JSON(campaign)
}

// UpdateCampaignRequest carries the mutable campaign fields. UTM values
// cannot be changed once a campaign exists.
type UpdateCampaignRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=140"`
	Description *string `json:"description"`
	BaseURL     *string `json:"base_url" validate:"omitempty,max=2048"`
	Status      *string `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

// UpdateCampaign handles PATCH /api/campaigns/:code
func (h *APIHandler) UpdateCampaign(c *fiber.Ctx) error {
	var req UpdateCampaignRequest
	if handled, err := parseBody(c, &req); handled {
		return err
	}

	input := service.UpdateCampaignInput{
		Name:        req.Name,
		Description: req.Description,
		BaseURL:     req.BaseURL,
	}
	if req.Status != nil {
		status := model.CampaignStatus(*req.Status)
		input.Status = &status
	}

	campaign, err := h.campaigns.UpdateCampaign(c.UserContext(), c.Params("code"), input, middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "update campaign", err)
	}
	return c.JSON(campaign)
}

// CampaignAnalytics handles GET /api/campaigns/:code/analytics
func (h *APIHandler) CampaignAnalytics(c *fiber.Ctx) error {
	analytics, err := h.links.GetCampaignAnalytics(c.UserContext(), c.Params("code"), middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "campaign analytics", err)
	}
	return c.JSON(analytics)
}

// CreateTemplateRequest represents the request body for creating a UTM template.
type CreateTemplateRequest struct {
	Name             string `json:"name" validate:"max=140"`
	Description      string `json:"description"`
	Source           string `json:"utm_source" validate:"max=140"`
	Medium           string `json:"utm_medium" validate:"max=140"`
	CampaignTemplate string `json:"utm_campaign_template" validate:"max=140"`
	TermTemplate     string `json:"utm_term_template" validate:"omitempty,max=140"`
	ContentTemplate  string `json:"utm_content_template" validate:"omitempty,max=140"`
}

// CreateTemplate handles POST /api/templates
func (h *APIHandler) CreateTemplate(c *fiber.Ctx) error {
	var req CreateTemplateRequest
	if handled, err := parseBody(c, &req); handled {
		return err
	}

	tmpl, err := h.campaigns.CreateTemplate(c.UserContext(), service.TemplateInput{
		Name:             req.Name,
		Description:      req.Description,
		Source:           req.Source,
		Medium:           req.Medium,
		CampaignTemplate: req.CampaignTemplate,
		TermTemplate:     req.TermTemplate,
		ContentTemplate:  req.ContentTemplate,
	}, middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "create template", err)
	}
	return c.Status(fiber.StatusCreated).JSON(tmpl)
}

// GetTemplate handles GET /api/templates/:code
func (h *APIHandler) GetTemplate(c *fiber.Ctx) error {
	tmpl, err := h.campaigns.GetTemplate(c.UserContext(), c.Params("code"), middleware.PrincipalFrom(c))
	if err != nil {
		return writeError(c, h.logger, "get template", err)
	}
	return c.JSON(tmpl)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/sifan077/utmlink/internal/app/model"
	"github.com/sifan077/utmlink/internal/app/repository"
	"github.com/sifan077/utmlink/internal/app/urlguard"
	"github.com/sifan077/utmlink/internal/app/utm"
	"go.uber.org/zap"
)

const (
	codeSymbols          = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	campaignSuffixLength = 4
	campaignNamePrefix   = 10
	maxCampaignCounter   = 99
	templatePrefix       = "TMPL-"
	templateSuffixLength = 6
	templateAttempts     = 100
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// CampaignService manages UTM campaigns and the templates they are created from.
type CampaignService interface {
	CreateCampaign(ctx context.Context, input CampaignInput, principal model.Principal) (*model.Campaign, error)
	CreateCampaignFromTemplate(ctx context.Context, input FromTemplateInput, principal model.Principal) (*model.Campaign, error)
	GetCampaign(ctx context.Context, code string, principal model.Principal) (*model.Campaign, error)
	UpdateCampaign(ctx context.Context, code string, input UpdateCampaignInput, principal model.Principal) (*model.Campaign, error)
	CreateTemplate(ctx context.Context, input TemplateInput, principal model.Principal) (*model.Template, error)
	GetTemplate(ctx context.Context, code string, principal model.Principal) (*model.Template, error)
}

type CampaignInput struct {
	Name        string
	Description string
	BaseURL     string
	Source      string
	Medium      string
	Campaign    string
	Term        string
	Content     string
}

type FromTemplateInput struct {
	TemplateCode string
	CampaignName string
	Platform     string
	BaseURL      string
}

// UpdateCampaignInput holds the mutable campaign fields; nil leaves a field unchanged.
type UpdateCampaignInput struct {
	Name        *string
	Description *string
	BaseURL     *string
	Status      *model.CampaignStatus
}

type TemplateInput struct {
	Name             string
	Description      string
	Source           string
	Medium           string
	CampaignTemplate string
	TermTemplate     string
	ContentTemplate  string
}

type campaignService struct {
	logger    *zap.Logger
	campaigns repository.CampaignRepository
	templates repository.TemplateRepository
	blocked   []string
	rng       func(n int) int
	now       func() time.Time
}

// NewCampaignService returns a CampaignService backed by the given repositories.
func NewCampaignService(logger *zap.Logger, campaigns repository.CampaignRepository, templates repository.TemplateRepository, blocked []string) CampaignService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &campaignService{
		logger:    logger,
		campaigns: campaigns,
		templates: templates,
		blocked:   blocked,
		rng:       rand.IntN,
		now:       time.Now,
	}
}

func (s *campaignService) randomSymbols(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeSymbols[s.rng(len(codeSymbols))]
	}
	return string(b)
}

// campaignBase is the upper-cased alphanumerics of the first ten characters of name.
func campaignBase(name string) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > campaignNamePrefix {
		runes = runes[:campaignNamePrefix]
	}
	base := strings.ToUpper(nonAlnum.ReplaceAllString(string(runes), ""))
	if base == "" {
		return "CAMP"
	}
	return base
}

func (s *campaignService) CreateCampaign(ctx context.Context, input CampaignInput, principal model.Principal) (*model.Campaign, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrCampaignValidation)
	}
	params := utm.Params{
		Source:   strings.TrimSpace(input.Source),
		Medium:   strings.TrimSpace(input.Medium),
		Campaign: strings.TrimSpace(input.Campaign),
		Term:     strings.TrimSpace(input.Term),
		Content:  strings.TrimSpace(input.Content),
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if input.BaseURL != "" {
		if _, err := urlguard.Validate(input.BaseURL, s.blocked); err != nil {
			return nil, err
		}
	}

	campaign := &model.Campaign{
		Name:        name,
		Description: input.Description,
		BaseURL:     input.BaseURL,
		Source:      params.Source,
		Medium:      params.Medium,
		CampaignTag: params.Campaign,
		Term:        params.Term,
		Content:     params.Content,
		Status:      model.CampaignActive,
		Owner:       principal.ID,
		CreatedAt:   s.now(),
	}

	code := campaignBase(name) + "-" + s.randomSymbols(campaignSuffixLength)
	candidate := code
	for counter := 1; ; counter++ {
		campaign.Code = candidate
		ok, err := s.campaigns.Insert(ctx, campaign)
		if err != nil {
			return nil, storageError("insert campaign", err)
		}
		if ok {
			break
		}
		if counter > maxCampaignCounter {
			return nil, fmt.Errorf("campaign code %s: %w", code, ErrCodeSpaceExhausted)
		}
		candidate = fmt.Sprintf("%s-%02d", code, counter)
	}

	s.logger.Info("campaign created", zap.String("code", campaign.Code), zap.String("owner", campaign.Owner))
	return campaign, nil
}

func (s *campaignService) CreateCampaignFromTemplate(ctx context.Context, input FromTemplateInput, principal model.Principal) (*model.Campaign, error) {
	tmpl, err := s.GetTemplate(ctx, input.TemplateCode, principal)
	if err != nil {
		return nil, err
	}

	params := utm.TemplateParams{
		Source:   tmpl.Source,
		Medium:   tmpl.Medium,
		Campaign: tmpl.CampaignTemplate,
		Term:     tmpl.TermTemplate,
		Content:  tmpl.ContentTemplate,
	}.Instantiate(utm.Vars{
		CampaignName: input.CampaignName,
		TemplateName: tmpl.Name,
		Platform:     input.Platform,
		Now:          s.now(),
	})

	description := "Created from template: " + tmpl.Name
	if tmpl.Description != "" {
		description += "\n" + tmpl.Description
	}

	return s.CreateCampaign(ctx, CampaignInput{
		Name:        input.CampaignName,
		Description: description,
		BaseURL:     input.BaseURL,
		Source:      params.Source,
		Medium:      params.Medium,
		Campaign:    params.Campaign,
		Term:        params.Term,
		Content:     params.Content,
	}, principal)
}

func (s *campaignService) GetCampaign(ctx context.Context, code string, principal model.Principal) (*model.Campaign, error) {
	campaign, err := s.campaigns.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, fmt.Errorf("campaign %s: %w", code, ErrNotFound)
		}
		return nil, storageError("get campaign", err)
	}
	if !principal.CanRead(campaign.Owner) {
		return nil, fmt.Errorf("campaign %s: %w", code, ErrPermissionDenied)
	}
	return campaign, nil
}

func (s *campaignService) UpdateCampaign(ctx context.Context, code string, input UpdateCampaignInput, principal model.Principal) (*model.Campaign, error) {
	campaign, err := s.GetCampaign(ctx, code, principal)
	if err != nil {
		return nil, err
	}
	if !principal.CanWrite(campaign.Owner) {
		return nil, fmt.Errorf("campaign %s: %w", code, ErrPermissionDenied)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrCampaignValidation)
		}
		campaign.Name = name
	}
	if input.Description != nil {
		campaign.Description = *input.Description
	}
	if input.BaseURL != nil {
		if *input.BaseURL != "" {
			if _, err := urlguard.Validate(*input.BaseURL, s.blocked); err != nil {
				return nil, err
			}
		}
		campaign.BaseURL = *input.BaseURL
	}
	if input.Status != nil {
		switch *input.Status {
		case model.CampaignActive, model.CampaignInactive:
			campaign.Status = *input.Status
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *input.Status)
		}
	}

	if err := s.campaigns.Update(ctx, campaign); err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, fmt.Errorf("campaign %s: %w", code, ErrNotFound)
		}
		return nil, storageError("update campaign", err)
	}
	return campaign, nil
}

func (s *campaignService) CreateTemplate(ctx context.Context, input TemplateInput, principal model.Principal) (*model.Template, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: template name is required", ErrCampaignValidation)
	}

	// Placeholders expand to valid values, so validate a sample rendering.
	sample := utm.TemplateParams{
		Source:   input.Source,
		Medium:   input.Medium,
		Campaign: input.CampaignTemplate,
		Term:     input.TermTemplate,
		Content:  input.ContentTemplate,
	}.Instantiate(utm.Vars{CampaignName: "sample", TemplateName: name, Platform: "web", Now: s.now()})
	if err := sample.Validate(); err != nil {
		return nil, err
	}

	tmpl := &model.Template{
		Name:             name,
		Description:      input.Description,
		Source:           input.Source,
		Medium:           input.Medium,
		CampaignTemplate: input.CampaignTemplate,
		TermTemplate:     input.TermTemplate,
		ContentTemplate:  input.ContentTemplate,
		Owner:            principal.ID,
		CreatedAt:        s.now(),
	}

	for range templateAttempts {
		tmpl.Code = templatePrefix + s.randomSymbols(templateSuffixLength)
		ok, err := s.templates.Insert(ctx, tmpl)
		if err != nil {
			return nil, storageError("insert template", err)
		}
		if ok {
			return tmpl, nil
		}
	}

	tmpl.Code = templatePrefix + s.now().UTC().Format("20060102150405")
	ok, err := s.templates.Insert(ctx, tmpl)
	if err != nil {
		return nil, storageError("insert template", err)
	}
	if !ok {
		return nil, fmt.Errorf("template code: %w", ErrCodeSpaceExhausted)
	}
	return tmpl, nil
}

func (s *campaignService) GetTemplate(ctx context.Context, code string, principal model.Principal) (*model.Template, error) {
	tmpl, err := s.templates.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, fmt.Errorf("template %s: %w", code, ErrNotFound)
		}
		return nil, storageError("get template", err)
	}
	if !principal.CanRead(tmpl.Owner) {
		return nil, fmt.Errorf("template %s: %w", code, ErrPermissionDenied)
	}
	return tmpl, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sifan077/utmlink/internal/app/clickmeta"
	"github.com/sifan077/utmlink/internal/app/model"
	"github.com/sifan077/utmlink/internal/app/repository"
	"github.com/sifan077/utmlink/internal/app/shortcode"
	"github.com/sifan077/utmlink/internal/app/urlguard"
	"github.com/sifan077/utmlink/internal/app/utm"
	infraprom "github.com/sifan077/utmlink/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	// MaxInsertAttempts bounds retries after a generated code loses an insert race.
	MaxInsertAttempts = 100
	MaxListLimit      = 100
	defaultListLimit  = 20
)

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput, principal model.Principal) (*model.Link, error)
	BulkCreate(ctx context.Context, campaignCode string, items []BulkItem, principal model.Principal) (*BulkResult, error)
	Resolve(ctx context.Context, code string, meta RequestMeta) (string, error)
	UniqueVisitorUpdate(ctx context.Context, event model.ClickEvent) error
	GetLink(ctx context.Context, code string, principal model.Principal) (*model.Link, error)
	ListLinks(ctx context.Context, principal model.Principal, limit, offset int) ([]model.Link, error)
	UpdateLink(ctx context.Context, code string, input UpdateLinkInput, principal model.Principal) (*model.Link, error)
	ResetStats(ctx context.Context, code string, principal model.Principal) (*model.Link, error)
	GetLinkAnalytics(ctx context.Context, code string, principal model.Principal) (*LinkAnalytics, error)
	GetCampaignAnalytics(ctx context.Context, campaignCode string, principal model.Principal) (*CampaignAnalytics, error)
	ExportLinkAnalytics(ctx context.Context, code string, principal model.Principal) ([]byte, error)
}

// ClickNotifier hands a stored click to the asynchronous unique-visitor pipeline.
type ClickNotifier interface {
	Publish(ctx context.Context, event model.ClickEvent) error
}

// LinkDeps bundles the collaborators of the link service.
type LinkDeps struct {
	Logger         *zap.Logger
	Links          repository.LinkRepository
	Clicks         repository.ClickEventRepository
	Campaigns      repository.CampaignRepository
	Limiter        *RateLimiter
	Codes          *shortcode.Generator
	Notifier       ClickNotifier
	Metrics        *infraprom.Metrics
	BlockedDomains []string
	Now            func() time.Time
}

type linkService struct {
	logger    *zap.Logger
	links     repository.LinkRepository
	clicks    repository.ClickEventRepository
	campaigns repository.CampaignRepository
	limiter   *RateLimiter
	codes     *shortcode.Generator
	notifier  ClickNotifier
	metrics   *infraprom.Metrics
	blocked   []string
	now       func() time.Time
}

// NewLinkService returns a service implementation backed by the given repositories.
func NewLinkService(deps LinkDeps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	codes := deps.Codes
	if codes == nil {
		codes = shortcode.NewGenerator()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &linkService{
		logger:    logger,
		links:     deps.Links,
		clicks:    deps.Clicks,
		campaigns: deps.Campaigns,
		limiter:   deps.Limiter,
		codes:     codes,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		blocked:   deps.BlockedDomains,
		now:       now,
	}
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	OriginalURL  string
	CampaignCode string
	CustomAlias  string
	ExpiresAt    *time.Time
}

// UpdateLinkInput captures fields that can be changed on an existing link.
// An empty CampaignCode detaches the campaign; ClearExpiry removes the expiry.
type UpdateLinkInput struct {
	OriginalURL  *string
	CampaignCode *string
	Status       *model.LinkStatus
	ExpiresAt    *time.Time
	ClearExpiry  bool
}

// BulkItem is one entry of a bulk creation request.
type BulkItem struct {
	URL   string
	Alias string
}

// BulkError reports why the item at Index was not created.
type BulkError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Kind   string `json:"errorKind"`
}

// BulkResult lists created links and per-item failures, in request order.
type BulkResult struct {
	Created []model.Link
	Errors  []BulkError
}

// RequestMeta is the visitor metadata captured at the redirect boundary.
// IP is expected to be redacted already.
type RequestMeta struct {
	IP        string
	UserAgent string
	Referrer  string
	Country   string
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput, principal model.Principal) (*model.Link, error) {
	if err := s.checkRate(ctx, principal, 1); err != nil {
		return nil, err
	}
	return s.create(ctx, input, nil, principal)
}

func (s *linkService) BulkCreate(ctx context.Context, campaignCode string, items []BulkItem, principal model.Principal) (*BulkResult, error) {
	if err := s.checkRate(ctx, principal, len(items)); err != nil {
		return nil, err
	}

	var campaign *model.Campaign
	if code := strings.TrimSpace(campaignCode); code != "" {
		c, err := s.loadCampaign(ctx, code, principal)
		if err != nil {
			return nil, err
		}
		campaign = c
	}

	result := &BulkResult{Created: make([]model.Link, 0, len(items))}
	for i, item := range items {
		link, err := s.create(ctx, CreateLinkInput{
			OriginalURL:  item.URL,
			CampaignCode: campaignCode,
			CustomAlias:  item.Alias,
		}, campaign, principal)
		if err != nil {
			result.Errors = append(result.Errors, BulkError{Index: i, Reason: err.Error(), Kind: Kind(err)})
			continue
		}
		result.Created = append(result.Created, *link)
	}

	s.logger.Info("bulk create finished",
		zap.String("principal", principal.ID),
		zap.Int("created", len(result.Created)),
		zap.Int("failed", len(result.Errors)),
	)
	return result, nil
}

func (s *linkService) checkRate(ctx context.Context, principal model.Principal, n int) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, principal.ID, n)
	if err != nil {
		s.logger.Error("rate limit check failed", zap.String("principal", principal.ID), zap.Error(err))
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d more links requested within %s", ErrRateLimitExceeded, n, RateWindow)
	}
	return nil
}

// create runs the validation pipeline for one link. A non-nil campaign is
// used as is; otherwise input.CampaignCode is looked up.
func (s *linkService) create(ctx context.Context, input CreateLinkInput, campaign *model.Campaign, principal model.Principal) (*model.Link, error) {
	alias := strings.TrimSpace(input.CustomAlias)
	if alias != "" {
		if err := shortcode.ValidateAlias(alias); err != nil {
			return nil, err
		}
	}

	target, err := urlguard.Validate(input.OriginalURL, s.blocked)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if input.ExpiresAt != nil && !input.ExpiresAt.After(now) {
		return nil, ErrExpiryInPast
	}

	link := &model.Link{
		OriginalURL:  target,
		DecoratedURL: target,
		CustomAlias:  alias != "",
		Status:       model.LinkActive,
		ExpiresAt:    input.ExpiresAt,
		Owner:        principal.ID,
		CreatedAt:    now,
	}
	if campaign == nil && strings.TrimSpace(input.CampaignCode) != "" {
		campaign, err = s.loadCampaign(ctx, strings.TrimSpace(input.CampaignCode), principal)
		if err != nil {
			return nil, err
		}
	}
	if campaign != nil {
		code := campaign.Code
		link.CampaignCode = &code
		link.DecoratedURL = utm.Decorate(target, campaignParams(campaign))
	}

	if err := s.assignCode(ctx, link, alias); err != nil {
		return nil, err
	}

	s.metrics.LinkCreated(link.CustomAlias)
	s.logger.Info("link created",
		zap.String("code", link.Code),
		zap.String("owner", link.Owner),
		zap.Bool("custom_alias", link.CustomAlias),
	)
	return link, nil
}

func (s *linkService) assignCode(ctx context.Context, link *model.Link, alias string) error {
	if alias != "" {
		link.Code = alias
		ok, err := s.links.Insert(ctx, link)
		if err != nil {
			return storageError("insert link", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrAliasTaken, alias)
		}
		return nil
	}

	for range MaxInsertAttempts {
		code, err := s.codes.Generate(ctx, s.links.Exists)
		if err != nil {
			if errors.Is(err, shortcode.ErrCodeSpaceExhausted) {
				return err
			}
			return storageError("check code", err)
		}

		link.Code = code
		ok, err := s.links.Insert(ctx, link)
		if err != nil {
			return storageError("insert link", err)
		}
		if ok {
			return nil
		}
		s.logger.Debug("generated code collided on insert, retrying", zap.String("code", code))
	}
	return ErrCodeSpaceExhausted
}

func (s *linkService) loadCampaign(ctx context.Context, code string, principal model.Principal) (*model.Campaign, error) {
	if s.campaigns == nil {
		return nil, fmt.Errorf("campaign %s: %w", code, ErrNotFound)
	}
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
	if campaign.Status != model.CampaignActive {
		return nil, fmt.Errorf("campaign %s: %w", code, ErrInactive)
	}
	return campaign, nil
}

func campaignParams(c *model.Campaign) utm.Params {
	return utm.Params{
		Source:   c.Source,
		Medium:   c.Medium,
		Campaign: c.CampaignTag,
		Term:     c.Term,
		Content:  c.Content,
	}
}

func (s *linkService) Resolve(ctx context.Context, code string, meta RequestMeta) (string, error) {
	target, err := s.resolve(ctx, code, meta)
	if err != nil {
		s.metrics.Resolved(Kind(err))
		return "", err
	}
	s.metrics.Resolved("ok")
	return target, nil
}

func (s *linkService) resolve(ctx context.Context, code string, meta RequestMeta) (string, error) {
	link, err := s.getLink(ctx, code)
	if err != nil {
		return "", err
	}

	now := s.now()
	if err := liveness(link, now); err != nil {
		return "", err
	}

	updated, err := s.links.IncrementClicks(ctx, code, now)
	if err != nil {
		if !errors.Is(err, repository.ErrLinkNotLive) {
			return "", storageError("increment clicks", err)
		}
		// The row changed between read and update; report its current state.
		current, getErr := s.getLink(ctx, code)
		if getErr != nil {
			return "", getErr
		}
		if lerr := liveness(current, now); lerr != nil {
			return "", lerr
		}
		return "", fmt.Errorf("link %s: %w", code, ErrInactive)
	}

	class := clickmeta.Classify(meta.UserAgent, meta.Referrer)
	details := clickmeta.Enrich(meta.UserAgent)
	event := model.ClickEvent{
		LinkCode:        code,
		Timestamp:       now,
		IPAddress:       meta.IP,
		UserAgent:       meta.UserAgent,
		Referrer:        meta.Referrer,
		DeviceType:      class.DeviceType,
		Browser:         class.Browser,
		BrowserVersion:  details.BrowserVersion,
		OperatingSystem: class.OperatingSystem,
		ReferrerSource:  class.ReferrerSource,
		Country:         clickmeta.CountryFrom(meta.Country),
		Bot:             details.Bot,
	}
	if _, err := s.clicks.Append(ctx, &event); err != nil {
		s.logger.Error("failed to append click event", zap.String("code", code), zap.Error(err))
		if rerr := s.links.RevertClick(ctx, code, now, link.LastAccessedAt); rerr != nil {
			s.logger.Error("failed to revert click count",
				zap.String("code", code),
				zap.Error(rerr),
			)
		}
		return "", storageError("append click", err)
	}
	s.metrics.ClickRecorded(event.DeviceType)

	s.dispatchUniqueVisitor(ctx, event)
	return updated.Target(), nil
}

func (s *linkService) dispatchUniqueVisitor(ctx context.Context, event model.ClickEvent) {
	if s.notifier != nil {
		err := s.notifier.Publish(ctx, event)
		if err == nil {
			return
		}
		s.logger.Warn("click publish failed, updating unique visitors inline",
			zap.String("code", event.LinkCode),
			zap.Int64("click_id", event.ID),
			zap.Error(err),
		)
	}
	if err := s.UniqueVisitorUpdate(ctx, event); err != nil {
		s.logger.Error("unique visitor update failed",
			zap.String("code", event.LinkCode),
			zap.Int64("click_id", event.ID),
			zap.Error(err),
		)
	}
}

// UniqueVisitorUpdate counts event as a new visitor when no earlier click on
// the same link came from the same (redacted) IP. Two simultaneous first
// clicks may both count. Clicks without an IP are never counted.
func (s *linkService) UniqueVisitorUpdate(ctx context.Context, event model.ClickEvent) error {
	if event.IPAddress == "" {
		return nil
	}

	prior, err := s.clicks.Query(ctx, repository.ClickQuery{
		Codes:    []string{event.LinkCode},
		IP:       event.IPAddress,
		BeforeID: event.ID,
		Limit:    1,
	})
	if err != nil {
		return storageError("query prior clicks", err)
	}
	if len(prior) > 0 {
		return nil
	}

	if err := s.links.IncrementUniqueVisitors(ctx, event.LinkCode); err != nil {
		return storageError("increment unique visitors", err)
	}
	return nil
}

func liveness(link *model.Link, now time.Time) error {
	switch link.EffectiveStatus(now) {
	case model.LinkActive:
		return nil
	case model.LinkExpired:
		return fmt.Errorf("link %s: %w", link.Code, ErrExpired)
	default:
		return fmt.Errorf("link %s: %w", link.Code, ErrInactive)
	}
}

func (s *linkService) getLink(ctx context.Context, code string) (*model.Link, error) {
	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, fmt.Errorf("link %s: %w", code, ErrNotFound)
		}
		return nil, storageError("get link", err)
	}
	return link, nil
}

func (s *linkService) GetLink(ctx context.Context, code string, principal model.Principal) (*model.Link, error) {
	link, err := s.getLink(ctx, code)
	if err != nil {
		return nil, err
	}
	if !principal.CanRead(link.Owner) {
		return nil, fmt.Errorf("link %s: %w", code, ErrPermissionDenied)
	}
	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context, principal model.Principal, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	links, err := s.links.ListByOwner(ctx, principal.ID, limit, offset)
	if err != nil {
		return nil, storageError("list links", err)
	}
	return links, nil
}

func (s *linkService) UpdateLink(ctx context.Context, code string, input UpdateLinkInput, principal model.Principal) (*model.Link, error) {
	link, err := s.getLink(ctx, code)
	if err != nil {
		return nil, err
	}
	if !principal.CanWrite(link.Owner) {
		return nil, fmt.Errorf("link %s: %w", code, ErrPermissionDenied)
	}

	if input.OriginalURL != nil {
		target, err := urlguard.Validate(*input.OriginalURL, s.blocked)
		if err != nil {
			return nil, err
		}
		link.OriginalURL = target
	}

	var campaign *model.Campaign
	switch {
	case input.CampaignCode != nil && strings.TrimSpace(*input.CampaignCode) == "":
		link.CampaignCode = nil
	case input.CampaignCode != nil:
		c := strings.TrimSpace(*input.CampaignCode)
		campaign, err = s.loadCampaign(ctx, c, principal)
		if err != nil {
			return nil, err
		}
		link.CampaignCode = &c
	case link.CampaignCode != nil && s.campaigns != nil:
		// Already attached: keep decorating even if the campaign was deactivated.
		campaign, err = s.campaigns.GetByCode(ctx, *link.CampaignCode)
		if err != nil && !errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, storageError("get campaign", err)
		}
	}
	if campaign == nil && link.CampaignCode != nil {
		// The campaign is gone; an undecorated URL must not keep its reference.
		s.logger.Warn("detaching missing campaign from link",
			zap.String("code", code),
			zap.String("campaign", *link.CampaignCode),
		)
		link.CampaignCode = nil
	}

	if input.Status != nil {
		switch *input.Status {
		case model.LinkActive, model.LinkInactive:
			link.Status = *input.Status
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *input.Status)
		}
	}

	switch {
	case input.ClearExpiry:
		link.ExpiresAt = nil
	case input.ExpiresAt != nil:
		if !input.ExpiresAt.After(s.now()) {
			return nil, ErrExpiryInPast
		}
		link.ExpiresAt = input.ExpiresAt
	}

	link.DecoratedURL = link.OriginalURL
	if campaign != nil {
		link.DecoratedURL = utm.Decorate(link.OriginalURL, campaignParams(campaign))
	}

	if err := s.links.Update(ctx, link); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, fmt.Errorf("link %s: %w", code, ErrNotFound)
		}
		return nil, storageError("update link", err)
	}
	return link, nil
}

func (s *linkService) ResetStats(ctx context.Context, code string, principal model.Principal) (*model.Link, error) {
	link, err := s.getLink(ctx, code)
	if err != nil {
		return nil, err
	}
	if !principal.CanWrite(link.Owner) {
		return nil, fmt.Errorf("link %s: %w", code, ErrPermissionDenied)
	}
	if err := s.links.ResetStats(ctx, code); err != nil {
		return nil, storageError("reset stats", err)
	}
	s.logger.Info("link stats reset", zap.String("code", code), zap.String("by", principal.ID))
	return s.getLink(ctx, code)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sifan077/utmlink/internal/app/model"
	"github.com/sifan077/utmlink/internal/app/repository"
)

const (
	RecentClicksLimit = 100
	DailyGroupsLimit  = 30
)

// LinkSummary is the headline view of one link.
type LinkSummary struct {
	Code           string           `json:"code"`
	OriginalURL    string           `json:"original_url"`
	DecoratedURL   string           `json:"decorated_url"`
	CampaignCode   *string          `json:"campaign_code,omitempty"`
	Status         model.LinkStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	LastAccessedAt *time.Time       `json:"last_accessed_at,omitempty"`
	TotalClicks    int64            `json:"total_clicks"`
	UniqueVisitors int64            `json:"unique_visitors"`
}

// DailyGroup aggregates clicks sharing a UTC date, device, country and browser.
type DailyGroup struct {
	Date           string `json:"date"`
	DeviceType     string `json:"device_type"`
	Country        string `json:"country"`
	Browser        string `json:"browser"`
	Clicks         int64  `json:"clicks"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

type LinkAnalytics struct {
	Summary        LinkSummary        `json:"summary"`
	RecentClicks   []model.ClickEvent `json:"recent_clicks"`
	DailyBreakdown []DailyGroup       `json:"daily_breakdown"`
}

// LinkBreakdown is one link's contribution to a campaign.
type LinkBreakdown struct {
	Code           string           `json:"code"`
	OriginalURL    string           `json:"original_url"`
	Status         model.LinkStatus `json:"status"`
	Clicks         int64            `json:"clicks"`
	UniqueVisitors int64            `json:"unique_visitors"`
}

type SourceCount struct {
	Source string `json:"source"`
	Clicks int64  `json:"clicks"`
}

type CampaignAnalytics struct {
	Campaign                model.Campaign  `json:"campaign"`
	TotalLinks              int             `json:"total_links"`
	ActiveLinks             int             `json:"active_links"`
	AggregateClicks         int64           `json:"aggregate_clicks"`
	AggregateUniqueVisitors int64           `json:"aggregate_unique_visitors"`
	Links                   []LinkBreakdown `json:"links"`
	SourceBreakdown         []SourceCount   `json:"source_breakdown"`
}

func summarize(link *model.Link, now time.Time) LinkSummary {
	return LinkSummary{
		Code:           link.Code,
		OriginalURL:    link.OriginalURL,
		DecoratedURL:   link.DecoratedURL,
		CampaignCode:   link.CampaignCode,
		Status:         link.EffectiveStatus(now),
		CreatedAt:      link.CreatedAt,
		ExpiresAt:      link.ExpiresAt,
		LastAccessedAt: link.LastAccessedAt,
		TotalClicks:    link.ClickCount,
		UniqueVisitors: link.UniqueVisitorCount,
	}
}

func (s *linkService) GetLinkAnalytics(ctx context.Context, code string, principal model.Principal) (*LinkAnalytics, error) {
	link, err := s.GetLink(ctx, code, principal)
	if err != nil {
		return nil, err
	}

	recent, err := s.clicks.Query(ctx, repository.ClickQuery{Codes: []string{code}, Limit: RecentClicksLimit})
	if err != nil {
		return nil, storageError("query recent clicks", err)
	}
	all, err := s.clicks.Query(ctx, repository.ClickQuery{Codes: []string{code}})
	if err != nil {
		return nil, storageError("query clicks", err)
	}

	return &LinkAnalytics{
		Summary:        summarize(link, s.now()),
		RecentClicks:   recent,
		DailyBreakdown: dailyBreakdown(all, DailyGroupsLimit),
	}, nil
}

type dailyKey struct {
	date, device, country, browser string
}

// dailyBreakdown groups events by date, device, country and browser. Groups
// are ordered newest date first, then by clicks descending.
func dailyBreakdown(events []model.ClickEvent, limit int) []DailyGroup {
	groups := make(map[dailyKey]*DailyGroup)
	visitors := make(map[dailyKey]map[string]struct{})

	for _, e := range events {
		key := dailyKey{
			date:    e.Timestamp.UTC().Format(time.DateOnly),
			device:  e.DeviceType,
			country: e.Country,
			browser: e.Browser,
		}
		g, ok := groups[key]
		if !ok {
			g = &DailyGroup{Date: key.date, DeviceType: key.device, Country: key.country, Browser: key.browser}
			groups[key] = g
			visitors[key] = make(map[string]struct{})
		}
		g.Clicks++
		if e.IPAddress != "" {
			visitors[key][e.IPAddress] = struct{}{}
		}
	}

	out := make([]DailyGroup, 0, len(groups))
	for key, g := range groups {
		g.UniqueVisitors = int64(len(visitors[key]))
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.Clicks != b.Clicks {
			return a.Clicks > b.Clicks
		}
		if a.DeviceType != b.DeviceType {
			return a.DeviceType < b.DeviceType
		}
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		return a.Browser < b.Browser
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *linkService) GetCampaignAnalytics(ctx context.Context, campaignCode string, principal model.Principal) (*CampaignAnalytics, error) {
	if s.campaigns == nil {
		return nil, fmt.Errorf("campaign %s: %w", campaignCode, ErrNotFound)
	}
	campaign, err := s.campaigns.GetByCode(ctx, campaignCode)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, fmt.Errorf("campaign %s: %w", campaignCode, ErrNotFound)
		}
		return nil, storageError("get campaign", err)
	}
	if !principal.CanRead(campaign.Owner) {
		return nil, fmt.Errorf("campaign %s: %w", campaignCode, ErrPermissionDenied)
	}

	links, err := s.links.ListByCampaign(ctx, campaignCode)
	if err != nil {
		return nil, storageError("list campaign links", err)
	}

	now := s.now()
	result := &CampaignAnalytics{
		Campaign:        *campaign,
		TotalLinks:      len(links),
		Links:           make([]LinkBreakdown, 0, len(links)),
		SourceBreakdown: []SourceCount{},
	}
	codes := make([]string, 0, len(links))
	for _, link := range links {
		status := link.EffectiveStatus(now)
		if status == model.LinkActive {
			result.ActiveLinks++
		}
		result.AggregateClicks += link.ClickCount
		result.AggregateUniqueVisitors += link.UniqueVisitorCount
		result.Links = append(result.Links, LinkBreakdown{
			Code:           link.Code,
			OriginalURL:    link.OriginalURL,
			Status:         status,
			Clicks:         link.ClickCount,
			UniqueVisitors: link.UniqueVisitorCount,
		})
		codes = append(codes, link.Code)
	}

	if len(codes) > 0 {
		events, err := s.clicks.Query(ctx, repository.ClickQuery{Codes: codes})
		if err != nil {
			return nil, storageError("query campaign clicks", err)
		}
		result.SourceBreakdown = sourceBreakdown(events)
	}
	return result, nil
}

// sourceBreakdown counts events per referrer source, most clicks first and
// ties broken by source name.
func sourceBreakdown(events []model.ClickEvent) []SourceCount {
	counts := make(map[string]int64)
	for _, e := range events {
		counts[e.ReferrerSource]++
	}
	out := make([]SourceCount, 0, len(counts))
	for source, n := range counts {
		out = append(out, SourceCount{Source: source, Clicks: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Clicks != out[j].Clicks {
			return out[i].Clicks > out[j].Clicks
		}
		return out[i].Source < out[j].Source
	})
	return out
}

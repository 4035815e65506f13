// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sifan077/utmlink/internal/app/model"
	"github.com/sifan077/utmlink/internal/app/repository"
)

// Links is a concurrency-safe in-memory LinkRepository. Setting Err makes
// every call fail with it.
type Links struct {
	mu    sync.RWMutex
	links map[string]*model.Link
	Err   error
}

func NewLinks(seed ...model.Link) *Links {
	l := &Links{links: make(map[string]*model.Link)}
	for i := range seed {
		link := seed[i]
		l.links[link.Code] = &link
	}
	return l
}

var _ repository.LinkRepository = (*Links)(nil)

func (l *Links) Exists(ctx context.Context, code string) (bool, error) {
	if l.Err != nil {
		return false, l.Err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.links[code]
	return ok, nil
}

func (l *Links) Insert(ctx context.Context, link *model.Link) (bool, error) {
	if l.Err != nil {
		return false, l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.links[link.Code]; ok {
		return false, nil
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	link.UpdatedAt = link.CreatedAt
	stored := *link
	l.links[link.Code] = &stored
	return true, nil
}

func (l *Links) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	link, ok := l.links[code]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	out := *link
	return &out, nil
}

func (l *Links) ListCodes(ctx context.Context, afterCode string, limit int) ([]string, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var codes []string
	for code := range l.links {
		if code > afterCode {
			codes = append(codes, code)
		}
	}
	slices.Sort(codes)
	if limit > 0 && len(codes) > limit {
		codes = codes[:limit]
	}
	return codes, nil
}

func (l *Links) filter(keep func(*model.Link) bool) []model.Link {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Link
	for _, link := range l.links {
		if keep(link) {
			out = append(out, *link)
		}
	}
	return out
}

func (l *Links) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]model.Link, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	out := l.filter(func(link *model.Link) bool { return link.Owner == owner })
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *Links) ListByCampaign(ctx context.Context, campaignCode string) ([]model.Link, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	out := l.filter(func(link *model.Link) bool {
		return link.CampaignCode != nil && *link.CampaignCode == campaignCode
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (l *Links) CountByOwnerSince(ctx context.Context, owner string, since time.Time) (int64, error) {
	if l.Err != nil {
		return 0, l.Err
	}
	out := l.filter(func(link *model.Link) bool {
		return link.Owner == owner && !link.CreatedAt.Before(since)
	})
	return int64(len(out)), nil
}

func (l *Links) Update(ctx context.Context, link *model.Link) error {
	if l.Err != nil {
		return l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	stored, ok := l.links[link.Code]
	if !ok {
		return repository.ErrLinkNotFound
	}
	stored.OriginalURL = link.OriginalURL
	stored.DecoratedURL = link.DecoratedURL
	stored.CampaignCode = link.CampaignCode
	stored.Status = link.Status
	stored.ExpiresAt = link.ExpiresAt
	stored.UpdatedAt = time.Now()
	*link = *stored
	return nil
}

func (l *Links) IncrementClicks(ctx context.Context, code string, now time.Time) (*model.Link, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	link, ok := l.links[code]
	if !ok || link.Status != model.LinkActive || (link.ExpiresAt != nil && link.ExpiresAt.Before(now)) {
		return nil, repository.ErrLinkNotLive
	}
	link.ClickCount++
	accessed := now
	link.LastAccessedAt = &accessed
	out := *link
	return &out, nil
}

func (l *Links) RevertClick(ctx context.Context, code string, clickedAt time.Time, previous *time.Time) error {
	if l.Err != nil {
		return l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	link, ok := l.links[code]
	if !ok || link.ClickCount == 0 || link.ClickCount <= link.UniqueVisitorCount {
		return nil
	}
	link.ClickCount--
	if link.LastAccessedAt != nil && link.LastAccessedAt.Equal(clickedAt) {
		link.LastAccessedAt = previous
	}
	return nil
}

func (l *Links) IncrementUniqueVisitors(ctx context.Context, code string) error {
	if l.Err != nil {
		return l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if link, ok := l.links[code]; ok && link.UniqueVisitorCount < link.ClickCount {
		link.UniqueVisitorCount++
	}
	return nil
}

func (l *Links) ResetStats(ctx context.Context, code string) error {
	if l.Err != nil {
		return l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	link, ok := l.links[code]
	if !ok {
		return repository.ErrLinkNotFound
	}
	link.ClickCount = 0
	link.UniqueVisitorCount = 0
	link.LastAccessedAt = nil
	return nil
}

func (l *Links) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]model.Link, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	out := l.filter(func(link *model.Link) bool {
		return link.Status == model.LinkActive && link.ExpiresAt != nil && link.ExpiresAt.Before(now)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *Links) MarkExpired(ctx context.Context, code string, now time.Time) (bool, error) {
	if l.Err != nil {
		return false, l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	link, ok := l.links[code]
	if !ok || link.Status != model.LinkActive || link.ExpiresAt == nil || !link.ExpiresAt.Before(now) {
		return false, nil
	}
	link.Status = model.LinkExpired
	return true, nil
}

// Clicks is an in-memory ClickEventRepository with monotonically increasing ids.
type Clicks struct {
	mu     sync.RWMutex
	events []model.ClickEvent
	nextID int64
	Err    error
}

func NewClicks() *Clicks {
	return &Clicks{}
}

var _ repository.ClickEventRepository = (*Clicks)(nil)

func (c *Clicks) Append(ctx context.Context, event *model.ClickEvent) (int64, error) {
	if c.Err != nil {
		return 0, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	event.ID = c.nextID
	c.events = append(c.events, *event)
	return event.ID, nil
}

func (c *Clicks) Query(ctx context.Context, q repository.ClickQuery) ([]model.ClickEvent, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []model.ClickEvent
	for i := len(c.events) - 1; i >= 0; i-- {
		e := c.events[i]
		if len(q.Codes) > 0 && !slices.Contains(q.Codes, e.LinkCode) {
			continue
		}
		if q.IP != "" && e.IPAddress != q.IP {
			continue
		}
		if q.BeforeID > 0 && e.ID >= q.BeforeID {
			continue
		}
		if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Len reports how many events were appended.
func (c *Clicks) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

// Campaigns is an in-memory CampaignRepository.
type Campaigns struct {
	mu        sync.RWMutex
	campaigns map[string]*model.Campaign
	Err       error
}

func NewCampaigns(seed ...model.Campaign) *Campaigns {
	c := &Campaigns{campaigns: make(map[string]*model.Campaign)}
	for i := range seed {
		campaign := seed[i]
		c.campaigns[campaign.Code] = &campaign
	}
	return c
}

var _ repository.CampaignRepository = (*Campaigns)(nil)

func (c *Campaigns) Exists(ctx context.Context, code string) (bool, error) {
	if c.Err != nil {
		return false, c.Err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.campaigns[code]
	return ok, nil
}

func (c *Campaigns) Insert(ctx context.Context, campaign *model.Campaign) (bool, error) {
	if c.Err != nil {
		return false, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.campaigns[campaign.Code]; ok {
		return false, nil
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = time.Now()
	}
	campaign.UpdatedAt = campaign.CreatedAt
	stored := *campaign
	c.campaigns[campaign.Code] = &stored
	return true, nil
}

func (c *Campaigns) GetByCode(ctx context.Context, code string) (*model.Campaign, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	campaign, ok := c.campaigns[code]
	if !ok {
		return nil, repository.ErrCampaignNotFound
	}
	out := *campaign
	return &out, nil
}

func (c *Campaigns) Update(ctx context.Context, campaign *model.Campaign) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, ok := c.campaigns[campaign.Code]
	if !ok {
		return repository.ErrCampaignNotFound
	}
	stored.Name = campaign.Name
	stored.Description = campaign.Description
	stored.BaseURL = campaign.BaseURL
	stored.Status = campaign.Status
	stored.UpdatedAt = time.Now()
	*campaign = *stored
	return nil
}

// Templates is an in-memory TemplateRepository.
type Templates struct {
	mu        sync.RWMutex
	templates map[string]*model.Template
	Err       error
}

func NewTemplates(seed ...model.Template) *Templates {
	t := &Templates{templates: make(map[string]*model.Template)}
	for i := range seed {
		tmpl := seed[i]
		t.templates[tmpl.Code] = &tmpl
	}
	return t
}

var _ repository.TemplateRepository = (*Templates)(nil)

func (t *Templates) Exists(ctx context.Context, code string) (bool, error) {
	if t.Err != nil {
		return false, t.Err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.templates[code]
	return ok, nil
}

func (t *Templates) Insert(ctx context.Context, tmpl *model.Template) (bool, error) {
	if t.Err != nil {
		return false, t.Err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.templates[tmpl.Code]; ok {
		return false, nil
	}
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = time.Now()
	}
	stored := *tmpl
	t.templates[tmpl.Code] = &stored
	return true, nil
}

func (t *Templates) GetByCode(ctx context.Context, code string) (*model.Template, error) {
	if t.Err != nil {
		return nil, t.Err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	tmpl, ok := t.templates[code]
	if !ok {
		return nil, repository.ErrTemplateNotFound
	}
	out := *tmpl
	return &out, nil
}

package model

import "time"

// LinkStatus is the stored lifecycle state of a short link.
type LinkStatus string

const (
	LinkActive   LinkStatus = "Active"
	LinkInactive LinkStatus = "Inactive"
	LinkExpired  LinkStatus = "Expired"
)

// Link describes the core short-link entity stored in Postgres.
type Link struct {
	Code               string     `db:"code" gorm:"primaryKey;size:32"`
	OriginalURL        string     `db:"original_url" gorm:"type:text;not null"`
	DecoratedURL       string     `db:"decorated_url" gorm:"type:text;not null"`
	CampaignCode       *string    `db:"campaign_code" gorm:"size:32;index"`
	CustomAlias        bool       `db:"custom_alias" gorm:"not null;default:false"`
	Status             LinkStatus `db:"status" gorm:"size:16;not null;default:Active;index"`
	ExpiresAt          *time.Time `db:"expires_at" gorm:"index"`
	ClickCount         int64      `db:"click_count" gorm:"not null;default:0"`
	UniqueVisitorCount int64      `db:"unique_visitor_count" gorm:"not null;default:0"`
	LastAccessedAt     *time.Time `db:"last_accessed_at"`
	Owner              string     `db:"owner" gorm:"size:128;not null;index:idx_links_owner_created,priority:1"`
	CreatedAt          time.Time  `db:"created_at" gorm:"autoCreateTime;index:idx_links_owner_created,priority:2"`
	UpdatedAt          time.Time  `db:"updated_at" gorm:"autoUpdateTime"`
}

// IsExpiredAt reports whether the link must be treated as expired at now,
// either by stored status or by a passed expiry.
func (l *Link) IsExpiredAt(now time.Time) bool {
	if l.Status == LinkExpired {
		return true
	}
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// EffectiveStatus folds a passed expiry into the stored status.
func (l *Link) EffectiveStatus(now time.Time) LinkStatus {
	if l.Status == LinkActive && l.IsExpiredAt(now) {
		return LinkExpired
	}
	return l.Status
}

// Target is the URL a visitor is redirected to.
func (l *Link) Target() string {
	if l.DecoratedURL != "" {
		return l.DecoratedURL
	}
	return l.OriginalURL
}

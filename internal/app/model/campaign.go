package model

import "time"

// CampaignStatus is the mutable state of a campaign.
type CampaignStatus string

const (
	CampaignActive   CampaignStatus = "Active"
	CampaignInactive CampaignStatus = "Inactive"
)

// Campaign groups UTM parameter values applied to one or more links.
// UTM fields are fixed once the campaign exists.
type Campaign struct {
	Code        string         `json:"code" gorm:"primaryKey;size:32"`
	Name        string         `json:"name" gorm:"size:140;not null"`
	Description string         `json:"description" gorm:"type:text"`
	BaseURL     string         `json:"base_url" gorm:"type:text"`
	Source      string         `json:"utm_source" gorm:"size:140;not null"`
	Medium      string         `json:"utm_medium" gorm:"size:140;not null"`
	CampaignTag string         `json:"utm_campaign" gorm:"size:140;not null"`
	Term        string         `json:"utm_term,omitempty" gorm:"size:140"`
	Content     string         `json:"utm_content,omitempty" gorm:"size:140"`
	Status      CampaignStatus `json:"status" gorm:"size:16;not null;default:Active"`
	Owner       string         `json:"owner" gorm:"size:128;not null;index"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// Template holds reusable UTM values; placeholders are expanded when a
// campaign is instantiated from it.
type Template struct {
	Code             string    `json:"code" gorm:"primaryKey;size:32"`
	Name             string    `json:"name" gorm:"size:140;not null"`
	Description      string    `json:"description" gorm:"type:text"`
	Source           string    `json:"utm_source" gorm:"size:140;not null"`
	Medium           string    `json:"utm_medium" gorm:"size:140;not null"`
	CampaignTemplate string    `json:"utm_campaign_template" gorm:"size:140;not null"`
	TermTemplate     string    `json:"utm_term_template,omitempty" gorm:"size:140"`
	ContentTemplate  string    `json:"utm_content_template,omitempty" gorm:"size:140"`
	Owner            string    `json:"owner" gorm:"size:128;not null;index"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}

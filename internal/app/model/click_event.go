package model

import "time"

// ClickEvent is one durable record of a redirect traversal. Rows are append-only.
type ClickEvent struct {
	ID              int64     `json:"id" db:"id" gorm:"primaryKey;autoIncrement"`
	LinkCode        string    `json:"link_code" db:"link_code" gorm:"size:32;not null;index:idx_clicks_code_id,priority:1;index:idx_clicks_code_ip,priority:1"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp" gorm:"not null;index"`
	IPAddress       string    `json:"ip_address" db:"ip_address" gorm:"size:64;index:idx_clicks_code_ip,priority:2"`
	UserAgent       string    `json:"user_agent" db:"user_agent" gorm:"type:text"`
	Referrer        string    `json:"referrer" db:"referrer" gorm:"type:text"`
	DeviceType      string    `json:"device_type" db:"device_type" gorm:"size:16"`
	Browser         string    `json:"browser" db:"browser" gorm:"size:32"`
	BrowserVersion  string    `json:"browser_version,omitempty" db:"browser_version" gorm:"size:32"`
	OperatingSystem string    `json:"operating_system" db:"operating_system" gorm:"size:32"`
	ReferrerSource  string    `json:"referrer_source" db:"referrer_source" gorm:"size:255"`
	Country         string    `json:"country" db:"country" gorm:"size:16;not null;default:Unknown"`
	Bot             bool      `json:"bot" db:"bot" gorm:"not null;default:false"`
}

// TableName pins the table name shared by GORM migrations and raw pgx queries.
func (ClickEvent) TableName() string { return "click_events" }

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.recorded"
	ClickConsumerName   = "unique-visitor"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)

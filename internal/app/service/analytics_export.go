package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sifan077/utmlink/internal/app/model"
	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary = "Summary"
	sheetDaily   = "Daily"
	sheetClicks  = "Recent Clicks"
)

// ExportLinkAnalytics renders the analytics of one link as an XLSX workbook.
func (s *linkService) ExportLinkAnalytics(ctx context.Context, code string, principal model.Principal) ([]byte, error) {
	analytics, err := s.GetLinkAnalytics(ctx, code, principal)
	if err != nil {
		return nil, err
	}
	return renderAnalyticsWorkbook(analytics)
}

func renderAnalyticsWorkbook(a *LinkAnalytics) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), sheetSummary); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := xl.NewSheet(sheetDaily); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if _, err := xl.NewSheet(sheetClicks); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	campaign := ""
	if a.Summary.CampaignCode != nil {
		campaign = *a.Summary.CampaignCode
	}
	summary := [][]string{
		{"code", a.Summary.Code},
		{"original_url", a.Summary.OriginalURL},
		{"decorated_url", a.Summary.DecoratedURL},
		{"campaign", campaign},
		{"status", string(a.Summary.Status)},
		{"created_at", a.Summary.CreatedAt.UTC().Format(time.RFC3339)},
		{"expires_at", formatOptionalTime(a.Summary.ExpiresAt)},
		{"last_accessed_at", formatOptionalTime(a.Summary.LastAccessedAt)},
		{"total_clicks", strconv.FormatInt(a.Summary.TotalClicks, 10)},
		{"unique_visitors", strconv.FormatInt(a.Summary.UniqueVisitors, 10)},
	}
	if err := writeRows(xl, sheetSummary, summary); err != nil {
		return nil, err
	}

	daily := [][]string{{"date", "device_type", "country", "browser", "clicks", "unique_visitors"}}
	for _, g := range a.DailyBreakdown {
		daily = append(daily, []string{
			g.Date, g.DeviceType, g.Country, g.Browser,
			strconv.FormatInt(g.Clicks, 10),
			strconv.FormatInt(g.UniqueVisitors, 10),
		})
	}
	if err := writeRows(xl, sheetDaily, daily); err != nil {
		return nil, err
	}

	clicks := [][]string{{"id", "timestamp", "ip", "device_type", "browser", "operating_system", "referrer_source", "country"}}
	for _, e := range a.RecentClicks {
		clicks = append(clicks, []string{
			strconv.FormatInt(e.ID, 10),
			e.Timestamp.UTC().Format(time.RFC3339),
			e.IPAddress,
			e.DeviceType,
			e.Browser,
			e.OperatingSystem,
			e.ReferrerSource,
			e.Country,
		})
	}
	if err := writeRows(xl, sheetClicks, clicks); err != nil {
		return nil, err
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(xl *excelize.File, sheet string, rows [][]string) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := xl.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

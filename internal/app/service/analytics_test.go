package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sifan077/utmlink/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLinkService_GetCampaignAnalytics(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, CreateLinkInput{OriginalURL: "https://ok.com/1", CampaignCode: "SPRING-AB12"}, alice)
	second := f.create(t, CreateLinkInput{OriginalURL: "https://ok.com/2", CampaignCode: "SPRING-AB12"}, alice)
	f.create(t, CreateLinkInput{OriginalURL: "https://ok.com/other"}, alice)

	visits := []struct {
		code, ip, referrer string
	}{
		{first.Code, "10.0.0.0", "https://www.facebook.com/"},
		{first.Code, "10.0.1.0", "https://www.google.com/search?q=x"},
		{second.Code, "10.0.0.0", ""},
		{second.Code, "10.0.2.0", "https://m.facebook.com/"},
	}
	for _, v := range visits {
		_, err := f.svc.Resolve(context.Background(), v.code, RequestMeta{IP: v.ip, Referrer: v.referrer})
		require.NoError(t, err)
	}

	got, err := f.svc.GetCampaignAnalytics(context.Background(), "SPRING-AB12", analyst)
	require.NoError(t, err)

	assert.Equal(t, 2, got.TotalLinks)
	assert.Equal(t, 2, got.ActiveLinks)
	assert.Equal(t, int64(4), got.AggregateClicks)
	assert.Equal(t, int64(4), got.AggregateUniqueVisitors)
	assert.Equal(t, []SourceCount{
		{Source: "Facebook", Clicks: 2},
		{Source: "Direct", Clicks: 1},
		{Source: "Google Search", Clicks: 1},
	}, got.SourceBreakdown)

	var sum int64
	for _, s := range got.SourceBreakdown {
		sum += s.Clicks
	}
	assert.Equal(t, got.AggregateClicks, sum)
}

func TestLinkService_GetCampaignAnalytics_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetCampaignAnalytics(context.Background(), "SPRING-AB12", bob)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.GetCampaignAnalytics(context.Background(), "NOPE-0000", alice)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.svc.GetCampaignAnalytics(context.Background(), "SPRING-AB12", alice)
	require.NoError(t, err)
	assert.Zero(t, got.TotalLinks)
	assert.Empty(t, got.SourceBreakdown)
}

func TestLinkService_GetLinkAnalytics(t *testing.T) {
	f := newFixture(t)
	link := f.create(t, CreateLinkInput{OriginalURL: "https://ok.com"}, alice)

	for _, ip := range []string{"1.1.1.0", "2.2.2.0"} {
		_, err := f.svc.Resolve(context.Background(), link.Code, RequestMeta{IP: ip, UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0"})
		require.NoError(t, err)
	}
	f.clock.Advance(24 * time.Hour)
	_, err := f.svc.Resolve(context.Background(), link.Code, RequestMeta{IP: "1.1.1.0", UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0"})
	require.NoError(t, err)

	got, err := f.svc.GetLinkAnalytics(context.Background(), link.Code, alice)
	require.NoError(t, err)

	assert.Equal(t, int64(3), got.Summary.TotalClicks)
	assert.Equal(t, int64(2), got.Summary.UniqueVisitors)
	require.Len(t, got.RecentClicks, 3)
	assert.Greater(t, got.RecentClicks[0].ID, got.RecentClicks[2].ID)

	require.Len(t, got.DailyBreakdown, 2)
	assert.Equal(t, "2024-06-02", got.DailyBreakdown[0].Date)
	assert.Equal(t, int64(1), got.DailyBreakdown[0].Clicks)
	assert.Equal(t, "2024-06-01", got.DailyBreakdown[1].Date)
	assert.Equal(t, int64(2), got.DailyBreakdown[1].Clicks)
	assert.Equal(t, int64(2), got.DailyBreakdown[1].UniqueVisitors)

	_, err = f.svc.GetLinkAnalytics(context.Background(), link.Code, bob)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDailyBreakdown_OrderAndLimit(t *testing.T) {
	day := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	events := []model.ClickEvent{
		{Timestamp: day, DeviceType: "Mobile", Country: "US", Browser: "Safari", IPAddress: "a"},
		{Timestamp: day, DeviceType: "Desktop", Country: "US", Browser: "Chrome", IPAddress: "a"},
		{Timestamp: day, DeviceType: "Desktop", Country: "US", Browser: "Chrome", IPAddress: "b"},
		{Timestamp: day, DeviceType: "Desktop", Country: "DE", Browser: "Chrome"},
		{Timestamp: day.AddDate(0, 0, 1), DeviceType: "Tablet", Country: "FR", Browser: "Firefox", IPAddress: "c"},
	}

	got := dailyBreakdown(events, 30)
	require.Len(t, got, 4)
	assert.Equal(t, DailyGroup{Date: "2024-06-02", DeviceType: "Tablet", Country: "FR", Browser: "Firefox", Clicks: 1, UniqueVisitors: 1}, got[0])
	assert.Equal(t, DailyGroup{Date: "2024-06-01", DeviceType: "Desktop", Country: "US", Browser: "Chrome", Clicks: 2, UniqueVisitors: 2}, got[1])
	assert.Equal(t, "DE", got[2].Country)
	assert.Zero(t, got[2].UniqueVisitors)
	assert.Equal(t, "Mobile", got[3].DeviceType)

	assert.Len(t, dailyBreakdown(events, 2), 2)
}

func TestLinkService_ExportLinkAnalytics(t *testing.T) {
	f := newFixture(t)
	link := f.create(t, CreateLinkInput{OriginalURL: "https://ok.com", CampaignCode: "SPRING-AB12"}, alice)
	_, err := f.svc.Resolve(context.Background(), link.Code, RequestMeta{IP: "1.1.1.0", Country: "US"})
	require.NoError(t, err)

	data, err := f.svc.ExportLinkAnalytics(context.Background(), link.Code, alice)
	require.NoError(t, err)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer xl.Close()

	assert.Equal(t, []string{"Summary", "Daily", "Recent Clicks"}, xl.GetSheetList())

	code, err := xl.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, link.Code, code)

	rows, err := xl.GetRows("Recent Clicks")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "US", rows[1][7])

	_, err = f.svc.ExportLinkAnalytics(context.Background(), link.Code, bob)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

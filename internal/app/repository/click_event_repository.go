package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sifan077/utmlink/internal/app/model"
)

// ClickQuery filters the click log. Zero values disable a filter; Limit 0
// returns every match.
type ClickQuery struct {
	Codes    []string
	IP       string
	BeforeID int64
	Since    time.Time
	Limit    int
}

// ClickEventRepository defines the data access contract for the append-only click log.
type ClickEventRepository interface {
	Append(ctx context.Context, event *model.ClickEvent) (int64, error)
	// Query returns matching events newest first.
	Query(ctx context.Context, q ClickQuery) ([]model.ClickEvent, error)
}

type clickEventRepository struct {
	pool *pgxpool.Pool
}

// NewClickEventRepository returns a pgx-backed ClickEventRepository.
func NewClickEventRepository(pool *pgxpool.Pool) ClickEventRepository {
	return &clickEventRepository{pool: pool}
}

const clickColumns = `id, link_code, timestamp, ip_address, user_agent, referrer, device_type,
	browser, browser_version, operating_system, referrer_source, country, bot`

func (r *clickEventRepository) Append(ctx context.Context, event *model.ClickEvent) (int64, error) {
	const stmt = `INSERT INTO click_events
		(link_code, timestamp, ip_address, user_agent, referrer, device_type,
		 browser, browser_version, operating_system, referrer_source, country, bot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	err := r.pool.QueryRow(ctx, stmt,
		event.LinkCode,
		event.Timestamp,
		event.IPAddress,
		event.UserAgent,
		event.Referrer,
		event.DeviceType,
		event.Browser,
		event.BrowserVersion,
		event.OperatingSystem,
		event.ReferrerSource,
		event.Country,
		event.Bot,
	).Scan(&event.ID)
	if err != nil {
		return 0, fmt.Errorf("insert click event: %w", err)
	}
	return event.ID, nil
}

func (r *clickEventRepository) Query(ctx context.Context, q ClickQuery) ([]model.ClickEvent, error) {
	sql, args := buildClickQuery(q)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query click events: %w", err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.ClickEvent])
	if err != nil {
		return nil, fmt.Errorf("scan click events: %w", err)
	}
	return events, nil
}

func buildClickQuery(q ClickQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.Codes) > 0 {
		where = append(where, "link_code = ANY("+arg(q.Codes)+")")
	}
	if q.IP != "" {
		where = append(where, "ip_address = "+arg(q.IP))
	}
	if q.BeforeID > 0 {
		where = append(where, "id < "+arg(q.BeforeID))
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp >= "+arg(q.Since))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(clickColumns)
	b.WriteString(" FROM click_events")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY id DESC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(arg(q.Limit))
	}
	return b.String(), args
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sifan077/utmlink/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrLinkNotLive signals that a conditional click update matched no active, unexpired row.
	ErrLinkNotLive = errors.New("link not live")
)

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	Exists(ctx context.Context, code string) (bool, error)
	// Insert stores link unless its code is taken; false reports a collision.
	Insert(ctx context.Context, link *model.Link) (bool, error)
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	ListCodes(ctx context.Context, afterCode string, limit int) ([]string, error)
	ListByOwner(ctx context.Context, owner string, limit, offset int) ([]model.Link, error)
	ListByCampaign(ctx context.Context, campaignCode string) ([]model.Link, error)
	CountByOwnerSince(ctx context.Context, owner string, since time.Time) (int64, error)
	Update(ctx context.Context, link *model.Link) error
	// IncrementClicks bumps click_count and last_accessed_at in one statement,
	// matching only an active row whose expiry has not passed.
	IncrementClicks(ctx context.Context, code string, now time.Time) (*model.Link, error)
	// RevertClick undoes an IncrementClicks made at clickedAt whose click event
	// could not be stored, restoring last_accessed_at when nothing touched it since.
	RevertClick(ctx context.Context, code string, clickedAt time.Time, previous *time.Time) error
	// IncrementUniqueVisitors never lifts the unique count above click_count.
	IncrementUniqueVisitors(ctx context.Context, code string) error
	ResetStats(ctx context.Context, code string) error
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]model.Link, error)
	// MarkExpired flips an active, past-expiry link to Expired; false when nothing changed.
	MarkExpired(ctx context.Context, code string, now time.Time) (bool, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Exists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Link{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *linkRepository) Insert(ctx context.Context, link *model.Link) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(link)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *linkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) ListCodes(ctx context.Context, afterCode string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}

	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code > ?", afterCode).
		Order("code ASC").
		Limit(limit).
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *linkRepository) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *linkRepository) ListByCampaign(ctx context.Context, campaignCode string) ([]model.Link, error) {
	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where("campaign_code = ?", campaignCode).
		Order("created_at ASC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *linkRepository) CountByOwnerSince(ctx context.Context, owner string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("owner = ? AND created_at >= ?", owner, since).
		Count(&count).Error
	return count, err
}

func (r *linkRepository) Update(ctx context.Context, link *model.Link) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code = ?", link.Code).
		Updates(map[string]interface{}{
			"original_url":  link.OriginalURL,
			"decorated_url": link.DecoratedURL,
			"campaign_code": link.CampaignCode,
			"status":        link.Status,
			"expires_at":    link.ExpiresAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}

	return r.db.WithContext(ctx).Where("code = ?", link.Code).First(link).Error
}

func (r *linkRepository) IncrementClicks(ctx context.Context, code string, now time.Time) (*model.Link, error) {
	var updated []model.Link
	result := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("code = ? AND status = ? AND (expires_at IS NULL OR expires_at >= ?)", code, model.LinkActive, now).
		Updates(map[string]interface{}{
			"click_count":      gorm.Expr("click_count + 1"),
			"last_accessed_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 || len(updated) == 0 {
		return nil, ErrLinkNotLive
	}
	return &updated[0], nil
}

func (r *linkRepository) RevertClick(ctx context.Context, code string, clickedAt time.Time, previous *time.Time) error {
	restored := gorm.Expr("CASE WHEN last_accessed_at = ? THEN ? ELSE last_accessed_at END", clickedAt, previous)
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code = ? AND click_count > 0 AND click_count > unique_visitor_count", code).
		Updates(map[string]interface{}{
			"click_count":      gorm.Expr("click_count - 1"),
			"last_accessed_at": restored,
		})
	return result.Error
}

func (r *linkRepository) IncrementUniqueVisitors(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code = ? AND unique_visitor_count < click_count", code).
		UpdateColumn("unique_visitor_count", gorm.Expr("unique_visitor_count + 1"))
	return result.Error
}

func (r *linkRepository) ResetStats(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"click_count":          0,
			"unique_visitor_count": 0,
			"last_accessed_at":     nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 500
	}

	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", model.LinkActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *linkRepository) MarkExpired(ctx context.Context, code string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code = ? AND status = ? AND expires_at < ?", code, model.LinkActive, now).
		Update("status", model.LinkExpired)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

package repository

import (
	"context"
	"errors"

	"github.com/sifan077/utmlink/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrTemplateNotFound = errors.New("template not found")
)

// CampaignRepository defines the data access contract for UTM campaigns.
type CampaignRepository interface {
	Exists(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, campaign *model.Campaign) (bool, error)
	GetByCode(ctx context.Context, code string) (*model.Campaign, error)
	// Update persists descriptive fields and status only.
	Update(ctx context.Context, campaign *model.Campaign) error
}

// TemplateRepository defines the data access contract for UTM templates.
type TemplateRepository interface {
	Exists(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, tmpl *model.Template) (bool, error)
	GetByCode(ctx context.Context, code string) (*model.Template, error)
}

type campaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository returns a GORM-backed CampaignRepository.
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

func (r *campaignRepository) Exists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Campaign{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *campaignRepository) Insert(ctx context.Context, campaign *model.Campaign) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(campaign)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *campaignRepository) GetByCode(ctx context.Context, code string) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return &campaign, nil
}

func (r *campaignRepository) Update(ctx context.Context, campaign *model.Campaign) error {
	result := r.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("code = ?", campaign.Code).
		Updates(map[string]interface{}{
			"name":        campaign.Name,
			"description": campaign.Description,
			"base_url":    campaign.BaseURL,
			"status":      campaign.Status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return r.db.WithContext(ctx).Where("code = ?", campaign.Code).First(campaign).Error
}

type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository returns a GORM-backed TemplateRepository.
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Exists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Template{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *templateRepository) Insert(ctx context.Context, tmpl *model.Template) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(tmpl)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *templateRepository) GetByCode(ctx context.Context, code string) (*model.Template, error) {
	var tmpl model.Template
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&tmpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &tmpl, nil
}

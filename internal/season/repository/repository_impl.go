package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	seasondomain "github.com/duesflow/duesflow/internal/season/domain"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) seasondomain.Repository {
	return &repository{db: db}
}

func (r *repository) InsertSeason(ctx context.Context, season *seasondomain.Season) error {
	return r.db.WithContext(ctx).Create(season).Error
}

func (r *repository) FindSeasonByID(ctx context.Context, id snowflake.ID) (*seasondomain.Season, error) {
	var season seasondomain.Season
	err := r.db.WithContext(ctx).First(&season, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &season, nil
}

func (r *repository) FindSeasonBySlug(ctx context.Context, slug string) (*seasondomain.Season, error) {
	var season seasondomain.Season
	err := r.db.WithContext(ctx).First(&season, "slug = ?", slug).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &season, nil
}

func (r *repository) ListSeasons(ctx context.Context) ([]seasondomain.Season, error) {
	var seasons []seasondomain.Season
	err := r.db.WithContext(ctx).
		Order("starts_on DESC").
		Find(&seasons).Error
	return seasons, err
}

func (r *repository) InsertCategory(ctx context.Context, category *seasondomain.RegistrationCategory) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *repository) FindCategoryByID(ctx context.Context, id snowflake.ID) (*seasondomain.RegistrationCategory, error) {
	var category seasondomain.RegistrationCategory
	err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

func (r *repository) ListCategories(ctx context.Context, seasonID snowflake.ID) ([]seasondomain.RegistrationCategory, error) {
	var categories []seasondomain.RegistrationCategory
	err := r.db.WithContext(ctx).
		Where("season_id = ?", seasonID).
		Order("name ASC").
		Find(&categories).Error
	return categories, err
}

func (r *repository) CurrencyActive(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM currencies WHERE code = ? AND is_active = ?`,
		code, true,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

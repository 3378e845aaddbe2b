package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	registrationdomain "github.com/duesflow/duesflow/internal/registration/domain"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) registrationdomain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, registration *registrationdomain.Registration) error {
	return r.db.WithContext(ctx).Create(registration).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*registrationdomain.Registration, error) {
	var registration registrationdomain.Registration
	err := r.db.WithContext(ctx).First(&registration, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &registration, nil
}

func (r *repository) FindActive(ctx context.Context, memberID, seasonID, categoryID snowflake.ID) (*registrationdomain.Registration, error) {
	var registration registrationdomain.Registration
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND season_id = ? AND category_id = ? AND status <> ?",
			memberID, seasonID, categoryID, registrationdomain.StatusCanceled).
		First(&registration).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &registration, nil
}

func (r *repository) ListByMember(ctx context.Context, memberID snowflake.ID) ([]registrationdomain.Registration, error) {
	var registrations []registrationdomain.Registration
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at DESC").
		Find(&registrations).Error
	return registrations, err
}

func (r *repository) UpdateStatus(ctx context.Context, id snowflake.ID, status string) error {
	return r.db.WithContext(ctx).
		Model(&registrationdomain.Registration{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) MemberExists(ctx context.Context, memberID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM members WHERE id = ?`,
		memberID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CategorySeason(ctx context.Context, categoryID snowflake.ID) (snowflake.ID, error) {
	var seasonID snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT season_id FROM registration_categories WHERE id = ?`,
		categoryID,
	).Scan(&seasonID).Error
	if err != nil {
		return 0, err
	}
	return seasonID, nil
}

package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	discountdomain "github.com/duesflow/duesflow/internal/discount/domain"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) discountdomain.Repository {
	return &repository{db: db}
}

func (r *repository) InsertCategory(ctx context.Context, category *discountdomain.DiscountCategory) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *repository) FindCategoryByID(ctx context.Context, id snowflake.ID) (*discountdomain.DiscountCategory, error) {
	var category discountdomain.DiscountCategory
	err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

func (r *repository) FindCategoryByName(ctx context.Context, name string) (*discountdomain.DiscountCategory, error) {
	var category discountdomain.DiscountCategory
	err := r.db.WithContext(ctx).First(&category, "name = ?", name).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

func (r *repository) ListCategories(ctx context.Context) ([]discountdomain.DiscountCategory, error) {
	var categories []discountdomain.DiscountCategory
	err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}

func (r *repository) InsertCode(ctx context.Context, code *discountdomain.DiscountCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *repository) FindCodeByID(ctx context.Context, id snowflake.ID) (*discountdomain.DiscountCode, error) {
	var code discountdomain.DiscountCode
	err := r.db.WithContext(ctx).First(&code, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

func (r *repository) FindCodeByCode(ctx context.Context, value string) (*discountdomain.DiscountCode, error) {
	var code discountdomain.DiscountCode
	err := r.db.WithContext(ctx).First(&code, "code = ?", value).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

func (r *repository) ListCodes(ctx context.Context, categoryID snowflake.ID) ([]discountdomain.DiscountCode, error) {
	var codes []discountdomain.DiscountCode
	err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("code ASC").
		Find(&codes).Error
	return codes, err
}

func (r *repository) SetCodeActive(ctx context.Context, id snowflake.ID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&discountdomain.DiscountCode{}).
		Where("id = ?", id).
		Update("active", active).Error
}

package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrCategoryNotFound  = errors.New("discount_category_not_found")
	ErrCodeNotFound      = errors.New("discount_code_not_found")
	ErrInvalidPercent    = errors.New("invalid_percent")
	ErrDuplicateCode     = errors.New("duplicate_code")
	ErrDuplicateCategory = errors.New("duplicate_category")
)

type CreateCategoryRequest struct {
	Name             string `json:"name" binding:"required"`
	SeasonalCapCents *int64 `json:"seasonal_cap_cents"`
	AccountingCode   string `json:"accounting_code"`
}

type CreateCodeRequest struct {
	CategoryID snowflake.ID `json:"category_id" binding:"required"`
	Code       string       `json:"code" binding:"required"`
	Percent    int          `json:"percent" binding:"required"`
	UsageLimit *int         `json:"usage_limit"`
}

type Service interface {
	CreateCategory(ctx context.Context, req CreateCategoryRequest) (*DiscountCategory, error)
	GetCategory(ctx context.Context, id snowflake.ID) (*DiscountCategory, error)
	ListCategories(ctx context.Context) ([]DiscountCategory, error)

	CreateCode(ctx context.Context, req CreateCodeRequest) (*DiscountCode, error)
	GetCode(ctx context.Context, id snowflake.ID) (*DiscountCode, error)
	GetCodeByCode(ctx context.Context, code string) (*DiscountCode, error)
	ListCodes(ctx context.Context, categoryID snowflake.ID) ([]DiscountCode, error)
	DeactivateCode(ctx context.Context, id snowflake.ID) error
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	InsertCategory(ctx context.Context, category *DiscountCategory) error
	FindCategoryByID(ctx context.Context, id snowflake.ID) (*DiscountCategory, error)
	FindCategoryByName(ctx context.Context, name string) (*DiscountCategory, error)
	ListCategories(ctx context.Context) ([]DiscountCategory, error)

	InsertCode(ctx context.Context, code *DiscountCode) error
	FindCodeByID(ctx context.Context, id snowflake.ID) (*DiscountCode, error)
	FindCodeByCode(ctx context.Context, code string) (*DiscountCode, error)
	ListCodes(ctx context.Context, categoryID snowflake.ID) ([]DiscountCode, error)
	SetCodeActive(ctx context.Context, id snowflake.ID, active bool) error
}

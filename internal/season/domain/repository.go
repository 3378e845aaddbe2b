package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	InsertSeason(ctx context.Context, season *Season) error
	FindSeasonByID(ctx context.Context, id snowflake.ID) (*Season, error)
	FindSeasonBySlug(ctx context.Context, slug string) (*Season, error)
	ListSeasons(ctx context.Context) ([]Season, error)

	InsertCategory(ctx context.Context, category *RegistrationCategory) error
	FindCategoryByID(ctx context.Context, id snowflake.ID) (*RegistrationCategory, error)
	ListCategories(ctx context.Context, seasonID snowflake.ID) ([]RegistrationCategory, error)

	CurrencyActive(ctx context.Context, code string) (bool, error)
}

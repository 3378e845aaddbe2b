package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrSeasonNotFound     = errors.New("season_not_found")
	ErrCategoryNotFound   = errors.New("category_not_found")
	ErrInvalidSeasonDates = errors.New("invalid_season_dates")
	ErrInvalidBasePrice   = errors.New("invalid_base_price")
	ErrInvalidCurrency    = errors.New("invalid_currency")
	ErrSlugTaken          = errors.New("slug_taken")
)

type CreateSeasonRequest struct {
	Name     string    `json:"name" binding:"required"`
	StartsOn time.Time `json:"starts_on" binding:"required"`
	EndsOn   time.Time `json:"ends_on" binding:"required"`
}

type AddCategoryRequest struct {
	SeasonID       snowflake.ID
	Name           string `json:"name" binding:"required"`
	BasePriceCents int64  `json:"base_price_cents"`
	Currency       string `json:"currency"`
	AccountingCode string `json:"accounting_code"`
}

type Service interface {
	Create(ctx context.Context, req CreateSeasonRequest) (*Season, error)
	Get(ctx context.Context, id snowflake.ID) (*Season, error)
	GetBySlug(ctx context.Context, slug string) (*Season, error)
	List(ctx context.Context) ([]Season, error)

	AddCategory(ctx context.Context, req AddCategoryRequest) (*RegistrationCategory, error)
	GetCategory(ctx context.Context, id snowflake.ID) (*RegistrationCategory, error)
	ListCategories(ctx context.Context, seasonID snowflake.ID) ([]RegistrationCategory, error)
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"

	"github.com/duesflow/duesflow/pkg/db/pagination"
)

type ListFilter struct {
	Email   string
	Search  string
	SortBy  string
	OrderBy string
}

type Repository interface {
	Insert(ctx context.Context, member *Member) error
	FindByID(ctx context.Context, id snowflake.ID) (*Member, error)
	FindByEmail(ctx context.Context, email string) (*Member, error)
	Update(ctx context.Context, member *Member) error
	List(ctx context.Context, filter ListFilter, page pagination.Pagination) ([]*Member, error)
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Insert(ctx context.Context, registration *Registration) error
	FindByID(ctx context.Context, id snowflake.ID) (*Registration, error)
	FindActive(ctx context.Context, memberID, seasonID, categoryID snowflake.ID) (*Registration, error)
	ListByMember(ctx context.Context, memberID snowflake.ID) ([]Registration, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status string) error

	MemberExists(ctx context.Context, memberID snowflake.ID) (bool, error)
	CategorySeason(ctx context.Context, categoryID snowflake.ID) (snowflake.ID, error)
}

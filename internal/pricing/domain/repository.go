package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	GetCategory(ctx context.Context, id snowflake.ID) (*CategoryRow, error)
	GetDiscountCode(ctx context.Context, id snowflake.ID) (*CodeRow, error)

	// CodeUsageCount counts the member's completed charges that consumed the
	// code, across all seasons.
	CodeUsageCount(ctx context.Context, memberID, codeID snowflake.ID) (int64, error)

	// SeasonalDiscountTotal sums the discount the member already received
	// from the category within the season, over completed charges only.
	SeasonalDiscountTotal(ctx context.Context, memberID, categoryID, seasonID snowflake.ID) (int64, error)
}

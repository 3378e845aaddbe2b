package domain

import (
	"context"
	"errors"
)

var (
	ErrCategoryNotFound     = errors.New("pricing_category_not_found")
	ErrCategoryNotBillable  = errors.New("category_not_billable")
	ErrInvalidOverridePrice = errors.New("override_price_out_of_range")
)

type Service interface {
	// Quote computes the charge breakdown for one prospective purchase. A
	// discount code that cannot be resolved is ignored rather than failing
	// the quote; a missing category is a hard error.
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
}

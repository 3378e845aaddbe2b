// Package domain contains the charge pricing contracts.
package domain

import (
	"github.com/bwmarrin/snowflake"
)

// QuoteRequest identifies one prospective charge. The override price, when
// present, replaces the category base price and must stay within it.
type QuoteRequest struct {
	MemberID       snowflake.ID  `json:"member_id"`
	SeasonID       snowflake.ID  `json:"season_id"`
	CategoryID     snowflake.ID  `json:"category_id"`
	DiscountCodeID *snowflake.ID `json:"discount_code_id,omitempty"`
	OverridePrice  *int64        `json:"override_price,omitempty"`
}

// Quote is the computed charge breakdown. Producing one reads the usage
// ledger but never writes.
type Quote struct {
	MemberID     snowflake.ID `json:"member_id"`
	SeasonID     snowflake.ID `json:"season_id"`
	CategoryID   snowflake.ID `json:"category_id"`
	CategoryName string       `json:"category_name"`

	BasePrice     int64  `json:"base_price"`
	EffectiveBase int64  `json:"effective_base"`
	Currency      string `json:"currency"`

	RegistrationAccountingCode string `json:"registration_accounting_code"`

	DiscountCodeID         *snowflake.ID `json:"discount_code_id,omitempty"`
	DiscountCode           string        `json:"discount_code,omitempty"`
	DiscountPercent        int           `json:"discount_percent,omitempty"`
	DiscountAccountingCode string        `json:"discount_accounting_code,omitempty"`

	RequestedDiscount int64 `json:"requested_discount"`
	AppliedDiscount   int64 `json:"applied_discount"`
	Partial           bool  `json:"partial"`
	LimitExhausted    bool  `json:"limit_exhausted"`

	FinalAmount int64 `json:"final_amount"`
	Free        bool  `json:"free"`
}

// CategoryRow is the pricing view of a registration category.
type CategoryRow struct {
	ID             snowflake.ID
	SeasonID       snowflake.ID
	Name           string
	BasePriceCents int64
	Currency       string
	AccountingCode string
}

// CodeRow is the pricing view of a discount code joined with its category.
type CodeRow struct {
	ID               snowflake.ID
	CategoryID       snowflake.ID
	Code             string
	Percent          int
	UsageLimit       *int
	Active           bool
	CategoryName     string
	SeasonalCapCents *int64
	AccountingCode   string
}

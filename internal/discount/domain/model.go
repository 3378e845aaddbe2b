// Package domain contains discount code and category models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DiscountCategory groups codes under one seasonal cap. SeasonalCapCents is
// the most a single member may be discounted by this category within one
// season, across all of its codes; nil means uncapped. AccountingCode labels
// discount line items in the staging ledger and must be set before any code
// in the category is used.
type DiscountCategory struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	Name             string       `json:"name" gorm:"type:text;not null;uniqueIndex"`
	SeasonalCapCents *int64       `json:"seasonal_cap_cents,omitempty"`
	AccountingCode   string       `json:"accounting_code" gorm:"type:text;not null;default:''"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (DiscountCategory) TableName() string { return "discount_categories" }

// DiscountCode applies a percentage off the effective base price.
// UsageLimit bounds successful uses per member; nil means unlimited.
type DiscountCode struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	CategoryID snowflake.ID `json:"category_id" gorm:"not null;index"`
	Code       string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Percent    int          `json:"percent" gorm:"not null"`
	UsageLimit *int         `json:"usage_limit,omitempty"`
	Active     bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (DiscountCode) TableName() string { return "discount_codes" }

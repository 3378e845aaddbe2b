// Package domain contains season and registration category models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Season is a membership period. All discount caps and usage projections are
// scoped to one season.
type Season struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Slug      string       `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	StartsOn  time.Time    `json:"starts_on" gorm:"not null"`
	EndsOn    time.Time    `json:"ends_on" gorm:"not null"`
	Active    bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Season) TableName() string { return "seasons" }

// RegistrationCategory prices one kind of membership within a season.
// BasePriceCents is in minor currency units. AccountingCode labels the
// registration line item posted to the staging ledger.
type RegistrationCategory struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	SeasonID       snowflake.ID `json:"season_id" gorm:"not null;index"`
	Name           string       `json:"name" gorm:"type:text;not null"`
	BasePriceCents int64        `json:"base_price_cents" gorm:"not null"`
	Currency       string       `json:"currency" gorm:"type:text;not null;default:USD"`
	AccountingCode string       `json:"accounting_code" gorm:"type:text;not null;default:''"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (RegistrationCategory) TableName() string { return "registration_categories" }

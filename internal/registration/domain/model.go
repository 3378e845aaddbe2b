// Package domain contains the registration model and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
)

// Registration ties a member to a priced category within a season. It is
// created pending and confirmed once the registration fee is charged or a
// payment plan is opened for it.
type Registration struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	MemberID   snowflake.ID `json:"member_id" gorm:"not null;index"`
	SeasonID   snowflake.ID `json:"season_id" gorm:"not null;index"`
	CategoryID snowflake.ID `json:"category_id" gorm:"not null"`
	Status     string       `json:"status" gorm:"type:text;not null;default:pending"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Registration) TableName() string { return "registrations" }

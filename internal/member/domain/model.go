// Package domain contains the member model and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Member is a club member who can register for seasons and be charged.
// InstrumentRef holds the vault-sealed gateway payment-method reference;
// it never leaves the process in plaintext.
type Member struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey"`
	Email              string       `json:"email" gorm:"type:text;not null;uniqueIndex"`
	FullName           string       `json:"full_name" gorm:"type:text;not null"`
	GatewayCustomerID  *string      `json:"gateway_customer_id,omitempty" gorm:"type:text"`
	InstrumentRef      *string      `json:"-" gorm:"type:text"`
	InstrumentVerified bool         `json:"instrument_verified" gorm:"not null;default:false"`
	InstrumentBrand    *string      `json:"instrument_brand,omitempty" gorm:"type:text"`
	InstrumentLast4    *string      `json:"instrument_last4,omitempty" gorm:"type:text"`
	CreatedAt          time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Member) TableName() string { return "members" }

package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Line item kinds. A record carries one registration line plus at most one
// discount line; the discount line amount is negative.
const (
	LineKindRegistration = "registration"
	LineKindDiscount     = "discount"
)

// StagingRecord is the durable intent-to-charge row. It is written before any
// gateway call so that a crash between the gateway and the payment row leaves
// a reconcilable trail instead of an untracked charge.
type StagingRecord struct {
	ID                snowflake.ID  `json:"id" gorm:"primaryKey"`
	Reference         string        `json:"reference" gorm:"uniqueIndex;not null"`
	MemberID          snowflake.ID  `json:"member_id" gorm:"index;not null"`
	SeasonID          snowflake.ID  `json:"season_id" gorm:"index;not null"`
	RegistrationID    *snowflake.ID `json:"registration_id,omitempty"`
	PlanInstallmentID *snowflake.ID `json:"plan_installment_id,omitempty"`

	TotalAmount    int64  `json:"total_amount" gorm:"not null"`
	DiscountAmount int64  `json:"discount_amount" gorm:"not null;default:0"`
	FinalAmount    int64  `json:"final_amount" gorm:"not null"`
	Currency       string `json:"currency" gorm:"not null;default:USD"`
	Free           bool   `json:"free" gorm:"not null;default:false"`

	// GatewayTransactionID and PaymentID are the only fields mutated after
	// insert, each exactly once.
	GatewayTransactionID *string       `json:"gateway_transaction_id,omitempty" gorm:"index"`
	PaymentID            *snowflake.ID `json:"payment_id,omitempty" gorm:"index"`

	Metadata  datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	LineItems []StagingLineItem `json:"line_items,omitempty" gorm:"foreignKey:StagingRecordID"`
}

func (StagingRecord) TableName() string {
	return "staging_records"
}

// StagingLineItem is one accounting line of a staging record. Discount lines
// carry a negative amount and must resolve an accounting code.
type StagingLineItem struct {
	ID              snowflake.ID  `json:"id" gorm:"primaryKey"`
	StagingRecordID snowflake.ID  `json:"staging_record_id" gorm:"index;not null"`
	Kind            string        `json:"kind" gorm:"not null"`
	Description     string        `json:"description" gorm:"not null"`
	Amount          int64         `json:"amount" gorm:"not null"`
	AccountingCode  string        `json:"accounting_code" gorm:"not null"`
	DiscountCodeID  *snowflake.ID `json:"discount_code_id,omitempty" gorm:"index"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (StagingLineItem) TableName() string {
	return "staging_line_items"
}

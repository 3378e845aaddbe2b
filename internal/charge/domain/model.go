package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Payment is the money-movement record. Exactly one staging record precedes
// it; the staging record's payment_id back-reference is only set once the
// payment reached a terminal or pending-confirmed state.
type Payment struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	MemberID        snowflake.ID `json:"member_id" gorm:"index;not null"`
	StagingRecordID snowflake.ID `json:"staging_record_id" gorm:"index;not null"`

	Amount   int64  `json:"amount" gorm:"not null"`
	Currency string `json:"currency" gorm:"not null"`
	Status   string `json:"status" gorm:"not null"`

	GatewayTransactionID *string `json:"gateway_transaction_id,omitempty" gorm:"index"`
	FailureCode          *string `json:"failure_code,omitempty"`
	FailureMessage       *string `json:"failure_message,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// GatewayEventRecord stores each processed webhook delivery. The
// (provider, event_id) unique pair makes redelivered events no-ops.
type GatewayEventRecord struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider    string         `json:"provider" gorm:"uniqueIndex:uniq_gateway_event;not null"`
	EventID     string         `json:"event_id" gorm:"uniqueIndex:uniq_gateway_event;not null"`
	EventType   string         `json:"event_type" gorm:"not null"`
	Payload     datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`
	ProcessedAt time.Time      `json:"processed_at"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (GatewayEventRecord) TableName() string {
	return "gateway_event_records"
}

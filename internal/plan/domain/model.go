package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Plan statuses. Failed is part of the closed status set but is never set by
// the run engine; an exhausted installment leaves its plan active with a
// stuck installment that the attention listing surfaces for operators.
const (
	PlanStatusActive    = "active"
	PlanStatusCompleted = "completed"
	PlanStatusFailed    = "failed"
)

// Installment statuses. Failed is terminal and only reached when the attempt
// budget is exhausted; a failed attempt below the budget returns the
// installment to planned.
const (
	InstallmentStatusPlanned   = "planned"
	InstallmentStatusSucceeded = "succeeded"
	InstallmentStatusFailed    = "failed"
)

type PaymentPlan struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	MemberID          snowflake.ID `json:"member_id" gorm:"index;not null"`
	RegistrationID    snowflake.ID `json:"registration_id" gorm:"not null"`
	SeasonID          snowflake.ID `json:"season_id" gorm:"not null"`
	TotalAmount       int64        `json:"total_amount" gorm:"not null"`
	Currency          string       `json:"currency" gorm:"not null;default:USD"`
	AccountingCode    string       `json:"accounting_code" gorm:"not null;default:''"`
	InstallmentsTotal int          `json:"installments_total" gorm:"not null"`
	InstallmentsPaid  int          `json:"installments_paid" gorm:"not null;default:0"`
	NextPaymentDate   *time.Time   `json:"next_payment_date,omitempty" gorm:"type:date"`
	Status            string       `json:"status" gorm:"index;not null;default:active"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`

	Installments []Installment `json:"installments,omitempty" gorm:"foreignKey:PlanID"`
}

func (PaymentPlan) TableName() string {
	return "payment_plans"
}

// Installment is one scheduled charge under a plan. StagingRecordID points at
// the latest attempt's staging record; every attempt stages a fresh record.
type Installment struct {
	ID              snowflake.ID  `json:"id" gorm:"primaryKey"`
	PlanID          snowflake.ID  `json:"plan_id" gorm:"uniqueIndex:uniq_plan_installment;not null"`
	Number          int           `json:"number" gorm:"uniqueIndex:uniq_plan_installment;not null"`
	Amount          int64         `json:"amount" gorm:"not null"`
	Currency        string        `json:"currency" gorm:"not null"`
	ScheduledDate   time.Time     `json:"scheduled_date" gorm:"type:date;index;not null"`
	Status          string        `json:"status" gorm:"index;not null;default:planned"`
	AttemptCount    int           `json:"attempt_count" gorm:"not null;default:0"`
	LastAttemptAt   *time.Time    `json:"last_attempt_at,omitempty"`
	ReminderSentAt  *time.Time    `json:"reminder_sent_at,omitempty"`
	StagingRecordID *snowflake.ID `json:"staging_record_id,omitempty"`
	PaymentID       *snowflake.ID `json:"payment_id,omitempty"`
	FailureCode     *string       `json:"failure_code,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Installment) TableName() string {
	return "plan_installments"
}

// AttentionRow is a stuck installment inside a still-active plan: its attempt
// budget is exhausted and no automatic remediation exists.
type AttentionRow struct {
	InstallmentID snowflake.ID `json:"installment_id"`
	PlanID        snowflake.ID `json:"plan_id"`
	MemberID      snowflake.ID `json:"member_id"`
	Number        int          `json:"number"`
	Amount        int64        `json:"amount"`
	Currency      string       `json:"currency"`
	ScheduledDate time.Time    `json:"scheduled_date"`
	AttemptCount  int          `json:"attempt_count"`
	FailureCode   *string      `json:"failure_code,omitempty"`
	LastAttemptAt *time.Time   `json:"last_attempt_at,omitempty"`
}

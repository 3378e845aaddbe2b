package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
)

var (
	ErrPlanNotFound        = errors.New("payment_plan_not_found")
	ErrInstallmentNotFound = errors.New("installment_not_found")
	ErrInvalidPlan         = errors.New("invalid_payment_plan")
	ErrInstallmentSettled  = errors.New("installment_already_settled")
	ErrRunInProgress       = errors.New("payment_run_in_progress")
)

type CreateRequest struct {
	MemberID       snowflake.ID `json:"member_id"`
	RegistrationID snowflake.ID `json:"registration_id"`
	SeasonID       snowflake.ID `json:"season_id"`
	TotalAmount    int64        `json:"total_amount"`
	Currency       string       `json:"currency"`
	AccountingCode string       `json:"accounting_code"`
	Installments   int          `json:"installments,omitempty"`
	StartDate      *time.Time   `json:"start_date,omitempty"`
}

// RunResults is the per-run tally returned by the manual trigger and the
// scheduled run alike. Field names are part of the admin API contract.
type RunResults struct {
	PaymentsFound        int      `json:"paymentsFound"`
	PaymentsProcessed    int      `json:"paymentsProcessed"`
	PaymentsFailed       int      `json:"paymentsFailed"`
	RetriesAttempted     int      `json:"retriesAttempted"`
	CompletionEmailsSent int      `json:"completionEmailsSent"`
	PreNotificationsSent int      `json:"preNotificationsSent"`
	Errors               []string `json:"errors"`
}

type RunReport struct {
	Success bool       `json:"success"`
	Results RunResults `json:"results"`
}

type UpdateScheduleRequest struct {
	ScheduledDate time.Time `json:"scheduled_date" binding:"required"`
}

type ShiftScheduleRequest struct {
	Days int `json:"days" binding:"required"`
}

type Service interface {
	// Create splits the total into equal installments at the configured
	// interval; remainder cents land on the first installment. No charge
	// happens at creation; the run engine collects due installments.
	Create(ctx context.Context, req CreateRequest) (*PaymentPlan, error)

	Get(ctx context.Context, id snowflake.ID) (*PaymentPlan, error)
	ListByMember(ctx context.Context, memberID snowflake.ID) ([]PaymentPlan, error)

	// ListAttention returns exhausted installments inside active plans.
	ListAttention(ctx context.Context) ([]AttentionRow, error)

	// RunPayments is the due-installment batch: selection, eligibility
	// filter, one claimed charge attempt per eligible installment, plan
	// advancement, completion and pre-due notifications. The manual
	// trigger and the cron trigger both call this and get identical
	// behavior. Only one run executes at a time; a concurrent call gets
	// ErrRunInProgress.
	RunPayments(ctx context.Context) (*RunReport, error)

	// FinalizeInstallment applies a settled payment to its installment
	// after the gateway resolved an attempt asynchronously.
	FinalizeInstallment(ctx context.Context, installmentID snowflake.ID, payment *chargedomain.Payment) error

	// UpdateInstallmentSchedule moves one pending installment's date.
	UpdateInstallmentSchedule(ctx context.Context, installmentID snowflake.ID, date time.Time) (*Installment, error)

	// ShiftPlanSchedule moves every pending installment of a plan by a
	// signed number of days. Support and testing tool.
	ShiftPlanSchedule(ctx context.Context, planID snowflake.ID, days int) (int64, error)
}

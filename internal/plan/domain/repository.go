package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	InsertPlan(ctx context.Context, plan *PaymentPlan, installments []Installment) error
	FindPlanByID(ctx context.Context, id snowflake.ID) (*PaymentPlan, error)
	ListPlansByMember(ctx context.Context, memberID snowflake.ID) ([]PaymentPlan, error)

	// AdvancePlan increments installments_paid and moves next_payment_date.
	AdvancePlan(ctx context.Context, planID snowflake.ID, next *time.Time) error

	// SetPlanNextDate rewrites next_payment_date after a schedule change.
	SetPlanNextDate(ctx context.Context, planID snowflake.ID, next *time.Time) error

	// CompletePlan flips an active plan whose installments are all paid.
	// The row claim is the exactly-once guard for the completion
	// notification: only the caller that flipped the row sends it.
	CompletePlan(ctx context.Context, planID snowflake.ID) (bool, error)

	FindInstallmentByID(ctx context.Context, id snowflake.ID) (*Installment, error)

	// DueInstallments selects planned and failed installments scheduled at
	// or before asOf, oldest first.
	DueInstallments(ctx context.Context, asOf time.Time) ([]Installment, error)

	// ClaimAttempt increments attempt_count only if it still equals
	// expected. A false return means another worker claimed the attempt.
	ClaimAttempt(ctx context.Context, installmentID snowflake.ID, expected int, at time.Time) (bool, error)

	SetInstallmentStaging(ctx context.Context, installmentID, stagingID snowflake.ID) error

	// SettleAttempt records an attempt outcome: target status, failure
	// code (nil clears it), and the payment id when one settled.
	SettleAttempt(ctx context.Context, installmentID snowflake.ID, status string, failureCode *string, paymentID *snowflake.ID) error

	// NextPlannedDate is the earliest scheduled date still planned for the
	// plan, nil when every installment is settled.
	NextPlannedDate(ctx context.Context, planID snowflake.ID) (*time.Time, error)

	// UpcomingReminders selects planned installments scheduled inside
	// [from, to) that have not been reminded yet.
	UpcomingReminders(ctx context.Context, from, to time.Time) ([]Installment, error)

	// ClaimReminder stamps reminder_sent_at once; false means another run
	// already claimed it.
	ClaimReminder(ctx context.Context, installmentID snowflake.ID, at time.Time) (bool, error)

	AttentionInstallments(ctx context.Context) ([]AttentionRow, error)

	UpdateInstallmentDate(ctx context.Context, installmentID snowflake.ID, date time.Time) error
	ShiftPendingInstallments(ctx context.Context, planID snowflake.ID, days int) (int64, error)
}

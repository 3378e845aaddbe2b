package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrPaymentNotFound      = errors.New("payment_not_found")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrGatewayUnavailable   = errors.New("gateway_unavailable")
	ErrReconciliationLink   = errors.New("payment_link_failed")
)

// Gateway outcome statuses. Declined is an authoritative gateway answer;
// transport failures surface as errors instead.
const (
	OutcomeSucceeded  = "succeeded"
	OutcomeProcessing = "processing"
	OutcomeDeclined   = "declined"
)

// Canonical webhook event types.
const (
	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentFailed    = "payment_failed"
)

// ChargeParams is the off-session charge instruction sent to the gateway.
// The staging record id always travels in Metadata for reconciliation.
type ChargeParams struct {
	AmountCents    int64
	Currency       string
	InstrumentID   string
	CustomerID     string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

type ChargeOutcome struct {
	TransactionID  string
	Status         string
	FailureCode    string
	FailureMessage string
}

type Gateway interface {
	// CreateCharge confirms an off-session charge. A decline returns a
	// ChargeOutcome with OutcomeDeclined and a nil error; only transport
	// and configuration failures return an error.
	CreateCharge(ctx context.Context, params ChargeParams) (*ChargeOutcome, error)
	Provider() string
}

type ExecuteRequest struct {
	StagingID   snowflake.ID `json:"staging_id"`
	Description string       `json:"description,omitempty"`
}

// GatewayEvent is the canonical webhook event parsed by provider adapters.
// StagingRecordID is recovered from the charge metadata so an event can be
// matched even when the original request timed out before a transaction id
// was recorded.
type GatewayEvent struct {
	Provider        string
	EventID         string
	Type            string
	TransactionID   string
	StagingRecordID snowflake.ID
	FailureCode     string
	FailureMessage  string
	OccurredAt      time.Time
	RawPayload      []byte
}

// EventResult reports what a webhook delivery changed. Settled is true only
// when this delivery flipped the payment's state; a redelivery or an event
// for an already-settled payment leaves it false. PlanInstallmentID is set
// when the payment belongs to an installment, so the caller can advance the
// plan.
type EventResult struct {
	Duplicate         bool
	Settled           bool
	Payment           *Payment
	PlanInstallmentID *snowflake.ID
}

type Service interface {
	// Execute runs one charge attempt for a staged record. Free records
	// settle without a gateway call. A staging record that already has a
	// payment row is spent: Execute returns that payment instead of
	// charging again. A decline returns the failed payment with a nil
	// error; a gateway transport failure returns the recorded failed
	// payment together with ErrGatewayUnavailable.
	Execute(ctx context.Context, req ExecuteRequest) (*Payment, error)

	GetPayment(ctx context.Context, id snowflake.ID) (*Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Payment, error)
	ListByMember(ctx context.Context, memberID snowflake.ID) ([]Payment, error)

	// FindByStagingRecord probes for the payment row of a staging record.
	// Returns nil without error when no attempt reached the gateway.
	FindByStagingRecord(ctx context.Context, stagingID snowflake.ID) (*Payment, error)

	// HandleGatewayEvent settles pending payments from webhook deliveries.
	// Redelivered events are no-ops.
	HandleGatewayEvent(ctx context.Context, event GatewayEvent) (*EventResult, error)

	// PruneEventRecords drops webhook dedup rows older than the given age.
	PruneEventRecords(ctx context.Context, olderThan time.Duration) (int64, error)
}

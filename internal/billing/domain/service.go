// Package domain contains the billing facade contracts. The facade is the
// only place that wires quote, ledger, charge, plan and notification calls
// into one operation.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
	plandomain "github.com/duesflow/duesflow/internal/plan/domain"
	pricingdomain "github.com/duesflow/duesflow/internal/pricing/domain"
)

var ErrAlreadyCharged = errors.New("registration_already_charged")

type ChargeRequest struct {
	RegistrationID snowflake.ID  `json:"registration_id" binding:"required"`
	DiscountCodeID *snowflake.ID `json:"discount_code_id,omitempty"`
	OverridePrice  *int64        `json:"override_price,omitempty"`
	Description    string        `json:"description,omitempty"`
}

// ChargeResult carries the full audit trail of one immediate charge: the
// quote that priced it, the staged intent, and the payment outcome.
type ChargeResult struct {
	Quote   *pricingdomain.Quote        `json:"quote"`
	Staging *ledgerdomain.StagingRecord `json:"staging_record"`
	Payment *chargedomain.Payment       `json:"payment"`
}

type CreatePlanRequest struct {
	RegistrationID snowflake.ID  `json:"registration_id" binding:"required"`
	DiscountCodeID *snowflake.ID `json:"discount_code_id,omitempty"`
	OverridePrice  *int64        `json:"override_price,omitempty"`
	Installments   int           `json:"installments,omitempty"`
	StartDate      *time.Time    `json:"start_date,omitempty"`
}

type Service interface {
	// ChargeRegistration prices, stages and executes one immediate charge.
	// A declined payment is a result, not an error; transport failures
	// return both the recorded attempt and the error.
	ChargeRegistration(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// CreatePaymentPlan prices the registration and opens an installment
	// plan over the final amount. No charge happens here.
	CreatePaymentPlan(ctx context.Context, req CreatePlanRequest) (*plandomain.PaymentPlan, error)

	// ProcessGatewayEvent settles the payment behind a webhook event,
	// advances the owning installment when there is one, and sends the
	// outcome notification exactly once.
	ProcessGatewayEvent(ctx context.Context, event chargedomain.GatewayEvent) (*chargedomain.EventResult, error)
}

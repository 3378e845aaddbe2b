package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	billingdomain "github.com/duesflow/duesflow/internal/billing/domain"
	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
	notifydomain "github.com/duesflow/duesflow/internal/notify/domain"
	plandomain "github.com/duesflow/duesflow/internal/plan/domain"
	pricingdomain "github.com/duesflow/duesflow/internal/pricing/domain"
	registrationdomain "github.com/duesflow/duesflow/internal/registration/domain"
)

type Service struct {
	log           *zap.Logger
	registrations registrationdomain.Service
	pricing       pricingdomain.Service
	ledger        ledgerdomain.Service
	charges       chargedomain.Service
	plans         plandomain.Service
	notifier      notifydomain.Dispatcher
}

type ServiceParam struct {
	fx.In

	Log           *zap.Logger
	Registrations registrationdomain.Service
	Pricing       pricingdomain.Service
	Ledger        ledgerdomain.Service
	Charges       chargedomain.Service
	Plans         plandomain.Service
	Notifier      notifydomain.Dispatcher
}

func NewService(p ServiceParam) billingdomain.Service {
	return &Service{
		log:           p.Log.Named("billing.service"),
		registrations: p.Registrations,
		pricing:       p.Pricing,
		ledger:        p.Ledger,
		charges:       p.Charges,
		plans:         p.Plans,
		notifier:      p.Notifier,
	}
}

func (s *Service) ChargeRegistration(ctx context.Context, req billingdomain.ChargeRequest) (*billingdomain.ChargeResult, error) {
	registration, quote, err := s.prepare(ctx, req.RegistrationID, req.DiscountCodeID, req.OverridePrice)
	if err != nil {
		return nil, err
	}

	staging, err := s.ledger.Stage(ctx, stageRequestFor(registration, quote))
	if err != nil {
		return nil, err
	}

	result := &billingdomain.ChargeResult{Quote: quote, Staging: staging}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("%s registration", quote.CategoryName)
	}

	payment, execErr := s.charges.Execute(ctx, chargedomain.ExecuteRequest{
		StagingID:   staging.ID,
		Description: description,
	})
	result.Payment = payment

	if payment != nil {
		switch payment.Status {
		case chargedomain.PaymentStatusCompleted:
			s.confirm(ctx, registration.ID)
			// Free registrations settle with a zero payment and no receipt.
			if payment.Amount > 0 {
				s.notifyOutcome(ctx, payment)
			}
		case chargedomain.PaymentStatusFailed:
			s.notifyOutcome(ctx, payment)
		}
		// Pending payments are settled by the gateway webhook.
	}

	s.refreshStaging(ctx, result)
	return result, execErr
}

func (s *Service) CreatePaymentPlan(ctx context.Context, req billingdomain.CreatePlanRequest) (*plandomain.PaymentPlan, error) {
	registration, quote, err := s.prepare(ctx, req.RegistrationID, req.DiscountCodeID, req.OverridePrice)
	if err != nil {
		return nil, err
	}
	if quote.Free || quote.FinalAmount <= 0 {
		return nil, plandomain.ErrInvalidPlan
	}

	plan, err := s.plans.Create(ctx, plandomain.CreateRequest{
		MemberID:       registration.MemberID,
		RegistrationID: registration.ID,
		SeasonID:       registration.SeasonID,
		TotalAmount:    quote.FinalAmount,
		Currency:       quote.Currency,
		AccountingCode: quote.RegistrationAccountingCode,
		Installments:   req.Installments,
		StartDate:      req.StartDate,
	})
	if err != nil {
		return nil, err
	}

	// An open plan is a payment commitment, so the spot is held.
	s.confirm(ctx, registration.ID)
	return plan, nil
}

func (s *Service) ProcessGatewayEvent(ctx context.Context, event chargedomain.GatewayEvent) (*chargedomain.EventResult, error) {
	result, err := s.charges.HandleGatewayEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	if result.Duplicate || result.Payment == nil {
		return result, nil
	}

	if result.Settled && result.PlanInstallmentID != nil {
		if err := s.plans.FinalizeInstallment(ctx, *result.PlanInstallmentID, result.Payment); err != nil {
			// The payment is settled; the next payment run picks the
			// installment back up from the linked staging record.
			s.log.Error("finalize installment from gateway event",
				zap.Int64("installment_id", int64(*result.PlanInstallmentID)),
				zap.Int64("payment_id", int64(result.Payment.ID)),
				zap.Bool("operator_alert", true),
				zap.Error(err))
			return result, err
		}
	}

	if result.Settled {
		if result.PlanInstallmentID == nil && result.Payment.Status == chargedomain.PaymentStatusCompleted {
			s.confirmFromStaging(ctx, result.Payment.StagingRecordID)
		}
		s.notifyOutcome(ctx, result.Payment)
	}
	return result, nil
}

// confirmFromStaging confirms the registration behind a one-shot charge that
// settled asynchronously. Installment settlements skip this; their
// registration was confirmed when the plan opened.
func (s *Service) confirmFromStaging(ctx context.Context, stagingID snowflake.ID) {
	staging, err := s.ledger.Get(ctx, stagingID)
	if err != nil || staging == nil || staging.RegistrationID == nil {
		return
	}
	s.confirm(ctx, *staging.RegistrationID)
}

// prepare runs the shared front half of both charge paths: the registration
// must exist and still be open, and the quote fixes the price.
func (s *Service) prepare(ctx context.Context, registrationID snowflake.ID, discountCodeID *snowflake.ID, overridePrice *int64) (*registrationdomain.Registration, *pricingdomain.Quote, error) {
	registration, err := s.registrations.Get(ctx, registrationID)
	if err != nil {
		return nil, nil, err
	}
	switch registration.Status {
	case registrationdomain.StatusCanceled:
		return nil, nil, registrationdomain.ErrRegistrationCanceled
	case registrationdomain.StatusConfirmed:
		return nil, nil, billingdomain.ErrAlreadyCharged
	}

	quote, err := s.pricing.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:       registration.MemberID,
		SeasonID:       registration.SeasonID,
		CategoryID:     registration.CategoryID,
		DiscountCodeID: discountCodeID,
		OverridePrice:  overridePrice,
	})
	if err != nil {
		return nil, nil, err
	}
	return registration, quote, nil
}

func stageRequestFor(registration *registrationdomain.Registration, quote *pricingdomain.Quote) *ledgerdomain.StageRequest {
	lines := []ledgerdomain.LineItemInput{{
		Kind:           ledgerdomain.LineKindRegistration,
		Description:    fmt.Sprintf("%s registration", quote.CategoryName),
		Amount:         quote.EffectiveBase,
		AccountingCode: quote.RegistrationAccountingCode,
	}}
	if quote.AppliedDiscount > 0 {
		lines = append(lines, ledgerdomain.LineItemInput{
			Kind:           ledgerdomain.LineKindDiscount,
			Description:    fmt.Sprintf("Discount %s", quote.DiscountCode),
			Amount:         -quote.AppliedDiscount,
			AccountingCode: quote.DiscountAccountingCode,
			DiscountCodeID: quote.DiscountCodeID,
		})
	}

	metadata := map[string]any{
		"category_id": quote.CategoryID.String(),
	}
	if quote.DiscountCode != "" {
		metadata["discount_code"] = quote.DiscountCode
	}
	if quote.Partial {
		metadata["partial_discount"] = true
	}
	if quote.LimitExhausted {
		metadata["discount_limit_exhausted"] = true
	}

	return &ledgerdomain.StageRequest{
		MemberID:       registration.MemberID,
		SeasonID:       registration.SeasonID,
		RegistrationID: &registration.ID,
		TotalAmount:    quote.EffectiveBase,
		DiscountAmount: quote.AppliedDiscount,
		FinalAmount:    quote.FinalAmount,
		Currency:       quote.Currency,
		Free:           quote.Free,
		LineItems:      lines,
		Metadata:       metadata,
	}
}

// confirm marks the registration confirmed. The payment already settled, so a
// status write failure is an operator problem, not a caller error.
func (s *Service) confirm(ctx context.Context, registrationID snowflake.ID) {
	if err := s.registrations.Confirm(ctx, registrationID); err != nil {
		s.log.Error("confirm registration after settlement",
			zap.Int64("registration_id", int64(registrationID)),
			zap.Bool("operator_alert", true),
			zap.Error(err))
	}
}

// refreshStaging reloads the staging record so the result carries the
// payment and transaction links written during execution.
func (s *Service) refreshStaging(ctx context.Context, result *billingdomain.ChargeResult) {
	if result.Staging == nil {
		return
	}
	fresh, err := s.ledger.Get(ctx, result.Staging.ID)
	if err == nil && fresh != nil {
		result.Staging = fresh
	}
}

func (s *Service) notifyOutcome(ctx context.Context, payment *chargedomain.Payment) {
	msg := notifydomain.Message{MemberID: payment.MemberID}
	amount := formatAmount(payment.Currency, payment.Amount)

	switch payment.Status {
	case chargedomain.PaymentStatusCompleted:
		msg.Kind = notifydomain.KindPaymentReceipt
		msg.Subject = "Payment received"
		msg.Body = fmt.Sprintf("We received your payment of %s. Thank you.", amount)
	case chargedomain.PaymentStatusFailed:
		msg.Kind = notifydomain.KindPaymentFailed
		msg.Subject = "Payment failed"
		reason := "charge_failed"
		if payment.FailureCode != nil && *payment.FailureCode != "" {
			reason = *payment.FailureCode
		}
		msg.Body = fmt.Sprintf("Your payment of %s could not be processed (%s). Please update your payment method.", amount, reason)
	default:
		return
	}

	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Warn("payment outcome notification",
			zap.Int64("payment_id", int64(payment.ID)),
			zap.String("kind", msg.Kind),
			zap.Error(err))
	}
}

func formatAmount(currency string, cents int64) string {
	return fmt.Sprintf("%s %d.%02d", currency, cents/100, cents%100)
}

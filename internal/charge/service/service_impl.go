package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	"github.com/duesflow/duesflow/internal/charge/repository"
	"github.com/duesflow/duesflow/internal/clock"
	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
	memberdomain "github.com/duesflow/duesflow/internal/member/domain"
	"github.com/duesflow/duesflow/internal/observability"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	repo    chargedomain.Repository
	gateway chargedomain.Gateway
	ledger  ledgerdomain.Service
	members memberdomain.Service
	clock   clock.Clock
	metrics *observability.Metrics
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Gateway chargedomain.Gateway
	Ledger  ledgerdomain.Service
	Members memberdomain.Service
	Clock   clock.Clock
	Metrics *observability.Metrics
}

func NewService(p ServiceParam) chargedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("charge.service"),

		genID:   p.GenID,
		repo:    repository.NewRepository(p.DB),
		gateway: p.Gateway,
		ledger:  p.Ledger,
		members: p.Members,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) Execute(ctx context.Context, req chargedomain.ExecuteRequest) (*chargedomain.Payment, error) {
	staging, err := s.ledger.Get(ctx, req.StagingID)
	if err != nil {
		return nil, err
	}

	if staging.PaymentID != nil {
		return s.GetPayment(ctx, *staging.PaymentID)
	}
	existing, err := s.repo.FindByStagingRecordID(ctx, staging.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// One gateway call per staged intent; this record is spent.
		return existing, nil
	}

	if staging.Free || staging.FinalAmount == 0 {
		return s.settleFree(ctx, staging)
	}
	return s.executePaid(ctx, staging, req.Description)
}

func (s *Service) settleFree(ctx context.Context, staging *ledgerdomain.StagingRecord) (*chargedomain.Payment, error) {
	now := s.clock.Now(ctx)
	payment := &chargedomain.Payment{
		ID:              s.genID.Generate(),
		MemberID:        staging.MemberID,
		StagingRecordID: staging.ID,
		Amount:          0,
		Currency:        staging.Currency,
		Status:          chargedomain.PaymentStatusCompleted,
		CompletedAt:     &now,
	}
	if err := s.repo.Insert(ctx, payment); err != nil {
		return nil, err
	}
	if err := s.linkPayment(ctx, staging.ID, payment.ID); err != nil {
		return payment, err
	}

	s.metrics.ChargesTotal.WithLabelValues("free").Inc()
	s.log.Info("free charge settled",
		zap.String("payment_id", payment.ID.String()),
		zap.String("staging_id", staging.ID.String()),
		zap.String("member_id", staging.MemberID.String()),
	)
	return payment, nil
}

func (s *Service) executePaid(ctx context.Context, staging *ledgerdomain.StagingRecord, description string) (*chargedomain.Payment, error) {
	member, err := s.members.Get(ctx, staging.MemberID)
	if err != nil {
		return nil, err
	}
	if !member.InstrumentVerified || member.GatewayCustomerID == nil || strings.TrimSpace(*member.GatewayCustomerID) == "" {
		s.recordInstrumentFailure(ctx, staging, "instrument_unverified_or_no_customer")
		return nil, chargedomain.ErrInvalidPaymentMethod
	}

	instrumentID, err := s.members.InstrumentRef(ctx, staging.MemberID)
	if err != nil {
		if errors.Is(err, memberdomain.ErrNoInstrument) {
			s.recordInstrumentFailure(ctx, staging, "no_stored_instrument")
			return nil, chargedomain.ErrInvalidPaymentMethod
		}
		return nil, err
	}

	if description == "" {
		description = "Dues charge " + staging.Reference
	}

	outcome, err := s.gateway.CreateCharge(ctx, chargedomain.ChargeParams{
		AmountCents:  staging.FinalAmount,
		Currency:     staging.Currency,
		InstrumentID: instrumentID,
		CustomerID:   strings.TrimSpace(*member.GatewayCustomerID),
		Description:  description,
		Metadata: map[string]string{
			"staging_record_id": staging.ID.String(),
			"reference":         staging.Reference,
			"member_id":         staging.MemberID.String(),
		},
		IdempotencyKey: "charge:" + staging.ID.String(),
	})
	if err != nil {
		return s.recordGatewayFailure(ctx, staging, err)
	}

	if outcome.TransactionID != "" {
		if err := s.ledger.AttachGatewayTransaction(ctx, staging.ID, outcome.TransactionID); err != nil {
			// The payment row below still carries the transaction id, so
			// reconciliation stays possible.
			s.log.Error("gateway transaction link failed",
				zap.String("staging_id", staging.ID.String()),
				zap.String("transaction_id", outcome.TransactionID),
				zap.Bool("operator_alert", true),
				zap.Error(err),
			)
		}
	}

	now := s.clock.Now(ctx)
	payment := &chargedomain.Payment{
		ID:              s.genID.Generate(),
		MemberID:        staging.MemberID,
		StagingRecordID: staging.ID,
		Amount:          staging.FinalAmount,
		Currency:        staging.Currency,
	}
	if outcome.TransactionID != "" {
		txn := outcome.TransactionID
		payment.GatewayTransactionID = &txn
	}

	switch outcome.Status {
	case chargedomain.OutcomeSucceeded:
		payment.Status = chargedomain.PaymentStatusCompleted
		payment.CompletedAt = &now
	case chargedomain.OutcomeProcessing:
		payment.Status = chargedomain.PaymentStatusPending
	default:
		payment.Status = chargedomain.PaymentStatusFailed
		if outcome.FailureCode != "" {
			code := outcome.FailureCode
			payment.FailureCode = &code
		}
		if outcome.FailureMessage != "" {
			message := outcome.FailureMessage
			payment.FailureMessage = &message
		}
	}

	if err := s.repo.Insert(ctx, payment); err != nil {
		return nil, err
	}

	switch payment.Status {
	case chargedomain.PaymentStatusCompleted:
		s.metrics.ChargesTotal.WithLabelValues("completed").Inc()
		if err := s.linkPayment(ctx, staging.ID, payment.ID); err != nil {
			return payment, err
		}
		s.log.Info("charge completed",
			zap.String("payment_id", payment.ID.String()),
			zap.String("staging_id", staging.ID.String()),
			zap.Int64("amount", payment.Amount),
		)
	case chargedomain.PaymentStatusPending:
		s.metrics.ChargesTotal.WithLabelValues("pending").Inc()
		s.log.Info("charge pending gateway confirmation",
			zap.String("payment_id", payment.ID.String()),
			zap.String("staging_id", staging.ID.String()),
		)
	default:
		s.metrics.ChargesTotal.WithLabelValues("declined").Inc()
		s.log.Warn("charge declined",
			zap.String("payment_id", payment.ID.String()),
			zap.String("staging_id", staging.ID.String()),
			zap.Stringp("failure_code", payment.FailureCode),
		)
	}
	return payment, nil
}

// recordGatewayFailure persists the attempt when the gateway gave no
// authoritative answer. The outcome is unknown; a late webhook can still
// settle it through the staging metadata.
func (s *Service) recordGatewayFailure(ctx context.Context, staging *ledgerdomain.StagingRecord, cause error) (*chargedomain.Payment, error) {
	code := "gateway_unavailable"
	message := cause.Error()
	payment := &chargedomain.Payment{
		ID:              s.genID.Generate(),
		MemberID:        staging.MemberID,
		StagingRecordID: staging.ID,
		Amount:          staging.FinalAmount,
		Currency:        staging.Currency,
		Status:          chargedomain.PaymentStatusFailed,
		FailureCode:     &code,
		FailureMessage:  &message,
	}
	if err := s.repo.Insert(ctx, payment); err != nil {
		return nil, err
	}

	s.metrics.ChargesTotal.WithLabelValues("gateway_error").Inc()
	s.log.Warn("gateway unavailable, outcome unknown",
		zap.String("staging_id", staging.ID.String()),
		zap.String("member_id", staging.MemberID.String()),
		zap.Error(cause),
	)
	return payment, fmt.Errorf("create charge: %w", chargedomain.ErrGatewayUnavailable)
}

func (s *Service) recordInstrumentFailure(ctx context.Context, staging *ledgerdomain.StagingRecord, reason string) {
	err := s.ledger.MergeMetadata(ctx, staging.ID, map[string]any{
		"last_error":        "invalid_payment_method",
		"last_error_detail": reason,
		"last_error_at":     s.clock.Now(ctx).Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		s.log.Warn("failed to record instrument failure on staging record",
			zap.String("staging_id", staging.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) linkPayment(ctx context.Context, stagingID, paymentID snowflake.ID) error {
	if err := s.ledger.AttachPayment(ctx, stagingID, paymentID); err != nil {
		s.log.Error("payment created but staging link failed",
			zap.String("staging_id", stagingID.String()),
			zap.String("payment_id", paymentID.String()),
			zap.Bool("operator_alert", true),
			zap.Error(err),
		)
		return chargedomain.ErrReconciliationLink
	}
	return nil
}

func (s *Service) GetPayment(ctx context.Context, id snowflake.ID) (*chargedomain.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, chargedomain.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *Service) FindByStagingRecord(ctx context.Context, stagingID snowflake.ID) (*chargedomain.Payment, error) {
	return s.repo.FindByStagingRecordID(ctx, stagingID)
}

func (s *Service) GetByTransactionID(ctx context.Context, transactionID string) (*chargedomain.Payment, error) {
	payment, err := s.repo.FindByTransactionID(ctx, strings.TrimSpace(transactionID))
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, chargedomain.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *Service) ListByMember(ctx context.Context, memberID snowflake.ID) ([]chargedomain.Payment, error) {
	return s.repo.ListByMember(ctx, memberID)
}

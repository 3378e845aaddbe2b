package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
)

func (s *Service) HandleGatewayEvent(ctx context.Context, event chargedomain.GatewayEvent) (*chargedomain.EventResult, error) {
	record := &chargedomain.GatewayEventRecord{
		ID:          s.genID.Generate(),
		Provider:    event.Provider,
		EventID:     event.EventID,
		EventType:   event.Type,
		ProcessedAt: s.clock.Now(ctx),
	}
	if len(event.RawPayload) > 0 {
		record.Payload = datatypes.JSON(event.RawPayload)
	}
	inserted, err := s.repo.InsertEventRecord(ctx, record)
	if err != nil {
		return nil, err
	}
	if !inserted {
		s.log.Debug("gateway event already processed",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID),
		)
		return &chargedomain.EventResult{Duplicate: true}, nil
	}

	payment, err := s.repo.FindByTransactionID(ctx, event.TransactionID)
	if err != nil {
		return nil, err
	}
	if payment == nil && event.StagingRecordID != 0 {
		payment, err = s.reviveTimedOut(ctx, event)
		if err != nil {
			return nil, err
		}
	}
	if payment == nil {
		s.log.Warn("gateway event matches no payment",
			zap.String("event_id", event.EventID),
			zap.String("transaction_id", event.TransactionID),
			zap.Bool("operator_alert", true),
		)
		return &chargedomain.EventResult{}, nil
	}

	out := &chargedomain.EventResult{Payment: payment}
	switch event.Type {
	case chargedomain.EventPaymentSucceeded:
		flipped, err := s.completeFromEvent(ctx, payment, event)
		if err != nil {
			return nil, err
		}
		out.Settled = flipped
	case chargedomain.EventPaymentFailed:
		flipped, err := s.failFromEvent(ctx, payment, event)
		if err != nil {
			return nil, err
		}
		out.Settled = flipped
	}

	settled, err := s.repo.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if settled != nil {
		out.Payment = settled
	}

	staging, err := s.ledger.Get(ctx, out.Payment.StagingRecordID)
	if err == nil && staging.PlanInstallmentID != nil {
		out.PlanInstallmentID = staging.PlanInstallmentID
	}
	return out, nil
}

// reviveTimedOut matches a late gateway outcome to an attempt whose request
// died before a transaction id came back. Only a failed payment with no
// transaction id qualifies; anything else already owns its outcome.
func (s *Service) reviveTimedOut(ctx context.Context, event chargedomain.GatewayEvent) (*chargedomain.Payment, error) {
	payment, err := s.repo.FindByStagingRecordID(ctx, event.StagingRecordID)
	if err != nil || payment == nil {
		return nil, err
	}
	if payment.Status != chargedomain.PaymentStatusFailed || payment.GatewayTransactionID != nil {
		return nil, nil
	}

	txn := event.TransactionID
	payment.GatewayTransactionID = &txn
	payment.Status = chargedomain.PaymentStatusPending
	payment.FailureCode = nil
	payment.FailureMessage = nil
	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, err
	}
	if err := s.ledger.AttachGatewayTransaction(ctx, payment.StagingRecordID, txn); err != nil {
		s.log.Warn("gateway transaction link failed on revival",
			zap.String("staging_id", payment.StagingRecordID.String()),
			zap.Error(err),
		)
	}

	s.log.Info("late gateway outcome matched by staging metadata",
		zap.String("payment_id", payment.ID.String()),
		zap.String("staging_id", payment.StagingRecordID.String()),
		zap.String("transaction_id", txn),
	)
	return payment, nil
}

func (s *Service) completeFromEvent(ctx context.Context, payment *chargedomain.Payment, event chargedomain.GatewayEvent) (bool, error) {
	if payment.Status == chargedomain.PaymentStatusCompleted {
		return false, nil
	}

	settledAt := event.OccurredAt
	if settledAt.IsZero() {
		settledAt = s.clock.Now(ctx)
	}
	flipped, err := s.repo.MarkSettled(ctx, payment.ID, chargedomain.PaymentStatusCompleted, nil, nil, settledAt)
	if err != nil {
		return false, err
	}
	if !flipped {
		s.log.Warn("success event for non-pending payment",
			zap.String("payment_id", payment.ID.String()),
			zap.String("status", payment.Status),
			zap.String("event_id", event.EventID),
		)
		return false, nil
	}

	s.metrics.ChargesTotal.WithLabelValues("webhook_completed").Inc()
	s.log.Info("pending charge settled by gateway event",
		zap.String("payment_id", payment.ID.String()),
		zap.String("transaction_id", event.TransactionID),
	)
	return true, s.linkPayment(ctx, payment.StagingRecordID, payment.ID)
}

func (s *Service) failFromEvent(ctx context.Context, payment *chargedomain.Payment, event chargedomain.GatewayEvent) (bool, error) {
	if payment.Status != chargedomain.PaymentStatusPending {
		return false, nil
	}

	var code, message *string
	if event.FailureCode != "" {
		c := event.FailureCode
		code = &c
	}
	if event.FailureMessage != "" {
		m := event.FailureMessage
		message = &m
	}
	settledAt := event.OccurredAt
	if settledAt.IsZero() {
		settledAt = s.clock.Now(ctx)
	}
	flipped, err := s.repo.MarkSettled(ctx, payment.ID, chargedomain.PaymentStatusFailed, code, message, settledAt)
	if err != nil {
		return false, err
	}
	if !flipped {
		return false, nil
	}

	s.metrics.ChargesTotal.WithLabelValues("webhook_failed").Inc()
	s.log.Warn("pending charge failed by gateway event",
		zap.String("payment_id", payment.ID.String()),
		zap.String("transaction_id", event.TransactionID),
		zap.Stringp("failure_code", code),
	)
	return true, nil
}

// PruneEventRecords drops processed webhook dedup rows older than the cutoff.
func (s *Service) PruneEventRecords(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.clock.Now(ctx).Add(-olderThan)
	removed, err := s.repo.DeleteEventRecordsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info("pruned gateway event records",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff),
		)
	}
	return removed, nil
}

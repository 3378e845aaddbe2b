package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
	notifydomain "github.com/duesflow/duesflow/internal/notify/domain"
	plandomain "github.com/duesflow/duesflow/internal/plan/domain"
	"github.com/duesflow/duesflow/internal/redis"
)

const (
	runLockKey = "duesflow:payment_run"
	runLockTTL = 10 * time.Minute
)

// RunPayments drives every due, eligible installment through one claimed
// charge attempt, then sends pre-due reminders. The cron trigger and the
// admin endpoint share this code path, so a manual run behaves exactly like
// a scheduled one.
func (s *Service) RunPayments(ctx context.Context) (*plandomain.RunReport, error) {
	lock := redis.NewLock(s.redis, runLockKey, runLockTTL)
	acquired, err := lock.TryLock(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, plandomain.ErrRunInProgress
	}
	defer func() {
		if err := lock.Unlock(ctx); err != nil {
			s.log.Warn("failed to release run lock", zap.Error(err))
		}
	}()

	start := time.Now()
	defer func() { s.metrics.RunDuration.Observe(time.Since(start).Seconds()) }()

	now := s.clock.Now(ctx)
	report := &plandomain.RunReport{
		Success: true,
		Results: plandomain.RunResults{Errors: []string{}},
	}
	results := &report.Results

	due, err := s.repo.DueInstallments(ctx, now)
	if err != nil {
		return nil, err
	}
	s.log.Info("payment run started", zap.Int("due", len(due)))

	for i := range due {
		installment := due[i]
		if !s.eligible(&installment, now) {
			continue
		}
		s.processInstallment(ctx, &installment, now, results)
	}

	s.sendReminders(ctx, now, results)

	s.log.Info("payment run finished",
		zap.Int("found", results.PaymentsFound),
		zap.Int("processed", results.PaymentsProcessed),
		zap.Int("failed", results.PaymentsFailed),
		zap.Int("retries", results.RetriesAttempted),
		zap.Int("completion_emails", results.CompletionEmailsSent),
		zap.Int("pre_notifications", results.PreNotificationsSent),
		zap.Int("errors", len(results.Errors)),
	)
	return report, nil
}

// eligible applies the retry policy: a fresh installment always qualifies, a
// partially attempted one only after the backoff window, an exhausted one
// never.
func (s *Service) eligible(installment *plandomain.Installment, now time.Time) bool {
	if installment.AttemptCount == 0 {
		return true
	}
	if installment.AttemptCount >= s.cfg.maxAttempts {
		return false
	}
	if installment.LastAttemptAt == nil {
		return true
	}
	return now.Sub(*installment.LastAttemptAt) >= s.cfg.retryInterval
}

func (s *Service) processInstallment(ctx context.Context, installment *plandomain.Installment, now time.Time, results *plandomain.RunResults) {
	plan, err := s.repo.FindPlanByID(ctx, installment.PlanID)
	if err != nil || plan == nil {
		results.Errors = append(results.Errors, fmt.Sprintf("installment %s: plan lookup failed", installment.ID))
		return
	}

	// Resolve the previous attempt before anything else. A pending payment
	// means the gateway still owns the outcome; a completed one just has
	// to be applied (the webhook was missed). A prior staging record with
	// no payment at all was abandoned mid-attempt and stays in the orphan
	// feed; a fresh attempt stages a new record.
	if installment.StagingRecordID != nil {
		prior, err := s.charges.FindByStagingRecord(ctx, *installment.StagingRecordID)
		if err != nil {
			results.Errors = append(results.Errors, fmt.Sprintf("installment %s: %s", installment.ID, err))
			return
		}
		if prior != nil {
			switch prior.Status {
			case chargedomain.PaymentStatusPending:
				s.log.Info("installment awaiting gateway confirmation",
					zap.String("installment_id", installment.ID.String()),
					zap.String("payment_id", prior.ID.String()),
				)
				return
			case chargedomain.PaymentStatusCompleted:
				results.PaymentsFound++
				if err := s.succeedInstallment(ctx, installment, prior.ID, results); err != nil {
					results.Errors = append(results.Errors, fmt.Sprintf("installment %s: %s", installment.ID, err))
					return
				}
				results.PaymentsProcessed++
				return
			}
		}
	}

	claimed, err := s.repo.ClaimAttempt(ctx, installment.ID, installment.AttemptCount, now)
	if err != nil {
		results.Errors = append(results.Errors, fmt.Sprintf("installment %s: %s", installment.ID, err))
		return
	}
	if !claimed {
		s.log.Info("installment attempt claimed elsewhere", zap.String("installment_id", installment.ID.String()))
		return
	}
	attempts := installment.AttemptCount + 1

	results.PaymentsFound++
	if installment.AttemptCount > 0 {
		results.RetriesAttempted++
	}

	description := fmt.Sprintf("Installment %d of %d", installment.Number, plan.InstallmentsTotal)

	staged, err := s.ledger.Stage(ctx, &ledgerdomain.StageRequest{
		MemberID:          plan.MemberID,
		SeasonID:          plan.SeasonID,
		RegistrationID:    &plan.RegistrationID,
		PlanInstallmentID: &installment.ID,
		TotalAmount:       installment.Amount,
		FinalAmount:       installment.Amount,
		Currency:          installment.Currency,
		LineItems: []ledgerdomain.LineItemInput{
			{
				Kind:           ledgerdomain.LineKindRegistration,
				Description:    description,
				Amount:         installment.Amount,
				AccountingCode: plan.AccountingCode,
			},
		},
		Metadata: map[string]any{
			"plan_id":     plan.ID.String(),
			"installment": installment.Number,
			"attempt":     attempts,
		},
	})
	if err != nil {
		if ferr := s.failInstallment(ctx, installment, attempts, err.Error()); ferr != nil {
			s.log.Error("failed to record staging failure", zap.String("installment_id", installment.ID.String()), zap.Error(ferr))
		}
		results.PaymentsFailed++
		results.Errors = append(results.Errors, fmt.Sprintf("installment %s: %s", installment.ID, err))
		return
	}
	if err := s.repo.SetInstallmentStaging(ctx, installment.ID, staged.ID); err != nil {
		// The charge still proceeds; only the back-pointer is lost.
		s.log.Error("failed to link staging record to installment",
			zap.String("installment_id", installment.ID.String()),
			zap.String("staging_id", staged.ID.String()),
			zap.Bool("operator_alert", true),
			zap.Error(err),
		)
	}

	payment, execErr := s.charges.Execute(ctx, chargedomain.ExecuteRequest{
		StagingID:   staged.ID,
		Description: description,
	})

	switch {
	case execErr == nil && payment.Status == chargedomain.PaymentStatusCompleted:
		if err := s.succeedInstallment(ctx, installment, payment.ID, results); err != nil {
			results.Errors = append(results.Errors, fmt.Sprintf("installment %s: %s", installment.ID, err))
			return
		}
		results.PaymentsProcessed++

	case execErr == nil && payment.Status == chargedomain.PaymentStatusPending:
		s.log.Info("installment charge pending",
			zap.String("installment_id", installment.ID.String()),
			zap.String("payment_id", payment.ID.String()),
		)

	case errors.Is(execErr, chargedomain.ErrReconciliationLink) && payment != nil && payment.Status == chargedomain.PaymentStatusCompleted:
		// Money moved; the ledger link needs operator attention but the
		// installment is paid.
		if err := s.succeedInstallment(ctx, installment, payment.ID, results); err != nil {
			results.Errors = append(results.Errors, fmt.Sprintf("installment %s: %s", installment.ID, err))
			return
		}
		results.PaymentsProcessed++
		results.Errors = append(results.Errors, fmt.Sprintf("installment %s: %s", installment.ID, chargedomain.ErrReconciliationLink))

	default:
		code := failureCodeFor(payment, execErr)
		if err := s.failInstallment(ctx, installment, attempts, code); err != nil {
			results.Errors = append(results.Errors, fmt.Sprintf("installment %s: %s", installment.ID, err))
			return
		}
		results.PaymentsFailed++
		results.Errors = append(results.Errors, fmt.Sprintf("installment %s: %s", installment.ID, code))
	}
}

func failureCodeFor(payment *chargedomain.Payment, execErr error) string {
	switch {
	case errors.Is(execErr, chargedomain.ErrInvalidPaymentMethod):
		return "invalid_payment_method"
	case errors.Is(execErr, chargedomain.ErrGatewayUnavailable):
		return "gateway_unavailable"
	}
	if payment != nil && payment.FailureCode != nil && *payment.FailureCode != "" {
		return *payment.FailureCode
	}
	if execErr != nil {
		return execErr.Error()
	}
	return "charge_failed"
}

// sendReminders notifies members whose installment is due in exactly
// reminderDays days. The reminder claim makes repeat runs on the same day
// no-ops.
func (s *Service) sendReminders(ctx context.Context, now time.Time, results *plandomain.RunResults) {
	from := dateOnly(now).AddDate(0, 0, s.cfg.reminderDays)
	to := from.AddDate(0, 0, 1)

	upcoming, err := s.repo.UpcomingReminders(ctx, from, to)
	if err != nil {
		s.log.Error("failed to query upcoming installments", zap.Error(err))
		results.Errors = append(results.Errors, "pre-notifications: "+err.Error())
		return
	}

	for i := range upcoming {
		installment := upcoming[i]
		claimed, err := s.repo.ClaimReminder(ctx, installment.ID, now)
		if err != nil {
			results.Errors = append(results.Errors, fmt.Sprintf("reminder %s: %s", installment.ID, err))
			continue
		}
		if !claimed {
			continue
		}

		plan, err := s.repo.FindPlanByID(ctx, installment.PlanID)
		if err != nil || plan == nil {
			s.log.Error("reminder plan lookup failed", zap.String("installment_id", installment.ID.String()), zap.Error(err))
			continue
		}

		err = s.notifier.Notify(ctx, notifydomain.Message{
			MemberID: plan.MemberID,
			Kind:     notifydomain.KindInstallmentUpcoming,
			Subject:  "Upcoming membership installment",
			Body: fmt.Sprintf("Installment %d of %d (%s) will be charged on %s.",
				installment.Number, plan.InstallmentsTotal,
				formatAmount(installment.Amount, installment.Currency),
				installment.ScheduledDate.Format("2006-01-02")),
		})
		if err != nil {
			results.Errors = append(results.Errors, fmt.Sprintf("reminder %s: %s", installment.ID, err))
			continue
		}
		results.PreNotificationsSent++
	}
}

package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	notifydomain "github.com/duesflow/duesflow/internal/notify/domain"
	plandomain "github.com/duesflow/duesflow/internal/plan/domain"
)

func TestRunChargesDueInstallment(t *testing.T) {
	f := setupPlan(t)
	memberID := f.seedMember(t, true)
	start := day(2031, time.March, 1)
	plan := f.createPlan(t, memberID, 10000, 4, start)

	f.gateway.outcome = &chargedomain.ChargeOutcome{Status: chargedomain.OutcomeSucceeded, TransactionID: "pi_run_1"}

	report, err := f.svc.RunPayments(f.at(start.Add(8 * time.Hour)))
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 1, report.Results.PaymentsFound)
	assert.Equal(t, 1, report.Results.PaymentsProcessed)
	assert.Equal(t, 0, report.Results.PaymentsFailed)
	assert.Equal(t, 0, report.Results.RetriesAttempted)
	assert.Empty(t, report.Results.Errors)
	assert.Equal(t, 1, f.gateway.calls)
	assert.Equal(t, "Installment 1 of 4", f.gateway.last.Description)
	assert.Equal(t, int64(2500), f.gateway.last.AmountCents)

	reloaded, err := f.svc.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.InstallmentsPaid)
	assert.Equal(t, plandomain.PlanStatusActive, reloaded.Status)
	require.NotNil(t, reloaded.NextPaymentDate)
	assert.Equal(t, "2031-03-31", reloaded.NextPaymentDate.Format("2006-01-02"))

	first := reloaded.Installments[0]
	assert.Equal(t, plandomain.InstallmentStatusSucceeded, first.Status)
	assert.Equal(t, 1, first.AttemptCount)
	require.NotNil(t, first.PaymentID)
	require.NotNil(t, first.StagingRecordID)

	// The staged intent is fully linked for reconciliation.
	staged, err := f.ledger.Get(context.Background(), *first.StagingRecordID)
	require.NoError(t, err)
	require.NotNil(t, staged.PlanInstallmentID)
	assert.Equal(t, first.ID, *staged.PlanInstallmentID)
	assert.Equal(t, int64(2500), staged.FinalAmount)
	assert.Equal(t, first.PaymentID, staged.PaymentID)

	// Nothing else is due; a rerun the same day is a no-op.
	report, err = f.svc.RunPayments(f.at(start.Add(9 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Results.PaymentsFound)
	assert.Equal(t, 1, f.gateway.calls)
}

func TestRunRetryWaitsForBackoff(t *testing.T) {
	f := setupPlan(t)
	memberID := f.seedMember(t, true)
	start := day(2031, time.March, 1)
	plan := f.createPlan(t, memberID, 4000, 4, start)

	f.gateway.outcome = &chargedomain.ChargeOutcome{
		Status:        chargedomain.OutcomeDeclined,
		TransactionID: "pi_decl_1",
		FailureCode:   "card_declined",
	}

	report, err := f.svc.RunPayments(f.at(start.Add(8 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Results.PaymentsFound)
	assert.Equal(t, 1, report.Results.PaymentsFailed)
	assert.Equal(t, 0, report.Results.RetriesAttempted)
	require.Len(t, report.Results.Errors, 1)
	assert.Contains(t, report.Results.Errors[0], "card_declined")

	reloaded, err := f.svc.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	first := reloaded.Installments[0]
	assert.Equal(t, plandomain.InstallmentStatusPlanned, first.Status)
	assert.Equal(t, 1, first.AttemptCount)
	require.NotNil(t, first.FailureCode)
	assert.Equal(t, "card_declined", *first.FailureCode)

	// Ten hours later the backoff window is still open.
	report, err = f.svc.RunPayments(f.at(start.Add(18 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Results.PaymentsFound)
	assert.Equal(t, 1, f.gateway.calls)

	// Past the 24h interval the attempt is retried.
	report, err = f.svc.RunPayments(f.at(start.Add(33 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Results.PaymentsFound)
	assert.Equal(t, 1, report.Results.PaymentsFailed)
	assert.Equal(t, 1, report.Results.RetriesAttempted)
	assert.Equal(t, 2, f.gateway.calls)
}

func TestRunExhaustsAttemptBudget(t *testing.T) {
	f := setupPlan(t)
	memberID := f.seedMember(t, true)
	start := day(2031, time.March, 1)
	plan := f.createPlan(t, memberID, 4000, 4, start)

	f.gateway.outcome = &chargedomain.ChargeOutcome{
		Status:        chargedomain.OutcomeDeclined,
		TransactionID: "pi_decl_x",
		FailureCode:   "insufficient_funds",
	}

	for i, when := range []time.Time{
		start.Add(8 * time.Hour),
		start.Add(33 * time.Hour),
		start.Add(58 * time.Hour),
	} {
		report, err := f.svc.RunPayments(f.at(when))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Results.PaymentsFound, "run %d", i+1)
		assert.Equal(t, 1, report.Results.PaymentsFailed, "run %d", i+1)
	}
	assert.Equal(t, 3, f.gateway.calls)

	reloaded, err := f.svc.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	first := reloaded.Installments[0]
	assert.Equal(t, plandomain.InstallmentStatusFailed, first.Status)
	assert.Equal(t, 3, first.AttemptCount)

	// The plan itself stays active with a stuck installment.
	assert.Equal(t, plandomain.PlanStatusActive, reloaded.Status)

	attention, err := f.svc.ListAttention(context.Background())
	require.NoError(t, err)
	require.Len(t, attention, 1)
	assert.Equal(t, first.ID, attention[0].InstallmentID)
	assert.Equal(t, plan.ID, attention[0].PlanID)
	assert.Equal(t, 3, attention[0].AttemptCount)
	require.NotNil(t, attention[0].FailureCode)
	assert.Equal(t, "insufficient_funds", *attention[0].FailureCode)

	// Exhausted installments are never picked up again.
	report, err := f.svc.RunPayments(f.at(start.Add(90 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Results.PaymentsFound)
	assert.Equal(t, 3, f.gateway.calls)
}

func TestRunCompletionNotificationSentOnce(t *testing.T) {
	f := setupPlan(t)
	memberID := f.seedMember(t, true)
	start := day(2031, time.March, 1)
	plan := f.createPlan(t, memberID, 5000, 2, start)

	f.gateway.outcome = &chargedomain.ChargeOutcome{Status: chargedomain.OutcomeSucceeded, TransactionID: "pi_done_1"}
	report, err := f.svc.RunPayments(f.at(start.Add(8 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Results.CompletionEmailsSent)

	f.gateway.outcome = &chargedomain.ChargeOutcome{Status: chargedomain.OutcomeSucceeded, TransactionID: "pi_done_2"}
	report, err = f.svc.RunPayments(f.at(start.AddDate(0, 0, 30).Add(8 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Results.PaymentsProcessed)
	assert.Equal(t, 1, report.Results.CompletionEmailsSent)

	reloaded, err := f.svc.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plandomain.PlanStatusCompleted, reloaded.Status)
	assert.Equal(t, 2, reloaded.InstallmentsPaid)
	assert.Nil(t, reloaded.NextPaymentDate)

	// A rerun finds nothing and sends nothing.
	report, err = f.svc.RunPayments(f.at(start.AddDate(0, 0, 30).Add(9 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Results.PaymentsFound)
	assert.Equal(t, 0, report.Results.CompletionEmailsSent)
	assert.Equal(t, 1, f.notifier.count(notifydomain.KindPlanCompleted))
}

func TestRunPendingAwaitsGateway(t *testing.T) {
	f := setupPlan(t)
	memberID := f.seedMember(t, true)
	start := day(2031, time.March, 1)
	plan := f.createPlan(t, memberID, 10000, 4, start)

	f.gateway.outcome = &chargedomain.ChargeOutcome{Status: chargedomain.OutcomeProcessing, TransactionID: "pi_pending_1"}

	report, err := f.svc.RunPayments(f.at(start.Add(8 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Results.PaymentsFound)
	assert.Equal(t, 0, report.Results.PaymentsProcessed)
	assert.Equal(t, 0, report.Results.PaymentsFailed)

	reloaded, err := f.svc.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	first := reloaded.Installments[0]
	assert.Equal(t, plandomain.InstallmentStatusPlanned, first.Status)
	assert.Equal(t, 1, first.AttemptCount)
	assert.Nil(t, first.PaymentID)

	// While the gateway owns the outcome no second charge is attempted,
	// even after the backoff window.
	report, err = f.svc.RunPayments(f.at(start.Add(30 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Results.PaymentsFound)
	assert.Equal(t, 1, f.gateway.calls)
}

func TestRunAppliesWebhookSettledPayment(t *testing.T) {
	f := setupPlan(t)
	memberID := f.seedMember(t, true)
	start := day(2031, time.March, 1)
	plan := f.createPlan(t, memberID, 10000, 4, start)

	f.gateway.outcome = &chargedomain.ChargeOutcome{Status: chargedomain.OutcomeProcessing, TransactionID: "pi_pending_2"}
	_, err := f.svc.RunPayments(f.at(start.Add(8 * time.Hour)))
	require.NoError(t, err)

	result, err := f.charges.HandleGatewayEvent(context.Background(), chargedomain.GatewayEvent{
		Provider:      "stripe",
		EventID:       "evt_plan_1",
		Type:          chargedomain.EventPaymentSucceeded,
		TransactionID: "pi_pending_2",
		OccurredAt:    start.Add(9 * time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Payment)
	assert.Equal(t, chargedomain.PaymentStatusCompleted, result.Payment.Status)

	// The event resolves back to the installment through the staging record.
	reloaded, err := f.svc.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	first := reloaded.Installments[0]
	require.NotNil(t, result.PlanInstallmentID)
	assert.Equal(t, first.ID, *result.PlanInstallmentID)

	// The next run applies the settled payment without touching the gateway.
	report, err := f.svc.RunPayments(f.at(start.Add(33 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Results.PaymentsFound)
	assert.Equal(t, 1, report.Results.PaymentsProcessed)
	assert.Equal(t, 1, f.gateway.calls)

	reloaded, err = f.svc.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plandomain.InstallmentStatusSucceeded, reloaded.Installments[0].Status)
	assert.Equal(t, 1, reloaded.InstallmentsPaid)
}

func TestFinalizeInstallmentAdvancesPlan(t *testing.T) {
	f := setupPlan(t)
	memberID := f.seedMember(t, true)
	start := day(2031, time.March, 1)
	plan := f.createPlan(t, memberID, 10000, 4, start)

	f.gateway.outcome = &chargedomain.ChargeOutcome{Status: chargedomain.OutcomeProcessing, TransactionID: "pi_pending_3"}
	_, err := f.svc.RunPayments(f.at(start.Add(8 * time.Hour)))
	require.NoError(t, err)

	result, err := f.charges.HandleGatewayEvent(context.Background(), chargedomain.GatewayEvent{
		Provider:      "stripe",
		EventID:       "evt_plan_2",
		Type:          chargedomain.EventPaymentSucceeded,
		TransactionID: "pi_pending_3",
		OccurredAt:    start.Add(10 * time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, result.PlanInstallmentID)

	require.NoError(t, f.svc.FinalizeInstallment(context.Background(), *result.PlanInstallmentID, result.Payment))

	reloaded, err := f.svc.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	first := reloaded.Installments[0]
	assert.Equal(t, plandomain.InstallmentStatusSucceeded, first.Status)
	require.NotNil(t, first.PaymentID)
	assert.Equal(t, result.Payment.ID, *first.PaymentID)
	assert.Equal(t, 1, reloaded.InstallmentsPaid)
	require.NotNil(t, reloaded.NextPaymentDate)
	assert.Equal(t, "2031-03-31", reloaded.NextPaymentDate.Format("2006-01-02"))

	// Finalizing twice is a no-op.
	require.NoError(t, f.svc.FinalizeInstallment(context.Background(), first.ID, result.Payment))
	reloaded, err = f.svc.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.InstallmentsPaid)

	// The settled installment is no longer selected.
	report, err := f.svc.RunPayments(f.at(start.Add(33 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Results.PaymentsFound)
	assert.Equal(t, 1, f.gateway.calls)
}

func TestRunInvalidInstrumentFailsAttempt(t *testing.T) {
	f := setupPlan(t)
	memberID := f.seedMember(t, false)
	start := day(2031, time.March, 1)
	plan := f.createPlan(t, memberID, 10000, 4, start)

	report, err := f.svc.RunPayments(f.at(start.Add(8 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Results.PaymentsFound)
	assert.Equal(t, 1, report.Results.PaymentsFailed)
	require.Len(t, report.Results.Errors, 1)
	assert.Contains(t, report.Results.Errors[0], "invalid_payment_method")
	assert.Zero(t, f.gateway.calls)

	reloaded, err := f.svc.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	first := reloaded.Installments[0]
	assert.Equal(t, plandomain.InstallmentStatusPlanned, first.Status)
	assert.Equal(t, 1, first.AttemptCount)
	require.NotNil(t, first.FailureCode)
	assert.Equal(t, "invalid_payment_method", *first.FailureCode)
}

func TestRunGatewayOutageRetriesWithFreshStaging(t *testing.T) {
	f := setupPlan(t)
	memberID := f.seedMember(t, true)
	start := day(2031, time.March, 1)
	plan := f.createPlan(t, memberID, 10000, 4, start)

	f.gateway.err = errors.New("connect timeout")
	report, err := f.svc.RunPayments(f.at(start.Add(8 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Results.PaymentsFailed)
	require.Len(t, report.Results.Errors, 1)
	assert.Contains(t, report.Results.Errors[0], "gateway_unavailable")

	reloaded, err := f.svc.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	firstStaging := reloaded.Installments[0].StagingRecordID
	require.NotNil(t, firstStaging)

	// The outage clears; the retry stages a fresh intent because the first
	// one is spent by its failed payment row.
	f.gateway.err = nil
	f.gateway.outcome = &chargedomain.ChargeOutcome{Status: chargedomain.OutcomeSucceeded, TransactionID: "pi_recovered"}

	report, err = f.svc.RunPayments(f.at(start.Add(33 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Results.PaymentsProcessed)
	assert.Equal(t, 1, report.Results.RetriesAttempted)

	reloaded, err = f.svc.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	first := reloaded.Installments[0]
	assert.Equal(t, plandomain.InstallmentStatusSucceeded, first.Status)
	require.NotNil(t, first.StagingRecordID)
	assert.NotEqual(t, *firstStaging, *first.StagingRecordID)

	payments, err := f.charges.ListByMember(context.Background(), memberID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
}

func TestRunSendsReminderOnce(t *testing.T) {
	f := setupPlan(t)
	memberID := f.seedMember(t, true)
	start := day(2031, time.March, 4)
	f.createPlan(t, memberID, 10000, 4, start)

	// Three days ahead of the first installment.
	report, err := f.svc.RunPayments(f.at(day(2031, time.March, 1).Add(8 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Results.PaymentsFound)
	assert.Equal(t, 1, report.Results.PreNotificationsSent)
	assert.Equal(t, 1, f.notifier.count(notifydomain.KindInstallmentUpcoming))

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, memberID, f.notifier.sent[0].MemberID)
	assert.Contains(t, f.notifier.sent[0].Body, "2031-03-04")

	// The reminder claim makes the rerun a no-op.
	report, err = f.svc.RunPayments(f.at(day(2031, time.March, 1).Add(9 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Results.PreNotificationsSent)
	assert.Equal(t, 1, f.notifier.count(notifydomain.KindInstallmentUpcoming))
}

func TestRunReminderFailureIsReported(t *testing.T) {
	f := setupPlan(t)
	memberID := f.seedMember(t, true)
	start := day(2031, time.March, 4)
	f.createPlan(t, memberID, 10000, 4, start)

	f.notifier.err = errors.New("smtp down")
	report, err := f.svc.RunPayments(f.at(day(2031, time.March, 1).Add(8 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Results.PreNotificationsSent)
	require.Len(t, report.Results.Errors, 1)
	assert.Contains(t, report.Results.Errors[0], "smtp down")

	// The claim already happened, so reminders never duplicate.
	f.notifier.err = nil
	report, err = f.svc.RunPayments(f.at(day(2031, time.March, 1).Add(9 * time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Results.PreNotificationsSent)
}

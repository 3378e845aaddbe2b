package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/duesflow/duesflow/internal/billing/domain"
	"github.com/duesflow/duesflow/internal/billing/service"
	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	chargeservice "github.com/duesflow/duesflow/internal/charge/service"
	"github.com/duesflow/duesflow/internal/clock"
	"github.com/duesflow/duesflow/internal/config"
	discountdomain "github.com/duesflow/duesflow/internal/discount/domain"
	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
	ledgerservice "github.com/duesflow/duesflow/internal/ledger/service"
	memberdomain "github.com/duesflow/duesflow/internal/member/domain"
	memberservice "github.com/duesflow/duesflow/internal/member/service"
	notifydomain "github.com/duesflow/duesflow/internal/notify/domain"
	"github.com/duesflow/duesflow/internal/observability"
	plandomain "github.com/duesflow/duesflow/internal/plan/domain"
	planservice "github.com/duesflow/duesflow/internal/plan/service"
	pricingservice "github.com/duesflow/duesflow/internal/pricing/service"
	registrationdomain "github.com/duesflow/duesflow/internal/registration/domain"
	registrationservice "github.com/duesflow/duesflow/internal/registration/service"
	seasondomain "github.com/duesflow/duesflow/internal/season/domain"
	"github.com/duesflow/duesflow/internal/security/vault"
	testclockctx "github.com/duesflow/duesflow/internal/testclock/context"
)

// testRunContext pins the payment run clock to a simulated instant.
func testRunContext(when time.Time) context.Context {
	return testclockctx.WithSimulatedTime(context.Background(), when)
}

type fakeGateway struct {
	outcome *chargedomain.ChargeOutcome
	err     error

	calls int
	last  chargedomain.ChargeParams
}

func (f *fakeGateway) CreateCharge(_ context.Context, params chargedomain.ChargeParams) (*chargedomain.ChargeOutcome, error) {
	f.calls++
	f.last = params
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func (f *fakeGateway) Provider() string { return "fake" }

type captureNotifier struct {
	mu   sync.Mutex
	sent []notifydomain.Message
}

func (c *captureNotifier) Notify(_ context.Context, msg notifydomain.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureNotifier) count(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, msg := range c.sent {
		if msg.Kind == kind {
			n++
		}
	}
	return n
}

type billingFixture struct {
	svc           billingdomain.Service
	registrations registrationdomain.Service
	plans         plandomain.Service
	ledger        ledgerdomain.Service
	gateway       *fakeGateway
	notifier      *captureNotifier
	node          *snowflake.Node
	db            *gorm.DB

	member   memberdomain.Member
	season   seasondomain.Season
	category seasondomain.RegistrationCategory
}

func setupBilling(t *testing.T) *billingFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&seasondomain.Season{},
		&seasondomain.RegistrationCategory{},
		&registrationdomain.Registration{},
		&discountdomain.DiscountCategory{},
		&discountdomain.DiscountCode{},
		&ledgerdomain.StagingRecord{},
		&ledgerdomain.StagingLineItem{},
		&chargedomain.Payment{},
		&chargedomain.GatewayEventRecord{},
		&plandomain.PaymentPlan{},
		&plandomain.Installment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	sealer, err := vault.New("test-key")
	require.NoError(t, err)

	members := memberservice.NewService(memberservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Vault: sealer,
	})
	ledger := ledgerservice.NewService(ledgerservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	gw := &fakeGateway{}
	charges := chargeservice.NewService(chargeservice.ServiceParam{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Gateway: gw,
		Ledger:  ledger,
		Members: members,
		Clock:   clock.SystemClock{},
		Metrics: observability.NewMetrics(),
	})
	notifier := &captureNotifier{}
	plans := planservice.NewService(planservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Cfg: config.Config{Payments: config.PaymentsConfig{
			MaxAttempts:             3,
			RetryIntervalHours:      24,
			InstallmentIntervalDays: 30,
			PlanInstallments:        4,
			ReminderDays:            3,
		}},
		Ledger:   ledger,
		Charges:  charges,
		Notifier: notifier,
		Clock:    clock.SystemClock{},
		Redis:    nil,
		Metrics:  observability.NewMetrics(),
	})
	pricing := pricingservice.NewService(pricingservice.ServiceParam{DB: db, Log: zap.NewNop()})
	registrations := registrationservice.NewService(registrationservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})

	f := &billingFixture{
		svc: service.NewService(service.ServiceParam{
			Log:           zap.NewNop(),
			Registrations: registrations,
			Pricing:       pricing,
			Ledger:        ledger,
			Charges:       charges,
			Plans:         plans,
			Notifier:      notifier,
		}),
		registrations: registrations,
		plans:         plans,
		ledger:        ledger,
		gateway:       gw,
		notifier:      notifier,
		node:          node,
		db:            db,
	}

	member, err := members.Create(context.Background(), memberdomain.CreateRequest{
		Email:    "billing@example.com",
		FullName: "Jordan Reyes",
	})
	require.NoError(t, err)
	_, err = members.AttachInstrument(context.Background(), memberdomain.AttachInstrumentRequest{
		MemberID:          member.ID,
		InstrumentID:      "pm_test_123",
		GatewayCustomerID: "cus_test_456",
		Verified:          true,
	})
	require.NoError(t, err)
	f.member = *member

	f.season = seasondomain.Season{
		ID:       node.Generate(),
		Name:     "Fall",
		Slug:     "fall",
		StartsOn: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndsOn:   time.Date(2027, 5, 31, 0, 0, 0, 0, time.UTC),
		Active:   true,
	}
	require.NoError(t, db.Create(&f.season).Error)

	f.category = seasondomain.RegistrationCategory{
		ID:             node.Generate(),
		SeasonID:       f.season.ID,
		Name:           "Adult",
		BasePriceCents: 10000,
		Currency:       "USD",
		AccountingCode: "REG-ADULT",
	}
	require.NoError(t, db.Create(&f.category).Error)

	return f
}

func (f *billingFixture) register(t *testing.T) *registrationdomain.Registration {
	t.Helper()
	reg, err := f.registrations.Register(context.Background(), registrationdomain.RegisterRequest{
		MemberID:   f.member.ID,
		SeasonID:   f.season.ID,
		CategoryID: f.category.ID,
	})
	require.NoError(t, err)
	return reg
}

func (f *billingFixture) seedCode(t *testing.T, percent int, cap *int64) snowflake.ID {
	t.Helper()
	category := discountdomain.DiscountCategory{
		ID:               f.node.Generate(),
		Name:             "Promo " + f.node.Generate().String(),
		SeasonalCapCents: cap,
		AccountingCode:   "DISC-PROMO",
	}
	require.NoError(t, f.db.Create(&category).Error)

	code := discountdomain.DiscountCode{
		ID:         f.node.Generate(),
		CategoryID: category.ID,
		Code:       "PROMO" + f.node.Generate().String(),
		Percent:    percent,
		Active:     true,
	}
	require.NoError(t, f.db.Create(&code).Error)
	return code.ID
}

func (f *billingFixture) registrationStatus(t *testing.T, id snowflake.ID) string {
	t.Helper()
	reg, err := f.registrations.Get(context.Background(), id)
	require.NoError(t, err)
	return reg.Status
}

func TestChargeRegistrationFullPrice(t *testing.T) {
	f := setupBilling(t)
	reg := f.register(t)
	f.gateway.outcome = &chargedomain.ChargeOutcome{TransactionID: "txn_1", Status: chargedomain.OutcomeSucceeded}

	result, err := f.svc.ChargeRegistration(context.Background(), billingdomain.ChargeRequest{
		RegistrationID: reg.ID,
	})
	require.NoError(t, err)

	require.NotNil(t, result.Payment)
	assert.Equal(t, chargedomain.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, int64(10000), result.Payment.Amount)
	assert.Equal(t, int64(10000), f.gateway.last.AmountCents)
	assert.Equal(t, "pm_test_123", f.gateway.last.InstrumentID)

	require.NotNil(t, result.Staging)
	assert.Equal(t, int64(10000), result.Staging.FinalAmount)
	require.NotNil(t, result.Staging.PaymentID)
	assert.Equal(t, result.Payment.ID, *result.Staging.PaymentID)
	require.NotNil(t, result.Staging.GatewayTransactionID)
	assert.Equal(t, "txn_1", *result.Staging.GatewayTransactionID)
	require.Len(t, result.Staging.LineItems, 1)
	assert.Equal(t, "REG-ADULT", result.Staging.LineItems[0].AccountingCode)

	assert.Equal(t, registrationdomain.StatusConfirmed, f.registrationStatus(t, reg.ID))
	assert.Equal(t, 1, f.notifier.count(notifydomain.KindPaymentReceipt))
}

func TestChargeRegistrationWithDiscount(t *testing.T) {
	f := setupBilling(t)
	reg := f.register(t)
	codeID := f.seedCode(t, 25, nil)
	f.gateway.outcome = &chargedomain.ChargeOutcome{TransactionID: "txn_2", Status: chargedomain.OutcomeSucceeded}

	result, err := f.svc.ChargeRegistration(context.Background(), billingdomain.ChargeRequest{
		RegistrationID: reg.ID,
		DiscountCodeID: &codeID,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7500), f.gateway.last.AmountCents)
	assert.Equal(t, int64(10000), result.Staging.TotalAmount)
	assert.Equal(t, int64(2500), result.Staging.DiscountAmount)
	assert.Equal(t, int64(7500), result.Staging.FinalAmount)

	require.Len(t, result.Staging.LineItems, 2)
	registrationLine := result.Staging.LineItems[0]
	discountLine := result.Staging.LineItems[1]
	if registrationLine.Kind != ledgerdomain.LineKindRegistration {
		registrationLine, discountLine = discountLine, registrationLine
	}
	assert.Equal(t, int64(10000), registrationLine.Amount)
	assert.Equal(t, ledgerdomain.LineKindDiscount, discountLine.Kind)
	assert.Equal(t, int64(-2500), discountLine.Amount)
	assert.Equal(t, "DISC-PROMO", discountLine.AccountingCode)
	require.NotNil(t, discountLine.DiscountCodeID)
	assert.Equal(t, codeID, *discountLine.DiscountCodeID)
}

func TestChargeRegistrationDeclined(t *testing.T) {
	f := setupBilling(t)
	reg := f.register(t)
	f.gateway.outcome = &chargedomain.ChargeOutcome{
		TransactionID: "txn_3",
		Status:        chargedomain.OutcomeDeclined,
		FailureCode:   "insufficient_funds",
	}

	result, err := f.svc.ChargeRegistration(context.Background(), billingdomain.ChargeRequest{
		RegistrationID: reg.ID,
	})
	require.NoError(t, err)

	require.NotNil(t, result.Payment)
	assert.Equal(t, chargedomain.PaymentStatusFailed, result.Payment.Status)
	assert.Equal(t, registrationdomain.StatusPending, f.registrationStatus(t, reg.ID))
	assert.Equal(t, 1, f.notifier.count(notifydomain.KindPaymentFailed))
	assert.Equal(t, 0, f.notifier.count(notifydomain.KindPaymentReceipt))
}

func TestChargeRegistrationGatewayOutage(t *testing.T) {
	f := setupBilling(t)
	reg := f.register(t)
	f.gateway.err = context.DeadlineExceeded

	result, err := f.svc.ChargeRegistration(context.Background(), billingdomain.ChargeRequest{
		RegistrationID: reg.ID,
	})
	require.ErrorIs(t, err, chargedomain.ErrGatewayUnavailable)

	require.NotNil(t, result)
	require.NotNil(t, result.Payment)
	assert.Equal(t, chargedomain.PaymentStatusFailed, result.Payment.Status)
	assert.Equal(t, registrationdomain.StatusPending, f.registrationStatus(t, reg.ID))
}

func TestChargeRegistrationFree(t *testing.T) {
	f := setupBilling(t)
	reg := f.register(t)
	codeID := f.seedCode(t, 100, nil)

	result, err := f.svc.ChargeRegistration(context.Background(), billingdomain.ChargeRequest{
		RegistrationID: reg.ID,
		DiscountCodeID: &codeID,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, f.gateway.calls)
	require.NotNil(t, result.Payment)
	assert.Equal(t, chargedomain.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, int64(0), result.Payment.Amount)
	assert.True(t, result.Staging.Free)
	assert.Equal(t, registrationdomain.StatusConfirmed, f.registrationStatus(t, reg.ID))
	// A zero payment confirms the spot without a receipt.
	assert.Equal(t, 0, f.notifier.count(notifydomain.KindPaymentReceipt))
}

func TestChargeRegistrationGuards(t *testing.T) {
	f := setupBilling(t)
	reg := f.register(t)
	f.gateway.outcome = &chargedomain.ChargeOutcome{TransactionID: "txn_4", Status: chargedomain.OutcomeSucceeded}

	_, err := f.svc.ChargeRegistration(context.Background(), billingdomain.ChargeRequest{RegistrationID: reg.ID})
	require.NoError(t, err)

	_, err = f.svc.ChargeRegistration(context.Background(), billingdomain.ChargeRequest{RegistrationID: reg.ID})
	assert.ErrorIs(t, err, billingdomain.ErrAlreadyCharged)

	canceled := f.register(t)
	require.NoError(t, f.registrations.Cancel(context.Background(), canceled.ID))
	_, err = f.svc.ChargeRegistration(context.Background(), billingdomain.ChargeRequest{RegistrationID: canceled.ID})
	assert.ErrorIs(t, err, registrationdomain.ErrRegistrationCanceled)

	_, err = f.svc.ChargeRegistration(context.Background(), billingdomain.ChargeRequest{RegistrationID: f.node.Generate()})
	assert.ErrorIs(t, err, registrationdomain.ErrRegistrationNotFound)
}

func TestCreatePaymentPlanConfirmsRegistration(t *testing.T) {
	f := setupBilling(t)
	reg := f.register(t)
	codeID := f.seedCode(t, 25, nil)
	start := time.Date(2031, 3, 1, 0, 0, 0, 0, time.UTC)

	plan, err := f.svc.CreatePaymentPlan(context.Background(), billingdomain.CreatePlanRequest{
		RegistrationID: reg.ID,
		DiscountCodeID: &codeID,
		StartDate:      &start,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7500), plan.TotalAmount)
	assert.Equal(t, "USD", plan.Currency)
	assert.Equal(t, "REG-ADULT", plan.AccountingCode)
	assert.Equal(t, 4, plan.InstallmentsTotal)
	assert.Equal(t, reg.ID, plan.RegistrationID)

	// No money moves until the first scheduled run.
	assert.Equal(t, 0, f.gateway.calls)
	assert.Equal(t, registrationdomain.StatusConfirmed, f.registrationStatus(t, reg.ID))
}

func TestCreatePaymentPlanRejectsFree(t *testing.T) {
	f := setupBilling(t)
	reg := f.register(t)
	codeID := f.seedCode(t, 100, nil)

	_, err := f.svc.CreatePaymentPlan(context.Background(), billingdomain.CreatePlanRequest{
		RegistrationID: reg.ID,
		DiscountCodeID: &codeID,
	})
	assert.ErrorIs(t, err, plandomain.ErrInvalidPlan)
	assert.Equal(t, registrationdomain.StatusPending, f.registrationStatus(t, reg.ID))
}

func TestProcessGatewayEventSettlesPendingCharge(t *testing.T) {
	f := setupBilling(t)
	reg := f.register(t)
	f.gateway.outcome = &chargedomain.ChargeOutcome{TransactionID: "txn_async", Status: chargedomain.OutcomeProcessing}

	result, err := f.svc.ChargeRegistration(context.Background(), billingdomain.ChargeRequest{RegistrationID: reg.ID})
	require.NoError(t, err)
	assert.Equal(t, chargedomain.PaymentStatusPending, result.Payment.Status)
	assert.Equal(t, registrationdomain.StatusPending, f.registrationStatus(t, reg.ID))
	assert.Equal(t, 0, f.notifier.count(notifydomain.KindPaymentReceipt))

	event := chargedomain.GatewayEvent{
		Provider:      "fake",
		EventID:       "evt_async_1",
		Type:          chargedomain.EventPaymentSucceeded,
		TransactionID: "txn_async",
		OccurredAt:    time.Now().UTC(),
	}
	settled, err := f.svc.ProcessGatewayEvent(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, settled.Settled)
	assert.Equal(t, chargedomain.PaymentStatusCompleted, settled.Payment.Status)

	assert.Equal(t, registrationdomain.StatusConfirmed, f.registrationStatus(t, reg.ID))
	assert.Equal(t, 1, f.notifier.count(notifydomain.KindPaymentReceipt))

	// Redelivery changes nothing and sends nothing.
	replay, err := f.svc.ProcessGatewayEvent(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, 1, f.notifier.count(notifydomain.KindPaymentReceipt))
}

func TestProcessGatewayEventFailedCharge(t *testing.T) {
	f := setupBilling(t)
	reg := f.register(t)
	f.gateway.outcome = &chargedomain.ChargeOutcome{TransactionID: "txn_async", Status: chargedomain.OutcomeProcessing}

	_, err := f.svc.ChargeRegistration(context.Background(), billingdomain.ChargeRequest{RegistrationID: reg.ID})
	require.NoError(t, err)

	result, err := f.svc.ProcessGatewayEvent(context.Background(), chargedomain.GatewayEvent{
		Provider:      "fake",
		EventID:       "evt_async_2",
		Type:          chargedomain.EventPaymentFailed,
		TransactionID: "txn_async",
		FailureCode:   "card_declined",
		OccurredAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.True(t, result.Settled)
	assert.Equal(t, chargedomain.PaymentStatusFailed, result.Payment.Status)

	assert.Equal(t, registrationdomain.StatusPending, f.registrationStatus(t, reg.ID))
	assert.Equal(t, 1, f.notifier.count(notifydomain.KindPaymentFailed))
}

func TestProcessGatewayEventAdvancesInstallment(t *testing.T) {
	f := setupBilling(t)
	reg := f.register(t)
	start := time.Date(2031, 3, 1, 0, 0, 0, 0, time.UTC)

	plan, err := f.svc.CreatePaymentPlan(context.Background(), billingdomain.CreatePlanRequest{
		RegistrationID: reg.ID,
		StartDate:      &start,
	})
	require.NoError(t, err)

	f.gateway.outcome = &chargedomain.ChargeOutcome{TransactionID: "txn_inst", Status: chargedomain.OutcomeProcessing}
	runCtx := testRunContext(start)
	report, err := f.plans.RunPayments(runCtx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Results.PaymentsFound)
	assert.Equal(t, 0, report.Results.PaymentsProcessed)

	result, err := f.svc.ProcessGatewayEvent(context.Background(), chargedomain.GatewayEvent{
		Provider:      "fake",
		EventID:       "evt_inst_1",
		Type:          chargedomain.EventPaymentSucceeded,
		TransactionID: "txn_inst",
		OccurredAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.True(t, result.Settled)
	require.NotNil(t, result.PlanInstallmentID)

	got, err := f.plans.Get(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.InstallmentsPaid)
	require.NotNil(t, got.NextPaymentDate)
	assert.Equal(t, "2031-03-31", got.NextPaymentDate.Format("2006-01-02"))
	assert.Equal(t, 1, f.notifier.count(notifydomain.KindPaymentReceipt))
}

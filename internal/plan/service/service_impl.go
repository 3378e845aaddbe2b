package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	"github.com/duesflow/duesflow/internal/clock"
	"github.com/duesflow/duesflow/internal/config"
	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
	notifydomain "github.com/duesflow/duesflow/internal/notify/domain"
	"github.com/duesflow/duesflow/internal/observability"
	plandomain "github.com/duesflow/duesflow/internal/plan/domain"
	"github.com/duesflow/duesflow/internal/plan/repository"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryHours   = 24
	defaultIntervalDays = 30
	defaultInstallments = 4
	defaultReminderDays = 3
)

// engineConfig is the normalized installment policy. Zero or negative
// configured values fall back to the defaults.
type engineConfig struct {
	maxAttempts   int
	retryInterval time.Duration
	intervalDays  int
	installments  int
	reminderDays  int
}

func newEngineConfig(cfg config.PaymentsConfig) engineConfig {
	out := engineConfig{
		maxAttempts:  cfg.MaxAttempts,
		intervalDays: cfg.InstallmentIntervalDays,
		installments: cfg.PlanInstallments,
		reminderDays: cfg.ReminderDays,
	}
	if out.maxAttempts <= 0 {
		out.maxAttempts = defaultMaxAttempts
	}
	hours := cfg.RetryIntervalHours
	if hours <= 0 {
		hours = defaultRetryHours
	}
	out.retryInterval = time.Duration(hours) * time.Hour
	if out.intervalDays <= 0 {
		out.intervalDays = defaultIntervalDays
	}
	if out.installments <= 0 {
		out.installments = defaultInstallments
	}
	if out.reminderDays <= 0 {
		out.reminderDays = defaultReminderDays
	}
	return out
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	cfg      engineConfig
	repo     plandomain.Repository
	ledger   ledgerdomain.Service
	charges  chargedomain.Service
	notifier notifydomain.Dispatcher
	clock    clock.Clock
	redis    *goredis.Client
	metrics  *observability.Metrics
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Cfg      config.Config
	Ledger   ledgerdomain.Service
	Charges  chargedomain.Service
	Notifier notifydomain.Dispatcher
	Clock    clock.Clock
	Redis    *goredis.Client
	Metrics  *observability.Metrics
}

func NewService(p ServiceParam) plandomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("plan.service"),

		genID:    p.GenID,
		cfg:      newEngineConfig(p.Cfg.Payments),
		repo:     repository.NewRepository(p.DB),
		ledger:   p.Ledger,
		charges:  p.Charges,
		notifier: p.Notifier,
		clock:    p.Clock,
		redis:    p.Redis,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req plandomain.CreateRequest) (*plandomain.PaymentPlan, error) {
	if req.MemberID == 0 || req.RegistrationID == 0 || req.SeasonID == 0 || req.TotalAmount <= 0 {
		return nil, plandomain.ErrInvalidPlan
	}
	count := req.Installments
	if count == 0 {
		count = s.cfg.installments
	}
	if count < 1 || req.TotalAmount < int64(count) {
		return nil, plandomain.ErrInvalidPlan
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	start := dateOnly(s.clock.Now(ctx))
	if req.StartDate != nil {
		start = dateOnly(*req.StartDate)
	}

	// Equal split; remainder cents land on the first installment.
	per := req.TotalAmount / int64(count)
	first := req.TotalAmount - per*int64(count-1)

	firstDate := start
	plan := &plandomain.PaymentPlan{
		ID:                s.genID.Generate(),
		MemberID:          req.MemberID,
		RegistrationID:    req.RegistrationID,
		SeasonID:          req.SeasonID,
		TotalAmount:       req.TotalAmount,
		Currency:          currency,
		AccountingCode:    strings.TrimSpace(req.AccountingCode),
		InstallmentsTotal: count,
		NextPaymentDate:   &firstDate,
		Status:            plandomain.PlanStatusActive,
	}

	installments := make([]plandomain.Installment, 0, count)
	for number := 1; number <= count; number++ {
		amount := per
		if number == 1 {
			amount = first
		}
		installments = append(installments, plandomain.Installment{
			ID:            s.genID.Generate(),
			Number:        number,
			Amount:        amount,
			Currency:      currency,
			ScheduledDate: start.AddDate(0, 0, (number-1)*s.cfg.intervalDays),
			Status:        plandomain.InstallmentStatusPlanned,
		})
	}

	if err := s.repo.InsertPlan(ctx, plan, installments); err != nil {
		return nil, err
	}

	s.log.Info("payment plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("member_id", plan.MemberID.String()),
		zap.Int("installments", count),
		zap.Int64("total_amount", plan.TotalAmount),
	)
	return plan, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*plandomain.PaymentPlan, error) {
	plan, err := s.repo.FindPlanByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) ListByMember(ctx context.Context, memberID snowflake.ID) ([]plandomain.PaymentPlan, error) {
	return s.repo.ListPlansByMember(ctx, memberID)
}

func (s *Service) ListAttention(ctx context.Context) ([]plandomain.AttentionRow, error) {
	return s.repo.AttentionInstallments(ctx)
}

func (s *Service) FinalizeInstallment(ctx context.Context, installmentID snowflake.ID, payment *chargedomain.Payment) error {
	if payment == nil {
		return nil
	}
	installment, err := s.repo.FindInstallmentByID(ctx, installmentID)
	if err != nil {
		return err
	}
	if installment == nil {
		return plandomain.ErrInstallmentNotFound
	}
	if installment.Status == plandomain.InstallmentStatusSucceeded {
		return nil
	}

	switch payment.Status {
	case chargedomain.PaymentStatusCompleted:
		return s.succeedInstallment(ctx, installment, payment.ID, nil)
	case chargedomain.PaymentStatusFailed:
		code := "payment_failed"
		if payment.FailureCode != nil && *payment.FailureCode != "" {
			code = *payment.FailureCode
		}
		// The attempt was already counted when the charge was claimed.
		return s.failInstallment(ctx, installment, installment.AttemptCount, code)
	default:
		return nil
	}
}

func (s *Service) UpdateInstallmentSchedule(ctx context.Context, installmentID snowflake.ID, date time.Time) (*plandomain.Installment, error) {
	installment, err := s.repo.FindInstallmentByID(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if installment == nil {
		return nil, plandomain.ErrInstallmentNotFound
	}
	if installment.Status == plandomain.InstallmentStatusSucceeded {
		return nil, plandomain.ErrInstallmentSettled
	}

	moved := dateOnly(date)
	if err := s.repo.UpdateInstallmentDate(ctx, installmentID, moved); err != nil {
		return nil, err
	}
	if err := s.refreshNextDate(ctx, installment.PlanID); err != nil {
		return nil, err
	}

	s.log.Info("installment rescheduled",
		zap.String("installment_id", installmentID.String()),
		zap.String("plan_id", installment.PlanID.String()),
		zap.Time("from", installment.ScheduledDate),
		zap.Time("to", moved),
	)
	return s.repo.FindInstallmentByID(ctx, installmentID)
}

func (s *Service) ShiftPlanSchedule(ctx context.Context, planID snowflake.ID, days int) (int64, error) {
	plan, err := s.repo.FindPlanByID(ctx, planID)
	if err != nil {
		return 0, err
	}
	if plan == nil {
		return 0, plandomain.ErrPlanNotFound
	}
	if days == 0 {
		return 0, nil
	}

	shifted, err := s.repo.ShiftPendingInstallments(ctx, planID, days)
	if err != nil {
		return 0, err
	}
	if err := s.refreshNextDate(ctx, planID); err != nil {
		return 0, err
	}

	s.log.Info("plan schedule shifted",
		zap.String("plan_id", planID.String()),
		zap.Int("days", days),
		zap.Int64("installments", shifted),
	)
	return shifted, nil
}

func (s *Service) refreshNextDate(ctx context.Context, planID snowflake.ID) error {
	next, err := s.repo.NextPlannedDate(ctx, planID)
	if err != nil {
		return err
	}
	return s.repo.SetPlanNextDate(ctx, planID, next)
}

// succeedInstallment settles a paid installment and advances the plan. When
// the plan row claim says every installment is paid, exactly one caller wins
// the flip and sends the completion notification.
func (s *Service) succeedInstallment(ctx context.Context, installment *plandomain.Installment, paymentID snowflake.ID, results *plandomain.RunResults) error {
	pid := paymentID
	if err := s.repo.SettleAttempt(ctx, installment.ID, plandomain.InstallmentStatusSucceeded, nil, &pid); err != nil {
		return err
	}
	next, err := s.repo.NextPlannedDate(ctx, installment.PlanID)
	if err != nil {
		return err
	}
	if err := s.repo.AdvancePlan(ctx, installment.PlanID, next); err != nil {
		return err
	}

	s.metrics.InstallmentAttempts.WithLabelValues("succeeded").Inc()
	s.log.Info("installment paid",
		zap.String("installment_id", installment.ID.String()),
		zap.String("plan_id", installment.PlanID.String()),
		zap.Int("number", installment.Number),
		zap.Int64("amount", installment.Amount),
	)

	completed, err := s.repo.CompletePlan(ctx, installment.PlanID)
	if err != nil {
		return err
	}
	if completed {
		s.log.Info("payment plan completed", zap.String("plan_id", installment.PlanID.String()))
		if s.sendCompletion(ctx, installment.PlanID) && results != nil {
			results.CompletionEmailsSent++
		}
	}
	return nil
}

// failInstallment records a failed attempt. Below the attempt budget the
// installment returns to planned; at the budget it goes terminal and the plan
// stays active with a stuck installment for operators to resolve.
func (s *Service) failInstallment(ctx context.Context, installment *plandomain.Installment, attempts int, code string) error {
	status := plandomain.InstallmentStatusPlanned
	if attempts >= s.cfg.maxAttempts {
		status = plandomain.InstallmentStatusFailed
	}

	failureCode := code
	if err := s.repo.SettleAttempt(ctx, installment.ID, status, &failureCode, nil); err != nil {
		return err
	}

	s.metrics.InstallmentAttempts.WithLabelValues("failed").Inc()
	if status == plandomain.InstallmentStatusFailed {
		s.log.Error("installment attempts exhausted",
			zap.String("installment_id", installment.ID.String()),
			zap.String("plan_id", installment.PlanID.String()),
			zap.Int("number", installment.Number),
			zap.Int("attempts", attempts),
			zap.String("failure_code", code),
			zap.Bool("operator_alert", true),
		)
	} else {
		s.log.Warn("installment attempt failed",
			zap.String("installment_id", installment.ID.String()),
			zap.String("plan_id", installment.PlanID.String()),
			zap.Int("number", installment.Number),
			zap.Int("attempts", attempts),
			zap.String("failure_code", code),
		)
	}
	return nil
}

func (s *Service) sendCompletion(ctx context.Context, planID snowflake.ID) bool {
	plan, err := s.repo.FindPlanByID(ctx, planID)
	if err != nil || plan == nil {
		s.log.Error("completed plan reload failed", zap.String("plan_id", planID.String()), zap.Error(err))
		return false
	}

	err = s.notifier.Notify(ctx, notifydomain.Message{
		MemberID: plan.MemberID,
		Kind:     notifydomain.KindPlanCompleted,
		Subject:  "Payment plan complete",
		Body: fmt.Sprintf("All %d installments are paid. Total %s.",
			plan.InstallmentsTotal, formatAmount(plan.TotalAmount, plan.Currency)),
	})
	if err != nil {
		s.log.Error("completion notification failed",
			zap.String("plan_id", planID.String()),
			zap.Error(err),
		)
		return false
	}
	return true
}

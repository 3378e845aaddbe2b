// Package scheduler runs the recurring billing jobs: the payment run on its
// cron schedule and the gateway event retention sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	"github.com/duesflow/duesflow/internal/config"
	plandomain "github.com/duesflow/duesflow/internal/plan/domain"
)

const (
	defaultRunSchedule = "0 6 * * *"
	retentionSchedule  = "0 3 * * *"
)

// PaymentRunner is the slice of the plan service the scheduler drives.
type PaymentRunner interface {
	RunPayments(ctx context.Context) (*plandomain.RunReport, error)
}

// EventPruner drops aged webhook dedup records.
type EventPruner interface {
	PruneEventRecords(ctx context.Context, olderThan time.Duration) (int64, error)
}

type Scheduler struct {
	cron    *cron.Cron
	log     *zap.Logger
	cfg     config.Config
	plans   PaymentRunner
	charges EventPruner
}

type Param struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Plans   plandomain.Service
	Charges chargedomain.Service
}

func New(p Param) *Scheduler {
	return newScheduler(p.Log, p.Cfg, p.Plans, p.Charges)
}

func newScheduler(log *zap.Logger, cfg config.Config, plans PaymentRunner, charges EventPruner) *Scheduler {
	log = log.Named("scheduler")
	cronLog := cron.PrintfLogger(zap.NewStdLog(log))
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLog))),
		log:     log,
		cfg:     cfg,
		plans:   plans,
		charges: charges,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	schedule := s.cfg.Payments.RunSchedule
	if schedule == "" {
		schedule = defaultRunSchedule
	}
	if _, err := s.cron.AddFunc(schedule, s.runPayments); err != nil {
		return fmt.Errorf("schedule payment run: %w", err)
	}
	s.log.Info("scheduled payment run", zap.String("schedule", schedule))

	if days := s.cfg.Payments.EventRetentionDays; days > 0 {
		if _, err := s.cron.AddFunc(retentionSchedule, s.pruneGatewayEvents); err != nil {
			return fmt.Errorf("schedule gateway event cleanup: %w", err)
		}
		s.log.Info("scheduled gateway event cleanup",
			zap.String("schedule", retentionSchedule),
			zap.Int("retention_days", days),
		)
	} else {
		s.log.Info("gateway event retention disabled", zap.Int("days", days))
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("shutdown deadline reached with jobs still running")
	}
}

func (s *Scheduler) runPayments() {
	report, err := s.plans.RunPayments(context.Background())
	if err != nil {
		if errors.Is(err, plandomain.ErrRunInProgress) {
			s.log.Info("payment run already in progress, skipping")
			return
		}
		s.log.Error("scheduled payment run failed", zap.Error(err))
		return
	}
	s.log.Info("scheduled payment run finished",
		zap.Int("found", report.Results.PaymentsFound),
		zap.Int("processed", report.Results.PaymentsProcessed),
		zap.Int("failed", report.Results.PaymentsFailed),
		zap.Int("errors", len(report.Results.Errors)),
	)
}

func (s *Scheduler) pruneGatewayEvents() {
	retention := time.Duration(s.cfg.Payments.EventRetentionDays) * 24 * time.Hour
	removed, err := s.charges.PruneEventRecords(context.Background(), retention)
	if err != nil {
		s.log.Error("gateway event cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.log.Info("gateway event cleanup finished", zap.Int64("removed", removed))
	}
}

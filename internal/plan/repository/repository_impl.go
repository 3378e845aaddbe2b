package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	plandomain "github.com/duesflow/duesflow/internal/plan/domain"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) plandomain.Repository {
	return &repository{db: db}
}

func (r *repository) InsertPlan(ctx context.Context, plan *plandomain.PaymentPlan, installments []plandomain.Installment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(plan).Error; err != nil {
			return err
		}
		for i := range installments {
			installments[i].PlanID = plan.ID
		}
		if len(installments) > 0 {
			if err := tx.Create(&installments).Error; err != nil {
				return err
			}
		}
		plan.Installments = installments
		return nil
	})
}

func (r *repository) FindPlanByID(ctx context.Context, id snowflake.ID) (*plandomain.PaymentPlan, error) {
	var plan plandomain.PaymentPlan
	err := r.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		First(&plan, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ListPlansByMember(ctx context.Context, memberID snowflake.ID) ([]plandomain.PaymentPlan, error) {
	var plans []plandomain.PaymentPlan
	err := r.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		Where("member_id = ?", memberID).
		Order("created_at desc, id desc").
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) AdvancePlan(ctx context.Context, planID snowflake.ID, next *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&plandomain.PaymentPlan{}).
		Where("id = ?", planID).
		Updates(map[string]any{
			"installments_paid": gorm.Expr("installments_paid + 1"),
			"next_payment_date": next,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *repository) SetPlanNextDate(ctx context.Context, planID snowflake.ID, next *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&plandomain.PaymentPlan{}).
		Where("id = ?", planID).
		Updates(map[string]any{
			"next_payment_date": next,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *repository) CompletePlan(ctx context.Context, planID snowflake.ID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&plandomain.PaymentPlan{}).
		Where("id = ? AND status = ? AND installments_paid >= installments_total", planID, plandomain.PlanStatusActive).
		Updates(map[string]any{
			"status":            plandomain.PlanStatusCompleted,
			"next_payment_date": nil,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindInstallmentByID(ctx context.Context, id snowflake.ID) (*plandomain.Installment, error) {
	var installment plandomain.Installment
	err := r.db.WithContext(ctx).First(&installment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &installment, nil
}

func (r *repository) DueInstallments(ctx context.Context, asOf time.Time) ([]plandomain.Installment, error) {
	var installments []plandomain.Installment
	err := r.db.WithContext(ctx).
		Where("status IN ? AND scheduled_date <= ?",
			[]string{plandomain.InstallmentStatusPlanned, plandomain.InstallmentStatusFailed}, asOf).
		Order("scheduled_date asc, number asc").
		Find(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}

func (r *repository) ClaimAttempt(ctx context.Context, installmentID snowflake.ID, expected int, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&plandomain.Installment{}).
		Where("id = ? AND attempt_count = ?", installmentID, expected).
		Updates(map[string]any{
			"attempt_count":   expected + 1,
			"last_attempt_at": at,
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetInstallmentStaging(ctx context.Context, installmentID, stagingID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&plandomain.Installment{}).
		Where("id = ?", installmentID).
		Updates(map[string]any{
			"staging_record_id": stagingID,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *repository) SettleAttempt(ctx context.Context, installmentID snowflake.ID, status string, failureCode *string, paymentID *snowflake.ID) error {
	updates := map[string]any{
		"status":       status,
		"failure_code": failureCode,
		"updated_at":   time.Now().UTC(),
	}
	if paymentID != nil {
		updates["payment_id"] = *paymentID
	}
	return r.db.WithContext(ctx).
		Model(&plandomain.Installment{}).
		Where("id = ?", installmentID).
		Updates(updates).Error
}

func (r *repository) NextPlannedDate(ctx context.Context, planID snowflake.ID) (*time.Time, error) {
	var installment plandomain.Installment
	err := r.db.WithContext(ctx).
		Where("plan_id = ? AND status = ?", planID, plandomain.InstallmentStatusPlanned).
		Order("scheduled_date asc").
		First(&installment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	date := installment.ScheduledDate
	return &date, nil
}

func (r *repository) UpcomingReminders(ctx context.Context, from, to time.Time) ([]plandomain.Installment, error) {
	var installments []plandomain.Installment
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_date >= ? AND scheduled_date < ? AND reminder_sent_at IS NULL",
			plandomain.InstallmentStatusPlanned, from, to).
		Order("scheduled_date asc, number asc").
		Find(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}

func (r *repository) ClaimReminder(ctx context.Context, installmentID snowflake.ID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&plandomain.Installment{}).
		Where("id = ? AND reminder_sent_at IS NULL", installmentID).
		Updates(map[string]any{
			"reminder_sent_at": at,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AttentionInstallments(ctx context.Context) ([]plandomain.AttentionRow, error) {
	var rows []plandomain.AttentionRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT i.id AS installment_id,
		       i.plan_id,
		       p.member_id,
		       i.number,
		       i.amount,
		       i.currency,
		       i.scheduled_date,
		       i.attempt_count,
		       i.failure_code,
		       i.last_attempt_at
		FROM plan_installments i
		JOIN payment_plans p ON p.id = i.plan_id
		WHERE i.status = ? AND p.status = ?
		ORDER BY i.scheduled_date asc, i.id asc
	`, plandomain.InstallmentStatusFailed, plandomain.PlanStatusActive).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateInstallmentDate(ctx context.Context, installmentID snowflake.ID, date time.Time) error {
	return r.db.WithContext(ctx).
		Model(&plandomain.Installment{}).
		Where("id = ?", installmentID).
		Updates(map[string]any{
			"scheduled_date": date,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *repository) ShiftPendingInstallments(ctx context.Context, planID snowflake.ID, days int) (int64, error) {
	var shifted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var installments []plandomain.Installment
		if err := tx.
			Where("plan_id = ? AND status = ?", planID, plandomain.InstallmentStatusPlanned).
			Find(&installments).Error; err != nil {
			return err
		}
		for i := range installments {
			moved := installments[i].ScheduledDate.AddDate(0, 0, days)
			if err := tx.Model(&plandomain.Installment{}).
				Where("id = ?", installments[i].ID).
				Updates(map[string]any{
					"scheduled_date": moved,
					"updated_at":     time.Now().UTC(),
				}).Error; err != nil {
				return err
			}
			shifted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return shifted, nil
}

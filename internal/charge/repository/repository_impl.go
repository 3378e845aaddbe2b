package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) chargedomain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, payment *chargedomain.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*chargedomain.Payment, error) {
	var payment chargedomain.Payment
	err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByStagingRecordID(ctx context.Context, stagingID snowflake.ID) (*chargedomain.Payment, error) {
	var payment chargedomain.Payment
	err := r.db.WithContext(ctx).
		Where("staging_record_id = ?", stagingID).
		Order("created_at desc, id desc").
		First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByTransactionID(ctx context.Context, transactionID string) (*chargedomain.Payment, error) {
	var payment chargedomain.Payment
	err := r.db.WithContext(ctx).First(&payment, "gateway_transaction_id = ?", transactionID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByMember(ctx context.Context, memberID snowflake.ID) ([]chargedomain.Payment, error) {
	var payments []chargedomain.Payment
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at desc, id desc").
		Find(&payments).Error
	return payments, err
}

func (r *repository) Update(ctx context.Context, payment *chargedomain.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) MarkSettled(ctx context.Context, id snowflake.ID, status string, failureCode, failureMessage *string, settledAt time.Time) (bool, error) {
	updates := map[string]any{
		"status":          status,
		"failure_code":    failureCode,
		"failure_message": failureMessage,
		"updated_at":      settledAt,
	}
	if status == chargedomain.PaymentStatusCompleted {
		updates["completed_at"] = settledAt
	}

	res := r.db.WithContext(ctx).
		Model(&chargedomain.Payment{}).
		Where("id = ? AND status = ?", id, chargedomain.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) InsertEventRecord(ctx context.Context, record *chargedomain.GatewayEventRecord) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeleteEventRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&chargedomain.GatewayEventRecord{})
	return res.RowsAffected, res.Error
}

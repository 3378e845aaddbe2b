package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
	"github.com/duesflow/duesflow/pkg/db/option"
	"github.com/duesflow/duesflow/pkg/db/pagination"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) ledgerdomain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, record *ledgerdomain.StagingRecord, items []ledgerdomain.StagingLineItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].StagingRecordID = record.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		record.LineItems = items
		return nil
	})
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*ledgerdomain.StagingRecord, error) {
	var record ledgerdomain.StagingRecord
	err := r.db.WithContext(ctx).Preload("LineItems").First(&record, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*ledgerdomain.StagingRecord, error) {
	var record ledgerdomain.StagingRecord
	err := r.db.WithContext(ctx).Preload("LineItems").First(&record, "reference = ?", reference).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) SetGatewayTransactionID(ctx context.Context, id snowflake.ID, transactionID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&ledgerdomain.StagingRecord{}).
		Where("id = ? AND gateway_transaction_id IS NULL", id).
		Update("gateway_transaction_id", transactionID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SetPaymentID(ctx context.Context, id snowflake.ID, paymentID snowflake.ID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&ledgerdomain.StagingRecord{}).
		Where("id = ? AND payment_id IS NULL", id).
		Update("payment_id", paymentID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MergeMetadata(ctx context.Context, id snowflake.ID, patch map[string]any) error {
	var metadata datatypes.JSONMap
	if err := r.db.WithContext(ctx).Raw(
		`SELECT metadata FROM staging_records WHERE id = ?`,
		id,
	).Scan(&metadata).Error; err != nil {
		return err
	}
	if metadata == nil {
		metadata = datatypes.JSONMap{}
	}
	for key, value := range patch {
		if strings.TrimSpace(key) == "" {
			continue
		}
		metadata[key] = value
	}

	return r.db.WithContext(ctx).Exec(
		`UPDATE staging_records SET metadata = ?, updated_at = ? WHERE id = ?`,
		metadata,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repository) ListOrphans(ctx context.Context, createdBefore *time.Time, page pagination.Pagination) ([]ledgerdomain.StagingRecord, error) {
	var records []ledgerdomain.StagingRecord

	stmt := r.orphanStmt(ctx, createdBefore)
	stmt = option.ApplyPagination(page).Apply(stmt)
	stmt = stmt.Order("created_at desc, id desc")

	if err := stmt.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) AllOrphans(ctx context.Context, createdBefore *time.Time) ([]ledgerdomain.StagingRecord, error) {
	var records []ledgerdomain.StagingRecord
	if err := r.orphanStmt(ctx, createdBefore).Order("created_at asc, id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) orphanStmt(ctx context.Context, createdBefore *time.Time) *gorm.DB {
	stmt := r.db.WithContext(ctx).
		Model(&ledgerdomain.StagingRecord{}).
		Preload("LineItems").
		Where("payment_id IS NULL AND free = ?", false)
	if createdBefore != nil {
		stmt = option.ApplyOperator(option.Condition{
			Field:    "created_at",
			Operator: option.LT,
			Value:    *createdBefore,
		}).Apply(stmt)
	}
	return stmt
}

package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	pricingdomain "github.com/duesflow/duesflow/internal/pricing/domain"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) pricingdomain.Repository {
	return &repository{db: db}
}

func (r *repository) GetCategory(ctx context.Context, id snowflake.ID) (*pricingdomain.CategoryRow, error) {
	var row pricingdomain.CategoryRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, season_id, name, base_price_cents, currency, accounting_code
		 FROM registration_categories
		 WHERE id = ?`,
		id,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repository) GetDiscountCode(ctx context.Context, id snowflake.ID) (*pricingdomain.CodeRow, error) {
	var row pricingdomain.CodeRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT dc.id, dc.category_id, dc.code, dc.percent, dc.usage_limit, dc.active,
		        cat.name AS category_name, cat.seasonal_cap_cents, cat.accounting_code
		 FROM discount_codes dc
		 JOIN discount_categories cat ON cat.id = dc.category_id
		 WHERE dc.id = ?`,
		id,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repository) CodeUsageCount(ctx context.Context, memberID, codeID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM staging_line_items li
		 JOIN staging_records sr ON sr.id = li.staging_record_id
		 JOIN payments p ON p.id = sr.payment_id
		 WHERE li.discount_code_id = ? AND sr.member_id = ? AND p.status = ?`,
		codeID,
		memberID,
		chargedomain.PaymentStatusCompleted,
	).Scan(&count).Error
	return count, err
}

func (r *repository) SeasonalDiscountTotal(ctx context.Context, memberID, categoryID, seasonID snowflake.ID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(-li.amount), 0)
		 FROM staging_line_items li
		 JOIN staging_records sr ON sr.id = li.staging_record_id
		 JOIN payments p ON p.id = sr.payment_id
		 JOIN discount_codes dc ON dc.id = li.discount_code_id
		 WHERE dc.category_id = ? AND sr.member_id = ? AND sr.season_id = ? AND p.status = ?`,
		categoryID,
		memberID,
		seasonID,
		chargedomain.PaymentStatusCompleted,
	).Scan(&total).Error
	return total, err
}

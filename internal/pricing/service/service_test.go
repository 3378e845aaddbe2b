package service_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	discountdomain "github.com/duesflow/duesflow/internal/discount/domain"
	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
	pricingdomain "github.com/duesflow/duesflow/internal/pricing/domain"
	"github.com/duesflow/duesflow/internal/pricing/service"
	seasondomain "github.com/duesflow/duesflow/internal/season/domain"
)

type pricingFixture struct {
	svc  pricingdomain.Service
	db   *gorm.DB
	node *snowflake.Node
}

func setupPricing(t *testing.T) *pricingFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&seasondomain.RegistrationCategory{},
		&discountdomain.DiscountCategory{},
		&discountdomain.DiscountCode{},
		&ledgerdomain.StagingRecord{},
		&ledgerdomain.StagingLineItem{},
		&chargedomain.Payment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &pricingFixture{
		svc:  service.NewService(service.ServiceParam{DB: db, Log: zap.NewNop()}),
		db:   db,
		node: node,
	}
}

func (f *pricingFixture) seedCategory(t *testing.T, seasonID snowflake.ID, price int64) snowflake.ID {
	t.Helper()
	category := seasondomain.RegistrationCategory{
		ID:             f.node.Generate(),
		SeasonID:       seasonID,
		Name:           "Adult",
		BasePriceCents: price,
		Currency:       "USD",
		AccountingCode: "REG-ADULT",
	}
	require.NoError(t, f.db.Create(&category).Error)
	return category.ID
}

func (f *pricingFixture) seedCode(t *testing.T, percent int, cap *int64, limit *int) snowflake.ID {
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
		UsageLimit: limit,
		Active:     true,
	}
	require.NoError(t, f.db.Create(&code).Error)
	return code.ID
}

// seedCodeUse records one settled charge attempt that consumed the code
// for the given discount amount.
func (f *pricingFixture) seedCodeUse(t *testing.T, memberID, seasonID, codeID snowflake.ID, discount int64, status string) {
	t.Helper()

	payment := chargedomain.Payment{
		ID:       f.node.Generate(),
		MemberID: memberID,
		Amount:   discount,
		Currency: "USD",
		Status:   status,
	}

	record := ledgerdomain.StagingRecord{
		ID:             f.node.Generate(),
		Reference:      f.node.Generate().String(),
		MemberID:       memberID,
		SeasonID:       seasonID,
		TotalAmount:    discount,
		DiscountAmount: discount,
		FinalAmount:    0,
		Currency:       "USD",
	}
	payment.StagingRecordID = record.ID
	record.PaymentID = &payment.ID

	require.NoError(t, f.db.Create(&payment).Error)
	require.NoError(t, f.db.Create(&record).Error)
	require.NoError(t, f.db.Create(&ledgerdomain.StagingLineItem{
		ID:              f.node.Generate(),
		StagingRecordID: record.ID,
		Kind:            ledgerdomain.LineKindDiscount,
		Description:     "seeded use",
		Amount:          -discount,
		AccountingCode:  "DISC-PROMO",
		DiscountCodeID:  &codeID,
	}).Error)
}

func TestQuoteNoDiscount(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	seasonID := f.node.Generate()
	categoryID := f.seedCategory(t, seasonID, 5000)

	quote, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:   f.node.Generate(),
		SeasonID:   seasonID,
		CategoryID: categoryID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), quote.BasePrice)
	assert.Equal(t, int64(5000), quote.FinalAmount)
	assert.Equal(t, int64(0), quote.AppliedDiscount)
	assert.False(t, quote.Free)
	assert.Nil(t, quote.DiscountCodeID)
}

func TestQuoteFullDiscountApplied(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	seasonID := f.node.Generate()
	categoryID := f.seedCategory(t, seasonID, 5000)
	codeID := f.seedCode(t, 20, nil, nil)

	quote, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:       f.node.Generate(),
		SeasonID:       seasonID,
		CategoryID:     categoryID,
		DiscountCodeID: &codeID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), quote.RequestedDiscount)
	assert.Equal(t, int64(1000), quote.AppliedDiscount)
	assert.Equal(t, int64(4000), quote.FinalAmount)
	assert.False(t, quote.Partial)
	assert.False(t, quote.LimitExhausted)
	assert.Equal(t, 20, quote.DiscountPercent)
	assert.Equal(t, "DISC-PROMO", quote.DiscountAccountingCode)
}

func TestQuoteRoundsHalfUp(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	seasonID := f.node.Generate()
	categoryID := f.seedCategory(t, seasonID, 1050)
	codeID := f.seedCode(t, 15, nil, nil)

	quote, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:       f.node.Generate(),
		SeasonID:       seasonID,
		CategoryID:     categoryID,
		DiscountCodeID: &codeID,
	})
	require.NoError(t, err)
	// 15% of 1050 is 157.5, rounded half up.
	assert.Equal(t, int64(158), quote.AppliedDiscount)
	assert.Equal(t, int64(892), quote.FinalAmount)
}

func TestQuoteOverridePrice(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	seasonID := f.node.Generate()
	categoryID := f.seedCategory(t, seasonID, 5000)
	codeID := f.seedCode(t, 20, nil, nil)

	override := int64(3000)
	quote, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:       f.node.Generate(),
		SeasonID:       seasonID,
		CategoryID:     categoryID,
		DiscountCodeID: &codeID,
		OverridePrice:  &override,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), quote.BasePrice)
	assert.Equal(t, int64(3000), quote.EffectiveBase)
	assert.Equal(t, int64(600), quote.AppliedDiscount)
	assert.Equal(t, int64(2400), quote.FinalAmount)

	zero := int64(0)
	free, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:      f.node.Generate(),
		SeasonID:      seasonID,
		CategoryID:    categoryID,
		OverridePrice: &zero,
	})
	require.NoError(t, err)
	assert.True(t, free.Free)
	assert.Equal(t, int64(0), free.FinalAmount)

	tooHigh := int64(6000)
	_, err = f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:      f.node.Generate(),
		SeasonID:      seasonID,
		CategoryID:    categoryID,
		OverridePrice: &tooHigh,
	})
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidOverridePrice)

	negative := int64(-100)
	_, err = f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:      f.node.Generate(),
		SeasonID:      seasonID,
		CategoryID:    categoryID,
		OverridePrice: &negative,
	})
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidOverridePrice)
}

func TestQuoteSeasonalCapPartial(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	memberID := f.node.Generate()
	seasonID := f.node.Generate()
	categoryID := f.seedCategory(t, seasonID, 2500)

	cap := int64(1000)
	codeID := f.seedCode(t, 20, &cap, nil)
	f.seedCodeUse(t, memberID, seasonID, codeID, 800, chargedomain.PaymentStatusCompleted)

	quote, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:       memberID,
		SeasonID:       seasonID,
		CategoryID:     categoryID,
		DiscountCodeID: &codeID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), quote.RequestedDiscount)
	assert.Equal(t, int64(200), quote.AppliedDiscount)
	assert.True(t, quote.Partial)
	assert.Equal(t, int64(2300), quote.FinalAmount)
}

func TestQuoteSeasonalCapScopedToSeason(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	memberID := f.node.Generate()
	seasonID := f.node.Generate()
	otherSeason := f.node.Generate()
	categoryID := f.seedCategory(t, seasonID, 2500)

	cap := int64(1000)
	codeID := f.seedCode(t, 20, &cap, nil)
	// Usage in a different season does not count against this season's cap.
	f.seedCodeUse(t, memberID, otherSeason, codeID, 800, chargedomain.PaymentStatusCompleted)

	quote, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:       memberID,
		SeasonID:       seasonID,
		CategoryID:     categoryID,
		DiscountCodeID: &codeID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), quote.AppliedDiscount)
	assert.False(t, quote.Partial)
}

func TestQuoteIgnoresUnsettledCharges(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	memberID := f.node.Generate()
	seasonID := f.node.Generate()
	categoryID := f.seedCategory(t, seasonID, 2500)

	cap := int64(1000)
	codeID := f.seedCode(t, 20, &cap, nil)
	// Failed charges never consume cap headroom.
	f.seedCodeUse(t, memberID, seasonID, codeID, 800, chargedomain.PaymentStatusFailed)

	quote, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:       memberID,
		SeasonID:       seasonID,
		CategoryID:     categoryID,
		DiscountCodeID: &codeID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), quote.AppliedDiscount)
	assert.False(t, quote.Partial)
}

func TestQuoteUsageLimitExhausted(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	memberID := f.node.Generate()
	seasonID := f.node.Generate()
	categoryID := f.seedCategory(t, seasonID, 5000)

	cap := int64(100000)
	limit := 1
	codeID := f.seedCode(t, 20, &cap, &limit)
	f.seedCodeUse(t, memberID, seasonID, codeID, 500, chargedomain.PaymentStatusCompleted)

	quote, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:       memberID,
		SeasonID:       seasonID,
		CategoryID:     categoryID,
		DiscountCodeID: &codeID,
	})
	require.NoError(t, err)
	// Cap headroom is irrelevant once the per-member limit is spent.
	assert.True(t, quote.LimitExhausted)
	assert.Equal(t, int64(0), quote.AppliedDiscount)
	assert.Equal(t, int64(5000), quote.FinalAmount)
}

func TestQuoteUnknownCodeNeverBlocks(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	seasonID := f.node.Generate()
	categoryID := f.seedCategory(t, seasonID, 5000)

	unknown := f.node.Generate()
	quote, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:       f.node.Generate(),
		SeasonID:       seasonID,
		CategoryID:     categoryID,
		DiscountCodeID: &unknown,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), quote.AppliedDiscount)
	assert.Equal(t, int64(5000), quote.FinalAmount)
	assert.Nil(t, quote.DiscountCodeID)
}

func TestQuoteCategoryNotFound(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	_, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:   f.node.Generate(),
		SeasonID:   f.node.Generate(),
		CategoryID: f.node.Generate(),
	})
	assert.ErrorIs(t, err, pricingdomain.ErrCategoryNotFound)

	seasonID := f.node.Generate()
	categoryID := f.seedCategory(t, seasonID, 5000)
	_, err = f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:   f.node.Generate(),
		SeasonID:   f.node.Generate(),
		CategoryID: categoryID,
	})
	assert.ErrorIs(t, err, pricingdomain.ErrCategoryNotFound)
}

func TestQuoteCategoryWithoutAccountingCode(t *testing.T) {
	f := setupPricing(t)
	ctx := context.Background()

	seasonID := f.node.Generate()
	category := seasondomain.RegistrationCategory{
		ID:             f.node.Generate(),
		SeasonID:       seasonID,
		Name:           "Unbooked",
		BasePriceCents: 5000,
		Currency:       "USD",
	}
	require.NoError(t, f.db.Create(&category).Error)

	_, err := f.svc.Quote(ctx, pricingdomain.QuoteRequest{
		MemberID:   f.node.Generate(),
		SeasonID:   seasonID,
		CategoryID: category.ID,
	})
	assert.ErrorIs(t, err, pricingdomain.ErrCategoryNotBillable)
}

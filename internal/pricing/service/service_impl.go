package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	pricingdomain "github.com/duesflow/duesflow/internal/pricing/domain"
	"github.com/duesflow/duesflow/internal/pricing/repository"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	repo pricingdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

func NewService(p ServiceParam) pricingdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("pricing.service"),

		repo: repository.NewRepository(p.DB),
	}
}

func (s *Service) Quote(ctx context.Context, req pricingdomain.QuoteRequest) (*pricingdomain.Quote, error) {
	category, err := s.repo.GetCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil || (req.SeasonID != 0 && category.SeasonID != req.SeasonID) {
		return nil, pricingdomain.ErrCategoryNotFound
	}
	if strings.TrimSpace(category.AccountingCode) == "" {
		// A category with no accounting code cannot produce a bookable
		// line item.
		return nil, pricingdomain.ErrCategoryNotBillable
	}

	seasonID := req.SeasonID
	if seasonID == 0 {
		seasonID = category.SeasonID
	}

	base := category.BasePriceCents
	effective := base
	if req.OverridePrice != nil {
		if *req.OverridePrice < 0 || *req.OverridePrice > base {
			return nil, pricingdomain.ErrInvalidOverridePrice
		}
		effective = *req.OverridePrice
	}

	quote := &pricingdomain.Quote{
		MemberID:                   req.MemberID,
		SeasonID:                   seasonID,
		CategoryID:                 category.ID,
		CategoryName:               category.Name,
		BasePrice:                  base,
		EffectiveBase:              effective,
		Currency:                   category.Currency,
		RegistrationAccountingCode: category.AccountingCode,
	}

	if req.DiscountCodeID != nil && *req.DiscountCodeID != 0 {
		if err := s.applyDiscount(ctx, quote, *req.DiscountCodeID); err != nil {
			return nil, err
		}
	}

	quote.FinalAmount = effective - quote.AppliedDiscount
	if quote.FinalAmount < 0 {
		quote.FinalAmount = 0
	}
	quote.Free = quote.FinalAmount == 0
	return quote, nil
}

func (s *Service) applyDiscount(ctx context.Context, quote *pricingdomain.Quote, codeID snowflake.ID) error {
	code, err := s.repo.GetDiscountCode(ctx, codeID)
	if err != nil {
		return err
	}
	if code == nil || !code.Active {
		// An unknown or retired code never blocks the purchase.
		s.log.Warn("discount code not resolvable, charging full price",
			zap.String("discount_code_id", codeID.String()),
			zap.String("member_id", quote.MemberID.String()),
		)
		return nil
	}

	id := code.ID
	quote.DiscountCodeID = &id
	quote.DiscountCode = code.Code
	quote.DiscountPercent = code.Percent
	quote.DiscountAccountingCode = code.AccountingCode
	quote.RequestedDiscount = roundPercentage(quote.EffectiveBase, code.Percent)

	if code.UsageLimit != nil {
		used, err := s.repo.CodeUsageCount(ctx, quote.MemberID, code.ID)
		if err != nil {
			return err
		}
		if used >= int64(*code.UsageLimit) {
			quote.LimitExhausted = true
			quote.AppliedDiscount = 0
			s.log.Info("discount usage limit exhausted",
				zap.String("discount_code", code.Code),
				zap.String("member_id", quote.MemberID.String()),
				zap.Int64("used", used),
				zap.Int("limit", *code.UsageLimit),
			)
			return nil
		}
	}

	applied := quote.RequestedDiscount
	if code.SeasonalCapCents != nil {
		usage, err := s.repo.SeasonalDiscountTotal(ctx, quote.MemberID, code.CategoryID, quote.SeasonID)
		if err != nil {
			return err
		}
		headroom := *code.SeasonalCapCents - usage
		if headroom < 0 {
			headroom = 0
		}
		if applied > headroom {
			applied = headroom
			quote.Partial = true
			s.log.Info("partial discount applied",
				zap.String("discount_code", code.Code),
				zap.String("member_id", quote.MemberID.String()),
				zap.Int64("requested", quote.RequestedDiscount),
				zap.Int64("applied", applied),
				zap.Int64("seasonal_cap", *code.SeasonalCapCents),
				zap.Int64("seasonal_usage", usage),
			)
		}
	}

	quote.AppliedDiscount = applied
	return nil
}

package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	discountdomain "github.com/duesflow/duesflow/internal/discount/domain"
	"github.com/duesflow/duesflow/internal/discount/repository"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	repo  discountdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

func NewService(p ServiceParam) discountdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("discount.service"),

		genID: p.GenID,
		repo:  repository.NewRepository(p.DB),
	}
}

func (s *Service) CreateCategory(ctx context.Context, req discountdomain.CreateCategoryRequest) (*discountdomain.DiscountCategory, error) {
	name := strings.TrimSpace(req.Name)

	existing, err := s.repo.FindCategoryByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, discountdomain.ErrDuplicateCategory
	}

	category := &discountdomain.DiscountCategory{
		ID:               s.genID.Generate(),
		Name:             name,
		SeasonalCapCents: req.SeasonalCapCents,
		AccountingCode:   strings.TrimSpace(req.AccountingCode),
	}
	if err := s.repo.InsertCategory(ctx, category); err != nil {
		return nil, err
	}

	s.log.Info("discount category created",
		zap.String("category_id", category.ID.String()),
		zap.String("name", category.Name),
	)
	return category, nil
}

func (s *Service) GetCategory(ctx context.Context, id snowflake.ID) (*discountdomain.DiscountCategory, error) {
	category, err := s.repo.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, discountdomain.ErrCategoryNotFound
	}
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]discountdomain.DiscountCategory, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCode(ctx context.Context, req discountdomain.CreateCodeRequest) (*discountdomain.DiscountCode, error) {
	if req.Percent < 1 || req.Percent > 100 {
		return nil, discountdomain.ErrInvalidPercent
	}

	category, err := s.repo.FindCategoryByID(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, discountdomain.ErrCategoryNotFound
	}

	normalized := strings.ToUpper(strings.TrimSpace(req.Code))
	existing, err := s.repo.FindCodeByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, discountdomain.ErrDuplicateCode
	}

	code := &discountdomain.DiscountCode{
		ID:         s.genID.Generate(),
		CategoryID: category.ID,
		Code:       normalized,
		Percent:    req.Percent,
		UsageLimit: req.UsageLimit,
		Active:     true,
	}
	if err := s.repo.InsertCode(ctx, code); err != nil {
		return nil, err
	}

	s.log.Info("discount code created",
		zap.String("code_id", code.ID.String()),
		zap.String("code", code.Code),
		zap.Int("percent", code.Percent),
	)
	return code, nil
}

func (s *Service) GetCode(ctx context.Context, id snowflake.ID) (*discountdomain.DiscountCode, error) {
	code, err := s.repo.FindCodeByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, discountdomain.ErrCodeNotFound
	}
	return code, nil
}

func (s *Service) GetCodeByCode(ctx context.Context, value string) (*discountdomain.DiscountCode, error) {
	code, err := s.repo.FindCodeByCode(ctx, strings.ToUpper(strings.TrimSpace(value)))
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, discountdomain.ErrCodeNotFound
	}
	return code, nil
}

func (s *Service) ListCodes(ctx context.Context, categoryID snowflake.ID) ([]discountdomain.DiscountCode, error) {
	return s.repo.ListCodes(ctx, categoryID)
}

func (s *Service) DeactivateCode(ctx context.Context, id snowflake.ID) error {
	code, err := s.GetCode(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.SetCodeActive(ctx, code.ID, false)
}

package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	seasondomain "github.com/duesflow/duesflow/internal/season/domain"
	"github.com/duesflow/duesflow/internal/season/repository"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	repo  seasondomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

func NewService(p ServiceParam) seasondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("season.service"),

		genID: p.GenID,
		repo:  repository.NewRepository(p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req seasondomain.CreateSeasonRequest) (*seasondomain.Season, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || !req.EndsOn.After(req.StartsOn) {
		return nil, seasondomain.ErrInvalidSeasonDates
	}

	seasonSlug := slug.Make(name)
	existing, err := s.repo.FindSeasonBySlug(ctx, seasonSlug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, seasondomain.ErrSlugTaken
	}

	season := &seasondomain.Season{
		ID:       s.genID.Generate(),
		Name:     name,
		Slug:     seasonSlug,
		StartsOn: req.StartsOn,
		EndsOn:   req.EndsOn,
		Active:   true,
	}
	if err := s.repo.InsertSeason(ctx, season); err != nil {
		return nil, err
	}

	s.log.Info("season created",
		zap.String("season_id", season.ID.String()),
		zap.String("slug", season.Slug),
	)
	return season, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*seasondomain.Season, error) {
	season, err := s.repo.FindSeasonByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if season == nil {
		return nil, seasondomain.ErrSeasonNotFound
	}
	return season, nil
}

func (s *Service) GetBySlug(ctx context.Context, value string) (*seasondomain.Season, error) {
	season, err := s.repo.FindSeasonBySlug(ctx, slug.Make(value))
	if err != nil {
		return nil, err
	}
	if season == nil {
		return nil, seasondomain.ErrSeasonNotFound
	}
	return season, nil
}

func (s *Service) List(ctx context.Context) ([]seasondomain.Season, error) {
	return s.repo.ListSeasons(ctx)
}

func (s *Service) AddCategory(ctx context.Context, req seasondomain.AddCategoryRequest) (*seasondomain.RegistrationCategory, error) {
	season, err := s.repo.FindSeasonByID(ctx, req.SeasonID)
	if err != nil {
		return nil, err
	}
	if season == nil {
		return nil, seasondomain.ErrSeasonNotFound
	}

	if req.BasePriceCents < 0 {
		return nil, seasondomain.ErrInvalidBasePrice
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	active, err := s.repo.CurrencyActive(ctx, currency)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, seasondomain.ErrInvalidCurrency
	}

	category := &seasondomain.RegistrationCategory{
		ID:             s.genID.Generate(),
		SeasonID:       season.ID,
		Name:           strings.TrimSpace(req.Name),
		BasePriceCents: req.BasePriceCents,
		Currency:       currency,
		AccountingCode: strings.TrimSpace(req.AccountingCode),
	}
	if err := s.repo.InsertCategory(ctx, category); err != nil {
		return nil, err
	}

	s.log.Info("registration category added",
		zap.String("season_id", season.ID.String()),
		zap.String("category_id", category.ID.String()),
		zap.Int64("base_price_cents", category.BasePriceCents),
	)
	return category, nil
}

func (s *Service) GetCategory(ctx context.Context, id snowflake.ID) (*seasondomain.RegistrationCategory, error) {
	category, err := s.repo.FindCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, seasondomain.ErrCategoryNotFound
	}
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context, seasonID snowflake.ID) ([]seasondomain.RegistrationCategory, error) {
	return s.repo.ListCategories(ctx, seasonID)
}

package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	registrationdomain "github.com/duesflow/duesflow/internal/registration/domain"
	"github.com/duesflow/duesflow/internal/registration/repository"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	repo  registrationdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

func NewService(p ServiceParam) registrationdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("registration.service"),

		genID: p.GenID,
		repo:  repository.NewRepository(p.DB),
	}
}

func (s *Service) Register(ctx context.Context, req registrationdomain.RegisterRequest) (*registrationdomain.Registration, error) {
	exists, err := s.repo.MemberExists(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, registrationdomain.ErrMemberNotFound
	}

	seasonID, err := s.repo.CategorySeason(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if seasonID != req.SeasonID {
		return nil, registrationdomain.ErrCategoryMismatch
	}

	active, err := s.repo.FindActive(ctx, req.MemberID, req.SeasonID, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, registrationdomain.ErrAlreadyRegistered
	}

	registration := &registrationdomain.Registration{
		ID:         s.genID.Generate(),
		MemberID:   req.MemberID,
		SeasonID:   req.SeasonID,
		CategoryID: req.CategoryID,
		Status:     registrationdomain.StatusPending,
	}
	if err := s.repo.Insert(ctx, registration); err != nil {
		return nil, err
	}

	s.log.Info("registration created",
		zap.String("registration_id", registration.ID.String()),
		zap.String("member_id", registration.MemberID.String()),
		zap.String("season_id", registration.SeasonID.String()),
	)
	return registration, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*registrationdomain.Registration, error) {
	registration, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if registration == nil {
		return nil, registrationdomain.ErrRegistrationNotFound
	}
	return registration, nil
}

func (s *Service) ListByMember(ctx context.Context, memberID snowflake.ID) ([]registrationdomain.Registration, error) {
	return s.repo.ListByMember(ctx, memberID)
}

func (s *Service) Confirm(ctx context.Context, id snowflake.ID) error {
	registration, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if registration.Status == registrationdomain.StatusCanceled {
		return registrationdomain.ErrRegistrationCanceled
	}
	if registration.Status == registrationdomain.StatusConfirmed {
		return nil
	}
	return s.repo.UpdateStatus(ctx, id, registrationdomain.StatusConfirmed)
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) error {
	registration, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if registration.Status == registrationdomain.StatusCanceled {
		return nil
	}
	return s.repo.UpdateStatus(ctx, id, registrationdomain.StatusCanceled)
}

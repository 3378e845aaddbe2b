package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	memberdomain "github.com/duesflow/duesflow/internal/member/domain"
	"github.com/duesflow/duesflow/internal/member/repository"
	"github.com/duesflow/duesflow/internal/security/vault"
	"github.com/duesflow/duesflow/pkg/db/pagination"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	repo  memberdomain.Repository
	vault vault.Provider
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Vault vault.Provider
}

func NewService(p ServiceParam) memberdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("member.service"),

		genID: p.GenID,
		repo:  repository.NewRepository(p.DB),
		vault: p.Vault,
	}
}

func (s *Service) Create(ctx context.Context, req memberdomain.CreateRequest) (*memberdomain.Member, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, memberdomain.ErrInvalidEmail
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, memberdomain.ErrEmailTaken
	}

	member := &memberdomain.Member{
		ID:       s.genID.Generate(),
		Email:    email,
		FullName: strings.TrimSpace(req.FullName),
	}
	if err := s.repo.Insert(ctx, member); err != nil {
		return nil, err
	}

	s.log.Info("member created",
		zap.String("member_id", member.ID.String()),
		zap.String("email", member.Email),
	)
	return member, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*memberdomain.Member, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, memberdomain.ErrMemberNotFound
	}
	return member, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*memberdomain.Member, error) {
	member, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, memberdomain.ErrMemberNotFound
	}
	return member, nil
}

func (s *Service) List(ctx context.Context, req memberdomain.ListRequest) (memberdomain.ListResponse, error) {
	pageSize := req.PageSize
	if pageSize < 0 {
		pageSize = 0
	} else if pageSize == 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, memberdomain.ListFilter{
		Email:   strings.TrimSpace(req.Email),
		Search:  strings.TrimSpace(req.Search),
		SortBy:  strings.TrimSpace(req.SortBy),
		OrderBy: strings.TrimSpace(req.OrderBy),
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return memberdomain.ListResponse{}, err
	}

	var pageInfo *pagination.PageInfo
	if pageSize > 0 {
		pageInfo = pagination.BuildCursorPageInfo(items, pageSize, func(item *memberdomain.Member) string {
			token, err := pagination.EncodeCursor(pagination.Cursor{
				ID:        item.ID.String(),
				CreatedAt: item.CreatedAt.Format(time.RFC3339),
			})
			if err != nil {
				return ""
			}
			return token
		})
		if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
			items = items[:pageSize]
		}
	}

	members := make([]memberdomain.Member, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		members = append(members, *item)
	}

	out := memberdomain.ListResponse{Members: members}
	if pageInfo != nil {
		out.PageInfo = *pageInfo
	}
	return out, nil
}

func (s *Service) AttachInstrument(ctx context.Context, req memberdomain.AttachInstrumentRequest) (*memberdomain.Member, error) {
	member, err := s.repo.FindByID(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, memberdomain.ErrMemberNotFound
	}

	sealed, err := s.vault.Encrypt([]byte(req.InstrumentID))
	if err != nil {
		return nil, err
	}

	ref := string(sealed)
	customerID := strings.TrimSpace(req.GatewayCustomerID)

	member.InstrumentRef = &ref
	member.GatewayCustomerID = &customerID
	member.InstrumentVerified = req.Verified
	if req.Brand != "" {
		brand := req.Brand
		member.InstrumentBrand = &brand
	}
	if req.Last4 != "" {
		last4 := req.Last4
		member.InstrumentLast4 = &last4
	}

	if err := s.repo.Update(ctx, member); err != nil {
		return nil, err
	}

	s.log.Info("payment instrument attached",
		zap.String("member_id", member.ID.String()),
		zap.Bool("verified", member.InstrumentVerified),
	)
	return member, nil
}

func (s *Service) InstrumentRef(ctx context.Context, id snowflake.ID) (string, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if member == nil {
		return "", memberdomain.ErrMemberNotFound
	}
	if member.InstrumentRef == nil || *member.InstrumentRef == "" {
		return "", memberdomain.ErrNoInstrument
	}

	plain, err := s.vault.Decrypt([]byte(*member.InstrumentRef))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

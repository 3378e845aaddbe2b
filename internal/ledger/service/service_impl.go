package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
	"github.com/duesflow/duesflow/internal/ledger/repository"
	"github.com/duesflow/duesflow/pkg/db/pagination"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	repo  ledgerdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

func NewService(p ServiceParam) ledgerdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("ledger.service"),

		genID: p.GenID,
		repo:  repository.NewRepository(p.DB),
	}
}

func (s *Service) Stage(ctx context.Context, req *ledgerdomain.StageRequest) (*ledgerdomain.StagingRecord, error) {
	if req.TotalAmount < 0 || req.DiscountAmount < 0 || req.FinalAmount < 0 {
		return nil, ledgerdomain.ErrInvalidAmounts
	}
	if req.FinalAmount != req.TotalAmount-req.DiscountAmount {
		return nil, ledgerdomain.ErrInvalidAmounts
	}
	if req.Free && req.FinalAmount != 0 {
		return nil, ledgerdomain.ErrInvalidAmounts
	}
	if len(req.LineItems) == 0 {
		return nil, ledgerdomain.ErrNoLineItems
	}

	var lineSum int64
	for _, item := range req.LineItems {
		lineSum += item.Amount
		if item.Kind != ledgerdomain.LineKindDiscount {
			continue
		}
		if strings.TrimSpace(item.AccountingCode) == "" {
			s.log.Error("discount line item has no accounting code",
				zap.String("member_id", req.MemberID.String()),
				zap.String("season_id", req.SeasonID.String()),
				zap.Bool("operator_alert", true),
			)
			return nil, ledgerdomain.ErrMissingAccountingCode
		}
	}
	if lineSum != req.FinalAmount {
		return nil, ledgerdomain.ErrLineItemsUnbalanced
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	record := &ledgerdomain.StagingRecord{
		ID:                s.genID.Generate(),
		Reference:         ulid.Make().String(),
		MemberID:          req.MemberID,
		SeasonID:          req.SeasonID,
		RegistrationID:    req.RegistrationID,
		PlanInstallmentID: req.PlanInstallmentID,
		TotalAmount:       req.TotalAmount,
		DiscountAmount:    req.DiscountAmount,
		FinalAmount:       req.FinalAmount,
		Currency:          currency,
		Free:              req.Free,
	}
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, err
		}
		record.Metadata = datatypes.JSON(raw)
	}

	items := make([]ledgerdomain.StagingLineItem, 0, len(req.LineItems))
	for _, in := range req.LineItems {
		items = append(items, ledgerdomain.StagingLineItem{
			ID:             s.genID.Generate(),
			Kind:           in.Kind,
			Description:    strings.TrimSpace(in.Description),
			Amount:         in.Amount,
			AccountingCode: strings.TrimSpace(in.AccountingCode),
			DiscountCodeID: in.DiscountCodeID,
		})
	}

	if err := s.repo.Insert(ctx, record, items); err != nil {
		return nil, err
	}

	s.log.Info("charge staged",
		zap.String("staging_id", record.ID.String()),
		zap.String("reference", record.Reference),
		zap.String("member_id", record.MemberID.String()),
		zap.Int64("final_amount", record.FinalAmount),
		zap.Bool("free", record.Free),
	)
	return record, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*ledgerdomain.StagingRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ledgerdomain.ErrStagingNotFound
	}
	return record, nil
}

func (s *Service) GetByReference(ctx context.Context, reference string) (*ledgerdomain.StagingRecord, error) {
	record, err := s.repo.FindByReference(ctx, strings.TrimSpace(reference))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ledgerdomain.ErrStagingNotFound
	}
	return record, nil
}

func (s *Service) AttachGatewayTransaction(ctx context.Context, id snowflake.ID, transactionID string) error {
	claimed, err := s.repo.SetGatewayTransactionID(ctx, id, transactionID)
	if err != nil {
		return err
	}
	if claimed {
		return nil
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return ledgerdomain.ErrStagingNotFound
	}
	if record.GatewayTransactionID != nil && *record.GatewayTransactionID == transactionID {
		return nil
	}
	return ledgerdomain.ErrAttachConflict
}

func (s *Service) AttachPayment(ctx context.Context, id snowflake.ID, paymentID snowflake.ID) error {
	claimed, err := s.repo.SetPaymentID(ctx, id, paymentID)
	if err != nil {
		return err
	}
	if claimed {
		return nil
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return ledgerdomain.ErrStagingNotFound
	}
	if record.PaymentID != nil && *record.PaymentID == paymentID {
		return nil
	}
	return ledgerdomain.ErrAttachConflict
}

func (s *Service) MergeMetadata(ctx context.Context, id snowflake.ID, metadata map[string]any) error {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return ledgerdomain.ErrStagingNotFound
	}
	return s.repo.MergeMetadata(ctx, id, metadata)
}

func (s *Service) ListOrphans(ctx context.Context, req *ledgerdomain.ListOrphansRequest) (*ledgerdomain.ListOrphansResponse, error) {
	pageSize := int32(req.Pagination.PageSize)
	if pageSize < 0 {
		pageSize = 0
	} else if pageSize == 0 {
		pageSize = 50
	}

	records, err := s.repo.ListOrphans(ctx, req.CreatedBefore, pagination.Pagination{
		PageToken: req.Pagination.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return nil, err
	}

	var pageInfo *pagination.PageInfo
	if pageSize > 0 {
		pageInfo = pagination.BuildCursorPageInfo(records, pageSize, func(rec ledgerdomain.StagingRecord) string {
			token, err := pagination.EncodeCursor(pagination.Cursor{
				ID:        rec.ID.String(),
				CreatedAt: rec.CreatedAt.Format(time.RFC3339),
			})
			if err != nil {
				return ""
			}
			return token
		})
		if pageInfo != nil && pageInfo.HasMore && len(records) > int(pageSize) {
			records = records[:pageSize]
		}
	}

	return &ledgerdomain.ListOrphansResponse{
		Records:  records,
		PageInfo: pageInfo,
	}, nil
}

func (s *Service) ExportOrphans(ctx context.Context, format string, createdBefore *time.Time) (*ledgerdomain.ExportResult, error) {
	normalized := strings.ToLower(strings.TrimSpace(format))
	if normalized == "" {
		normalized = "csv"
	}
	if normalized != "csv" && normalized != "json" {
		return nil, ledgerdomain.ErrUnsupportedFormat
	}

	records, err := s.repo.AllOrphans(ctx, createdBefore)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch normalized {
	case "csv":
		data, err = exportCSV(records)
	case "json":
		data, err = exportJSON(records)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("orphan report exported",
		zap.String("format", normalized),
		zap.Int("count", len(records)),
	)
	return &ledgerdomain.ExportResult{
		Data:     data,
		Checksum: calculateChecksum(data),
		Format:   normalized,
		Count:    len(records),
	}, nil
}

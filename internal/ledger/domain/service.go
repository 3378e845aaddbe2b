package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/duesflow/duesflow/pkg/db/pagination"
)

var (
	ErrStagingNotFound       = errors.New("staging_record_not_found")
	ErrMissingAccountingCode = errors.New("discount_accounting_code_missing")
	ErrLineItemsUnbalanced   = errors.New("line_items_unbalanced")
	ErrInvalidAmounts        = errors.New("invalid_staging_amounts")
	ErrNoLineItems           = errors.New("no_line_items")
	ErrAttachConflict        = errors.New("staging_record_already_linked")
	ErrUnsupportedFormat     = errors.New("unsupported_export_format")
)

// LineItemInput is one line of a staging request. Discount lines carry a
// negative amount.
type LineItemInput struct {
	Kind           string        `json:"kind"`
	Description    string        `json:"description"`
	Amount         int64         `json:"amount"`
	AccountingCode string        `json:"accounting_code"`
	DiscountCodeID *snowflake.ID `json:"discount_code_id,omitempty"`
}

type StageRequest struct {
	MemberID          snowflake.ID    `json:"member_id"`
	SeasonID          snowflake.ID    `json:"season_id"`
	RegistrationID    *snowflake.ID   `json:"registration_id,omitempty"`
	PlanInstallmentID *snowflake.ID   `json:"plan_installment_id,omitempty"`
	TotalAmount       int64           `json:"total_amount"`
	DiscountAmount    int64           `json:"discount_amount"`
	FinalAmount       int64           `json:"final_amount"`
	Currency          string          `json:"currency"`
	Free              bool            `json:"free"`
	LineItems         []LineItemInput `json:"line_items"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
}

type ListOrphansRequest struct {
	CreatedBefore *time.Time            `form:"created_before" json:"created_before,omitempty"`
	Pagination    pagination.Pagination `json:"pagination"`
}

type ListOrphansResponse struct {
	Records  []StagingRecord      `json:"records"`
	PageInfo *pagination.PageInfo `json:"page_info,omitempty"`
}

// ExportResult carries a rendered orphan report plus its integrity checksum.
type ExportResult struct {
	Data     []byte `json:"data"`
	Checksum string `json:"checksum"`
	Format   string `json:"format"`
	Count    int    `json:"count"`
}

type Service interface {
	// Stage validates and persists a charge intent. It must be called
	// before any gateway request for the same purchase.
	Stage(ctx context.Context, req *StageRequest) (*StagingRecord, error)
	Get(ctx context.Context, id snowflake.ID) (*StagingRecord, error)
	GetByReference(ctx context.Context, reference string) (*StagingRecord, error)

	// AttachGatewayTransaction and AttachPayment are the only permitted
	// mutations of a staged record. Each succeeds at most once; repeating
	// the same value is a no-op, a different value is ErrAttachConflict.
	AttachGatewayTransaction(ctx context.Context, id snowflake.ID, transactionID string) error
	AttachPayment(ctx context.Context, id snowflake.ID, paymentID snowflake.ID) error

	MergeMetadata(ctx context.Context, id snowflake.ID, metadata map[string]any) error

	// ListOrphans returns paid-tier records that never got a payment row.
	ListOrphans(ctx context.Context, req *ListOrphansRequest) (*ListOrphansResponse, error)
	ExportOrphans(ctx context.Context, format string, createdBefore *time.Time) (*ExportResult, error)
}

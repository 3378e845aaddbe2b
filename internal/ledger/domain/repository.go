package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/duesflow/duesflow/pkg/db/pagination"
)

type Repository interface {
	Insert(ctx context.Context, record *StagingRecord, items []StagingLineItem) error
	FindByID(ctx context.Context, id snowflake.ID) (*StagingRecord, error)
	FindByReference(ctx context.Context, reference string) (*StagingRecord, error)

	// SetGatewayTransactionID and SetPaymentID update the column only while
	// it is still NULL and report whether a row was claimed.
	SetGatewayTransactionID(ctx context.Context, id snowflake.ID, transactionID string) (bool, error)
	SetPaymentID(ctx context.Context, id snowflake.ID, paymentID snowflake.ID) (bool, error)

	MergeMetadata(ctx context.Context, id snowflake.ID, metadata map[string]any) error

	ListOrphans(ctx context.Context, createdBefore *time.Time, page pagination.Pagination) ([]StagingRecord, error)
	AllOrphans(ctx context.Context, createdBefore *time.Time) ([]StagingRecord, error)
}

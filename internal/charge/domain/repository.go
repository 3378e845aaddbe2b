package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Insert(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id snowflake.ID) (*Payment, error)
	FindByStagingRecordID(ctx context.Context, stagingID snowflake.ID) (*Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*Payment, error)
	ListByMember(ctx context.Context, memberID snowflake.ID) ([]Payment, error)
	Update(ctx context.Context, payment *Payment) error

	// MarkSettled flips a pending payment to its terminal status and
	// reports whether this call did the flip.
	MarkSettled(ctx context.Context, id snowflake.ID, status string, failureCode, failureMessage *string, settledAt time.Time) (bool, error)

	// InsertEventRecord stores a webhook delivery, reporting false when the
	// (provider, event_id) pair was already recorded.
	InsertEventRecord(ctx context.Context, record *GatewayEventRecord) (bool, error)
	DeleteEventRecordsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

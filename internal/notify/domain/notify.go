package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrUnknownProvider = errors.New("unknown_notify_provider")

// Notification kinds sent by the billing engine.
const (
	KindPaymentReceipt      = "payment.receipt"
	KindPaymentFailed       = "payment.failed"
	KindInstallmentUpcoming = "installment.upcoming"
	KindPlanCompleted       = "plan.completed"
)

// Message is a rendered notification addressed by member id. The dispatcher
// resolves the delivery address from the member record.
type Message struct {
	MemberID snowflake.ID
	Kind     string
	Subject  string
	Body     string
	Data     map[string]string
}

// Provider is one delivery channel (smtp, slack, log).
type Provider interface {
	Send(ctx context.Context, address string, msg Message) error
	Name() string
}

// Dispatcher resolves the recipient and hands the message to the configured
// provider. Send failures are reported to the caller but must never be
// escalated into payment failures.
type Dispatcher interface {
	Notify(ctx context.Context, msg Message) error
}

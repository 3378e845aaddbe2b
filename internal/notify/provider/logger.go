package provider

import (
	"context"

	"go.uber.org/zap"

	notifydomain "github.com/duesflow/duesflow/internal/notify/domain"
)

// LogProvider is the default channel when no delivery backend is configured.
// Every message lands in the structured log instead of disappearing.
type LogProvider struct {
	log *zap.Logger
}

func NewLogProvider(log *zap.Logger) *LogProvider {
	return &LogProvider{log: log.Named("notify.log")}
}

func (p *LogProvider) Name() string { return "log" }

func (p *LogProvider) Send(_ context.Context, address string, msg notifydomain.Message) error {
	p.log.Info("notification",
		zap.String("kind", msg.Kind),
		zap.String("member_id", msg.MemberID.String()),
		zap.String("to", address),
		zap.String("subject", msg.Subject),
	)
	return nil
}

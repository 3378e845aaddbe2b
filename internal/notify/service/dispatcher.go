package service

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/duesflow/duesflow/internal/config"
	memberdomain "github.com/duesflow/duesflow/internal/member/domain"
	notifydomain "github.com/duesflow/duesflow/internal/notify/domain"
	"github.com/duesflow/duesflow/internal/notify/provider"
	"github.com/duesflow/duesflow/internal/observability"
)

type Dispatcher struct {
	log      *zap.Logger
	members  memberdomain.Service
	provider notifydomain.Provider
	metrics  *observability.Metrics
}

type DispatcherParam struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Members memberdomain.Service
	Metrics *observability.Metrics
}

func NewDispatcher(p DispatcherParam) (notifydomain.Dispatcher, error) {
	channel, err := buildProvider(p.Cfg, p.Log)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		log:      p.Log.Named("notify.dispatcher"),
		members:  p.Members,
		provider: channel,
		metrics:  p.Metrics,
	}, nil
}

func buildProvider(cfg config.Config, log *zap.Logger) (notifydomain.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Notify.Provider)) {
	case "", "log":
		return provider.NewLogProvider(log), nil
	case "smtp":
		return provider.NewSMTPProvider(cfg), nil
	case "slack":
		return provider.NewSlackProvider(cfg.Notify.SlackWebhookURL), nil
	default:
		return nil, notifydomain.ErrUnknownProvider
	}
}

func (d *Dispatcher) Notify(ctx context.Context, msg notifydomain.Message) error {
	member, err := d.members.Get(ctx, msg.MemberID)
	if err != nil {
		d.metrics.NotificationsTotal.WithLabelValues(msg.Kind, "error").Inc()
		return err
	}

	if err := d.provider.Send(ctx, member.Email, msg); err != nil {
		d.metrics.NotificationsTotal.WithLabelValues(msg.Kind, "error").Inc()
		d.log.Error("notification send failed",
			zap.String("kind", msg.Kind),
			zap.String("provider", d.provider.Name()),
			zap.String("member_id", msg.MemberID.String()),
			zap.Error(err),
		)
		return err
	}

	d.metrics.NotificationsTotal.WithLabelValues(msg.Kind, "sent").Inc()
	d.log.Info("notification sent",
		zap.String("kind", msg.Kind),
		zap.String("provider", d.provider.Name()),
		zap.String("member_id", msg.MemberID.String()),
	)
	return nil
}

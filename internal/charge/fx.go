package charge

import (
	"go.uber.org/fx"

	"github.com/duesflow/duesflow/internal/charge/gateway"
	"github.com/duesflow/duesflow/internal/charge/service"
)

var Module = fx.Module("charge.service",
	fx.Provide(
		gateway.NewGateway,
		gateway.NewWebhookAdapter,
		service.NewService,
	),
)

package notify

import (
	"go.uber.org/fx"

	"github.com/duesflow/duesflow/internal/notify/service"
)

var Module = fx.Module("notify.dispatcher",
	fx.Provide(service.NewDispatcher),
)

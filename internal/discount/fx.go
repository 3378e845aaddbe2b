package discount

import (
	"go.uber.org/fx"

	"github.com/duesflow/duesflow/internal/discount/service"
)

var Module = fx.Module("discount.service",
	fx.Provide(service.NewService),
)

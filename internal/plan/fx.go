package plan

import (
	"go.uber.org/fx"

	"github.com/duesflow/duesflow/internal/plan/service"
)

var Module = fx.Module("plan.service",
	fx.Provide(service.NewService),
)

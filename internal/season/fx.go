package season

import (
	"go.uber.org/fx"

	"github.com/duesflow/duesflow/internal/season/service"
)

var Module = fx.Module("season.service",
	fx.Provide(service.NewService),
)

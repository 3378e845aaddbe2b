package authorization

import (
	"go.uber.org/fx"

	"github.com/duesflow/duesflow/internal/authorization/service"
)

var Module = fx.Module("authorization.service",
	fx.Provide(service.NewService),
)

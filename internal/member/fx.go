package member

import (
	"go.uber.org/fx"

	"github.com/duesflow/duesflow/internal/member/service"
)

var Module = fx.Module("member.service",
	fx.Provide(service.NewService),
)

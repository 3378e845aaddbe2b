package vault

import (
	"go.uber.org/fx"

	"github.com/duesflow/duesflow/internal/config"
)

var Module = fx.Module("security.vault",
	fx.Provide(
		func(cfg config.Config) (Provider, error) {
			return New(cfg.Vault.EncryptionKey)
		},
	),
)

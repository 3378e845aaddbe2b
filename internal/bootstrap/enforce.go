package bootstrap

import (
	"context"

	"go.uber.org/fx"
)

// EnforceSchemaGate aborts startup when the schema gate rejects the database.
func EnforceSchemaGate(lc fx.Lifecycle, gate SchemaGate) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return gate.MustBeActive(ctx)
		},
	})
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/duesflow/duesflow/internal/authorization"
	"github.com/duesflow/duesflow/internal/billing"
	"github.com/duesflow/duesflow/internal/bootstrap"
	"github.com/duesflow/duesflow/internal/charge"
	"github.com/duesflow/duesflow/internal/clock"
	"github.com/duesflow/duesflow/internal/config"
	"github.com/duesflow/duesflow/internal/discount"
	"github.com/duesflow/duesflow/internal/ledger"
	"github.com/duesflow/duesflow/internal/member"
	"github.com/duesflow/duesflow/internal/migration"
	"github.com/duesflow/duesflow/internal/notify"
	"github.com/duesflow/duesflow/internal/observability"
	"github.com/duesflow/duesflow/internal/plan"
	"github.com/duesflow/duesflow/internal/pricing"
	"github.com/duesflow/duesflow/internal/redis"
	"github.com/duesflow/duesflow/internal/registration"
	"github.com/duesflow/duesflow/internal/scheduler"
	"github.com/duesflow/duesflow/internal/season"
	"github.com/duesflow/duesflow/internal/security/vault"
	"github.com/duesflow/duesflow/internal/seed"
	"github.com/duesflow/duesflow/internal/server"
	"github.com/duesflow/duesflow/pkg/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "duesflow",
		Short:   "Duesflow CLI",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newSeedCmd(), newServeCmd(), newSchedulerCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and activate schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the demo catalog and mint the bootstrap admin token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API and webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the payment run and retention scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start the API server and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runMonolith()
			return nil
		},
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runSeed() error {
	var rawToken string
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		bootstrap.Module,
		vault.Module,
		member.Module,
		season.Module,
		discount.Module,
		registration.Module,
		authorization.Module,
		fx.Provide(seed.NewSeeder),
		fx.Invoke(func(gate bootstrap.SchemaGate, seeder *seed.Seeder) error {
			ctx := context.Background()
			if err := gate.MustBeActive(ctx); err != nil {
				return err
			}
			if err := seeder.EnsureDemoCatalog(ctx); err != nil {
				return err
			}
			raw, err := seeder.EnsureAdminToken(ctx)
			if err != nil {
				return err
			}
			rawToken = raw
			return nil
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	_ = app.Stop(context.Background())

	if rawToken != "" {
		fmt.Printf("bootstrap admin token (shown once): %s\n", rawToken)
	}
	return nil
}

func runServe() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		bootstrap.Module,
		fx.Invoke(bootstrap.EnforceSchemaGate),
		vault.Module,
		member.Module,
		registration.Module,
		pricing.Module,
		ledger.Module,
		charge.Module,
		plan.Module,
		notify.Module,
		billing.Module,
		authorization.Module,
		server.Module,
	)
	app.Run()
}

func runScheduler() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		bootstrap.Module,
		fx.Invoke(bootstrap.EnforceSchemaGate),
		vault.Module,
		member.Module,
		ledger.Module,
		charge.Module,
		plan.Module,
		notify.Module,
		scheduler.Module,
	)
	app.Run()
}

func runMonolith() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		bootstrap.Module,
		fx.Invoke(bootstrap.EnforceSchemaGate),
		vault.Module,
		member.Module,
		registration.Module,
		pricing.Module,
		ledger.Module,
		charge.Module,
		plan.Module,
		notify.Module,
		billing.Module,
		authorization.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}

package seed_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/duesflow/duesflow/internal/authorization/domain"
	authservice "github.com/duesflow/duesflow/internal/authorization/service"
	"github.com/duesflow/duesflow/internal/clock"
	discountdomain "github.com/duesflow/duesflow/internal/discount/domain"
	discountservice "github.com/duesflow/duesflow/internal/discount/service"
	memberdomain "github.com/duesflow/duesflow/internal/member/domain"
	memberservice "github.com/duesflow/duesflow/internal/member/service"
	registrationdomain "github.com/duesflow/duesflow/internal/registration/domain"
	registrationservice "github.com/duesflow/duesflow/internal/registration/service"
	seasondomain "github.com/duesflow/duesflow/internal/season/domain"
	seasonservice "github.com/duesflow/duesflow/internal/season/service"
	"github.com/duesflow/duesflow/internal/security/vault"
	"github.com/duesflow/duesflow/internal/seed"
)

func setupSeeder(t *testing.T) (*seed.Seeder, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&seasondomain.Season{},
		&seasondomain.RegistrationCategory{},
		&registrationdomain.Registration{},
		&memberdomain.Member{},
		&discountdomain.DiscountCategory{},
		&discountdomain.DiscountCode{},
		&authdomain.AdminToken{},
	))
	require.NoError(t, db.Exec(`CREATE TABLE currencies (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		symbol TEXT,
		minor_unit INT NOT NULL DEFAULT 2,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO currencies (code, name, minor_unit, is_active) VALUES ('USD', 'US Dollar', 2, true)`,
	).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	sealer, err := vault.New("test-key")
	require.NoError(t, err)

	tokens, err := authservice.NewService(authservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.SystemClock{},
	})
	require.NoError(t, err)

	seeder := seed.NewSeeder(seed.SeederParam{
		Log: zap.NewNop(),
		DB:  db,
		Seasons: seasonservice.NewService(seasonservice.ServiceParam{
			DB:    db,
			Log:   zap.NewNop(),
			GenID: node,
		}),
		Discounts: discountservice.NewService(discountservice.ServiceParam{
			DB:    db,
			Log:   zap.NewNop(),
			GenID: node,
		}),
		Members: memberservice.NewService(memberservice.ServiceParam{
			DB:    db,
			Log:   zap.NewNop(),
			GenID: node,
			Vault: sealer,
		}),
		Registrations: registrationservice.NewService(registrationservice.ServiceParam{
			DB:    db,
			Log:   zap.NewNop(),
			GenID: node,
		}),
		Tokens: tokens,
	})
	return seeder, db
}

func TestEnsureDemoCatalogIdempotent(t *testing.T) {
	seeder, db := setupSeeder(t)
	ctx := context.Background()

	require.NoError(t, seeder.EnsureDemoCatalog(ctx))
	require.NoError(t, seeder.EnsureDemoCatalog(ctx))

	counts := map[string]any{
		"seasons":       &seasondomain.Season{},
		"categories":    &seasondomain.RegistrationCategory{},
		"codes":         &discountdomain.DiscountCode{},
		"members":       &memberdomain.Member{},
		"registrations": &registrationdomain.Registration{},
	}
	want := map[string]int64{
		"seasons":       1,
		"categories":    3,
		"codes":         2,
		"members":       1,
		"registrations": 1,
	}
	for name, model := range counts {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		require.Equal(t, want[name], n, fmt.Sprintf("%s row count", name))
	}

	var registration registrationdomain.Registration
	require.NoError(t, db.First(&registration).Error)
	require.Equal(t, registrationdomain.StatusPending, registration.Status)

	var hardship discountdomain.DiscountCode
	require.NoError(t, db.Where("code = ?", "HARDSHIP25").First(&hardship).Error)
	require.True(t, hardship.Active)
	require.Equal(t, 25, hardship.Percent)

	var member memberdomain.Member
	require.NoError(t, db.Where("email = ?", "demo@duesflow.dev").First(&member).Error)
	require.False(t, member.InstrumentVerified)
}

func TestEnsureAdminTokenReturnsRawOnce(t *testing.T) {
	seeder, db := setupSeeder(t)
	ctx := context.Background()

	raw, err := seeder.EnsureAdminToken(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, "dft_"))

	again, err := seeder.EnsureAdminToken(ctx)
	require.NoError(t, err)
	require.Empty(t, again)

	var count int64
	require.NoError(t, db.Model(&authdomain.AdminToken{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	var token authdomain.AdminToken
	require.NoError(t, db.First(&token).Error)
	require.Equal(t, authdomain.HashToken(raw), token.TokenHash)
	require.Equal(t, authdomain.RoleOperator, token.Role)
}

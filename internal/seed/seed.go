// Package seed provisions the demo catalog and the bootstrap admin token so
// a fresh install is operable without hand-written SQL. Seeding runs through
// the domain services, so the same validation and logging apply as on the
// admin API. Every step is idempotent: rows are looked up by their natural
// key and created only when missing.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/duesflow/duesflow/internal/authorization/domain"
	discountdomain "github.com/duesflow/duesflow/internal/discount/domain"
	memberdomain "github.com/duesflow/duesflow/internal/member/domain"
	registrationdomain "github.com/duesflow/duesflow/internal/registration/domain"
	seasondomain "github.com/duesflow/duesflow/internal/season/domain"
)

const (
	defaultSeasonName  = "Fall 2026"
	defaultMemberEmail = "demo@duesflow.dev"
	defaultMemberName  = "Demo Member"

	bootstrapTokenName = "bootstrap"
)

type categorySeed struct {
	Name           string
	BasePriceCents int64
	AccountingCode string
}

var defaultCategories = []categorySeed{
	{Name: "Adult", BasePriceCents: 10000, AccountingCode: "REG-ADULT"},
	{Name: "Youth", BasePriceCents: 6000, AccountingCode: "REG-YOUTH"},
	{Name: "Family", BasePriceCents: 15000, AccountingCode: "REG-FAMILY"},
}

type discountSeed struct {
	Category       string
	SeasonalCap    *int64
	AccountingCode string
	Code           string
	Percent        int
	UsageLimit     *int
}

var defaultDiscounts = []discountSeed{
	{Category: "Hardship", SeasonalCap: capCents(5000), AccountingCode: "DISC-HARDSHIP", Code: "HARDSHIP25", Percent: 25},
	{Category: "Early Bird", AccountingCode: "DISC-EARLY", Code: "EARLY10", Percent: 10, UsageLimit: usageLimit(1)},
}

func capCents(v int64) *int64 { return &v }

func usageLimit(v int) *int { return &v }

// Seeder drives the catalog services to provision demo data.
type Seeder struct {
	log           *zap.Logger
	db            *gorm.DB
	seasons       seasondomain.Service
	discounts     discountdomain.Service
	members       memberdomain.Service
	registrations registrationdomain.Service
	tokens        authdomain.Service
}

type SeederParam struct {
	fx.In

	Log           *zap.Logger
	DB            *gorm.DB
	Seasons       seasondomain.Service
	Discounts     discountdomain.Service
	Members       memberdomain.Service
	Registrations registrationdomain.Service
	Tokens        authdomain.Service
}

func NewSeeder(p SeederParam) *Seeder {
	return &Seeder{
		log:           p.Log.Named("seed"),
		db:            p.DB,
		seasons:       p.Seasons,
		discounts:     p.Discounts,
		members:       p.Members,
		registrations: p.Registrations,
		tokens:        p.Tokens,
	}
}

// EnsureDemoCatalog seeds a season, registration categories, discount codes,
// and a demo member with a pending registration.
func (s *Seeder) EnsureDemoCatalog(ctx context.Context) error {
	season, err := s.ensureSeason(ctx)
	if err != nil {
		return err
	}

	var firstCategory *seasondomain.RegistrationCategory
	for _, c := range defaultCategories {
		category, err := s.ensureCategory(ctx, season.ID, c)
		if err != nil {
			return err
		}
		if firstCategory == nil {
			firstCategory = category
		}
	}

	for _, d := range defaultDiscounts {
		if err := s.ensureDiscount(ctx, d); err != nil {
			return err
		}
	}

	member, err := s.ensureMember(ctx)
	if err != nil {
		return err
	}
	if err := s.ensureRegistration(ctx, member.ID, season.ID, firstCategory.ID); err != nil {
		return err
	}

	s.log.Info("demo catalog ready",
		zap.String("season", season.Slug),
		zap.String("member", member.Email),
	)
	return nil
}

// EnsureAdminToken mints the bootstrap operator token when none exists.
// The raw value is returned exactly once; later calls return "".
func (s *Seeder) EnsureAdminToken(ctx context.Context) (string, error) {
	var existing authdomain.AdminToken
	err := s.db.WithContext(ctx).
		Where("name = ? AND active = ?", bootstrapTokenName, true).
		First(&existing).Error
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	raw, _, err := s.tokens.IssueToken(ctx, authdomain.IssueRequest{
		Name: bootstrapTokenName,
		Role: authdomain.RoleOperator,
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (s *Seeder) ensureSeason(ctx context.Context) (*seasondomain.Season, error) {
	season, err := s.seasons.GetBySlug(ctx, defaultSeasonName)
	if err == nil {
		return season, nil
	}
	if !errors.Is(err, seasondomain.ErrSeasonNotFound) {
		return nil, err
	}

	return s.seasons.Create(ctx, seasondomain.CreateSeasonRequest{
		Name:     defaultSeasonName,
		StartsOn: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndsOn:   time.Date(2027, 5, 31, 0, 0, 0, 0, time.UTC),
	})
}

func (s *Seeder) ensureCategory(ctx context.Context, seasonID snowflake.ID, seed categorySeed) (*seasondomain.RegistrationCategory, error) {
	categories, err := s.seasons.ListCategories(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if categories[i].Name == seed.Name {
			return &categories[i], nil
		}
	}

	return s.seasons.AddCategory(ctx, seasondomain.AddCategoryRequest{
		SeasonID:       seasonID,
		Name:           seed.Name,
		BasePriceCents: seed.BasePriceCents,
		Currency:       "USD",
		AccountingCode: seed.AccountingCode,
	})
}

func (s *Seeder) ensureDiscount(ctx context.Context, seed discountSeed) error {
	categories, err := s.discounts.ListCategories(ctx)
	if err != nil {
		return err
	}

	var category *discountdomain.DiscountCategory
	for i := range categories {
		if categories[i].Name == seed.Category {
			category = &categories[i]
			break
		}
	}
	if category == nil {
		category, err = s.discounts.CreateCategory(ctx, discountdomain.CreateCategoryRequest{
			Name:             seed.Category,
			SeasonalCapCents: seed.SeasonalCap,
			AccountingCode:   seed.AccountingCode,
		})
		if err != nil {
			return err
		}
	}

	_, err = s.discounts.GetCodeByCode(ctx, seed.Code)
	if err == nil {
		return nil
	}
	if !errors.Is(err, discountdomain.ErrCodeNotFound) {
		return err
	}

	_, err = s.discounts.CreateCode(ctx, discountdomain.CreateCodeRequest{
		CategoryID: category.ID,
		Code:       seed.Code,
		Percent:    seed.Percent,
		UsageLimit: seed.UsageLimit,
	})
	return err
}

// ensureMember creates the demo member without a payment instrument.
// Attaching one goes through AttachInstrument so the gateway reference lands
// sealed in the vault.
func (s *Seeder) ensureMember(ctx context.Context) (*memberdomain.Member, error) {
	member, err := s.members.GetByEmail(ctx, defaultMemberEmail)
	if err == nil {
		return member, nil
	}
	if !errors.Is(err, memberdomain.ErrMemberNotFound) {
		return nil, err
	}

	return s.members.Create(ctx, memberdomain.CreateRequest{
		Email:    defaultMemberEmail,
		FullName: defaultMemberName,
	})
}

func (s *Seeder) ensureRegistration(ctx context.Context, memberID, seasonID, categoryID snowflake.ID) error {
	registrations, err := s.registrations.ListByMember(ctx, memberID)
	if err != nil {
		return err
	}
	for _, r := range registrations {
		if r.SeasonID == seasonID {
			return nil
		}
	}

	_, err = s.registrations.Register(ctx, registrationdomain.RegisterRequest{
		MemberID:   memberID,
		SeasonID:   seasonID,
		CategoryID: categoryID,
	})
	return err
}

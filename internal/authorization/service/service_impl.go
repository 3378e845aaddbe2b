package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/lib/pq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/duesflow/duesflow/internal/authorization/domain"
	"github.com/duesflow/duesflow/internal/clock"
)

// rbacModel is the request/policy shape enforced for admin tokens. Policies
// live in the casbin_rule table through the gorm adapter.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	enforcer *casbin.Enforcer
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

func NewService(p ServiceParam) (authdomain.Service, error) {
	adapter, err := gormadapter.NewAdapterByDB(p.DB)
	if err != nil {
		return nil, fmt.Errorf("casbin adapter: %w", err)
	}
	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("casbin model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("casbin enforcer: %w", err)
	}

	s := &Service{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		enforcer: enforcer,
	}
	if err := s.seedPolicies(); err != nil {
		return nil, err
	}
	return s, nil
}

// seedPolicies installs the base role grants. AddPolicy is a no-op for rows
// that already exist.
func (s *Service) seedPolicies() error {
	policies := [][]string{
		{authdomain.RoleOperator, "*", "*"},
		{authdomain.RoleViewer, authdomain.ObjectPlans, authdomain.ActionRead},
		{authdomain.RoleViewer, authdomain.ObjectReconciliation, authdomain.ActionRead},
		{authdomain.RoleViewer, authdomain.ObjectPayments, authdomain.ActionRead},
	}
	for _, policy := range policies {
		if _, err := s.enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return fmt.Errorf("seed policy %v: %w", policy, err)
		}
	}
	return nil
}

func (s *Service) Authenticate(ctx context.Context, raw string) (*authdomain.AdminToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, authdomain.ErrInvalidToken
	}
	hash := authdomain.HashToken(raw)
	now := s.clock.Now(ctx)

	var token authdomain.AdminToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND active = ? AND (expires_at IS NULL OR expires_at > ?)", hash, true, now).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authdomain.ErrInvalidToken
		}
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(token.TokenHash), []byte(hash)) != 1 {
		return nil, authdomain.ErrInvalidToken
	}

	if err := s.db.WithContext(ctx).
		Model(&authdomain.AdminToken{}).
		Where("id = ?", token.ID).
		Update("last_used_at", now).Error; err != nil {
		s.log.Warn("failed to touch token usage", zap.String("token_id", token.ID.String()), zap.Error(err))
	}
	return &token, nil
}

func (s *Service) Authorize(ctx context.Context, token *authdomain.AdminToken, object, action string) error {
	if token == nil {
		return authdomain.ErrForbidden
	}
	if len(token.Scopes) > 0 && !scopeAllows(token.Scopes, object) {
		return authdomain.ErrForbidden
	}
	ok, err := s.enforcer.Enforce(token.Role, object, action)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn("admin action denied",
			zap.String("token_id", token.ID.String()),
			zap.String("role", token.Role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return authdomain.ErrForbidden
	}
	return nil
}

func scopeAllows(scopes []string, object string) bool {
	for _, scope := range scopes {
		if scope == "*" || scope == object {
			return true
		}
	}
	return false
}

func (s *Service) IssueToken(ctx context.Context, req authdomain.IssueRequest) (string, *authdomain.AdminToken, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", nil, authdomain.ErrInvalidIssue
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = authdomain.RoleOperator
	}
	if role != authdomain.RoleOperator && role != authdomain.RoleViewer {
		return "", nil, authdomain.ErrInvalidIssue
	}

	raw, hash, err := authdomain.GenerateToken()
	if err != nil {
		return "", nil, err
	}

	token := &authdomain.AdminToken{
		ID:        s.genID.Generate(),
		Name:      name,
		TokenHash: hash,
		Role:      role,
		Scopes:    pq.StringArray(req.Scopes),
		Active:    true,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: s.clock.Now(ctx),
	}
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return "", nil, err
	}

	s.log.Info("admin token issued",
		zap.String("token_id", token.ID.String()),
		zap.String("name", name),
		zap.String("role", role),
	)
	return raw, token, nil
}

func (s *Service) Revoke(ctx context.Context, id snowflake.ID) error {
	result := s.db.WithContext(ctx).
		Model(&authdomain.AdminToken{}).
		Where("id = ? AND active = ?", id, true).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return authdomain.ErrTokenNotFound
	}
	s.log.Info("admin token revoked", zap.String("token_id", id.String()))
	return nil
}

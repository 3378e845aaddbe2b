package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

const (
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Authorization objects and actions used by the admin API policies.
const (
	ObjectPayments       = "payments"
	ObjectCharges        = "charges"
	ObjectPlans          = "plans"
	ObjectReconciliation = "reconciliation"
	ObjectTokens         = "tokens"

	ActionRead  = "read"
	ActionWrite = "write"
	ActionRun   = "run"
)

const tokenPrefix = "dft_"

// AdminToken is a hashed bearer credential for the admin API. Scopes, when
// set, narrow the token to specific objects regardless of its role.
type AdminToken struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey"`
	Name       string         `json:"name" gorm:"not null"`
	TokenHash  string         `json:"-" gorm:"uniqueIndex;not null"`
	Role       string         `json:"role" gorm:"not null;default:operator"`
	Scopes     pq.StringArray `json:"scopes" gorm:"type:text[]"`
	Active     bool           `json:"active" gorm:"not null;default:true"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (AdminToken) TableName() string {
	return "admin_tokens"
}

// HashToken returns the sha256 hex digest stored in place of the raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

// GenerateToken mints a new raw token and its storage hash. The raw value is
// shown exactly once at issue time.
func GenerateToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = tokenPrefix + hex.EncodeToString(buf)
	return raw, HashToken(raw), nil
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidToken  = errors.New("invalid_admin_token")
	ErrForbidden     = errors.New("forbidden")
	ErrTokenNotFound = errors.New("admin_token_not_found")
	ErrInvalidIssue  = errors.New("invalid_token_request")
)

type IssueRequest struct {
	Name      string     `json:"name"`
	Role      string     `json:"role,omitempty"`
	Scopes    []string   `json:"scopes,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type Service interface {
	// Authenticate resolves a raw bearer token to its active, unexpired
	// record. Any failure is ErrInvalidToken; callers map it to 401.
	Authenticate(ctx context.Context, raw string) (*AdminToken, error)

	// Authorize checks the token's role policy and scopes against an
	// object/action pair. Denials are ErrForbidden; callers map to 403.
	Authorize(ctx context.Context, token *AdminToken, object, action string) error

	// IssueToken mints a credential and returns the raw value once.
	IssueToken(ctx context.Context, req IssueRequest) (string, *AdminToken, error)

	Revoke(ctx context.Context, id snowflake.ID) error
}

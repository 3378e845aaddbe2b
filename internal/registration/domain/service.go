package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrRegistrationNotFound = errors.New("registration_not_found")
	ErrMemberNotFound       = errors.New("member_not_found")
	ErrCategoryMismatch     = errors.New("category_not_in_season")
	ErrAlreadyRegistered    = errors.New("already_registered")
	ErrRegistrationCanceled = errors.New("registration_canceled")
)

type RegisterRequest struct {
	MemberID   snowflake.ID `json:"member_id" binding:"required"`
	SeasonID   snowflake.ID `json:"season_id" binding:"required"`
	CategoryID snowflake.ID `json:"category_id" binding:"required"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Registration, error)
	Get(ctx context.Context, id snowflake.ID) (*Registration, error)
	ListByMember(ctx context.Context, memberID snowflake.ID) ([]Registration, error)
	Confirm(ctx context.Context, id snowflake.ID) error
	Cancel(ctx context.Context, id snowflake.ID) error
}

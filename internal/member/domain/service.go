package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/duesflow/duesflow/pkg/db/pagination"
)

var (
	ErrMemberNotFound = errors.New("member_not_found")
	ErrEmailTaken     = errors.New("email_taken")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrNoInstrument   = errors.New("no_payment_instrument")
)

type CreateRequest struct {
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
}

type AttachInstrumentRequest struct {
	MemberID          snowflake.ID
	InstrumentID      string `json:"instrument_id" binding:"required"`
	GatewayCustomerID string `json:"gateway_customer_id" binding:"required"`
	Brand             string `json:"brand"`
	Last4             string `json:"last4"`
	Verified          bool   `json:"verified"`
}

type ListRequest struct {
	Email     string `form:"email"`
	Search    string `form:"search"`
	SortBy    string `form:"sort_by"`
	OrderBy   string `form:"order_by"`
	PageToken string `form:"page_token"`
	PageSize  int32  `form:"page_size"`
}

type ListResponse struct {
	Members  []Member            `json:"members"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Member, error)
	Get(ctx context.Context, id snowflake.ID) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	AttachInstrument(ctx context.Context, req AttachInstrumentRequest) (*Member, error)

	// InstrumentRef opens the sealed payment-method reference for a charge.
	InstrumentRef(ctx context.Context, id snowflake.ID) (string, error)
}

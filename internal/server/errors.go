package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	authdomain "github.com/duesflow/duesflow/internal/authorization/domain"
	billingdomain "github.com/duesflow/duesflow/internal/billing/domain"
	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
	memberdomain "github.com/duesflow/duesflow/internal/member/domain"
	plandomain "github.com/duesflow/duesflow/internal/plan/domain"
	pricingdomain "github.com/duesflow/duesflow/internal/pricing/domain"
	registrationdomain "github.com/duesflow/duesflow/internal/registration/domain"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate_limited")
)

// statusFor maps domain sentinels onto HTTP statuses. Anything unmapped is a
// 500 so unexpected failures never masquerade as client errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, authdomain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, registrationdomain.ErrRegistrationNotFound),
		errors.Is(err, plandomain.ErrPlanNotFound),
		errors.Is(err, plandomain.ErrInstallmentNotFound),
		errors.Is(err, ledgerdomain.ErrStagingNotFound),
		errors.Is(err, memberdomain.ErrMemberNotFound),
		errors.Is(err, pricingdomain.ErrCategoryNotFound),
		errors.Is(err, authdomain.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, plandomain.ErrRunInProgress),
		errors.Is(err, billingdomain.ErrAlreadyCharged),
		errors.Is(err, registrationdomain.ErrRegistrationCanceled),
		errors.Is(err, plandomain.ErrInstallmentSettled),
		errors.Is(err, ledgerdomain.ErrAttachConflict):
		return http.StatusConflict
	case errors.Is(err, plandomain.ErrInvalidPlan),
		errors.Is(err, pricingdomain.ErrInvalidOverridePrice),
		errors.Is(err, pricingdomain.ErrCategoryNotBillable),
		errors.Is(err, chargedomain.ErrInvalidPaymentMethod),
		errors.Is(err, authdomain.ErrInvalidIssue),
		errors.Is(err, ledgerdomain.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chargedomain.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func AbortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/duesflow/duesflow/internal/billing/domain"
	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
)

// ChargeRegistration prices, stages and executes one immediate charge. A
// declined card is a 200 with the failed payment in the body; only transport
// and validation failures map to error statuses.
func (s *Server) ChargeRegistration(c *gin.Context) {
	var req billingdomain.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.billingSvc.ChargeRegistration(c.Request.Context(), req)
	if err != nil {
		// A recorded gateway outage still carries the attempt.
		if result != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "data": result})
			return
		}
		respondError(c, err)
		return
	}

	if result.Payment != nil && result.Payment.Status == chargedomain.PaymentStatusPending {
		// The gateway owns the outcome; the webhook finishes the charge.
		c.JSON(http.StatusAccepted, gin.H{"data": result})
		return
	}
	respondData(c, result)
}

func (s *Server) CreatePaymentPlan(c *gin.Context) {
	var req billingdomain.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := s.billingSvc.CreatePaymentPlan(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, plan)
}

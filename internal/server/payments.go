package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	plandomain "github.com/duesflow/duesflow/internal/plan/domain"
)

// RunPayments is the manual batch trigger. It runs the same engine the
// scheduler runs; the caller gets the full tally either way.
func (s *Server) RunPayments(c *gin.Context) {
	report, err := s.planSvc.RunPayments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) GetPaymentPlan(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}

	plan, err := s.planSvc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, plan)
}

func (s *Server) ListPlansNeedingAttention(c *gin.Context) {
	rows, err := s.planSvc.ListAttention(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, rows)
}

func (s *Server) UpdateInstallmentSchedule(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid installment id"})
		return
	}

	var req plandomain.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	installment, err := s.planSvc.UpdateInstallmentSchedule(c.Request.Context(), id, req.ScheduledDate)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, installment)
}

func (s *Server) ShiftPlanSchedule(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}

	var req plandomain.ShiftScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shifted, err := s.planSvc.ShiftPlanSchedule(c.Request.Context(), id, req.Days)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, gin.H{"installments_shifted": shifted})
}

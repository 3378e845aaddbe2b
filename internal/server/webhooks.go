package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	chargedomain "github.com/duesflow/duesflow/internal/charge/domain"
)

// webhookBodyLimit bounds gateway payload reads.
const webhookBodyLimit = 1 << 20

// HandleGatewayWebhook verifies, parses and applies one gateway delivery.
// Anything applied (or ignored, or already seen) is a 200 so the gateway
// stops retrying; a processing failure is a 500 so it retries.
func (s *Server) HandleGatewayWebhook(c *gin.Context) {
	if c.Param("provider") != s.webhook.Provider() {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown gateway provider"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	if err := s.webhook.Verify(payload, c.Request.Header); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", s.webhook.Provider()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	event, err := s.webhook.Parse(payload)
	if err != nil {
		if errors.Is(err, chargedomain.ErrEventIgnored) {
			c.JSON(http.StatusOK, gin.H{"received": true, "ignored": true})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	result, err := s.billingSvc.ProcessGatewayEvent(c.Request.Context(), *event)
	if err != nil {
		s.log.Error("webhook processing failed",
			zap.String("event_id", event.EventID),
			zap.String("type", event.Type),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": result.Duplicate})
}

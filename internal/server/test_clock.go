package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	testclockctx "github.com/duesflow/duesflow/internal/testclock/context"
)

// HeaderSimulatedTime carries a frozen engine time for a single request.
// Only honored when server.enable_test_clock is set; production deployments
// leave it off and the header is ignored.
const HeaderSimulatedTime = "X-Simulated-Time"

func (s *Server) simulatedClock() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderSimulatedTime))
		if raw == "" {
			c.Next()
			return
		}

		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + HeaderSimulatedTime + ", want RFC3339"})
			return
		}

		ctx := testclockctx.WithSimulatedTime(c.Request.Context(), t)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetEffectiveTime reports the time the engine would use for this request,
// so operators can confirm what a simulated run will see.
func (s *Server) GetEffectiveTime(c *gin.Context) {
	ctx := c.Request.Context()
	now := s.clock.Now(ctx)

	_, simulated := testclockctx.FromContext(ctx)
	respondData(c, gin.H{
		"now":       now.UTC().Format(time.RFC3339),
		"simulated": simulated,
	})
}

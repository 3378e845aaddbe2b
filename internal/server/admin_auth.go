package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	authdomain "github.com/duesflow/duesflow/internal/authorization/domain"
)

const contextAdminTokenKey = "admin_token"

// AdminAuth authenticates requests with a bearer admin token. The token
// record is attached to the gin context for the authorization middleware.
func (s *Server) AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		token, err := s.authSvc.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextAdminTokenKey, token)
		c.Next()
	}
}

// RequireAccess authorizes the authenticated token for one object/action
// pair via the RBAC enforcer.
func (s *Server) RequireAccess(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := adminTokenFromContext(c)
		if token == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authSvc.Authorize(c.Request.Context(), token, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func adminTokenFromContext(c *gin.Context) *authdomain.AdminToken {
	value, ok := c.Get(contextAdminTokenKey)
	if !ok {
		return nil
	}
	token, ok := value.(*authdomain.AdminToken)
	if !ok {
		return nil
	}
	return token
}

func (s *Server) IssueAdminToken(c *gin.Context) {
	var req authdomain.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raw, token, err := s.authSvc.IssueToken(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	// The raw token is returned exactly once and never stored.
	c.JSON(http.StatusCreated, gin.H{"data": token, "token": raw})
}

func (s *Server) RevokeAdminToken(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token id"})
		return
	}
	if err := s.authSvc.Revoke(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

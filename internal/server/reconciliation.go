package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	ledgerdomain "github.com/duesflow/duesflow/internal/ledger/domain"
)

// ListOrphans returns staged charge intents that never got a payment row.
// These are the reconciliation gap between us and the gateway.
func (s *Server) ListOrphans(c *gin.Context) {
	var req ledgerdomain.ListOrphansRequest
	if err := c.ShouldBindQuery(&req.Pagination); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if before, ok := parseCreatedBefore(c); ok {
		req.CreatedBefore = before
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid created_before, want RFC3339 or 2006-01-02"})
		return
	}

	resp, err := s.ledgerSvc.ListOrphans(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, resp.Records, resp.PageInfo)
}

// ExportOrphans streams the orphan report as a file download with an
// integrity checksum header, csv unless format=json is asked for.
func (s *Server) ExportOrphans(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "csv")))
	if strings.HasSuffix(c.FullPath(), ".csv") {
		format = "csv"
	}

	before, ok := parseCreatedBefore(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid created_before, want RFC3339 or 2006-01-02"})
		return
	}

	result, err := s.ledgerSvc.ExportOrphans(c.Request.Context(), format, before)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("X-Export-Checksum", result.Checksum)
	c.Header("X-Export-Count", strconv.Itoa(result.Count))

	contentType := "text/csv"
	filename := "orphaned_staging_records.csv"
	if result.Format == "json" {
		contentType = "application/json"
		filename = "orphaned_staging_records.json"
	}
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Data(http.StatusOK, contentType, result.Data)
}

func parseCreatedBefore(c *gin.Context) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query("created_before"))
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, true
	}
	return nil, false
}

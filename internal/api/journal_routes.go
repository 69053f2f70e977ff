package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iacriptoficial/hypermid-bridge/internal/journal"
)

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// parseStrategyIDs distinguishes an omitted filter (nil — no restriction)
// from an explicit empty filter (non-nil empty slice), per the
// strategy-isolation invariant: ?strategy_ids= with no value must yield
// the empty set, while the param's absence must yield everything.
func parseStrategyIDs(c *gin.Context) []string {
	raw, present := c.GetQuery("strategy_ids")
	if !present {
		return nil
	}
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) getLogs(c *gin.Context) {
	level := journal.Level(strings.ToUpper(c.Query("level")))
	logs, err := s.journal.RecentLogs(c.Request.Context(), parseLimit(c), level)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	out := make([]gin.H, 0, len(logs))
	for _, e := range logs {
		out = append(out, renderLog(e))
	}
	c.JSON(http.StatusOK, gin.H{"logs": out})
}

func (s *Server) deleteLogs(c *gin.Context) {
	deleted, err := s.journal.ClearLogs(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_count": deleted})
}

func (s *Server) getWebhooks(c *gin.Context) {
	entries, err := s.journal.RecentWebhooks(c.Request.Context(), parseLimit(c), parseStrategyIDs(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, renderWebhook(e))
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": out})
}

func (s *Server) getResponses(c *gin.Context) {
	entries, err := s.journal.RecentResponses(c.Request.Context(), parseLimit(c), parseStrategyIDs(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, renderResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"responses": out})
}

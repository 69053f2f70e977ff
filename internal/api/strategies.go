package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iacriptoficial/hypermid-bridge/internal/strategy"
)

func renderStrategy(st strategy.Strategy) gin.H {
	return gin.H{
		"id":      st.ID,
		"enabled": st.Enabled,
		"rules": gin.H{
			"max_position_size": st.Rules.MaxPositionSize.String(),
			"max_daily_trades":  st.Rules.MaxDailyTrades,
			"max_drawdown":      st.Rules.MaxDrawdown.String(),
		},
		"stats": gin.H{
			"total_webhooks":      st.Stats.TotalWebhooks,
			"successful_forwards": st.Stats.SuccessfulForwards,
			"failed_forwards":     st.Stats.FailedForwards,
		},
	}
}

func (s *Server) getStrategies(c *gin.Context) {
	list := s.registry.List()
	out := gin.H{}
	for _, st := range list {
		out[st.ID] = renderStrategy(st)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getStrategyIDs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ids": s.registry.ListIDs()})
}

func (s *Server) getStrategy(c *gin.Context) {
	id := c.Param("id")
	st, ok := s.registry.Get(id)
	if !ok {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "unknown strategy id")
		return
	}
	c.JSON(http.StatusOK, renderStrategy(st))
}

func (s *Server) toggleStrategy(c *gin.Context) {
	id := c.Param("id")
	enabled, err := s.registry.Toggle(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": enabled})
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iacriptoficial/hypermid-bridge/internal/journal"
	"github.com/iacriptoficial/hypermid-bridge/internal/uptime"
)

func renderUptimeStats(snap uptime.Snapshot) gin.H {
	return gin.H{
		"percentage":       snap.Percentage,
		"total_pings":      snap.TotalPings,
		"successful_pings": snap.SuccessfulPings,
		"failed_pings":     snap.FailedPings,
		"monitoring_since": journal.FormatInstant(snap.MonitoringSince),
	}
}

func (s *Server) getStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	snap, balErr := s.balance.GetBalance(ctx)
	connected := balErr == nil

	var totalWebhooks, successful, failed int64
	for _, st := range s.registry.List() {
		totalWebhooks += st.Stats.TotalWebhooks
		successful += st.Stats.SuccessfulForwards
		failed += st.Stats.FailedForwards
	}
	successRate := 100.0
	if totalWebhooks > 0 {
		successRate = float64(successful) / float64(totalWebhooks) * 100.0
	}

	_, addr := s.currentAddr()

	c.JSON(http.StatusOK, gin.H{
		"status":                "running",
		"environment":           s.currentEnvironment(),
		"uptime":                time.Since(s.startedAt).String(),
		"balance":               snap.USDCEquivalent.String(),
		"wallet_address":        addr,
		"hyperliquid_connected": connected,
		"statistics": gin.H{
			"total_webhooks":      totalWebhooks,
			"successful_forwards": successful,
			"failed_forwards":     failed,
			"success_rate":        successRate,
		},
		"uptime_monitoring": renderUptimeStats(s.prober.Stats()),
	})
}

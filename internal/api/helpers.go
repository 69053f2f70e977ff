package api

import (
	"github.com/gin-gonic/gin"

	"github.com/iacriptoficial/hypermid-bridge/internal/journal"
)

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

func renderLog(e journal.LogEntry) gin.H {
	return gin.H{
		"seq":     e.Seq,
		"instant": journal.FormatInstant(e.Instant),
		"level":   e.Level,
		"message": e.Message,
		"details": e.Details,
	}
}

func renderWebhook(e journal.WebhookEntry) gin.H {
	return gin.H{
		"seq":         e.Seq,
		"instant":     journal.FormatInstant(e.Instant),
		"strategy_id": e.StrategyID,
		"status":      e.Status,
		"payload":     e.Payload,
	}
}

func renderResponse(e journal.ResponseEntry) gin.H {
	return gin.H{
		"seq":         e.Seq,
		"instant":     journal.FormatInstant(e.Instant),
		"strategy_id": e.StrategyID,
		"status":      e.Status,
		"order_kind":  e.OrderKind,
		"payload":     e.Payload,
	}
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iacriptoficial/hypermid-bridge/internal/venue"
)

func renderOpenOrder(o venue.OpenOrder) gin.H {
	return gin.H{
		"order_id":   o.OrderID,
		"symbol":     o.Symbol,
		"side":       o.Side,
		"size":       o.Size.String(),
		"price":      o.Price.String(),
		"is_trigger": o.IsTrigger,
	}
}

func renderHistoryOrder(o venue.HistoryOrder) gin.H {
	return gin.H{
		"order_id":  o.OrderID,
		"symbol":    o.Symbol,
		"side":      o.Side,
		"size":      o.Size.String(),
		"avg_px":    o.AvgPx.String(),
		"status":    o.Status,
		"timestamp": o.Timestamp,
	}
}

func (s *Server) getOpenOrders(c *gin.Context) {
	_, addr := s.currentAddr()
	orders, err := s.currentPort().OpenOrders(c.Request.Context(), addr)
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "CONNECTIVITY_ERROR", err.Error())
		return
	}
	out := make([]gin.H, 0, len(orders))
	for _, o := range orders {
		out = append(out, renderOpenOrder(o))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

func (s *Server) getOrderHistory(c *gin.Context) {
	_, addr := s.currentAddr()
	orders, err := s.currentPort().OrderHistory(c.Request.Context(), addr)
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "CONNECTIVITY_ERROR", err.Error())
		return
	}
	out := make([]gin.H, 0, len(orders))
	for _, o := range orders {
		out = append(out, renderHistoryOrder(o))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

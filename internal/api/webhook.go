package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iacriptoficial/hypermid-bridge/internal/account"
	"github.com/iacriptoficial/hypermid-bridge/internal/engine"
	"github.com/iacriptoficial/hypermid-bridge/internal/journal"
	"github.com/iacriptoficial/hypermid-bridge/internal/strategy"
	"github.com/iacriptoficial/hypermid-bridge/internal/symlock"
	"github.com/iacriptoficial/hypermid-bridge/internal/venue"
)

// webhookPayload is the wire shape of an inbound Signal (§3). Every
// numeric field travels as a decimal string so a value never round-trips
// through a float64 on its way to the engine.
type webhookPayload struct {
	Symbol     string `json:"symbol" binding:"required"`
	Side       string `json:"side" binding:"required,oneof=buy sell"`
	Entry      string `json:"entry" binding:"omitempty,oneof=market limit"`
	Quantity   string `json:"quantity" binding:"required"`
	Price      string `json:"price"`
	Stop       string `json:"stop"`
	TP1Price   string `json:"tp1_price"`
	TP1Perc    string `json:"tp1_perc"`
	TP2Price   string `json:"tp2_price"`
	TP2Perc    string `json:"tp2_perc"`
	TP3Price   string `json:"tp3_price"`
	TP3Perc    string `json:"tp3_perc"`
	TP4Price   string `json:"tp4_price"`
	TP4Perc    string `json:"tp4_perc"`
	StrategyID string `json:"strategy_id"`
}

func parseDecimal(raw string) (decimal.Decimal, bool, error) {
	if raw == "" {
		return decimal.Decimal{}, false, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("invalid decimal %q: %w", raw, err)
	}
	return d, true, nil
}

// toSignal converts the wire payload into an engine.Signal, resolving
// strategy_id's default and entry's default along the way. The caller
// still owns dispatching to the strategy registry and journal.
func (p webhookPayload) toSignal() (engine.Signal, error) {
	sig := engine.Signal{
		Symbol:     p.Symbol,
		Side:       venue.Side(p.Side),
		Entry:      engine.EntryMarket,
		StrategyID: p.StrategyID,
	}
	if p.Entry == string(engine.EntryLimit) {
		sig.Entry = engine.EntryLimit
	}
	if sig.StrategyID == "" {
		sig.StrategyID = strategy.IDOthers
	}

	qty, ok, err := parseDecimal(p.Quantity)
	if err != nil {
		return engine.Signal{}, err
	}
	if !ok || qty.IsZero() || qty.IsNegative() {
		return engine.Signal{}, fmt.Errorf("quantity must be a positive decimal string")
	}
	sig.Quantity = qty

	if price, ok, err := parseDecimal(p.Price); err != nil {
		return engine.Signal{}, err
	} else if ok {
		if price.IsNegative() {
			return engine.Signal{}, fmt.Errorf("price must not be negative")
		}
		sig.Price = price
		sig.HasPrice = true
	}

	if stop, ok, err := parseDecimal(p.Stop); err != nil {
		return engine.Signal{}, err
	} else if ok {
		if stop.IsNegative() {
			return engine.Signal{}, fmt.Errorf("stop must not be negative")
		}
		sig.Stop = stop
		sig.HasStop = true
	}

	legs := [4][2]string{
		{p.TP1Price, p.TP1Perc},
		{p.TP2Price, p.TP2Perc},
		{p.TP3Price, p.TP3Perc},
		{p.TP4Price, p.TP4Perc},
	}
	for i, leg := range legs {
		if px, ok, err := parseDecimal(leg[0]); err != nil {
			return engine.Signal{}, err
		} else if ok {
			if px.IsNegative() {
				return engine.Signal{}, fmt.Errorf("tp%d_price must not be negative", i+1)
			}
			sig.TP[i].Price = px
			sig.TP[i].HasPrice = true
		}
		if sz, ok, err := parseDecimal(leg[1]); err != nil {
			return engine.Signal{}, err
		} else if ok {
			if sz.IsNegative() {
				return engine.Signal{}, fmt.Errorf("tp%d_perc must not be negative", i+1)
			}
			sig.TP[i].Perc = sz
			sig.TP[i].HasPerc = true
		}
	}

	return sig, nil
}

// dispatch runs the Ingress Facade: journal WebhookReceived, resolve the
// master account address (skipped for a disabled strategy, which the
// engine short-circuits before any venue call), acquire the symbol lock,
// and run the engine.
// Shared by both the primary webhook endpoint and re-execution, since
// re-execution re-enters at C10 exactly as if newly received.
func (s *Server) dispatch(ctx context.Context, raw webhookPayload) (dispatchID string, report *engine.Report, journalErr error) {
	dispatchID = uuid.NewString()

	sig, parseErr := raw.toSignal()
	if parseErr != nil {
		_, _ = s.journal.AppendWebhook(ctx, firstNonEmptyStrategy(raw.StrategyID), "failed", raw)
		_, _ = s.journal.AppendLog(ctx, journal.LevelError, "rejected malformed signal", map[string]any{
			"error": parseErr.Error(), "dispatch_id": dispatchID,
		})
		return dispatchID, nil, fmt.Errorf("InvalidSignal: %w", parseErr)
	}

	st, err := s.registry.Ensure(ctx, sig.StrategyID)
	if err != nil {
		return dispatchID, nil, fmt.Errorf("strategy: %w", err)
	}

	if _, err := s.journal.AppendWebhook(ctx, sig.StrategyID, "received", raw); err != nil {
		return dispatchID, nil, fmt.Errorf("journal: %w", err)
	}

	var addr string
	if st.Enabled {
		keyAddr, _ := s.currentAddr()
		addr, err = s.resolver.Resolve(ctx, keyAddr)
		if err != nil {
			return dispatchID, nil, fmt.Errorf("account: %w", err)
		}
	}

	var report2 *engine.Report
	lockErr := s.locks.With(ctx, sig.Symbol, func(ctx context.Context) error {
		r, execErr := s.engine.Execute(ctx, addr, sig)
		report2 = r
		return execErr
	})
	if lockErr != nil {
		return dispatchID, nil, lockErr
	}
	return dispatchID, report2, nil
}

func firstNonEmptyStrategy(id string) string {
	if id == "" {
		return strategy.IDOthers
	}
	return id
}

func (s *Server) webhookTradingView(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	s.handleDispatch(c, payload)
}

func (s *Server) webhookReExecute(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	s.handleDispatch(c, payload)
}

func (s *Server) handleDispatch(c *gin.Context, payload webhookPayload) {
	dispatchID, report, err := s.dispatch(c.Request.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrConfiguration):
			respondError(c, http.StatusInternalServerError, "CONFIGURATION_ERROR", err.Error())
		case errors.Is(err, symlock.ErrSymbolBusy):
			respondError(c, http.StatusServiceUnavailable, "SYMBOL_BUSY", err.Error())
		default:
			respondError(c, http.StatusBadRequest, "INVALID_SIGNAL", err.Error())
		}
		return
	}

	if report != nil && report.Err != nil {
		switch report.Err.Kind {
		case engine.KindStrategyDisabled:
			c.JSON(http.StatusOK, gin.H{
				"dispatch_id": dispatchID,
				"status":      "strategy_disabled",
				"message":     report.Err.Message,
			})
			return
		case engine.KindInvalidSignal:
			respondError(c, http.StatusBadRequest, "INVALID_SIGNAL", report.Err.Message)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"dispatch_id": dispatchID,
		"report":      renderReport(report),
	})
}

func renderReport(report *engine.Report) gin.H {
	if report == nil {
		return gin.H{}
	}
	out := gin.H{"terminal": report.Terminal}
	if report.Err != nil {
		out["error"] = gin.H{"kind": report.Err.Kind, "code": report.Err.Code, "message": report.Err.Message}
	}
	calls := make([]gin.H, 0, len(report.Calls))
	for _, call := range report.Calls {
		calls = append(calls, gin.H{
			"order_kind": call.OrderKind,
			"kind":       resultKindName(call.Result.Kind),
			"order_id":   firstNonEmpty(call.Result.OrderID, call.Result.RestingOrderID),
		})
	}
	out["calls"] = calls
	return out
}

func resultKindName(k venue.ResultKind) string {
	switch k {
	case venue.KindFilled:
		return "filled"
	case venue.KindResting:
		return "resting"
	case venue.KindRejected:
		return "rejected"
	default:
		return "null"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

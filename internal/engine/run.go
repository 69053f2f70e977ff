package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/iacriptoficial/hypermid-bridge/internal/journal"
	"github.com/iacriptoficial/hypermid-bridge/internal/precision"
	"github.com/iacriptoficial/hypermid-bridge/internal/venue"
)

// run carries the mutable state of one Execute call through the state
// machine's transitions. It is not shared across calls.
type run struct {
	engine *Engine
	port   venue.Port
	ctx    context.Context
	addr   string
	sig    Signal
	meta   venue.SymbolMeta

	truncSize decimal.Decimal
	calls     []VenueCall
	partial   bool
}

func (r *run) record(orderKind string, result venue.Result) {
	r.calls = append(r.calls, VenueCall{OrderKind: orderKind, Result: result})

	status := "ok"
	if result.Kind == venue.KindRejected {
		status = "failed"
	} else if result.Kind == venue.KindNull {
		status = "null"
	}
	_, _ = r.engine.journal.AppendResponse(r.ctx, r.sig.StrategyID, status, orderKind, map[string]any{
		"symbol": r.sig.Symbol, "kind": result.Kind, "order_id": firstNonEmpty(result.OrderID, result.RestingOrderID),
		"code": result.Code, "message": result.Message,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// execute runs START -> ... -> a terminal state.
func (r *run) execute() *Report {
	position, err := r.inspectPosition()
	if err != nil {
		return &Report{Terminal: DoneFail, Calls: r.calls, Err: err}
	}

	if r.opposing(position) {
		if fail := r.flatten(position); fail != nil {
			return &Report{Terminal: DoneFail, Calls: r.calls, Err: fail}
		}
	}

	entryResult, err := r.enter()
	if err != nil {
		return &Report{Terminal: DoneFail, Calls: r.calls, Err: err}
	}
	if entryResult.Kind == venue.KindRejected {
		return &Report{Terminal: DoneFail, Calls: r.calls, Err: &Error{
			Kind: KindVenueRejected, Code: entryResult.Code, Message: entryResult.Message,
		}}
	}

	r.attachProtectiveOrders(entryResult)

	terminal := DoneOK
	if r.partial {
		terminal = DonePartial
	}
	return &Report{Terminal: terminal, Calls: r.calls}
}

func (r *run) inspectPosition() (venue.Position, *Error) {
	state, err := r.port.ClearinghouseState(r.ctx, r.addr)
	if err != nil {
		return venue.Position{}, &Error{Kind: KindConnectivityError, Message: err.Error()}
	}
	for _, p := range state.Positions {
		if p.Symbol == r.sig.Symbol {
			return p, nil
		}
	}
	return venue.Position{Symbol: r.sig.Symbol}, nil
}

// opposing reports whether position is on the opposite side of the
// incoming signal: a buy signal against a short, or a sell signal
// against a long. No position or same-direction is not opposing.
func (r *run) opposing(position venue.Position) bool {
	if position.Size.IsZero() {
		return false
	}
	isLong := position.Size.IsPositive()
	if r.sig.Side == venue.Buy {
		return !isLong
	}
	return isLong
}

// flatten runs FLATTEN -> FLATTEN_WAIT, and FLATTEN_FALLBACK when the
// native close comes back null or rejected. Returns a non-nil *Error only
// when the fallback itself failed, per the reversal-safety invariant:
// the caller must not attempt an entry after a failed fallback.
func (r *run) flatten(position venue.Position) *Error {
	result, err := r.port.MarketClose(r.ctx, r.sig.Symbol)
	if err != nil {
		return &Error{Kind: KindConnectivityError, Message: err.Error()}
	}
	r.record("market_close", result)

	switch result.Kind {
	case venue.KindFilled, venue.KindResting:
		return nil
	default: // KindNull or KindRejected both activate the fallback.
		return r.flattenFallback(position)
	}
}

// flattenFallback re-flattens via an exact-size opposite-side market
// order rather than the forbidden "limit IOC reduce_only" shape.
func (r *run) flattenFallback(position venue.Position) *Error {
	oppositeSide := venue.Sell
	if position.Size.IsNegative() {
		oppositeSide = venue.Buy
	}
	size := position.Size.Abs()

	result, err := r.port.MarketOpen(r.ctx, r.sig.Symbol, oppositeSide, size)
	if err != nil {
		return &Error{Kind: KindConnectivityError, Message: err.Error()}
	}
	r.record("flatten_fallback", result)

	if result.Kind == venue.KindRejected {
		return &Error{Kind: KindVenueRejected, Code: result.Code, Message: result.Message}
	}
	return nil
}

func (r *run) enter() (venue.Result, *Error) {
	if r.sig.Entry == EntryLimit {
		snapPx := precision.FormatPrice(r.meta, r.sig.Price, r.sig.Side, precision.ModeDefault)
		result, err := r.port.LimitOrder(r.ctx, r.sig.Symbol, r.sig.Side, r.truncSize, snapPx, venue.TIFGTC)
		if err != nil {
			return venue.Result{}, &Error{Kind: KindConnectivityError, Message: err.Error()}
		}
		r.record("entry", result)
		return result, nil
	}

	result, err := r.port.MarketOpen(r.ctx, r.sig.Symbol, r.sig.Side, r.truncSize)
	if err != nil {
		return venue.Result{}, &Error{Kind: KindConnectivityError, Message: err.Error()}
	}
	r.record("entry", result)
	return result, nil
}

// attachProtectiveOrders places the stop-loss and up to four take-profit
// triggers. Any child rejection marks the run partial but never rolls
// back the entry.
func (r *run) attachProtectiveOrders(entryResult venue.Result) {
	closeSide := r.sig.Side.Opposite()

	if r.sig.HasStop {
		stopPx := precision.FormatPrice(r.meta, r.sig.Stop, closeSide, precision.ModeProtective)
		result, err := r.port.TriggerOrder(r.ctx, r.sig.Symbol, closeSide, r.truncSize, stopPx, true, true, venue.TPSLStop)
		if err != nil {
			r.partial = true
		} else {
			r.record("stop", result)
			if result.Kind == venue.KindRejected {
				r.partial = true
			}
		}
	}

	r.attachTakeProfits(closeSide, entryResult)
}

// attachTakeProfits activates a leg on either tpN_price or tpN_perc being
// present, matching that either field alone is enough to trigger the
// level: tpN_perc always carries the absolute child size, but when
// tpN_price is absent it doubles as the percentage move off the entry
// fill used to derive the trigger price.
func (r *run) attachTakeProfits(closeSide venue.Side, entryResult venue.Result) {
	remaining := r.truncSize
	sizes := [4]decimal.Decimal{}

	active := 0
	for _, leg := range r.sig.TP {
		if leg.HasPrice || leg.HasPerc {
			active++
		}
	}

	// Walk the legs TP1 -> TP4. A leg with an explicit size clamps to
	// whatever is left when its turn comes; a leg without one claims an
	// equal share of what's left over the legs (explicit or not) still
	// ahead of it, so a later explicit leg can still be clamped down by
	// an earlier default leg's share rather than starving it outright.
	for i, leg := range r.sig.TP {
		if !leg.HasPrice && !leg.HasPerc {
			continue
		}

		var size decimal.Decimal
		if leg.HasPerc {
			size = decimal.Min(leg.Perc, remaining)
		} else {
			size = remaining.Div(decimal.NewFromInt(int64(active)))
		}
		size = precision.TruncateSize(r.meta, size)

		sizes[i] = size
		remaining = remaining.Sub(size)
		active--
	}

	for i, leg := range r.sig.TP {
		if (!leg.HasPrice && !leg.HasPerc) || sizes[i].IsZero() {
			continue
		}

		price, priceErr := r.takeProfitPrice(leg, closeSide, entryResult)
		if priceErr != nil {
			_, _ = r.engine.journal.AppendLog(r.ctx, journal.LevelError, "cannot derive take-profit price without an entry fill", map[string]any{
				"symbol": r.sig.Symbol, "tp_index": i + 1,
			})
			r.partial = true
			continue
		}

		notional := sizes[i].Mul(price)
		if notional.LessThan(r.engine.cfg.MinChildNotional) {
			_, _ = r.engine.journal.AppendLog(r.ctx, journal.LevelInfo, "skipping dust take-profit leg below minimum notional", map[string]any{
				"symbol": r.sig.Symbol, "tp_index": i + 1, "size": sizes[i].String(), "notional": notional.String(),
			})
			continue
		}

		tpPx := precision.FormatPrice(r.meta, price, closeSide, precision.ModeFavorable)
		result, err := r.port.TriggerOrder(r.ctx, r.sig.Symbol, closeSide, sizes[i], tpPx, true, true, venue.TPSLTakeProfit)
		if err != nil {
			r.partial = true
			continue
		}
		orderKind := "tp" + strconv.Itoa(i+1)
		r.record(orderKind, result)
		if result.Kind == venue.KindRejected {
			r.partial = true
		}
	}
}

// takeProfitPrice returns leg.Price when given, else derives the trigger
// price from the entry fill price moved by leg.Perc percent: up for a
// closing sell (the entry was a long), down for a closing buy. Mirrors
// the original's entry_price*(1±perc/100) fallback, including its
// failure mode when the entry never filled.
func (r *run) takeProfitPrice(leg TPLeg, closeSide venue.Side, entryResult venue.Result) (decimal.Decimal, error) {
	if leg.HasPrice {
		return leg.Price, nil
	}
	if entryResult.AvgPx.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("entry did not fill, no reference price for tp leg")
	}
	move := leg.Perc.Div(decimal.NewFromInt(100))
	if closeSide == venue.Sell {
		return entryResult.AvgPx.Mul(decimal.NewFromInt(1).Add(move)), nil
	}
	return entryResult.AvgPx.Mul(decimal.NewFromInt(1).Sub(move)), nil
}

// Package venue defines the narrow adapter boundary between the execution
// engine and the trading venue: account/role resolution, balance reads,
// symbol metadata, and order placement. Everything above this package talks
// to the Port interface only, never to an exchange SDK directly.
package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or trigger, independent of whether it
// opens or closes a position.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Role describes what a configured key address is permitted to act as.
type Role int

const (
	RoleUnknown Role = iota
	RoleMaster
	RoleAgent
)

// RoleInfo is the result of resolving a key address's role on the venue.
type RoleInfo struct {
	Role       Role
	MasterAddr string // populated only when Role == RoleAgent
}

// Position is one leg of a clearinghouse state, signed by direction.
type Position struct {
	Symbol  string
	Size    decimal.Decimal // positive long, negative short
	EntryPx decimal.Decimal
}

// ClearinghouseState is the perpetuals account snapshot for an address.
type ClearinghouseState struct {
	PerpEquity decimal.Decimal
	MarginUsed decimal.Decimal
	Positions  []Position
}

// SpotBalance is one asset balance in a spot account snapshot.
type SpotBalance struct {
	Asset string
	Total decimal.Decimal
	Hold  decimal.Decimal
}

// SpotState is the spot account snapshot for an address.
type SpotState struct {
	Balances []SpotBalance
}

// SymbolMeta carries the precision rules the venue enforces for a symbol.
// Cached by callers on first use and refreshed lazily.
type SymbolMeta struct {
	Symbol      string
	SzDecimals  int32
	TickSize    decimal.Decimal
}

// ResultKind tags the closed sum type returned by order operations.
type ResultKind int

const (
	// KindNull is an explicit, observable "no answer" — distinct from
	// Rejected. Only market_close may legitimately return it.
	KindNull ResultKind = iota
	KindFilled
	KindResting
	KindRejected
)

// Result is the VenueResult closed sum type: Filled, Resting, Rejected, or
// an explicit Null. Callers must switch on Kind; the other fields are only
// meaningful for their corresponding Kind.
type Result struct {
	Kind ResultKind

	// KindFilled
	OrderID string
	AvgPx   decimal.Decimal
	Size    decimal.Decimal

	// KindResting
	RestingOrderID string

	// KindRejected
	Code    string
	Message string
}

// Filled builds a KindFilled result.
func Filled(orderID string, avgPx, size decimal.Decimal) Result {
	return Result{Kind: KindFilled, OrderID: orderID, AvgPx: avgPx, Size: size}
}

// Resting builds a KindResting result.
func Resting(orderID string) Result {
	return Result{Kind: KindResting, RestingOrderID: orderID}
}

// Rejected builds a KindRejected result.
func Rejected(code, message string) Result {
	return Result{Kind: KindRejected, Code: code, Message: message}
}

// Null builds the explicit null/absent result.
func Null() Result {
	return Result{Kind: KindNull}
}

// TimeInForce mirrors the venue's order-lifetime qualifiers.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
)

// OpenOrder is one row of the open-orders read.
type OpenOrder struct {
	OrderID   string
	Symbol    string
	Side      Side
	Size      decimal.Decimal
	Price     decimal.Decimal
	IsTrigger bool
}

// HistoryOrder is one row of the order-history read.
type HistoryOrder struct {
	OrderID   string
	Symbol    string
	Side      Side
	Size      decimal.Decimal
	AvgPx     decimal.Decimal
	Status    string
	Timestamp time.Time
}

// Port is the abstract venue boundary consumed by the execution engine.
// There are exactly two implementations: the production Hyperliquid client
// and Fake for tests. Adding a third variant or a new method is a breaking
// change to everything above this package.
type Port interface {
	UserRole(ctx context.Context, addr string) (RoleInfo, error)
	ClearinghouseState(ctx context.Context, addr string) (ClearinghouseState, error)
	SpotState(ctx context.Context, addr string) (SpotState, error)
	SymbolMeta(ctx context.Context) (map[string]SymbolMeta, error)

	// MarketOpen executes immediately at the current mark.
	MarketOpen(ctx context.Context, symbol string, side Side, size decimal.Decimal) (Result, error)

	// MarketClose is venue-provided flattening. A nil error with
	// Result.Kind == KindNull means the venue had nothing to report —
	// distinct from an explicit Rejected.
	MarketClose(ctx context.Context, symbol string) (Result, error)

	LimitOrder(ctx context.Context, symbol string, side Side, size, px decimal.Decimal, tif TimeInForce) (Result, error)

	// TriggerOrder places a reduce-only conditional order. reduceOnly is
	// always true in practice but kept explicit at the interface boundary
	// per the venue's own API shape. kind tags the trigger as a stop-loss
	// or a take-profit for venues (Hyperliquid included) whose wire format
	// distinguishes the two even though the abstract op does not.
	TriggerOrder(ctx context.Context, symbol string, side Side, size, triggerPx decimal.Decimal, isMarket, reduceOnly bool, kind TPSLKind) (Result, error)

	OpenOrders(ctx context.Context, addr string) ([]OpenOrder, error)
	OrderHistory(ctx context.Context, addr string) ([]HistoryOrder, error)
}

// TPSLKind distinguishes a stop-loss trigger from a take-profit trigger,
// for venues that tag the two differently on the wire.
type TPSLKind string

const (
	TPSLStop       TPSLKind = "sl"
	TPSLTakeProfit TPSLKind = "tp"
)

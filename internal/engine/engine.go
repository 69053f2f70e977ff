// Package engine is the execution engine (C8): the state machine that
// turns one validated Signal into a reversal-aware sequence of venue
// calls, recording one VenueResponse journal entry for every order call
// that returns a venue result. An order call that fails with a transport
// error is not journaled: it ends the run with a ConnectivityError, or,
// for a stop or take-profit child, marks the run partial. Position and
// symbol-metadata reads are not journaled either.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/iacriptoficial/hypermid-bridge/internal/journal"
	"github.com/iacriptoficial/hypermid-bridge/internal/precision"
	"github.com/iacriptoficial/hypermid-bridge/internal/strategy"
	"github.com/iacriptoficial/hypermid-bridge/internal/venue"
)

// EntryKind is how the entry leg of a signal is placed.
type EntryKind string

const (
	EntryMarket EntryKind = "market"
	EntryLimit  EntryKind = "limit"
)

// TPLeg is one of up to four take-profit levels. HasPerc distinguishes
// "no size given" from "size given as zero" — the field is legacy-named
// tpN_perc but carries an absolute child size in base units, not a
// fraction of the entry. When Price is absent, Perc additionally doubles
// as the percentage move off the entry fill used to derive one.
type TPLeg struct {
	Price    decimal.Decimal
	HasPrice bool
	Perc     decimal.Decimal
	HasPerc  bool
}

// Signal is one validated inbound trade intent, already resolved to a
// known strategy id by the ingress facade.
type Signal struct {
	Symbol     string
	Side       venue.Side
	Entry      EntryKind
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	HasPrice   bool
	Stop       decimal.Decimal
	HasStop    bool
	TP         [4]TPLeg
	StrategyID string
}

// Kind is the error taxonomy by kind, not type, per the error handling
// design: callers switch on Kind rather than on a concrete error type.
type Kind string

const (
	KindInvalidSignal     Kind = "InvalidSignal"
	KindStrategyDisabled  Kind = "StrategyDisabled"
	KindConnectivityError Kind = "ConnectivityError"
	KindVenueRejected     Kind = "VenueRejected"
)

// Error carries one taxonomy kind plus a human-readable message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func invalidSignal(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidSignal, Message: fmt.Sprintf(format, args...)}
}

// Terminal is one of the state machine's three terminal states. Empty
// string means the machine never started (a pre-flight rejection or a
// disabled-strategy short-circuit) — see Report.Err in that case.
type Terminal string

const (
	DoneOK      Terminal = "DONE_OK"
	DonePartial Terminal = "DONE_PARTIAL"
	DoneFail    Terminal = "DONE_FAIL"
)

// VenueCall is one sub-result of the execution, stored via the journal
// as a VenueResponse entry.
type VenueCall struct {
	OrderKind string
	Result    venue.Result
}

// Report is the Execution Engine's structured output.
type Report struct {
	Terminal Terminal
	Calls    []VenueCall
	Err      *Error
}

// Config holds the engine's validation ceilings, recovered from the
// original implementation's bounds-checking.
type Config struct {
	// MaxSignalQuantity rejects implausibly large signals outright.
	MaxSignalQuantity decimal.Decimal
	// MinChildNotional is the USDC-equivalent floor below which a
	// take-profit leg is skipped as a dust no-op rather than submitted.
	MinChildNotional decimal.Decimal
}

// DefaultConfig mirrors the original's hardcoded 1000/$10 thresholds.
func DefaultConfig() Config {
	return Config{
		MaxSignalQuantity: decimal.NewFromInt(1000),
		MinChildNotional:  decimal.NewFromInt(10),
	}
}

// Engine wires together the venue port, the journal, and the strategy
// registry to run the state machine for one symbol at a time. Callers
// are responsible for holding the symbol lock (C7) for the duration of
// Execute; the engine itself is stateless between calls.
type Engine struct {
	journal  *journal.Store
	registry *strategy.Registry
	cfg      Config

	metaMu sync.Mutex
	port   venue.Port
	meta   map[string]venue.SymbolMeta
}

// New builds an Engine.
func New(port venue.Port, j *journal.Store, registry *strategy.Registry, cfg Config) *Engine {
	return &Engine{port: port, journal: j, registry: registry, cfg: cfg}
}

func (e *Engine) currentPort() venue.Port {
	e.metaMu.Lock()
	defer e.metaMu.Unlock()
	return e.port
}

// CurrentPort exposes the venue port the engine is presently wired to, for
// callers outside the package that need read-only pass-through access
// (order history, open orders) without duplicating the engine's own
// environment-switch bookkeeping.
func (e *Engine) CurrentPort() venue.Port {
	return e.currentPort()
}

// SetPort repoints the engine at a different venue port and drops the
// cached symbol metadata, for a testnet<->mainnet switch: tick sizes and
// decimals are venue-environment-specific and must be re-fetched.
func (e *Engine) SetPort(port venue.Port) {
	e.metaMu.Lock()
	defer e.metaMu.Unlock()
	e.port = port
	e.meta = nil
}

func (e *Engine) symbolMeta(ctx context.Context, symbol string) (venue.SymbolMeta, *Error) {
	e.metaMu.Lock()
	defer e.metaMu.Unlock()

	if e.meta != nil {
		if m, ok := e.meta[symbol]; ok {
			return m, nil
		}
	}

	all, err := e.port.SymbolMeta(ctx)
	if err != nil {
		return venue.SymbolMeta{}, &Error{Kind: KindConnectivityError, Message: fmt.Sprintf("refresh symbol meta: %v", err)}
	}
	e.meta = all

	m, ok := e.meta[symbol]
	if !ok {
		return venue.SymbolMeta{}, invalidSignal("unknown symbol %q", symbol)
	}
	return m, nil
}

// Execute runs the state machine for one signal against addr's account.
// A panic anywhere in the pipeline is converted into a DONE_FAIL report
// carrying a ConnectivityError, with a failed VenueResponse journaled,
// rather than crashing the caller's goroutine — the original wrapped its
// entire forwarding function the same way so a bug never leaves a signal
// un-journaled.
func (e *Engine) Execute(ctx context.Context, addr string, sig Signal) (report *Report, err error) {
	defer func() {
		if p := recover(); p != nil {
			failed := &Error{Kind: KindConnectivityError, Message: fmt.Sprintf("engine panic: %v", p)}
			_, _ = e.journal.AppendResponse(ctx, sig.StrategyID, "failed", "panic", map[string]any{
				"symbol": sig.Symbol, "error": failed.Message,
			})
			report = &Report{Terminal: DoneFail, Err: failed}
			err = failed
		}
	}()

	st, ok := e.registry.Get(sig.StrategyID)
	if !ok {
		return nil, invalidSignal("unknown strategy id %q", sig.StrategyID)
	}
	if !st.Enabled {
		_, _ = e.journal.AppendLog(ctx, journal.LevelInfo, "strategy disabled, short-circuiting", map[string]string{
			"strategy_id": sig.StrategyID, "symbol": sig.Symbol,
		})
		return &Report{Err: &Error{Kind: KindStrategyDisabled, Message: fmt.Sprintf("strategy %s is disabled", sig.StrategyID)}}, nil
	}

	if err := e.validate(sig); err != nil {
		_ = e.registry.Increment(ctx, sig.StrategyID, strategy.OutcomeFailure)
		return &Report{Err: err}, nil
	}

	meta, metaErr := e.symbolMeta(ctx, sig.Symbol)
	if metaErr != nil {
		_ = e.registry.Increment(ctx, sig.StrategyID, strategy.OutcomeFailure)
		return &Report{Err: metaErr}, nil
	}

	truncSize := precision.TruncateSize(meta, sig.Quantity)
	if truncSize.IsZero() {
		invErr := invalidSignal("quantity %s truncates to zero at sz_decimals=%d", sig.Quantity, meta.SzDecimals)
		_ = e.registry.Increment(ctx, sig.StrategyID, strategy.OutcomeFailure)
		return &Report{Err: invErr}, nil
	}

	run := &run{engine: e, port: e.currentPort(), ctx: ctx, addr: addr, sig: sig, meta: meta, truncSize: truncSize}
	rep := run.execute()

	outcome := strategy.OutcomeSuccess
	if rep.Terminal != DoneOK {
		outcome = strategy.OutcomeFailure
	}
	_ = e.registry.Increment(ctx, sig.StrategyID, outcome)

	return rep, nil
}

func (e *Engine) validate(sig Signal) *Error {
	if sig.Quantity.IsZero() || sig.Quantity.IsNegative() {
		return invalidSignal("quantity must be positive, got %s", sig.Quantity)
	}
	if sig.Quantity.GreaterThan(e.cfg.MaxSignalQuantity) {
		return invalidSignal("quantity %s exceeds maximum %s", sig.Quantity, e.cfg.MaxSignalQuantity)
	}
	if sig.Entry == EntryLimit && (!sig.HasPrice || sig.Price.IsZero() || sig.Price.IsNegative()) {
		return invalidSignal("entry=limit requires a positive price")
	}
	if sig.Side != venue.Buy && sig.Side != venue.Sell {
		return invalidSignal("side must be buy or sell, got %q", sig.Side)
	}
	return nil
}


package venue

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Fake is an in-memory Port used by engine and API tests. Every call is
// recorded in Calls in the order received so tests can assert on the exact
// sequence the engine issued.
type Fake struct {
	mu sync.Mutex

	Role     RoleInfo
	Meta     map[string]SymbolMeta
	Position map[string]Position // by symbol

	// Scripted responses, consumed in FIFO order per method. When a
	// method's queue is empty, MarketOpen returns Filled, LimitOrder and
	// TriggerOrder return Resting, and MarketClose returns Filled for an
	// open position or Null for a flat symbol.
	MarketOpenQueue   []Result
	MarketCloseQueue  []Result
	LimitOrderQueue   []Result
	TriggerOrderQueue []Result

	Calls []string

	nextOrderID int
}

// NewFake builds a Fake with an empty position book.
func NewFake() *Fake {
	return &Fake{
		Role:     RoleInfo{Role: RoleMaster},
		Meta:     map[string]SymbolMeta{},
		Position: map[string]Position{},
	}
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *Fake) nextID() string {
	f.nextOrderID++
	return fmt.Sprintf("fake-%d", f.nextOrderID)
}

func (f *Fake) UserRole(ctx context.Context, addr string) (RoleInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("user_role")
	return f.Role, nil
}

func (f *Fake) ClearinghouseState(ctx context.Context, addr string) (ClearinghouseState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("clearinghouse_state")
	state := ClearinghouseState{}
	for _, p := range f.Position {
		if !p.Size.IsZero() {
			state.Positions = append(state.Positions, p)
		}
	}
	return state, nil
}

func (f *Fake) SpotState(ctx context.Context, addr string) (SpotState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("spot_state")
	return SpotState{}, nil
}

func (f *Fake) SymbolMeta(ctx context.Context) (map[string]SymbolMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("symbol_meta")
	out := make(map[string]SymbolMeta, len(f.Meta))
	for k, v := range f.Meta {
		out[k] = v
	}
	return out, nil
}

// SetPosition seeds a position for a symbol, used by tests to set up
// INSPECT_POSITION pre-state.
func (f *Fake) SetPosition(symbol string, size, entryPx decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Position[symbol] = Position{Symbol: symbol, Size: size, EntryPx: entryPx}
}

func (f *Fake) MarketOpen(ctx context.Context, symbol string, side Side, size decimal.Decimal) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("market_open(%s,%s,%s)", symbol, side, size))

	delta := size
	if side == Sell {
		delta = size.Neg()
	}
	pos := f.Position[symbol]
	pos.Symbol = symbol
	pos.Size = pos.Size.Add(delta)
	f.Position[symbol] = pos

	if len(f.MarketOpenQueue) > 0 {
		r := f.MarketOpenQueue[0]
		f.MarketOpenQueue = f.MarketOpenQueue[1:]
		return r, nil
	}
	return Filled(f.nextID(), decimal.Zero, size), nil
}

func (f *Fake) MarketClose(ctx context.Context, symbol string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("market_close(%s)", symbol))

	if len(f.MarketCloseQueue) > 0 {
		r := f.MarketCloseQueue[0]
		f.MarketCloseQueue = f.MarketCloseQueue[1:]
		if r.Kind == KindFilled || r.Kind == KindResting {
			delete(f.Position, symbol)
		}
		return r, nil
	}

	pos, ok := f.Position[symbol]
	if !ok || pos.Size.IsZero() {
		return Null(), nil
	}
	closedSize := pos.Size.Abs()
	delete(f.Position, symbol)
	return Filled(f.nextID(), pos.EntryPx, closedSize), nil
}

func (f *Fake) LimitOrder(ctx context.Context, symbol string, side Side, size, px decimal.Decimal, tif TimeInForce) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("limit_order(%s,%s,%s,%s,%s)", symbol, side, size, px, tif))

	if len(f.LimitOrderQueue) > 0 {
		r := f.LimitOrderQueue[0]
		f.LimitOrderQueue = f.LimitOrderQueue[1:]
		return r, nil
	}
	return Resting(f.nextID()), nil
}

func (f *Fake) TriggerOrder(ctx context.Context, symbol string, side Side, size, triggerPx decimal.Decimal, isMarket, reduceOnly bool, kind TPSLKind) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("trigger_order(%s,%s,%s,%s,market=%v,reduceOnly=%v,kind=%s)", symbol, side, size, triggerPx, isMarket, reduceOnly, kind))

	if len(f.TriggerOrderQueue) > 0 {
		r := f.TriggerOrderQueue[0]
		f.TriggerOrderQueue = f.TriggerOrderQueue[1:]
		return r, nil
	}
	return Resting(f.nextID()), nil
}

func (f *Fake) OpenOrders(ctx context.Context, addr string) ([]OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("open_orders")
	return nil, nil
}

func (f *Fake) OrderHistory(ctx context.Context, addr string) ([]HistoryOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("order_history")
	return nil, nil
}

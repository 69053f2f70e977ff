package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iacriptoficial/hypermid-bridge/internal/journal"
	"github.com/iacriptoficial/hypermid-bridge/internal/strategy"
	"github.com/iacriptoficial/hypermid-bridge/internal/venue"
	"github.com/iacriptoficial/hypermid-bridge/pkg/bridgedb"
)

type testRig struct {
	engine *Engine
	fake   *venue.Fake
	j      *journal.Store
	reg    *strategy.Registry
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	db, err := bridgedb.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := bridgedb.ApplyMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	reg, err := strategy.New(db)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	fake := venue.NewFake()
	fake.Meta["SOL"] = venue.SymbolMeta{
		Symbol: "SOL", SzDecimals: 2, TickSize: decimal.RequireFromString("0.01"),
	}

	j := journal.New(db)
	eng := New(fake, j, reg, DefaultConfig())

	return &testRig{engine: eng, fake: fake, j: j, reg: reg}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestScenarioMarketEntryNoPosition(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	sig := Signal{
		Symbol: "SOL", Side: venue.Buy, Entry: EntryMarket,
		Quantity: d("0.2"), StrategyID: strategy.IDOthers,
	}

	report, err := rig.engine.Execute(ctx, "0xaddr", sig)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Terminal != DoneOK {
		t.Fatalf("expected DONE_OK, got %v (err=%v)", report.Terminal, report.Err)
	}
	if len(report.Calls) != 1 || report.Calls[0].OrderKind != "entry" {
		t.Fatalf("expected one entry call, got %+v", report.Calls)
	}
	if !report.Calls[0].Result.Size.Equal(d("0.20")) {
		t.Fatalf("expected truncated size 0.20, got %s", report.Calls[0].Result.Size)
	}

	st, _ := rig.reg.Get(strategy.IDOthers)
	if st.Stats.SuccessfulForwards != 1 {
		t.Fatalf("expected successful_forwards=1, got %d", st.Stats.SuccessfulForwards)
	}
}

func TestScenarioOpposingReversalNativeClose(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.fake.SetPosition("SOL", d("-10.73"), d("150"))

	sig := Signal{
		Symbol: "SOL", Side: venue.Buy, Entry: EntryMarket,
		Quantity: d("5"), StrategyID: strategy.IDOthers,
	}

	report, err := rig.engine.Execute(ctx, "0xaddr", sig)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Terminal != DoneOK {
		t.Fatalf("expected DONE_OK, got %v (err=%v)", report.Terminal, report.Err)
	}
	if len(report.Calls) != 2 {
		t.Fatalf("expected market_close + entry, got %+v", report.Calls)
	}
	if report.Calls[0].OrderKind != "market_close" || report.Calls[1].OrderKind != "entry" {
		t.Fatalf("unexpected call order: %+v", report.Calls)
	}
}

func TestScenarioOpposingReversalNullClose(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.fake.SetPosition("SOL", d("-10.73"), d("150"))
	rig.fake.MarketCloseQueue = append(rig.fake.MarketCloseQueue, venue.Null())

	sig := Signal{
		Symbol: "SOL", Side: venue.Buy, Entry: EntryMarket,
		Quantity: d("5"), StrategyID: strategy.IDOthers,
	}

	report, err := rig.engine.Execute(ctx, "0xaddr", sig)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Terminal != DoneOK {
		t.Fatalf("expected DONE_OK, got %v (err=%v)", report.Terminal, report.Err)
	}
	if len(report.Calls) != 3 {
		t.Fatalf("expected market_close + fallback + entry, got %+v", report.Calls)
	}
	if report.Calls[0].OrderKind != "market_close" ||
		report.Calls[1].OrderKind != "flatten_fallback" ||
		report.Calls[2].OrderKind != "entry" {
		t.Fatalf("unexpected call order: %+v", report.Calls)
	}
	if !report.Calls[1].Result.Size.Equal(d("10.73")) {
		t.Fatalf("expected fallback to flatten exactly 10.73, got %s", report.Calls[1].Result.Size)
	}
}

func TestScenarioFullStackWithStopAndTakeProfits(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.fake.MarketOpenQueue = append(rig.fake.MarketOpenQueue, venue.Filled("entry-1", d("160.00"), d("0.20")))

	// Literal payload: tp1_price="180.0", tp2_perc="10", no tp2_price —
	// tp2 must still fire, deriving its trigger price from the entry
	// fill rather than being skipped for lacking an explicit price.
	sig := Signal{
		Symbol: "SOL", Side: venue.Buy, Entry: EntryMarket,
		Quantity: d("0.2"), StrategyID: strategy.IDOthers,
		Stop: d("170.0"), HasStop: true,
		TP: [4]TPLeg{
			{Price: d("180.0"), HasPrice: true},
			{Perc: d("10"), HasPerc: true},
		},
	}

	report, err := rig.engine.Execute(ctx, "0xaddr", sig)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Terminal != DoneOK {
		t.Fatalf("expected DONE_OK, got %v (err=%v)", report.Terminal, report.Err)
	}

	var kinds []string
	for _, c := range report.Calls {
		kinds = append(kinds, c.OrderKind)
	}
	want := []string{"entry", "stop", "tp1", "tp2"}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, kinds)
		}
	}

	// tp1 has no explicit size: with two active legs outstanding it
	// claims half of 0.20 (0.10), leaving 0.10 for tp2. tp2_perc=10
	// exceeds that remainder, so it clamps down to 0.10 rather than
	// being skipped. The triggers come back Resting, which carries no
	// size, so the submitted sizes are read off the fake's last two
	// calls: trigger_order(symbol,side,size,...).
	sizeOf := func(call string) decimal.Decimal {
		return d(strings.Split(strings.TrimPrefix(call, "trigger_order("), ",")[2])
	}
	if tp1Size := sizeOf(rig.fake.Calls[len(rig.fake.Calls)-2]); !tp1Size.Equal(d("0.10")) {
		t.Fatalf("expected tp1 size 0.10, got %s", tp1Size)
	}
	if tp2Size := sizeOf(rig.fake.Calls[len(rig.fake.Calls)-1]); !tp2Size.Equal(d("0.10")) {
		t.Fatalf("expected tp2 clamped to 0.10, got %s", tp2Size)
	}

	// tp2's trigger is tagged "tp", never the stop's "sl", so Hyperliquid
	// doesn't mistake a take-profit leg for a stop-loss.
	tp2Trigger := rig.fake.Calls[len(rig.fake.Calls)-1]
	if !strings.Contains(tp2Trigger, "kind=tp") {
		t.Fatalf("expected tp2 trigger call tagged kind=tp, got %q", tp2Trigger)
	}
}

func TestTakeProfitPriceDerivedFromEntryFillWhenPriceAbsent(t *testing.T) {
	rig := newTestRig(t)
	r := &run{engine: rig.engine, sig: Signal{Side: venue.Buy}}
	leg := TPLeg{Perc: d("10"), HasPerc: true}
	entryFill := venue.Filled("entry-1", d("160.00"), d("0.20"))

	// Closing a long (closeSide=sell) targets above the entry fill.
	price, err := r.takeProfitPrice(leg, venue.Sell, entryFill)
	if err != nil {
		t.Fatalf("takeProfitPrice: %v", err)
	}
	if !price.Equal(d("176.00")) {
		t.Fatalf("expected 176.00, got %s", price)
	}

	// Closing a short (closeSide=buy) targets below the entry fill.
	price, err = r.takeProfitPrice(leg, venue.Buy, entryFill)
	if err != nil {
		t.Fatalf("takeProfitPrice: %v", err)
	}
	if !price.Equal(d("144.00")) {
		t.Fatalf("expected 144.00, got %s", price)
	}
}

func TestTakeProfitPriceFailsWithoutAnEntryFill(t *testing.T) {
	rig := newTestRig(t)
	r := &run{engine: rig.engine}
	leg := TPLeg{Perc: d("10"), HasPerc: true}

	if _, err := r.takeProfitPrice(leg, venue.Sell, venue.Result{}); err == nil {
		t.Fatalf("expected an error when the entry never filled")
	}
}

func TestScenarioDisabledStrategyShortCircuits(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	if _, err := rig.reg.Toggle(ctx, strategy.IDImbaHyper); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	sig := Signal{
		Symbol: "SOL", Side: venue.Buy, Entry: EntryMarket,
		Quantity: d("0.2"), StrategyID: strategy.IDImbaHyper,
	}
	report, err := rig.engine.Execute(ctx, "0xaddr", sig)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Err == nil || report.Err.Kind != KindStrategyDisabled {
		t.Fatalf("expected StrategyDisabled, got %+v", report)
	}
	if len(report.Calls) != 0 {
		t.Fatalf("expected zero venue calls, got %+v", report.Calls)
	}
	if len(rig.fake.Calls) != 0 {
		t.Fatalf("expected zero fake venue calls, got %v", rig.fake.Calls)
	}
}

func TestInvalidSignalRejectsOversizedQuantity(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	sig := Signal{
		Symbol: "SOL", Side: venue.Buy, Entry: EntryMarket,
		Quantity: d("5000"), StrategyID: strategy.IDOthers,
	}
	report, err := rig.engine.Execute(ctx, "0xaddr", sig)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Err == nil || report.Err.Kind != KindInvalidSignal {
		t.Fatalf("expected InvalidSignal, got %+v", report)
	}
}

func TestChildRejectionYieldsPartialWithoutRollback(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.fake.TriggerOrderQueue = append(rig.fake.TriggerOrderQueue, venue.Rejected("margin", "insufficient margin for stop"))

	sig := Signal{
		Symbol: "SOL", Side: venue.Buy, Entry: EntryMarket,
		Quantity: d("0.2"), StrategyID: strategy.IDOthers,
		Stop: d("170.0"), HasStop: true,
	}
	report, err := rig.engine.Execute(ctx, "0xaddr", sig)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Terminal != DonePartial {
		t.Fatalf("expected DONE_PARTIAL, got %v", report.Terminal)
	}
	if len(report.Calls) != 2 || report.Calls[0].OrderKind != "entry" {
		t.Fatalf("expected entry to remain recorded despite stop rejection, got %+v", report.Calls)
	}
}

package venue

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFakeMarketCloseNullWhenFlat(t *testing.T) {
	f := NewFake()
	result, err := f.MarketClose(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != KindNull {
		t.Fatalf("expected KindNull on a flat symbol, got %v", result.Kind)
	}
}

func TestFakeMarketCloseFilledWhenPositioned(t *testing.T) {
	f := NewFake()
	f.SetPosition("SOL", decimal.NewFromFloat(-10.73), decimal.NewFromInt(150))

	result, err := f.MarketClose(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != KindFilled {
		t.Fatalf("expected KindFilled, got %v", result.Kind)
	}
	if !result.Size.Equal(decimal.NewFromFloat(10.73)) {
		t.Fatalf("expected closed size 10.73, got %s", result.Size)
	}
}

func TestFakeMarketOpenUpdatesPosition(t *testing.T) {
	f := NewFake()
	if _, err := f.MarketOpen(context.Background(), "SOL", Buy, decimal.NewFromFloat(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state, err := f.ClearinghouseState(context.Background(), "addr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.Positions) != 1 || !state.Positions[0].Size.Equal(decimal.NewFromFloat(5)) {
		t.Fatalf("expected a single 5 SOL long position, got %+v", state.Positions)
	}
}

func TestRejectedIsDistinctFromNull(t *testing.T) {
	f := NewFake()
	f.MarketCloseQueue = append(f.MarketCloseQueue, Rejected("insufficient_margin", "no room to close"))

	result, err := f.MarketClose(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != KindRejected {
		t.Fatalf("expected KindRejected, got %v", result.Kind)
	}
	if result.Kind == KindNull {
		t.Fatalf("rejected must never be confused with null")
	}
}

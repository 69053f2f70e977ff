package strategy

import (
	"context"
	"testing"

	"github.com/iacriptoficial/hypermid-bridge/pkg/bridgedb"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := bridgedb.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := bridgedb.ApplyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	r, err := New(db)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return r
}

func TestSeedsAlwaysExist(t *testing.T) {
	r := newTestRegistry(t)

	if _, ok := r.Get(IDImbaHyper); !ok {
		t.Fatal("expected IMBA_HYPER to be seeded")
	}
	if _, ok := r.Get(IDOthers); !ok {
		t.Fatal("expected OTHERS to be seeded")
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	first, err := r.Ensure(ctx, "FRESH_ID")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	second, err := r.Ensure(ctx, "FRESH_ID")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same row back, got %+v and %+v", first, second)
	}

	matches := 0
	for _, s := range r.List() {
		if s.ID == "FRESH_ID" {
			matches++
		}
	}
	if matches != 1 {
		t.Fatalf("expected exactly one registry entry for FRESH_ID, got %d", matches)
	}
}

func TestEnsureUnknownInheritsOthersDefaults(t *testing.T) {
	r := newTestRegistry(t)

	s, err := r.Ensure(context.Background(), "NEW_STRATEGY")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	others, _ := r.Get(IDOthers)
	if !s.Rules.MaxPositionSize.Equal(others.Rules.MaxPositionSize) {
		t.Fatalf("expected OTHERS defaults, got %+v", s.Rules)
	}
	if !s.Enabled {
		t.Fatal("expected auto-registered strategy to start enabled")
	}
}

func TestToggleFlipsEnabled(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	before, _ := r.Get(IDOthers)
	enabled, err := r.Toggle(ctx, IDOthers)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if enabled == before.Enabled {
		t.Fatal("expected toggle to flip enabled state")
	}
}

func TestIncrementUpdatesStats(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if err := r.Increment(ctx, IDOthers, OutcomeSuccess); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := r.Increment(ctx, IDOthers, OutcomeFailure); err != nil {
		t.Fatalf("increment: %v", err)
	}

	s, _ := r.Get(IDOthers)
	if s.Stats.TotalWebhooks != 2 || s.Stats.SuccessfulForwards != 1 || s.Stats.FailedForwards != 1 {
		t.Fatalf("unexpected stats: %+v", s.Stats)
	}
}

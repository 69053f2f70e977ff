// Package strategy is the registry of known strategy ids, their risk
// rules, and their running forward-success statistics.
package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/iacriptoficial/hypermid-bridge/pkg/bridgedb"
)

// Reserved ids that always exist and are never deleted.
const (
	IDImbaHyper = "IMBA_HYPER"
	IDOthers    = "OTHERS"
)

// Rules are the three risk tunables each strategy carries. The registry
// stores and serves them; the Execution Engine does not read or enforce
// them.
type Rules struct {
	MaxPositionSize decimal.Decimal
	MaxDailyTrades  int
	MaxDrawdown     decimal.Decimal
}

// Stats are monotonic counters, mutated only by the execution engine under
// the caller's symbol lock.
type Stats struct {
	TotalWebhooks      int64
	SuccessfulForwards int64
	FailedForwards     int64
}

// Strategy is one registry row.
type Strategy struct {
	ID      string
	Enabled bool
	Rules   Rules
	Stats   Stats
}

var seedDefaults = map[string]Rules{
	IDImbaHyper: {
		MaxPositionSize: decimal.NewFromFloat(100.0),
		MaxDailyTrades:  50,
		MaxDrawdown:     decimal.NewFromFloat(0.05),
	},
	IDOthers: {
		MaxPositionSize: decimal.NewFromFloat(50.0),
		MaxDailyTrades:  25,
		MaxDrawdown:     decimal.NewFromFloat(0.03),
	},
}

// Outcome tags what Increment should bump.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

// Registry is the SQLite-backed strategy store, mirrored in an in-memory
// cache guarded by a mutex for read-heavy access.
type Registry struct {
	db *bridgedb.Database

	mu    sync.RWMutex
	cache map[string]Strategy
}

// New opens a Registry over an already-migrated database and seeds
// IMBA_HYPER/OTHERS if they are missing.
func New(db *bridgedb.Database) (*Registry, error) {
	r := &Registry{db: db, cache: map[string]Strategy{}}
	if err := r.load(); err != nil {
		return nil, err
	}
	for id, rules := range seedDefaults {
		if _, ok := r.cache[id]; !ok {
			if _, err := r.ensure(context.Background(), id, rules); err != nil {
				return nil, fmt.Errorf("strategy: seed %s: %w", id, err)
			}
		}
	}
	return r, nil
}

func (r *Registry) load() error {
	rows, err := r.db.DB.Query(`SELECT id, enabled, max_position_size, max_daily_trades, max_drawdown,
		total_webhooks, successful_forwards, failed_forwards FROM strategies`)
	if err != nil {
		return fmt.Errorf("strategy: load: %w", err)
	}
	defer rows.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	for rows.Next() {
		var (
			s                    Strategy
			enabled              int
			maxPos, maxDrawdown  string
		)
		if err := rows.Scan(&s.ID, &enabled, &maxPos, &s.Rules.MaxDailyTrades, &maxDrawdown,
			&s.Stats.TotalWebhooks, &s.Stats.SuccessfulForwards, &s.Stats.FailedForwards); err != nil {
			return fmt.Errorf("strategy: scan: %w", err)
		}
		s.Enabled = enabled != 0
		s.Rules.MaxPositionSize, _ = decimal.NewFromString(maxPos)
		s.Rules.MaxDrawdown, _ = decimal.NewFromString(maxDrawdown)
		r.cache[s.ID] = s
	}
	return rows.Err()
}

// Get returns one strategy and whether it exists.
func (r *Registry) Get(id string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.cache[id]
	return s, ok
}

// List returns every known strategy.
func (r *Registry) List() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, 0, len(r.cache))
	for _, s := range r.cache {
		out = append(out, s)
	}
	return out
}

// ListIDs returns every known strategy id.
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.cache))
	for id := range r.cache {
		out = append(out, id)
	}
	return out
}

// Toggle flips enabled and persists it, returning the new value.
func (r *Registry) Toggle(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	s, ok := r.cache[id]
	if !ok {
		r.mu.Unlock()
		return false, fmt.Errorf("strategy: unknown id %q", id)
	}
	s.Enabled = !s.Enabled
	r.cache[id] = s
	r.mu.Unlock()

	_, err := r.db.DB.ExecContext(ctx,
		`UPDATE strategies SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		boolToInt(s.Enabled), id,
	)
	if err != nil {
		return false, fmt.Errorf("strategy: toggle %s: %w", id, err)
	}
	return s.Enabled, nil
}

// Ensure auto-registers id with OTHERS defaults, enabled=true, if it is
// not already known. Idempotent: a second call on an already-known id is
// a no-op that returns the existing row.
func (r *Registry) Ensure(ctx context.Context, id string) (Strategy, error) {
	r.mu.RLock()
	s, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}
	return r.ensure(ctx, id, seedDefaults[IDOthers])
}

func (r *Registry) ensure(ctx context.Context, id string, rules Rules) (Strategy, error) {
	s := Strategy{ID: id, Enabled: true, Rules: rules}

	_, err := r.db.DB.ExecContext(ctx,
		`INSERT INTO strategies (id, enabled, max_position_size, max_daily_trades, max_drawdown)
		 VALUES (?, 1, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, rules.MaxPositionSize.String(), rules.MaxDailyTrades, rules.MaxDrawdown.String(),
	)
	if err != nil {
		return Strategy{}, fmt.Errorf("strategy: ensure %s: %w", id, err)
	}

	r.mu.Lock()
	if existing, ok := r.cache[id]; ok {
		s = existing
	} else {
		r.cache[id] = s
	}
	r.mu.Unlock()

	return s, nil
}

// Increment bumps total_webhooks plus either successful_forwards or
// failed_forwards, under the caller's symbol lock.
func (r *Registry) Increment(ctx context.Context, id string, outcome Outcome) error {
	r.mu.Lock()
	s, ok := r.cache[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("strategy: unknown id %q", id)
	}
	s.Stats.TotalWebhooks++
	column := "successful_forwards"
	if outcome == OutcomeSuccess {
		s.Stats.SuccessfulForwards++
	} else {
		column = "failed_forwards"
		s.Stats.FailedForwards++
	}
	r.cache[id] = s
	r.mu.Unlock()

	query := fmt.Sprintf(
		`UPDATE strategies SET total_webhooks = total_webhooks + 1, %s = %s + 1,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`, column, column,
	)
	if _, err := r.db.DB.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("strategy: increment %s: %w", id, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}


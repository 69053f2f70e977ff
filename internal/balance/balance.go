// Package balance maintains a single-slot, TTL-bounded snapshot of the
// account's USDC-equivalent balance so the status endpoint only makes a
// venue round trip when the cache has actually gone stale.
package balance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/iacriptoficial/hypermid-bridge/internal/venue"
)

const defaultTTL = 30 * time.Second

// Snapshot is a value-copy of the cached balance; callers never see a
// pointer into the cache's internal state.
type Snapshot struct {
	USDCEquivalent decimal.Decimal
	FetchedAt      time.Time
}

// Cache owns the single balance snapshot for the resolved account address.
// The Balance Cache exclusively owns this snapshot; readers only ever get
// value copies out of GetBalance.
type Cache struct {
	port venue.Port
	addr string
	ttl  time.Duration

	mu       sync.RWMutex
	snapshot Snapshot
	primed   bool

	group singleflight.Group
}

// New builds a Cache that reads addr's state from port on miss.
func New(port venue.Port, addr string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{port: port, addr: addr, ttl: ttl}
}

// GetBalance returns the current snapshot, refreshing it first if it is
// stale or has never been filled. Concurrent callers that all observe a
// stale cache at once collapse onto a single upstream fetch via
// singleflight — only one of them actually calls the venue.
func (c *Cache) GetBalance(ctx context.Context) (Snapshot, error) {
	c.mu.RLock()
	fresh := c.primed && time.Since(c.snapshot.FetchedAt) < c.ttl
	snap := c.snapshot
	c.mu.RUnlock()

	if fresh {
		return snap, nil
	}
	return c.refresh(ctx)
}

// Sync forces an immediate refresh regardless of TTL, used to prime the
// cache at process start.
func (c *Cache) Sync(ctx context.Context) error {
	_, err := c.refresh(ctx)
	return err
}

// SetPort repoints the cache at a different venue port/address and
// invalidates the current snapshot, for a testnet<->mainnet switch.
func (c *Cache) SetPort(port venue.Port, addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.port = port
	c.addr = addr
	c.snapshot = Snapshot{}
	c.primed = false
}

func (c *Cache) refresh(ctx context.Context) (Snapshot, error) {
	c.mu.RLock()
	port, addr := c.port, c.addr
	c.mu.RUnlock()

	v, err, _ := c.group.Do("refresh", func() (any, error) {
		perp, err := port.ClearinghouseState(ctx, addr)
		if err != nil {
			return Snapshot{}, fmt.Errorf("balance: read clearinghouse state: %w", err)
		}
		spot, err := port.SpotState(ctx, addr)
		if err != nil {
			return Snapshot{}, fmt.Errorf("balance: read spot state: %w", err)
		}

		total := perp.PerpEquity
		for _, b := range spot.Balances {
			if b.Asset == "USDC" {
				total = total.Add(b.Total)
			}
		}

		snap := Snapshot{USDCEquivalent: total, FetchedAt: time.Now()}

		c.mu.Lock()
		c.snapshot = snap
		c.primed = true
		c.mu.Unlock()

		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

// Package account resolves a configured key address to the address whose
// state should be read and written for the rest of the process lifetime.
package account

import (
	"context"
	"fmt"
	"sync"

	"github.com/iacriptoficial/hypermid-bridge/internal/venue"
)

// ErrConfiguration is returned when a configured key address resolves to
// an unknown role. Callers should treat this as fatal at startup.
var ErrConfiguration = fmt.Errorf("account: configured key has unknown venue role")

// Resolver caches the key-address-to-master-address mapping for the
// process lifetime. Resolve is idempotent: once an address has resolved,
// subsequent calls never hit the venue again.
type Resolver struct {
	mu    sync.RWMutex
	port  venue.Port
	cache map[string]string // keyAddr -> addr to operate on
}

// New builds a Resolver over the given Port.
func New(port venue.Port) *Resolver {
	return &Resolver{port: port, cache: map[string]string{}}
}

// Resolve returns the address whose state should be read/written for
// keyAddr: keyAddr itself when it is a master, or its master when it is an
// agent. It fails with ErrConfiguration when the venue reports the role as
// unknown — this should only happen for a misconfigured key.
func (r *Resolver) Resolve(ctx context.Context, keyAddr string) (string, error) {
	r.mu.RLock()
	if addr, ok := r.cache[keyAddr]; ok {
		r.mu.RUnlock()
		return addr, nil
	}
	port := r.port
	r.mu.RUnlock()

	info, err := port.UserRole(ctx, keyAddr)
	if err != nil {
		return "", fmt.Errorf("account: resolve role for %s: %w", keyAddr, err)
	}

	var addr string
	switch info.Role {
	case venue.RoleMaster:
		addr = keyAddr
	case venue.RoleAgent:
		addr = info.MasterAddr
	default:
		return "", fmt.Errorf("%w: %s", ErrConfiguration, keyAddr)
	}

	r.mu.Lock()
	r.cache[keyAddr] = addr
	r.mu.Unlock()

	return addr, nil
}

// SetPort repoints the resolver at a different venue port and clears the
// cache, for a testnet<->mainnet switch: a cached mapping from the old
// venue is meaningless once the underlying account has changed.
func (r *Resolver) SetPort(port venue.Port) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.port = port
	r.cache = map[string]string{}
}

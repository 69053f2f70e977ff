package account

import (
	"context"
	"errors"
	"testing"

	"github.com/iacriptoficial/hypermid-bridge/internal/venue"
)

func TestResolveMasterReturnsItself(t *testing.T) {
	port := venue.NewFake()
	port.Role = venue.RoleInfo{Role: venue.RoleMaster}

	r := New(port)
	addr, err := r.Resolve(context.Background(), "0xmaster")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "0xmaster" {
		t.Fatalf("expected master address unchanged, got %s", addr)
	}
}

func TestResolveAgentReturnsMaster(t *testing.T) {
	port := venue.NewFake()
	port.Role = venue.RoleInfo{Role: venue.RoleAgent, MasterAddr: "0xmaster"}

	r := New(port)
	addr, err := r.Resolve(context.Background(), "0xagent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "0xmaster" {
		t.Fatalf("expected agent to resolve to master, got %s", addr)
	}
}

func TestResolveUnknownRoleIsConfigurationError(t *testing.T) {
	port := venue.NewFake()
	port.Role = venue.RoleInfo{Role: venue.RoleUnknown}

	r := New(port)
	if _, err := r.Resolve(context.Background(), "0xghost"); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestResolveCachesAfterFirstCall(t *testing.T) {
	port := venue.NewFake()
	port.Role = venue.RoleInfo{Role: venue.RoleMaster}

	r := New(port)
	if _, err := r.Resolve(context.Background(), "0xmaster"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Resolve(context.Background(), "0xmaster"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := 0
	for _, c := range port.Calls {
		if c == "user_role" {
			calls++
		}
	}
	if calls != 1 {
		t.Fatalf("expected exactly one venue call, got %d", calls)
	}
}

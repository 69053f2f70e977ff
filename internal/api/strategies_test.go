package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStrategyListAndToggle(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router)
	defer ts.Close()

	var ids struct {
		IDs []string `json:"ids"`
	}
	status := doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/strategies/ids", nil, &ids)
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	found := false
	for _, id := range ids.IDs {
		if id == "IMBA_HYPER" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected seeded strategy ids to include IMBA_HYPER, got %v", ids.IDs)
	}

	var toggled struct {
		ID      string `json:"id"`
		Enabled bool   `json:"enabled"`
	}
	status = doJSONRequest(t, ts.Client(), http.MethodPost, ts.URL+"/api/strategies/IMBA_HYPER/toggle", nil, &toggled)
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	if toggled.Enabled {
		t.Fatalf("expected IMBA_HYPER to be disabled after toggling an enabled default")
	}

	var single struct {
		Enabled bool `json:"enabled"`
	}
	status = doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/strategies/IMBA_HYPER", nil, &single)
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	if single.Enabled {
		t.Fatalf("expected get-after-toggle to reflect the disabled state")
	}
}

func TestStrategyToggleUnknownIDIs404(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router)
	defer ts.Close()

	var resp struct {
		Code string `json:"code"`
	}
	status := doJSONRequest(t, ts.Client(), http.MethodPost, ts.URL+"/api/strategies/NO_SUCH_STRATEGY/toggle", nil, &resp)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if resp.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", resp.Code)
	}
}

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhooksEmptyFilterYieldsEmptySet(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router)
	defer ts.Close()

	for i := 0; i < 3; i++ {
		var resp map[string]any
		status := doJSONRequest(t, ts.Client(), http.MethodPost, ts.URL+"/api/webhook/tradingview", tradingViewPayload(), &resp)
		if status != http.StatusOK {
			t.Fatalf("seed dispatch status=%d", status)
		}
	}

	var withFilterOmitted struct {
		Webhooks []map[string]any `json:"webhooks"`
	}
	status := doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/webhooks", nil, &withFilterOmitted)
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	if len(withFilterOmitted.Webhooks) == 0 {
		t.Fatalf("expected entries when the strategy_ids filter is omitted entirely")
	}

	var withEmptyFilter struct {
		Webhooks []map[string]any `json:"webhooks"`
	}
	status = doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/webhooks?strategy_ids=", nil, &withEmptyFilter)
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	if len(withEmptyFilter.Webhooks) != 0 {
		t.Fatalf("expected an explicit empty strategy_ids filter to yield zero entries, got %d", len(withEmptyFilter.Webhooks))
	}
}

func TestResponsesEmptyFilterYieldsEmptySet(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router)
	defer ts.Close()

	var dispatch map[string]any
	status := doJSONRequest(t, ts.Client(), http.MethodPost, ts.URL+"/api/webhook/tradingview", tradingViewPayload(), &dispatch)
	if status != http.StatusOK {
		t.Fatalf("seed dispatch status=%d", status)
	}

	var resp struct {
		Responses []map[string]any `json:"responses"`
	}
	status = doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/responses?strategy_ids=", nil, &resp)
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	if len(resp.Responses) != 0 {
		t.Fatalf("expected empty responses filter to short-circuit, got %d", len(resp.Responses))
	}
}

func TestLogsRoundTripAndClear(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router)
	defer ts.Close()

	var payload map[string]any
	status := doJSONRequest(t, ts.Client(), http.MethodPost, ts.URL+"/api/webhook/tradingview", tradingViewPayload(), &payload)
	if status != http.StatusOK {
		t.Fatalf("seed dispatch status=%d", status)
	}

	var logs struct {
		Logs []map[string]any `json:"logs"`
	}
	status = doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/logs", nil, &logs)
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}

	var cleared struct {
		DeletedCount int64 `json:"deleted_count"`
	}
	status = doJSONRequest(t, ts.Client(), http.MethodDelete, ts.URL+"/api/logs", nil, &cleared)
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}

	var afterClear struct {
		Logs []map[string]any `json:"logs"`
	}
	status = doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/api/logs", nil, &afterClear)
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	if len(afterClear.Logs) != 0 {
		t.Fatalf("expected zero logs after clear, got %d", len(afterClear.Logs))
	}
}

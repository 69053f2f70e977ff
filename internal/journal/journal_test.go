package journal

import (
	"context"
	"testing"

	"github.com/iacriptoficial/hypermid-bridge/pkg/bridgedb"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := bridgedb.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := bridgedb.ApplyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return New(db)
}

func TestAppendAndRecentLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AppendLog(ctx, LevelInfo, "first", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendLog(ctx, LevelError, "second", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	logs, err := s.RecentLogs(ctx, 10, "")
	if err != nil {
		t.Fatalf("recent logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Message != "second" {
		t.Fatalf("expected newest-first ordering, got %s first", logs[0].Message)
	}
}

func TestClearLogsReturnsDeletedCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.AppendLog(ctx, LevelInfo, "x", nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	deleted, err := s.ClearLogs(ctx)
	if err != nil {
		t.Fatalf("clear logs: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}

	logs, err := s.RecentLogs(ctx, 10, "")
	if err != nil {
		t.Fatalf("recent logs: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("expected empty log table after clear, got %d", len(logs))
	}
}

func TestWebhookReceivedPrecedesLinkedResponses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	webhookSeq, err := s.AppendWebhook(ctx, "IMBA_HYPER", "accepted", map[string]string{"symbol": "SOL"})
	if err != nil {
		t.Fatalf("append webhook: %v", err)
	}
	responseSeq, err := s.AppendResponse(ctx, "IMBA_HYPER", "ok", "market_open", map[string]string{"order_id": "1"})
	if err != nil {
		t.Fatalf("append response: %v", err)
	}

	if webhookSeq >= responseSeq {
		t.Fatalf("expected webhook seq %d to precede response seq %d", webhookSeq, responseSeq)
	}
}

func TestRecentWebhooksEmptyFilterYieldsEmptySet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AppendWebhook(ctx, "IMBA_HYPER", "accepted", map[string]string{}); err != nil {
		t.Fatalf("append webhook: %v", err)
	}

	all, err := s.RecentWebhooks(ctx, 10, nil)
	if err != nil {
		t.Fatalf("recent webhooks: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 webhook with no filter, got %d", len(all))
	}

	filtered, err := s.RecentWebhooks(ctx, 10, []string{})
	if err != nil {
		t.Fatalf("recent webhooks: %v", err)
	}
	if len(filtered) != 0 {
		t.Fatalf("expected empty filter to yield empty set, got %d", len(filtered))
	}

	isolated, err := s.RecentWebhooks(ctx, 10, []string{"OTHERS"})
	if err != nil {
		t.Fatalf("recent webhooks: %v", err)
	}
	if len(isolated) != 0 {
		t.Fatalf("expected strategy isolation to exclude non-matching ids, got %d", len(isolated))
	}
}

// Package journal is the append-only, insertion-ordered record of every
// log line, inbound webhook, and outbound venue response the bridge
// produces. Entries are owned by the store and never mutated after Append.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iacriptoficial/hypermid-bridge/pkg/bridgedb"
)

// saoPauloOffset is fixed rather than loaded from tzdata so the formatter
// never depends on the runtime environment having zoneinfo installed.
var saoPauloOffset = time.FixedZone("-03:00", -3*60*60)

// Now returns the current instant in the fixed -03:00 offset every
// timestamp in this system is stamped with.
func Now() time.Time {
	return time.Now().In(saoPauloOffset)
}

// FormatInstant renders t as ISO-8601 with the -03:00 offset attached
// unconditionally, regardless of t's own location.
func FormatInstant(t time.Time) string {
	return t.In(saoPauloOffset).Format("2006-01-02T15:04:05.000-07:00")
}

// Level is a log severity.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// LogEntry is the Log JournalEntry variant.
type LogEntry struct {
	Seq     int64
	Instant time.Time
	Level   Level
	Message string
	Details string
}

// WebhookEntry is the WebhookReceived JournalEntry variant.
type WebhookEntry struct {
	Seq        int64
	Instant    time.Time
	StrategyID string
	Status     string
	Payload    string
}

// ResponseEntry is the VenueResponse JournalEntry variant.
type ResponseEntry struct {
	Seq        int64
	Instant    time.Time
	StrategyID string
	Status     string
	OrderKind  string
	Payload    string
}

// Store is the journal backed by bridgedb. All writes are synchronous:
// a WebhookReceived entry is durably visible to readers before Append
// returns, which is what lets callers rely on it preceding every
// VenueResponse entry linked to the same signal.
type Store struct {
	db *bridgedb.Database
}

// nextSeq draws the next Seq from one receive order shared by the logs,
// webhooks and responses tables: sqlite_sequence holds the highest seq
// each table has ever issued, deleted rows included.
const nextSeq = `(SELECT COALESCE(MAX(seq), 0) + 1 FROM sqlite_sequence WHERE name IN ('logs', 'webhooks', 'responses'))`

// New wraps an already-migrated database as a journal store.
func New(db *bridgedb.Database) *Store {
	return &Store{db: db}
}

// AppendLog records a Log entry.
func (s *Store) AppendLog(ctx context.Context, level Level, message string, details any) (int64, error) {
	var detailsJSON string
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return 0, fmt.Errorf("journal: encode log details: %w", err)
		}
		detailsJSON = string(raw)
	}

	instant := Now()
	res, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO logs (seq, instant, level, message, details) VALUES (`+nextSeq+`, ?, ?, ?, ?)`,
		FormatInstant(instant), string(level), message, detailsJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("journal: append log: %w", err)
	}
	return res.LastInsertId()
}

// AppendWebhook records a WebhookReceived entry.
func (s *Store) AppendWebhook(ctx context.Context, strategyID, status string, payload any) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("journal: encode webhook payload: %w", err)
	}

	instant := Now()
	res, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO webhooks (seq, instant, strategy_id, status, payload) VALUES (`+nextSeq+`, ?, ?, ?, ?)`,
		FormatInstant(instant), strategyID, status, string(raw),
	)
	if err != nil {
		return 0, fmt.Errorf("journal: append webhook: %w", err)
	}
	return res.LastInsertId()
}

// AppendResponse records a VenueResponse entry.
func (s *Store) AppendResponse(ctx context.Context, strategyID, status, orderKind string, payload any) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("journal: encode response payload: %w", err)
	}

	instant := Now()
	res, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO responses (seq, instant, strategy_id, status, order_kind, payload) VALUES (`+nextSeq+`, ?, ?, ?, ?, ?)`,
		FormatInstant(instant), strategyID, status, orderKind, string(raw),
	)
	if err != nil {
		return 0, fmt.Errorf("journal: append response: %w", err)
	}
	return res.LastInsertId()
}

// RecentLogs returns up to limit logs, newest first, optionally filtered
// by level. limit <= 0 defaults to 100.
func (s *Store) RecentLogs(ctx context.Context, limit int, level Level) ([]LogEntry, error) {
	limit = normalizeLimit(limit)

	query := `SELECT seq, instant, level, message, COALESCE(details, '') FROM logs`
	args := []any{}
	if level != "" {
		query += ` WHERE level = ?`
		args = append(args, string(level))
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query logs: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var (
			e        LogEntry
			instant  string
			lvl      string
		)
		if err := rows.Scan(&e.Seq, &instant, &lvl, &e.Message, &e.Details); err != nil {
			return nil, fmt.Errorf("journal: scan log: %w", err)
		}
		e.Level = Level(lvl)
		e.Instant, _ = time.Parse("2006-01-02T15:04:05.000-07:00", instant)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearLogs deletes every log entry and returns the count deleted.
func (s *Store) ClearLogs(ctx context.Context) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx, `DELETE FROM logs`)
	if err != nil {
		return 0, fmt.Errorf("journal: clear logs: %w", err)
	}
	return res.RowsAffected()
}

// RecentWebhooks returns up to limit webhooks, newest first, filtered to
// strategyIDs when non-empty. An empty filter yields the empty set, per
// the strategy-isolation invariant — callers pass nil for "no filter
// requested" (all strategies) and an explicit empty slice for "filter to
// nothing".
func (s *Store) RecentWebhooks(ctx context.Context, limit int, strategyIDs []string) ([]WebhookEntry, error) {
	if strategyIDs != nil && len(strategyIDs) == 0 {
		return []WebhookEntry{}, nil
	}
	limit = normalizeLimit(limit)

	query := `SELECT seq, instant, strategy_id, status, payload FROM webhooks`
	args := []any{}
	if len(strategyIDs) > 0 {
		query += ` WHERE strategy_id IN (` + placeholders(len(strategyIDs)) + `)`
		for _, id := range strategyIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query webhooks: %w", err)
	}
	defer rows.Close()

	var out []WebhookEntry
	for rows.Next() {
		var (
			e       WebhookEntry
			instant string
		)
		if err := rows.Scan(&e.Seq, &instant, &e.StrategyID, &e.Status, &e.Payload); err != nil {
			return nil, fmt.Errorf("journal: scan webhook: %w", err)
		}
		e.Instant, _ = time.Parse("2006-01-02T15:04:05.000-07:00", instant)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentResponses returns up to limit venue responses, newest first,
// filtered to strategyIDs when non-empty (same empty-filter semantics as
// RecentWebhooks).
func (s *Store) RecentResponses(ctx context.Context, limit int, strategyIDs []string) ([]ResponseEntry, error) {
	if strategyIDs != nil && len(strategyIDs) == 0 {
		return []ResponseEntry{}, nil
	}
	limit = normalizeLimit(limit)

	query := `SELECT seq, instant, strategy_id, status, order_kind, payload FROM responses`
	args := []any{}
	if len(strategyIDs) > 0 {
		query += ` WHERE strategy_id IN (` + placeholders(len(strategyIDs)) + `)`
		for _, id := range strategyIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query responses: %w", err)
	}
	defer rows.Close()

	var out []ResponseEntry
	for rows.Next() {
		var (
			e       ResponseEntry
			instant string
		)
		if err := rows.Scan(&e.Seq, &instant, &e.StrategyID, &e.Status, &e.OrderKind, &e.Payload); err != nil {
			return nil, fmt.Errorf("journal: scan response: %w", err)
		}
		e.Instant, _ = time.Parse("2006-01-02T15:04:05.000-07:00", instant)
		out = append(out, e)
	}
	return out, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ",")
}


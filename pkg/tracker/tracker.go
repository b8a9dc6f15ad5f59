package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/studioweb/quoteai/pkg/models"
)

// Tracker records and queries model usage.
type Tracker interface {
	// Record stores one model call.
	Record(ctx context.Context, rec models.UsageRecord) error
	// Query returns records created at or after since, newest first.
	Query(ctx context.Context, since time.Time) ([]models.UsageRecord, error)
	// TotalTokens returns the tokens spent since a given time.
	TotalTokens(ctx context.Context, since time.Time) (int64, error)
	// Summary aggregates records since a given time by model and outcome.
	Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS model_usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	call_id TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	model TEXT NOT NULL,
	outcome TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_model_usage_time ON model_usage(created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	dsn := dbPath
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores a usage record. A zero CreatedAt means now; an empty CallID
// gets a random UUID.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.CallID == "" {
		rec.CallID = uuid.NewString()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO model_usage (call_id, fingerprint, model, outcome, prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CallID, rec.Fingerprint, rec.Model, rec.Outcome, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.LatencyMs, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Query returns usage records since a given time.
func (t *SQLiteTracker) Query(ctx context.Context, since time.Time) ([]models.UsageRecord, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, call_id, fingerprint, model, outcome, prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at
		 FROM model_usage WHERE created_at >= ? ORDER BY created_at DESC, id DESC`,
		since.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		var created int64
		if err := rows.Scan(&r.ID, &r.CallID, &r.Fingerprint, &r.Model, &r.Outcome, &r.PromptTokens, &r.CompletionTokens,
			&r.TotalTokens, &r.LatencyMs, &created); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		r.CreatedAt = time.UnixMilli(created).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// TotalTokens returns total tokens used since a given time.
func (t *SQLiteTracker) TotalTokens(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_tokens), 0) FROM model_usage WHERE created_at >= ?`,
		since.UnixMilli(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total usage: %w", err)
	}
	return total, nil
}

// Summary returns aggregated usage grouped by model and outcome.
func (t *SQLiteTracker) Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT model, outcome, COUNT(*), SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens),
		        CAST(AVG(latency_ms) AS INTEGER)
		 FROM model_usage WHERE created_at >= ?
		 GROUP BY model, outcome ORDER BY model, outcome`,
		since.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		if err := rows.Scan(&s.Model, &s.Outcome, &s.RequestCount, &s.TotalPrompt, &s.TotalCompletion,
			&s.TotalTokens, &s.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}

// Package sqlcache is the database/sql backend of the suggestion cache. It
// runs on embedded SQLite (modernc.org/sqlite) or a shared PostgreSQL
// server (lib/pq) with the same schema.
package sqlcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/studioweb/quoteai/pkg/cache"
	"github.com/studioweb/quoteai/pkg/models"
)

// Dialect selects the SQL driver and placeholder style.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Timestamps are unix milliseconds so both drivers scan them the same way.
const createCacheTable = `
CREATE TABLE IF NOT EXISTS suggestion_cache (
	fingerprint TEXT PRIMARY KEY,
	source_text TEXT NOT NULL,
	project_type TEXT NOT NULL,
	page_list TEXT NOT NULL,
	explanation TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	use_count BIGINT NOT NULL DEFAULT 1,
	last_used_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_suggestion_cache_last_used ON suggestion_cache(last_used_at);
CREATE INDEX IF NOT EXISTS idx_suggestion_cache_use_count ON suggestion_cache(use_count);
`

const entryColumns = `fingerprint, source_text, project_type, page_list, explanation, created_at, use_count, last_used_at`

// Store is a cache.Store on database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ cache.Store = (*Store)(nil)

// Open connects and creates the table if needed. For SQLite dsn is a file
// path; for PostgreSQL it is a lib/pq connection string.
func Open(dialect Dialect, dsn string) (*Store, error) {
	var driver, source string
	switch dialect {
	case SQLite:
		driver = "sqlite"
		source = sqliteDSN(dsn)
	case Postgres:
		driver = "postgres"
		source = dsn
	default:
		return nil, fmt.Errorf("sqlcache: unknown dialect %q", dialect)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w: %w", cache.ErrUnavailable, err)
	}

	if dialect == SQLite {
		// One writer at a time; queued callers wait on the pool instead of
		// failing with SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w: %w", cache.ErrUnavailable, err)
	}

	return &Store{db: db, dialect: dialect, now: time.Now}, nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Lookup increments use_count and returns the updated row in one statement.
func (s *Store) Lookup(ctx context.Context, fingerprint string) (models.CacheEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`UPDATE suggestion_cache SET use_count = use_count + 1, last_used_at = ?
		 WHERE fingerprint = ? RETURNING `+entryColumns),
		s.now().UnixMilli(), fingerprint,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("cache lookup: %w: %w", cache.ErrUnavailable, err)
	}
	return e, true, nil
}

// InsertIfAbsent relies on the primary key to pick one writer. A losing
// writer reads the winner's row through Lookup, which counts it as a use.
func (s *Store) InsertIfAbsent(ctx context.Context, fingerprint, sourceText string, sg models.Suggestion) (models.CacheEntry, bool, error) {
	pages, err := json.Marshal(sg.PageList)
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("encode page list: %w", err)
	}

	now := s.now().UnixMilli()
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO suggestion_cache (`+entryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		 ON CONFLICT (fingerprint) DO NOTHING`),
		fingerprint, sourceText, string(sg.ProjectType), string(pages), sg.Explanation, now, now,
	)
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("cache insert: %w: %w", cache.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("cache insert: %w: %w", cache.ErrUnavailable, err)
	}

	if n == 1 {
		t := time.UnixMilli(now).UTC()
		return models.CacheEntry{
			Fingerprint: fingerprint,
			SourceText:  sourceText,
			ProjectType: sg.ProjectType,
			PageList:    append([]string(nil), sg.PageList...),
			Explanation: sg.Explanation,
			CreatedAt:   t,
			UseCount:    1,
			LastUsedAt:  t,
		}, true, nil
	}

	winner, ok, err := s.Lookup(ctx, fingerprint)
	if err != nil {
		return models.CacheEntry{}, false, err
	}
	if !ok {
		// Purged between the conflicting insert and the read.
		return models.CacheEntry{}, false, fmt.Errorf("cache insert: %w: row %s vanished after conflict", cache.ErrUnavailable, fingerprint)
	}
	return winner, false, nil
}

// PurgeOlderThan deletes rows whose last use is older than age.
func (s *Store) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := s.now().Add(-age).UnixMilli()
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM suggestion_cache WHERE last_used_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w: %w", cache.ErrUnavailable, err)
	}
	return rowsAffected(res)
}

// PurgeAll deletes every row.
func (s *Store) PurgeAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM suggestion_cache`)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w: %w", cache.ErrUnavailable, err)
	}
	return rowsAffected(res)
}

// TopByUsage returns the n most used rows.
func (s *Store) TopByUsage(ctx context.Context, n int) ([]models.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+entryColumns+` FROM suggestion_cache
		 ORDER BY use_count DESC, last_used_at DESC LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("cache top: %w: %w", cache.ErrUnavailable, err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("cache top: %w: %w", cache.ErrUnavailable, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache top: %w: %w", cache.ErrUnavailable, err)
	}
	return entries, nil
}

// Stats returns the row count and summed use counts.
func (s *Store) Stats(ctx context.Context) (models.CacheStats, error) {
	var st models.CacheStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(use_count), 0) FROM suggestion_cache`,
	).Scan(&st.Entries, &st.TotalUses)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w: %w", cache.ErrUnavailable, err)
	}
	return st, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("cache ping: %w: %w", cache.ErrUnavailable, err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (models.CacheEntry, error) {
	var (
		e                   models.CacheEntry
		projectType, pages  string
		createdAt, lastUsed int64
	)
	if err := sc.Scan(&e.Fingerprint, &e.SourceText, &projectType, &pages, &e.Explanation,
		&createdAt, &e.UseCount, &lastUsed); err != nil {
		return models.CacheEntry{}, err
	}
	if err := json.Unmarshal([]byte(pages), &e.PageList); err != nil {
		return models.CacheEntry{}, fmt.Errorf("decode page list: %w", err)
	}
	e.ProjectType = models.ProjectType(projectType)
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	e.LastUsedAt = time.UnixMilli(lastUsed).UTC()
	return e, nil
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w: %w", cache.ErrUnavailable, err)
	}
	return n, nil
}

// Package cache defines the persistent suggestion cache and the fingerprint
// used to key it. Backends live in subpackages.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/studioweb/quoteai/pkg/models"
)

// ErrUnavailable wraps every storage failure. Callers treat it as a signal to
// continue without the cache.
var ErrUnavailable = errors.New("cache unavailable")

// Store is a shared, multiple-writer suggestion cache.
//
// Lookup and InsertIfAbsent are each one atomic storage operation. The
// storage uniqueness constraint on the fingerprint decides concurrent inserts.
type Store interface {
	// Lookup returns the entry for fingerprint, incrementing its use count and
	// refreshing last_used_at in the same operation.
	Lookup(ctx context.Context, fingerprint string) (models.CacheEntry, bool, error)
	// InsertIfAbsent stores the suggestion unless a row already exists. When
	// another writer won, the winner's row is returned with inserted=false.
	InsertIfAbsent(ctx context.Context, fingerprint, sourceText string, s models.Suggestion) (entry models.CacheEntry, inserted bool, err error)
	// PurgeOlderThan deletes entries not used for longer than age.
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
	// PurgeAll deletes every entry.
	PurgeAll(ctx context.Context) (int64, error)
	// TopByUsage returns up to n entries ordered by use count descending.
	TopByUsage(ctx context.Context, n int) ([]models.CacheEntry, error)
	// Stats returns aggregate usage.
	Stats(ctx context.Context) (models.CacheStats, error)
	// Ping checks that the storage is reachable.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close() error
}

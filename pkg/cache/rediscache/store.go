// Package rediscache is the Redis backend of the suggestion cache.
//
// Each entry is a hash at {prefix}:entry:{fingerprint}. Two sorted sets index
// the fingerprints: {prefix}:usage scored by use_count and {prefix}:recency
// scored by last_used_at in unix milliseconds. Every mutation runs as a Lua
// script so the hash and both indexes change together.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studioweb/quoteai/pkg/cache"
	"github.com/studioweb/quoteai/pkg/models"
)

// DefaultPrefix is used when Config.Prefix is empty.
const DefaultPrefix = "quoteai:suggest"

// Config configures key naming.
type Config struct {
	Prefix string
}

// KEYS: entry, usage, recency. ARGV: now_ms, fingerprint.
var lookupScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
local n = redis.call('HINCRBY', KEYS[1], 'use_count', 1)
redis.call('HSET', KEYS[1], 'last_used_at', ARGV[1])
redis.call('ZADD', KEYS[2], n, ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[1], ARGV[2])
return redis.call('HGETALL', KEYS[1])
`)

// KEYS: entry, usage, recency.
// ARGV: fingerprint, source_text, project_type, page_list, explanation, now_ms.
var insertScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], 'fingerprint', ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1],
	'source_text', ARGV[2],
	'project_type', ARGV[3],
	'page_list', ARGV[4],
	'explanation', ARGV[5],
	'created_at', ARGV[6],
	'use_count', '1',
	'last_used_at', ARGV[6])
redis.call('ZADD', KEYS[2], '1', ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[6], ARGV[1])
return 1
`)

// KEYS: recency, usage. ARGV: cutoff_ms (exclusive), entry key prefix.
var purgeOlderScript = redis.NewScript(`
local fps = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, fp in ipairs(fps) do
	redis.call('DEL', ARGV[2] .. fp)
	redis.call('ZREM', KEYS[1], fp)
	redis.call('ZREM', KEYS[2], fp)
end
return #fps
`)

// KEYS: recency, usage. ARGV: entry key prefix.
var purgeAllScript = redis.NewScript(`
local fps = redis.call('ZRANGE', KEYS[1], 0, -1)
for _, fp in ipairs(fps) do
	redis.call('DEL', ARGV[1] .. fp)
end
redis.call('DEL', KEYS[1], KEYS[2])
return #fps
`)

// Store is a cache.Store on Redis. It owns the client and closes it.
type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ cache.Store = (*Store)(nil)

// New creates a Redis-backed cache.
func New(client *redis.Client, cfg Config) *Store {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix, now: time.Now}
}

func (s *Store) entryPrefix() string {
	return s.prefix + ":entry:"
}

func (s *Store) entryKey(fp string) string {
	return s.entryPrefix() + fp
}

func (s *Store) usageKey() string {
	return s.prefix + ":usage"
}

func (s *Store) recencyKey() string {
	return s.prefix + ":recency"
}

// Lookup increments use_count and returns the updated entry atomically.
func (s *Store) Lookup(ctx context.Context, fingerprint string) (models.CacheEntry, bool, error) {
	keys := []string{s.entryKey(fingerprint), s.usageKey(), s.recencyKey()}
	res, err := lookupScript.Run(ctx, s.client, keys, s.now().UnixMilli(), fingerprint).Slice()
	if errors.Is(err, redis.Nil) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("redis lookup failed: %w: %w", cache.ErrUnavailable, err)
	}
	e, err := parseFlatHash(res)
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("redis lookup failed: %w: %w", cache.ErrUnavailable, err)
	}
	return e, true, nil
}

// InsertIfAbsent stores the entry unless the fingerprint field already
// exists. The loser reads the winner through Lookup.
func (s *Store) InsertIfAbsent(ctx context.Context, fingerprint, sourceText string, sg models.Suggestion) (models.CacheEntry, bool, error) {
	pages, err := json.Marshal(sg.PageList)
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("encode page list: %w", err)
	}
	now := s.now().UnixMilli()
	keys := []string{s.entryKey(fingerprint), s.usageKey(), s.recencyKey()}
	won, err := insertScript.Run(ctx, s.client, keys,
		fingerprint, sourceText, string(sg.ProjectType), string(pages), sg.Explanation, now,
	).Int64()
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("redis insert failed: %w: %w", cache.ErrUnavailable, err)
	}

	if won == 1 {
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
		return models.CacheEntry{}, false, fmt.Errorf("redis insert failed: %w: entry %s vanished after conflict", cache.ErrUnavailable, fingerprint)
	}
	return winner, false, nil
}

// PurgeOlderThan deletes entries whose last use is older than age.
func (s *Store) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := s.now().Add(-age).UnixMilli()
	n, err := purgeOlderScript.Run(ctx, s.client,
		[]string{s.recencyKey(), s.usageKey()}, cutoff, s.entryPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis purge failed: %w: %w", cache.ErrUnavailable, err)
	}
	return n, nil
}

// PurgeAll deletes every entry under the prefix.
func (s *Store) PurgeAll(ctx context.Context) (int64, error) {
	n, err := purgeAllScript.Run(ctx, s.client,
		[]string{s.recencyKey(), s.usageKey()}, s.entryPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis purge failed: %w: %w", cache.ErrUnavailable, err)
	}
	return n, nil
}

// TopByUsage returns the n most used entries, ties broken by recency.
func (s *Store) TopByUsage(ctx context.Context, n int) ([]models.CacheEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	head, err := s.client.ZRevRangeWithScores(ctx, s.usageKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis top failed: %w: %w", cache.ErrUnavailable, err)
	}
	if len(head) == 0 {
		return nil, nil
	}

	// Pull every member tied with the last score so recency can break ties.
	threshold := strconv.FormatFloat(head[len(head)-1].Score, 'f', -1, 64)
	fps, err := s.client.ZRevRangeByScore(ctx, s.usageKey(), &redis.ZRangeBy{Max: "+inf", Min: threshold}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis top failed: %w: %w", cache.ErrUnavailable, err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(fps))
	for i, fp := range fps {
		cmds[i] = pipe.HGetAll(ctx, s.entryKey(fp))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis top failed: %w: %w", cache.ErrUnavailable, err)
	}

	entries := make([]models.CacheEntry, 0, len(fps))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		e, err := parseHash(fields)
		if err != nil {
			return nil, fmt.Errorf("redis top failed: %w: %w", cache.ErrUnavailable, err)
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].UseCount != entries[j].UseCount {
			return entries[i].UseCount > entries[j].UseCount
		}
		return entries[i].LastUsedAt.After(entries[j].LastUsedAt)
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// Stats sums the usage index.
func (s *Store) Stats(ctx context.Context) (models.CacheStats, error) {
	zs, err := s.client.ZRangeWithScores(ctx, s.usageKey(), 0, -1).Result()
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("redis stats failed: %w: %w", cache.ErrUnavailable, err)
	}
	st := models.CacheStats{Entries: int64(len(zs))}
	for _, z := range zs {
		st.TotalUses += int64(z.Score)
	}
	return st, nil
}

// Ping checks if Redis connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w: %w", cache.ErrUnavailable, err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func parseFlatHash(res []any) (models.CacheEntry, error) {
	if len(res)%2 != 0 {
		return models.CacheEntry{}, fmt.Errorf("odd hash reply length %d", len(res))
	}
	fields := make(map[string]string, len(res)/2)
	for i := 0; i < len(res); i += 2 {
		k, _ := res[i].(string)
		v, _ := res[i+1].(string)
		fields[k] = v
	}
	return parseHash(fields)
}

func parseHash(fields map[string]string) (models.CacheEntry, error) {
	e := models.CacheEntry{
		Fingerprint: fields["fingerprint"],
		SourceText:  fields["source_text"],
		ProjectType: models.ProjectType(fields["project_type"]),
		Explanation: fields["explanation"],
	}
	if err := json.Unmarshal([]byte(fields["page_list"]), &e.PageList); err != nil {
		return models.CacheEntry{}, fmt.Errorf("decode page list: %w", err)
	}
	var err error
	if e.UseCount, err = strconv.ParseInt(fields["use_count"], 10, 64); err != nil {
		return models.CacheEntry{}, fmt.Errorf("parse use_count: %w", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("parse created_at: %w", err)
	}
	lastUsed, err := strconv.ParseInt(fields["last_used_at"], 10, 64)
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("parse last_used_at: %w", err)
	}
	e.CreatedAt = time.UnixMilli(created).UTC()
	e.LastUsedAt = time.UnixMilli(lastUsed).UTC()
	return e, nil
}

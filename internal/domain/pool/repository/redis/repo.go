package redis

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
)

const (
	scanBatchSize = 500

	// fixed width so that lexical order equals chronological order inside the script
	timestampLayout = "2006-01-02T15:04:05.000000Z"
)

// incrementAndTouch bumps the counter and moves last_used forward only,
// refreshing the TTL of both keys.
var incrementAndTouch = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
local prev = redis.call('GET', KEYS[2])
if (not prev) or prev < ARGV[1] then
	redis.call('SET', KEYS[2], ARGV[1], 'EX', ARGV[2])
else
	redis.call('EXPIRE', KEYS[2], ARGV[2])
end
return count
`)

// CounterRepository stores per account usage in redis under
// account:{platform}:{id}:requests_count and account:{platform}:{id}:last_used
type CounterRepository struct {
	client goredis.UniversalClient
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCounterRepository creates a redis backed counter store
func NewCounterRepository(client goredis.UniversalClient, cfg *config.RedisConfig, logger zerolog.Logger) deps.CounterStore {
	ttl := cfg.CounterTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	return &CounterRepository{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "counter-store").Logger(),
	}
}

// IncrementAndTouch atomically increments the counter and stores now as last use
func (r *CounterRepository) IncrementAndTouch(ctx context.Context, key entities.CounterKey, now time.Time) (int64, error) {
	count, err := incrementAndTouch.Run(ctx, r.client,
		[]string{key.CountKey(), key.LastUsedKey()},
		formatTimestamp(now),
		int64(r.ttl/time.Second),
	).Int64()
	if err != nil {
		return 0, pkgerrors.NewStoreUnavailableError("failed to increment usage counter", err)
	}

	return count, nil
}

// Get reads the counter and last use of an account
func (r *CounterRepository) Get(ctx context.Context, key entities.CounterKey) (entities.UsageRecord, error) {
	values, err := r.client.MGet(ctx, key.CountKey(), key.LastUsedKey()).Result()
	if err != nil {
		return entities.UsageRecord{}, pkgerrors.NewStoreUnavailableError("failed to read usage counter", err)
	}

	var record entities.UsageRecord

	if raw, ok := values[0].(string); ok {
		record.Found = true
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			r.logger.Warn().Str("key", key.CountKey()).Str("value", raw).Msg("Malformed usage counter, treating as zero")
		} else {
			record.Count = count
		}
	}

	if raw, ok := values[1].(string); ok {
		record.Found = true
		ts, err := parseTimestamp(raw)
		if err != nil {
			r.logger.Warn().Str("key", key.LastUsedKey()).Str("value", raw).Msg("Malformed last used timestamp, treating as never used")
		} else {
			record.LastUsed = ts
		}
	}

	return record, nil
}

// Reset removes both counter keys of an account
func (r *CounterRepository) Reset(ctx context.Context, key entities.CounterKey) error {
	if err := r.client.Del(ctx, key.CountKey(), key.LastUsedKey()).Err(); err != nil {
		return pkgerrors.NewStoreUnavailableError("failed to reset usage counter", err)
	}
	return nil
}

// Scan walks the keyspace with SCAN and returns distinct accounts matching pattern
func (r *CounterRepository) Scan(ctx context.Context, pattern string) ([]entities.CounterKey, error) {
	if pattern == "" {
		pattern = entities.AllCountersPattern
	}

	seen := make(map[entities.CounterKey]struct{})
	var cursor uint64

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return nil, pkgerrors.NewStoreUnavailableError("failed to scan usage counters", err)
		}

		for _, k := range keys {
			parsed, ok := entities.ParseCounterKey(k)
			if !ok {
				r.logger.Debug().Str("key", k).Msg("Skipping foreign key during counter scan")
				continue
			}
			seen[parsed] = struct{}{}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	out := make([]entities.CounterKey, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		return out[i].AccountID < out[j].AccountID
	})

	return out, nil
}

// Ping checks redis connectivity
func (r *CounterRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return pkgerrors.NewStoreUnavailableError("redis ping failed", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(timestampLayout, raw); err == nil {
		return ts, nil
	}
	// older writers stored RFC3339 with a zone offset
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, errors.New("unrecognized timestamp format")
	}
	return ts.UTC(), nil
}

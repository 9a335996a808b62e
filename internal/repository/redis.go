package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/pkg/logger"
)

// Each lock is a hash at <prefix>lock:<key> with timestamps in unix nanoseconds.
// The sorted set <prefix>locks:expiry indexes keys by expiry so the sweep never
// scans the keyspace. Scores are unix milliseconds, which a float64 holds exactly;
// the hash keeps the nanoseconds within that millisecond in expires_sub so rows
// expiring in the sweep's own millisecond are compared exactly.
var (
	createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
    return 0
end
redis.call("HSET", KEYS[1],
    "key", ARGV[1], "owner", ARGV[2], "acquired_at", ARGV[3], "expires_at", ARGV[4],
    "modifier", ARGV[5], "service", ARGV[6], "collision", "0", "payload", ARGV[7], "has_payload", ARGV[8],
    "expires_sub", ARGV[10])
redis.call("ZADD", KEYS[2], ARGV[9], ARGV[1])
return 1
`)

	deleteOwnedScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "owner") == ARGV[1] then
    redis.call("DEL", KEYS[1])
    redis.call("ZREM", KEYS[2], ARGV[2])
    return 1
end
return 0
`)

	deleteExpiredScript = redis.NewScript(`
local now_ms = tonumber(ARGV[1])
local now_sub = tonumber(ARGV[2])
local entries = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "WITHSCORES")
local removed = 0
for i = 1, #entries, 2 do
    local key = entries[i]
    local expired = tonumber(entries[i + 1]) < now_ms
    if not expired then
        local sub = redis.call("HGET", ARGV[3] .. key, "expires_sub") or "0"
        expired = tonumber(sub) <= now_sub
    end
    if expired then
        redis.call("DEL", ARGV[3] .. key)
        redis.call("ZREM", KEYS[1], key)
        removed = removed + 1
    end
end
return removed
`)

	markCollisionScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
    redis.call("HSET", KEYS[1], "collision", "1", "collision_at", ARGV[1])
    return 1
end
return 0
`)
)

// RedisStore keeps the lock table in Redis. Every mutation runs as a Lua script,
// which Redis executes atomically.
type RedisStore struct {
	logger *logger.Logger

	client redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store using client. prefix namespaces every key it writes.
func NewRedisStore(client redis.UniversalClient, prefix string, logger *logger.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func (r *RedisStore) lockKey(key string) string {
	return r.prefix + "lock:" + key
}

func (r *RedisStore) expiryKey() string {
	return r.prefix + "locks:expiry"
}

// holidaysKey is a hash of "<calendar>|<day>" -> description.
func (r *RedisStore) holidaysKey() string {
	return r.prefix + "holidays"
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) TryCreate(ctx context.Context, lock *models.DistributedLock) (bool, error) {
	payload, hasPayload := "", "0"
	if lock.Payload != nil {
		payload, hasPayload = *lock.Payload, "1"
	}
	created, err := createScript.Run(ctx, r.client,
		[]string{r.lockKey(lock.LockKey), r.expiryKey()},
		lock.LockKey,
		lock.Owner,
		lock.AcquiredAt.UnixNano(),
		lock.ExpiresAt.UnixNano(),
		lock.ModifierIdentity,
		lock.ServiceTag,
		payload,
		hasPayload,
		lock.ExpiresAt.UnixMilli(),
		subMillis(lock.ExpiresAt),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to create lock %q: %w", lock.LockKey, err)
	}
	return created == 1, nil
}

func (r *RedisStore) FindByKey(ctx context.Context, key string) (*models.DistributedLock, error) {
	fields, err := r.client.HGetAll(ctx, r.lockKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get lock %q: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	lock, err := decodeLock(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode lock %q: %w", key, err)
	}
	return lock, nil
}

func (r *RedisStore) DeleteIfOwnedBy(ctx context.Context, key, owner string) (bool, error) {
	deleted, err := deleteOwnedScript.Run(ctx, r.client,
		[]string{r.lockKey(key), r.expiryKey()}, owner, key).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to delete lock %q: %w", key, err)
	}
	return deleted == 1, nil
}

func (r *RedisStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	removed, err := deleteExpiredScript.Run(ctx, r.client,
		[]string{r.expiryKey()}, now.UnixMilli(), subMillis(now), r.prefix+"lock:").Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to remove expired locks: %w", err)
	}
	return removed, nil
}

func (r *RedisStore) MarkCollision(ctx context.Context, key string, now time.Time) error {
	_, err := markCollisionScript.Run(ctx, r.client,
		[]string{r.lockKey(key)}, now.UnixNano()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to mark collision on lock %q: %w", key, err)
	}
	return nil
}

func (r *RedisStore) ListHolidays(ctx context.Context) ([]*models.Holiday, error) {
	fields, err := r.client.HGetAll(ctx, r.holidaysKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}

	holidays := make([]*models.Holiday, 0, len(fields))
	for field, description := range fields {
		code, day, ok := strings.Cut(field, "|")
		if !ok {
			r.logger.Warnw("Skipping malformed holiday entry", "field", field)
			continue
		}
		holidays = append(holidays, &models.Holiday{CalendarCode: code, Day: day, Description: description})
	}
	sort.Slice(holidays, func(i, j int) bool {
		if holidays[i].CalendarCode != holidays[j].CalendarCode {
			return holidays[i].CalendarCode < holidays[j].CalendarCode
		}
		return holidays[i].Day < holidays[j].Day
	})
	return holidays, nil
}

// AddHoliday registers a non-business day, ignoring days already present.
func (r *RedisStore) AddHoliday(ctx context.Context, holiday *models.Holiday) error {
	field := holiday.CalendarCode + "|" + holiday.Day
	if err := r.client.HSetNX(ctx, r.holidaysKey(), field, holiday.Description).Err(); err != nil {
		return fmt.Errorf("failed to add holiday %s/%s: %w", holiday.CalendarCode, holiday.Day, err)
	}
	return nil
}

func decodeLock(fields map[string]string) (*models.DistributedLock, error) {
	acquiredAt, err := parseNanos(fields["acquired_at"])
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseNanos(fields["expires_at"])
	if err != nil {
		return nil, err
	}

	lock := &models.DistributedLock{
		LockKey:           fields["key"],
		Owner:             fields["owner"],
		AcquiredAt:        acquiredAt,
		ExpiresAt:         expiresAt,
		ModifierIdentity:  fields["modifier"],
		ServiceTag:        fields["service"],
		CollisionObserved: fields["collision"] == "1",
	}
	if raw, ok := fields["collision_at"]; ok && raw != "" {
		collisionAt, err := parseNanos(raw)
		if err != nil {
			return nil, err
		}
		lock.CollisionAt = &collisionAt
	}
	if fields["has_payload"] == "1" {
		payload := fields["payload"]
		lock.Payload = &payload
	}
	return lock, nil
}

func parseNanos(raw string) (time.Time, error) {
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	return time.Unix(0, ns).UTC(), nil
}

// subMillis is the part of t below its unix millisecond, in nanoseconds.
func subMillis(t time.Time) int64 {
	return t.Sub(time.UnixMilli(t.UnixMilli())).Nanoseconds()
}

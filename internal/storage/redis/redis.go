package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindowScript increments KEYS[1] and starts a window of ARGV[1] seconds
// on the first hit. A key left without a TTL gets one too, so a counter can
// never become permanent. Returns {count, ttl_seconds}.
var incrWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("TTL", KEYS[1])
if count == 1 or ttl < 0 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	// No retries: a replayed EVALSHA whose reply was lost counts the attempt twice.
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   -1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

// * IncrWindow atomically increments the fixed-window counter for key and
// returns the new count along with the time left in the window.
func (r *RedisRepo) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	const op = "storage.redis.IncrWindow"

	seconds := int64(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	res, err := incrWindowScript.Run(ctx, r.client, []string{key}, seconds).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	if len(res) != 2 {
		return 0, 0, fmt.Errorf("%s: unexpected script reply %v", op, res)
	}

	return res[0], time.Duration(res[1]) * time.Second, nil
}

// * Ping checks the redis connection.
func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// * Close closes the redis connection.
func (r *RedisRepo) Close() {
	r.client.Close()
}

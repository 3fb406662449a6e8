package keylock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still carries our token, so an expired
// lock re-acquired by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig configures the distributed locker
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	Prefix         string
	TTL            time.Duration
	AcquireTimeout time.Duration
	RetryInterval  time.Duration
}

// DefaultRedisConfig returns defaults for the distributed locker
func DefaultRedisConfig(addr string) RedisConfig {
	return RedisConfig{
		Addr:           addr,
		Prefix:         "wms:fulfillment:lock:",
		TTL:            10 * time.Second,
		AcquireTimeout: DefaultAcquireTimeout,
		RetryInterval:  10 * time.Millisecond,
	}
}

// RedisLocker is a Locker shared by every instance of the service, using SET NX PX
type RedisLocker struct {
	client *redis.Client
	config RedisConfig
	logger *slog.Logger
}

// NewRedisLocker connects a distributed locker
func NewRedisLocker(config RedisConfig, logger *slog.Logger) *RedisLocker {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisLockerWithClient(client, config, logger)
}

// NewRedisLockerWithClient wraps an existing client
func NewRedisLockerWithClient(client *redis.Client, config RedisConfig, logger *slog.Logger) *RedisLocker {
	if config.TTL <= 0 {
		config.TTL = 10 * time.Second
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = DefaultAcquireTimeout
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 10 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, config: config, logger: logger}
}

// Ping checks the connection
func (r *RedisLocker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (r *RedisLocker) Close() error {
	return r.client.Close()
}

// Lock polls SET NX until it wins, the acquire timeout passes or ctx is done
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	redisKey := r.config.Prefix + key

	deadline := time.Now().Add(r.config.AcquireTimeout)
	ticker := time.NewTicker(r.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.config.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return r.unlockFunc(redisKey, token), nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *RedisLocker) unlockFunc(redisKey, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
			r.logger.Warn("Failed to release lock", "key", redisKey, "error", err)
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

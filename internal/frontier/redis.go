package frontier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix = "depthcrawl:frontier:"
	defaultTTL       = 24 * time.Hour
)

// RedisConfig locates the Redis SET backing a frontier.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// setStore is the slice of Redis the frontier needs.
type setStore interface {
	SAdd(ctx context.Context, key string, member string) (int64, error)
	SCard(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Close() error
}

type redisStore struct {
	client *redis.Client
}

func newRedisStore(cfg RedisConfig) *redisStore {
	return &redisStore{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

func (s *redisStore) SAdd(ctx context.Context, key string, member string) (int64, error) {
	return s.client.SAdd(ctx, key, member).Result()
}

func (s *redisStore) SCard(ctx context.Context, key string) (int64, error) {
	return s.client.SCard(ctx, key).Result()
}

func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.Expire(ctx, key, ttl).Result()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

// Redis is a frontier stored as a Redis SET scoped to one run. It keeps the
// claimed set outside process memory. SADD is atomic on the server, which
// gives the single-winner claim.
type Redis struct {
	store  setStore
	key    string
	ttl    time.Duration
	logger *zap.Logger

	expireOnce sync.Once
}

// NewRedis connects to Redis and verifies the server answers. runID scopes
// the SET key to one crawl.
func NewRedis(ctx context.Context, cfg RedisConfig, runID string, logger *zap.Logger) (*Redis, error) {
	store := newRedisStore(cfg)
	if err := store.client.Ping(ctx).Err(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return newRedis(store, cfg, runID, logger), nil
}

func newRedis(store setStore, cfg RedisConfig, runID string, logger *zap.Logger) *Redis {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		store:  store,
		key:    cfg.KeyPrefix + runID,
		ttl:    cfg.TTL,
		logger: logger,
	}
}

// Key is the Redis key holding the claimed set.
func (r *Redis) Key() string {
	return r.key
}

// Claim adds address to the SET and reports whether this call inserted it.
func (r *Redis) Claim(ctx context.Context, address string) (bool, error) {
	added, err := r.store.SAdd(ctx, r.key, address)
	if err != nil {
		return false, fmt.Errorf("frontier claim %s: %w", address, err)
	}
	if added == 1 {
		r.expireOnce.Do(func() {
			if _, err := r.store.Expire(ctx, r.key, r.ttl); err != nil {
				r.logger.Warn("frontier expire failed", zap.String("key", r.key), zap.Error(err))
			}
		})
	}
	return added == 1, nil
}

// Size returns the number of claimed addresses.
func (r *Redis) Size(ctx context.Context) (int64, error) {
	n, err := r.store.SCard(ctx, r.key)
	if err != nil {
		return 0, fmt.Errorf("frontier size: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if err := r.store.Close(); err != nil {
		return fmt.Errorf("close redis frontier: %w", err)
	}
	return nil
}

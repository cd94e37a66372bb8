package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/passbi/transit_router/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a waiter gives up on another request's lock
var ErrLockTimeout = errors.New("timeout waiting for lock")

// Config holds Redis configuration
type Config struct {
	Enabled   bool          `yaml:"enabled"`
	Host      string        `yaml:"host" validate:"required_if=Enabled true"`
	Port      int           `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db" validate:"min=0"`
	TLS       bool          `yaml:"tls"`
	TTL       time.Duration `yaml:"ttl"`
	MutexTTL  time.Duration `yaml:"mutex_ttl"`
	MaxWait   time.Duration `yaml:"max_wait"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// DefaultConfig returns a disabled cache pointing at a local Redis
func DefaultConfig() Config {
	return Config{
		Host:      "localhost",
		Port:      6379,
		TTL:       10 * time.Minute,
		MutexTTL:  5 * time.Second,
		MaxWait:   3 * time.Second,
		KeyPrefix: "route",
	}
}

// NewClient opens a Redis client and verifies it with a ping
func NewClient(ctx context.Context, config Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	// Managed Redis (Upstash and friends) requires TLS
	if config.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RouteCache stores computed routes in Redis, keyed per query and graph version
type RouteCache struct {
	client *redis.Client
	config Config
}

// NewRouteCache wraps an open client
func NewRouteCache(client *redis.Client, config Config) *RouteCache {
	defaults := DefaultConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.MutexTTL <= 0 {
		config.MutexTTL = defaults.MutexTTL
	}
	if config.MaxWait <= 0 {
		config.MaxWait = defaults.MaxWait
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}
	return &RouteCache{client: client, config: config}
}

// Client exposes the underlying Redis client for other Redis users (rate limiting)
func (rc *RouteCache) Client() *redis.Client { return rc.client }

// RouteKey builds the cache key for a route query. Stop identifiers are
// resolved ids, so fuzzy spellings of the same stop share an entry.
func (rc *RouteCache) RouteKey(startID, endID, strategy string, hour int, graphVersion string) string {
	return RouteKey(rc.config.KeyPrefix, startID, endID, strategy, hour, graphVersion)
}

// RouteKey hashes the endpoints so arbitrary stop ids stay key-safe
func RouteKey(prefix, startID, endID, strategy string, hour int, graphVersion string) string {
	data := strings.Join([]string{startID, endID}, "\x00")
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%s:%s:%x:%s:%02d", prefix, graphVersion, hash[:8], strategy, hour)
}

// LockKey generates a mutex lock key
func LockKey(routeKey string) string {
	return fmt.Sprintf("lock:%s", routeKey)
}

// GetRoute retrieves a cached route. A miss returns (nil, nil).
func (rc *RouteCache) GetRoute(ctx context.Context, key string) (*models.RouteResult, error) {
	data, err := rc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, err
	}

	var result models.RouteResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached route: %w", err)
	}

	return &result, nil
}

// SetRoute caches a route for the configured TTL
func (rc *RouteCache) SetRoute(ctx context.Context, key string, result *models.RouteResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal route: %w", err)
	}

	return rc.client.Set(ctx, key, data, rc.config.TTL).Err()
}

// AcquireLock attempts to acquire the compute lock for a route key.
// Returns true if the lock was acquired, false if already held.
func (rc *RouteCache) AcquireLock(ctx context.Context, routeKey string) (bool, error) {
	return rc.client.SetNX(ctx, LockKey(routeKey), "1", rc.config.MutexTTL).Result()
}

// ReleaseLock releases the compute lock for a route key
func (rc *RouteCache) ReleaseLock(ctx context.Context, routeKey string) error {
	return rc.client.Del(ctx, LockKey(routeKey)).Err()
}

// WaitForLock waits for another request to finish computing routeKey and
// returns what it cached. This avoids a thundering herd on popular pairs.
func (rc *RouteCache) WaitForLock(ctx context.Context, routeKey string) (*models.RouteResult, error) {
	lockKey := LockKey(routeKey)
	deadline := time.Now().Add(rc.config.MaxWait)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		exists, err := rc.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return nil, err
		}

		if exists == 0 {
			return rc.GetRoute(ctx, routeKey)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return nil, ErrLockTimeout
}

// HealthCheck pings Redis
func (rc *RouteCache) HealthCheck(ctx context.Context) error {
	if err := rc.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}
	return nil
}

// Stats returns connection pool statistics
func (rc *RouteCache) Stats() map[string]interface{} {
	poolStats := rc.client.PoolStats()

	return map[string]interface{}{
		"hits":        poolStats.Hits,
		"misses":      poolStats.Misses,
		"timeouts":    poolStats.Timeouts,
		"total_conns": poolStats.TotalConns,
		"idle_conns":  poolStats.IdleConns,
		"stale_conns": poolStats.StaleConns,
	}
}

// Close closes the Redis client
func (rc *RouteCache) Close() error {
	return rc.client.Close()
}

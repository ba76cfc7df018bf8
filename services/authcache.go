package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"
)

// AuthorizationCache holds the latest known status of payment intents, fed by
// provider webhooks and by our own provider calls.
type AuthorizationCache interface {
	Get(ctx context.Context, intentID string) (*Authorization, bool, error)
	Put(ctx context.Context, auth Authorization) error
}

type cachedAuthorization struct {
	auth    Authorization
	expires time.Time
}

// MemoryAuthorizationCache is a process-local cache with expiry.
type MemoryAuthorizationCache struct {
	ttl   time.Duration
	clock clock.PassiveClock

	mu      sync.RWMutex
	entries map[string]cachedAuthorization
}

// NewMemoryAuthorizationCache returns an in-memory cache.
func NewMemoryAuthorizationCache(ttl time.Duration, clk clock.PassiveClock) *MemoryAuthorizationCache {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &MemoryAuthorizationCache{
		ttl:     ttl,
		clock:   clk,
		entries: make(map[string]cachedAuthorization),
	}
}

func (c *MemoryAuthorizationCache) Get(_ context.Context, intentID string) (*Authorization, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[intentID]
	if !ok || !c.clock.Now().Before(entry.expires) {
		return nil, false, nil
	}
	auth := entry.auth
	return &auth, true, nil
}

func (c *MemoryAuthorizationCache) Put(_ context.Context, auth Authorization) error {
	if auth.ID == "" {
		return errors.New("authorization cache: empty intent id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if auth.ClientSecret == "" {
		if prev, ok := c.entries[auth.ID]; ok {
			auth.ClientSecret = prev.auth.ClientSecret
		}
	}
	c.entries[auth.ID] = cachedAuthorization{auth: auth, expires: c.clock.Now().Add(c.ttl)}
	return nil
}

// CleanupExpired removes expired entries.
func (c *MemoryAuthorizationCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	removed := 0
	for id, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// NewRedisClient returns a configured go-redis client and validates the connection with PING.
func NewRedisClient(addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// RedisAuthorizationCache shares authorization statuses between server replicas.
type RedisAuthorizationCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisAuthorizationCache returns redis-backed cache.
func NewRedisAuthorizationCache(client redis.Cmdable, ttl time.Duration) *RedisAuthorizationCache {
	return &RedisAuthorizationCache{client: client, ttl: ttl}
}

func (c *RedisAuthorizationCache) key(intentID string) string {
	return fmt.Sprintf("guestcharge:authorization:%s", intentID)
}

func (c *RedisAuthorizationCache) Get(ctx context.Context, intentID string) (*Authorization, bool, error) {
	result, err := c.client.Get(ctx, c.key(intentID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var auth Authorization
	if err := json.Unmarshal([]byte(result), &auth); err != nil {
		return nil, false, err
	}
	return &auth, true, nil
}

func (c *RedisAuthorizationCache) Put(ctx context.Context, auth Authorization) error {
	if auth.ID == "" {
		return errors.New("authorization cache: empty intent id")
	}
	if auth.ClientSecret == "" {
		if prev, found, err := c.Get(ctx, auth.ID); err == nil && found {
			auth.ClientSecret = prev.ClientSecret
		}
	}
	data, err := json.Marshal(auth)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(auth.ID), data, c.ttl).Err()
}

package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"estudo-ai/internal/logger"
)

// Cooldown records that a provider quota was hit. Low-priority features check it and skip
// AI calls while it is active; lesson generation ignores it.
type Cooldown interface {
	Mark(ctx context.Context)
	Active(ctx context.Context) bool
}

// MemoryCooldown keeps the cooldown window in process memory.
type MemoryCooldown struct {
	mu     sync.Mutex
	until  time.Time
	window time.Duration
	now    func() time.Time
}

func NewMemoryCooldown(window time.Duration) *MemoryCooldown {
	return &MemoryCooldown{window: window, now: time.Now}
}

// NewMemoryCooldownWithClock is NewMemoryCooldown with a caller-controlled clock.
func NewMemoryCooldownWithClock(window time.Duration, now func() time.Time) *MemoryCooldown {
	return &MemoryCooldown{window: window, now: now}
}

func (c *MemoryCooldown) Mark(context.Context) {
	c.mu.Lock()
	c.until = c.now().Add(c.window)
	c.mu.Unlock()
}

func (c *MemoryCooldown) Active(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.until)
}

// RedisCooldown shares the cooldown window between server instances through a key with
// a TTL. Redis errors are logged and treated as "not cooling down".
type RedisCooldown struct {
	log    *logger.Logger
	rdb    *goredis.Client
	key    string
	window time.Duration
}

func NewRedisCooldown(redisURL string, window time.Duration, log *logger.Logger) (*RedisCooldown, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisCooldownWithClient(rdb, window, log), nil
}

func NewRedisCooldownWithClient(rdb *goredis.Client, window time.Duration, log *logger.Logger) *RedisCooldown {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisCooldown{
		log:    log.With("service", "RedisCooldown"),
		rdb:    rdb,
		key:    "estudo-ai:quota-cooldown",
		window: window,
	}
}

func (c *RedisCooldown) Mark(ctx context.Context) {
	if err := c.rdb.Set(ctx, c.key, time.Now().UTC().Format(time.RFC3339), c.window).Err(); err != nil {
		c.log.Warn("failed to mark quota cooldown", "error", err)
	}
}

func (c *RedisCooldown) Active(ctx context.Context) bool {
	n, err := c.rdb.Exists(ctx, c.key).Result()
	if err != nil {
		c.log.Warn("failed to read quota cooldown", "error", err)
		return false
	}
	return n > 0
}

func (c *RedisCooldown) Close() error {
	return c.rdb.Close()
}

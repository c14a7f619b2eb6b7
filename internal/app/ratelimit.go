package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter answers whether a request identified by key may proceed inside the
// current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter is a fixed-window in-process limiter for single-instance
// deployments. Expired windows are swept in the background.
type MemoryLimiter struct {
	limit  int
	window time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	count     int
	resetTime time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &MemoryLimiter{
		limit:    limit,
		window:   window,
		visitors: map[string]*visitor{},
	}
	go l.sweep()
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v := l.visitors[key]
	if v == nil || now.After(v.resetTime) {
		l.visitors[key] = &visitor{count: 1, resetTime: now.Add(l.window)}
		return true, nil
	}
	if v.count >= l.limit {
		return false, nil
	}
	v.count++
	return true, nil
}

func (l *MemoryLimiter) sweep() {
	for range time.Tick(l.window) {
		now := time.Now()
		l.mu.Lock()
		for key, v := range l.visitors {
			if now.After(v.resetTime) {
				delete(l.visitors, key)
			}
		}
		l.mu.Unlock()
	}
}

// RedisLimiter is a fixed-window limiter backed by Redis, for deployments
// running more than one instance.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, prefix: "rl"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := fixedWindowScript.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	var count int64
	switch v := res.(type) {
	case int64:
		count = v
	case string:
		count, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("unexpected redis script result type %T", res)
	}
	return count <= int64(l.limit), nil
}

// RateLimitMiddleware throttles by client IP. Limiter failures fail open so a
// Redis outage degrades to unlimited rather than unavailable.
func RateLimitMiddleware(limiter Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter error", "err", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/observability"
)

type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RateLimiter allows qps requests per client IP per second, counted in Redis.
// When Redis is unreachable requests are let through.
type RateLimiter struct {
	client counter
	qps    int64
	window time.Duration
	log    *slog.Logger
}

func NewRateLimiter(client counter, qps int) *RateLimiter {
	return &RateLimiter{
		client: client,
		qps:    int64(qps),
		window: time.Second,
		log:    observability.WithFields("component", "httpapi.ratelimit"),
	}
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "rate_limit:" + c.ClientIP()
		ctx := c.Request.Context()

		count, err := l.client.Incr(ctx, key).Result()
		if err != nil {
			l.log.Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			l.expire(ctx, key)
		}

		if count > l.qps {
			// A window whose EXPIRE was lost would otherwise block this client forever.
			if ttl, err := l.client.TTL(ctx, key).Result(); err == nil && ttl < 0 {
				l.expire(ctx, key)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please slow down",
				"qps":   l.qps,
			})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) expire(ctx context.Context, key string) {
	if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
		l.log.Warn("failed to set rate limit window", "key", key, "error", err)
	}
}

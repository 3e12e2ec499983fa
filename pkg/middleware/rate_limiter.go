package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"battdevy/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RateLimiter - per-user fixed window request limit backed by Redis
type RateLimiter struct {
	client    *redis.Client
	perMinute int
}

func NewRateLimiter(client *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{
		client:    client,
		perMinute: perMinute,
	}
}

// Limit rejects requests above perMinute for the authenticated user. It
// must run after RequireAuth. Without Redis, or on Redis errors, requests
// are let through.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.client == nil || rl.perMinute <= 0 {
			c.Next()
			return
		}
		userID, err := common.GetUserID(c)
		if err != nil {
			c.Next()
			return
		}

		window := time.Now().Unix() / 60
		key := fmt.Sprintf("rate:%s:%d", userID, window)
		ctx := c.Request.Context()

		pipe := rl.client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Minute)
		if _, err := pipe.Exec(ctx); err != nil {
			log.WithError(err).Warn("⚠️ rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		count := int(incr.Val())
		reset := (window + 1) * 60
		remaining := rl.perMinute - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.perMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

		if count > rl.perMinute {
			wait := reset - time.Now().Unix()
			c.Header("Retry-After", strconv.FormatInt(wait, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate limit exceeded",
				"wait_time_seconds": wait,
			})
			return
		}

		c.Next()
	}
}

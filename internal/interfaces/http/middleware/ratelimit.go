package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/rackgrid/rackgrid/internal/shared/constants"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
	"github.com/rackgrid/rackgrid/internal/shared/utils"
)

// RateLimiter is a Redis fixed-window counter keyed by facility, falling back
// to client IP for unauthenticated requests. Counters are shared across
// instances.
type RateLimiter struct {
	redisClient *redis.Client
	scope       string
	limit       int
	window      time.Duration
	logger      logger.Interface
}

// NewRateLimiter allows limit requests per window. Windows are whole seconds;
// anything shorter is rounded up to one second.
func NewRateLimiter(redisClient *redis.Client, scope string, limit int, window time.Duration, logger logger.Interface) *RateLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RateLimiter{
		redisClient: redisClient,
		scope:       scope,
		limit:       limit,
		window:      window,
		logger:      logger,
	}
}

func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetString(constants.ContextKeyFacilityID)
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}
		windowSeconds := int64(rl.window.Seconds())
		now := time.Now().Unix()
		windowBucket := now / windowSeconds
		key := fmt.Sprintf("rackgrid:ratelimit:%s:%s:%d", rl.scope, subject, windowBucket)

		ctx := c.Request.Context()
		count, err := rl.redisClient.Incr(ctx, key).Result()
		if err != nil {
			// Redis down: let the request through.
			rl.logger.Warnw("rate limiter unavailable", "scope", rl.scope, "error", err)
			c.Next()
			return
		}

		if count == 1 {
			rl.redisClient.Expire(ctx, key, rl.window+time.Second)
		}

		if count > int64(rl.limit) {
			c.Header("Retry-After", strconv.FormatInt(windowSeconds-now%windowSeconds, 10))
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}

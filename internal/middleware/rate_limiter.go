package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/metrics"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const bannedIPsKey = "banned_ips"

// RateLimiterConfig defines one rate limiting rule.
type RateLimiterConfig struct {
	Scope       string        // Key namespace, e.g. "general" or "auth"
	MaxRequests int           // Maximum requests allowed in the window
	Window      time.Duration // Counting window
	BlockTime   time.Duration // How long an IP stays blocked after exceeding the limit; 0 means until the window ends
}

// RateLimiter provides IP-based rate limiting using Redis. Limiters with
// different scopes count independently and share the IP ban list.
type RateLimiter struct {
	redis  *redis.Client
	config RateLimiterConfig
}

func NewRateLimiter(redisClient *redis.Client, config RateLimiterConfig) *RateLimiter {
	if config.Scope == "" {
		config.Scope = "general"
	}
	return &RateLimiter{redis: redisClient, config: config}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		clientIP := c.ClientIP()

		if banned, _ := rl.IsIPBanned(ctx, clientIP); banned {
			abortWithError(c, apperr.Authorization("Your IP address has been banned"))
			return
		}

		allowed, retryAfter, err := rl.CheckLimit(ctx, clientIP)
		if err != nil {
			// Fail open: Redis trouble must not take the API down.
			logger.Log.Warn("Rate limit check failed", zap.String("scope", rl.config.Scope), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			metrics.ObserveRateLimited(rl.config.Scope)
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			abortWithError(c, apperr.RateLimit("Too many requests. Please try again later."))
			return
		}
		c.Next()
	}
}

// CheckLimit counts the request with INCR and a window expiry. Once the
// limit is passed the IP is blocked for BlockTime.
// Returns: (allowed, retryAfter, error)
func (rl *RateLimiter) CheckLimit(ctx context.Context, ip string) (bool, time.Duration, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", rl.config.Scope, ip)
	blockKey := fmt.Sprintf("ratelimit:block:%s:%s", rl.config.Scope, ip)

	if ttl, err := rl.redis.TTL(ctx, blockKey).Result(); err != nil {
		return false, 0, err
	} else if ttl > 0 {
		return false, ttl, nil
	}

	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := rl.redis.Expire(ctx, key, rl.config.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if count <= int64(rl.config.MaxRequests) {
		return true, 0, nil
	}

	if rl.config.BlockTime > 0 {
		if err := rl.redis.Set(ctx, blockKey, 1, rl.config.BlockTime).Err(); err != nil {
			return false, 0, err
		}
		return false, rl.config.BlockTime, nil
	}
	ttl, err := rl.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = rl.config.Window
	}
	return false, ttl, nil
}

func (rl *RateLimiter) IsIPBanned(ctx context.Context, ip string) (bool, error) {
	return rl.redis.SIsMember(ctx, bannedIPsKey, ip).Result()
}

func (rl *RateLimiter) BanIP(ctx context.Context, ip string) error {
	return rl.redis.SAdd(ctx, bannedIPsKey, ip).Err()
}

func (rl *RateLimiter) UnbanIP(ctx context.Context, ip string) error {
	return rl.redis.SRem(ctx, bannedIPsKey, ip).Err()
}

func (rl *RateLimiter) BannedIPs(ctx context.Context) ([]string, error) {
	return rl.redis.SMembers(ctx, bannedIPsKey).Result()
}

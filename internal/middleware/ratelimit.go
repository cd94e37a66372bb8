package middleware

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds per-client request limits. Zero disables a window.
type RateLimitConfig struct {
	Enabled   bool `yaml:"enabled"`
	PerSecond int  `yaml:"per_second" validate:"min=0"`
	PerDay    int  `yaml:"per_day" validate:"min=0"`
}

// DefaultRateLimitConfig returns the public API limits
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PerSecond: 10,
		PerDay:    10000,
	}
}

func secondKey(client string, now time.Time) string {
	return fmt.Sprintf("rl:client:%s:second:%d", client, now.Unix())
}

func dayKey(client string, now time.Time) string {
	return fmt.Sprintf("rl:client:%s:day:%s", client, now.Format("2006-01-02"))
}

// RateLimitMiddleware limits requests per client IP with Redis counters,
// per second and per day. Redis errors let the request through.
func RateLimitMiddleware(rdb *redis.Client, limits RateLimitConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		now := time.Now()
		client := c.IP()

		// Check per-second rate limit
		if limits.PerSecond > 0 {
			key := secondKey(client, now)
			countSecond, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				log.Printf("Warning: rate limit check failed: %v", err)
				return c.Next()
			}
			rdb.Expire(ctx, key, 2*time.Second)

			if countSecond > int64(limits.PerSecond) {
				c.Set("X-RateLimit-Limit-Second", strconv.Itoa(limits.PerSecond))
				c.Set("X-RateLimit-Remaining-Second", "0")
				c.Set("X-RateLimit-Reset-Second", strconv.FormatInt(now.Unix()+1, 10))
				c.Set("Retry-After", "1")

				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":       "rate_limit_exceeded",
					"message":     "Too many requests per second",
					"limit_type":  "per_second",
					"limit":       limits.PerSecond,
					"retry_after": 1,
				})
			}
		}

		// Check per-day rate limit
		if limits.PerDay > 0 {
			key := dayKey(client, now)
			countDay, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				log.Printf("Warning: rate limit check failed: %v", err)
				return c.Next()
			}
			rdb.Expire(ctx, key, 25*time.Hour) // 25 hours to handle timezone differences

			if countDay > int64(limits.PerDay) {
				tomorrow := now.AddDate(0, 0, 1)
				midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
				retryAfter := int64(midnight.Sub(now).Seconds())

				c.Set("X-RateLimit-Limit-Day", strconv.Itoa(limits.PerDay))
				c.Set("X-RateLimit-Remaining-Day", "0")
				c.Set("X-RateLimit-Reset-Day", strconv.FormatInt(midnight.Unix(), 10))
				c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":       "daily_quota_exceeded",
					"message":     "Daily quota exceeded",
					"limit_type":  "per_day",
					"limit":       limits.PerDay,
					"used":        countDay,
					"retry_after": retryAfter,
					"reset_at":    midnight.Format(time.RFC3339),
				})
			}

			c.Set("X-RateLimit-Remaining-Day", strconv.FormatInt(int64(limits.PerDay)-countDay, 10))
		}

		c.Set("X-RateLimit-Limit-Second", strconv.Itoa(limits.PerSecond))
		c.Set("X-RateLimit-Limit-Day", strconv.Itoa(limits.PerDay))

		return c.Next()
	}
}

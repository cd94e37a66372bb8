package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// CacheHitLocal is the c.Locals key handlers set when a response came
// from the route cache
const CacheHitLocal = "cache_hit"

// Usage describes one served request
type Usage struct {
	Route     string // matched route pattern, not the raw path
	Method    string
	Status    int
	Elapsed   time.Duration
	CacheHit  bool
	RequestID string
}

// UsageMiddleware times every request, adds X-Response-Time and
// X-Cache-Hit headers and hands the record to observe.
func UsageMiddleware(observe func(Usage)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		elapsed := time.Since(start)
		cacheHit, _ := c.Locals(CacheHitLocal).(bool)
		requestID, _ := c.Locals("request_id").(string)

		c.Set("X-Response-Time", elapsed.String())
		c.Set("X-Cache-Hit", strconv.FormatBool(cacheHit))

		status := c.Response().StatusCode()
		if err != nil {
			// the error handler has not rendered yet
			status = fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
		}

		if observe != nil {
			observe(Usage{
				Route:     c.Route().Path,
				Method:    c.Method(),
				Status:    status,
				Elapsed:   elapsed,
				CacheHit:  cacheHit,
				RequestID: requestID,
			})
		}

		return err
	}
}

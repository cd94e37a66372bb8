package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("request_id").(string))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	generated := resp.Header.Get(RequestIDHeader)
	_, err = uuid.Parse(generated)
	assert.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "trace-123")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "trace-123", resp.Header.Get(RequestIDHeader))
}

func TestRateLimitFailsOpen(t *testing.T) {
	// nothing listens on port 1, so every counter call errors
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()

	app := fiber.New()
	app.Use(RateLimitMiddleware(rdb, RateLimitConfig{Enabled: true, PerSecond: 1, PerDay: 1}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil), 5000)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 10, cfg.PerSecond)
	assert.Equal(t, 10000, cfg.PerDay)
}

func TestUsageMiddleware(t *testing.T) {
	var seen []Usage

	app := fiber.New()
	app.Use(RequestID())
	app.Use(UsageMiddleware(func(u Usage) { seen = append(seen, u) }))
	app.Get("/stops/:id", func(c *fiber.Ctx) error {
		c.Locals(CacheHitLocal, c.Params("id") == "cached")
		return c.SendString("ok")
	})
	app.Get("/broken", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "no")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/stops/cached", nil))
	require.NoError(t, err)
	assert.Equal(t, "true", resp.Header.Get("X-Cache-Hit"))
	assert.NotEmpty(t, resp.Header.Get("X-Response-Time"))

	resp, err = app.Test(httptest.NewRequest("GET", "/stops/fresh", nil))
	require.NoError(t, err)
	assert.Equal(t, "false", resp.Header.Get("X-Cache-Hit"))

	_, err = app.Test(httptest.NewRequest("GET", "/broken", nil))
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, "/stops/:id", seen[0].Route)
	assert.Equal(t, fiber.StatusOK, seen[0].Status)
	assert.True(t, seen[0].CacheHit)
	assert.NotEmpty(t, seen[0].RequestID)
	assert.False(t, seen[1].CacheHit)
	assert.Equal(t, fiber.StatusTeapot, seen[2].Status)
	assert.Equal(t, "GET", seen[2].Method)
}

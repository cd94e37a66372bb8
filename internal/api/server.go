package api

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/passbi/transit_router/internal/metrics"
	"github.com/passbi/transit_router/internal/middleware"
)

// AppConfig holds the fiber server settings
type AppConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AccessLog    bool
	RateLimiter  fiber.Handler // nil disables rate limiting
}

// NewApp builds the fiber app with middleware and every route mounted
func NewApp(h *Handler, cfg AppConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Transit Router API",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorHandler: ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.UsageMiddleware(func(u middleware.Usage) {
		metrics.ObserveRequest(u.Route, u.Method, u.Status, u.Elapsed)
	}))
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${locals:request_id}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))

	// Metrics and health stay outside the rate limiter
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", h.Health)

	v2 := app.Group("/v2")
	if cfg.RateLimiter != nil {
		v2.Use(cfg.RateLimiter)
	}
	v2.Get("/route", h.Route)
	v2.Get("/route-search", h.RouteSearch)
	v2.Get("/shortest-path", h.ShortestPath)
	v2.Get("/stops/search", h.StopsSearch)
	v2.Get("/stops/:id", h.StopDetails)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	return app
}

// ErrorHandler renders errors returned from handlers as JSON
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

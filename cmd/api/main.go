package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"

	"github.com/passbi/transit_router/internal/api"
	"github.com/passbi/transit_router/internal/cache"
	"github.com/passbi/transit_router/internal/config"
	"github.com/passbi/transit_router/internal/graph"
	"github.com/passbi/transit_router/internal/metrics"
	"github.com/passbi/transit_router/internal/middleware"
	"github.com/passbi/transit_router/internal/routing"
)

func main() {
	log.Println("Starting transit router API server...")

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graph source (and database pool when the graph lives in Postgres)
	src, pool, err := config.OpenGraphSource(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open graph source: %v", err)
	}
	if pool != nil {
		defer pool.Close()
		log.Println("✓ Database connection established")
	}

	// Load routing graph into memory
	store := graph.NewStore(nil)
	snap, err := store.Reload(ctx, src)
	if err != nil {
		log.Fatalf("Failed to load routing graph: %v", err)
	}
	metrics.ObserveReload(snap.NodeCount(), snap.EdgeCount(), nil)
	log.Println("✓ Routing graph loaded into memory")

	if cfg.Graph.ReloadInterval > 0 {
		go store.Watch(ctx, src, cfg.Graph.ReloadInterval, func(s *graph.Snapshot, err error) {
			if s == nil {
				metrics.ObserveReload(0, 0, err)
				return
			}
			metrics.ObserveReload(s.NodeCount(), s.EdgeCount(), err)
		})
		log.Printf("✓ Graph reload every %v", cfg.Graph.ReloadInterval)
	}

	opts, err := cfg.Routing.EngineOptions()
	if err != nil {
		log.Fatalf("Invalid routing configuration: %v", err)
	}
	engine := routing.NewEngine(store, opts)
	log.Printf("✓ Routing engine ready (heuristic %s, max %d expansions)", engine.Heuristic().Name(), cfg.Routing.MaxExpansions)

	// Redis backs both the route cache and the rate limiter
	var routeCache api.RouteCache
	var limiter fiber.Handler
	if cfg.Redis.Enabled {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		redisCache := cache.NewRouteCache(client, cfg.Redis)
		defer redisCache.Close()
		routeCache = redisCache
		log.Println("✓ Redis connection established")

		if cfg.RateLimit.Enabled {
			limiter = middleware.RateLimitMiddleware(client, cfg.RateLimit)
		}
	} else if cfg.RateLimit.Enabled {
		log.Println("Warning: rate limiting requires Redis and is disabled")
	}

	handler := api.NewHandler(engine, api.Options{
		Cache:               routeCache,
		Pool:                pool,
		WalkMetersPerMinute: cfg.Routing.WalkMetersPerMinute,
		SearchTimeout:       cfg.Server.SearchTimeout,
	})

	app := api.NewApp(handler, api.AppConfig{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		AccessLog:    true,
		RateLimiter:  limiter,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		cancel()
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("📍 Route: http://localhost%s/v2/route?start=STOP&end=STOP&time=HH:MM&strategy=fastest", addr)
	log.Printf("❤️  Health check: http://localhost%s/health", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/passbi/transit_router/internal/cache"
	"github.com/passbi/transit_router/internal/db"
	"github.com/passbi/transit_router/internal/graph"
	"github.com/passbi/transit_router/internal/metrics"
	"github.com/passbi/transit_router/internal/middleware"
	"github.com/passbi/transit_router/internal/models"
	"github.com/passbi/transit_router/internal/routing"
)

// FreeFlowStrategy labels shortest-path responses
const FreeFlowStrategy = "free_flow"

const (
	defaultStopSearchLimit = 10
	maxStopSearchLimit     = 50
)

// RouteCache stores computed routes and serializes their computation
type RouteCache interface {
	RouteKey(startID, endID, strategy string, hour int, graphVersion string) string
	GetRoute(ctx context.Context, key string) (*models.RouteResult, error)
	SetRoute(ctx context.Context, key string, result *models.RouteResult) error
	AcquireLock(ctx context.Context, routeKey string) (bool, error)
	ReleaseLock(ctx context.Context, routeKey string) error
	WaitForLock(ctx context.Context, routeKey string) (*models.RouteResult, error)
	HealthCheck(ctx context.Context) error
}

var _ RouteCache = (*cache.RouteCache)(nil)

// Options wires optional dependencies into a Handler
type Options struct {
	Cache               RouteCache    // nil disables route caching
	Pool                *pgxpool.Pool // nil skips the database health check
	WalkMetersPerMinute float64
	SearchTimeout       time.Duration
}

// Handler serves the routing API over one engine
type Handler struct {
	engine              *routing.Engine
	freeFlow            *routing.Engine
	cache               RouteCache
	pool                *pgxpool.Pool
	walkMetersPerMinute float64
	searchTimeout       time.Duration
}

// NewHandler creates the API handlers
func NewHandler(engine *routing.Engine, opts Options) *Handler {
	if opts.WalkMetersPerMinute <= 0 {
		opts.WalkMetersPerMinute = 80
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 2 * time.Second
	}
	return &Handler{
		engine:              engine,
		freeFlow:            engine.FreeFlow(),
		cache:               opts.Cache,
		pool:                opts.Pool,
		walkMetersPerMinute: opts.WalkMetersPerMinute,
		searchTimeout:       opts.SearchTimeout,
	}
}

// routeQuery is a validated, resolved route request
type routeQuery struct {
	snap      *graph.Snapshot
	startID   string
	endID     string
	departure time.Time
}

// parseRouteQuery validates start/end/time and resolves the stops on the
// current snapshot. It writes the error response itself when it fails.
func (h *Handler) parseRouteQuery(c *fiber.Ctx) (*routeQuery, error) {
	start := strings.TrimSpace(c.Query("start"))
	end := strings.TrimSpace(c.Query("end"))
	if start == "" || end == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing required parameters: start and end",
		})
	}

	snap := h.engine.Store().Current()
	if snap == nil {
		return nil, c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "graph_not_loaded",
		})
	}

	startID, err := snap.Resolve(start)
	if err != nil {
		return nil, nodeNotFound(c, "start", start)
	}
	endID, err := snap.Resolve(end)
	if err != nil {
		return nil, nodeNotFound(c, "end", end)
	}

	// Malformed times fall back to now, like an empty one
	departure, ok := h.engine.Departure(c.Query("time"))
	if !ok && c.Query("time") != "" {
		log.Printf("Warning: ignoring malformed departure time %q", c.Query("time"))
	}

	return &routeQuery{snap: snap, startID: startID, endID: endID, departure: departure}, nil
}

// Route handles GET /v2/route
func (h *Handler) Route(c *fiber.Ctx) error {
	q, err := h.parseRouteQuery(c)
	if q == nil {
		return err
	}

	var elapsed *float64
	if raw := c.Query("elapsed"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid elapsed (must be a non-negative number of seconds)",
			})
		}
		elapsed = &v
	}

	strategy := routing.StrategyOrDefault(c.Query("strategy"))
	result, cached, err := h.computeRoute(c.UserContext(), q, strategy)
	if err != nil {
		return searchError(c, err)
	}

	c.Locals(middleware.CacheHitLocal, cached)
	resp := renderRoute(result, q.departure, h.walkMetersPerMinute, cached)
	if elapsed != nil && len(result.Steps) > 0 {
		lat, lon, err := routing.EstimatePosition(q.snap, result, *elapsed)
		if err == nil {
			next, remaining := routing.NextStop(result, *elapsed)
			reached := result.Steps[next-1]
			resp.Position = &Position{
				ElapsedSeconds:    *elapsed,
				Lat:               lat,
				Lon:               lon,
				Progress:          routing.EstimateProgress(*elapsed, result.TotalDurationSeconds()),
				NextStop:          StopRef{ID: reached.ToID, Name: reached.ToName},
				SecondsToNextStop: remaining,
			}
		}
	}

	return c.JSON(resp)
}

// RouteSearch handles GET /v2/route-search: every strategy, in parallel,
// on the same snapshot
func (h *Handler) RouteSearch(c *fiber.Ctx) error {
	q, err := h.parseRouteQuery(c)
	if q == nil {
		return err
	}

	ctx := c.UserContext()
	strategies := routing.AllStrategies()

	type strategyResult struct {
		strategy routing.Strategy
		result   *models.RouteResult
		cached   bool
		err      error
	}

	resultChan := make(chan strategyResult, len(strategies))
	var wg sync.WaitGroup

	for _, strategy := range strategies {
		wg.Add(1)
		go func(strat routing.Strategy) {
			defer wg.Done()
			result, cached, err := h.computeRoute(ctx, q, strat)
			resultChan <- strategyResult{strategy: strat, result: result, cached: cached, err: err}
		}(strategy)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	resp := RouteSearchResponse{Routes: make(map[string]*RouteResponse)}
	allCached := true
	for r := range resultChan {
		if r.err != nil {
			log.Printf("Route computation failed for strategy %s: %v", r.strategy, r.err)
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[r.strategy.String()] = errorCode(r.err)
			continue
		}
		allCached = allCached && r.cached
		resp.Routes[r.strategy.String()] = renderRoute(r.result, q.departure, h.walkMetersPerMinute, r.cached)
	}

	if len(resp.Routes) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "no_route_found",
			"message": "no routes found between the specified stops",
			"reasons": resp.Errors,
		})
	}

	c.Locals(middleware.CacheHitLocal, allCached)
	return c.JSON(resp)
}

// ShortestPath handles GET /v2/shortest-path: raw free-flow durations, no
// strategy weighting and no traffic
func (h *Handler) ShortestPath(c *fiber.Ctx) error {
	q, err := h.parseRouteQuery(c)
	if q == nil {
		return err
	}

	result, err := h.run(c.UserContext(), h.freeFlow, q, routing.Fastest, FreeFlowStrategy)
	if err != nil {
		return searchError(c, err)
	}
	result.Strategy = FreeFlowStrategy

	return c.JSON(renderRoute(result, q.departure, h.walkMetersPerMinute, false))
}

// computeRoute serves a route from the cache when possible. Only one
// request computes a given key at a time; others wait for its result.
func (h *Handler) computeRoute(ctx context.Context, q *routeQuery, strategy routing.Strategy) (*models.RouteResult, bool, error) {
	if h.cache == nil {
		result, err := h.search(ctx, q, strategy)
		return result, false, err
	}

	key := h.cache.RouteKey(q.startID, q.endID, strategy.String(), q.departure.Hour(), q.snap.Version())

	cached, err := h.cache.GetRoute(ctx, key)
	switch {
	case err != nil:
		metrics.CacheError()
		log.Printf("Warning: route cache lookup failed: %v", err)
	case cached != nil:
		metrics.CacheHit()
		return cached, true, nil
	default:
		metrics.CacheMiss()
	}

	acquired, err := h.cache.AcquireLock(ctx, key)
	if err != nil {
		// Continue without lock (degrade gracefully)
		log.Printf("Warning: failed to acquire route lock: %v", err)
	} else if !acquired {
		cached, err := h.cache.WaitForLock(ctx, key)
		if err == nil && cached != nil {
			return cached, true, nil
		}
		// If waiting failed, compute anyway
	}

	defer func() {
		if acquired {
			if err := h.cache.ReleaseLock(context.Background(), key); err != nil {
				log.Printf("Warning: failed to release route lock: %v", err)
			}
		}
	}()

	result, err := h.search(ctx, q, strategy)
	if err != nil {
		return nil, false, err
	}

	if err := h.cache.SetRoute(ctx, key, result); err != nil {
		log.Printf("Warning: failed to cache route: %v", err)
	}

	return result, false, nil
}

// search runs the engine under the search timeout and records metrics
func (h *Handler) search(ctx context.Context, q *routeQuery, strategy routing.Strategy) (*models.RouteResult, error) {
	return h.run(ctx, h.engine, q, strategy, strategy.String())
}

func (h *Handler) run(ctx context.Context, engine *routing.Engine, q *routeQuery, strategy routing.Strategy, label string) (*models.RouteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, h.searchTimeout)
	defer cancel()

	started := time.Now()
	result, err := engine.Search(ctx, q.snap, q.startID, q.endID, strategy, q.departure.Hour())

	outcome, expanded := "ok", 0
	if result != nil {
		expanded = result.Expanded
	}
	var noRoute *routing.NoRouteError
	if errors.As(err, &noRoute) {
		outcome, expanded = string(noRoute.Reason), noRoute.Expanded
	} else if err != nil {
		outcome = "error"
	}
	metrics.ObserveSearch(label, outcome, time.Since(started), expanded)

	return result, err
}

// StopsSearch handles GET /v2/stops/search
func (h *Handler) StopsSearch(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing required parameter: q",
		})
	}

	limit := defaultStopSearchLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("invalid limit (must be between 1 and %d)", maxStopSearchLimit),
			})
		}
		limit = min(parsed, maxStopSearchLimit)
	}

	snap := h.engine.Store().Current()
	if snap == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "graph_not_loaded",
		})
	}

	stops := snap.SearchByName(query, limit)
	return c.JSON(fiber.Map{
		"stops": stops,
		"total": len(stops),
	})
}

// StopDetails handles GET /v2/stops/:id
func (h *Handler) StopDetails(c *fiber.Ctx) error {
	snap := h.engine.Store().Current()
	if snap == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "graph_not_loaded",
		})
	}

	id := c.Params("id")
	node, ok := snap.GetNode(id)
	if !ok {
		return nodeNotFound(c, "stop", id)
	}

	edges := snap.GetEdges(id)
	resp := StopResponse{Node: node, Connections: make([]Connection, 0, len(edges))}
	resp.Name = node.DisplayName()
	for _, e := range edges {
		resp.Connections = append(resp.Connections, Connection{
			To:              StopRef{ID: e.ToID, Name: snap.NodeName(e.ToID)},
			Mode:            string(e.Mode),
			RouteName:       e.RouteName,
			DurationSeconds: e.DurationSeconds,
		})
	}

	return c.JSON(resp)
}

// Health handles the /health endpoint
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	healthy := true
	graphInfo := fiber.Map{"loaded": false}
	if snap := h.engine.Store().Current(); snap != nil {
		if snap.NodeCount() == 0 {
			healthy = false
		}
		graphInfo = fiber.Map{
			"loaded":    snap.NodeCount() > 0,
			"nodes":     snap.NodeCount(),
			"edges":     snap.EdgeCount(),
			"version":   snap.Version(),
			"loaded_at": snap.LoadedAt().Format(time.RFC3339),
		}
	} else {
		healthy = false
	}

	dbStatus := "disabled"
	if h.pool != nil {
		dbStatus = "ok"
		if err := db.HealthCheck(ctx, h.pool); err != nil {
			dbStatus = err.Error()
			healthy = false
		}
	}

	redisStatus := "disabled"
	if h.cache != nil {
		redisStatus = "ok"
		if err := h.cache.HealthCheck(ctx); err != nil {
			redisStatus = err.Error()
			healthy = false
		}
	}

	status, httpStatus := "healthy", fiber.StatusOK
	if !healthy {
		status, httpStatus = "unhealthy", fiber.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"graph":  graphInfo,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}

func nodeNotFound(c *fiber.Ctx, field, identifier string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":   "node_not_found",
		"message": fmt.Sprintf("%s %q not found", field, identifier),
	})
}

// errorCode maps search errors to stable client-facing codes
func errorCode(err error) string {
	var noRoute *routing.NoRouteError
	switch {
	case errors.As(err, &noRoute) && noRoute.Reason == routing.ReasonCancelled:
		return "search_timeout"
	case errors.Is(err, routing.ErrNoRouteFound):
		return "no_route_found"
	case errors.Is(err, routing.ErrNodeNotFound):
		return "node_not_found"
	case errors.Is(err, routing.ErrGraphNotLoaded):
		return "graph_not_loaded"
	default:
		return "internal_error"
	}
}

func searchError(c *fiber.Ctx, err error) error {
	code := errorCode(err)

	status := fiber.StatusInternalServerError
	switch code {
	case "no_route_found", "node_not_found":
		status = fiber.StatusNotFound
	case "search_timeout":
		status = fiber.StatusGatewayTimeout
	case "graph_not_loaded":
		status = fiber.StatusServiceUnavailable
	}

	body := fiber.Map{"error": code, "message": err.Error()}
	var noRoute *routing.NoRouteError
	if errors.As(err, &noRoute) {
		body["reason"] = noRoute.Reason
		body["expanded"] = noRoute.Expanded
	}
	if status == fiber.StatusInternalServerError {
		log.Printf("Error: route search failed: %v", err)
		body["message"] = "internal server error"
	}

	return c.Status(status).JSON(body)
}

// Package metrics holds the Prometheus collectors for route searches and
// graph reloads.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// searchTotal counts searches by strategy and outcome
	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_route_search_total",
		Help: "Total route searches by strategy and result",
	}, []string{"strategy", "result"})

	// searchDuration tracks search latency
	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transit_route_search_duration_seconds",
		Help:    "Route search duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	}, []string{"strategy"})

	searchExpanded = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transit_route_search_expanded_nodes",
		Help:    "Nodes expanded per route search",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"strategy"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_route_cache_lookups_total",
		Help: "Route cache lookups by result",
	}, []string{"result"}) // "hit", "miss" or "error"

	graphReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_graph_reloads_total",
		Help: "Graph reloads by result",
	}, []string{"result"})

	graphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transit_graph_nodes",
		Help: "Nodes in the current graph snapshot",
	})

	graphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transit_graph_edges",
		Help: "Edges in the current graph snapshot",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transit_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// ObserveSearch records one finished search. result is "ok" or a no-route reason.
func ObserveSearch(strategy, result string, elapsed time.Duration, expanded int) {
	searchTotal.WithLabelValues(strategy, result).Inc()
	searchDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	searchExpanded.WithLabelValues(strategy).Observe(float64(expanded))
}

// CacheHit records a route cache hit
func CacheHit() { cacheLookups.WithLabelValues("hit").Inc() }

// CacheMiss records a route cache miss
func CacheMiss() { cacheLookups.WithLabelValues("miss").Inc() }

// CacheError records a failed cache lookup
func CacheError() { cacheLookups.WithLabelValues("error").Inc() }

// ObserveReload records a graph reload and, on success, the new snapshot size
func ObserveReload(nodes, edges int, err error) {
	if err != nil {
		graphReloads.WithLabelValues("error").Inc()
		return
	}
	graphReloads.WithLabelValues("ok").Inc()
	graphNodes.Set(float64(nodes))
	graphEdges.Set(float64(edges))
}

// ObserveRequest records one served HTTP request
func ObserveRequest(route, method string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

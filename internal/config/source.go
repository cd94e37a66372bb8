package config

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/passbi/transit_router/internal/db"
	"github.com/passbi/transit_router/internal/graph"
	"github.com/passbi/transit_router/internal/routing"
)

// OpenGraphSource returns the configured snapshot source. For postgres it
// also returns the pool, which the caller must close.
func OpenGraphSource(ctx context.Context, cfg *Config) (graph.Source, *pgxpool.Pool, error) {
	switch cfg.Graph.Source {
	case "sqlite":
		return graph.SQLiteSource{Path: cfg.Graph.SQLitePath}, nil, nil
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return graph.PostgresSource{Pool: pool}, pool, nil
	default:
		return nil, nil, fmt.Errorf("unknown graph source %q", cfg.Graph.Source)
	}
}

// EngineOptions translates the routing section into engine options
func (r RoutingConfig) EngineOptions() (routing.Options, error) {
	cost := routing.NewCostModel(r.Traffic.Predictor(), r.SlopePenalty)
	heuristic, err := routing.NewHeuristic(r.Heuristic, cost)
	if err != nil {
		return routing.Options{}, err
	}
	return routing.Options{
		MaxExpansions: r.MaxExpansions,
		Heuristic:     heuristic,
		Cost:          cost,
	}, nil
}

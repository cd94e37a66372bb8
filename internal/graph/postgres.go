package graph

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/transit_router/internal/models"
)

// PostgresSource loads snapshots from the stop and edge tables
type PostgresSource struct {
	Pool *pgxpool.Pool
}

func (p PostgresSource) Name() string { return "postgres" }

// Load reads every stop and edge into a new Snapshot
func (p PostgresSource) Load(ctx context.Context) (*Snapshot, error) {
	if p.Pool == nil {
		return nil, fmt.Errorf("postgres source has no pool")
	}

	log.Println("Loading stops...")
	rows, err := p.Pool.Query(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(lat, 0), COALESCE(lon, 0), COALESCE(elevation, 0)
		FROM stop
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}

	var nodes []models.Node
	for rows.Next() {
		var n models.Node
		if err := rows.Scan(&n.ID, &n.Name, &n.Lat, &n.Lon, &n.Elevation); err != nil {
			log.Printf("Warning: failed to scan stop: %v", err)
			continue
		}
		nodes = append(nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stops: %w", err)
	}

	log.Println("Loading edges...")
	rows, err = p.Pool.Query(ctx, `
		SELECT from_stop_id, to_stop_id, mode, COALESCE(route_name, ''), duration_seconds
		FROM edge
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}

	var edges []models.Edge
	for rows.Next() {
		var e models.Edge
		var mode string
		if err := rows.Scan(&e.FromID, &e.ToID, &mode, &e.RouteName, &e.DurationSeconds); err != nil {
			log.Printf("Warning: failed to scan edge: %v", err)
			continue
		}
		e.Mode = models.Mode(mode)
		edges = append(edges, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edges: %w", err)
	}

	return NewSnapshot(nodes, edges)
}

// SavePostgres replaces the stored graph with snap in a single transaction
func SavePostgres(ctx context.Context, pool *pgxpool.Pool, snap *Snapshot) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE edge, stop CASCADE"); err != nil {
		return fmt.Errorf("failed to clear graph: %w", err)
	}

	nodes := snap.Nodes()
	stopRows := make([][]any, 0, len(nodes))
	for _, n := range nodes {
		stopRows = append(stopRows, []any{n.ID, n.Name, n.Lat, n.Lon, n.Elevation})
	}
	count, err := tx.CopyFrom(ctx,
		pgx.Identifier{"stop"},
		[]string{"id", "name", "lat", "lon", "elevation"},
		pgx.CopyFromRows(stopRows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy stops: %w", err)
	}
	log.Printf("Inserted %d stops", count)

	edges := snap.Edges()
	edgeRows := make([][]any, 0, len(edges))
	for _, e := range edges {
		edgeRows = append(edgeRows, []any{e.FromID, e.ToID, string(e.Mode), e.RouteName, e.DurationSeconds})
	}
	count, err = tx.CopyFrom(ctx,
		pgx.Identifier{"edge"},
		[]string{"from_stop_id", "to_stop_id", "mode", "route_name", "duration_seconds"},
		pgx.CopyFromRows(edgeRows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy edges: %w", err)
	}
	log.Printf("Inserted %d edges", count)

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}

	// Analyze tables for query optimization
	batch := &pgx.Batch{}
	batch.Queue("ANALYZE stop")
	batch.Queue("ANALYZE edge")
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		log.Printf("Warning: failed to analyze tables: %v", err)
	}

	return nil
}

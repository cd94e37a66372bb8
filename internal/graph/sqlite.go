package graph

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/passbi/transit_router/internal/models"
	_ "modernc.org/sqlite"
)

// sqliteSchema is embedded so a snapshot file can be created anywhere
//
//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteSource loads snapshots from a single-file SQLite database
type SQLiteSource struct {
	Path string
}

func (s SQLiteSource) Name() string { return "sqlite:" + s.Path }

func openSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			log.Printf("Warning: failed to set %s: %v", pragma, err)
		}
	}

	return conn, nil
}

// Load reads every stop and edge into a new Snapshot. The file must exist;
// it is opened read-only and never initialized.
func (s SQLiteSource) Load(ctx context.Context) (*Snapshot, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, fmt.Errorf("graph database: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("graph database %s is a directory", s.Path)
	}

	conn, err := openSQLite(ctx, "file:"+s.Path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `
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

	rows, err = conn.QueryContext(ctx, `
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

// SaveSQLite writes snap to the database at path, replacing any previous graph
func SaveSQLite(ctx context.Context, path string, snap *Snapshot) error {
	conn, err := openSQLite(ctx, path)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM edge", "DELETE FROM stop", "DELETE FROM graph_meta"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear graph: %w", err)
		}
	}

	stopStmt, err := tx.PrepareContext(ctx, `INSERT INTO stop (id, name, lat, lon, elevation) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare stop insert: %w", err)
	}
	defer stopStmt.Close()

	for _, n := range snap.Nodes() {
		if _, err := stopStmt.ExecContext(ctx, n.ID, n.Name, n.Lat, n.Lon, n.Elevation); err != nil {
			return fmt.Errorf("failed to insert stop %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edge (from_stop_id, to_stop_id, mode, route_name, duration_seconds)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range snap.Edges() {
		if _, err := edgeStmt.ExecContext(ctx, e.FromID, e.ToID, string(e.Mode), e.RouteName, e.DurationSeconds); err != nil {
			return fmt.Errorf("failed to insert edge %s->%s: %w", e.FromID, e.ToID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO graph_meta (key, value) VALUES ('version', ?), ('saved_at', ?)`,
		snap.Version(), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to write graph metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}

	log.Printf("Saved %d stops and %d edges to %s", snap.NodeCount(), snap.EdgeCount(), path)
	return nil
}

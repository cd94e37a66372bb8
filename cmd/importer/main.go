package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/passbi/transit_router/internal/config"
	"github.com/passbi/transit_router/internal/db"
	"github.com/passbi/transit_router/internal/graph"
	"github.com/passbi/transit_router/internal/gtfs"
)

func main() {
	// Command-line flags
	gtfsPath := flag.String("gtfs", "", "Path to GTFS ZIP file or directory (required)")
	toPostgres := flag.Bool("postgres", false, "Replace the graph in the configured Postgres database")
	sqlitePath := flag.String("sqlite", "", "Write the graph to this SQLite file")
	configPath := flag.String("config", "", "Config file (defaults to $CONFIG_PATH or config.yml)")
	maxWalk := flag.Float64("max-walk-meters", graph.DefaultMaxWalkMeters, "Longest walking transfer to generate (0 disables)")
	walkSpeed := flag.Float64("walk-speed", graph.DefaultWalkSpeedMPS, "Walking speed in m/s")
	assumeYes := flag.Bool("yes", false, "Do not ask before replacing the Postgres graph")

	flag.Parse()

	// Validate required flags
	if *gtfsPath == "" || (!*toPostgres && *sqlitePath == "") {
		fmt.Println("Usage: transit-import --gtfs=<feed.zip|dir> [--postgres] [--sqlite=<graph.db>] [--max-walk-meters=300] [--walk-speed=1.2] [--yes]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Validate file exists
	if _, err := os.Stat(*gtfsPath); os.IsNotExist(err) {
		log.Fatalf("GTFS feed not found: %s", *gtfsPath)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Println("Starting GTFS import...")
	log.Printf("GTFS feed: %s", *gtfsPath)

	ctx := context.Background()
	startTime := time.Now()

	log.Println("Step 1/3: Parsing GTFS feed...")
	feed, err := gtfs.Open(*gtfsPath)
	if err != nil {
		log.Fatalf("Failed to parse GTFS: %v", err)
	}
	log.Printf("Parsed %d stops, %d routes, %d trips, %d stop_times",
		len(feed.Stops), len(feed.Routes), len(feed.Trips), len(feed.StopTimes))

	log.Println("Step 2/3: Building routing graph...")
	builder := graph.NewBuilder(graph.BuildOptions{MaxWalkMeters: *maxWalk, WalkSpeedMPS: *walkSpeed})
	snap, stats, err := builder.Build(feed)
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}
	log.Printf("Graph statistics: %d nodes, %d ride edges, %d walking edges (%d stop_times skipped)",
		stats.Nodes, stats.RideEdges, stats.WalkEdges, stats.SkippedStopTimes)

	log.Println("Step 3/3: Saving graph...")
	if *sqlitePath != "" {
		if err := graph.SaveSQLite(ctx, *sqlitePath, snap); err != nil {
			log.Fatalf("Failed to save SQLite graph: %v", err)
		}
		log.Printf("✓ Saved to %s", *sqlitePath)
	}

	if *toPostgres {
		if err := saveToPostgres(ctx, cfg, snap, *assumeYes); err != nil {
			log.Fatalf("Failed to save Postgres graph: %v", err)
		}
	}

	log.Printf("Import completed in %s (graph version %s)", time.Since(startTime), snap.Version())
}

func saveToPostgres(ctx context.Context, cfg *config.Config, snap *graph.Snapshot, assumeYes bool) error {
	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	var existing int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM stop").Scan(&existing); err != nil {
		return fmt.Errorf("failed to count stops: %w", err)
	}

	if existing > 0 && !assumeYes {
		fmt.Println()
		fmt.Printf("⚠️  This will DELETE the %d stops currently stored and all their edges!\n", existing)
		fmt.Print("Continue? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)

		if confirm != "yes" && confirm != "y" {
			return fmt.Errorf("rebuild cancelled")
		}
	}

	if err := graph.SavePostgres(ctx, pool, snap); err != nil {
		return err
	}

	if err := db.HealthCheck(ctx, pool); err != nil {
		log.Printf("Warning: post-import health check failed: %v", err)
	}
	log.Printf("✓ Saved to Postgres %s/%s", cfg.Database.Host, cfg.Database.Database)
	return nil
}

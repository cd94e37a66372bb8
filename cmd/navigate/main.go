package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/passbi/transit_router/internal/config"
	"github.com/passbi/transit_router/internal/graph"
	"github.com/passbi/transit_router/internal/report"
	"github.com/passbi/transit_router/internal/routing"
)

func main() {
	start := flag.String("start", "", "Start stop id or name (required)")
	end := flag.String("end", "", "Destination stop id or name (required)")
	departure := flag.String("time", "", "Departure time HH:MM (defaults to now)")
	out := flag.String("out", "ai_route.json", "Report file, - for stdout")
	configPath := flag.String("config", "", "Config file (defaults to $CONFIG_PATH or config.yml)")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall time limit")

	flag.Parse()

	if *start == "" || *end == "" {
		fmt.Println("Usage: transit-navigate --start=<stop> --end=<stop> [--time=HH:MM] [--out=ai_route.json]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	src, pool, err := config.OpenGraphSource(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open graph source: %v", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	store := graph.NewStore(nil)
	snap, err := store.Reload(ctx, src)
	if err != nil {
		log.Fatalf("Failed to load routing graph: %v", err)
	}
	log.Printf("✓ Graph %s loaded (%d stops, %d edges)", snap.Version(), snap.NodeCount(), snap.EdgeCount())

	opts, err := cfg.Routing.EngineOptions()
	if err != nil {
		log.Fatalf("Invalid routing configuration: %v", err)
	}
	engine := routing.NewEngine(store, opts)

	rep, err := report.Build(ctx, engine, *start, *end, *departure)
	if err != nil {
		log.Fatalf("Navigation failed: %v", err)
	}
	for _, r := range rep.Routes {
		log.Printf("%-9s %6.1f min, %d stops", r.Type, r.TotalDuration, len(r.Segments))
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode report: %v", err)
	}

	if *out == "-" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}
	log.Printf("✓ Wrote %d routes to %s", len(rep.Routes), *out)
}

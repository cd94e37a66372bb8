// Package report renders every strategy's route between two stops as one
// JSON document for offline comparison.
package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/passbi/transit_router/internal/routing"
)

// FinishType and FinishLine label the closing segment of each route
const (
	FinishType = "finish"
	FinishLine = "Arrived"
)

var descriptions = map[routing.Strategy]string{
	routing.Fastest:  "Minimizes time",
	routing.Comfort:  "Prefers rail, metro and tram",
	routing.Economic: "Prefers walking",
}

// Report is the navigation output
type Report struct {
	Meta   Meta    `json:"meta"`
	Routes []Route `json:"routes"`
}

// Meta describes the query that produced a report
type Meta struct {
	GeneratedAt  time.Time `json:"generated_at"`
	StartID      string    `json:"start_id"`
	EndID        string    `json:"end_id"`
	Departure    string    `json:"departure"`
	GraphVersion string    `json:"graph_version"`
}

// Route is one strategy's result
type Route struct {
	Type          string    `json:"type"`
	Description   string    `json:"description"`
	TotalDuration float64   `json:"total_duration"` // perceived minutes, one decimal
	Segments      []Segment `json:"segments"`
}

// Segment is a boarding point along a route
type Segment struct {
	StopID   string `json:"stop_id"`
	StopName string `json:"stop_name"`
	Type     string `json:"type"`
	Line     string `json:"line"`
}

// Build runs every strategy for start and end. Strategies without a route
// are left out; an unknown stop fails the whole report.
func Build(ctx context.Context, engine *routing.Engine, start, end, departure string) (*Report, error) {
	snap := engine.Store().Current()
	if snap == nil {
		return nil, routing.ErrGraphNotLoaded
	}

	at, _ := engine.Departure(departure)
	rep := &Report{
		Meta: Meta{
			GeneratedAt:  time.Now(),
			StartID:      start,
			EndID:        end,
			Departure:    at.Format("15:04"),
			GraphVersion: snap.Version(),
		},
		Routes: []Route{},
	}

	for _, strategy := range routing.AllStrategies() {
		result, err := engine.FindRoute(ctx, routing.Request{
			Start:     start,
			End:       end,
			Departure: departure,
			Strategy:  strategy,
		})
		if errors.Is(err, routing.ErrNoRouteFound) {
			log.Printf("Warning: strategy %s found no route: %v", strategy, err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", strategy, err)
		}

		route := Route{
			Type:          strategy.String(),
			Description:   descriptions[strategy],
			TotalDuration: math.Round(result.TotalPerceivedMinutes*10) / 10,
			Segments:      make([]Segment, 0, len(result.Steps)+1),
		}
		for _, step := range result.Steps {
			route.Segments = append(route.Segments, Segment{
				StopID:   step.FromID,
				StopName: step.FromName,
				Type:     string(step.Mode),
				Line:     step.RouteName,
			})
		}
		if n := len(result.Steps); n > 0 {
			last := result.Steps[n-1]
			route.Segments = append(route.Segments, Segment{
				StopID:   last.ToID,
				StopName: last.ToName,
				Type:     FinishType,
				Line:     FinishLine,
			})
		}

		rep.Routes = append(rep.Routes, route)
	}

	return rep, nil
}

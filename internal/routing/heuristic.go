package routing

import (
	"fmt"
	"math"
	"strings"

	"github.com/passbi/transit_router/internal/graph"
	"github.com/passbi/transit_router/internal/models"
)

const (
	DefaultMaxSpeedKmh      = 120.0
	DefaultMinutesPerDegree = 100.0
)

// Heuristic estimates the remaining perceived minutes from a node to the goal
type Heuristic interface {
	Name() string
	Estimate(from, goal models.Node) float64
}

// GreatCircle divides the haversine distance by the fastest speed any edge
// may travel and scales by the cheapest cost factor. It never overestimates
// as long as no edge is faster than MaxSpeedKmh. The GTFS builder floors
// ride durations at MinRideSeconds, which bounds but does not rule out
// faster edges between distant stops; set MaxSpeedKmh above the fastest
// line in the feed.
type GreatCircle struct {
	MaxSpeedKmh float64
	MinFactor   float64
}

// NewGreatCircle creates the admissible heuristic for the cost model the
// engine searches with
func NewGreatCircle(maxSpeedKmh float64, cost CostModel) GreatCircle {
	if maxSpeedKmh <= 0 {
		maxSpeedKmh = DefaultMaxSpeedKmh
	}
	return GreatCircle{MaxSpeedKmh: maxSpeedKmh, MinFactor: cost.MinCostFactor()}
}

func (g GreatCircle) Name() string { return "great_circle" }

func (g GreatCircle) Estimate(from, goal models.Node) float64 {
	if !from.HasPosition() || !goal.HasPosition() || g.MaxSpeedKmh <= 0 {
		return 0
	}
	meters := graph.HaversineMeters(from.Lat, from.Lon, goal.Lat, goal.Lon)
	metersPerMinute := g.MaxSpeedKmh * 1000 / 60
	return meters / metersPerMinute * g.MinFactor
}

// Planar is straight-line distance in raw degrees times a constant. It is
// fast and usually guides well, but degrees are not a metric at any
// latitude so routes are best-effort rather than guaranteed optimal.
type Planar struct {
	MinutesPerDegree float64
}

func (p Planar) Name() string { return "planar" }

func (p Planar) Estimate(from, goal models.Node) float64 {
	if !from.HasPosition() || !goal.HasPosition() {
		return 0
	}
	return math.Hypot(from.Lat-goal.Lat, from.Lon-goal.Lon) * p.MinutesPerDegree
}

// Zero turns A* into Dijkstra
type Zero struct{}

func (Zero) Name() string { return "zero" }

func (Zero) Estimate(_, _ models.Node) float64 { return 0 }

// HeuristicConfig selects and parameterizes a heuristic
type HeuristicConfig struct {
	Name             string  `yaml:"name" validate:"omitempty,oneof=great_circle planar zero"`
	MaxSpeedKmh      float64 `yaml:"max_speed_kmh" validate:"gte=0"`
	MinutesPerDegree float64 `yaml:"minutes_per_degree" validate:"gte=0"`
}

// NewHeuristic builds the heuristic named in cfg for searches priced by cost
func NewHeuristic(cfg HeuristicConfig, cost CostModel) (Heuristic, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", "great_circle":
		return NewGreatCircle(cfg.MaxSpeedKmh, cost), nil
	case "planar":
		mpd := cfg.MinutesPerDegree
		if mpd <= 0 {
			mpd = DefaultMinutesPerDegree
		}
		return Planar{MinutesPerDegree: mpd}, nil
	case "zero":
		return Zero{}, nil
	default:
		return nil, fmt.Errorf("unknown heuristic %q", cfg.Name)
	}
}

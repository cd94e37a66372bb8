package routing

import (
	"math"

	"github.com/passbi/transit_router/internal/graph"
	"github.com/passbi/transit_router/internal/models"
)

const (
	// Walks steeper than this grade get a penalty under Comfort
	steepGrade = 0.05
	// Penalty minutes per unit of grade
	slopePenaltyMinutes = 100.0
)

// Segment is an edge together with its endpoint nodes
type Segment struct {
	Edge models.Edge
	From models.Node
	To   models.Node
}

// CostModel turns edges into perceived minutes
type CostModel struct {
	Traffic      TrafficPredictor
	SlopePenalty bool
}

// NewCostModel creates a cost model; a nil predictor uses the default table
func NewCostModel(traffic TrafficPredictor, slopePenalty bool) CostModel {
	if traffic == nil {
		traffic = DefaultTrafficTable().Predictor()
	}
	return CostModel{Traffic: traffic, SlopePenalty: slopePenalty}
}

// TrafficMultiplier asks the predictor for hour, replacing anything that is
// not a finite positive number with 1.0
func (c CostModel) TrafficMultiplier(hour int) float64 {
	if c.Traffic == nil {
		return 1.0
	}
	m := c.Traffic(hour)
	if !(m > 0) || math.IsInf(m, 0) {
		return 1.0
	}
	return m
}

// Cost returns the perceived minutes of seg under strategy s at hour
func (c CostModel) Cost(s Strategy, seg Segment, hour int) float64 {
	cost := seg.Edge.DurationSeconds / 60
	if seg.Edge.Mode.RoadBound() {
		cost *= c.TrafficMultiplier(hour)
	}

	cost *= s.ModeFactor(seg.Edge.Mode)

	if s == Comfort && c.SlopePenalty && seg.Edge.Mode == models.ModeWalk {
		if grade := Grade(seg.From, seg.To); grade > steepGrade {
			cost += grade * slopePenaltyMinutes
		}
	}

	if cost < 0 || math.IsNaN(cost) {
		return 0
	}
	return cost
}

// Grade is the absolute elevation change over the great-circle distance.
// Stops without a position or at the same position have no grade.
func Grade(from, to models.Node) float64 {
	if !from.HasPosition() || !to.HasPosition() {
		return 0
	}
	dist := graph.HaversineMeters(from.Lat, from.Lon, to.Lat, to.Lon)
	if dist <= 0 {
		return 0
	}
	return math.Abs(to.Elevation-from.Elevation) / dist
}

// MinTrafficMultiplier is the smallest multiplier the predictor returns
// over the hours of a day
func (c CostModel) MinTrafficMultiplier() float64 {
	lowest := c.TrafficMultiplier(0)
	for hour := 1; hour < 24; hour++ {
		lowest = math.Min(lowest, c.TrafficMultiplier(hour))
	}
	return lowest
}

// MinCostFactor is the smallest ratio of perceived minutes to free-flow
// minutes any strategy can produce under c
func (c CostModel) MinCostFactor() float64 {
	road := math.Min(c.MinTrafficMultiplier(), 1.0)
	lowest := road
	for _, s := range AllStrategies() {
		for mode, f := range modeFactors[s] {
			if mode.RoadBound() {
				f *= road
			}
			lowest = math.Min(lowest, f)
		}
	}
	return lowest
}

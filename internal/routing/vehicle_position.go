package routing

import (
	"fmt"
	"math"
	"time"

	"github.com/passbi/transit_router/internal/graph"
	"github.com/passbi/transit_router/internal/models"
)

// TimedStep is a route step placed on the clock
type TimedStep struct {
	models.RouteStep
	Departure time.Time `json:"departure"`
	Arrival   time.Time `json:"arrival"`
}

// Timeline lays the steps of result end to end starting at departure,
// using free-flow durations
func Timeline(result *models.RouteResult, departure time.Time) []TimedStep {
	timed := make([]TimedStep, 0, len(result.Steps))
	clock := departure
	for _, step := range result.Steps {
		arrival := clock.Add(time.Duration(step.DurationSeconds * float64(time.Second)))
		timed = append(timed, TimedStep{RouteStep: step, Departure: clock, Arrival: arrival})
		clock = arrival
	}
	return timed
}

// EstimatePosition estimates where a rider following result is after
// elapsedSeconds, interpolating linearly along the current step
func EstimatePosition(snap *graph.Snapshot, result *models.RouteResult, elapsedSeconds float64) (lat, lon float64, err error) {
	if len(result.Steps) == 0 {
		return 0, 0, fmt.Errorf("route has no steps")
	}

	if elapsedSeconds <= 0 {
		lat, lon = snap.NodePosition(result.Steps[0].FromID)
		return lat, lon, nil
	}

	// Find which step the rider is currently on
	cumulative := 0.0
	for _, step := range result.Steps {
		segmentEnd := cumulative + step.DurationSeconds

		if elapsedSeconds < segmentEnd {
			progress := EstimateProgress(elapsedSeconds-cumulative, step.DurationSeconds)
			lat1, lon1 := snap.NodePosition(step.FromID)
			lat2, lon2 := snap.NodePosition(step.ToID)
			lat, lon = linearInterpolate(lat1, lon1, lat2, lon2, progress)
			return lat, lon, nil
		}

		cumulative = segmentEnd
	}

	// At end position
	lat, lon = snap.NodePosition(result.Steps[len(result.Steps)-1].ToID)
	return lat, lon, nil
}

// linearInterpolate performs simple linear interpolation between two points
func linearInterpolate(lat1, lon1, lat2, lon2, progress float64) (lat, lon float64) {
	lat = lat1 + (lat2-lat1)*progress
	lon = lon1 + (lon2-lon1)*progress
	return lat, lon
}

// EstimateArrivalTime returns the seconds from departure until the rider
// reaches stop stopIndex (0 is the origin)
func EstimateArrivalTime(result *models.RouteResult, stopIndex int) (float64, error) {
	if stopIndex < 0 || stopIndex > len(result.Steps) {
		return 0, fmt.Errorf("invalid stop index: %d", stopIndex)
	}

	total := 0.0
	for i := 0; i < stopIndex; i++ {
		total += result.Steps[i].DurationSeconds
	}
	return total, nil
}

// NextStop returns the index of the next stop the rider reaches after
// elapsedSeconds (0 is the origin) and the seconds left until then. Once the
// route is complete it returns the destination and 0.
func NextStop(result *models.RouteResult, elapsedSeconds float64) (int, float64) {
	for idx := 1; idx <= len(result.Steps); idx++ {
		at, _ := EstimateArrivalTime(result, idx)
		if at > elapsedSeconds {
			return idx, at - math.Max(elapsedSeconds, 0)
		}
	}
	return len(result.Steps), 0
}

// EstimateProgress calculates the progress along a route as a fraction
func EstimateProgress(elapsedSeconds, totalSeconds float64) float64 {
	if totalSeconds <= 0 {
		return 0
	}

	progress := elapsedSeconds / totalSeconds

	// Clamp to [0, 1]
	return math.Max(0, math.Min(1, progress))
}

// WalkingDistanceMeters estimates the distance covered on a walk step from
// its duration at metersPerMinute
func WalkingDistanceMeters(step models.RouteStep, metersPerMinute float64) float64 {
	if step.Mode != models.ModeWalk {
		return 0
	}
	return step.DurationSeconds / 60 * metersPerMinute
}

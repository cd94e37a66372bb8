package api

import (
	"time"

	"github.com/passbi/transit_router/internal/models"
	"github.com/passbi/transit_router/internal/routing"
)

// ArrivedMode marks the closing segment of a rendered route
const ArrivedMode = "ARRIVED"

const clockFormat = "15:04"

// StopRef identifies a stop in responses
type StopRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Segment is one rendered hop. The closing ARRIVED segment only carries
// From and Arrival.
type Segment struct {
	From             StopRef  `json:"from"`
	To               *StopRef `json:"to,omitempty"`
	Mode             string   `json:"mode"`
	RouteName        string   `json:"route_name,omitempty"`
	DurationSeconds  float64  `json:"duration_seconds"`
	PerceivedMinutes float64  `json:"perceived_minutes"`
	DistanceMeters   float64  `json:"distance_meters,omitempty"`
	Grade            float64  `json:"grade,omitempty"`
	Departure        string   `json:"departure,omitempty"`
	Arrival          string   `json:"arrival,omitempty"`
}

// Position is an estimated rider location
type Position struct {
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
	Lat               float64 `json:"lat"`
	Lon               float64 `json:"lon"`
	Progress          float64 `json:"progress"`
	NextStop          StopRef `json:"next_stop"`
	SecondsToNextStop float64 `json:"seconds_to_next_stop"`
}

// RouteResponse is the API rendering of a single route
type RouteResponse struct {
	Strategy              string    `json:"strategy"`
	Departure             string    `json:"departure"`
	Arrival               string    `json:"arrival"`
	TotalPerceivedMinutes float64   `json:"total_perceived_minutes"`
	DurationSeconds       float64   `json:"duration_seconds"`
	WalkDistanceMeters    float64   `json:"walk_distance_meters"`
	Transfers             int       `json:"transfers"`
	Stops                 int       `json:"stops"`
	Expanded              int       `json:"expanded"`
	GraphVersion          string    `json:"graph_version"`
	Cached                bool      `json:"cached"`
	Segments              []Segment `json:"segments"`
	Position              *Position `json:"position,omitempty"`
}

// RouteSearchResponse holds one route per strategy that found a path
type RouteSearchResponse struct {
	Routes map[string]*RouteResponse `json:"routes"`
	Errors map[string]string         `json:"errors,omitempty"`
}

// StopResponse is a stop with its outgoing connections
type StopResponse struct {
	models.Node
	Connections []Connection `json:"connections"`
}

// Connection is an outgoing edge rendered for clients
type Connection struct {
	To              StopRef `json:"to"`
	Mode            string  `json:"mode"`
	RouteName       string  `json:"route_name,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// renderRoute lays the route on the clock starting at departure
func renderRoute(result *models.RouteResult, departure time.Time, walkMetersPerMinute float64, cached bool) *RouteResponse {
	timed := routing.Timeline(result, departure)

	resp := &RouteResponse{
		Strategy:              result.Strategy,
		Departure:             departure.Format(clockFormat),
		Arrival:               departure.Format(clockFormat),
		TotalPerceivedMinutes: result.TotalPerceivedMinutes,
		DurationSeconds:       result.TotalDurationSeconds(),
		Transfers:             countTransfers(result.Steps),
		Stops:                 result.Stops(),
		Expanded:              result.Expanded,
		GraphVersion:          result.GraphVersion,
		Cached:                cached,
		Segments:              make([]Segment, 0, len(timed)+1),
	}

	for _, step := range timed {
		distance := routing.WalkingDistanceMeters(step.RouteStep, walkMetersPerMinute)
		resp.WalkDistanceMeters += distance

		resp.Segments = append(resp.Segments, Segment{
			From:             StopRef{ID: step.FromID, Name: step.FromName},
			To:               &StopRef{ID: step.ToID, Name: step.ToName},
			Mode:             string(step.Mode),
			RouteName:        step.RouteName,
			DurationSeconds:  step.DurationSeconds,
			PerceivedMinutes: step.PerceivedMinutes,
			DistanceMeters:   distance,
			Grade:            step.Grade,
			Departure:        step.Departure.Format(clockFormat),
			Arrival:          step.Arrival.Format(clockFormat),
		})
	}

	if n := len(timed); n > 0 {
		last := timed[n-1]
		resp.Arrival = last.Arrival.Format(clockFormat)
		resp.Segments = append(resp.Segments, Segment{
			From:    StopRef{ID: last.ToID, Name: last.ToName},
			Mode:    ArrivedMode,
			Arrival: resp.Arrival,
		})
	}

	return resp
}

// countTransfers counts boardings after the first. Consecutive ride steps
// on the same mode and route are one vehicle; walks never count.
func countTransfers(steps []models.RouteStep) int {
	boardings := 0
	var prev *models.RouteStep
	for i := range steps {
		s := &steps[i]
		if s.Mode == models.ModeWalk {
			prev = nil
			continue
		}
		if prev == nil || prev.Mode != s.Mode || prev.RouteName != s.RouteName {
			boardings++
		}
		prev = s
	}
	if boardings == 0 {
		return 0
	}
	return boardings - 1
}

package models

import "strings"

// Mode represents the transport type of an edge
type Mode string

const (
	ModeWalk       Mode = "walk"
	ModeBus        Mode = "bus"
	ModeMinibus    Mode = "minibus"
	ModeMetro      Mode = "metro"
	ModeRail       Mode = "rail"
	ModeTram       Mode = "tram"
	ModeFerry      Mode = "ferry"
	ModeFunicular  Mode = "funicular"
	ModeTaxi       Mode = "taxi"
	ModeTrolleybus Mode = "trolleybus"
	ModeCableTram  Mode = "cable_tram"
	ModeGondola    Mode = "gondola"
	ModeMonorail   Mode = "monorail"
)

// UnknownStopName is returned for stops without a display name
const UnknownStopName = "Unknown"

var knownModes = map[Mode]bool{
	ModeWalk: true, ModeBus: true, ModeMinibus: true, ModeMetro: true,
	ModeRail: true, ModeTram: true, ModeFerry: true, ModeFunicular: true,
	ModeTaxi: true, ModeTrolleybus: true, ModeCableTram: true,
	ModeGondola: true, ModeMonorail: true,
}

// ParseMode normalizes a mode label. The set is open: anything
// unrecognized is treated as a bus.
func ParseMode(s string) Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if knownModes[m] {
		return m
	}
	return ModeBus
}

// RoadBound reports whether the mode shares the road with general traffic
func (m Mode) RoadBound() bool {
	return m == ModeBus || m == ModeMinibus
}

// Node represents a stop in the routing graph
type Node struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation float64 `json:"elevation,omitempty"`
}

// DisplayName returns the stop name or the placeholder if it is blank
func (n Node) DisplayName() string {
	if strings.TrimSpace(n.Name) == "" {
		return UnknownStopName
	}
	return n.Name
}

// HasPosition is false for stops stored at the (0,0) default
func (n Node) HasPosition() bool {
	return n.Lat != 0 || n.Lon != 0
}

// Edge is a directed connection between two stops
type Edge struct {
	FromID          string  `json:"from_id"`
	ToID            string  `json:"to_id"`
	Mode            Mode    `json:"mode"`
	RouteName       string  `json:"route_name,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"` // free-flow travel time
}

// RouteStep is one hop of a computed route
type RouteStep struct {
	FromID           string  `json:"from_id"`
	FromName         string  `json:"from_name"`
	ToID             string  `json:"to_id"`
	ToName           string  `json:"to_name"`
	Mode             Mode    `json:"mode"`
	RouteName        string  `json:"route_name,omitempty"`
	DurationSeconds  float64 `json:"duration_seconds"`
	PerceivedMinutes float64 `json:"perceived_minutes"`
	Grade            float64 `json:"grade,omitempty"`
}

// RouteResult is the outcome of a successful search
type RouteResult struct {
	Strategy              string      `json:"strategy"`
	TotalPerceivedMinutes float64     `json:"total_perceived_minutes"`
	Steps                 []RouteStep `json:"steps"`
	Expanded              int         `json:"expanded"`
	GraphVersion          string      `json:"graph_version,omitempty"`
}

// Stops returns the number of stops visited, endpoints included
func (r *RouteResult) Stops() int {
	if len(r.Steps) == 0 {
		return 1
	}
	return len(r.Steps) + 1
}

// TotalDurationSeconds sums the free-flow durations of all steps
func (r *RouteResult) TotalDurationSeconds() float64 {
	total := 0.0
	for _, s := range r.Steps {
		total += s.DurationSeconds
	}
	return total
}

// GTFS data structures for import

// GTFSAgency represents an agency from agency.txt
type GTFSAgency struct {
	AgencyID   string
	AgencyName string
	AgencyURL  string
	Timezone   string
}

// GTFSStop represents a stop from stops.txt
type GTFSStop struct {
	StopID   string
	StopName string
	Lat      float64
	Lon      float64
}

// GTFSRoute represents a route from routes.txt
type GTFSRoute struct {
	RouteID   string
	AgencyID  string
	ShortName string
	LongName  string
	RouteType int
}

// GTFSTrip represents a trip from trips.txt
type GTFSTrip struct {
	RouteID   string
	ServiceID string
	TripID    string
	Headsign  string
}

// GTFSStopTime represents a stop time from stop_times.txt
type GTFSStopTime struct {
	TripID        string
	ArrivalTime   string
	DepartureTime string
	StopID        string
	StopSequence  int
}

package graph

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/passbi/transit_router/internal/gtfs"
	"github.com/passbi/transit_router/internal/models"
)

// Walking transfer defaults
const (
	DefaultMaxWalkMeters = 300.0
	DefaultWalkSpeedMPS  = 1.2

	// MinRideSeconds floors ride edges; minute-rounded timetables often
	// give consecutive stops the same time
	MinRideSeconds = 30.0

	// Bounding-box prefilter and grid cell size, in degrees
	walkCellDegrees = 0.01
)

// BuildOptions controls edge generation from a GTFS feed
type BuildOptions struct {
	MaxWalkMeters float64
	WalkSpeedMPS  float64
}

// DefaultBuildOptions returns the walking transfer defaults
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		MaxWalkMeters: DefaultMaxWalkMeters,
		WalkSpeedMPS:  DefaultWalkSpeedMPS,
	}
}

// BuildStats summarizes a graph build
type BuildStats struct {
	Nodes            int
	RideEdges        int
	WalkEdges        int
	SkippedStopTimes int
}

// Builder constructs the routing graph from GTFS data
type Builder struct {
	opts BuildOptions
}

// NewBuilder creates a new graph builder
func NewBuilder(opts BuildOptions) *Builder {
	if opts.MaxWalkMeters < 0 {
		opts.MaxWalkMeters = 0
	}
	if opts.WalkSpeedMPS <= 0 {
		opts.WalkSpeedMPS = DefaultWalkSpeedMPS
	}
	return &Builder{opts: opts}
}

// Build constructs a snapshot with one node per stop, a ride edge for every
// pair of consecutive stops on a trip (fastest observed hop wins) and
// bidirectional walking transfers between nearby stops.
func (b *Builder) Build(feed *gtfs.GTFSFeed) (*Snapshot, BuildStats, error) {
	log.Println("Starting graph construction...")
	var stats BuildStats

	stops := gtfs.ValidateAndCleanStops(feed.Stops)
	nodes := make([]models.Node, 0, len(stops))
	known := make(map[string]bool, len(stops))
	for _, s := range stops {
		nodes = append(nodes, models.Node{ID: s.StopID, Name: s.StopName, Lat: s.Lat, Lon: s.Lon})
		known[s.StopID] = true
	}
	stats.Nodes = len(nodes)

	edges := make(map[pairKey]models.Edge)
	stats.RideEdges, stats.SkippedStopTimes = b.buildRideEdges(feed, known, edges)
	log.Printf("Created %d RIDE edges (%d hops skipped)", stats.RideEdges, stats.SkippedStopTimes)

	stats.WalkEdges = b.buildWalkEdges(nodes, edges)
	log.Printf("Created %d WALK edges", stats.WalkEdges)

	out := make([]models.Edge, 0, len(edges))
	for _, e := range edges {
		out = append(out, e)
	}

	snap, err := NewSnapshot(nodes, out)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to build snapshot: %w", err)
	}

	log.Printf("Graph construction completed: %d nodes, %d edges", snap.NodeCount(), snap.EdgeCount())
	return snap, stats, nil
}

// keepFastest stores e unless an edge for the same pair is already faster
func keepFastest(edges map[pairKey]models.Edge, e models.Edge) {
	key := pairKey{e.FromID, e.ToID}
	if cur, ok := edges[key]; ok && cur.DurationSeconds <= e.DurationSeconds {
		return
	}
	edges[key] = e
}

// buildRideEdges creates edges between consecutive stops on the same trip
func (b *Builder) buildRideEdges(feed *gtfs.GTFSFeed, known map[string]bool, edges map[pairKey]models.Edge) (int, int) {
	type routeInfo struct {
		mode models.Mode
		name string
	}
	routes := make(map[string]routeInfo, len(feed.Routes))
	for _, r := range feed.Routes {
		routes[r.RouteID] = routeInfo{mode: gtfs.InferMode(r), name: gtfs.RouteName(r)}
	}

	tripRoutes := make(map[string]string, len(feed.Trips))
	for _, trip := range feed.Trips {
		tripRoutes[trip.TripID] = trip.RouteID
	}

	// Group stop_times by trip and sort by sequence
	tripStops := make(map[string][]models.GTFSStopTime)
	for _, st := range feed.StopTimes {
		tripStops[st.TripID] = append(tripStops[st.TripID], st)
	}

	skipped := 0
	for tripID, times := range tripStops {
		route, ok := routes[tripRoutes[tripID]]
		if !ok {
			skipped += len(times) - 1
			continue
		}

		sort.Slice(times, func(i, j int) bool {
			return times[i].StopSequence < times[j].StopSequence
		})

		for i := 0; i < len(times)-1; i++ {
			from, to := times[i], times[i+1]
			if !known[from.StopID] || !known[to.StopID] || from.StopID == to.StopID {
				skipped++
				continue
			}

			dep, err1 := gtfs.ParseTimeToSeconds(departureOf(from))
			arr, err2 := gtfs.ParseTimeToSeconds(arrivalOf(to))
			if err1 != nil || err2 != nil || arr < dep {
				skipped++
				continue
			}

			keepFastest(edges, models.Edge{
				FromID:          from.StopID,
				ToID:            to.StopID,
				Mode:            route.mode,
				RouteName:       route.name,
				DurationSeconds: math.Max(float64(arr-dep), MinRideSeconds),
			})
		}
	}

	return countMode(edges, false), skipped
}

func departureOf(st models.GTFSStopTime) string {
	if st.DepartureTime != "" {
		return st.DepartureTime
	}
	return st.ArrivalTime
}

func arrivalOf(st models.GTFSStopTime) string {
	if st.ArrivalTime != "" {
		return st.ArrivalTime
	}
	return st.DepartureTime
}

type cell struct {
	lat, lon int
}

func cellOf(n models.Node) cell {
	return cell{
		lat: int(math.Floor(n.Lat / walkCellDegrees)),
		lon: int(math.Floor(n.Lon / walkCellDegrees)),
	}
}

// buildWalkEdges links every pair of positioned stops within walking range
// in both directions. A walk only replaces an existing edge when faster.
func (b *Builder) buildWalkEdges(nodes []models.Node, edges map[pairKey]models.Edge) int {
	if b.opts.MaxWalkMeters <= 0 {
		return 0
	}

	grid := make(map[cell][]int)
	for i, n := range nodes {
		if !n.HasPosition() {
			continue
		}
		c := cellOf(n)
		grid[c] = append(grid[c], i)
	}

	for i, a := range nodes {
		if !a.HasPosition() {
			continue
		}
		c := cellOf(a)
		for dLat := -1; dLat <= 1; dLat++ {
			for dLon := -1; dLon <= 1; dLon++ {
				for _, j := range grid[cell{c.lat + dLat, c.lon + dLon}] {
					if j <= i {
						continue
					}
					bn := nodes[j]
					if math.Abs(a.Lat-bn.Lat) > walkCellDegrees || math.Abs(a.Lon-bn.Lon) > walkCellDegrees {
						continue
					}

					dist := HaversineMeters(a.Lat, a.Lon, bn.Lat, bn.Lon)
					if dist > b.opts.MaxWalkMeters {
						continue
					}

					seconds := math.Floor(dist / b.opts.WalkSpeedMPS)
					keepFastest(edges, models.Edge{FromID: a.ID, ToID: bn.ID, Mode: models.ModeWalk, DurationSeconds: seconds})
					keepFastest(edges, models.Edge{FromID: bn.ID, ToID: a.ID, Mode: models.ModeWalk, DurationSeconds: seconds})
				}
			}
		}
	}

	return countMode(edges, true)
}

func countMode(edges map[pairKey]models.Edge, walk bool) int {
	n := 0
	for _, e := range edges {
		if (e.Mode == models.ModeWalk) == walk {
			n++
		}
	}
	return n
}

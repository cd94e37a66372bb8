package routing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/passbi/transit_router/internal/graph"
	"github.com/passbi/transit_router/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noon keeps the traffic multiplier at 1.0
var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func edge(from, to string, mode models.Mode, seconds float64) models.Edge {
	return models.Edge{FromID: from, ToID: to, Mode: mode, RouteName: "L-" + from + to, DurationSeconds: seconds}
}

func nodes(ids ...string) []models.Node {
	out := make([]models.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Node{ID: id, Name: "Stop " + id})
	}
	return out
}

func newTestEngine(t *testing.T, ns []models.Node, es []models.Edge, opts Options) *Engine {
	t.Helper()

	snap, err := graph.NewSnapshot(ns, es)
	require.NoError(t, err)

	if opts.Now == nil {
		opts.Now = func() time.Time { return noon }
	}
	return NewEngine(graph.NewStore(snap), opts)
}

func findRoute(t *testing.T, e *Engine, start, end string, s Strategy) (*models.RouteResult, error) {
	t.Helper()
	return e.FindRoute(context.Background(), Request{Start: start, End: end, Strategy: s})
}

func stepIDs(r *models.RouteResult) []string {
	ids := []string{}
	if len(r.Steps) > 0 {
		ids = append(ids, r.Steps[0].FromID)
	}
	for _, s := range r.Steps {
		ids = append(ids, s.ToID)
	}
	return ids
}

func TestFindRouteLinear(t *testing.T) {
	e := newTestEngine(t, nodes("A", "B", "C"), []models.Edge{
		edge("A", "B", models.ModeBus, 600),
		edge("B", "C", models.ModeBus, 300),
	}, Options{})

	result, err := findRoute(t, e, "A", "C", Fastest)
	require.NoError(t, err)

	assert.Equal(t, "fastest", result.Strategy)
	assert.InDelta(t, 15.0, result.TotalPerceivedMinutes, 1e-9)
	assert.Equal(t, 900.0, result.TotalDurationSeconds())
	assert.Equal(t, 3, result.Stops())
	assert.Equal(t, []string{"A", "B", "C"}, stepIDs(result))

	assert.Equal(t, "Stop A", result.Steps[0].FromName)
	assert.Equal(t, "Stop B", result.Steps[0].ToName)
	assert.Equal(t, models.ModeBus, result.Steps[0].Mode)
	assert.Equal(t, "L-AB", result.Steps[0].RouteName)
	assert.InDelta(t, 10.0, result.Steps[0].PerceivedMinutes, 1e-9)
	assert.InDelta(t, 5.0, result.Steps[1].PerceivedMinutes, 1e-9)
}

func TestFindRouteDirectEdgeWins(t *testing.T) {
	e := newTestEngine(t, nodes("A", "B", "C"), []models.Edge{
		edge("A", "B", models.ModeBus, 600),
		edge("B", "C", models.ModeBus, 300),
		edge("A", "C", models.ModeBus, 450),
	}, Options{})

	result, err := findRoute(t, e, "A", "C", Fastest)
	require.NoError(t, err)

	assert.InDelta(t, 7.5, result.TotalPerceivedMinutes, 1e-9)
	assert.Equal(t, 2, result.Stops())
	assert.Equal(t, []string{"A", "C"}, stepIDs(result))
}

func TestFindRouteOneWay(t *testing.T) {
	e := newTestEngine(t, nodes("A", "B", "C"), []models.Edge{
		edge("A", "B", models.ModeBus, 600),
		edge("B", "C", models.ModeBus, 300),
	}, Options{})

	_, err := findRoute(t, e, "C", "A", Fastest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRouteFound))

	var noRoute *NoRouteError
	require.True(t, errors.As(err, &noRoute))
	assert.Equal(t, ReasonExhausted, noRoute.Reason)
	assert.Equal(t, "C", noRoute.From)
	assert.Equal(t, "A", noRoute.To)
}

func TestComfortPrefersMetro(t *testing.T) {
	e := newTestEngine(t, nodes("A", "B", "M"), []models.Edge{
		edge("A", "B", models.ModeBus, 600),
		edge("A", "M", models.ModeMetro, 360),
		edge("M", "B", models.ModeMetro, 360),
	}, Options{})

	result, err := findRoute(t, e, "A", "B", Comfort)
	require.NoError(t, err)

	assert.InDelta(t, 9.6, result.TotalPerceivedMinutes, 1e-9)
	assert.Equal(t, []string{"A", "M", "B"}, stepIDs(result))
	for _, s := range result.Steps {
		assert.Equal(t, models.ModeMetro, s.Mode)
	}

	// Fastest takes the 10 minute bus over 12 minutes of metro
	result, err = findRoute(t, e, "A", "B", Fastest)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, stepIDs(result))
}

func TestEconomicPrefersWalking(t *testing.T) {
	e := newTestEngine(t, nodes("A", "B", "P"), []models.Edge{
		edge("A", "B", models.ModeTaxi, 600),
		edge("A", "P", models.ModeWalk, 450),
		edge("P", "B", models.ModeWalk, 450),
	}, Options{})

	result, err := findRoute(t, e, "A", "B", Economic)
	require.NoError(t, err)

	assert.InDelta(t, 7.5, result.TotalPerceivedMinutes, 1e-9)
	assert.Equal(t, []string{"A", "P", "B"}, stepIDs(result))

	result, err = findRoute(t, e, "A", "B", Fastest)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, stepIDs(result))
	assert.Equal(t, models.ModeTaxi, result.Steps[0].Mode)
}

func TestTrafficByDeparture(t *testing.T) {
	e := newTestEngine(t, nodes("A", "B"), []models.Edge{
		edge("A", "B", models.ModeBus, 600),
	}, Options{})

	tests := []struct {
		departure string
		expected  float64
	}{
		{"05:00", 5.0},
		{"08:00", 15.0},
		{"12:00", 10.0},
		{"18:30", 15.0},
		// malformed falls back to the engine clock (noon)
		{"8 o'clock", 10.0},
		{"", 10.0},
	}

	for _, tt := range tests {
		t.Run(tt.departure, func(t *testing.T) {
			result, err := e.FindRoute(context.Background(), Request{
				Start: "A", End: "B", Departure: tt.departure, Strategy: Fastest,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.TotalPerceivedMinutes)
		})
	}
}

func TestDeterministicTieBreak(t *testing.T) {
	// Two equal-cost paths A-B-D and A-C-D
	e := newTestEngine(t, nodes("A", "B", "C", "D"), []models.Edge{
		edge("A", "C", models.ModeRail, 300),
		edge("A", "B", models.ModeRail, 300),
		edge("C", "D", models.ModeRail, 300),
		edge("B", "D", models.ModeRail, 300),
	}, Options{})

	first, err := findRoute(t, e, "A", "D", Fastest)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D"}, stepIDs(first))

	for i := 0; i < 25; i++ {
		again, err := findRoute(t, e, "A", "D", Fastest)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDisconnectedGraph(t *testing.T) {
	e := newTestEngine(t, nodes("A", "B"), nil, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := findRoute(t, e, "A", "B", Fastest)
		done <- err
	}()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrNoRouteFound))
		var noRoute *NoRouteError
		require.True(t, errors.As(err, &noRoute))
		assert.Equal(t, 1, noRoute.Expanded)
	case <-time.After(5 * time.Second):
		t.Fatal("search did not terminate")
	}
}

func chain(n int) ([]models.Node, []models.Edge) {
	ns := make([]models.Node, 0, n)
	es := make([]models.Edge, 0, n)
	for i := 0; i < n; i++ {
		ns = append(ns, models.Node{ID: fmt.Sprintf("N%03d", i)})
		if i > 0 {
			es = append(es, edge(fmt.Sprintf("N%03d", i-1), fmt.Sprintf("N%03d", i), models.ModeRail, 60))
		}
	}
	return ns, es
}

func TestCircuitBreaker(t *testing.T) {
	t.Run("reachable goal reports breaker", func(t *testing.T) {
		ns, es := chain(30)
		e := newTestEngine(t, ns, es, Options{MaxExpansions: 5})

		_, err := findRoute(t, e, "N000", "N029", Fastest)
		var noRoute *NoRouteError
		require.True(t, errors.As(err, &noRoute))
		assert.Equal(t, ReasonBreaker, noRoute.Reason)
		assert.Equal(t, 5, noRoute.Expanded)
		assert.True(t, errors.Is(err, ErrNoRouteFound))
	})

	t.Run("unreachable goal reports unreachable", func(t *testing.T) {
		ns, es := chain(30)
		ns = append(ns, models.Node{ID: "island"})
		e := newTestEngine(t, ns, es, Options{MaxExpansions: 5})

		_, err := findRoute(t, e, "N000", "island", Fastest)
		var noRoute *NoRouteError
		require.True(t, errors.As(err, &noRoute))
		assert.Equal(t, ReasonUnreachable, noRoute.Reason)
	})

	t.Run("default limit allows long routes", func(t *testing.T) {
		ns, es := chain(200)
		e := newTestEngine(t, ns, es, Options{})

		result, err := findRoute(t, e, "N000", "N199", Fastest)
		require.NoError(t, err)
		assert.Len(t, result.Steps, 199)
		assert.Equal(t, 199, result.Expanded)
	})
}

func TestCancelledSearch(t *testing.T) {
	ns, es := chain(10)
	e := newTestEngine(t, ns, es, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.FindRoute(ctx, Request{Start: "N000", End: "N009", Strategy: Fastest})
	assert.True(t, errors.Is(err, ErrNoRouteFound))
	assert.True(t, errors.Is(err, context.Canceled))

	var noRoute *NoRouteError
	require.True(t, errors.As(err, &noRoute))
	assert.Equal(t, ReasonCancelled, noRoute.Reason)
}

func TestStartEqualsEnd(t *testing.T) {
	e := newTestEngine(t, nodes("A", "B"), []models.Edge{edge("A", "B", models.ModeBus, 60)}, Options{})

	result, err := findRoute(t, e, "A", "A", Comfort)
	require.NoError(t, err)
	assert.Empty(t, result.Steps)
	assert.Zero(t, result.TotalPerceivedMinutes)
	assert.Equal(t, 1, result.Stops())
}

func TestFindRouteResolution(t *testing.T) {
	ns := []models.Node{
		{ID: "S1", Name: "Central Station"},
		{ID: "S2", Name: "Market Square"},
		{ID: "S3"},
	}
	e := newTestEngine(t, ns, []models.Edge{
		edge("S1", "S2", models.ModeTram, 240),
		edge("S2", "S3", models.ModeWalk, 60),
	}, Options{})

	t.Run("fuzzy names", func(t *testing.T) {
		result, err := findRoute(t, e, "central", "MARKET", Fastest)
		require.NoError(t, err)
		assert.Equal(t, []string{"S1", "S2"}, stepIDs(result))
	})

	t.Run("missing name uses placeholder", func(t *testing.T) {
		result, err := findRoute(t, e, "S2", "S3", Fastest)
		require.NoError(t, err)
		assert.Equal(t, models.UnknownStopName, result.Steps[0].ToName)
	})

	t.Run("unknown start", func(t *testing.T) {
		_, err := findRoute(t, e, "airport", "S2", Fastest)
		assert.True(t, errors.Is(err, ErrNodeNotFound))
		assert.False(t, errors.Is(err, ErrNoRouteFound))
	})

	t.Run("unknown end", func(t *testing.T) {
		_, err := findRoute(t, e, "S1", "airport", Fastest)
		assert.True(t, errors.Is(err, ErrNodeNotFound))
	})
}

func TestFindRouteContractErrors(t *testing.T) {
	t.Run("nil store panics", func(t *testing.T) {
		assert.Panics(t, func() { NewEngine(nil, Options{}) })
	})

	t.Run("graph not loaded", func(t *testing.T) {
		e := NewEngine(graph.NewStore(nil), Options{})
		_, err := findRoute(t, e, "A", "B", Fastest)
		assert.True(t, errors.Is(err, ErrGraphNotLoaded))
	})

	t.Run("invalid strategy", func(t *testing.T) {
		e := newTestEngine(t, nodes("A"), nil, Options{})
		_, err := findRoute(t, e, "A", "A", Strategy(9))
		assert.True(t, errors.Is(err, ErrInvalidStrategy))
	})
}

func TestSnapshotIsolation(t *testing.T) {
	old, err := graph.NewSnapshot(nodes("A", "B"), []models.Edge{edge("A", "B", models.ModeRail, 600)})
	require.NoError(t, err)
	store := graph.NewStore(old)
	e := NewEngine(store, Options{Now: func() time.Time { return noon }})

	next, err := graph.NewSnapshot(nodes("A", "B"), []models.Edge{edge("A", "B", models.ModeRail, 120)})
	require.NoError(t, err)
	store.Swap(next)

	// A search pinned to the old snapshot still sees the old graph
	pinned, err := e.Search(context.Background(), old, "A", "B", Fastest, 12)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, pinned.TotalPerceivedMinutes, 1e-9)
	assert.Equal(t, old.Version(), pinned.GraphVersion)

	current, err := findRoute(t, e, "A", "B", Fastest)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, current.TotalPerceivedMinutes, 1e-9)
	assert.Equal(t, next.Version(), current.GraphVersion)
}

// grid builds an n x n lattice of positioned stops with rail edges both ways
func grid(n int) ([]models.Node, []models.Edge) {
	var ns []models.Node
	var es []models.Edge
	id := func(r, c int) string { return fmt.Sprintf("G%02d%02d", r, c) }

	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			ns = append(ns, models.Node{ID: id(r, c), Lat: 14.70 + float64(r)*0.01, Lon: -17.45 + float64(c)*0.01})
			// 0.01 degree is ~1.1km; 120s keeps edges under 40 km/h
			seconds := 120.0 + float64((r*7+c*3)%5)*30
			if c+1 < n {
				es = append(es, edge(id(r, c), id(r, c+1), models.ModeRail, seconds))
				es = append(es, edge(id(r, c+1), id(r, c), models.ModeRail, seconds))
			}
			if r+1 < n {
				es = append(es, edge(id(r, c), id(r+1, c), models.ModeBus, seconds+60))
				es = append(es, edge(id(r+1, c), id(r, c), models.ModeBus, seconds+60))
			}
		}
	}
	return ns, es
}

func TestGreatCircleMatchesDijkstra(t *testing.T) {
	ns, es := grid(8)
	guided := newTestEngine(t, ns, es, Options{Heuristic: NewGreatCircle(DefaultMaxSpeedKmh, NewCostModel(nil, false))})
	blind := newTestEngine(t, ns, es, Options{Heuristic: Zero{}})

	for _, s := range AllStrategies() {
		a, err := findRoute(t, guided, "G0000", "G0707", s)
		require.NoError(t, err)
		b, err := findRoute(t, blind, "G0000", "G0707", s)
		require.NoError(t, err)

		assert.InDelta(t, b.TotalPerceivedMinutes, a.TotalPerceivedMinutes, 1e-9, s.String())
		assert.LessOrEqual(t, a.Expanded, b.Expanded, s.String())
	}
}

func TestStepCostsSumToTotal(t *testing.T) {
	ns, es := grid(5)
	e := newTestEngine(t, ns, es, Options{Heuristic: Planar{MinutesPerDegree: DefaultMinutesPerDegree}})

	for _, s := range AllStrategies() {
		result, err := findRoute(t, e, "G0000", "G0404", s)
		require.NoError(t, err)

		sum := 0.0
		for _, step := range result.Steps {
			assert.GreaterOrEqual(t, step.PerceivedMinutes, 0.0)
			sum += step.PerceivedMinutes
		}
		assert.InDelta(t, result.TotalPerceivedMinutes, sum, 1e-9)
	}
}

func TestConcurrentSearches(t *testing.T) {
	ns, es := grid(6)
	e := newTestEngine(t, ns, es, Options{})

	want, err := findRoute(t, e, "G0000", "G0505", Comfort)
	require.NoError(t, err)

	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func() {
			got, err := e.FindRoute(context.Background(), Request{Start: "G0000", End: "G0505", Strategy: Comfort})
			if err == nil && got.TotalPerceivedMinutes != want.TotalPerceivedMinutes {
				err = fmt.Errorf("got %v want %v", got.TotalPerceivedMinutes, want.TotalPerceivedMinutes)
			}
			errs <- err
		}()
	}
	for i := 0; i < 16; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestDefaultHeuristicFollowsCustomTraffic(t *testing.T) {
	// S, X and G sit on a line about 55 km long; X is next to S
	ns := []models.Node{
		{ID: "S", Name: "South", Lat: 14.50, Lon: -17.00},
		{ID: "X", Name: "Crossing", Lat: 14.501, Lon: -17.00},
		{ID: "G", Name: "Goal", Lat: 15.00, Lon: -17.00},
	}
	xg := graph.HaversineMeters(14.501, -17.00, 15.00, -17.00)
	sg := graph.HaversineMeters(14.50, -17.00, 15.00, -17.00)
	es := []models.Edge{
		edge("S", "X", models.ModeBus, 10),
		edge("X", "G", models.ModeBus, xg/(100*1000/3600.0)),
		edge("S", "G", models.ModeBus, sg/(30*1000/3600.0)),
	}
	freeFlowing := NewCostModel(func(int) float64 { return 0.1 }, false)

	guided := newTestEngine(t, ns, es, Options{Cost: freeFlowing})
	blind := newTestEngine(t, ns, es, Options{Cost: freeFlowing, Heuristic: Zero{}})

	assert.InDelta(t, 0.1, guided.Heuristic().(GreatCircle).MinFactor, 1e-9)

	for _, s := range AllStrategies() {
		a, err := findRoute(t, guided, "S", "G", s)
		require.NoError(t, err)
		b, err := findRoute(t, blind, "S", "G", s)
		require.NoError(t, err)

		assert.InDelta(t, b.TotalPerceivedMinutes, a.TotalPerceivedMinutes, 1e-9, s.String())
		assert.Equal(t, []string{"S", "X", "G"}, stepIDs(a), s.String())
	}
}

func TestFreeFlowIgnoresTraffic(t *testing.T) {
	e := newTestEngine(t, nodes("A", "B", "C"), []models.Edge{
		edge("A", "B", models.ModeBus, 600),
		edge("A", "C", models.ModeMetro, 360),
		edge("C", "B", models.ModeMetro, 360),
	}, Options{})
	snap := e.Store().Current()
	ctx := context.Background()

	// 15 minutes by bus in the morning peak, 12 by metro
	rush, err := e.Search(ctx, snap, "A", "B", Fastest, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "B"}, stepIDs(rush))

	free := e.FreeFlow()
	assert.Same(t, e.Store(), free.Store())

	plain, err := free.Search(ctx, snap, "A", "B", Fastest, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, stepIDs(plain))
	assert.InDelta(t, 10.0, plain.TotalPerceivedMinutes, 1e-9)
}

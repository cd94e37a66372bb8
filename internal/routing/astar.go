package routing

import (
	"container/heap"
	"context"
	"fmt"
	"time"

	"github.com/passbi/transit_router/internal/graph"
	"github.com/passbi/transit_router/internal/models"
)

// DefaultMaxExpansions bounds the nodes popped per search
const DefaultMaxExpansions = 5000

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	MaxExpansions int
	Heuristic     Heuristic
	Cost          CostModel
	Now           func() time.Time
}

// Engine finds least perceived cost routes over the store's current snapshot.
// It holds no per-search state and is safe for concurrent use.
type Engine struct {
	store *graph.Store
	opts  Options
}

// Request is a route query as a caller phrases it
type Request struct {
	Start     string
	End       string
	Departure string // "HH:MM", empty for now
	Strategy  Strategy
}

// NewEngine creates a new routing engine
func NewEngine(store *graph.Store, opts Options) *Engine {
	if store == nil {
		panic("routing: NewEngine called with nil graph store")
	}
	if opts.MaxExpansions <= 0 {
		opts.MaxExpansions = DefaultMaxExpansions
	}
	if opts.Cost.Traffic == nil {
		opts.Cost.Traffic = DefaultTrafficTable().Predictor()
	}
	if opts.Heuristic == nil {
		opts.Heuristic = NewGreatCircle(DefaultMaxSpeedKmh, opts.Cost)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{store: store, opts: opts}
}

// Store returns the graph store the engine reads from
func (e *Engine) Store() *graph.Store { return e.store }

// FreeFlow returns an engine over the same store that prices every edge at
// its raw duration. Searched with Fastest it yields plain shortest paths.
func (e *Engine) FreeFlow() *Engine {
	opts := e.opts
	opts.Cost = CostModel{Traffic: func(int) float64 { return 1.0 }}
	return &Engine{store: e.store, opts: opts}
}

// Heuristic returns the configured heuristic
func (e *Engine) Heuristic() Heuristic { return e.opts.Heuristic }

// Departure resolves a request departure string against the engine clock
func (e *Engine) Departure(s string) (time.Time, bool) {
	return ParseDeparture(s, e.opts.Now())
}

// FindRoute resolves both endpoints and runs the search on one snapshot
func (e *Engine) FindRoute(ctx context.Context, req Request) (*models.RouteResult, error) {
	snap := e.store.Current()
	if snap == nil {
		return nil, ErrGraphNotLoaded
	}
	if !req.Strategy.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStrategy, int(req.Strategy))
	}

	start, err := snap.Resolve(req.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := snap.Resolve(req.End)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}

	departure, _ := e.Departure(req.Departure)
	return e.Search(ctx, snap, start, end, req.Strategy, departure.Hour())
}

// Search runs A* between two node ids on snap. hour selects the traffic
// multiplier for the whole search; the clock does not advance per hop.
func (e *Engine) Search(ctx context.Context, snap *graph.Snapshot, start, end string, strategy Strategy, hour int) (*models.RouteResult, error) {
	if !snap.HasNode(start) {
		return nil, fmt.Errorf("start: %w: %q", ErrNodeNotFound, start)
	}
	goal, ok := snap.GetNode(end)
	if !ok {
		return nil, fmt.Errorf("end: %w: %q", ErrNodeNotFound, end)
	}

	estimate := func(id string) float64 {
		n, _ := snap.GetNode(id)
		return e.opts.Heuristic.Estimate(n, goal)
	}

	gScore := map[string]float64{start: 0}
	openSet := &PriorityQueue{}
	heap.Push(openSet, &label{node: start, g: 0, f: estimate(start)})

	expanded := 0
	for openSet.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, &NoRouteError{From: start, To: end, Reason: ReasonCancelled, Expanded: expanded, Cause: err}
		}

		current := heap.Pop(openSet).(*label)
		if current.g > gScore[current.node] {
			continue // stale
		}

		if current.node == end {
			return e.buildResult(snap, strategy, current, expanded), nil
		}

		if expanded >= e.opts.MaxExpansions {
			reason := ReasonBreaker
			if !snap.Reachable(start, end) {
				reason = ReasonUnreachable
			}
			return nil, &NoRouteError{From: start, To: end, Reason: reason, Expanded: expanded}
		}
		expanded++

		from, _ := snap.GetNode(current.node)
		for _, edge := range snap.GetEdges(current.node) {
			to, _ := snap.GetNode(edge.ToID)
			stepCost := e.opts.Cost.Cost(strategy, Segment{Edge: edge, From: from, To: to}, hour)
			tentativeG := current.g + stepCost

			if best, seen := gScore[edge.ToID]; seen && tentativeG >= best {
				continue
			}
			gScore[edge.ToID] = tentativeG

			heap.Push(openSet, &label{
				node:   edge.ToID,
				g:      tentativeG,
				f:      tentativeG + estimate(edge.ToID),
				parent: current,
				edge:   edge,
				cost:   stepCost,
			})
		}
	}

	return nil, &NoRouteError{From: start, To: end, Reason: ReasonExhausted, Expanded: expanded}
}

// buildResult walks the parent chain back to the start
func (e *Engine) buildResult(snap *graph.Snapshot, strategy Strategy, goal *label, expanded int) *models.RouteResult {
	depth := 0
	for l := goal; l.parent != nil; l = l.parent {
		depth++
	}

	steps := make([]models.RouteStep, depth)
	for l := goal; l.parent != nil; l = l.parent {
		depth--
		from, _ := snap.GetNode(l.edge.FromID)
		to, _ := snap.GetNode(l.edge.ToID)

		step := models.RouteStep{
			FromID:           l.edge.FromID,
			FromName:         snap.NodeName(l.edge.FromID),
			ToID:             l.edge.ToID,
			ToName:           snap.NodeName(l.edge.ToID),
			Mode:             l.edge.Mode,
			RouteName:        l.edge.RouteName,
			DurationSeconds:  l.edge.DurationSeconds,
			PerceivedMinutes: l.cost,
		}
		if l.edge.Mode == models.ModeWalk {
			step.Grade = Grade(from, to)
		}
		steps[depth] = step
	}

	return &models.RouteResult{
		Strategy:              strategy.String(),
		TotalPerceivedMinutes: goal.g,
		Steps:                 steps,
		Expanded:              expanded,
		GraphVersion:          snap.Version(),
	}
}

// label is a search state. Paths share prefixes through parent pointers
// and are never modified once pushed.
type label struct {
	node   string
	g      float64
	f      float64
	parent *label
	edge   models.Edge // edge from parent to node
	cost   float64     // perceived cost of edge
	index  int         // for heap
}

// PriorityQueue implements heap.Interface for the A* open set.
// Ties on f go to the lower g, then to the smaller node id.
type PriorityQueue []*label

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	if pq[i].g != pq[j].g {
		return pq[i].g < pq[j].g
	}
	return pq[i].node < pq[j].node
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *PriorityQueue) Push(x interface{}) {
	n := len(*pq)
	l := x.(*label)
	l.index = n
	*pq = append(*pq, l)
}

func (pq *PriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	l := old[n-1]
	old[n-1] = nil
	l.index = -1
	*pq = old[0 : n-1]
	return l
}

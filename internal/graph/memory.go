package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/passbi/transit_router/internal/models"
)

// ErrNodeNotFound is returned when an identifier matches no stop by id or name
var ErrNodeNotFound = errors.New("node not found")

// Snapshot holds the entire routing graph in memory for fast A* lookups.
// A Snapshot is never mutated after NewSnapshot returns, so any number of
// searches may read it concurrently without locking.
type Snapshot struct {
	nodes     map[string]models.Node   // stopID -> Node
	edges     map[string][]models.Edge // fromStopID -> []Edge, sorted by ToID
	names     []nameEntry              // sorted by (lowercased name, id)
	edgeCount int
	version   string
	loadedAt  time.Time
}

type nameEntry struct {
	lower string
	id    string
}

type pairKey struct {
	from, to string
}

// NewSnapshot validates nodes and edges and freezes them into a Snapshot.
// Parallel edges for the same ordered pair collapse to the one with the
// smallest duration.
func NewSnapshot(nodes []models.Node, edges []models.Edge) (*Snapshot, error) {
	s := &Snapshot{
		nodes:    make(map[string]models.Node, len(nodes)),
		edges:    make(map[string][]models.Edge),
		version:  uuid.NewString(),
		loadedAt: time.Now(),
	}

	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node with empty id")
		}
		if _, dup := s.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		s.nodes[n.ID] = n
	}

	best := make(map[pairKey]models.Edge, len(edges))
	for _, e := range edges {
		if _, ok := s.nodes[e.FromID]; !ok {
			return nil, fmt.Errorf("edge %s->%s: unknown from node", e.FromID, e.ToID)
		}
		if _, ok := s.nodes[e.ToID]; !ok {
			return nil, fmt.Errorf("edge %s->%s: unknown to node", e.FromID, e.ToID)
		}
		if e.DurationSeconds < 0 || math.IsNaN(e.DurationSeconds) || math.IsInf(e.DurationSeconds, 0) {
			return nil, fmt.Errorf("edge %s->%s: invalid duration %v", e.FromID, e.ToID, e.DurationSeconds)
		}
		e.Mode = models.ParseMode(string(e.Mode))

		key := pairKey{e.FromID, e.ToID}
		if cur, ok := best[key]; ok && cur.DurationSeconds <= e.DurationSeconds {
			continue
		}
		best[key] = e
	}

	for _, e := range best {
		s.edges[e.FromID] = append(s.edges[e.FromID], e)
	}
	for from := range s.edges {
		out := s.edges[from]
		sort.Slice(out, func(i, j int) bool { return out[i].ToID < out[j].ToID })
	}
	s.edgeCount = len(best)

	s.names = make([]nameEntry, 0, len(s.nodes))
	for id, n := range s.nodes {
		if strings.TrimSpace(n.Name) == "" {
			continue
		}
		s.names = append(s.names, nameEntry{lower: strings.ToLower(n.Name), id: id})
	}
	sort.Slice(s.names, func(i, j int) bool {
		if s.names[i].lower != s.names[j].lower {
			return s.names[i].lower < s.names[j].lower
		}
		return s.names[i].id < s.names[j].id
	})

	return s, nil
}

// Version identifies this snapshot; every load produces a new one
func (s *Snapshot) Version() string { return s.version }

// LoadedAt returns when the snapshot was built
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// NodeCount returns the number of stops
func (s *Snapshot) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of directed edges
func (s *Snapshot) EdgeCount() int { return s.edgeCount }

// HasNode reports whether a stop with this exact id exists
func (s *Snapshot) HasNode(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// GetNode returns a node by ID
func (s *Snapshot) GetNode(id string) (models.Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// NodeName returns the display name of a stop, or the placeholder
func (s *Snapshot) NodeName(id string) string {
	n, ok := s.nodes[id]
	if !ok {
		return models.UnknownStopName
	}
	return n.DisplayName()
}

// NodePosition returns (lat, lon), or (0,0) for unknown stops
func (s *Snapshot) NodePosition(id string) (float64, float64) {
	n, ok := s.nodes[id]
	if !ok {
		return 0, 0
	}
	return n.Lat, n.Lon
}

// GetEdges returns outgoing edges for a node ordered by destination id.
// The returned slice must not be modified.
func (s *Snapshot) GetEdges(id string) []models.Edge {
	return s.edges[id]
}

// Nodes returns all stops sorted by id
func (s *Snapshot) Nodes() []models.Node {
	out := make([]models.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges sorted by (from, to)
func (s *Snapshot) Edges() []models.Edge {
	out := make([]models.Edge, 0, s.edgeCount)
	for _, n := range s.Nodes() {
		out = append(out, s.edges[n.ID]...)
	}
	return out
}

// Reachable runs a breadth-first search over the directed edges
func (s *Snapshot) Reachable(from, to string) bool {
	if !s.HasNode(from) || !s.HasNode(to) {
		return false
	}
	if from == to {
		return true
	}

	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, e := range s.edges[u] {
			if e.ToID == to {
				return true
			}
			if !seen[e.ToID] {
				seen[e.ToID] = true
				queue = append(queue, e.ToID)
			}
		}
	}
	return false
}

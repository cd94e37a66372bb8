package graph

import (
	"fmt"
	"strings"

	"github.com/passbi/transit_router/internal/models"
)

// Resolve maps a caller-supplied identifier to a stop id: an exact id match
// first, then a case-insensitive substring match on stop names.
func (s *Snapshot) Resolve(identifier string) (string, error) {
	if s.HasNode(identifier) {
		return identifier, nil
	}
	if id, ok := s.FindByName(identifier); ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %q", ErrNodeNotFound, identifier)
}

// FindByName returns the first stop, in (lowercased name, id) order, whose
// name contains the query
func (s *Snapshot) FindByName(query string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", false
	}
	for _, e := range s.names {
		if strings.Contains(e.lower, q) {
			return e.id, true
		}
	}
	return "", false
}

// SearchByName returns up to limit stops whose name contains the query,
// in the same order FindByName uses
func (s *Snapshot) SearchByName(query string, limit int) []models.Node {
	q := strings.ToLower(strings.TrimSpace(query))
	result := []models.Node{}
	if q == "" || limit <= 0 {
		return result
	}
	for _, e := range s.names {
		if !strings.Contains(e.lower, q) {
			continue
		}
		result = append(result, s.nodes[e.id])
		if len(result) >= limit {
			break
		}
	}
	return result
}

package routing

import (
	"errors"
	"fmt"

	"github.com/passbi/transit_router/internal/graph"
)

var (
	ErrNodeNotFound    = graph.ErrNodeNotFound
	ErrNoRouteFound    = errors.New("no route found")
	ErrInvalidStrategy = errors.New("invalid strategy")
	ErrGraphNotLoaded  = errors.New("graph not loaded")
)

// Reason explains why a search ended without a route
type Reason string

const (
	// ReasonExhausted: every reachable node was expanded
	ReasonExhausted Reason = "exhausted"
	// ReasonBreaker: the expansion limit tripped while the goal was still reachable
	ReasonBreaker Reason = "circuit_breaker"
	// ReasonUnreachable: the expansion limit tripped and the goal is not reachable
	ReasonUnreachable Reason = "unreachable"
	// ReasonCancelled: the context was cancelled or timed out
	ReasonCancelled Reason = "cancelled"
)

// NoRouteError is returned for every search that ends without a route.
// errors.Is(err, ErrNoRouteFound) holds for all reasons.
type NoRouteError struct {
	From     string
	To       string
	Reason   Reason
	Expanded int
	Cause    error
}

func (e *NoRouteError) Error() string {
	msg := fmt.Sprintf("no route found from %s to %s (%s after %d expansions)", e.From, e.To, e.Reason, e.Expanded)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NoRouteError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrNoRouteFound, e.Cause}
	}
	return []error{ErrNoRouteFound}
}

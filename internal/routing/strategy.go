package routing

import (
	"fmt"
	"strings"

	"github.com/passbi/transit_router/internal/models"
)

// Strategy selects how edge durations are turned into perceived cost.
// New strategies are added here and in modeFactors.
type Strategy int

const (
	// Fastest minimizes traffic-adjusted travel time
	Fastest Strategy = iota
	// Comfort favours rail-like modes and penalizes buses
	Comfort
	// Economic makes walking look cheaper
	Economic
)

var strategyNames = [...]string{
	Fastest:  "fastest",
	Comfort:  "comfort",
	Economic: "economic",
}

// modeFactors multiply the Fastest cost per mode; absent modes use 1.0
var modeFactors = [...]map[models.Mode]float64{
	Fastest: {},
	Comfort: {
		models.ModeMetro:   0.8,
		models.ModeRail:    0.8,
		models.ModeTram:    0.8,
		models.ModeBus:     1.2,
		models.ModeMinibus: 1.2,
	},
	Economic: {
		models.ModeWalk: 0.5,
	},
}

func (s Strategy) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// Valid reports whether s is one of the defined strategies
func (s Strategy) Valid() bool {
	return s >= Fastest && s <= Economic
}

// ModeFactor returns the multiplier s applies on top of the Fastest cost
func (s Strategy) ModeFactor(m models.Mode) float64 {
	if !s.Valid() {
		return 1.0
	}
	if f, ok := modeFactors[s][m]; ok {
		return f
	}
	return 1.0
}

// MarshalText implements encoding.TextMarshaler
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStrategy, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStrategy returns a strategy by name
func ParseStrategy(name string) (Strategy, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range strategyNames {
		if n == candidate {
			return Strategy(i), nil
		}
	}
	return Fastest, fmt.Errorf("%w: %q", ErrInvalidStrategy, name)
}

// StrategyOrDefault returns a strategy by name, falling back to Fastest
func StrategyOrDefault(name string) Strategy {
	s, err := ParseStrategy(name)
	if err != nil {
		return Fastest
	}
	return s
}

// AllStrategies returns all available strategies
func AllStrategies() []Strategy {
	return []Strategy{Fastest, Comfort, Economic}
}

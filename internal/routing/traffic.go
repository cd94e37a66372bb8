package routing

import "fmt"

// TrafficPredictor maps an hour of day (0-23) to a congestion multiplier
// applied to road-bound edges
type TrafficPredictor func(hour int) float64

// TrafficBand applies Multiplier to every hour in [From, To]
type TrafficBand struct {
	From       int     `yaml:"from" validate:"min=0,max=23"`
	To         int     `yaml:"to" validate:"min=0,max=23,gtefield=From"`
	Multiplier float64 `yaml:"multiplier" validate:"gt=0"`
}

// TrafficTable is a lookup-table predictor. The first band containing the
// hour wins; hours outside every band use Default.
type TrafficTable struct {
	Bands   []TrafficBand `yaml:"bands" validate:"dive"`
	Default float64       `yaml:"default" validate:"gt=0"`
}

// DefaultTrafficTable returns the rush-hour and night bands
func DefaultTrafficTable() TrafficTable {
	return TrafficTable{
		Bands: []TrafficBand{
			{From: 7, To: 9, Multiplier: 1.5},
			{From: 17, To: 20, Multiplier: 1.5},
			{From: 0, To: 5, Multiplier: 0.5},
		},
		Default: 1.0,
	}
}

// Multiplier returns the multiplier for hour
func (t TrafficTable) Multiplier(hour int) float64 {
	for _, b := range t.Bands {
		if hour >= b.From && hour <= b.To {
			return b.Multiplier
		}
	}
	return t.Default
}

// Predictor adapts the table to a TrafficPredictor
func (t TrafficTable) Predictor() TrafficPredictor {
	return t.Multiplier
}

// Validate checks the table without a validator instance
func (t TrafficTable) Validate() error {
	if !(t.Default > 0) {
		return fmt.Errorf("traffic default multiplier must be positive, got %v", t.Default)
	}
	for i, b := range t.Bands {
		if b.From < 0 || b.To > 23 || b.From > b.To {
			return fmt.Errorf("traffic band %d: invalid hour range [%d, %d]", i, b.From, b.To)
		}
		if !(b.Multiplier > 0) {
			return fmt.Errorf("traffic band %d: multiplier must be positive, got %v", i, b.Multiplier)
		}
	}
	return nil
}

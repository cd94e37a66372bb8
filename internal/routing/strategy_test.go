package routing

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/passbi/transit_router/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input    string
		expected Strategy
		hasError bool
	}{
		{"fastest", Fastest, false},
		{"Comfort", Comfort, false},
		{" ECONOMIC ", Economic, false},
		{"cheapest", Fastest, true},
		{"", Fastest, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, err := ParseStrategy(tt.input)
			if tt.hasError {
				assert.True(t, errors.Is(err, ErrInvalidStrategy))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, s)
		})
	}
}

func TestStrategyOrDefault(t *testing.T) {
	assert.Equal(t, Comfort, StrategyOrDefault("comfort"))
	assert.Equal(t, Fastest, StrategyOrDefault("luxury"))
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "fastest", Fastest.String())
	assert.Equal(t, "comfort", Comfort.String())
	assert.Equal(t, "economic", Economic.String())
	assert.Equal(t, "Strategy(7)", Strategy(7).String())
	assert.False(t, Strategy(-1).Valid())
}

func TestAllStrategies(t *testing.T) {
	all := AllStrategies()
	require.Len(t, all, 3)
	for _, s := range all {
		assert.True(t, s.Valid())
	}
}

func TestStrategyText(t *testing.T) {
	var body struct {
		Strategy Strategy `json:"strategy"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"strategy":"economic"}`), &body))
	assert.Equal(t, Economic, body.Strategy)

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"strategy":"economic"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"strategy":"scenic"}`), &body))
}

func TestModeFactor(t *testing.T) {
	tests := []struct {
		strategy Strategy
		mode     models.Mode
		expected float64
	}{
		{Fastest, models.ModeBus, 1.0},
		{Fastest, models.ModeWalk, 1.0},
		{Comfort, models.ModeMetro, 0.8},
		{Comfort, models.ModeRail, 0.8},
		{Comfort, models.ModeTram, 0.8},
		{Comfort, models.ModeBus, 1.2},
		{Comfort, models.ModeMinibus, 1.2},
		{Comfort, models.ModeFerry, 1.0},
		{Economic, models.ModeWalk, 0.5},
		{Economic, models.ModeTaxi, 1.0},
		{Strategy(42), models.ModeWalk, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.strategy.String()+"/"+string(tt.mode), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.strategy.ModeFactor(tt.mode))
		})
	}
}

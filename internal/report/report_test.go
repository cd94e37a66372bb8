package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passbi/transit_router/internal/graph"
	"github.com/passbi/transit_router/internal/models"
	"github.com/passbi/transit_router/internal/routing"
)

func testEngine(t *testing.T) *routing.Engine {
	t.Helper()

	snap, err := graph.NewSnapshot([]models.Node{
		{ID: "A", Name: "Kadikoy"},
		{ID: "B", Name: "Uskudar"},
		{ID: "C", Name: "Besiktas"},
		{ID: "Z", Name: "Nowhere"},
	}, []models.Edge{
		{FromID: "A", ToID: "B", Mode: models.ModeBus, RouteName: "14", DurationSeconds: 620},
		{FromID: "B", ToID: "C", Mode: models.ModeFerry, RouteName: "F1", DurationSeconds: 900},
		{FromID: "A", ToID: "C", Mode: models.ModeWalk, DurationSeconds: 2400},
	})
	require.NoError(t, err)

	noon := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	return routing.NewEngine(graph.NewStore(snap), routing.Options{Now: func() time.Time { return noon }})
}

func TestBuild(t *testing.T) {
	rep, err := Build(context.Background(), testEngine(t), "A", "Besiktas", "")
	require.NoError(t, err)

	assert.Equal(t, "A", rep.Meta.StartID)
	assert.Equal(t, "Besiktas", rep.Meta.EndID)
	assert.Equal(t, "12:00", rep.Meta.Departure)
	assert.NotEmpty(t, rep.Meta.GraphVersion)

	require.Len(t, rep.Routes, 3)

	fastest := rep.Routes[0]
	assert.Equal(t, "fastest", fastest.Type)
	assert.Equal(t, "Minimizes time", fastest.Description)
	// 620s + 900s = 25.33 minutes
	assert.Equal(t, 25.3, fastest.TotalDuration)
	assert.Equal(t, []Segment{
		{StopID: "A", StopName: "Kadikoy", Type: "bus", Line: "14"},
		{StopID: "B", StopName: "Uskudar", Type: "ferry", Line: "F1"},
		{StopID: "C", StopName: "Besiktas", Type: FinishType, Line: FinishLine},
	}, fastest.Segments)

	// 40 minutes on foot count as 20 under economic
	economic := rep.Routes[2]
	assert.Equal(t, "economic", economic.Type)
	assert.Equal(t, 20.0, economic.TotalDuration)
	require.Len(t, economic.Segments, 2)
	assert.Equal(t, "walk", economic.Segments[0].Type)
	assert.Equal(t, FinishType, economic.Segments[1].Type)
}

func TestBuildWithoutRoutes(t *testing.T) {
	rep, err := Build(context.Background(), testEngine(t), "C", "A", "08:30")
	require.NoError(t, err)

	assert.Equal(t, "08:30", rep.Meta.Departure)
	assert.Empty(t, rep.Routes)

	out, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"routes":[]`)
}

func TestBuildUnknownStop(t *testing.T) {
	_, err := Build(context.Background(), testEngine(t), "A", "Galata", "")
	assert.True(t, errors.Is(err, routing.ErrNodeNotFound))

	_, err = Build(context.Background(), routing.NewEngine(graph.NewStore(nil), routing.Options{}), "A", "B", "")
	assert.True(t, errors.Is(err, routing.ErrGraphNotLoaded))
}

package planner

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icare0/Do-it-repo-sub000/internal/clock"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
	"github.com/icare0/Do-it-repo-sub000/pkg/kv"
)

var home = geo.Point{Latitude: 60.1699, Longitude: 24.9384}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticWeather struct{ weather types.Weather }

func (s staticWeather) Current(ctx context.Context, at geo.Point) (types.Weather, error) {
	return s.weather, nil
}

type panickingLocation struct{}

func (panickingLocation) Current(ctx context.Context) (geo.Point, error) {
	panic("gps driver crashed")
}

func at(clk *clock.Fixed, hour, minute int) *time.Time {
	now := clk.Now()
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	return &t
}

func newTestOrchestrator(clk *clock.Fixed, deps Dependencies) *Orchestrator {
	deps.Clock = clk
	deps.Home = home
	if deps.Store == nil {
		deps.Store = kv.NewMemoryStoreWithClock(clk.Now)
	}
	return New(DefaultSettings(), deps, Tuning{}, testLogger())
}

func TestAnalyzeTurnsConflictsIntoSuggestions(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 7, 0, 0, 0, time.UTC))
	o := newTestOrchestrator(clk, Dependencies{})

	tasks := []types.Task{
		{ID: "a", Title: "Write report", StartDate: at(clk, 9, 0), Duration: 60},
		{ID: "b", Title: "Team sync", StartDate: at(clk, 9, 30), Duration: 60},
	}

	result := o.AnalyzeAndOptimize(context.Background(), tasks, Options{SkipRecommendations: true})
	assert.Empty(t, result.FailedSteps)
	require.Len(t, result.Conflicts, 1)

	conflict := result.Conflicts[0]
	require.Len(t, result.Suggestions, 1)
	s := result.Suggestions[0]
	assert.Equal(t, types.StableID(string(types.SuggestionReschedule), conflict.ID), s.ID)
	assert.Equal(t, types.SuggestionReschedule, s.Type)
	assert.Equal(t, conflict.Severity, s.Priority)
	assert.Equal(t, []string{"b"}, s.TaskIDs)
	assert.Equal(t, 1, s.Impact.ConflictsResolved)
	assert.Equal(t, conflict.SuggestedResolution.Confidence, s.Confidence)
	require.Len(t, s.ProposedChanges, 1)
	assert.True(t, s.ProposedChanges[0].StartDate.Equal(*at(clk, 10, 0)))

	assert.Nil(t, result.Recommendations)
}

func TestAnalyzeReschedulesOutdoorTasksInStorm(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 7, 0, 0, 0, time.UTC))
	o := newTestOrchestrator(clk, Dependencies{
		Weather: staticWeather{weather: types.Weather{Condition: types.WeatherStorm, Source: "test"}},
	})

	run := at(clk, 17, 0)
	tomorrow := at(clk, 12, 0).AddDate(0, 0, 1)
	tasks := []types.Task{
		{ID: "run", Title: "Evening run", Category: "sport", StartDate: run, Duration: 45},
		{ID: "later", Title: "Tennis", Category: "sport", StartDate: &tomorrow, Duration: 60},
		{ID: "desk", Title: "Taxes", Category: "admin", StartDate: at(clk, 9, 0), Duration: 60},
	}

	result := o.AnalyzeAndOptimize(context.Background(), tasks, Options{SkipRecommendations: true, SkipHabits: true})
	assert.Equal(t, types.WeatherStorm, result.Context.Weather.Condition)
	require.Len(t, result.Suggestions, 1)

	s := result.Suggestions[0]
	assert.Equal(t, []string{"run"}, s.TaskIDs)
	assert.Equal(t, types.SeverityHigh, s.Priority)
	assert.InDelta(t, 70, s.Confidence, 1e-9)
	assert.True(t, s.ProposedChanges[0].StartDate.Equal(run.Add(24*time.Hour)))
	assert.Nil(t, result.Patterns)
}

func TestAnalyzeRainIsMediumPriority(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 7, 0, 0, 0, time.UTC))
	o := newTestOrchestrator(clk, Dependencies{
		Weather: staticWeather{weather: types.Weather{Condition: types.WeatherRain}},
	})

	tasks := []types.Task{{ID: "g", Title: "Weed the beds", Category: "gardening", StartDate: at(clk, 11, 0)}}
	result := o.AnalyzeAndOptimize(context.Background(), tasks, Options{SkipRecommendations: true})
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, types.SeverityMedium, result.Suggestions[0].Priority)
}

func TestAnalyzeProposesRouteReorder(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 7, 0, 0, 0, time.UTC))
	o := newTestOrchestrator(clk, Dependencies{})

	near := &types.Location{Latitude: 60.1710, Longitude: 24.9400}
	far := &types.Location{Latitude: 60.2500, Longitude: 24.9400}
	nearAgain := &types.Location{Latitude: 60.1720, Longitude: 24.9410}

	tasks := []types.Task{
		{ID: "1", Title: "Pharmacy pickup", Location: near},
		{ID: "2", Title: "Hardware store", Location: far},
		{ID: "3", Title: "Post office", Location: nearAgain},
	}

	result := o.AnalyzeAndOptimize(context.Background(), tasks, Options{SkipRecommendations: true})
	require.Len(t, result.Suggestions, 1)
	s := result.Suggestions[0]
	assert.Equal(t, types.SuggestionReorder, s.Type)
	assert.Equal(t, []string{"1", "3", "2"}, s.TaskIDs)

	skipped := o.AnalyzeAndOptimize(context.Background(), tasks, Options{SkipRecommendations: true, SkipRoutes: true})
	assert.Empty(t, skipped.Suggestions)
}

func TestAnalyzeSurvivesPanickingStep(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 7, 0, 0, 0, time.UTC))
	o := newTestOrchestrator(clk, Dependencies{Location: panickingLocation{}})

	tasks := []types.Task{
		{ID: "a", Title: "Write report", StartDate: at(clk, 9, 0), Duration: 60},
		{ID: "b", Title: "Team sync", StartDate: at(clk, 9, 30), Duration: 60},
	}

	result := o.AnalyzeAndOptimize(context.Background(), tasks, Options{})
	assert.Contains(t, result.FailedSteps, StepContext)
	assert.Equal(t, clk.Now(), result.Context.CurrentTime)
	assert.Equal(t, types.WeatherCloudy, result.Context.Weather.Condition)
	assert.Len(t, result.Conflicts, 1)
	assert.NotEmpty(t, result.Recommendations)
}

func TestDismissHidesRecommendation(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 7, 0, 0, 0, time.UTC))
	o := newTestOrchestrator(clk, Dependencies{})
	ctx := context.Background()

	tasks := []types.Task{{ID: "x", Title: "Call"}}
	first := o.AnalyzeAndOptimize(ctx, tasks, Options{})
	require.NotEmpty(t, first.Recommendations)

	target := first.Recommendations[0].ID
	require.NoError(t, o.Dismiss(ctx, target))

	again := o.AnalyzeAndOptimize(ctx, tasks, Options{})
	for _, r := range again.Recommendations {
		assert.NotEqual(t, target, r.ID)
	}
}

func TestFindBestTimeSlotStaysInFuture(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 13, 10, 0, 0, time.UTC))
	o := newTestOrchestrator(clk, Dependencies{})

	slot := o.FindBestTimeSlot(context.Background(), types.Task{ID: "t", Title: "Review", Duration: 30}, nil)
	if slot != nil {
		assert.False(t, slot.Start.Before(clk.Now()))
		assert.Equal(t, 30, slot.Duration)
	}
}

func TestOptimizeRoutesPutsStopsFirst(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 7, 0, 0, 0, time.UTC))
	o := newTestOrchestrator(clk, Dependencies{})

	tasks := []types.Task{
		{ID: "plain", Title: "Think"},
		{ID: "far", Title: "Far", Location: &types.Location{Latitude: 60.30, Longitude: 24.94}},
		{ID: "near", Title: "Near", Location: &types.Location{Latitude: 60.18, Longitude: 24.94}},
	}

	ordered := o.OptimizeRoutes(context.Background(), tasks)
	require.Len(t, ordered, 3)
	assert.Equal(t, "near", ordered[0].ID)
	assert.Equal(t, "far", ordered[1].ID)
	assert.Equal(t, "plain", ordered[2].ID)
}

func TestRankSuggestions(t *testing.T) {
	s := []types.Suggestion{
		{ID: "low", Priority: types.SeverityLow, Confidence: 99},
		{ID: "high-weak", Priority: types.SeverityHigh, Confidence: 40},
		{ID: "critical", Priority: types.SeverityCritical, Confidence: 10},
		{ID: "high-strong", Priority: types.SeverityHigh, Confidence: 90},
	}
	RankSuggestions(s)

	var ids []string
	for _, x := range s {
		ids = append(ids, x.ID)
	}
	assert.Equal(t, []string{"critical", "high-strong", "high-weak", "low"}, ids)
}

func TestRouteStopsOrder(t *testing.T) {
	now := time.Date(2025, 5, 6, 7, 0, 0, 0, time.UTC)
	loc := &types.Location{Latitude: 60, Longitude: 25}
	late := now.Add(5 * time.Hour)
	early := now.Add(2 * time.Hour)
	nextWeek := now.AddDate(0, 0, 7)

	tasks := []types.Task{
		{ID: "undated", Location: loc},
		{ID: "late", Location: loc, StartDate: &late},
		{ID: "next-week", Location: loc, StartDate: &nextWeek},
		{ID: "done", Location: loc, Completed: true},
		{ID: "early", Location: loc, StartDate: &early},
		{ID: "nowhere", StartDate: &early},
	}

	var ids []string
	for _, t := range routeStops(tasks, types.OptimizationContext{CurrentTime: now}) {
		ids = append(ids, t.ID)
	}
	assert.Equal(t, []string{"early", "late", "undated"}, ids)
}

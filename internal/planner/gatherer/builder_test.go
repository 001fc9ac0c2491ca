package gatherer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icare0/Do-it-repo-sub000/internal/clock"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
)

var home = geo.Point{Latitude: 60.1695, Longitude: 24.9354}

type fakeLocation struct {
	point geo.Point
	err   error
}

func (f *fakeLocation) Current(ctx context.Context) (geo.Point, error) {
	return f.point, f.err
}

type fakeWeather struct {
	calls   atomic.Int32
	weather types.Weather
	err     error
}

func (f *fakeWeather) Current(ctx context.Context, at geo.Point) (types.Weather, error) {
	f.calls.Add(1)
	return f.weather, f.err
}

type fakeCalendar struct {
	events   []types.CalendarEvent
	err      error
	from, to time.Time
}

func (f *fakeCalendar) Events(ctx context.Context, from, to time.Time) ([]types.CalendarEvent, error) {
	f.from, f.to = from, to
	return f.events, f.err
}

func newTestBuilder(loc LocationProvider, w WeatherProvider, cal CalendarSource, clk clock.Clock) *Builder {
	return NewBuilder(loc, w, cal, clk, home, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBuildGathersContext(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 9, 30, 0, 0, time.UTC))
	loc := &fakeLocation{point: geo.Point{Latitude: 60.17, Longitude: 24.94}}
	weather := &fakeWeather{weather: types.Weather{Temperature: 18, Condition: types.WeatherClear, Source: "test"}}
	event := types.CalendarEvent{ID: "e1", Start: clk.Now(), End: clk.Now().Add(time.Hour)}
	cal := &fakeCalendar{events: []types.CalendarEvent{event}}

	done := clk.Now().Add(-24 * time.Hour)
	tasks := []types.Task{
		{ID: "a", Category: "sport", Completed: true, CompletedAt: &done},
		{ID: "b"},
	}

	b := newTestBuilder(loc, weather, cal, clk)
	octx := b.Build(context.Background(), tasks)

	assert.Equal(t, clk.Now(), octx.CurrentTime)
	assert.Equal(t, loc.point, octx.UserLocation)
	assert.Equal(t, types.WeatherClear, octx.Weather.Condition)
	assert.Equal(t, types.EnergyHigh, octx.UserEnergy)
	require.Len(t, octx.CalendarEvents, 1)
	require.Len(t, octx.TaskHistory, 1)
	assert.Len(t, octx.Tasks, 2)

	assert.Equal(t, time.Date(2025, 5, 6, 0, 0, 0, 0, time.UTC), cal.from)
	assert.Equal(t, time.Date(2025, 5, 7, 0, 0, 0, 0, time.UTC), cal.to)

	// Helsinki in May has a normal sunrise/sunset
	assert.True(t, octx.Daylight.Sunrise.Before(octx.Daylight.Sunset))
	assert.True(t, octx.Daylight.Contains(clk.Now()))
}

func TestBuildCacheValidity(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC))
	loc := &fakeLocation{point: home}
	weather := &fakeWeather{weather: types.Weather{Condition: types.WeatherClear}}
	b := newTestBuilder(loc, weather, nil, clk)
	ctx := context.Background()

	first := b.Build(ctx, nil)
	assert.EqualValues(t, 1, weather.calls.Load())

	// Young and close: cache hit
	clk.Advance(10 * time.Minute)
	loc.point = geo.Point{Latitude: home.Latitude + 0.002, Longitude: home.Longitude} // ~220 m
	hit := b.Build(ctx, nil)
	assert.EqualValues(t, 1, weather.calls.Load())
	assert.Equal(t, first.CapturedAt, hit.CapturedAt)
	assert.Equal(t, clk.Now(), hit.CurrentTime)

	// Moved more than 500 m: miss
	loc.point = geo.Point{Latitude: home.Latitude + 0.01, Longitude: home.Longitude} // ~1.1 km
	b.Build(ctx, nil)
	assert.EqualValues(t, 2, weather.calls.Load())

	// Too old: miss
	clk.Advance(15 * time.Minute)
	b.Build(ctx, nil)
	assert.EqualValues(t, 3, weather.calls.Load())
}

func TestCacheHitRefreshesPerCallFields(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC))
	weather := &fakeWeather{weather: types.Weather{Condition: types.WeatherRain}}
	b := newTestBuilder(&fakeLocation{point: home}, weather, nil, clk)
	ctx := context.Background()

	first := b.Build(ctx, []types.Task{{ID: "a"}})

	// The snapshot changes underneath but the cache is still valid
	weather.weather = types.Weather{Condition: types.WeatherClear}
	clk.Advance(5 * time.Minute)
	done := clk.Now().Add(-time.Hour)
	tasks := []types.Task{{ID: "b", Category: "work", Completed: true, CompletedAt: &done}}

	hit := b.Build(ctx, tasks)
	assert.EqualValues(t, 1, weather.calls.Load())
	assert.Equal(t, first.CapturedAt, hit.CapturedAt)
	assert.Equal(t, types.WeatherRain, hit.Weather.Condition)
	assert.Equal(t, first.UserEnergy, hit.UserEnergy)

	assert.Equal(t, clk.Now(), hit.CurrentTime)
	assert.Equal(t, tasks, hit.Tasks)
	require.Len(t, hit.TaskHistory, 1)
	assert.Equal(t, "b", hit.TaskHistory[0].TaskID)

	cached, ok := b.Cached()
	require.True(t, ok)
	assert.Equal(t, first.CurrentTime, cached.CurrentTime, "the stored snapshot is not mutated by a hit")
}

func TestInvalidateAndRefresh(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC))
	weather := &fakeWeather{weather: types.Weather{Condition: types.WeatherRain}}
	b := newTestBuilder(&fakeLocation{point: home}, weather, nil, clk)
	ctx := context.Background()

	_, ok := b.Cached()
	assert.False(t, ok)

	b.Build(ctx, nil)
	_, ok = b.Cached()
	assert.True(t, ok)

	b.Invalidate()
	_, ok = b.Cached()
	assert.False(t, ok)

	b.Build(ctx, nil)
	b.Refresh(ctx, nil)
	assert.EqualValues(t, 3, weather.calls.Load())
}

func TestBuildFallbacks(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 19, 0, 0, 0, time.UTC))
	loc := &fakeLocation{err: errors.New("no gps")}
	weather := &fakeWeather{err: errors.New("offline")}
	cal := &fakeCalendar{err: errors.New("db down")}

	b := newTestBuilder(loc, weather, cal, clk)
	octx := b.Build(context.Background(), nil)

	assert.Equal(t, home, octx.UserLocation)
	assert.Equal(t, FallbackWeather, octx.Weather)
	assert.Empty(t, octx.CalendarEvents)
	assert.Equal(t, types.EnergyLow, octx.UserEnergy)
}

func TestBuildFallsBackToLastFix(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC))
	fix := geo.Point{Latitude: 60.2, Longitude: 24.8}
	loc := &fakeLocation{point: fix}
	b := newTestBuilder(loc, nil, nil, clk)

	b.Build(context.Background(), nil)

	loc.err = errors.New("lost signal")
	octx := b.Refresh(context.Background(), nil)
	assert.Equal(t, fix, octx.UserLocation)
	assert.Equal(t, FallbackWeather, octx.Weather)
}

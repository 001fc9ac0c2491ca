// Package gatherer assembles the OptimizationContext a planning pass is scored against.
package gatherer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sixdouglas/suncalc"
	"golang.org/x/sync/errgroup"

	"github.com/icare0/Do-it-repo-sub000/internal/clock"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
)

// LocationProvider returns the device's current position
type LocationProvider interface {
	Current(ctx context.Context) (geo.Point, error)
}

// WeatherProvider returns current conditions at a position
type WeatherProvider interface {
	Current(ctx context.Context, at geo.Point) (types.Weather, error)
}

// CalendarSource returns calendar events intersecting [from, to)
type CalendarSource interface {
	Events(ctx context.Context, from, to time.Time) ([]types.CalendarEvent, error)
}

// FallbackWeather is the neutral estimate used when no provider answers
var FallbackWeather = types.Weather{
	Temperature: 15,
	Condition:   types.WeatherCloudy,
	Source:      "fallback",
}

// Builder builds and caches the optimization context. A cached context is
// reused while it is younger than MaxAge and the device has moved less than
// MaxDistanceMeters since capture.
type Builder struct {
	MaxAge            time.Duration
	MaxDistanceMeters float64

	location LocationProvider
	weather  WeatherProvider
	calendar CalendarSource
	clock    clock.Clock
	home     geo.Point
	logger   *slog.Logger

	mu      sync.Mutex
	cached  *types.OptimizationContext
	lastFix *geo.Point
}

// NewBuilder creates a context builder. Any provider may be nil; home is
// the position used when no fix has ever been obtained.
func NewBuilder(location LocationProvider, weather WeatherProvider, calendar CalendarSource, clk clock.Clock, home geo.Point, logger *slog.Logger) *Builder {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Builder{
		MaxAge:            15 * time.Minute,
		MaxDistanceMeters: 500,
		location:          location,
		weather:           weather,
		calendar:          calendar,
		clock:             clk,
		home:              home,
		logger:            logger.With("component", "context_builder"),
	}
}

// Build returns the context for tasks, reusing the cached snapshot when it
// is still valid. Collaborator failures degrade to fallbacks; Build never fails.
//
// The location is resolved before the fan-out because the cache check and
// the weather query both need it; only weather and calendar run
// concurrently. A cache hit keeps CapturedAt, location, weather, calendar,
// energy and daylight from the snapshot but replaces CurrentTime, Tasks and
// TaskHistory with this call's values.
func (b *Builder) Build(ctx context.Context, tasks []types.Task) types.OptimizationContext {
	now := b.clock.Now()
	position := b.currentPosition(ctx)

	b.mu.Lock()
	if b.cached != nil && b.validLocked(now, position) {
		octx := *b.cached
		b.mu.Unlock()

		b.logger.Debug("Context cache hit",
			"age", now.Sub(octx.CapturedAt).Round(time.Second))

		octx.CurrentTime = now
		octx.Tasks = tasks
		octx.TaskHistory = types.CompletionsFromTasks(tasks)
		return octx
	}
	b.mu.Unlock()

	octx := b.gather(ctx, now, position, tasks)

	b.mu.Lock()
	snapshot := octx
	b.cached = &snapshot
	b.mu.Unlock()

	return octx
}

// Refresh drops the cache and rebuilds
func (b *Builder) Refresh(ctx context.Context, tasks []types.Task) types.OptimizationContext {
	b.Invalidate()
	return b.Build(ctx, tasks)
}

// Invalidate drops the cached context
func (b *Builder) Invalidate() {
	b.mu.Lock()
	b.cached = nil
	b.mu.Unlock()
	b.logger.Debug("Context cache invalidated")
}

// Cached returns the cached context, if any
func (b *Builder) Cached() (types.OptimizationContext, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cached == nil {
		return types.OptimizationContext{}, false
	}
	return *b.cached, true
}

func (b *Builder) validLocked(now time.Time, position geo.Point) bool {
	if now.Sub(b.cached.CapturedAt) >= b.MaxAge {
		return false
	}
	return geo.Haversine(b.cached.UserLocation, position) < b.MaxDistanceMeters
}

// gather fetches weather and calendar concurrently and assembles a fresh context
func (b *Builder) gather(ctx context.Context, now time.Time, position geo.Point, tasks []types.Task) types.OptimizationContext {
	var (
		weather types.Weather
		events  []types.CalendarEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		weather = b.currentWeather(gctx, position)
		return nil
	})
	g.Go(func() error {
		events = b.dayEvents(gctx, now)
		return nil
	})
	_ = g.Wait() // Fetchers fall back instead of failing

	octx := types.OptimizationContext{
		CurrentTime:    now,
		UserLocation:   position,
		Weather:        weather,
		CalendarEvents: events,
		UserEnergy:     types.EnergyForHour(float64(now.Hour())),
		TaskHistory:    types.CompletionsFromTasks(tasks),
		Tasks:          tasks,
		Daylight:       DaylightAt(now, position),
		CapturedAt:     now,
	}

	b.logger.Info("Context built",
		"location", position.String(),
		"weather", weather.Condition,
		"weather_source", weather.Source,
		"events", len(events),
		"energy", octx.UserEnergy)

	return octx
}

// currentPosition asks the provider, then falls back to the last fix, then home
func (b *Builder) currentPosition(ctx context.Context) geo.Point {
	if b.location != nil {
		p, err := b.location.Current(ctx)
		if err == nil {
			b.mu.Lock()
			b.lastFix = &p
			b.mu.Unlock()
			return p
		}
		b.logger.Debug("Location unavailable, using fallback", "error", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastFix != nil {
		return *b.lastFix
	}
	return b.home
}

func (b *Builder) currentWeather(ctx context.Context, at geo.Point) types.Weather {
	if b.weather == nil {
		return FallbackWeather
	}
	w, err := b.weather.Current(ctx, at)
	if err != nil {
		b.logger.Warn("Weather unavailable, using fallback", "error", err)
		return FallbackWeather
	}
	return w
}

func (b *Builder) dayEvents(ctx context.Context, now time.Time) []types.CalendarEvent {
	if b.calendar == nil {
		return nil
	}
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	events, err := b.calendar.Events(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		b.logger.Warn("Calendar unavailable, assuming no events", "error", err)
		return nil
	}
	return events
}

// DaylightAt computes the sunrise/sunset window for the day of t at p.
// Polar day or night yields a zero window.
func DaylightAt(t time.Time, p geo.Point) types.Daylight {
	times := suncalc.GetTimes(t, p.Latitude, p.Longitude)
	sunrise := times[suncalc.Sunrise].Value
	sunset := times[suncalc.Sunset].Value

	if !sunrise.Before(sunset) || !withinDay(t, sunrise) || !withinDay(t, sunset) {
		return types.Daylight{}
	}
	return types.Daylight{Sunrise: sunrise, Sunset: sunset}
}

func withinDay(ref, t time.Time) bool {
	d := t.Sub(ref)
	return d > -24*time.Hour && d < 24*time.Hour
}

// Package weather provides current conditions for the planner context.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
	"github.com/icare0/Do-it-repo-sub000/pkg/kv"
	"github.com/icare0/Do-it-repo-sub000/pkg/redis"
)

// Provider returns the current weather at a point
type Provider interface {
	Current(ctx context.Context, at geo.Point) (types.Weather, error)
}

// Snapshot is an observation stored in the key-value store by whoever
// receives weather updates
type Snapshot struct {
	Weather    types.Weather `json:"weather"`
	Location   geo.Point     `json:"location"`
	ObservedAt time.Time     `json:"observedAt"`
}

// SnapshotProvider serves the stored observation while it is fresh and
// close enough to the requested point
type SnapshotProvider struct {
	MaxAge            time.Duration
	MaxDistanceMeters float64

	store kv.Store
	now   func() time.Time
}

// NewSnapshotProvider reads snapshots from store. Snapshots older than one
// hour or further than 10 km from the requested point are ignored.
func NewSnapshotProvider(store kv.Store, now func() time.Time) *SnapshotProvider {
	if now == nil {
		now = time.Now
	}
	return &SnapshotProvider{
		MaxAge:            time.Hour,
		MaxDistanceMeters: 10_000,
		store:             store,
		now:               now,
	}
}

// Current returns the stored weather
func (p *SnapshotProvider) Current(ctx context.Context, at geo.Point) (types.Weather, error) {
	var snap Snapshot
	if err := kv.GetJSON(ctx, p.store, redis.WeatherSnapshotKey(), &snap); err != nil {
		return types.Weather{}, fmt.Errorf("failed to read weather snapshot: %w", err)
	}

	if age := p.now().Sub(snap.ObservedAt); age > p.MaxAge {
		return types.Weather{}, fmt.Errorf("weather snapshot is stale (%s old)", age.Round(time.Minute))
	}
	if !snap.Location.IsZero() {
		if d := geo.Haversine(at, snap.Location); d > p.MaxDistanceMeters {
			return types.Weather{}, fmt.Errorf("weather snapshot is %.0f m away", d)
		}
	}

	w := snap.Weather
	if w.Source == "" {
		w.Source = "snapshot"
	}
	return w, nil
}

// SaveSnapshot stores an observation for SnapshotProvider
func SaveSnapshot(ctx context.Context, store kv.Store, snap Snapshot, ttl time.Duration) error {
	if !validCondition(snap.Weather.Condition) {
		return fmt.Errorf("unknown weather condition %q", snap.Weather.Condition)
	}
	if err := kv.SetJSON(ctx, store, redis.WeatherSnapshotKey(), snap, ttl); err != nil {
		return fmt.Errorf("failed to store weather snapshot: %w", err)
	}
	return nil
}

// Chain asks each provider in turn and returns the first answer
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain builds a chain; nil providers are skipped
func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	c := &Chain{logger: logger.With("component", "weather_chain")}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// Current returns the first successful observation, or all errors joined
func (c *Chain) Current(ctx context.Context, at geo.Point) (types.Weather, error) {
	var errs []error
	for i, p := range c.providers {
		w, err := p.Current(ctx, at)
		if err == nil {
			return w, nil
		}
		c.logger.Debug("Weather provider failed", "index", i, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return types.Weather{}, errors.New("no weather providers configured")
	}
	return types.Weather{}, errors.Join(errs...)
}

func validCondition(c types.WeatherCondition) bool {
	switch c {
	case types.WeatherClear, types.WeatherCloudy, types.WeatherRain, types.WeatherSnow, types.WeatherStorm:
		return true
	}
	return false
}

package weather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
	"github.com/icare0/Do-it-repo-sub000/pkg/kv"
)

var helsinki = geo.Point{Latitude: 60.1699, Longitude: 24.9384}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenMeteoClientCurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "60.1699", r.URL.Query().Get("latitude"))
		assert.Equal(t, "24.9384", r.URL.Query().Get("longitude"))
		assert.Contains(t, r.URL.Query().Get("current"), "weather_code")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"time":"2025-05-06T07:00","temperature_2m":11.5,
			"relative_humidity_2m":81,"precipitation":2.4,"weather_code":63,"wind_speed_10m":14.2}}`))
	}))
	defer server.Close()

	client := NewOpenMeteoClient(server.URL, time.Second, testLogger())
	w, err := client.Current(context.Background(), helsinki)
	require.NoError(t, err)

	assert.Equal(t, types.WeatherRain, w.Condition)
	assert.InDelta(t, 11.5, w.Temperature, 1e-9)
	assert.InDelta(t, 81, w.Humidity, 1e-9)
	assert.InDelta(t, 2.4, w.Precipitation, 1e-9)
	assert.InDelta(t, 14.2, w.WindSpeed, 1e-9)
	assert.Equal(t, "open-meteo", w.Source)
}

func TestOpenMeteoClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewOpenMeteoClient(server.URL, time.Second, testLogger()).Current(context.Background(), helsinki)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer garbage.Close()

	_, err = NewOpenMeteoClient(garbage.URL, time.Second, testLogger()).Current(context.Background(), helsinki)
	assert.Error(t, err)
}

func TestConditionForCode(t *testing.T) {
	testCases := []struct {
		code int
		want types.WeatherCondition
	}{
		{0, types.WeatherClear},
		{1, types.WeatherClear},
		{3, types.WeatherCloudy},
		{45, types.WeatherCloudy},
		{53, types.WeatherRain},
		{66, types.WeatherRain},
		{81, types.WeatherRain},
		{73, types.WeatherSnow},
		{86, types.WeatherSnow},
		{95, types.WeatherStorm},
		{99, types.WeatherStorm},
		{42, types.WeatherCloudy},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ConditionForCode(tc.code), "code %d", tc.code)
	}
}

func TestSnapshotProvider(t *testing.T) {
	now := time.Date(2025, 5, 6, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := kv.NewMemoryStoreWithClock(clock)
	ctx := context.Background()
	p := NewSnapshotProvider(store, clock)

	_, err := p.Current(ctx, helsinki)
	assert.ErrorIs(t, err, kv.ErrNotFound)

	snap := Snapshot{
		Weather:    types.Weather{Temperature: 20, Condition: types.WeatherClear},
		Location:   helsinki,
		ObservedAt: now.Add(-10 * time.Minute),
	}
	require.NoError(t, SaveSnapshot(ctx, store, snap, 0))

	w, err := p.Current(ctx, helsinki)
	require.NoError(t, err)
	assert.Equal(t, types.WeatherClear, w.Condition)
	assert.Equal(t, "snapshot", w.Source)

	_, err = p.Current(ctx, geo.Point{Latitude: 61.5, Longitude: 23.8})
	assert.Error(t, err, "far from the observation")

	now = now.Add(2 * time.Hour)
	_, err = p.Current(ctx, helsinki)
	assert.Error(t, err, "stale observation")
}

func TestSaveSnapshotRejectsUnknownCondition(t *testing.T) {
	err := SaveSnapshot(context.Background(), kv.NewMemoryStore(), Snapshot{Weather: types.Weather{Condition: "hail"}}, 0)
	assert.Error(t, err)
}

type stubProvider struct {
	weather types.Weather
	err     error
	calls   int
}

func (s *stubProvider) Current(ctx context.Context, at geo.Point) (types.Weather, error) {
	s.calls++
	return s.weather, s.err
}

func TestChainFallsThrough(t *testing.T) {
	broken := &stubProvider{err: errors.New("offline")}
	working := &stubProvider{weather: types.Weather{Condition: types.WeatherSnow}}
	unused := &stubProvider{weather: types.Weather{Condition: types.WeatherClear}}

	w, err := NewChain(testLogger(), broken, nil, working, unused).Current(context.Background(), helsinki)
	require.NoError(t, err)
	assert.Equal(t, types.WeatherSnow, w.Condition)
	assert.Equal(t, 1, broken.calls)
	assert.Zero(t, unused.calls)

	_, err = NewChain(testLogger(), broken).Current(context.Background(), helsinki)
	assert.ErrorContains(t, err, "offline")

	_, err = NewChain(testLogger()).Current(context.Background(), helsinki)
	assert.Error(t, err)
}

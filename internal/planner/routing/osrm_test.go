package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
)

const osrmBody = `{
  "code": "Ok",
  "routes": [{
    "distance": 2310.4,
    "duration": 312.9,
    "geometry": {"coordinates": [[24.9354, 60.1695], [24.9500, 60.1841]]},
    "legs": [{"steps": [
      {"distance": 2000, "duration": 280, "name": "Mannerheimintie", "maneuver": {"type": "turn", "modifier": "left"}},
      {"distance": 310.4, "duration": 32.9, "name": "", "maneuver": {"type": "arrive"}}
    ]}]
  }]
}`

func TestOSRMClientRoute(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "geojson", r.URL.Query().Get("geometries"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(osrmBody))
	}))
	defer server.Close()

	c := NewOSRMClient(server.URL+"/", 5*time.Second, testLogger())
	info, err := c.Route(context.Background(), []geo.Point{{Latitude: 60.1695, Longitude: 24.9354}, {Latitude: 60.1841, Longitude: 24.95}})
	require.NoError(t, err)

	assert.Equal(t, "/route/v1/driving/24.935400,60.169500;24.950000,60.184100", gotPath)
	assert.Equal(t, 2310.4, info.DistanceMeters)
	assert.Equal(t, 312.9, info.DurationSeconds)
	assert.Equal(t, "osrm", info.Source)
	require.Len(t, info.Geometry, 2)
	assert.Equal(t, geo.Point{Latitude: 60.1695, Longitude: 24.9354}, info.Geometry[0])
	require.Len(t, info.Steps, 2)
	assert.Equal(t, "turn left onto Mannerheimintie", info.Steps[0].Instruction)
	assert.Equal(t, "arrive", info.Steps[1].Instruction)
}

func TestOSRMClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("steps") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"code":"NoRoute","message":"Impossible route","routes":[]}`))
	}))
	defer server.Close()

	c := NewOSRMClient(server.URL, time.Second, testLogger())
	_, err := c.Route(context.Background(), []geo.Point{{Latitude: 0, Longitude: 0}, {Latitude: 1, Longitude: 1}})
	assert.ErrorContains(t, err, "NoRoute")

	_, err = c.Route(context.Background(), []geo.Point{{Latitude: 0, Longitude: 0}})
	assert.Error(t, err)
}

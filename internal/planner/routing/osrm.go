package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
)

// OSRMClient queries an OSRM route service
type OSRMClient struct {
	baseURL string
	profile string
	http    *http.Client
	logger  *slog.Logger
}

// NewOSRMClient creates a client for the OSRM server at baseURL
func NewOSRMClient(baseURL string, timeout time.Duration, logger *slog.Logger) *OSRMClient {
	return &OSRMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: "driving",
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "osrm"),
	}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][2]float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		Legs []struct {
			Steps []struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
				Name     string  `json:"name"`
				Maneuver struct {
					Type     string `json:"type"`
					Modifier string `json:"modifier"`
				} `json:"maneuver"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// Route asks OSRM for the route through waypoints in order
func (c *OSRMClient) Route(ctx context.Context, waypoints []geo.Point) (RouteInfo, error) {
	if len(waypoints) < 2 {
		return RouteInfo{}, fmt.Errorf("route needs at least 2 waypoints, got %d", len(waypoints))
	}

	coords := make([]string, len(waypoints))
	for i, p := range waypoints {
		coords[i] = fmt.Sprintf("%.6f,%.6f", p.Longitude, p.Latitude)
	}
	url := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson&steps=true",
		c.baseURL, c.profile, strings.Join(coords, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("failed to build route request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("route request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RouteInfo{}, fmt.Errorf("route request returned status %d", resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return RouteInfo{}, fmt.Errorf("failed to decode route response: %w", err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return RouteInfo{}, fmt.Errorf("no route found: %s %s", body.Code, body.Message)
	}

	route := body.Routes[0]
	info := RouteInfo{
		DistanceMeters:  route.Distance,
		DurationSeconds: route.Duration,
		Source:          "osrm",
	}
	for _, coord := range route.Geometry.Coordinates {
		info.Geometry = append(info.Geometry, geo.Point{Latitude: coord[1], Longitude: coord[0]})
	}
	for _, leg := range route.Legs {
		for _, s := range leg.Steps {
			info.Steps = append(info.Steps, Step{
				Instruction:     instruction(s.Maneuver.Type, s.Maneuver.Modifier, s.Name),
				DistanceMeters:  s.Distance,
				DurationSeconds: s.Duration,
			})
		}
	}

	c.logger.Debug("Route resolved",
		"waypoints", len(waypoints),
		"distance_m", int(info.DistanceMeters),
		"steps", len(info.Steps))

	return info, nil
}

// instruction renders an OSRM maneuver as text, e.g. "turn left onto Mannerheimintie"
func instruction(kind, modifier, name string) string {
	parts := []string{kind}
	if modifier != "" {
		parts = append(parts, modifier)
	}
	if name != "" {
		parts = append(parts, "onto", name)
	}
	return strings.Join(parts, " ")
}

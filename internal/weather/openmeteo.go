package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
)

const currentFields = "temperature_2m,relative_humidity_2m,precipitation,weather_code,wind_speed_10m"

// OpenMeteoClient queries the Open-Meteo forecast API for current conditions
type OpenMeteoClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenMeteoClient creates a client for the forecast endpoint,
// e.g. https://api.open-meteo.com/v1/forecast
func NewOpenMeteoClient(endpoint string, timeout time.Duration, logger *slog.Logger) *OpenMeteoClient {
	return &OpenMeteoClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "open_meteo"),
	}
}

type forecastResponse struct {
	Current struct {
		Time          string  `json:"time"`
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		Precipitation float64 `json:"precipitation"`
		WeatherCode   int     `json:"weather_code"`
		WindSpeed     float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

// Current fetches the observation nearest to now at p
func (c *OpenMeteoClient) Current(ctx context.Context, p geo.Point) (types.Weather, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(p.Latitude, 'f', 4, 64))
	query.Set("longitude", strconv.FormatFloat(p.Longitude, 'f', 4, 64))
	query.Set("current", currentFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return types.Weather{}, fmt.Errorf("failed to create weather request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.Weather{}, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.Weather{}, fmt.Errorf("weather service returned status %d: %s", resp.StatusCode, string(body))
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return types.Weather{}, fmt.Errorf("failed to decode weather response: %w", err)
	}

	cur := fr.Current
	w := types.Weather{
		Temperature:   cur.Temperature,
		Condition:     ConditionForCode(cur.WeatherCode),
		Precipitation: cur.Precipitation,
		WindSpeed:     cur.WindSpeed,
		Humidity:      cur.Humidity,
		Source:        "open-meteo",
	}

	c.logger.Debug("Weather fetched",
		"location", p.String(),
		"code", cur.WeatherCode,
		"condition", w.Condition,
		"temperature", w.Temperature)

	return w, nil
}

// ConditionForCode maps a WMO weather interpretation code onto the
// planner's condition enum. Unknown codes are treated as cloudy.
func ConditionForCode(code int) types.WeatherCondition {
	switch {
	case code == 0 || code == 1:
		return types.WeatherClear
	case code == 2 || code == 3 || code == 45 || code == 48:
		return types.WeatherCloudy
	case code >= 51 && code <= 67, code >= 80 && code <= 82:
		return types.WeatherRain
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return types.WeatherSnow
	case code >= 95 && code <= 99:
		return types.WeatherStorm
	default:
		return types.WeatherCloudy
	}
}

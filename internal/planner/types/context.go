package types

import (
	"time"

	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
)

// WeatherCondition is the planner's 5-value weather classification
type WeatherCondition string

const (
	WeatherClear  WeatherCondition = "clear"
	WeatherCloudy WeatherCondition = "cloudy"
	WeatherRain   WeatherCondition = "rain"
	WeatherSnow   WeatherCondition = "snow"
	WeatherStorm  WeatherCondition = "storm"
)

// IsBad reports whether outdoor activities should be avoided
func (c WeatherCondition) IsBad() bool {
	return c == WeatherRain || c == WeatherSnow || c == WeatherStorm
}

// Weather is the current observation at the user's location
type Weather struct {
	Temperature   float64          `json:"temperature"` // Celsius
	Condition     WeatherCondition `json:"condition"`
	Precipitation float64          `json:"precipitation"` // mm
	WindSpeed     float64          `json:"windSpeed"`     // km/h
	Humidity      float64          `json:"humidity"`      // percent
	Source        string           `json:"source,omitempty"`
}

// EnergyLevel is the expected user energy for a time of day
type EnergyLevel string

const (
	EnergyHigh   EnergyLevel = "high"
	EnergyMedium EnergyLevel = "medium"
	EnergyLow    EnergyLevel = "low"
)

// EnergyForHour maps an hour (possibly fractional) to an energy band:
// 8-11 high, 14-17 medium, anything else low
func EnergyForHour(hour float64) EnergyLevel {
	switch {
	case hour >= 8 && hour <= 11:
		return EnergyHigh
	case hour >= 14 && hour <= 17:
		return EnergyMedium
	default:
		return EnergyLow
	}
}

// Daylight is the sun window for the context day
type Daylight struct {
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}

// Contains reports whether t falls between sunrise and sunset.
// An unknown window (polar day/night or not computed) contains everything.
func (d Daylight) Contains(t time.Time) bool {
	if d.Sunrise.IsZero() || d.Sunset.IsZero() {
		return true
	}
	return !t.Before(d.Sunrise) && t.Before(d.Sunset)
}

// OptimizationContext is the snapshot a scoring pass is computed against.
// It is read-only for every component except the builder that owns it.
type OptimizationContext struct {
	CurrentTime    time.Time        `json:"currentTime"`
	UserLocation   geo.Point        `json:"userLocation"`
	Weather        Weather          `json:"weather"`
	CalendarEvents []CalendarEvent  `json:"calendarEvents"`
	UserEnergy     EnergyLevel      `json:"userEnergy"`
	TaskHistory    []TaskCompletion `json:"taskHistory"`
	Tasks          []Task           `json:"tasks"`
	Daylight       Daylight         `json:"daylight"`
	CapturedAt     time.Time        `json:"capturedAt"`
}

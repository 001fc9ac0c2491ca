package agent

import (
	"time"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
)

// AnalyzeRequest is the payload of automation/planner/analyze. An empty
// payload analyzes with every step enabled.
type AnalyzeRequest struct {
	Source              string `json:"source,omitempty"`
	Force               bool   `json:"force,omitempty"`
	SkipHabits          bool   `json:"skip_habits,omitempty"`
	SkipRoutes          bool   `json:"skip_routes,omitempty"`
	SkipRecommendations bool   `json:"skip_recommendations,omitempty"`
}

// RecommendationRequest is the payload of the dismiss and acted topics
type RecommendationRequest struct {
	ID string `json:"id"`
}

// InvalidateRequest is the payload of automation/planner/invalidate.
// Scope is "context", "patterns" or "all" (default).
type InvalidateRequest struct {
	Scope string `json:"scope,omitempty"`
}

// WeatherMessage is an observation published on automation/context/weather
type WeatherMessage struct {
	types.Weather
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// SuggestionsMessage is published on automation/planner/suggestions
type SuggestionsMessage struct {
	Source      string             `json:"source"`
	GeneratedAt time.Time          `json:"generated_at"`
	Suggestions []types.Suggestion `json:"suggestions"`
	FailedSteps []string           `json:"failed_steps,omitempty"`
}

// RecommendationsMessage is published on automation/planner/recommendations
type RecommendationsMessage struct {
	Source          string                 `json:"source"`
	GeneratedAt     time.Time              `json:"generated_at"`
	Recommendations []types.Recommendation `json:"recommendations"`
}

// ConflictsMessage is published on automation/planner/conflicts
type ConflictsMessage struct {
	Source      string           `json:"source"`
	GeneratedAt time.Time        `json:"generated_at"`
	Conflicts   []types.Conflict `json:"conflicts"`
}

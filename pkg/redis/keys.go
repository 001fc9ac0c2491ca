package redis

import "fmt"

// Key construction helpers for planner state

// PatternsKey holds the learned habit patterns blob
// Pattern: planner:patterns
func PatternsKey() string {
	return "planner:patterns"
}

// RouteKey holds a cached route lookup for a rounded coordinate list
// Pattern: planner:route:{coords}
func RouteKey(coords string) string {
	return fmt.Sprintf("planner:route:%s", coords)
}

// DismissedRecommendationsKey holds the permanently dismissed recommendation ids
// Pattern: planner:recommendations:dismissed
func DismissedRecommendationsKey() string {
	return "planner:recommendations:dismissed"
}

// ActedRecommendationsKey holds recommendation ids the user acted on, with timestamps
// Pattern: planner:recommendations:acted
func ActedRecommendationsKey() string {
	return "planner:recommendations:acted"
}

// WeatherSnapshotKey holds the latest weather observation published by another agent
// Pattern: weather:current
func WeatherSnapshotKey() string {
	return "weather:current"
}

package mqtt

import (
	"fmt"
	"strings"
)

// Topic constants for the planner agent
const (
	// Device context (input)
	TopicLocation   = "automation/context/location/+"
	TopicWeather    = "automation/context/weather"
	TopicTimeConfig = "automation/test/time_config"

	// Planner commands (input)
	TopicAnalyze    = "automation/planner/analyze"
	TopicDismiss    = "automation/planner/dismiss"
	TopicActed      = "automation/planner/acted"
	TopicInvalidate = "automation/planner/invalidate"

	// Planner results (output)
	TopicSuggestions     = "automation/planner/suggestions"
	TopicRecommendations = "automation/planner/recommendations"
	TopicConflicts       = "automation/planner/conflicts"
)

// LocationTopic constructs the location topic for a device
// Pattern: automation/context/location/{device}
func LocationTopic(device string) string {
	return fmt.Sprintf("automation/context/location/%s", device)
}

// StatusTopic is where a service announces online/offline, retained
func StatusTopic(service string) string {
	return fmt.Sprintf("automation/status/%s", service)
}

// DeviceFromTopic returns the last topic segment, which names the device
// for automation/context/location/{device}
func DeviceFromTopic(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 {
		return topic
	}
	return topic[idx+1:]
}

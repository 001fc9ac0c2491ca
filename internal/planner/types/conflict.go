package types

import "time"

// ConflictType classifies a scheduling infeasibility
type ConflictType string

const (
	ConflictTimeOverlap      ConflictType = "time_overlap"
	ConflictImpossibleTravel ConflictType = "impossible_travel"
)

// Severity ranks conflicts and suggestions
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities: critical > high > medium > low
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Resolution is a proposed reschedule for one task of a conflict
type Resolution struct {
	TaskID     string    `json:"taskId"`
	NewStart   time.Time `json:"newStart"`
	Confidence float64   `json:"confidence"` // 0-100
	Reason     string    `json:"reason"`
}

// Conflict is one detected infeasibility
type Conflict struct {
	ID                  string       `json:"id"`
	Type                ConflictType `json:"type"`
	Severity            Severity     `json:"severity"`
	InvolvedTasks       []string     `json:"involvedTasks"`
	InvolvedEvents      []string     `json:"involvedEvents,omitempty"`
	Description         string       `json:"description"`
	OverlapMinutes      int          `json:"overlapMinutes,omitempty"`
	TravelMinutes       int          `json:"travelMinutes,omitempty"`
	DistanceMeters      float64      `json:"distanceMeters,omitempty"`
	SuggestedResolution *Resolution  `json:"suggestedResolution,omitempty"`
}

// TimeSlot is a candidate window considered during slot search
type TimeSlot struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Duration    int       `json:"duration"` // minutes
	Score       float64   `json:"score"`
	IsAvailable bool      `json:"isAvailable"`
	Conflicts   []string  `json:"conflicts,omitempty"`
}

// NewTimeSlot builds an available slot of the given length starting at start
func NewTimeSlot(start time.Time, length time.Duration) TimeSlot {
	return TimeSlot{
		Start:       start,
		End:         start.Add(length),
		Duration:    int(length / time.Minute),
		IsAvailable: true,
	}
}

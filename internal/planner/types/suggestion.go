package types

import "time"

// SuggestionType is the kind of change a suggestion proposes
type SuggestionType string

const (
	SuggestionReschedule SuggestionType = "reschedule"
	SuggestionReorder    SuggestionType = "reorder"
	SuggestionGroup      SuggestionType = "group"
	SuggestionSkip       SuggestionType = "skip"
	SuggestionSplit      SuggestionType = "split"
	SuggestionCombine    SuggestionType = "combine"
)

// Change is one proposed modification of a task record
type Change struct {
	TaskID    string     `json:"taskId"`
	StartDate *time.Time `json:"startDate,omitempty"`
	Position  *int       `json:"position,omitempty"`
}

// Impact quantifies what accepting a suggestion gains
type Impact struct {
	TimeSavedMinutes    int     `json:"timeSaved,omitempty"`
	DistanceSavedMeters float64 `json:"distanceSaved,omitempty"`
	ConflictsResolved   int     `json:"conflictsResolved,omitempty"`
}

// Suggestion proposes a concrete schedule or route change
type Suggestion struct {
	ID              string         `json:"id"`
	Type            SuggestionType `json:"type"`
	TaskIDs         []string       `json:"taskIds"`
	Title           string         `json:"title"`
	Reason          string         `json:"reason"`
	Confidence      float64        `json:"confidence"` // 0-100
	Priority        Severity       `json:"priority"`
	ProposedChanges []Change       `json:"proposedChanges"`
	Impact          Impact         `json:"impact"`
	AcceptedAt      *time.Time     `json:"acceptedAt,omitempty"`
	RejectedAt      *time.Time     `json:"rejectedAt,omitempty"`
}

// Accept records acceptance; applying the changes is the caller's job
func (s *Suggestion) Accept(now time.Time) {
	s.AcceptedAt = &now
	s.RejectedAt = nil
}

// Reject records rejection
func (s *Suggestion) Reject(now time.Time) {
	s.RejectedAt = &now
	s.AcceptedAt = nil
}

// Pending reports whether the suggestion is neither accepted nor rejected
func (s Suggestion) Pending() bool {
	return s.AcceptedAt == nil && s.RejectedAt == nil
}

package types

import (
	"time"

	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
)

// Priority is the user-assigned importance of a task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultTaskDuration is assumed for scheduled tasks without a duration
const DefaultTaskDuration = 60 * time.Minute

// Location is a named place attached to a task or event
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

// Point converts the location to a geo.Point
func (l Location) Point() geo.Point {
	return geo.Point{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Subtask is one entry of a task checklist
type Subtask struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Task is a read-only snapshot of a user task owned by external storage
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Priority    Priority   `json:"priority"`
	Location    *Location  `json:"location,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	Duration    int        `json:"duration,omitempty"` // minutes
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ReminderAt  *time.Time `json:"reminderAt,omitempty"`
	Subtasks    []Subtask  `json:"subtasks,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsScheduled reports whether the task is pending and has a start date
func (t Task) IsScheduled() bool {
	return !t.Completed && t.StartDate != nil
}

// HasLocation reports whether the task carries coordinates
func (t Task) HasLocation() bool {
	return t.Location != nil
}

// EffectiveDuration returns the task duration, or DefaultTaskDuration when unset
func (t Task) EffectiveDuration() time.Duration {
	if t.Duration <= 0 {
		return DefaultTaskDuration
	}
	return time.Duration(t.Duration) * time.Minute
}

// End returns StartDate + EffectiveDuration; zero time for unscheduled tasks
func (t Task) End() time.Time {
	if t.StartDate == nil {
		return time.Time{}
	}
	return t.StartDate.Add(t.EffectiveDuration())
}

// CalendarEvent is a read-only external calendar entry
type CalendarEvent struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location *Location `json:"location,omitempty"`
}

// Overlaps reports whether [start,end) intersects the event window
func (e CalendarEvent) Overlaps(start, end time.Time) bool {
	return start.Before(e.End) && e.Start.Before(end)
}

// TaskCompletion is a historical fact derived from a completed task
type TaskCompletion struct {
	TaskID      string       `json:"taskId"`
	Category    string       `json:"category"`
	CompletedAt time.Time    `json:"completedAt"`
	Duration    int          `json:"duration"`
	Location    *Location    `json:"location,omitempty"`
	HourOfDay   int          `json:"hourOfDay"`
	DayOfWeek   time.Weekday `json:"dayOfWeek"`
}

// CompletionsFromTasks builds completion facts from completed tasks, keeping input order.
// Tasks without a completion or update timestamp are skipped.
func CompletionsFromTasks(tasks []Task) []TaskCompletion {
	var out []TaskCompletion
	for _, t := range tasks {
		if !t.Completed {
			continue
		}
		var at time.Time
		switch {
		case t.CompletedAt != nil:
			at = *t.CompletedAt
		case !t.UpdatedAt.IsZero():
			at = t.UpdatedAt
		default:
			continue
		}
		out = append(out, TaskCompletion{
			TaskID:      t.ID,
			Category:    t.Category,
			CompletedAt: at,
			Duration:    t.Duration,
			Location:    t.Location,
			HourOfDay:   at.Hour(),
			DayOfWeek:   at.Weekday(),
		})
	}
	return out
}

// Package tasksource reads the task and calendar records the planner
// works on. Records are owned elsewhere; every source here is read-only.
package tasksource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
)

// Source supplies the current task list and calendar
type Source interface {
	Tasks(ctx context.Context) ([]types.Task, error)
	Events(ctx context.Context, from, to time.Time) ([]types.CalendarEvent, error)
}

// Static serves a fixed set of records
type Static struct {
	TaskList  []types.Task          `json:"tasks"`
	EventList []types.CalendarEvent `json:"events"`
}

// LoadFile reads {"tasks": [...], "events": [...]} from a JSON file
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks file: %w", err)
	}

	var s Static
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse tasks file: %w", err)
	}
	for i, t := range s.TaskList {
		if t.ID == "" {
			return nil, fmt.Errorf("task %d has no id", i)
		}
	}
	return &s, nil
}

func (s *Static) Tasks(ctx context.Context) ([]types.Task, error) {
	out := make([]types.Task, len(s.TaskList))
	copy(out, s.TaskList)
	return out, nil
}

// Events returns the events overlapping [from, to) ordered by start
func (s *Static) Events(ctx context.Context, from, to time.Time) ([]types.CalendarEvent, error) {
	var out []types.CalendarEvent
	for _, e := range s.EventList {
		if e.Overlaps(from, to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

package recommend

import (
	"strings"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
)

// Template is a reusable task outline offered for freshly created tasks
type Template struct {
	ID         string   `yaml:"id" json:"id"`
	Name       string   `yaml:"name" json:"name"`
	Categories []string `yaml:"categories" json:"categories,omitempty"`
	Keywords   []string `yaml:"keywords" json:"keywords,omitempty"`
	Subtasks   []string `yaml:"subtasks" json:"subtasks,omitempty"`
	Duration   int      `yaml:"duration" json:"duration,omitempty"` // minutes
}

// Matches reports whether the task fits the template by category or by a
// keyword in its text
func (t Template) Matches(task types.Task) bool {
	category := strings.ToLower(task.Category)
	for _, c := range t.Categories {
		if category != "" && category == strings.ToLower(c) {
			return true
		}
	}
	return containsAny(taskText(task), t.Keywords)
}

// DefaultTemplates is the built-in catalogue used when no planner file
// provides one
func DefaultTemplates() []Template {
	return []Template{
		{
			ID:         "groceries",
			Name:       "Grocery run",
			Categories: []string{"shopping", "groceries"},
			Keywords:   []string{"groceries", "supermarket", "grocery"},
			Subtasks:   []string{"Check the fridge", "Write the list", "Bring bags"},
			Duration:   45,
		},
		{
			ID:         "workout",
			Name:       "Workout",
			Categories: []string{"sport", "fitness"},
			Keywords:   []string{"gym", "workout", "run", "training"},
			Subtasks:   []string{"Pack gym bag", "Warm up", "Stretch"},
			Duration:   60,
		},
		{
			ID:         "appointment",
			Name:       "Appointment",
			Categories: []string{"health"},
			Keywords:   []string{"doctor", "dentist", "appointment", "clinic"},
			Subtasks:   []string{"Confirm the time", "Bring ID card", "Prepare questions"},
			Duration:   60,
		},
		{
			ID:         "trip",
			Name:       "Trip preparation",
			Categories: []string{"travel"},
			Keywords:   []string{"trip", "flight", "travel", "packing"},
			Subtasks:   []string{"Check documents", "Pack luggage", "Book transport to the station"},
			Duration:   90,
		},
		{
			ID:         "meeting",
			Name:       "Meeting",
			Categories: []string{"work"},
			Keywords:   []string{"meeting", "call", "interview"},
			Subtasks:   []string{"Prepare the agenda", "Send the invite", "Write notes"},
			Duration:   30,
		},
	}
}

func taskText(task types.Task) string {
	return strings.ToLower(task.Title + " " + task.Description)
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

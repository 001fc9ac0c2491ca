package recommend

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
)

// shoppingKeywords mark tasks that benefit from a checklist
var shoppingKeywords = []string{"shopping", "groceries", "grocery", "buy", "supermarket", "store"}

// placeKeywords mark tasks whose text implies a place
var placeKeywords = []string{
	"doctor", "dentist", "hospital", "clinic", "pharmacy", "gym", "bank",
	"post office", "supermarket", "store", "shop", "restaurant", "cafe",
	"hairdresser", "library", "station", "airport", "office",
}

// taskRules evaluates the per-task rules in a fixed order
func (e *Engine) taskRules(task types.Task, now time.Time) []types.Recommendation {
	var out []types.Recommendation
	for _, rule := range []func(types.Task, time.Time) *types.Recommendation{
		e.missingDetails,
		e.missingChecklist,
		e.missingLocation,
		e.missingReminder,
		e.habitMismatch,
		e.template,
	} {
		if r := rule(task, now); r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func (e *Engine) missingDetails(task types.Task, now time.Time) *types.Recommendation {
	title := strings.TrimSpace(task.Title)
	if strings.TrimSpace(task.Description) != "" || utf8.RuneCountInString(title) >= e.ShortTitleRunes {
		return nil
	}

	r := e.newRecommendation(types.RecommendMissingDetails, []string{task.ID}, types.PriorityLow, now)
	r.Title = "Add some details"
	r.Message = fmt.Sprintf("%q is short and has no description. A few words make it easier to act on later.", title)
	r.TaskIDs = []string{task.ID}
	r.Actions = types.Actions{types.EditDetailsAction{TaskID: task.ID, Fields: []string{"title", "description"}}}
	return &r
}

func (e *Engine) missingChecklist(task types.Task, now time.Time) *types.Recommendation {
	if len(task.Subtasks) > 0 {
		return nil
	}
	if !strings.Contains(strings.ToLower(task.Category), "shopping") && !containsAny(taskText(task), shoppingKeywords) {
		return nil
	}

	var suggested []string
	for _, t := range e.templates {
		if t.Matches(task) {
			suggested = t.Subtasks
			break
		}
	}

	r := e.newRecommendation(types.RecommendMissingChecklist, []string{task.ID}, types.PriorityMedium, now)
	r.Title = "Turn it into a checklist"
	r.Message = fmt.Sprintf("Listing the items for %q lets you tick them off as you go.", task.Title)
	r.TaskIDs = []string{task.ID}
	r.Actions = types.Actions{types.AddChecklistAction{TaskID: task.ID, Suggested: suggested}}
	return &r
}

func (e *Engine) missingLocation(task types.Task, now time.Time) *types.Recommendation {
	if task.Location != nil {
		return nil
	}
	text := taskText(task)
	var place string
	for _, k := range placeKeywords {
		if strings.Contains(text, k) {
			place = k
			break
		}
	}
	if place == "" {
		return nil
	}

	r := e.newRecommendation(types.RecommendMissingLocation, []string{task.ID}, types.PriorityMedium, now)
	r.Title = "Where does this happen?"
	r.Message = fmt.Sprintf("%q mentions a %s. Adding the place enables travel time and route suggestions.", task.Title, place)
	r.TaskIDs = []string{task.ID}
	r.Actions = types.Actions{types.SetLocationAction{TaskID: task.ID, Query: place}}
	return &r
}

func (e *Engine) missingReminder(task types.Task, now time.Time) *types.Recommendation {
	if task.ReminderAt != nil || task.StartDate == nil || !task.StartDate.After(now) {
		return nil
	}
	if task.Priority != types.PriorityMedium && task.Priority != types.PriorityHigh {
		return nil
	}

	remindAt := task.StartDate.Add(-e.ReminderLead)
	if remindAt.Before(now) {
		remindAt = now
	}

	priority := types.PriorityLow
	if task.Priority == types.PriorityHigh {
		priority = types.PriorityMedium
	}

	r := e.newRecommendation(types.RecommendMissingReminder, []string{task.ID}, priority, now)
	r.Title = "Set a reminder"
	r.Message = fmt.Sprintf("%q starts %s and has no reminder.", task.Title, humanize.RelTime(*task.StartDate, now, "ago", "from now"))
	r.TaskIDs = []string{task.ID}
	r.Actions = types.Actions{types.AddReminderAction{TaskID: task.ID, RemindAt: remindAt}}
	return &r
}

func (e *Engine) habitMismatch(task types.Task, now time.Time) *types.Recommendation {
	if e.habits == nil || task.StartDate == nil || task.Category == "" {
		return nil
	}
	match := e.habits.MatchesHabits(task)
	if !match.Known || match.Confidence >= e.HabitMismatchBelow {
		return nil
	}
	pattern, ok := e.habits.Pattern(task.Category)
	if !ok || len(pattern.PreferredHours) == 0 {
		return nil
	}

	start := *task.StartDate
	proposed := time.Date(start.Year(), start.Month(), start.Day(), pattern.PreferredHours[0], 0, 0, 0, start.Location())
	if proposed.Before(now) {
		proposed = proposed.AddDate(0, 0, 1)
	}

	r := e.newRecommendation(types.RecommendHabitMismatch, []string{task.ID}, types.PriorityLow, now)
	r.Title = "This is not when you usually do it"
	r.Message = fmt.Sprintf("%q is planned outside your usual %s routine. %s", task.Title, pattern.Category, strings.Join(match.Suggestions, ". "))
	r.TaskIDs = []string{task.ID}
	r.Actions = types.Actions{
		types.RescheduleAction{TaskID: task.ID, StartDate: proposed},
		types.OpenTaskAction{TaskID: task.ID},
	}
	return &r
}

func (e *Engine) template(task types.Task, now time.Time) *types.Recommendation {
	if len(task.Subtasks) > 0 || task.CreatedAt.IsZero() || now.Sub(task.CreatedAt) > e.TemplateWindow {
		return nil
	}
	for _, t := range e.templates {
		if !t.Matches(task) {
			continue
		}
		r := e.newRecommendation(types.RecommendTemplate, []string{task.ID, t.ID}, types.PriorityLow, now)
		r.Title = fmt.Sprintf("Use the %q template", t.Name)
		r.Message = fmt.Sprintf("%q looks like a %s. The template adds %d steps.", task.Title, strings.ToLower(t.Name), len(t.Subtasks))
		r.TaskIDs = []string{task.ID}
		r.Actions = types.Actions{types.ApplyTemplateAction{TaskID: task.ID, TemplateID: t.ID, Subtasks: t.Subtasks, Duration: t.Duration}}
		return &r
	}
	return nil
}

// groupRule proposes handling incomplete tasks of the same category together
func (e *Engine) groupRule(tasks []types.Task, now time.Time) []types.Recommendation {
	var categories []string
	members := make(map[string][]string)
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		c := strings.ToLower(strings.TrimSpace(t.Category))
		if c == "" {
			continue
		}
		if _, seen := members[c]; !seen {
			categories = append(categories, c)
		}
		members[c] = append(members[c], t.ID)
	}

	var out []types.Recommendation
	for _, c := range categories {
		ids := members[c]
		if len(ids) < 2 {
			continue
		}
		r := e.newRecommendation(types.RecommendGroupTasks, []string{c}, types.PriorityMedium, now)
		r.Title = fmt.Sprintf("Batch your %s tasks", c)
		r.Message = fmt.Sprintf("You have %d open %s tasks. Doing them in one go saves context switches.", len(ids), c)
		r.TaskIDs = ids
		r.Actions = types.Actions{types.GroupTasksAction{TaskIDs: ids, Category: c}}
		out = append(out, r)
	}
	return out
}

// nearbyRule points at incomplete located tasks close to the user
func (e *Engine) nearbyRule(tasks []types.Task, here geo.Point, now time.Time) []types.Recommendation {
	var out []types.Recommendation
	for _, t := range tasks {
		if t.Completed || t.Location == nil {
			continue
		}
		d := geo.Haversine(here, t.Location.Point())
		if d > e.NearbyRadiusMeters {
			continue
		}
		r := e.newRecommendation(types.RecommendNearbyTask, []string{t.ID}, types.PriorityHigh, now)
		r.Title = "You are nearby"
		r.Message = fmt.Sprintf("%q is %s away. Want to do it now?", t.Title, humanize.SIWithDigits(d, 0, "m"))
		r.TaskIDs = []string{t.ID}
		r.Actions = types.Actions{types.OpenTaskAction{TaskID: t.ID}}
		out = append(out, r)
	}
	return out
}

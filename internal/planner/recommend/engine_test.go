package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icare0/Do-it-repo-sub000/internal/clock"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/habits"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
	"github.com/icare0/Do-it-repo-sub000/pkg/kv"
)

var now = time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)

type stubHabits struct {
	match   habits.HabitMatch
	pattern types.UserPattern
}

func (s stubHabits) MatchesHabits(task types.Task) habits.HabitMatch { return s.match }

func (s stubHabits) Pattern(category string) (types.UserPattern, bool) {
	return s.pattern, s.pattern.Category == category
}

func newTestEngine(matcher HabitMatcher, store kv.Store) (*Engine, *clock.Fixed) {
	clk := clock.NewFixed(now)
	return NewEngine(matcher, nil, store, clk, slog.New(slog.NewTextHandler(io.Discard, nil))), clk
}

func byType(recs []types.Recommendation, kind types.RecommendationType) []types.Recommendation {
	var out []types.Recommendation
	for _, r := range recs {
		if r.Type == kind {
			out = append(out, r)
		}
	}
	return out
}

func ptr(t time.Time) *time.Time { return &t }

func TestMissingDetails(t *testing.T) {
	e, _ := newTestEngine(nil, nil)
	tasks := []types.Task{
		{ID: "a", Title: "Call"},
		{ID: "b", Title: "Call", Description: "About the invoice"},
		{ID: "c", Title: "Renew the passport"},
		{ID: "d", Title: "Fix", Completed: true},
	}

	recs := byType(e.Analyze(context.Background(), tasks, nil), types.RecommendMissingDetails)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"a"}, recs[0].TaskIDs)
	assert.True(t, recs[0].Dismissable)
	require.NotNil(t, recs[0].ExpiresAt)
	assert.Equal(t, now.Add(72*time.Hour), *recs[0].ExpiresAt)
	assert.Equal(t, types.ActionEditDetails, recs[0].Actions[0].Kind())
}

func TestChecklistAndLocation(t *testing.T) {
	e, _ := newTestEngine(nil, nil)
	tasks := []types.Task{
		{ID: "g", Title: "Buy groceries for the week", Category: "shopping"},
		{ID: "h", Title: "Buy groceries for the week", Subtasks: []types.Subtask{{Title: "Milk"}}},
		{ID: "d", Title: "Dentist check-up appointment"},
		{ID: "l", Title: "Dentist check-up appointment", Location: &types.Location{Latitude: 60, Longitude: 25}},
	}
	recs := e.Analyze(context.Background(), tasks, nil)

	checklist := byType(recs, types.RecommendMissingChecklist)
	require.Len(t, checklist, 1)
	action, ok := checklist[0].Actions[0].(types.AddChecklistAction)
	require.True(t, ok)
	assert.Equal(t, "g", action.TaskID)
	assert.Contains(t, action.Suggested, "Write the list")

	location := byType(recs, types.RecommendMissingLocation)
	require.Len(t, location, 1)
	assert.Equal(t, []string{"d"}, location[0].TaskIDs)
	assert.Equal(t, types.SetLocationAction{TaskID: "d", Query: "dentist"}, location[0].Actions[0])
}

func TestMissingReminder(t *testing.T) {
	e, _ := newTestEngine(nil, nil)
	tasks := []types.Task{
		{ID: "hi", Title: "Board presentation", Priority: types.PriorityHigh, StartDate: ptr(now.Add(2 * time.Hour))},
		{ID: "soon", Title: "Quarterly review", Priority: types.PriorityMedium, StartDate: ptr(now.Add(10 * time.Minute))},
		{ID: "low", Title: "Water the plants", Priority: types.PriorityLow, StartDate: ptr(now.Add(time.Hour))},
		{ID: "set", Title: "Doctor appointment", Priority: types.PriorityHigh, StartDate: ptr(now.Add(time.Hour)), ReminderAt: ptr(now)},
		{ID: "past", Title: "Morning standup", Priority: types.PriorityHigh, StartDate: ptr(now.Add(-time.Hour))},
	}
	recs := byType(e.Analyze(context.Background(), tasks, nil), types.RecommendMissingReminder)
	require.Len(t, recs, 2)

	assert.Equal(t, types.PriorityMedium, recs[0].Priority)
	hi := recs[0].Actions[0].(types.AddReminderAction)
	assert.Equal(t, now.Add(90*time.Minute), hi.RemindAt)
	assert.Contains(t, recs[0].Message, "from now")

	soon := recs[1].Actions[0].(types.AddReminderAction)
	assert.Equal(t, now, soon.RemindAt)
}

func TestGroupTasks(t *testing.T) {
	e, _ := newTestEngine(nil, nil)
	tasks := []types.Task{
		{ID: "1", Title: "Reply to emails", Category: "Admin"},
		{ID: "2", Title: "Pay the electricity bill", Category: "admin"},
		{ID: "3", Title: "File the receipts", Category: "admin", Completed: true},
		{ID: "4", Title: "Read a chapter of the book", Category: "reading"},
	}
	recs := byType(e.Analyze(context.Background(), tasks, nil), types.RecommendGroupTasks)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"1", "2"}, recs[0].TaskIDs)
	assert.Equal(t, types.GroupTasksAction{TaskIDs: []string{"1", "2"}, Category: "admin"}, recs[0].Actions[0])
}

func TestHabitMismatch(t *testing.T) {
	matcher := stubHabits{
		match:   habits.HabitMatch{Known: true, Confidence: 25, Suggestions: []string{"You usually do sport tasks around 18:00"}},
		pattern: types.UserPattern{Category: "sport", PreferredHours: []int{18}, SampleSize: 5},
	}
	e, _ := newTestEngine(matcher, nil)
	tasks := []types.Task{{ID: "run", Title: "Evening run by the sea", Category: "sport", StartDate: ptr(now.Add(time.Hour))}}

	recs := byType(e.Analyze(context.Background(), tasks, nil), types.RecommendHabitMismatch)
	require.Len(t, recs, 1)
	reschedule := recs[0].Actions[0].(types.RescheduleAction)
	assert.Equal(t, time.Date(2025, 5, 6, 18, 0, 0, 0, time.UTC), reschedule.StartDate)

	// Unknown patterns never produce a mismatch
	unknown, _ := newTestEngine(stubHabits{match: habits.HabitMatch{Known: false}}, nil)
	assert.Empty(t, byType(unknown.Analyze(context.Background(), tasks, nil), types.RecommendHabitMismatch))
}

func TestTemplateForFreshTasks(t *testing.T) {
	e, _ := newTestEngine(nil, nil)
	tasks := []types.Task{
		{ID: "new", Title: "Gym session with Anna", CreatedAt: now.Add(-20 * time.Minute)},
		{ID: "old", Title: "Gym session with Anna", CreatedAt: now.Add(-2 * time.Hour)},
	}
	recs := byType(e.Analyze(context.Background(), tasks, nil), types.RecommendTemplate)
	require.Len(t, recs, 1)
	action := recs[0].Actions[0].(types.ApplyTemplateAction)
	assert.Equal(t, "new", action.TaskID)
	assert.Equal(t, "workout", action.TemplateID)
	assert.Equal(t, 60, action.Duration)
}

func TestNearbyTask(t *testing.T) {
	e, _ := newTestEngine(nil, nil)
	here := geo.Point{Latitude: 60.1695, Longitude: 24.9354}
	tasks := []types.Task{
		{ID: "near", Title: "Return library books", Location: &types.Location{Latitude: 60.1740, Longitude: 24.9354}},
		{ID: "far", Title: "Visit grandma in Espoo", Location: &types.Location{Latitude: 60.2055, Longitude: 24.6559}},
	}

	assert.Empty(t, byType(e.Analyze(context.Background(), tasks, nil), types.RecommendNearbyTask))

	recs := e.Analyze(context.Background(), tasks, &here)
	nearby := byType(recs, types.RecommendNearbyTask)
	require.Len(t, nearby, 1)
	assert.Equal(t, []string{"near"}, nearby[0].TaskIDs)
	// High priority sorts first
	assert.Equal(t, types.RecommendNearbyTask, recs[0].Type)
}

func TestDismissIsPermanent(t *testing.T) {
	store := kv.NewMemoryStore()
	e, clk := newTestEngine(nil, store)
	ctx := context.Background()
	tasks := []types.Task{{ID: "a", Title: "Call"}}

	recs := e.Analyze(ctx, tasks, nil)
	require.Len(t, recs, 1)
	id := recs[0].ID

	require.NoError(t, e.Dismiss(ctx, id))
	assert.Empty(t, e.Analyze(ctx, tasks, nil))

	// Survives restart and the expiry window
	restarted, _ := newTestEngine(nil, store)
	clk.Advance(30 * 24 * time.Hour)
	assert.Empty(t, restarted.Analyze(ctx, tasks, nil))
	assert.True(t, restarted.IsDismissed(ctx, id))
}

func TestMarkActedSuppressesForExpiry(t *testing.T) {
	store := kv.NewMemoryStore()
	e, clk := newTestEngine(nil, store)
	ctx := context.Background()
	tasks := []types.Task{{ID: "a", Title: "Call"}}

	id := e.Analyze(ctx, tasks, nil)[0].ID
	require.NoError(t, e.MarkActed(ctx, id))
	assert.Empty(t, e.Analyze(ctx, tasks, nil))

	clk.Advance(71 * time.Hour)
	assert.Empty(t, e.Analyze(ctx, tasks, nil))

	clk.Advance(time.Hour)
	assert.Len(t, e.Analyze(ctx, tasks, nil), 1)
}

func TestMarkViewed(t *testing.T) {
	e, _ := newTestEngine(nil, nil)
	tasks := []types.Task{{ID: "a", Title: "Call"}}
	ctx := context.Background()

	id := e.Analyze(ctx, tasks, nil)[0].ID
	e.MarkViewed(id)

	recs := e.Analyze(ctx, tasks, nil)
	require.NotNil(t, recs[0].ViewedAt)
	assert.Equal(t, now, *recs[0].ViewedAt)
}

func TestIDsAreStableAcrossRuns(t *testing.T) {
	a, _ := newTestEngine(nil, nil)
	b, _ := newTestEngine(nil, nil)
	tasks := []types.Task{{ID: "a", Title: "Call", Category: "x"}, {ID: "b", Title: "Email", Category: "x"}}

	first := a.Analyze(context.Background(), tasks, nil)
	second := b.Analyze(context.Background(), tasks, nil)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestRecommendationJSON(t *testing.T) {
	e, _ := newTestEngine(nil, nil)
	recs := e.Analyze(context.Background(), []types.Task{{ID: "a", Title: "Call"}}, nil)

	data, err := json.Marshal(recs[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"edit_details"`)
}

// flakyStore fails the next failGets reads
type flakyStore struct {
	kv.Store
	failGets int
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGets > 0 {
		f.failGets--
		return nil, errors.New("connection reset")
	}
	return f.Store.Get(ctx, key)
}

func TestDismissAfterReadFailureKeepsEarlierDismissals(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	first, _ := newTestEngine(nil, store)
	require.NoError(t, first.Dismiss(ctx, "a"))

	second, _ := newTestEngine(nil, &flakyStore{Store: store, failGets: 1})
	require.NoError(t, second.Dismiss(ctx, "b"))

	fresh, _ := newTestEngine(nil, store)
	assert.True(t, fresh.IsDismissed(ctx, "a"))
	assert.True(t, fresh.IsDismissed(ctx, "b"))
}

func TestDismissSkipsWriteWhenStoreUnreadable(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	first, _ := newTestEngine(nil, store)
	require.NoError(t, first.Dismiss(ctx, "a"))

	broken, _ := newTestEngine(nil, &flakyStore{Store: store, failGets: 10})
	assert.Error(t, broken.Dismiss(ctx, "b"))
	assert.True(t, broken.IsDismissed(ctx, "b"), "still suppressed for this process")

	fresh, _ := newTestEngine(nil, store)
	assert.True(t, fresh.IsDismissed(ctx, "a"))
	assert.False(t, fresh.IsDismissed(ctx, "b"))
}

func TestMarkActedAfterReadFailureKeepsEarlierEntries(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	task := []types.Task{{ID: "x", Title: "Call"}, {ID: "y", Title: "Pay"}}

	first, _ := newTestEngine(nil, store)
	recs := byType(first.Analyze(ctx, task, nil), types.RecommendMissingDetails)
	require.Len(t, recs, 2)
	require.NoError(t, first.MarkActed(ctx, recs[0].ID))

	second, _ := newTestEngine(nil, &flakyStore{Store: store, failGets: 1})
	require.NoError(t, second.MarkActed(ctx, recs[1].ID))

	fresh, _ := newTestEngine(nil, store)
	assert.Empty(t, byType(fresh.Analyze(ctx, task, nil), types.RecommendMissingDetails))
}

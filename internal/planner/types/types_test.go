package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskEndUsesDefaultDuration(t *testing.T) {
	start := time.Date(2025, 5, 5, 9, 0, 0, 0, time.UTC)

	task := Task{ID: "a", StartDate: &start}
	assert.Equal(t, start.Add(time.Hour), task.End())

	task.Duration = 30
	assert.Equal(t, start.Add(30*time.Minute), task.End())

	assert.True(t, (Task{Completed: true, StartDate: &start}).End().Equal(start.Add(time.Hour)))
	assert.True(t, (Task{}).End().IsZero())
}

func TestEnergyForHour(t *testing.T) {
	testCases := []struct {
		hour float64
		want EnergyLevel
	}{
		{7.5, EnergyLow},
		{8, EnergyHigh},
		{9.67, EnergyHigh},
		{11, EnergyHigh},
		{12, EnergyLow},
		{14, EnergyMedium},
		{17, EnergyMedium},
		{18, EnergyLow},
		{23, EnergyLow},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, EnergyForHour(tc.hour), "hour %v", tc.hour)
	}
}

func TestCompletionsFromTasks(t *testing.T) {
	done := time.Date(2025, 5, 6, 18, 30, 0, 0, time.UTC) // Tuesday
	updated := time.Date(2025, 5, 7, 7, 0, 0, 0, time.UTC)

	tasks := []Task{
		{ID: "1", Category: "sport", Completed: true, CompletedAt: &done, Duration: 45},
		{ID: "2", Category: "sport", Completed: false},
		{ID: "3", Category: "work", Completed: true, UpdatedAt: updated},
		{ID: "4", Category: "work", Completed: true},
	}

	got := CompletionsFromTasks(tasks)
	require.Len(t, got, 2)

	assert.Equal(t, "1", got[0].TaskID)
	assert.Equal(t, 18, got[0].HourOfDay)
	assert.Equal(t, time.Tuesday, got[0].DayOfWeek)
	assert.Equal(t, 45, got[0].Duration)

	assert.Equal(t, "3", got[1].TaskID)
	assert.Equal(t, 7, got[1].HourOfDay)
}

func TestStableIDIsDeterministic(t *testing.T) {
	a := StableID("time_overlap", "t1", "t2")
	b := StableID("time_overlap", "t1", "t2")
	c := StableID("time_overlap", "t2", "t1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestActionsJSONRoundTrip(t *testing.T) {
	remind := time.Date(2025, 5, 6, 8, 0, 0, 0, time.UTC)
	in := Actions{
		EditDetailsAction{TaskID: "t1", Fields: []string{"description"}},
		AddReminderAction{TaskID: "t1", RemindAt: remind},
		GroupTasksAction{TaskIDs: []string{"t1", "t2"}, Category: "errands"},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"add_reminder"`)

	var out Actions
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 3)

	reminder, ok := out[1].(AddReminderAction)
	require.True(t, ok)
	assert.True(t, reminder.RemindAt.Equal(remind))
	assert.Equal(t, ActionGroupTasks, out[2].Kind())
}

func TestActionsRejectUnknownKind(t *testing.T) {
	var out Actions
	err := json.Unmarshal([]byte(`[{"kind":"teleport","payload":{}}]`), &out)
	assert.Error(t, err)
}

func TestSuggestionLifecycle(t *testing.T) {
	now := time.Date(2025, 5, 6, 8, 0, 0, 0, time.UTC)
	s := Suggestion{ID: "s"}
	assert.True(t, s.Pending())

	s.Accept(now)
	require.NotNil(t, s.AcceptedAt)
	assert.False(t, s.Pending())

	s.Reject(now.Add(time.Minute))
	assert.Nil(t, s.AcceptedAt)
	require.NotNil(t, s.RejectedAt)
}

func TestDaylightContains(t *testing.T) {
	day := time.Date(2025, 5, 6, 0, 0, 0, 0, time.UTC)
	d := Daylight{Sunrise: day.Add(5 * time.Hour), Sunset: day.Add(21 * time.Hour)}

	assert.True(t, d.Contains(day.Add(12*time.Hour)))
	assert.False(t, d.Contains(day.Add(22*time.Hour)))
	assert.True(t, Daylight{}.Contains(day))
}

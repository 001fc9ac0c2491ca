package tasksource

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/config"
	"github.com/icare0/Do-it-repo-sub000/pkg/postgres"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	data := `{
		"tasks": [
			{"id": "t1", "title": "Buy milk", "priority": "low", "startDate": "2025-05-06T10:00:00Z"},
			{"id": "t2", "title": "Gym", "completed": true}
		],
		"events": [
			{"id": "e2", "title": "Lunch", "start": "2025-05-06T12:00:00Z", "end": "2025-05-06T13:00:00Z"},
			{"id": "e1", "title": "Standup", "start": "2025-05-06T09:00:00Z", "end": "2025-05-06T09:15:00Z"},
			{"id": "e3", "title": "Tomorrow", "start": "2025-05-07T09:00:00Z", "end": "2025-05-07T10:00:00Z"}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	ctx := context.Background()

	tasks, err := s.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, types.PriorityLow, tasks[0].Priority)
	require.NotNil(t, tasks[0].StartDate)

	day := time.Date(2025, 5, 6, 0, 0, 0, 0, time.UTC)
	events, err := s.Events(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, "e2", events[1].ID)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"tasks": [`), 0o644))
	_, err = LoadFile(broken)
	assert.Error(t, err)

	anonymous := filepath.Join(dir, "anonymous.json")
	require.NoError(t, os.WriteFile(anonymous, []byte(`{"tasks": [{"title": "x"}]}`), 0o644))
	_, err = LoadFile(anonymous)
	assert.ErrorContains(t, err, "no id")
}

func TestStaticTasksReturnsCopy(t *testing.T) {
	s := &Static{TaskList: []types.Task{{ID: "a", Title: "original"}}}
	tasks, _ := s.Tasks(context.Background())
	tasks[0].Title = "changed"
	assert.Equal(t, "original", s.TaskList[0].Title)
}

func TestTaskRowConversion(t *testing.T) {
	start := time.Date(2025, 5, 6, 10, 0, 0, 0, time.UTC)
	r := taskRow{
		ID:           "t1",
		Title:        "Dentist",
		Category:     sql.NullString{String: "health", Valid: true},
		Priority:     sql.NullString{String: "high", Valid: true},
		Latitude:     sql.NullFloat64{Float64: 60.17, Valid: true},
		Longitude:    sql.NullFloat64{Float64: 24.94, Valid: true},
		LocationName: sql.NullString{String: "Clinic", Valid: true},
		StartDate:    sql.NullTime{Time: start, Valid: true},
		Duration:     sql.NullInt64{Int64: 45, Valid: true},
		Subtasks:     []byte(`[{"title":"Bring card","completed":false}]`),
	}

	task, err := r.task()
	require.NoError(t, err)
	assert.Equal(t, types.PriorityHigh, task.Priority)
	require.NotNil(t, task.Location)
	assert.Equal(t, "Clinic", task.Location.Name)
	assert.Equal(t, start, *task.StartDate)
	assert.Equal(t, 45, task.Duration)
	assert.Nil(t, task.CompletedAt)
	require.Len(t, task.Subtasks, 1)
	assert.Equal(t, "Bring card", task.Subtasks[0].Title)

	bare, err := taskRow{ID: "t2", Title: "Think"}.task()
	require.NoError(t, err)
	assert.Equal(t, types.PriorityMedium, bare.Priority)
	assert.Nil(t, bare.Location)
	assert.Nil(t, bare.StartDate)

	_, err = taskRow{ID: "t3", Priority: sql.NullString{String: "urgent", Valid: true}}.task()
	assert.Error(t, err)

	_, err = taskRow{ID: "t4", Subtasks: []byte("{")}.task()
	assert.Error(t, err)
}

// Runs against a live database when PLANNER_TEST_POSTGRES_HOST is set
func TestPostgresIntegration(t *testing.T) {
	host := os.Getenv("PLANNER_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("PLANNER_TEST_POSTGRES_HOST not set")
	}

	cfg := config.NewConfig()
	cfg.LoadFromEnv()
	cfg.PostgresHost = host

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := postgres.NewClient(cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	defer client.Disconnect()

	src := NewPostgres(client, cfg.UserID, logger)
	_, err := src.Tasks(ctx)
	require.NoError(t, err)

	now := time.Now()
	_, err = src.Events(ctx, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
}

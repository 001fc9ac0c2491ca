package tasksource

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/postgres"
)

// Postgres reads tasks and calendar events for one user.
//
// Expected tables:
//
//	tasks(id, user_id, title, description, category, priority, latitude,
//	      longitude, location_name, start_date, duration, completed,
//	      completed_at, reminder_at, subtasks jsonb, created_at, updated_at)
//	calendar_events(id, user_id, title, start_time, end_time, latitude,
//	      longitude, location_name)
type Postgres struct {
	client postgres.Client
	userID string
	logger *slog.Logger
}

// NewPostgres creates a source; an empty userID reads every user's records
func NewPostgres(client postgres.Client, userID string, logger *slog.Logger) *Postgres {
	return &Postgres{
		client: client,
		userID: userID,
		logger: logger.With("component", "task_source"),
	}
}

const tasksQuery = `
	SELECT
		id, title, description, category, priority,
		latitude, longitude, location_name,
		start_date, duration, completed, completed_at, reminder_at,
		subtasks, created_at, updated_at
	FROM tasks
	WHERE ($1 = '' OR user_id = $1)
	ORDER BY created_at
`

// Tasks returns every task of the user, pending and completed
func (p *Postgres) Tasks(ctx context.Context) ([]types.Task, error) {
	rows, err := p.client.Query(ctx, tasksQuery, p.userID)
	if err != nil {
		return nil, fmt.Errorf("task query failed: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		var r taskRow
		err := rows.Scan(
			&r.ID, &r.Title, &r.Description, &r.Category, &r.Priority,
			&r.Latitude, &r.Longitude, &r.LocationName,
			&r.StartDate, &r.Duration, &r.Completed, &r.CompletedAt, &r.ReminderAt,
			&r.Subtasks, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("task scan failed: %w", err)
		}

		task, err := r.task()
		if err != nil {
			// One malformed record must not hide the rest
			p.logger.Warn("Skipping malformed task", "task_id", r.ID, "error", err)
			continue
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("task rows failed: %w", err)
	}

	p.logger.Debug("Tasks loaded", "count", len(tasks))
	return tasks, nil
}

const eventsQuery = `
	SELECT id, title, start_time, end_time, latitude, longitude, location_name
	FROM calendar_events
	WHERE ($1 = '' OR user_id = $1)
	  AND start_time < $3
	  AND end_time > $2
	ORDER BY start_time
`

// Events returns the calendar events overlapping [from, to)
func (p *Postgres) Events(ctx context.Context, from, to time.Time) ([]types.CalendarEvent, error) {
	rows, err := p.client.Query(ctx, eventsQuery, p.userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("event query failed: %w", err)
	}
	defer rows.Close()

	var events []types.CalendarEvent
	for rows.Next() {
		var (
			e        types.CalendarEvent
			lat, lon sql.NullFloat64
			name     sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Start, &e.End, &lat, &lon, &name); err != nil {
			return nil, fmt.Errorf("event scan failed: %w", err)
		}
		e.Location = location(lat, lon, name)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event rows failed: %w", err)
	}
	return events, nil
}

// taskRow mirrors one tasks row with nullable columns
type taskRow struct {
	ID           string
	Title        string
	Description  sql.NullString
	Category     sql.NullString
	Priority     sql.NullString
	Latitude     sql.NullFloat64
	Longitude    sql.NullFloat64
	LocationName sql.NullString
	StartDate    sql.NullTime
	Duration     sql.NullInt64
	Completed    bool
	CompletedAt  sql.NullTime
	ReminderAt   sql.NullTime
	Subtasks     []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r taskRow) task() (types.Task, error) {
	t := types.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description.String,
		Category:    r.Category.String,
		Priority:    types.PriorityMedium,
		Location:    location(r.Latitude, r.Longitude, r.LocationName),
		StartDate:   timePtr(r.StartDate),
		Duration:    int(r.Duration.Int64),
		Completed:   r.Completed,
		CompletedAt: timePtr(r.CompletedAt),
		ReminderAt:  timePtr(r.ReminderAt),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	switch p := types.Priority(r.Priority.String); p {
	case types.PriorityLow, types.PriorityMedium, types.PriorityHigh:
		t.Priority = p
	case "":
	default:
		return types.Task{}, fmt.Errorf("unknown priority %q", p)
	}

	if len(r.Subtasks) > 0 {
		if err := json.Unmarshal(r.Subtasks, &t.Subtasks); err != nil {
			return types.Task{}, fmt.Errorf("failed to unmarshal subtasks: %w", err)
		}
	}
	return t, nil
}

func location(lat, lon sql.NullFloat64, name sql.NullString) *types.Location {
	if !lat.Valid || !lon.Valid {
		return nil
	}
	return &types.Location{Latitude: lat.Float64, Longitude: lon.Float64, Name: name.String}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

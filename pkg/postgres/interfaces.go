package postgres

import (
	"context"
	"database/sql"
)

// Client is the read-only database access the planner needs. Task and
// calendar records are owned by another service; the planner never writes.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error

	// Query executes a query that returns rows
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

	Ping(ctx context.Context) error

	// HealthCheck pings and reads the server version; failures are
	// reported in the status
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icare0/Do-it-repo-sub000/pkg/config"
)

func TestClientBeforeConnect(t *testing.T) {
	cfg := config.NewConfig()
	c := NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	_, err := c.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.Ping(ctx), ErrNotConnected)
	assert.NoError(t, c.Disconnect())

	status, err := c.HealthCheck(ctx)
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, cfg.PostgresDB, status.Database)
	assert.Equal(t, ErrNotConnected.Error(), status.Error)
}

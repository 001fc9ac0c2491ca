package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/icare0/Do-it-repo-sub000/pkg/mqtt"
	"github.com/icare0/Do-it-repo-sub000/pkg/postgres"
	"github.com/icare0/Do-it-repo-sub000/pkg/redis"
)

// Probe reports whether one dependency is usable
type Probe func(ctx context.Context) error

// Checker provides health check functionality for the planner agent
type Checker struct {
	mu      sync.RWMutex
	names   []string
	probes  map[string]Probe
	timeout time.Duration
	logger  *slog.Logger
}

// NewChecker creates a health checker with no registered dependencies
func NewChecker(logger *slog.Logger) *Checker {
	return &Checker{
		probes:  make(map[string]Probe),
		timeout: 2 * time.Second,
		logger:  logger.With("component", "health"),
	}
}

// Register adds or replaces a named dependency probe
func (h *Checker) Register(name string, probe Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.probes[name]; !ok {
		h.names = append(h.names, name)
	}
	h.probes[name] = probe
}

// MQTTProbe checks the broker connection flag without a round trip
func MQTTProbe(client mqtt.Client) Probe {
	return func(ctx context.Context) error {
		if !client.IsConnected() {
			return errors.New("disconnected")
		}
		return nil
	}
}

// RedisProbe pings Redis
func RedisProbe(client redis.Client) Probe {
	return client.Ping
}

// PostgresProbe runs the task database health check and fails when the
// status reports the database unreachable
func PostgresProbe(client postgres.Client) Probe {
	return func(ctx context.Context) error {
		status, err := client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if !status.Connected || status.Error != "" {
			return fmt.Errorf("postgres %s: %s", status.Database, status.Error)
		}
		return nil
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// HandlerFunc returns 200 while the process is alive without checking
// dependencies
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.write(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// DetailedHandlerFunc runs every probe and answers 503 when any fails
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := h.Check(r.Context())

		status := "healthy"
		statusCode := http.StatusOK
		for _, state := range services {
			if state != "connected" {
				status = "degraded"
				statusCode = http.StatusServiceUnavailable
				break
			}
		}

		h.write(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		})
	}
}

// Check runs all probes concurrently, each bounded by the checker timeout
func (h *Checker) Check(ctx context.Context) map[string]string {
	h.mu.RLock()
	names := append([]string(nil), h.names...)
	probes := make([]Probe, len(names))
	for i, name := range names {
		probes[i] = h.probes[name]
	}
	h.mu.RUnlock()

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			if err := probes[i](pctx); err != nil {
				h.logger.Warn("Health probe failed", "service", names[i], "error", err)
				results[i] = "disconnected"
				return
			}
			results[i] = "connected"
		}(i)
	}
	wg.Wait()

	services := make(map[string]string, len(names))
	for i, name := range names {
		services[name] = results[i]
	}
	return services
}

func (h *Checker) write(w http.ResponseWriter, status int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}

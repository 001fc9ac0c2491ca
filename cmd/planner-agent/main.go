package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"golang.org/x/sync/errgroup"

	"github.com/icare0/Do-it-repo-sub000/internal/agent"
	"github.com/icare0/Do-it-repo-sub000/internal/api"
	"github.com/icare0/Do-it-repo-sub000/internal/clock"
	"github.com/icare0/Do-it-repo-sub000/internal/location"
	"github.com/icare0/Do-it-repo-sub000/internal/planner"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/routing"
	"github.com/icare0/Do-it-repo-sub000/internal/tasksource"
	"github.com/icare0/Do-it-repo-sub000/internal/weather"
	"github.com/icare0/Do-it-repo-sub000/pkg/config"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
	"github.com/icare0/Do-it-repo-sub000/pkg/health"
	"github.com/icare0/Do-it-repo-sub000/pkg/kv"
	"github.com/icare0/Do-it-repo-sub000/pkg/mqtt"
	"github.com/icare0/Do-it-repo-sub000/pkg/postgres"
	"github.com/icare0/Do-it-repo-sub000/pkg/redis"
)

func main() {
	// Load configuration with hierarchy: defaults → .env → env → flags
	config.LoadDotEnv()
	cfg := config.NewConfig()
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting planner agent",
		"service_name", cfg.ServiceName,
		"mqtt_broker", cfg.MQTTAddress(),
		"kv_backend", cfg.KVBackend,
		"api_port", cfg.APIPort,
		"log_level", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := run(ctx, cfg, logger, sigChan); err != nil {
		logger.Error("Planner agent failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Planner agent shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, sigChan <-chan os.Signal) error {
	healthChecker := health.NewChecker(logger)

	mqttClient := mqtt.NewClient(cfg, logger)
	healthChecker.Register("mqtt", health.MQTTProbe(mqttClient))

	store, closeStore, err := openStore(ctx, cfg, healthChecker, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	tasks, closeTasks, err := openTasks(ctx, cfg, healthChecker, logger)
	if err != nil {
		return err
	}
	defer closeTasks()

	settings, err := planner.LoadSettings(cfg.PlannerFile)
	if err != nil {
		return fmt.Errorf("failed to load planner settings: %w", err)
	}

	timeManager := clock.NewTimeManager(logger)
	home := geo.Point{Latitude: cfg.Latitude, Longitude: cfg.Longitude}
	tracker := location.NewTracker(timeManager.Now, logger)

	deps := planner.Dependencies{
		Location: location.Chain{tracker, location.Static{Point: home}},
		Weather: weather.NewChain(logger,
			weather.NewSnapshotProvider(store, timeManager.Now),
			weather.NewOpenMeteoClient(cfg.WeatherURL, cfg.RequestTimeout, logger)),
		Calendar: tasks,
		Store:    store,
		Clock:    timeManager,
		Home:     home,
	}
	if cfg.RoutingURL != "" {
		deps.Routing = routing.NewOSRMClient(cfg.RoutingURL, cfg.RequestTimeout, logger)
	}

	orchestrator := planner.New(settings, deps, planner.Tuning{
		ContextMaxAge:       cfg.ContextMaxAge,
		ContextMaxDistanceM: cfg.ContextMaxDistanceM,
		PatternCacheTTL:     cfg.PatternCacheTTL,
		RouteCacheTTL:       cfg.RouteCacheTTL,
	}, logger)

	plannerAgent := agent.NewAgent(agent.Dependencies{
		MQTT:        mqttClient,
		Planner:     orchestrator,
		Tasks:       tasks,
		Store:       store,
		Tracker:     tracker,
		TimeManager: timeManager,
		Clock:       timeManager,
	}, cfg, logger)

	healthServer := newHealthServer(cfg.HealthPort, healthChecker)
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           api.NewServer(orchestrator, tasks, logger).Handler(os.Stdout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return plannerAgent.Start(gctx)
	})
	g.Go(func() error {
		return serve(healthServer, "health", logger)
	})
	g.Go(func() error {
		return serve(apiServer, "api", logger)
	})
	g.Go(func() error {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
		case <-gctx.Done():
		}

		logger.Info("Initiating graceful shutdown")
		if err := plannerAgent.Stop(); err != nil {
			logger.Error("Error stopping agent", "error", err)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), healthServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

// openStore selects the key-value backend for caches and feedback
func openStore(ctx context.Context, cfg *config.Config, checker *health.Checker, logger *slog.Logger) (kv.Store, func(), error) {
	switch cfg.KVBackend {
	case "redis":
		redisClient := redis.NewClient(cfg, logger)
		checker.Register("redis", health.RedisProbe(redisClient))
		return kv.NewRedisStore(redisClient), func() { redisClient.Close() }, nil
	case "sqlite":
		store, err := kv.OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		checker.Register("kv", storeProbe(store))
		return store, func() { store.Close() }, nil
	default:
		logger.Warn("Using in-memory store, feedback and caches are lost on restart")
		return kv.NewMemoryStore(), func() {}, nil
	}
}

// openTasks uses the JSON file when configured and Postgres otherwise
func openTasks(ctx context.Context, cfg *config.Config, checker *health.Checker, logger *slog.Logger) (tasksource.Source, func(), error) {
	if cfg.TasksFile != "" {
		source, err := tasksource.LoadFile(cfg.TasksFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Loaded tasks from file", "path", cfg.TasksFile, "tasks", len(source.TaskList))
		return source, func() {}, nil
	}

	pgClient := postgres.NewClient(cfg, logger)
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pgClient.Connect(connectCtx); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	checker.Register("postgres", health.PostgresProbe(pgClient))

	return tasksource.NewPostgres(pgClient, cfg.UserID, logger), func() { pgClient.Disconnect() }, nil
}

func storeProbe(store kv.Store) health.Probe {
	return func(ctx context.Context) error {
		_, err := store.Get(ctx, "planner:health")
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			return err
		}
		return nil
	}
}

func newHealthServer(port int, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handlers.RecoveryHandler()(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func serve(server *http.Server, name string, logger *slog.Logger) error {
	logger.Info("Starting HTTP server", "server", name, "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

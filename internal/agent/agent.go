// Package agent connects the planner to the MQTT bus: it listens for
// analysis triggers and context updates and publishes planner output.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/icare0/Do-it-repo-sub000/internal/clock"
	"github.com/icare0/Do-it-repo-sub000/internal/jobs"
	"github.com/icare0/Do-it-repo-sub000/internal/location"
	"github.com/icare0/Do-it-repo-sub000/internal/planner"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/internal/tasksource"
	"github.com/icare0/Do-it-repo-sub000/internal/weather"
	"github.com/icare0/Do-it-repo-sub000/pkg/config"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
	"github.com/icare0/Do-it-repo-sub000/pkg/kv"
	"github.com/icare0/Do-it-repo-sub000/pkg/mqtt"
)

// Source names used for triggers the agent raises itself
const (
	SourceSchedule = "schedule"
	SourceMQTT     = "mqtt"
)

// weatherSnapshotTTL bounds how long a pushed observation is kept
const weatherSnapshotTTL = 2 * time.Hour

// Planner is the part of the orchestrator the agent drives
type Planner interface {
	AnalyzeAndOptimize(ctx context.Context, tasks []types.Task, opts planner.Options) *planner.Result
	Dismiss(ctx context.Context, id string) error
	MarkActed(ctx context.Context, id string) error
	InvalidateCache()
	InvalidatePatterns(ctx context.Context)
}

// Dependencies of the agent. Tracker, TimeManager and Store are optional.
type Dependencies struct {
	MQTT        mqtt.Client
	Planner     Planner
	Tasks       tasksource.Source
	Store       kv.Store
	Tracker     *location.Tracker
	TimeManager *clock.TimeManager
	Clock       clock.Clock
}

// Agent runs planner analyses on MQTT triggers and on a schedule
type Agent struct {
	mqtt        mqtt.Client
	planner     Planner
	tasks       tasksource.Source
	store       kv.Store
	tracker     *location.Tracker
	timeManager *clock.TimeManager
	clock       clock.Clock
	runner      *jobs.Runner
	rateLimiter *RateLimiter
	cfg         *config.Config
	logger      *slog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewAgent creates a planner agent
func NewAgent(deps Dependencies, cfg *config.Config, logger *slog.Logger) *Agent {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	return &Agent{
		mqtt:        deps.MQTT,
		planner:     deps.Planner,
		tasks:       deps.Tasks,
		store:       deps.Store,
		tracker:     deps.Tracker,
		timeManager: deps.TimeManager,
		clock:       clk,
		runner:      jobs.NewRunner(cfg.JobQueueSize, logger),
		rateLimiter: NewRateLimiter(clk.Now),
		cfg:         cfg,
		logger:      logger.With("component", "planner_agent"),
		stopChan:    make(chan struct{}),
	}
}

// Start connects, subscribes and blocks until ctx is cancelled
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting planner agent",
		"service_name", a.cfg.ServiceName,
		"analysis_interval", a.cfg.AnalysisInterval,
		"min_analysis_interval_ms", a.cfg.MinAnalysisIntervalMs)

	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	if a.timeManager != nil {
		if err := a.timeManager.ConfigureFromMQTT(a.mqtt); err != nil {
			// Not fatal; the agent runs on wall-clock time
			a.logger.Warn("Failed to subscribe to test mode config", "error", err)
		}
	}

	if err := a.Subscribe(); err != nil {
		return err
	}

	a.runner.Start(ctx)
	if a.cfg.AnalysisInterval > 0 {
		go a.scheduleLoop(ctx)
	}

	a.logger.Info("Planner agent started and ready")

	<-ctx.Done()
	a.logger.Info("Planner agent stopping")
	return nil
}

// Subscribe registers every topic handler
func (a *Agent) Subscribe() error {
	if a.tracker != nil {
		if err := a.tracker.Subscribe(a.mqtt); err != nil {
			return err
		}
	}

	handlers := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{mqtt.TopicWeather, a.handleWeather},
		{mqtt.TopicAnalyze, a.handleAnalyze},
		{mqtt.TopicDismiss, a.handleDismiss},
		{mqtt.TopicActed, a.handleActed},
		{mqtt.TopicInvalidate, a.handleInvalidate},
	}
	for _, h := range handlers {
		if err := a.mqtt.Subscribe(h.topic, 0, h.handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", h.topic, err)
		}
	}
	return nil
}

// Stop finishes the running analysis and disconnects. Calls after the
// first are no-ops.
func (a *Agent) Stop() error {
	a.stopOnce.Do(func() {
		a.logger.Info("Stopping planner agent")

		close(a.stopChan)
		a.runner.Stop()
		a.mqtt.Disconnect()

		a.logger.Info("Planner agent stopped")
	})
	return nil
}

// Trigger queues an analysis for source. Unless forced, a source is
// limited to one run per MinAnalysisIntervalMs; a limited trigger returns
// (nil, nil).
func (a *Agent) Trigger(req AnalyzeRequest) (*jobs.Job, error) {
	source := req.Source
	if source == "" {
		source = SourceMQTT
	}

	minInterval := time.Duration(a.cfg.MinAnalysisIntervalMs) * time.Millisecond
	if req.Force {
		a.rateLimiter.Record(source)
	} else if !a.rateLimiter.Allow(source, minInterval) {
		a.logger.Debug("Analysis trigger rate limited", "source", source)
		return nil, nil
	}

	opts := planner.Options{
		SkipHabits:          req.SkipHabits,
		SkipRoutes:          req.SkipRoutes,
		SkipRecommendations: req.SkipRecommendations,
	}

	job, err := a.runner.Submit("analyze:"+source, func(ctx context.Context) error {
		return a.analyze(ctx, source, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to queue analysis: %w", err)
	}
	return job, nil
}

func (a *Agent) analyze(ctx context.Context, source string, opts planner.Options) error {
	tasks, err := a.tasks.Tasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	result := a.planner.AnalyzeAndOptimize(ctx, tasks, opts)
	now := a.clock.Now()

	var errs []error
	errs = append(errs, a.publish(mqtt.TopicSuggestions, SuggestionsMessage{
		Source:      source,
		GeneratedAt: now,
		Suggestions: result.Suggestions,
		FailedSteps: result.FailedSteps,
	}))
	if !opts.SkipRecommendations {
		errs = append(errs, a.publish(mqtt.TopicRecommendations, RecommendationsMessage{
			Source:          source,
			GeneratedAt:     now,
			Recommendations: result.Recommendations,
		}))
	}
	errs = append(errs, a.publish(mqtt.TopicConflicts, ConflictsMessage{
		Source:      source,
		GeneratedAt: now,
		Conflicts:   result.Conflicts,
	}))

	a.logger.Info("Planner output published",
		"source", source,
		"tasks", len(tasks),
		"suggestions", len(result.Suggestions),
		"recommendations", len(result.Recommendations),
		"conflicts", len(result.Conflicts))

	return errors.Join(errs...)
}

// publish sends a retained JSON message so late subscribers see the latest plan
func (a *Agent) publish(topic string, payload interface{}) error {
	return mqtt.PublishJSON(a.mqtt, topic, 0, true, payload)
}

func (a *Agent) handleAnalyze(msg mqtt.Message) {
	var req AnalyzeRequest
	if len(msg.Payload()) > 0 {
		if err := json.Unmarshal(msg.Payload(), &req); err != nil {
			a.logger.Error("Failed to parse analyze request", "error", err)
			return
		}
	}

	if _, err := a.Trigger(req); err != nil {
		a.logger.Error("Analysis trigger dropped", "source", req.Source, "error", err)
	}
}

func (a *Agent) handleDismiss(msg mqtt.Message) {
	a.handleRecommendation(msg, "dismiss", a.planner.Dismiss)
}

func (a *Agent) handleActed(msg mqtt.Message) {
	a.handleRecommendation(msg, "acted", a.planner.MarkActed)
}

func (a *Agent) handleRecommendation(msg mqtt.Message, action string, apply func(context.Context, string) error) {
	var req RecommendationRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil || req.ID == "" {
		a.logger.Error("Invalid recommendation request", "action", action, "payload", string(msg.Payload()))
		return
	}

	if err := apply(context.Background(), req.ID); err != nil {
		a.logger.Error("Failed to record recommendation feedback",
			"action", action,
			"recommendation_id", req.ID,
			"error", err)
		return
	}
	a.logger.Info("Recommendation feedback recorded", "action", action, "recommendation_id", req.ID)
}

func (a *Agent) handleInvalidate(msg mqtt.Message) {
	var req InvalidateRequest
	if len(msg.Payload()) > 0 {
		if err := json.Unmarshal(msg.Payload(), &req); err != nil {
			a.logger.Error("Failed to parse invalidate request", "error", err)
			return
		}
	}

	switch req.Scope {
	case "context":
		a.planner.InvalidateCache()
	case "patterns":
		a.planner.InvalidatePatterns(context.Background())
	case "", "all":
		a.planner.InvalidateCache()
		a.planner.InvalidatePatterns(context.Background())
	default:
		a.logger.Warn("Unknown invalidate scope", "scope", req.Scope)
		return
	}
	a.logger.Info("Planner caches invalidated", "scope", req.Scope)
}

// handleWeather stores pushed observations for the snapshot provider and
// drops the cached context so the next analysis sees them
func (a *Agent) handleWeather(msg mqtt.Message) {
	if a.store == nil {
		return
	}

	var wm WeatherMessage
	if err := json.Unmarshal(msg.Payload(), &wm); err != nil {
		a.logger.Error("Failed to parse weather message", "error", err)
		return
	}

	observedAt := a.clock.Now()
	if wm.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, wm.Timestamp)
		if err != nil {
			a.logger.Error("Invalid weather timestamp", "timestamp", wm.Timestamp, "error", err)
			return
		}
		observedAt = ts
	}

	snap := weather.Snapshot{
		Weather:    wm.Weather,
		Location:   geo.Point{Latitude: wm.Latitude, Longitude: wm.Longitude},
		ObservedAt: observedAt,
	}
	if err := weather.SaveSnapshot(context.Background(), a.store, snap, weatherSnapshotTTL); err != nil {
		a.logger.Error("Failed to store weather observation", "error", err)
		return
	}

	a.planner.InvalidateCache()
	a.logger.Debug("Weather observation stored",
		"condition", wm.Condition,
		"temperature", wm.Temperature)
}

func (a *Agent) scheduleLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.AnalysisInterval)
	defer ticker.Stop()

	a.logger.Info("Starting periodic analysis", "interval", a.cfg.AnalysisInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopChan:
			return
		case <-ticker.C:
			if _, err := a.Trigger(AnalyzeRequest{Source: SourceSchedule}); err != nil {
				a.logger.Error("Scheduled analysis dropped", "error", err)
			}
		}
	}
}

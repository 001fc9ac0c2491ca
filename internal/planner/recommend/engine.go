// Package recommend produces proactive, dismissible recommendations about
// incomplete or poorly organized tasks.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/icare0/Do-it-repo-sub000/internal/clock"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/habits"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
	"github.com/icare0/Do-it-repo-sub000/pkg/kv"
	"github.com/icare0/Do-it-repo-sub000/pkg/redis"
)

// HabitMatcher compares tasks with learned patterns
type HabitMatcher interface {
	MatchesHabits(task types.Task) habits.HabitMatch
	Pattern(category string) (types.UserPattern, bool)
}

// Engine evaluates the recommendation rules and tracks user feedback
type Engine struct {
	// Configuration
	Expiry             time.Duration // Lifetime of a recommendation and of acted suppression (default: 72h)
	ShortTitleRunes    int           // Titles shorter than this need details (default: 10)
	NearbyRadiusMeters float64       // default: 1km
	TemplateWindow     time.Duration // Tasks younger than this get template offers (default: 1h)
	HabitMismatchBelow float64       // Habit confidence that triggers a mismatch (default: 30)
	ReminderLead       time.Duration // Proposed reminder before start (default: 30m)

	habits    HabitMatcher
	templates []Template
	store     kv.Store
	clock     clock.Clock
	logger    *slog.Logger

	mu        sync.Mutex
	loaded    bool
	dismissed map[string]bool
	acted     map[string]time.Time
	viewed    map[string]time.Time
}

// NewEngine creates a recommendation engine. habits and store may be nil;
// an empty template list selects DefaultTemplates.
func NewEngine(matcher HabitMatcher, templates []Template, store kv.Store, clk clock.Clock, logger *slog.Logger) *Engine {
	if len(templates) == 0 {
		templates = DefaultTemplates()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Engine{
		Expiry:             72 * time.Hour,
		ShortTitleRunes:    10,
		NearbyRadiusMeters: 1000,
		TemplateWindow:     time.Hour,
		HabitMismatchBelow: 30,
		ReminderLead:       30 * time.Minute,
		habits:             matcher,
		templates:          templates,
		store:              store,
		clock:              clk,
		logger:             logger.With("component", "recommendation_engine"),
		dismissed:          make(map[string]bool),
		acted:              make(map[string]time.Time),
		viewed:             make(map[string]time.Time),
	}
}

// Templates returns the active template catalogue
func (e *Engine) Templates() []Template {
	return e.templates
}

// Analyze evaluates every rule over tasks. location enables the nearby
// rule. Dismissed recommendations and those acted on within Expiry are
// left out. Output is ordered by priority, then by rule order.
func (e *Engine) Analyze(ctx context.Context, tasks []types.Task, location *geo.Point) []types.Recommendation {
	now := e.clock.Now()
	e.ensureLoaded(ctx)

	var candidates []types.Recommendation
	for _, task := range tasks {
		if task.Completed {
			continue
		}
		candidates = append(candidates, e.taskRules(task, now)...)
	}
	candidates = append(candidates, e.groupRule(tasks, now)...)
	if location != nil {
		candidates = append(candidates, e.nearbyRule(tasks, *location, now)...)
	}

	e.mu.Lock()
	out := make([]types.Recommendation, 0, len(candidates))
	for _, r := range candidates {
		if e.dismissed[r.ID] {
			continue
		}
		if at, ok := e.acted[r.ID]; ok && now.Sub(at) < e.Expiry {
			continue
		}
		if at, ok := e.viewed[r.ID]; ok {
			viewed := at
			r.ViewedAt = &viewed
		}
		out = append(out, r)
	}
	e.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return priorityRank(out[i].Priority) > priorityRank(out[j].Priority)
	})

	e.logger.Debug("Recommendations evaluated",
		"tasks", len(tasks),
		"candidates", len(candidates),
		"returned", len(out))

	return out
}

// Dismiss permanently suppresses a recommendation id. The persisted set is
// re-read and merged before writing; when it cannot be read the write is
// skipped so earlier dismissals are never overwritten.
func (e *Engine) Dismiss(ctx context.Context, id string) error {
	e.ensureLoaded(ctx)

	e.mu.Lock()
	e.dismissed[id] = true
	e.mu.Unlock()

	e.logger.Info("Recommendation dismissed", "id", id)

	if e.store == nil {
		return nil
	}

	var stored []string
	if err := kv.GetJSON(ctx, e.store, redis.DismissedRecommendationsKey(), &stored); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("failed to read dismissed recommendations: %w", err)
	}

	e.mu.Lock()
	for _, d := range stored {
		e.dismissed[d] = true
	}
	ids := make([]string, 0, len(e.dismissed))
	for d := range e.dismissed {
		ids = append(ids, d)
	}
	e.mu.Unlock()

	sort.Strings(ids)
	if err := kv.SetJSON(ctx, e.store, redis.DismissedRecommendationsKey(), ids, 0); err != nil {
		return fmt.Errorf("failed to persist dismissal: %w", err)
	}
	return nil
}

// MarkActed suppresses a recommendation id for the expiry window. Like
// Dismiss, it merges with the persisted map and skips the write when that
// map cannot be read.
func (e *Engine) MarkActed(ctx context.Context, id string) error {
	e.ensureLoaded(ctx)
	now := e.clock.Now()

	e.mu.Lock()
	e.acted[id] = now
	e.mu.Unlock()

	e.logger.Info("Recommendation acted on", "id", id)

	if e.store == nil {
		return nil
	}

	var stored map[string]time.Time
	if err := kv.GetJSON(ctx, e.store, redis.ActedRecommendationsKey(), &stored); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("failed to read acted recommendations: %w", err)
	}

	e.mu.Lock()
	for k, at := range stored {
		if existing, ok := e.acted[k]; !ok || at.After(existing) {
			e.acted[k] = at
		}
	}
	snapshot := make(map[string]time.Time, len(e.acted))
	for k, at := range e.acted {
		if now.Sub(at) < e.Expiry {
			snapshot[k] = at
		} else {
			delete(e.acted, k)
		}
	}
	e.mu.Unlock()

	if err := kv.SetJSON(ctx, e.store, redis.ActedRecommendationsKey(), snapshot, e.Expiry); err != nil {
		return fmt.Errorf("failed to persist acted recommendation: %w", err)
	}
	return nil
}

// MarkViewed records that the user has seen a recommendation
func (e *Engine) MarkViewed(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.viewed[id]; !ok {
		e.viewed[id] = e.clock.Now()
	}
}

// IsDismissed reports whether id has been dismissed
func (e *Engine) IsDismissed(ctx context.Context, id string) bool {
	e.ensureLoaded(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dismissed[id]
}

// ensureLoaded reads persisted feedback once. Read failures are logged and
// the engine continues with what it holds in memory.
func (e *Engine) ensureLoaded(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded || e.store == nil {
		return
	}

	var dismissed []string
	if err := kv.GetJSON(ctx, e.store, redis.DismissedRecommendationsKey(), &dismissed); err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			e.logger.Warn("Failed to load dismissed recommendations", "error", err)
			return
		}
	}
	var acted map[string]time.Time
	if err := kv.GetJSON(ctx, e.store, redis.ActedRecommendationsKey(), &acted); err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			e.logger.Warn("Failed to load acted recommendations", "error", err)
			return
		}
	}

	for _, id := range dismissed {
		e.dismissed[id] = true
	}
	for id, at := range acted {
		if existing, ok := e.acted[id]; !ok || at.After(existing) {
			e.acted[id] = at
		}
	}
	e.loaded = true

	e.logger.Debug("Recommendation feedback loaded",
		"dismissed", len(dismissed),
		"acted", len(acted))
}

// newRecommendation fills the common fields
func (e *Engine) newRecommendation(kind types.RecommendationType, key []string, priority types.Priority, now time.Time) types.Recommendation {
	expires := now.Add(e.Expiry)
	return types.Recommendation{
		ID:          types.StableID(string(kind), key...),
		Type:        kind,
		Priority:    priority,
		Dismissable: true,
		CreatedAt:   now,
		ExpiresAt:   &expires,
	}
}

func priorityRank(p types.Priority) int {
	switch p {
	case types.PriorityHigh:
		return 3
	case types.PriorityMedium:
		return 2
	case types.PriorityLow:
		return 1
	default:
		return 0
	}
}

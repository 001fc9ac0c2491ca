// Package planner is the entry point of the task scheduling and
// optimization subsystem. The Orchestrator sequences habit learning,
// context gathering, conflict detection, slot scoring, route optimization
// and recommendations into one ranked result.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/icare0/Do-it-repo-sub000/internal/clock"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/conflicts"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/gatherer"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/habits"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/recommend"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/routing"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/scoring"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
	"github.com/icare0/Do-it-repo-sub000/pkg/kv"
)

// Step names reported in Result.FailedSteps
const (
	StepHabits          = "habits"
	StepContext         = "context"
	StepConflicts       = "conflicts"
	StepWeather         = "weather"
	StepEnergy          = "energy"
	StepRoutes          = "routes"
	StepRecommendations = "recommendations"
)

// Dependencies are the external capabilities the planner consumes.
// Every field except Home is optional.
type Dependencies struct {
	Location gatherer.LocationProvider
	Weather  gatherer.WeatherProvider
	Calendar gatherer.CalendarSource
	Routing  routing.Provider
	Store    kv.Store
	Clock    clock.Clock
	Home     geo.Point
}

// Tuning holds cache lifetimes and thresholds; zero values keep the defaults
type Tuning struct {
	ContextMaxAge       time.Duration
	ContextMaxDistanceM float64
	PatternCacheTTL     time.Duration
	RouteCacheTTL       time.Duration
}

// Options select the optional parts of an analysis
type Options struct {
	SkipHabits          bool `json:"skipHabits,omitempty"`
	SkipRoutes          bool `json:"skipRoutes,omitempty"`
	SkipRecommendations bool `json:"skipRecommendations,omitempty"`
}

// Result is the best-effort outcome of one analysis
type Result struct {
	Suggestions     []types.Suggestion        `json:"suggestions"`
	Recommendations []types.Recommendation    `json:"recommendations"`
	Patterns        []types.UserPattern       `json:"patterns"`
	Conflicts       []types.Conflict          `json:"conflicts"`
	Context         types.OptimizationContext `json:"context"`
	FailedSteps     []string                  `json:"failedSteps,omitempty"`
}

// Orchestrator owns one context cache and the planner components
type Orchestrator struct {
	// WeatherConfidence is the confidence of weather-driven reschedules (default: 70)
	WeatherConfidence float64

	learner  *habits.Learner
	builder  *gatherer.Builder
	detector *conflicts.Detector
	scorer   *scoring.Scorer
	router   *routing.Optimizer
	engine   *recommend.Engine
	clock    clock.Clock
	logger   *slog.Logger
}

// New wires the planner components from settings and dependencies
func New(settings Settings, deps Dependencies, tuning Tuning, logger *slog.Logger) *Orchestrator {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	learner := habits.NewLearner(deps.Store, clk.Now, logger)
	if tuning.PatternCacheTTL > 0 {
		learner.CacheTTL = tuning.PatternCacheTTL
	}

	builder := gatherer.NewBuilder(deps.Location, deps.Weather, deps.Calendar, clk, deps.Home, logger)
	if tuning.ContextMaxAge > 0 {
		builder.MaxAge = tuning.ContextMaxAge
	}
	if tuning.ContextMaxDistanceM > 0 {
		builder.MaxDistanceMeters = tuning.ContextMaxDistanceM
	}

	router := routing.NewOptimizer(deps.Routing, deps.Store, logger)
	if tuning.RouteCacheTTL > 0 {
		router.CacheTTL = tuning.RouteCacheTTL
	}

	scorer := scoring.NewScorer(settings.Weights, learner, logger)

	return &Orchestrator{
		WeatherConfidence: 70,
		learner:           learner,
		builder:           builder,
		detector:          conflicts.NewDetector(scorer, logger),
		scorer:            scorer,
		router:            router,
		engine:            recommend.NewEngine(learner, settings.Templates, deps.Store, clk, logger),
		clock:             clk,
		logger:            logger.With("component", "orchestrator"),
	}
}

// AnalyzeAndOptimize runs every planner step over tasks and returns the
// ranked result. A failing step is logged and listed in FailedSteps; the
// remaining steps still run.
func (o *Orchestrator) AnalyzeAndOptimize(ctx context.Context, tasks []types.Task, opts Options) *Result {
	started := time.Now()
	result := &Result{}

	if !opts.SkipHabits {
		o.runStep(result, StepHabits, func() error {
			result.Patterns = o.learner.Analyze(ctx, tasks)
			return nil
		})
	}

	haveContext := o.runStep(result, StepContext, func() error {
		result.Context = o.builder.Build(ctx, tasks)
		return nil
	})
	if !haveContext {
		// Scoring needs a context; continue with a neutral one
		now := o.clock.Now()
		result.Context = types.OptimizationContext{
			CurrentTime: now,
			Weather:     gatherer.FallbackWeather,
			UserEnergy:  types.EnergyForHour(float64(now.Hour())),
			Tasks:       tasks,
			CapturedAt:  now,
		}
	}
	octx := result.Context

	var suggestions []types.Suggestion

	o.runStep(result, StepConflicts, func() error {
		result.Conflicts = o.detector.Detect(tasks, octx)
		suggestions = append(suggestions, conflictSuggestions(result.Conflicts)...)
		return nil
	})

	o.runStep(result, StepWeather, func() error {
		suggestions = append(suggestions, o.weatherSuggestions(tasks, octx)...)
		return nil
	})

	o.runStep(result, StepEnergy, func() error {
		suggestions = append(suggestions, o.energySuggestions(tasks, octx)...)
		return nil
	})

	if !opts.SkipRoutes {
		o.runStep(result, StepRoutes, func() error {
			if s := o.router.Optimize(ctx, routeStops(tasks, octx), octx); s != nil {
				suggestions = append(suggestions, *s)
			}
			return nil
		})
	}

	if !opts.SkipRecommendations {
		o.runStep(result, StepRecommendations, func() error {
			here := octx.UserLocation
			result.Recommendations = o.engine.Analyze(ctx, tasks, &here)
			return nil
		})
	}

	RankSuggestions(suggestions)
	result.Suggestions = suggestions

	o.logger.Info("Analysis complete",
		"tasks", len(tasks),
		"suggestions", len(result.Suggestions),
		"recommendations", len(result.Recommendations),
		"conflicts", len(result.Conflicts),
		"failed_steps", len(result.FailedSteps),
		"duration_ms", time.Since(started).Milliseconds())

	return result
}

// OptimizeRoutes returns tasks with the pending located ones in
// nearest-neighbor order from the current position
func (o *Orchestrator) OptimizeRoutes(ctx context.Context, tasks []types.Task) []types.Task {
	octx := o.builder.Build(ctx, tasks)
	return o.router.Reorder(tasks, octx)
}

// FindBestTimeSlot returns the best remaining slot today for task
func (o *Orchestrator) FindBestTimeSlot(ctx context.Context, task types.Task, tasks []types.Task) *types.TimeSlot {
	octx := o.builder.Build(ctx, tasks)
	return o.scorer.FindOptimalSlot(task, octx)
}

// Route answers a route query through the cached routing layer
func (o *Orchestrator) Route(ctx context.Context, waypoints []geo.Point) routing.RouteInfo {
	return o.router.Route(ctx, waypoints)
}

// InvalidateCache drops the cached context. Call it after task changes
// that should affect the next scoring pass.
func (o *Orchestrator) InvalidateCache() {
	o.builder.Invalidate()
}

// InvalidatePatterns drops learned patterns so they are recomputed
func (o *Orchestrator) InvalidatePatterns(ctx context.Context) {
	o.learner.Invalidate(ctx)
}

// RefreshContext rebuilds the context unconditionally
func (o *Orchestrator) RefreshContext(ctx context.Context, tasks []types.Task) types.OptimizationContext {
	return o.builder.Refresh(ctx, tasks)
}

// Dismiss permanently hides a recommendation
func (o *Orchestrator) Dismiss(ctx context.Context, id string) error {
	return o.engine.Dismiss(ctx, id)
}

// MarkActed hides a recommendation for its expiry window
func (o *Orchestrator) MarkActed(ctx context.Context, id string) error {
	return o.engine.MarkActed(ctx, id)
}

// MarkViewed records that a recommendation was shown
func (o *Orchestrator) MarkViewed(id string) {
	o.engine.MarkViewed(id)
}

// Patterns returns the learned patterns
func (o *Orchestrator) Patterns() []types.UserPattern {
	return o.learner.Patterns()
}

// Templates returns the active template catalogue
func (o *Orchestrator) Templates() []recommend.Template {
	return o.engine.Templates()
}

// runStep executes fn, converting errors and panics into a failed step.
// Returns true when the step succeeded.
func (o *Orchestrator) runStep(result *Result, name string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Planner step panicked", "step", name, "panic", fmt.Sprint(r))
			result.FailedSteps = append(result.FailedSteps, name)
			ok = false
		}
	}()

	if err := fn(); err != nil {
		o.logger.Error("Planner step failed", "step", name, "error", err)
		result.FailedSteps = append(result.FailedSteps, name)
		return false
	}
	return true
}

// conflictSuggestions turns conflict resolutions into reschedule suggestions
func conflictSuggestions(found []types.Conflict) []types.Suggestion {
	var out []types.Suggestion
	for _, c := range found {
		res := c.SuggestedResolution
		if res == nil {
			continue
		}
		start := res.NewStart
		out = append(out, types.Suggestion{
			ID:              types.StableID(string(types.SuggestionReschedule), c.ID),
			Type:            types.SuggestionReschedule,
			TaskIDs:         []string{res.TaskID},
			Title:           "Resolve scheduling conflict",
			Reason:          fmt.Sprintf("%s. %s.", c.Description, res.Reason),
			Confidence:      res.Confidence,
			Priority:        c.Severity,
			ProposedChanges: []types.Change{{TaskID: res.TaskID, StartDate: &start}},
			Impact:          types.Impact{ConflictsResolved: 1},
		})
	}
	return out
}

// weatherSuggestions pushes today's outdoor tasks by a day under bad weather
func (o *Orchestrator) weatherSuggestions(tasks []types.Task, octx types.OptimizationContext) []types.Suggestion {
	condition := octx.Weather.Condition
	if !condition.IsBad() {
		return nil
	}

	priority := types.SeverityMedium
	if condition == types.WeatherStorm {
		priority = types.SeverityHigh
	}

	var out []types.Suggestion
	for _, t := range tasks {
		if !t.IsScheduled() || !sameDay(*t.StartDate, octx.CurrentTime) || !scoring.IsOutdoor(t.Category) {
			continue
		}
		tomorrow := t.StartDate.AddDate(0, 0, 1)
		out = append(out, types.Suggestion{
			ID:              types.StableID("weather", t.ID, string(condition)),
			Type:            types.SuggestionReschedule,
			TaskIDs:         []string{t.ID},
			Title:           fmt.Sprintf("Move %q to tomorrow", t.Title),
			Reason:          fmt.Sprintf("Expected %s today is bad for an outdoor task", condition),
			Confidence:      o.WeatherConfidence,
			Priority:        priority,
			ProposedChanges: []types.Change{{TaskID: t.ID, StartDate: &tomorrow}},
		})
	}
	return out
}

// energySuggestions moves high-priority evening tasks to a better slot today
func (o *Orchestrator) energySuggestions(tasks []types.Task, octx types.OptimizationContext) []types.Suggestion {
	var out []types.Suggestion
	for _, t := range tasks {
		if !t.IsScheduled() || t.Priority != types.PriorityHigh || t.StartDate.Hour() < 18 {
			continue
		}
		if !sameDay(*t.StartDate, octx.CurrentTime) {
			continue
		}

		slot := o.scorer.FindOptimalSlot(t, octx)
		if slot == nil {
			continue
		}
		current := o.scorer.Score(t, *t.StartDate, octx)
		if slot.Score <= current {
			continue
		}

		start := slot.Start
		out = append(out, types.Suggestion{
			ID:              types.StableID("energy", t.ID),
			Type:            types.SuggestionReschedule,
			TaskIDs:         []string{t.ID},
			Title:           fmt.Sprintf("Do %q earlier", t.Title),
			Reason:          fmt.Sprintf("Important tasks go better with more energy; %s scores higher than the evening", start.Format("15:04")),
			Confidence:      scoring.Confidence(slot.Score),
			Priority:        types.SeverityMedium,
			ProposedChanges: []types.Change{{TaskID: t.ID, StartDate: &start}},
		})
	}
	return out
}

// routeStops lists the pending located tasks to order: today's scheduled
// ones by start time, then undated ones in input order
func routeStops(tasks []types.Task, octx types.OptimizationContext) []types.Task {
	var today, undated []types.Task
	for _, t := range tasks {
		if t.Completed || t.Location == nil {
			continue
		}
		switch {
		case t.StartDate == nil:
			undated = append(undated, t)
		case sameDay(*t.StartDate, octx.CurrentTime):
			today = append(today, t)
		}
	}
	sort.SliceStable(today, func(i, j int) bool {
		return today[i].StartDate.Before(*today[j].StartDate)
	})
	return append(today, undated...)
}

// RankSuggestions orders suggestions by priority, then by descending confidence
func RankSuggestions(s []types.Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		ri, rj := s[i].Priority.Rank(), s[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return s[i].Confidence > s[j].Confidence
	})
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

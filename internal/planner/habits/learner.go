// Package habits mines completed-task history into per-category behavioral patterns.
package habits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
	"github.com/icare0/Do-it-repo-sub000/pkg/kv"
	"github.com/icare0/Do-it-repo-sub000/pkg/redis"
)

// HabitMatch is the result of comparing a task against its category pattern
type HabitMatch struct {
	Matches     bool     `json:"matches"`
	Known       bool     `json:"known"` // false when the category has no reliable pattern
	Confidence  float64  `json:"confidence"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// persistedPatterns is the KV blob for the pattern cache
type persistedPatterns struct {
	ComputedAt time.Time           `json:"computedAt"`
	Patterns   []types.UserPattern `json:"patterns"`
}

// Learner groups completions by category and derives UserPatterns
type Learner struct {
	// Configuration
	CacheTTL             time.Duration // Lifetime of computed patterns (default: 24h)
	ClusterRadiusMeters  float64       // Join radius for frequent-location clusters (default: 200m)
	HabitRadiusMeters    float64       // Max distance from a cluster to count as habitual (default: 500m)
	DurationToleranceMin float64       // Allowed |duration - average| (default: 15 min)
	MatchThreshold       float64       // Confidence required to match (default: 50)
	MaxPreferredDays     int           // default: 2
	MaxPreferredHours    int           // default: 3
	MaxFrequentLocations int           // default: 3

	store  kv.Store
	now    func() time.Time
	logger *slog.Logger

	mu         sync.RWMutex
	patterns   []types.UserPattern
	byCategory map[string]int
	computedAt time.Time
}

// NewLearner creates a learner with default settings.
// store may be nil, in which case patterns are only cached in memory.
func NewLearner(store kv.Store, now func() time.Time, logger *slog.Logger) *Learner {
	if now == nil {
		now = time.Now
	}
	return &Learner{
		CacheTTL:             24 * time.Hour,
		ClusterRadiusMeters:  200,
		HabitRadiusMeters:    500,
		DurationToleranceMin: 15,
		MatchThreshold:       50,
		MaxPreferredDays:     2,
		MaxPreferredHours:    3,
		MaxFrequentLocations: 3,
		store:                store,
		now:                  now,
		logger:               logger.With("component", "habit_learner"),
		byCategory:           make(map[string]int),
	}
}

// Analyze returns the patterns for the task history. Within CacheTTL of the
// previous computation the cached patterns are returned without recomputation.
func (l *Learner) Analyze(ctx context.Context, tasks []types.Task) []types.UserPattern {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.freshLocked(now) {
		l.logger.Debug("Returning cached patterns", "categories", len(l.patterns))
		return clonePatterns(l.patterns)
	}

	if cached, ok := l.loadPersisted(ctx, now); ok {
		l.setLocked(cached.Patterns, cached.ComputedAt)
		l.logger.Debug("Loaded persisted patterns", "categories", len(cached.Patterns))
		return clonePatterns(l.patterns)
	}

	patterns := l.compute(tasks)
	l.setLocked(patterns, now)
	l.persist(ctx, persistedPatterns{ComputedAt: now, Patterns: patterns})

	l.logger.Info("Habit patterns computed",
		"tasks", len(tasks),
		"categories", len(patterns))

	return clonePatterns(patterns)
}

// Invalidate drops cached patterns so the next Analyze recomputes
func (l *Learner) Invalidate(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.patterns = nil
	l.byCategory = make(map[string]int)
	l.computedAt = time.Time{}

	if l.store != nil {
		if err := l.store.Delete(ctx, redis.PatternsKey()); err != nil {
			l.logger.Warn("Failed to delete persisted patterns", "error", err)
		}
	}
}

// Pattern returns the learned pattern for a category
func (l *Learner) Pattern(category string) (types.UserPattern, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx, ok := l.byCategory[normalizeCategory(category)]
	if !ok {
		return types.UserPattern{}, false
	}
	return l.patterns[idx], true
}

// Patterns returns every learned pattern
func (l *Learner) Patterns() []types.UserPattern {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return clonePatterns(l.patterns)
}

// MatchesHabits compares a task against its category pattern using four
// independent checks: weekday, hour, duration and location
func (l *Learner) MatchesHabits(task types.Task) HabitMatch {
	pattern, ok := l.Pattern(task.Category)
	if !ok || !pattern.IsReliable() {
		category := task.Category
		if category == "" {
			category = "uncategorized"
		}
		return HabitMatch{
			Confidence: 0,
			Suggestions: []string{fmt.Sprintf(
				"Not enough history for %s tasks yet (%d completed tasks needed)", category, types.MinSampleSize)},
		}
	}

	var passed int
	var suggestions []string

	if task.StartDate != nil && pattern.PrefersDay(task.StartDate.Weekday()) {
		passed++
	} else if len(pattern.PreferredDays) > 0 {
		suggestions = append(suggestions, fmt.Sprintf("You usually do %s tasks on %s", pattern.Category, formatDays(pattern.PreferredDays)))
	}

	if task.StartDate != nil && pattern.PrefersHour(task.StartDate.Hour()) {
		passed++
	} else if len(pattern.PreferredHours) > 0 {
		suggestions = append(suggestions, fmt.Sprintf("You usually do %s tasks around %s", pattern.Category, formatHours(pattern.PreferredHours)))
	}

	duration := task.EffectiveDuration().Minutes()
	if abs(duration-pattern.AverageDuration) <= l.DurationToleranceMin {
		passed++
	} else {
		suggestions = append(suggestions, fmt.Sprintf("%s tasks usually take about %.0f minutes", pattern.Category, pattern.AverageDuration))
	}

	if task.Location != nil && l.nearCluster(task.Location.Point(), pattern.FrequentLocations) {
		passed++
	} else if len(pattern.FrequentLocations) > 0 {
		suggestions = append(suggestions, fmt.Sprintf("You usually do %s tasks at %s", pattern.Category, clusterLabel(pattern.FrequentLocations[0])))
	}

	confidence := float64(passed) / 4 * 100
	return HabitMatch{
		Matches:     confidence >= l.MatchThreshold,
		Known:       true,
		Confidence:  confidence,
		Suggestions: suggestions,
	}
}

func (l *Learner) nearCluster(p geo.Point, clusters []types.LocationCluster) bool {
	for _, c := range clusters {
		if geo.Haversine(p, geo.Point{Latitude: c.Latitude, Longitude: c.Longitude}) <= l.HabitRadiusMeters {
			return true
		}
	}
	return false
}

// compute derives patterns from completed tasks; categories below
// MinSampleSize are skipped
func (l *Learner) compute(tasks []types.Task) []types.UserPattern {
	totals := make(map[string]int)
	for _, t := range tasks {
		if c := normalizeCategory(t.Category); c != "" {
			totals[c]++
		}
	}

	// Group completions by category, keeping first-seen category order
	var categories []string
	grouped := make(map[string][]types.TaskCompletion)
	for _, c := range types.CompletionsFromTasks(tasks) {
		key := normalizeCategory(c.Category)
		if key == "" {
			continue
		}
		if _, seen := grouped[key]; !seen {
			categories = append(categories, key)
		}
		grouped[key] = append(grouped[key], c)
	}

	var patterns []types.UserPattern
	for _, category := range categories {
		completions := grouped[category]
		if len(completions) < types.MinSampleSize {
			l.logger.Debug("Skipping category with insufficient samples",
				"category", category,
				"samples", len(completions))
			continue
		}
		patterns = append(patterns, l.buildPattern(category, completions, totals[category]))
	}
	return patterns
}

func (l *Learner) buildPattern(category string, completions []types.TaskCompletion, total int) types.UserPattern {
	days := make([]int, len(completions))
	hours := make([]int, len(completions))
	var durationSum float64
	var durationCount int
	for i, c := range completions {
		days[i] = int(c.DayOfWeek)
		hours[i] = c.HourOfDay
		if c.Duration > 0 {
			durationSum += float64(c.Duration)
			durationCount++
		}
	}

	preferredDays := make([]time.Weekday, 0, l.MaxPreferredDays)
	for _, d := range topFrequent(days, l.MaxPreferredDays) {
		preferredDays = append(preferredDays, time.Weekday(d))
	}
	preferredHours := topFrequent(hours, l.MaxPreferredHours)

	var avgDuration float64
	if durationCount > 0 {
		avgDuration = durationSum / float64(durationCount)
	}

	completionRate := 1.0
	if total > 0 {
		completionRate = float64(len(completions)) / float64(total)
	}

	return types.UserPattern{
		Category:          category,
		PreferredDays:     preferredDays,
		PreferredHours:    preferredHours,
		AverageDuration:   avgDuration,
		FrequentLocations: l.clusterLocations(completions),
		CompletionRate:    completionRate,
		EnergyLevel:       energyForHours(preferredHours),
		SampleSize:        len(completions),
	}
}

// locationCluster accumulates members while clustering
type locationCluster struct {
	members []geo.Point
	center  geo.Point
	name    string
}

// clusterLocations runs greedy single-link clustering in input order: each
// completion joins the first cluster whose centroid is within the radius,
// otherwise it starts a new one. The result depends on input order.
func (l *Learner) clusterLocations(completions []types.TaskCompletion) []types.LocationCluster {
	var clusters []*locationCluster

	for _, c := range completions {
		if c.Location == nil {
			continue
		}
		p := c.Location.Point()

		joined := false
		for _, cl := range clusters {
			if geo.Haversine(cl.center, p) <= l.ClusterRadiusMeters {
				cl.members = append(cl.members, p)
				cl.center = geo.Centroid(cl.members)
				if cl.name == "" {
					cl.name = c.Location.Name
				}
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, &locationCluster{
				members: []geo.Point{p},
				center:  p,
				name:    c.Location.Name,
			})
		}
	}

	// Largest first; ties keep creation order
	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].members) > len(clusters[j].members)
	})

	if len(clusters) > l.MaxFrequentLocations {
		clusters = clusters[:l.MaxFrequentLocations]
	}

	out := make([]types.LocationCluster, 0, len(clusters))
	for _, cl := range clusters {
		out = append(out, types.LocationCluster{
			Latitude:  cl.center.Latitude,
			Longitude: cl.center.Longitude,
			Name:      cl.name,
			Frequency: len(cl.members),
		})
	}
	return out
}

func (l *Learner) freshLocked(now time.Time) bool {
	return !l.computedAt.IsZero() && now.Sub(l.computedAt) < l.CacheTTL
}

func (l *Learner) setLocked(patterns []types.UserPattern, computedAt time.Time) {
	l.patterns = patterns
	l.computedAt = computedAt
	l.byCategory = make(map[string]int, len(patterns))
	for i, p := range patterns {
		l.byCategory[p.Category] = i
	}
}

func (l *Learner) loadPersisted(ctx context.Context, now time.Time) (persistedPatterns, bool) {
	var cached persistedPatterns
	if l.store == nil {
		return cached, false
	}
	if err := kv.GetJSON(ctx, l.store, redis.PatternsKey(), &cached); err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			l.logger.Warn("Failed to read persisted patterns, recomputing", "error", err)
		}
		return cached, false
	}
	if cached.ComputedAt.IsZero() || now.Sub(cached.ComputedAt) >= l.CacheTTL {
		return cached, false
	}
	return cached, true
}

func (l *Learner) persist(ctx context.Context, blob persistedPatterns) {
	if l.store == nil {
		return
	}
	if err := kv.SetJSON(ctx, l.store, redis.PatternsKey(), blob, l.CacheTTL); err != nil {
		l.logger.Warn("Failed to persist patterns", "error", err)
	}
}

// topFrequent returns up to n values ordered by descending frequency;
// ties keep first-seen order
func topFrequent(values []int, n int) []int {
	counts := make(map[int]int)
	var order []int
	for _, v := range values {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	return order
}

// energyForHours maps the mean of the preferred hours to an energy band
func energyForHours(hours []int) types.EnergyLevel {
	if len(hours) == 0 {
		return types.EnergyLow
	}
	var sum int
	for _, h := range hours {
		sum += h
	}
	return types.EnergyForHour(float64(sum) / float64(len(hours)))
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

func clonePatterns(in []types.UserPattern) []types.UserPattern {
	if in == nil {
		return nil
	}
	out := make([]types.UserPattern, len(in))
	copy(out, in)
	return out
}

func formatDays(days []time.Weekday) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}
	return strings.Join(names, " and ")
}

func formatHours(hours []int) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = fmt.Sprintf("%02d:00", h)
	}
	return strings.Join(parts, ", ")
}

func clusterLabel(c types.LocationCluster) string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

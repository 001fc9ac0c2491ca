// Package routing orders located tasks into shorter trips and estimates
// travel between them.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
	"github.com/icare0/Do-it-repo-sub000/pkg/kv"
	"github.com/icare0/Do-it-repo-sub000/pkg/redis"
)

// Step is one maneuver of a route
type Step struct {
	Instruction     string  `json:"instruction"`
	DistanceMeters  float64 `json:"distance"`
	DurationSeconds float64 `json:"duration"`
}

// RouteInfo describes travel through a list of waypoints
type RouteInfo struct {
	DistanceMeters  float64     `json:"distance"`
	DurationSeconds float64     `json:"duration"`
	Geometry        []geo.Point `json:"geometry,omitempty"`
	Steps           []Step      `json:"steps,omitempty"`
	Source          string      `json:"source"`
}

// Provider computes road routes
type Provider interface {
	Route(ctx context.Context, waypoints []geo.Point) (RouteInfo, error)
}

// SourceEstimate marks routes computed without a provider
const SourceEstimate = "estimate"

// Optimizer proposes visiting order changes and answers route queries
type Optimizer struct {
	// Configuration
	MinSavingMeters   float64       // Smallest saving worth a suggestion (default: 1000m)
	MetersPerMinute   float64       // Converts saved distance to saved time (default: 500, ~30 km/h)
	DetourFactor      float64       // Road distance over straight line when estimating (default: 1.3)
	FallbackSpeedKmh  float64       // Speed assumed when estimating (default: 25 km/h)
	CacheTTL          time.Duration // Route cache lifetime (default: 1h)
	SuggestConfidence float64       // Confidence of reorder suggestions (default: 80)

	provider Provider
	store    kv.Store
	logger   *slog.Logger
}

// NewOptimizer creates a route optimizer. provider and store may be nil.
func NewOptimizer(provider Provider, store kv.Store, logger *slog.Logger) *Optimizer {
	return &Optimizer{
		MinSavingMeters:   1000,
		MetersPerMinute:   500,
		DetourFactor:      1.3,
		FallbackSpeedKmh:  25,
		CacheTTL:          time.Hour,
		SuggestConfidence: 80,
		provider:          provider,
		store:             store,
		logger:            logger.With("component", "route_optimizer"),
	}
}

// Plan returns a nearest-neighbor visiting order of points starting from
// start, as indices into points. Ties go to the lower index.
func Plan(start geo.Point, points []geo.Point) []int {
	visited := make([]bool, len(points))
	order := make([]int, 0, len(points))
	current := start

	for len(order) < len(points) {
		best := -1
		bestDist := 0.0
		for i, p := range points {
			if visited[i] {
				continue
			}
			d := geo.Haversine(current, p)
			if best < 0 || d < bestDist {
				best, bestDist = i, d
			}
		}
		visited[best] = true
		order = append(order, best)
		current = points[best]
	}
	return order
}

// DistanceMatrix returns pairwise haversine distances in meters
func DistanceMatrix(points []geo.Point) [][]float64 {
	n := len(points)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := geo.Haversine(points[i], points[j])
			matrix[i][j] = d
			matrix[j][i] = d
		}
	}
	return matrix
}

// Optimize proposes a reorder of the pending located tasks when the
// nearest-neighbor order saves at least MinSavingMeters over the current
// order. Distances are between consecutive stops; the leg from the user to
// the first stop is not counted. Returns nil when no worthwhile change exists.
func (o *Optimizer) Optimize(ctx context.Context, tasks []types.Task, octx types.OptimizationContext) *types.Suggestion {
	stops := locatedPending(tasks)
	if len(stops) < 2 {
		return nil
	}

	order, baseline, proposed := chooseOrder(octx.UserLocation, stopPoints(stops))
	saved := baseline - proposed
	if saved < o.MinSavingMeters {
		o.logger.Debug("Route already efficient",
			"stops", len(stops),
			"baseline_m", int(baseline),
			"saved_m", int(saved))
		return nil
	}

	ids := make([]string, len(order))
	changes := make([]types.Change, len(order))
	for pos, idx := range order {
		ids[pos] = stops[idx].ID
		position := pos
		changes[pos] = types.Change{TaskID: stops[idx].ID, Position: &position}
	}

	priority := types.SeverityMedium
	if saved >= 5*o.MinSavingMeters {
		priority = types.SeverityHigh
	}

	timeSaved := int(saved / o.MetersPerMinute)
	o.logger.Info("Route reorder proposed",
		"stops", len(stops),
		"saved_m", int(saved),
		"saved_min", timeSaved)

	return &types.Suggestion{
		ID:              types.StableID(string(types.SuggestionReorder), ids...),
		Type:            types.SuggestionReorder,
		TaskIDs:         ids,
		Title:           fmt.Sprintf("Reorder %d stops", len(ids)),
		Reason:          fmt.Sprintf("Visiting in this order saves %s and about %d minutes", humanize.SIWithDigits(saved, 1, "m"), timeSaved),
		Confidence:      o.SuggestConfidence,
		Priority:        priority,
		ProposedChanges: changes,
		Impact: types.Impact{
			TimeSavedMinutes:    timeSaved,
			DistanceSavedMeters: saved,
		},
	}
}

// Reorder returns tasks with the pending located ones first, in
// nearest-neighbor order from the user, followed by the rest in input order
func (o *Optimizer) Reorder(tasks []types.Task, octx types.OptimizationContext) []types.Task {
	stops := locatedPending(tasks)
	order := Plan(octx.UserLocation, stopPoints(stops))

	out := make([]types.Task, 0, len(tasks))
	for _, idx := range order {
		out = append(out, stops[idx])
	}
	for _, t := range tasks {
		if !isStop(t) {
			out = append(out, t)
		}
	}
	return out
}

// Route returns road travel through waypoints. Answers are cached by
// rounded coordinates; provider failures fall back to an estimate.
func (o *Optimizer) Route(ctx context.Context, waypoints []geo.Point) RouteInfo {
	if len(waypoints) < 2 {
		return RouteInfo{Source: SourceEstimate}
	}

	key := redis.RouteKey(geo.Key(waypoints))
	if info, ok := o.cached(ctx, key); ok {
		return info
	}

	if o.provider != nil {
		info, err := o.provider.Route(ctx, waypoints)
		if err == nil {
			o.remember(ctx, key, info)
			return info
		}
		o.logger.Warn("Routing provider failed, estimating", "error", err, "waypoints", len(waypoints))
	}

	return o.Estimate(waypoints)
}

// Estimate approximates road travel from straight-line distance
func (o *Optimizer) Estimate(waypoints []geo.Point) RouteInfo {
	distance := geo.PathLength(waypoints) * o.DetourFactor
	metersPerSecond := o.FallbackSpeedKmh * 1000 / 3600
	return RouteInfo{
		DistanceMeters:  distance,
		DurationSeconds: distance / metersPerSecond,
		Geometry:        waypoints,
		Source:          SourceEstimate,
	}
}

func (o *Optimizer) cached(ctx context.Context, key string) (RouteInfo, bool) {
	var info RouteInfo
	if o.store == nil {
		return info, false
	}
	if err := kv.GetJSON(ctx, o.store, key, &info); err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			o.logger.Warn("Failed to read route cache", "error", err)
		}
		return info, false
	}
	return info, true
}

func (o *Optimizer) remember(ctx context.Context, key string, info RouteInfo) {
	if o.store == nil {
		return
	}
	if err := kv.SetJSON(ctx, o.store, key, info, o.CacheTTL); err != nil {
		o.logger.Warn("Failed to write route cache", "error", err)
	}
}

// chooseOrder returns the nearest-neighbor order unless it is longer than
// the current order, along with both path lengths
func chooseOrder(start geo.Point, points []geo.Point) (order []int, baseline, proposed float64) {
	baseline = geo.PathLength(points)
	order = Plan(start, points)
	proposed = geo.PathLength(reorderPoints(points, order))
	if proposed > baseline {
		return identity(len(points)), baseline, baseline
	}
	return order, baseline, proposed
}

func isStop(t types.Task) bool {
	return !t.Completed && t.Location != nil
}

func locatedPending(tasks []types.Task) []types.Task {
	var out []types.Task
	for _, t := range tasks {
		if isStop(t) {
			out = append(out, t)
		}
	}
	return out
}

func stopPoints(stops []types.Task) []geo.Point {
	points := make([]geo.Point, len(stops))
	for i, t := range stops {
		points[i] = t.Location.Point()
	}
	return points
}

func reorderPoints(points []geo.Point, order []int) []geo.Point {
	out := make([]geo.Point, len(order))
	for i, idx := range order {
		out[i] = points[idx]
	}
	return out
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

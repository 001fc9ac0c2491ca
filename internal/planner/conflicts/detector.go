// Package conflicts finds infeasible schedules: overlapping tasks, tasks
// colliding with calendar events and travel that cannot fit between tasks.
package conflicts

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/scoring"
	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
)

// SlotScorer rates a proposed start for a task
type SlotScorer interface {
	Score(task types.Task, slot time.Time, octx types.OptimizationContext) float64
}

// Detector evaluates overlap and travel conflicts
type Detector struct {
	// Configuration
	TravelSpeedKmh   float64       // Assumed speed between tasks (default: 20 km/h)
	HighOverlapAfter time.Duration // Overlaps longer than this are high severity (default: 30m)

	scorer SlotScorer
	logger *slog.Logger
}

// NewDetector creates a conflict detector. Resolutions are rated by scorer.
func NewDetector(scorer SlotScorer, logger *slog.Logger) *Detector {
	return &Detector{
		TravelSpeedKmh:   20,
		HighOverlapAfter: 30 * time.Minute,
		scorer:           scorer,
		logger:           logger.With("component", "conflict_detector"),
	}
}

// Detect returns every conflict among the scheduled tasks. Completed and
// undated tasks are ignored. Output order: task overlaps, event overlaps,
// then travel conflicts, each in start order.
func (d *Detector) Detect(tasks []types.Task, octx types.OptimizationContext) []types.Conflict {
	scheduled := Scheduled(tasks)

	var out []types.Conflict
	out = append(out, d.taskOverlaps(scheduled, octx)...)
	out = append(out, d.eventOverlaps(scheduled, octx)...)
	out = append(out, d.travelConflicts(scheduled, octx)...)

	if len(out) > 0 {
		d.logger.Info("Conflicts detected",
			"scheduled_tasks", len(scheduled),
			"conflicts", len(out))
	}
	return out
}

// Scheduled returns the pending dated tasks stable-sorted by start
func Scheduled(tasks []types.Task) []types.Task {
	var out []types.Task
	for _, t := range tasks {
		if t.IsScheduled() {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(*out[j].StartDate)
	})
	return out
}

// TravelMinutes estimates the minutes needed to cover meters at the
// detector's travel speed, rounded up
func (d *Detector) TravelMinutes(meters float64) int {
	return int(math.Ceil(meters * 60 / (d.TravelSpeedKmh * 1000)))
}

func (d *Detector) taskOverlaps(scheduled []types.Task, octx types.OptimizationContext) []types.Conflict {
	var out []types.Conflict
	for i := 1; i < len(scheduled); i++ {
		prev, next := scheduled[i-1], scheduled[i]
		prevEnd := prev.End()
		if !next.StartDate.Before(prevEnd) {
			continue
		}

		overlap := prevEnd.Sub(*next.StartDate)
		severity := types.SeverityMedium
		if overlap > d.HighOverlapAfter {
			severity = types.SeverityHigh
		}
		minutes := int(math.Round(overlap.Minutes()))

		out = append(out, types.Conflict{
			ID:             types.StableID(string(types.ConflictTimeOverlap), prev.ID, next.ID),
			Type:           types.ConflictTimeOverlap,
			Severity:       severity,
			InvolvedTasks:  []string{prev.ID, next.ID},
			Description:    fmt.Sprintf("%q overlaps %q by %d minutes", next.Title, prev.Title, minutes),
			OverlapMinutes: minutes,
			SuggestedResolution: d.resolve(next, prevEnd, octx,
				fmt.Sprintf("Start after %q ends", prev.Title)),
		})
	}
	return out
}

func (d *Detector) eventOverlaps(scheduled []types.Task, octx types.OptimizationContext) []types.Conflict {
	var out []types.Conflict
	for _, task := range scheduled {
		start, end := *task.StartDate, task.End()
		for _, e := range octx.CalendarEvents {
			if !e.Overlaps(start, end) {
				continue
			}

			overlap := minTime(end, e.End).Sub(maxTime(start, e.Start))
			out = append(out, types.Conflict{
				ID:             types.StableID("time_overlap_event", task.ID, e.ID),
				Type:           types.ConflictTimeOverlap,
				Severity:       types.SeverityHigh,
				InvolvedTasks:  []string{task.ID},
				InvolvedEvents: []string{e.ID},
				Description:    fmt.Sprintf("%q collides with calendar event %q", task.Title, e.Title),
				OverlapMinutes: int(math.Round(overlap.Minutes())),
				SuggestedResolution: d.resolve(task, e.End, octx,
					fmt.Sprintf("Start after %q ends", e.Title)),
			})
		}
	}
	return out
}

func (d *Detector) travelConflicts(scheduled []types.Task, octx types.OptimizationContext) []types.Conflict {
	var out []types.Conflict
	for i := 1; i < len(scheduled); i++ {
		prev, next := scheduled[i-1], scheduled[i]
		if prev.Location == nil || next.Location == nil {
			continue
		}

		distance := geo.Haversine(prev.Location.Point(), next.Location.Point())
		travel := d.TravelMinutes(distance)
		if travel <= 0 {
			continue
		}

		prevEnd := prev.End()
		gap := next.StartDate.Sub(prevEnd)
		if gap >= time.Duration(travel)*time.Minute {
			continue
		}

		out = append(out, types.Conflict{
			ID:             types.StableID(string(types.ConflictImpossibleTravel), prev.ID, next.ID),
			Type:           types.ConflictImpossibleTravel,
			Severity:       types.SeverityCritical,
			InvolvedTasks:  []string{prev.ID, next.ID},
			Description:    fmt.Sprintf("Travelling %.1f km from %q to %q takes about %d minutes", distance/1000, prev.Title, next.Title, travel),
			TravelMinutes:  travel,
			DistanceMeters: distance,
			SuggestedResolution: d.resolve(next, prevEnd.Add(time.Duration(travel)*time.Minute), octx,
				fmt.Sprintf("Leave %d minutes to travel from %q", travel, prev.Title)),
		})
	}
	return out
}

// resolve proposes moving task to newStart, rated by the slot scorer
func (d *Detector) resolve(task types.Task, newStart time.Time, octx types.OptimizationContext, reason string) *types.Resolution {
	confidence := 50.0
	if d.scorer != nil {
		confidence = scoring.Confidence(d.scorer.Score(task, newStart, octx))
	}
	return &types.Resolution{
		TaskID:     task.ID,
		NewStart:   newStart,
		Confidence: confidence,
		Reason:     reason,
	}
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// Package scoring rates candidate time slots for a task against an optimization context.
package scoring

import (
	"log/slog"
	"strings"
	"time"

	"github.com/icare0/Do-it-repo-sub000/internal/planner/types"
	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
)

// Weights are the multipliers of each sub-score. They are applied as-is;
// callers that change them own keeping scores comparable.
type Weights struct {
	Weather  float64 `yaml:"weather" json:"weather"`
	Energy   float64 `yaml:"energy" json:"energy"`
	Location float64 `yaml:"location" json:"location"`
	Calendar float64 `yaml:"calendar" json:"calendar"`
	Habits   float64 `yaml:"habits" json:"habits"`
	Traffic  float64 `yaml:"traffic" json:"traffic"`
	Priority float64 `yaml:"priority" json:"priority"`
}

// DefaultWeights returns the standard weighting
func DefaultWeights() Weights {
	return Weights{
		Weather:  0.15,
		Energy:   0.20,
		Location: 0.25,
		Calendar: 0.20,
		Habits:   0.10,
		Traffic:  0.05,
		Priority: 0.05,
	}
}

// PatternSource looks up learned category patterns
type PatternSource interface {
	Pattern(category string) (types.UserPattern, bool)
}

// outdoorKeywords mark categories whose tasks depend on the weather
var outdoorKeywords = []string{"sport", "shopping", "outdoor", "gardening"}

// Breakdown is a score split into its components. Sub-scores are unweighted.
type Breakdown struct {
	Weather  float64 `json:"weather"`
	Energy   float64 `json:"energy"`
	Location float64 `json:"location"`
	Calendar float64 `json:"calendar"`
	Habits   float64 `json:"habits"`
	Traffic  float64 `json:"traffic"`
	Priority float64 `json:"priority"`
	Grouping float64 `json:"grouping"`
	Total    float64 `json:"total"`
}

// Scorer computes slot scores
type Scorer struct {
	// Configuration
	GroupingBonus        float64       // Flat bonus per nearby pending task (default: 10)
	GroupingWindow       time.Duration // default: 2h
	GroupingRadiusMeters float64       // default: 2km
	EventBuffer          time.Duration // Proximity that counts as "tight" around an event (default: 15m)
	SlotStep             time.Duration // Slot search granularity (default: 30m)

	weights  Weights
	patterns PatternSource
	logger   *slog.Logger
}

// NewScorer creates a scorer. patterns may be nil when no habits are known.
func NewScorer(weights Weights, patterns PatternSource, logger *slog.Logger) *Scorer {
	return &Scorer{
		GroupingBonus:        10,
		GroupingWindow:       2 * time.Hour,
		GroupingRadiusMeters: 2000,
		EventBuffer:          15 * time.Minute,
		SlotStep:             30 * time.Minute,
		weights:              weights,
		patterns:             patterns,
		logger:               logger.With("component", "slot_scorer"),
	}
}

// Weights returns the active weights
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score returns the weighted score of running task at slot
func (s *Scorer) Score(task types.Task, slot time.Time, octx types.OptimizationContext) float64 {
	return s.Breakdown(task, slot, octx).Total
}

// Breakdown scores each dimension independently and combines them
func (s *Scorer) Breakdown(task types.Task, slot time.Time, octx types.OptimizationContext) Breakdown {
	b := Breakdown{
		Weather:  weatherScore(task, slot, octx),
		Energy:   energyScore(task, slot),
		Location: locationScore(task, octx),
		Calendar: s.calendarScore(task, slot, octx),
		Habits:   s.habitScore(task, slot),
		Traffic:  trafficScore(task, slot),
		Priority: priorityScore(task),
		Grouping: s.groupingScore(task, slot, octx),
	}

	w := s.weights
	b.Total = b.Weather*w.Weather +
		b.Energy*w.Energy +
		b.Location*w.Location +
		b.Calendar*w.Calendar +
		b.Habits*w.Habits +
		b.Traffic*w.Traffic +
		b.Priority*w.Priority +
		b.Grouping

	return b
}

// FindOptimalSlot scans the current day in SlotStep increments, starting at
// the first boundary not before the context time. Slots that overlap a
// calendar event are skipped; the first maximum wins. Returns nil when no
// slot is left in the day.
func (s *Scorer) FindOptimalSlot(task types.Task, octx types.OptimizationContext) *types.TimeSlot {
	now := octx.CurrentTime
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	length := task.EffectiveDuration()

	var best *types.TimeSlot
	var considered int
	for start := dayStart; start.Before(dayEnd); start = start.Add(s.SlotStep) {
		if start.Before(now) {
			continue
		}

		slot := types.NewTimeSlot(start, length)
		if len(overlappingEvents(slot.Start, slot.End, octx.CalendarEvents)) > 0 {
			continue
		}

		considered++
		slot.Score = s.Score(task, start, octx)
		if best == nil || slot.Score > best.Score {
			candidate := slot
			best = &candidate
		}
	}

	if best != nil {
		s.logger.Debug("Optimal slot found",
			"task_id", task.ID,
			"start", best.Start.Format(time.RFC3339),
			"score", best.Score,
			"considered", considered)
	}
	return best
}

// Confidence maps a score onto 0-100
func Confidence(score float64) float64 {
	c := 50 + score/2
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// IsOutdoor reports whether a category is weather sensitive
func IsOutdoor(category string) bool {
	c := strings.ToLower(category)
	for _, k := range outdoorKeywords {
		if strings.Contains(c, k) {
			return true
		}
	}
	return false
}

func weatherScore(task types.Task, slot time.Time, octx types.OptimizationContext) float64 {
	if !IsOutdoor(task.Category) {
		return 0
	}

	var score float64
	switch octx.Weather.Condition {
	case types.WeatherClear:
		score += 50
	case types.WeatherCloudy:
		score += 10
	case types.WeatherRain:
		score -= 50
	case types.WeatherSnow:
		score -= 70
	case types.WeatherStorm:
		score -= 100
	}

	if t := octx.Weather.Temperature; t >= 10 && t <= 25 {
		score += 30
	} else {
		score -= 20
	}

	if !octx.Daylight.Contains(slot) {
		score -= 30
	}
	return score
}

func energyScore(task types.Task, slot time.Time) float64 {
	hour := slot.Hour()
	switch task.Priority {
	case types.PriorityHigh:
		if hour >= 8 && hour <= 11 {
			return 100
		}
		if hour >= 18 {
			return -100
		}
	case types.PriorityLow:
		if hour >= 18 {
			return 50
		}
	}
	return 0
}

func locationScore(task types.Task, octx types.OptimizationContext) float64 {
	if task.Location == nil {
		return 0
	}
	d := geo.Haversine(octx.UserLocation, task.Location.Point())
	switch {
	case d < 1000:
		return 100
	case d < 5000:
		return 50
	case d > 20000:
		return -50
	default:
		return 0
	}
}

func (s *Scorer) calendarScore(task types.Task, slot time.Time, octx types.OptimizationContext) float64 {
	end := slot.Add(task.EffectiveDuration())
	if len(overlappingEvents(slot, end, octx.CalendarEvents)) > 0 {
		return -100
	}
	for _, e := range octx.CalendarEvents {
		// Gap between the slot and the event on either side
		if !end.After(e.Start) && e.Start.Sub(end) < s.EventBuffer {
			return -20
		}
		if !slot.Before(e.End) && slot.Sub(e.End) < s.EventBuffer {
			return -20
		}
	}
	return 30
}

func (s *Scorer) habitScore(task types.Task, slot time.Time) float64 {
	if s.patterns == nil || task.Category == "" {
		return 0
	}
	pattern, ok := s.patterns.Pattern(task.Category)
	if !ok || !pattern.IsReliable() {
		return 0
	}
	if pattern.PrefersHour(slot.Hour()) {
		return 100
	}
	return 0
}

func trafficScore(task types.Task, slot time.Time) float64 {
	if task.Location == nil {
		return 0
	}
	switch slot.Hour() {
	case 8, 17, 18:
		return -100
	}
	return 0
}

func priorityScore(task types.Task) float64 {
	switch task.Priority {
	case types.PriorityHigh:
		return 100
	case types.PriorityMedium:
		return 50
	default:
		return 0
	}
}

// groupingScore rewards slots close in time and space to other pending tasks
func (s *Scorer) groupingScore(task types.Task, slot time.Time, octx types.OptimizationContext) float64 {
	if task.Location == nil {
		return 0
	}
	var nearby int
	for _, other := range octx.Tasks {
		if other.ID == task.ID || other.Completed || other.StartDate == nil || other.Location == nil {
			continue
		}
		if absDuration(other.StartDate.Sub(slot)) > s.GroupingWindow {
			continue
		}
		if geo.Haversine(task.Location.Point(), other.Location.Point()) <= s.GroupingRadiusMeters {
			nearby++
		}
	}
	return float64(nearby) * s.GroupingBonus
}

// overlappingEvents returns the ids of events intersecting [start, end)
func overlappingEvents(start, end time.Time, events []types.CalendarEvent) []string {
	var ids []string
	for _, e := range events {
		if e.Overlaps(start, end) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

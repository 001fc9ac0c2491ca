// Package location tracks the user's position for the planner context.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/icare0/Do-it-repo-sub000/pkg/geo"
	"github.com/icare0/Do-it-repo-sub000/pkg/mqtt"
)

// ErrNoFix is returned when no usable position is known
var ErrNoFix = errors.New("no location fix")

// Provider returns the current position of the user
type Provider interface {
	Current(ctx context.Context) (geo.Point, error)
}

// Fix is one reported position
type Fix struct {
	Device   string
	Point    geo.Point
	Accuracy float64 // meters, 0 when unknown
	At       time.Time
}

type fixPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// ParseFix decodes a location message. Payloads may be wrapped in
// {"data": {...}}; a missing timestamp means received now.
func ParseFix(topic string, payload []byte, now time.Time) (Fix, error) {
	var wrapper struct {
		Data *fixPayload `json:"data"`
	}
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		return Fix{}, fmt.Errorf("failed to parse JSON: %w", err)
	}

	p := wrapper.Data
	if p == nil {
		p = &fixPayload{}
		if err := json.Unmarshal(payload, p); err != nil {
			return Fix{}, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}

	if p.Latitude == nil || p.Longitude == nil {
		return Fix{}, fmt.Errorf("location payload missing coordinates")
	}
	if *p.Latitude < -90 || *p.Latitude > 90 || *p.Longitude < -180 || *p.Longitude > 180 {
		return Fix{}, fmt.Errorf("coordinates out of range: %v,%v", *p.Latitude, *p.Longitude)
	}

	at := now
	if p.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			return Fix{}, fmt.Errorf("invalid timestamp %q: %w", p.Timestamp, err)
		}
		at = ts
	}

	return Fix{
		Device:   mqtt.DeviceFromTopic(topic),
		Point:    geo.Point{Latitude: *p.Latitude, Longitude: *p.Longitude},
		Accuracy: p.Accuracy,
		At:       at,
	}, nil
}

// Tracker keeps the latest fix reported over MQTT
type Tracker struct {
	// MaxAge bounds how old a fix may be and still count as current (default: 30m)
	MaxAge time.Duration
	// Device restricts tracking to one device; empty accepts every device
	Device string

	mu     sync.RWMutex
	last   *Fix
	now    func() time.Time
	logger *slog.Logger
}

// NewTracker creates a tracker; now is the clock used for fix age
func NewTracker(now func() time.Time, logger *slog.Logger) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		MaxAge: 30 * time.Minute,
		now:    now,
		logger: logger.With("component", "location_tracker"),
	}
}

// Subscribe starts receiving location messages
func (t *Tracker) Subscribe(client mqtt.Client) error {
	if err := client.Subscribe(mqtt.TopicLocation, 0, t.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to location topic: %w", err)
	}
	return nil
}

// HandleMessage records a fix from a location message. Fixes older than
// the one already held are ignored.
func (t *Tracker) HandleMessage(msg mqtt.Message) {
	fix, err := ParseFix(msg.Topic(), msg.Payload(), t.now())
	if err != nil {
		t.logger.Warn("Ignoring location message", "topic", msg.Topic(), "error", err)
		return
	}
	t.Record(fix)
}

// Record stores fix if it is the newest one for the tracked device
func (t *Tracker) Record(fix Fix) {
	if t.Device != "" && fix.Device != t.Device {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last != nil && fix.At.Before(t.last.At) {
		t.logger.Debug("Out of order location fix dropped", "device", fix.Device, "at", fix.At)
		return
	}
	t.last = &fix

	t.logger.Debug("Location updated",
		"device", fix.Device,
		"position", fix.Point.String(),
		"accuracy_m", fix.Accuracy)
}

// Last returns the latest fix regardless of age
func (t *Tracker) Last() (Fix, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last == nil {
		return Fix{}, false
	}
	return *t.last, true
}

// Current returns the latest fix when it is recent enough
func (t *Tracker) Current(ctx context.Context) (geo.Point, error) {
	fix, ok := t.Last()
	if !ok {
		return geo.Point{}, ErrNoFix
	}
	if age := t.now().Sub(fix.At); age > t.MaxAge {
		return geo.Point{}, fmt.Errorf("%w: last fix is %s old", ErrNoFix, age.Round(time.Second))
	}
	return fix.Point, nil
}

// Static always reports the same position
type Static struct {
	Point geo.Point
}

func (s Static) Current(ctx context.Context) (geo.Point, error) {
	if s.Point.IsZero() {
		return geo.Point{}, ErrNoFix
	}
	return s.Point, nil
}

// Chain asks each provider in turn and returns the first position
type Chain []Provider

func (c Chain) Current(ctx context.Context) (geo.Point, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		point, err := p.Current(ctx)
		if err == nil {
			return point, nil
		}
		if !errors.Is(err, ErrNoFix) {
			return geo.Point{}, err
		}
	}
	return geo.Point{}, ErrNoFix
}

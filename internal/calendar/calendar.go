// Package calendar stores day-keyed event documents and validates event
// fields against the fixed preset table.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rowanhall/hearth/internal/kv"
	"github.com/rowanhall/hearth/internal/model"
)

var (
	// ErrNotFound means the referenced event does not exist on that day.
	ErrNotFound = errors.New("event not found")

	// ErrValidation means a field was missing, malformed, or named an
	// unlisted preset.
	ErrValidation = errors.New("invalid input")
)

const (
	dayFormat  = "2006-01-02"
	timeFormat = "15:04"

	// maxRangeDays caps a range listing to keep prefix-free day iteration bounded.
	maxRangeDays = 62

	maxAttempts = 5
)

var recurrenceTags = map[string]bool{
	"": true, "daily": true, "weekly": true, "monthly": true, "yearly": true,
}

// EventInput carries the caller-settable fields of an event.
type EventInput struct {
	Title      string `json:"title"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Preset     string `json:"preset"`
	Recurrence string `json:"recurrence"`
	Notes      string `json:"notes"`
}

func (in *EventInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if _, ok := PresetByName(in.Preset); !ok {
		return fmt.Errorf("%w: unknown preset %q", ErrValidation, in.Preset)
	}
	if !recurrenceTags[in.Recurrence] {
		return fmt.Errorf("%w: unknown recurrence %q", ErrValidation, in.Recurrence)
	}
	for _, v := range []string{in.Start, in.End} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(timeFormat, v); err != nil {
			return fmt.Errorf("%w: time %q must be HH:MM", ErrValidation, v)
		}
	}
	if in.Start != "" && in.End != "" && in.End < in.Start {
		return fmt.Errorf("%w: end %q is before start %q", ErrValidation, in.End, in.Start)
	}
	if (in.Start == "") != (in.End == "") {
		return fmt.Errorf("%w: start and end must both be set or both empty", ErrValidation)
	}
	return nil
}

// ParseDay validates a calendar day key.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(dayFormat, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q must be YYYY-MM-DD", ErrValidation, day)
	}
	return t, nil
}

func dayKey(day string) string {
	return "events:" + day
}

type Service struct {
	store  kv.Store
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

func New(store kv.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *Service) loadDay(ctx context.Context, day string) ([]model.Event, int64, error) {
	doc, err := s.store.Get(ctx, dayKey(day))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	var events []model.Event
	if err := json.Unmarshal(doc.Value, &events); err != nil {
		return nil, 0, fmt.Errorf("decode day %s: %w", day, err)
	}
	return events, doc.Version, nil
}

func (s *Service) saveDay(ctx context.Context, day string, events []model.Event, version int64) error {
	if events == nil {
		events = []model.Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode day %s: %w", day, err)
	}
	_, err = s.store.Put(ctx, dayKey(day), data, version)
	return err
}

// updateDay applies fn to the day's events under CAS, retrying on conflict.
func (s *Service) updateDay(ctx context.Context, day string, fn func([]model.Event) ([]model.Event, error)) ([]model.Event, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		events, version, err := s.loadDay(ctx, day)
		if err != nil {
			return nil, err
		}
		updated, err := fn(events)
		if err != nil {
			return nil, err
		}
		err = s.saveDay(ctx, day, updated, version)
		if errors.Is(err, kv.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update day %s: %w", day, kv.ErrVersionConflict)
}

// ListDay returns the events for one day, earliest first, including
// projections of recurring events anchored on earlier days.
func (s *Service) ListDay(ctx context.Context, day string) ([]model.Event, error) {
	t, err := ParseDay(day)
	if err != nil {
		return nil, err
	}
	events, _, err := s.loadDay(ctx, day)
	if err != nil {
		return nil, err
	}
	anchored, err := s.recurring(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range anchored {
		if occursOn(a.event.Recurrence, a.anchor, t) {
			events = append(events, a.event)
		}
	}
	sortEvents(events)
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// ListRange returns events for each day in [from, to], keyed by day.
// Days with no events are omitted.
func (s *Service) ListRange(ctx context.Context, from, to string) (map[string][]model.Event, error) {
	start, err := ParseDay(from)
	if err != nil {
		return nil, err
	}
	end, err := ParseDay(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: range end before start", ErrValidation)
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range longer than %d days", ErrValidation, maxRangeDays)
	}

	anchored, err := s.recurring(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]model.Event)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := d.Format(dayFormat)
		events, _, err := s.loadDay(ctx, day)
		if err != nil {
			return nil, err
		}
		for _, a := range anchored {
			if occursOn(a.event.Recurrence, a.anchor, d) {
				events = append(events, a.event)
			}
		}
		if len(events) > 0 {
			sortEvents(events)
			out[day] = events
		}
	}
	return out, nil
}

// CreateEvent adds an event to a day and returns the day's full event list.
func (s *Service) CreateEvent(ctx context.Context, day string, in EventInput) ([]model.Event, error) {
	if _, err := ParseDay(day); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	event := model.Event{
		ID:         s.newID(),
		Title:      in.Title,
		Start:      in.Start,
		End:        in.End,
		Preset:     in.Preset,
		Recurrence: in.Recurrence,
		Notes:      in.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	events, err := s.updateDay(ctx, day, func(events []model.Event) ([]model.Event, error) {
		return append(events, event), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event created", "day", day, "event_id", event.ID, "title", event.Title)
	sortEvents(events)
	return events, nil
}

// UpdateEvent edits an event in place and returns the day's full event list.
func (s *Service) UpdateEvent(ctx context.Context, day, eventID string, in EventInput) ([]model.Event, error) {
	if _, err := ParseDay(day); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	events, err := s.updateDay(ctx, day, func(events []model.Event) ([]model.Event, error) {
		for i := range events {
			if events[i].ID == eventID {
				events[i].Title = in.Title
				events[i].Start = in.Start
				events[i].End = in.End
				events[i].Preset = in.Preset
				events[i].Recurrence = in.Recurrence
				events[i].Notes = in.Notes
				events[i].UpdatedAt = s.now().UTC()
				return events, nil
			}
		}
		return nil, fmt.Errorf("event %s on %s: %w", eventID, day, ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	sortEvents(events)
	return events, nil
}

// DeleteEvent removes an event and returns the day's remaining events.
func (s *Service) DeleteEvent(ctx context.Context, day, eventID string) ([]model.Event, error) {
	if _, err := ParseDay(day); err != nil {
		return nil, err
	}

	events, err := s.updateDay(ctx, day, func(events []model.Event) ([]model.Event, error) {
		for i := range events {
			if events[i].ID == eventID {
				return append(events[:i], events[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("event %s on %s: %w", eventID, day, ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	sortEvents(events)
	return events, nil
}

// sortEvents orders all-day events first, then by start time, then title.
func sortEvents(events []model.Event) {
	slices.SortFunc(events, func(a, b model.Event) int {
		if c := strings.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.Title, b.Title)
	})
}

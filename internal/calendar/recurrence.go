package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rowanhall/hearth/internal/model"
)

// occursOn reports whether a recurring event anchored on anchor also
// falls on day. The anchor day itself is not a projection; the stored
// document already covers it.
func occursOn(recurrence string, anchor, day time.Time) bool {
	if !day.After(anchor) {
		return false
	}
	switch recurrence {
	case "daily":
		return true
	case "weekly":
		return day.Weekday() == anchor.Weekday()
	case "monthly":
		// Months without the anchor's day are skipped (a Jan 31 event
		// does not fall in February).
		return day.Day() == anchor.Day()
	case "yearly":
		return day.Month() == anchor.Month() && day.Day() == anchor.Day()
	}
	return false
}

// anchoredEvent pairs a recurring event with the day it is stored under.
type anchoredEvent struct {
	anchor time.Time
	event  model.Event
}

// recurring scans every stored day document and returns its recurring
// events. Projections are read-only views: edits and deletes address the
// event on its anchor day.
func (s *Service) recurring(ctx context.Context) ([]anchoredEvent, error) {
	docs, err := s.store.List(ctx, "events:")
	if err != nil {
		return nil, err
	}

	var out []anchoredEvent
	for _, doc := range docs {
		day := strings.TrimPrefix(doc.Key, "events:")
		anchor, err := time.Parse(dayFormat, day)
		if err != nil {
			continue
		}
		var events []model.Event
		if err := json.Unmarshal(doc.Value, &events); err != nil {
			return nil, fmt.Errorf("decode day %s: %w", day, err)
		}
		for _, e := range events {
			if e.Recurrence != "" {
				out = append(out, anchoredEvent{anchor: anchor, event: e})
			}
		}
	}
	return out, nil
}

// Package assistant exposes the calendar to a chat agent through a fixed
// tool surface: four named operations with typed schemas, each mapped 1:1
// to a calendar store call.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/rowanhall/hearth/internal/calendar"
)

const (
	ToolCreateEvent = "create_event"
	ToolListEvents  = "list_events"
	ToolUpdateEvent = "update_event"
	ToolDeleteEvent = "delete_event"
)

// Dispatcher routes tool calls to the calendar service. It serves both the
// direct HTTP tool endpoint and the chat loop's function calls.
type Dispatcher struct {
	calendar *calendar.Service
	logger   *slog.Logger
}

func NewDispatcher(cal *calendar.Service, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{calendar: cal, logger: logger}
}

type createEventArgs struct {
	Day string `json:"day"`
	calendar.EventInput
}

type listEventsArgs struct {
	Day  string `json:"day"`
	From string `json:"from"`
	To   string `json:"to"`
}

type updateEventArgs struct {
	Day     string `json:"day"`
	EventID string `json:"event_id"`
	calendar.EventInput
}

type deleteEventArgs struct {
	Day     string `json:"day"`
	EventID string `json:"event_id"`
}

// Dispatch executes one named tool with JSON arguments and returns the
// result: the mutated day's event list, or a day-keyed map for ranges.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) (any, error) {
	d.logger.Info("tool call", "tool", name)

	switch name {
	case ToolCreateEvent:
		var a createEventArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", calendar.ErrValidation, err)
		}
		return d.calendar.CreateEvent(ctx, a.Day, a.EventInput)

	case ToolListEvents:
		var a listEventsArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", calendar.ErrValidation, err)
		}
		if a.Day != "" {
			return d.calendar.ListDay(ctx, a.Day)
		}
		return d.calendar.ListRange(ctx, a.From, a.To)

	case ToolUpdateEvent:
		var a updateEventArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", calendar.ErrValidation, err)
		}
		return d.calendar.UpdateEvent(ctx, a.Day, a.EventID, a.EventInput)

	case ToolDeleteEvent:
		var a deleteEventArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", calendar.ErrValidation, err)
		}
		return d.calendar.DeleteEvent(ctx, a.Day, a.EventID)
	}

	return nil, fmt.Errorf("%w: unknown tool %q", calendar.ErrValidation, name)
}

// ToolNames lists the operations the surface exposes.
func ToolNames() []string {
	return []string{ToolCreateEvent, ToolListEvents, ToolUpdateEvent, ToolDeleteEvent}
}

// Declarations builds the function declarations handed to the chat model.
// The schema mirrors Dispatch exactly; anything else the model invents is
// rejected at dispatch time.
func Declarations() []*genai.FunctionDeclaration {
	presetNames := make([]string, 0)
	for _, p := range calendar.Presets() {
		presetNames = append(presetNames, p.Name)
	}

	dayProp := &genai.Schema{Type: genai.TypeString, Description: "Calendar day in YYYY-MM-DD form."}
	eventProps := map[string]*genai.Schema{
		"day":   dayProp,
		"title": {Type: genai.TypeString, Description: "Event title."},
		"start": {Type: genai.TypeString, Description: "Start time HH:MM, empty for all-day."},
		"end":   {Type: genai.TypeString, Description: "End time HH:MM, empty for all-day."},
		"preset": {
			Type:        genai.TypeString,
			Description: "Color preset name; must be one of the listed values.",
			Enum:        presetNames,
		},
		"recurrence": {
			Type:        genai.TypeString,
			Description: "Recurrence tag.",
			Enum:        []string{"", "daily", "weekly", "monthly", "yearly"},
		},
		"notes": {Type: genai.TypeString, Description: "Free-form notes."},
	}

	updateProps := map[string]*genai.Schema{
		"event_id": {Type: genai.TypeString, Description: "ID of the event to edit."},
	}
	for k, v := range eventProps {
		updateProps[k] = v
	}

	return []*genai.FunctionDeclaration{
		{
			Name:        ToolCreateEvent,
			Description: "Create a calendar event on a given day and return that day's full event list.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: eventProps,
				Required:   []string{"day", "title", "preset"},
			},
		},
		{
			Name:        ToolListEvents,
			Description: "List calendar events for a single day, or for a date range when from/to are given.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"day":  dayProp,
					"from": {Type: genai.TypeString, Description: "Range start, YYYY-MM-DD."},
					"to":   {Type: genai.TypeString, Description: "Range end, YYYY-MM-DD."},
				},
			},
		},
		{
			Name:        ToolUpdateEvent,
			Description: "Edit an existing calendar event and return that day's full event list.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: updateProps,
				Required:   []string{"day", "event_id", "title", "preset"},
			},
		},
		{
			Name:        ToolDeleteEvent,
			Description: "Delete a calendar event and return the day's remaining events.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"day":      dayProp,
					"event_id": {Type: genai.TypeString, Description: "ID of the event to delete."},
				},
				Required: []string{"day", "event_id"},
			},
		},
	}
}

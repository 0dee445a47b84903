package handler

import (
	"log/slog"
	"net/http"

	"github.com/rowanhall/hearth/internal/calendar"
	"github.com/rowanhall/hearth/internal/model"
	"github.com/rowanhall/hearth/internal/websocket"
)

// CalendarHandler serves day and range event queries and event mutations.
type CalendarHandler struct {
	calendar *calendar.Service
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewCalendarHandler(cal *calendar.Service, hub *websocket.Hub, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{calendar: cal, hub: hub, logger: logger}
}

func (h *CalendarHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// dayEvents is the response shape for all event mutations: the full
// mutated day, so clients can re-render without a second fetch.
type dayEvents struct {
	Day    string        `json:"day"`
	Events []model.Event `json:"events"`
}

func (h *CalendarHandler) ListDay(w http.ResponseWriter, r *http.Request) {
	day := r.PathValue("day")
	events, err := h.calendar.ListDay(r.Context(), day)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, dayEvents{Day: day, Events: events})
}

func (h *CalendarHandler) ListRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := h.calendar.ListRange(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

type eventRequest struct {
	calendar.EventInput
}

func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	day := r.PathValue("day")
	events, err := h.calendar.CreateEvent(r.Context(), day, req.EventInput)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("event", "created", "", map[string]any{"day": day}))
	writeJSON(w, http.StatusCreated, dayEvents{Day: day, Events: events})
}

func (h *CalendarHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	day := r.PathValue("day")
	id := r.PathValue("id")
	events, err := h.calendar.UpdateEvent(r.Context(), day, id, req.EventInput)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("event", "updated", id, map[string]any{"day": day}))
	writeJSON(w, http.StatusOK, dayEvents{Day: day, Events: events})
}

func (h *CalendarHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	day := r.PathValue("day")
	id := r.PathValue("id")
	events, err := h.calendar.DeleteEvent(r.Context(), day, id)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("event", "deleted", id, map[string]any{"day": day}))
	writeJSON(w, http.StatusOK, dayEvents{Day: day, Events: events})
}

func (h *CalendarHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, calendar.Presets())
}

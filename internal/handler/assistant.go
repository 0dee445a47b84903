package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rowanhall/hearth/internal/assistant"
	"github.com/rowanhall/hearth/internal/calendar"
)

// AssistantHandler exposes the calendar tool surface directly over HTTP
// and, when a model is configured, the natural-language chat endpoint.
type AssistantHandler struct {
	dispatcher *assistant.Dispatcher
	chat       *assistant.Chat
	logger     *slog.Logger
}

// NewAssistantHandler creates the handler. chat may be nil when no model
// API key is configured; the tool endpoints still work.
func NewAssistantHandler(d *assistant.Dispatcher, chat *assistant.Chat, logger *slog.Logger) *AssistantHandler {
	return &AssistantHandler{dispatcher: d, chat: chat, logger: logger}
}

// Tool invokes one named calendar tool with the raw JSON request body as
// its arguments. This is the same dispatch path the chat loop uses.
func (h *AssistantHandler) Tool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "read body")
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	result, err := h.dispatcher.Dispatch(r.Context(), name, json.RawMessage(body))
	if err != nil {
		if !errors.Is(err, calendar.ErrValidation) && !errors.Is(err, calendar.ErrNotFound) {
			h.logger.Error("tool dispatch", "tool", name, "error", err)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// Tools lists the available tool names.
func (h *AssistantHandler) Tools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": assistant.ToolNames()})
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat forwards a natural-language message to the model and returns its
// reply after any tool rounds have run.
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		writeErrorMsg(w, http.StatusServiceUnavailable, "assistant not configured")
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.chat.Ask(r.Context(), req.Message)
	if err != nil {
		h.logger.Error("assistant chat", "error", err)
		writeErrorMsg(w, http.StatusBadGateway, "assistant unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

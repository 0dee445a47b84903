package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/rowanhall/hearth/internal/ledger"
	"github.com/rowanhall/hearth/internal/model"
	"github.com/rowanhall/hearth/internal/websocket"
)

// LedgerHandler serves kids, chores, completions, rewards, redemptions,
// and star balances.
type LedgerHandler struct {
	ledger *ledger.Ledger
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewLedgerHandler(l *ledger.Ledger, hub *websocket.Hub, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, hub: hub, logger: logger}
}

func (h *LedgerHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// --- kids ---

type kidRequest struct {
	Name string `json:"name"`
}

func (h *LedgerHandler) ListKids(w http.ResponseWriter, r *http.Request) {
	kids, err := h.ledger.ListKids(r.Context())
	if err != nil {
		h.logger.Error("list kids", "error", err)
		writeError(w, err)
		return
	}
	if kids == nil {
		kids = []model.Kid{}
	}
	writeJSON(w, http.StatusOK, kids)
}

func (h *LedgerHandler) CreateKid(w http.ResponseWriter, r *http.Request) {
	var req kidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	kid, err := h.ledger.AddKid(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("kid", "created", kid.ID, nil))
	writeJSON(w, http.StatusCreated, kid)
}

// --- chores ---

type choreRequest struct {
	Title      string   `json:"title"`
	Stars      int      `json:"stars"`
	Recurrence string   `json:"recurrence"`
	AssignedTo []string `json:"assigned_to"`
}

func (h *LedgerHandler) ListChores(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	chores, err := h.ledger.ListChores(r.Context(), includeArchived)
	if err != nil {
		h.logger.Error("list chores", "error", err)
		writeError(w, err)
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *LedgerHandler) CreateChore(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	chore, err := h.ledger.AddChore(r.Context(), strings.TrimSpace(req.Title), req.Stars, req.Recurrence, req.AssignedTo)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("chore", "created", chore.ID, nil))
	writeJSON(w, http.StatusCreated, chore)
}

func (h *LedgerHandler) UpdateChore(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	chore, err := h.ledger.UpdateChore(r.Context(), r.PathValue("id"), strings.TrimSpace(req.Title), req.Stars, req.Recurrence, req.AssignedTo)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("chore", "updated", chore.ID, nil))
	writeJSON(w, http.StatusOK, chore)
}

func (h *LedgerHandler) ArchiveChore(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ledger.ArchiveChore(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("chore", "archived", id, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

// --- completions ---

type completionRequest struct {
	ChoreID string `json:"chore_id"`
	KidID   string `json:"kid_id"`
}

func (h *LedgerHandler) ListCompletions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.CompletionFilter{
		KidID:   q.Get("kid_id"),
		ChoreID: q.Get("chore_id"),
		Status:  model.CompletionStatus(q.Get("status")),
	}

	completions, err := h.ledger.ListCompletions(r.Context(), filter)
	if err != nil {
		h.logger.Error("list completions", "error", err)
		writeError(w, err)
		return
	}
	if completions == nil {
		completions = []model.Completion{}
	}
	writeJSON(w, http.StatusOK, completions)
}

func (h *LedgerHandler) RecordCompletion(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	completion, err := h.ledger.RecordCompletion(r.Context(), req.ChoreID, req.KidID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("completion", "recorded", completion.ID, map[string]any{"kid_id": completion.KidID}))
	writeJSON(w, http.StatusCreated, completion)
}

func (h *LedgerHandler) ApproveCompletion(w http.ResponseWriter, r *http.Request) {
	completion, err := h.ledger.ApproveCompletion(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("completion", "approved", completion.ID, map[string]any{"kid_id": completion.KidID}))
	writeJSON(w, http.StatusOK, completion)
}

func (h *LedgerHandler) RevokeCompletion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ledger.RevokeCompletion(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("completion", "revoked", id, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// --- rewards ---

type rewardRequest struct {
	Title        string   `json:"title"`
	Cost         int      `json:"cost"`
	EligibleKids []string `json:"eligible_kids"`
}

func (h *LedgerHandler) ListRewards(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	rewards, err := h.ledger.ListRewards(r.Context(), includeArchived)
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		writeError(w, err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *LedgerHandler) CreateReward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	reward, err := h.ledger.AddReward(r.Context(), strings.TrimSpace(req.Title), req.Cost, req.EligibleKids)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("reward", "created", reward.ID, nil))
	writeJSON(w, http.StatusCreated, reward)
}

func (h *LedgerHandler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	reward, err := h.ledger.UpdateReward(r.Context(), r.PathValue("id"), strings.TrimSpace(req.Title), req.Cost, req.EligibleKids)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("reward", "updated", reward.ID, nil))
	writeJSON(w, http.StatusOK, reward)
}

func (h *LedgerHandler) ArchiveReward(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ledger.ArchiveReward(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("reward", "archived", id, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

// --- redemptions ---

type redeemRequest struct {
	KidID string `json:"kid_id"`
}

func (h *LedgerHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	redemption, err := h.ledger.Redeem(r.Context(), req.KidID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("redemption", "created", redemption.ID, map[string]any{"kid_id": redemption.KidID}))
	writeJSON(w, http.StatusCreated, redemption)
}

func (h *LedgerHandler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.RedemptionFilter{
		KidID:    q.Get("kid_id"),
		RewardID: q.Get("reward_id"),
	}

	redemptions, err := h.ledger.ListRedemptions(r.Context(), filter)
	if err != nil {
		h.logger.Error("list redemptions", "error", err)
		writeError(w, err)
		return
	}
	if redemptions == nil {
		redemptions = []model.Redemption{}
	}
	writeJSON(w, http.StatusOK, redemptions)
}

// --- balances ---

func (h *LedgerHandler) Balances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.ledger.Balances(r.Context())
	if err != nil {
		h.logger.Error("list balances", "error", err)
		writeError(w, err)
		return
	}
	if balances == nil {
		balances = []model.StarBalance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledger.Balance(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

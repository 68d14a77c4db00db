package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/db"
	"github.com/kaphack/realtime-crisis-triage-engine/internal/observability"
)

// EscalationLister is satisfied by *db.Repository.
type EscalationLister interface {
	ListEscalations(ctx context.Context, conversationID string, limit int) ([]db.EscalationRecord, error)
}

type Handler struct {
	repo EscalationLister
}

func NewHandler(repo EscalationLister) *Handler {
	return &Handler{repo: repo}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type EscalationsResponse struct {
	Escalations []db.EscalationRecord `json:"escalations"`
	Count       int                   `json:"count"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ListEscalations serves GET /api/escalations?conversation_id=&limit=.
func (h *Handler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
		return
	}

	limit := db.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	conversationID := r.URL.Query().Get("conversation_id")

	records, err := h.repo.ListEscalations(r.Context(), conversationID, limit)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error("failed to list escalations", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch escalations"})
		return
	}

	writeJSON(w, http.StatusOK, EscalationsResponse{Escalations: records, Count: len(records)})
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/escalations", h.ListEscalations)
}

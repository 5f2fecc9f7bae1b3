package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/inbound"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// EscalationQueue is the admin view over pending support hand-offs.
type EscalationQueue interface {
	ListPending(ctx context.Context, limit int) ([]*inbound.Escalation, error)
	Acknowledge(ctx context.Context, id uuid.UUID, staffMember string) error
}

// EscalationsHandler serves the support queue to staff.
type EscalationsHandler struct {
	queue  EscalationQueue
	logger *logging.Logger
}

func NewEscalationsHandler(queue EscalationQueue, logger *logging.Logger) *EscalationsHandler {
	if queue == nil {
		panic("handlers: escalation queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EscalationsHandler{queue: queue, logger: logger}
}

// ListPending handles GET /admin/escalations.
func (h *EscalationsHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	pending, err := h.queue.ListPending(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list escalations", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"escalations": pending,
		"count":       len(pending),
	})
}

// AcknowledgeRequest names the staff member picking up the hand-off.
type AcknowledgeRequest struct {
	StaffMember string `json:"staff_member"`
}

// Acknowledge handles POST /admin/escalations/{escalationID}/ack.
func (h *EscalationsHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "escalationID"))
	if err != nil {
		jsonError(w, "invalid escalation id", http.StatusBadRequest)
		return
	}

	var req AcknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.StaffMember) == "" {
		jsonError(w, "staff_member is required", http.StatusBadRequest)
		return
	}

	if err := h.queue.Acknowledge(r.Context(), id, req.StaffMember); err != nil {
		h.logger.Error("failed to acknowledge escalation", "id", id, "error", err)
		jsonError(w, "escalation not found or already acknowledged", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/conversation"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// ConversationStore persists per-conversation state and transcripts
// between turns.
type ConversationStore interface {
	SaveState(ctx context.Context, conversationID string, state map[string]any) error
	LoadState(ctx context.Context, conversationID string) (map[string]any, error)
	SaveHistory(ctx context.Context, conversationID string, history []conversation.Turn) error
	LoadHistory(ctx context.Context, conversationID string) ([]conversation.Turn, error)
}

// ChatHandler drives the outbound qualification bot over HTTP.
type ChatHandler struct {
	service conversation.Service
	store   ConversationStore
	logger  *logging.Logger
}

func NewChatHandler(service conversation.Service, store ConversationStore, logger *logging.Logger) *ChatHandler {
	if service == nil {
		panic("handlers: conversation service cannot be nil")
	}
	if store == nil {
		panic("handlers: conversation store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{service: service, store: store, logger: logger}
}

// ChatRequest is one prospect message. Omit conversation_id to start a
// fresh conversation.
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	CountryHint    string `json:"country_hint,omitempty"`
}

// ChatResponse is the bot's turn plus routing metadata.
type ChatResponse struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
	Qualified      bool   `json:"qualified"`
	ShouldEnd      bool   `json:"should_end"`
}

// HandleTurn handles POST /chat.
func (h *ChatHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	ctx := r.Context()
	state, err := h.store.LoadState(ctx, req.ConversationID)
	if err != nil {
		h.logger.Error("failed to load conversation state", "conversation_id", req.ConversationID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	history, err := h.store.LoadHistory(ctx, req.ConversationID)
	if err != nil {
		h.logger.Error("failed to load conversation history", "conversation_id", req.ConversationID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	result, err := h.service.ProcessMessage(ctx, conversation.ProcessRequest{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		History:        history,
		State:          state,
		CountryHint:    req.CountryHint,
	})
	if err != nil {
		h.logger.Error("turn processing failed", "conversation_id", req.ConversationID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	history = append(history,
		conversation.Turn{Role: "user", Content: req.Message},
		conversation.Turn{Role: "bot", Content: result.Response},
	)
	if err := h.store.SaveState(ctx, req.ConversationID, result.State); err != nil {
		h.logger.Error("failed to save conversation state", "conversation_id", req.ConversationID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := h.store.SaveHistory(ctx, req.ConversationID, history); err != nil {
		h.logger.Error("failed to save conversation history", "conversation_id", req.ConversationID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		ConversationID: req.ConversationID,
		Response:       result.Response,
		Qualified:      result.Qualified,
		ShouldEnd:      result.ShouldEnd,
	})
}

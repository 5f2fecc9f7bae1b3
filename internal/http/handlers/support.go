package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/conversation"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/inbound"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// SupportHandler drives the inbound support bot over HTTP.
type SupportHandler struct {
	bot    inbound.Bot
	store  ConversationStore
	logger *logging.Logger
}

func NewSupportHandler(bot inbound.Bot, store ConversationStore, logger *logging.Logger) *SupportHandler {
	if bot == nil {
		panic("handlers: support bot cannot be nil")
	}
	if store == nil {
		panic("handlers: conversation store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SupportHandler{bot: bot, store: store, logger: logger}
}

// SupportRequest is one inbound customer message.
type SupportRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	CustomerEmail  string `json:"customer_email,omitempty"`
}

// SupportResponse is the bot's answer plus routing metadata.
type SupportResponse struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
	Intent         string `json:"intent"`
	Escalated      bool   `json:"escalated"`
}

// HandleMessage handles POST /support.
func (h *SupportHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req SupportRequest
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
	history, err := h.store.LoadHistory(ctx, req.ConversationID)
	if err != nil {
		h.logger.Error("failed to load support history", "conversation_id", req.ConversationID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	reply, err := h.bot.Answer(ctx, inbound.Request{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		History:        turnsToMessages(history),
		CustomerEmail:  req.CustomerEmail,
	})
	if err != nil {
		h.logger.Error("support answer failed", "conversation_id", req.ConversationID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	history = append(history,
		conversation.Turn{Role: "user", Content: req.Message},
		conversation.Turn{Role: "bot", Content: reply.Response},
	)
	if err := h.store.SaveHistory(ctx, req.ConversationID, history); err != nil {
		h.logger.Error("failed to save support history", "conversation_id", req.ConversationID, "error", err)
	}

	writeJSON(w, http.StatusOK, SupportResponse{
		ConversationID: req.ConversationID,
		Response:       reply.Response,
		Intent:         string(reply.Intent),
		Escalated:      reply.Escalated,
	})
}

func turnsToMessages(history []conversation.Turn) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(history))
	for _, t := range history {
		role := llm.RoleUser
		if t.Role == "bot" || t.Role == llm.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.ChatMessage{Role: role, Content: t.Content})
	}
	return out
}

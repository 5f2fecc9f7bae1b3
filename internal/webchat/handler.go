package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/conversation"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// Store persists conversation state and transcripts between frames.
type Store interface {
	SaveState(ctx context.Context, conversationID string, state map[string]any) error
	LoadState(ctx context.Context, conversationID string) (map[string]any, error)
	SaveHistory(ctx context.Context, conversationID string, history []conversation.Turn) error
	LoadHistory(ctx context.Context, conversationID string) ([]conversation.Turn, error)
}

// Handler runs the chat widget protocol over a WebSocket. Each frame is
// one turn; the reply is produced synchronously on the same connection.
type Handler struct {
	service conversation.Service
	store   Store
	logger  *logging.Logger

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*websocket.Conn
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type        string `json:"type"` // "message", "ping"
	Text        string `json:"text"`
	CountryHint string `json:"country_hint,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "typing", "history", "session", "pong", "error"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Qualified bool             `json:"qualified,omitempty"`
	ShouldEnd bool             `json:"should_end,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified message for history replays.
type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// NewHandler creates a web chat handler.
func NewHandler(service conversation.Service, store Store, logger *logging.Logger) *Handler {
	if service == nil {
		panic("webchat: conversation service cannot be nil")
	}
	if store == nil {
		panic("webchat: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		store:   store,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The widget is embedded on customer sites, so any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*websocket.Conn),
	}
}

// ConversationID builds the canonical conversation ID for a webchat session.
func ConversationID(sessionID string) string {
	return "webchat:" + sessionID
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("webchat: upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	h.serve(conn, r)
}

func (h *Handler) serve(conn *websocket.Conn, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	convID := ConversationID(sessionID)

	_ = conn.WriteJSON(OutboundMessage{Type: "session", SessionID: sessionID})

	// Replay prior turns so a reconnecting widget picks up where it left off.
	if history, err := h.store.LoadHistory(r.Context(), convID); err == nil && len(history) > 0 {
		msgs := make([]HistoryMessage, 0, len(history))
		for _, t := range history {
			msgs = append(msgs, HistoryMessage{Role: t.Role, Text: t.Content})
		}
		_ = conn.WriteJSON(OutboundMessage{Type: "history", Messages: msgs})
	}

	h.mu.Lock()
	h.sessions[convID] = conn
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[convID] == conn {
			delete(h.sessions, convID)
		}
		h.mu.Unlock()
	}()

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = conn.WriteJSON(OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = conn.WriteJSON(OutboundMessage{Type: "typing"})
		reply := h.processTurn(r.Context(), convID, msg)
		_ = conn.WriteJSON(reply)
		if reply.ShouldEnd {
			return
		}
	}
}

// processTurn runs one engine turn and persists the result. Failures come
// back as error frames so the widget can prompt a retry.
func (h *Handler) processTurn(ctx context.Context, convID string, msg InboundMessage) OutboundMessage {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	state, err := h.store.LoadState(ctx, convID)
	if err != nil {
		h.logger.Error("webchat: state load failed", "conversation_id", convID, "error", err)
		return OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."}
	}
	history, err := h.store.LoadHistory(ctx, convID)
	if err != nil {
		h.logger.Error("webchat: history load failed", "conversation_id", convID, "error", err)
		return OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."}
	}

	result, err := h.service.ProcessMessage(ctx, conversation.ProcessRequest{
		ConversationID: convID,
		Message:        msg.Text,
		History:        history,
		State:          state,
		CountryHint:    msg.CountryHint,
	})
	if err != nil {
		h.logger.Error("webchat: turn failed", "conversation_id", convID, "error", err)
		return OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."}
	}

	history = append(history,
		conversation.Turn{Role: "user", Content: msg.Text},
		conversation.Turn{Role: "bot", Content: result.Response},
	)
	if err := h.store.SaveState(ctx, convID, result.State); err != nil {
		h.logger.Error("webchat: state save failed", "conversation_id", convID, "error", err)
	}
	if err := h.store.SaveHistory(ctx, convID, history); err != nil {
		h.logger.Error("webchat: history save failed", "conversation_id", convID, "error", err)
	}

	return OutboundMessage{
		Type:      "message",
		Role:      "assistant",
		Text:      result.Response,
		Qualified: result.Qualified,
		ShouldEnd: result.ShouldEnd,
	}
}

// SendToSession pushes a message to an active session, if one is connected.
func (h *Handler) SendToSession(sessionID string, msg OutboundMessage) bool {
	h.mu.RLock()
	conn, ok := h.sessions[ConversationID(sessionID)]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return conn.WriteJSON(msg) == nil
}

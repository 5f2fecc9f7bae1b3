package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/conversation"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/inbound"
)

type stubBot struct {
	reply    inbound.Reply
	err      error
	requests []inbound.Request
}

func (b *stubBot) Answer(_ context.Context, req inbound.Request) (inbound.Reply, error) {
	b.requests = append(b.requests, req)
	return b.reply, b.err
}

func TestSupportHandler_AnswersAndPersists(t *testing.T) {
	store := newMemStore()
	store.histories["conv-7"] = []conversation.Turn{
		{Role: "user", Content: "hi"},
		{Role: "bot", Content: "hey, how can I help?"},
	}
	bot := &stubBot{reply: inbound.Reply{Response: "V60 likes a medium-fine grind.", Intent: inbound.IntentQuestion}}
	handler := NewSupportHandler(bot, store, nil)

	w := postJSON(t, handler.HandleMessage, "/support", SupportRequest{
		ConversationID: "conv-7",
		Message:        "what grind for a V60?",
		CustomerEmail:  "owner@cafedelmar.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp SupportResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Response != "V60 likes a medium-fine grind." || resp.Intent != string(inbound.IntentQuestion) {
		t.Fatalf("resp = %+v", resp)
	}

	if len(bot.requests) != 1 {
		t.Fatalf("requests = %d", len(bot.requests))
	}
	got := bot.requests[0]
	if got.CustomerEmail != "owner@cafedelmar.com" {
		t.Fatalf("email = %q", got.CustomerEmail)
	}
	// Prior turns reach the bot as chat messages with mapped roles.
	if len(got.History) != 2 || got.History[1].Role != "assistant" {
		t.Fatalf("history = %+v", got.History)
	}
	if got := len(store.histories["conv-7"]); got != 4 {
		t.Fatalf("stored history length = %d", got)
	}
}

func TestSupportHandler_EscalatedPassthrough(t *testing.T) {
	bot := &stubBot{reply: inbound.Reply{
		Response:  "I've flagged this for the team.",
		Intent:    inbound.IntentComplaint,
		Escalated: true,
	}}
	handler := NewSupportHandler(bot, newMemStore(), nil)

	w := postJSON(t, handler.HandleMessage, "/support", SupportRequest{Message: "my beans arrived stale"})
	var resp SupportResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Escalated || resp.ConversationID == "" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestSupportHandler_MissingMessage(t *testing.T) {
	handler := NewSupportHandler(&stubBot{}, newMemStore(), nil)

	w := postJSON(t, handler.HandleMessage, "/support", SupportRequest{ConversationID: "conv-7"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSupportHandler_BotFailure(t *testing.T) {
	handler := NewSupportHandler(&stubBot{err: errors.New("model down")}, newMemStore(), nil)

	w := postJSON(t, handler.HandleMessage, "/support", SupportRequest{Message: "help"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

package inbound

import (
	"context"
	"testing"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
)

func TestRuleBasedIntentClassification(t *testing.T) {
	c := NewRuleBasedIntentClassifier(nil, "")
	tests := []struct {
		message string
		want    Intent
	}{
		{"hi!", IntentGreeting},
		{"hey there!", IntentGreeting},
		{"Good morning", IntentGreeting},
		{"hey, quick question about your espresso blends and whether you deliver here", IntentQuestion},
		{"hi, where's my order", IntentOrderStatus},
		{"where's my order", IntentOrderStatus},
		{"my delivery hasn't arrived yet", IntentOrderStatus},
		{"order number AB1234 please", IntentOrderStatus},
		{"can I speak with a human", IntentHuman},
		{"this is unacceptable, the bags were damaged", IntentComplaint},
		{"I'd like a refund for the last shipment", IntentComplaint},
		{"what grind size works for a v60", IntentQuestion},
	}
	for _, tt := range tests {
		got, err := c.Classify(context.Background(), tt.message)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.message, got, tt.want)
		}
	}
}

func TestComplaintOutranksOrderStatus(t *testing.T) {
	c := NewRuleBasedIntentClassifier(nil, "")
	got, err := c.Classify(context.Background(), "where is my order, this is the worst service")
	if err != nil {
		t.Fatal(err)
	}
	if got != IntentComplaint {
		t.Fatalf("got %s, want complaint", got)
	}
}

func TestIntentModelTiebreak(t *testing.T) {
	client := &stubClient{text: `{"intent": "order_status"}`}
	c := NewRuleBasedIntentClassifier(client, "test-model")

	got, err := c.Classify(context.Background(), "any movement on the thing I paid for last week")
	if err != nil {
		t.Fatal(err)
	}
	if got != IntentOrderStatus {
		t.Fatalf("got %s", got)
	}
	if len(client.requests) != 1 {
		t.Fatalf("calls = %d", len(client.requests))
	}
}

func TestIntentModelGarbageFallsBackToQuestion(t *testing.T) {
	for _, text := range []string{"no json", `{"intent": "made_up"}`} {
		client := &stubClient{text: text}
		c := NewRuleBasedIntentClassifier(client, "test-model")
		got, err := c.Classify(context.Background(), "any movement on the thing I paid for last week")
		if err != nil {
			t.Fatal(err)
		}
		if got != IntentQuestion {
			t.Fatalf("output %q: got %s", text, got)
		}
	}
}

var _ llm.Client = (*stubClient)(nil)

package inbound

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
)

// Intent labels what an inbound customer message is about. The rule layer
// catches the unambiguous cases; the model breaks ties.
type Intent string

const (
	IntentGreeting    Intent = "greeting"
	IntentOrderStatus Intent = "order_status"
	IntentHuman       Intent = "talk_to_human"
	IntentComplaint   Intent = "complaint"
	IntentQuestion    Intent = "question"
)

// greetingOpenerRe matches a salutation at the start of a message. The
// greeting intent additionally requires the message to be little more than
// the salutation itself, so "hey, where's my order" routes on its content
// while "hey there!" still gets the plain hello.
var greetingOpenerRe = regexp.MustCompile(`(?i)^\s*(hi|hey|hello|good (morning|afternoon|evening)|howdy|yo)\b`)

const greetingMaxWords = 3

func isGreeting(message string) bool {
	return greetingOpenerRe.MatchString(message) && len(strings.Fields(message)) <= greetingMaxWords
}

var orderStatusPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(where('?s| is)|status of|track(ing)?|update on) (my |our |the )?(order|shipment|delivery|beans|coffee)\b`),
	regexp.MustCompile(`(?i)\border (number|#|no\.?)\s*\w*\d`),
	regexp.MustCompile(`(?i)\b(hasn'?t|has not|didn'?t|never) (arrived|shipped|showed up|turned up)\b`),
	regexp.MustCompile(`(?i)\bwhen (will|does|is) (my|our|the) (order|coffee|delivery)\b`),
}

var humanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(talk|speak) (to|with) (someone|a (real )?person|a human)\b`),
	regexp.MustCompile(`(?i)\b(real|actual) (person|human)\b`),
	regexp.MustCompile(`(?i)\bcustomer service rep\b`),
	regexp.MustCompile(`(?i)\bcall me back\b`),
}

var complaintPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(complain(t)?|unacceptable|furious|terrible|awful|worst)\b`),
	regexp.MustCompile(`(?i)\brefund\b`),
	regexp.MustCompile(`(?i)\b(wrong|damaged|stale|moldy|broken) (order|beans|coffee|bags?|shipment)\b`),
	regexp.MustCompile(`(?i)\bcharged (me )?(twice|double|incorrectly)\b`),
}

const intentPrompt = `You classify a customer message sent to a specialty coffee supplier's support chat.

Message: %s

Classify as exactly one of: greeting, order_status, talk_to_human, complaint, question.

Respond with JSON only: {"intent": "<label>"}`

// IntentClassifier decides what an inbound message is about.
type IntentClassifier interface {
	Classify(ctx context.Context, message string) (Intent, error)
}

// RuleBasedIntentClassifier layers pattern matching over an optional model
// tiebreak. With a nil client everything unmatched is a question.
type RuleBasedIntentClassifier struct {
	client llm.Client
	model  string
}

func NewRuleBasedIntentClassifier(client llm.Client, model string) *RuleBasedIntentClassifier {
	return &RuleBasedIntentClassifier{client: client, model: model}
}

func (c *RuleBasedIntentClassifier) Classify(ctx context.Context, message string) (Intent, error) {
	trimmed := strings.TrimSpace(message)
	// Complaints outrank everything: an angry order-status message needs the
	// complaint handling, not a tracking link. Greetings come last among the
	// rules so a salutation never swallows a real request.
	if matchAny(complaintPatterns, trimmed) {
		return IntentComplaint, nil
	}
	if matchAny(orderStatusPatterns, trimmed) {
		return IntentOrderStatus, nil
	}
	if matchAny(humanPatterns, trimmed) {
		return IntentHuman, nil
	}
	if isGreeting(trimmed) {
		return IntentGreeting, nil
	}

	if c.client == nil {
		return IntentQuestion, nil
	}
	resp, err := c.client.Complete(ctx, llm.Request{
		Model:     c.model,
		Messages:  []llm.ChatMessage{{Role: llm.RoleUser, Content: fmt.Sprintf(intentPrompt, trimmed)}},
		MaxTokens: 20,
	})
	if err != nil {
		return IntentQuestion, err
	}
	var result struct {
		Intent string `json:"intent"`
	}
	if !decodeJSONObject(resp.Text, &result) {
		return IntentQuestion, nil
	}
	switch Intent(result.Intent) {
	case IntentGreeting, IntentOrderStatus, IntentHuman, IntentComplaint, IntentQuestion:
		return Intent(result.Intent), nil
	default:
		return IntentQuestion, nil
	}
}

func matchAny(patterns []*regexp.Regexp, message string) bool {
	for _, p := range patterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

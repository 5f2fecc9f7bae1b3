package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
)

// unclearMarker is what the extraction tool returns for a field the
// prospect mentioned without giving a usable value. Distinct from "not
// mentioned", which is simply omitted.
const unclearMarker = "unclear"

// ExtractionInput carries everything one extraction call needs.
type ExtractionInput struct {
	Message      string
	CustomerType CustomerType
	History      []llm.ChatMessage

	// ExplorationOnly restricts extraction to name/phone/email; while the
	// customer type is still unknown the qualification fields are off
	// limits so a casual remark is not mined as an answer.
	ExplorationOnly bool
}

// Extraction is the post-validated result of one extraction pass.
type Extraction struct {
	// Values holds fields that passed consistency checks.
	Values map[string]string
	// Unclear lists fields the prospect touched on without a usable value.
	Unclear []string
	// Ambiguous maps fields to bare numbers that need a unit clarification
	// ("200 what?") before they can be stored.
	Ambiguous map[string]string
}

// Extractor pulls structured qualification fields from a free-text message.
type Extractor interface {
	Extract(ctx context.Context, input ExtractionInput) (Extraction, error)
}

const extractorToolName = "record_customer_details"

const extractorSystemPrompt = `You extract CRM fields from a prospect's message to a specialty coffee supplier. Only record what the prospect actually said in this message. Never guess or infer values. If the prospect touched on a field but the value is unclear, record the string "unclear" for it. Omit fields the message does not mention at all.`

// contactFieldSchema is shared by both customer types.
var contactFieldSchema = map[string]any{
	"name":  map[string]any{"type": "string", "description": "The prospect's own name, if stated"},
	"phone": map[string]any{"type": "string", "description": "A phone number, exactly as written"},
	"email": map[string]any{"type": "string", "description": "An email address, exactly as written"},
}

var newCafeFieldSchema = map[string]any{
	"timeline":     map[string]any{"type": "string", "description": "When the new cafe opens, e.g. '3 months', 'next spring'"},
	"coffee_style": map[string]any{"type": "string", "description": "Coffee style preference, e.g. 'bold', 'smooth', 'fruity espresso'"},
	"equipment":    map[string]any{"type": "string", "description": "What espresso/brew equipment they have or need"},
	"volume":       map[string]any{"type": "string", "description": "Expected volume, e.g. '200 cups a day', '15 kg a week'"},
}

var existingCafeFieldSchema = map[string]any{
	"current_pain_points":  map[string]any{"type": "string", "description": "Problems with their current coffee or supplier"},
	"cafe_count":           map[string]any{"type": "string", "description": "How many locations they operate"},
	"support_needs":        map[string]any{"type": "string", "description": "Training, service, or marketing support they want"},
	"current_coffee_style": map[string]any{"type": "string", "description": "What they serve today"},
	"coffee_preference":    map[string]any{"type": "string", "description": "What they would rather be serving"},
}

// LLMExtractor implements Extractor with one forced function call.
type LLMExtractor struct {
	client llm.Client
	model  string
}

func NewLLMExtractor(client llm.Client, model string) *LLMExtractor {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &LLMExtractor{client: client, model: model}
}

func (e *LLMExtractor) Extract(ctx context.Context, input ExtractionInput) (Extraction, error) {
	schema, err := extractionSchema(input)
	if err != nil {
		return emptyExtraction(), err
	}

	messages := make([]llm.ChatMessage, 0, len(input.History)+1)
	history := input.History
	if len(history) > 6 {
		history = history[len(history)-6:]
	}
	messages = append(messages, history...)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: input.Message})

	resp, err := e.client.Complete(ctx, llm.Request{
		Model:     e.model,
		System:    []string{extractorSystemPrompt},
		Messages:  messages,
		MaxTokens: 300,
		Tools: []llm.ToolSpec{{
			Name:        extractorToolName,
			Description: "Record any CRM fields present in the prospect's latest message",
			Parameters:  schema,
		}},
		ForceTool: extractorToolName,
	})
	if err != nil {
		return emptyExtraction(), err
	}
	if len(resp.ToolCalls) == 0 {
		return emptyExtraction(), nil
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(resp.ToolCalls[0].Arguments), &raw); err != nil {
		return emptyExtraction(), fmt.Errorf("conversation: decode extraction arguments: %w", err)
	}
	return refineExtraction(raw, input), nil
}

// extractionSchema builds the tool parameter schema for the customer type.
func extractionSchema(input ExtractionInput) (json.RawMessage, error) {
	properties := make(map[string]any)
	for k, v := range contactFieldSchema {
		properties[k] = v
	}
	if !input.ExplorationOnly {
		var typed map[string]any
		switch input.CustomerType {
		case CustomerTypeNewCafe:
			typed = newCafeFieldSchema
		case CustomerTypeExistingCafe:
			typed = existingCafeFieldSchema
		}
		for k, v := range typed {
			properties[k] = v
		}
	}
	return json.Marshal(map[string]any{
		"type":       "object",
		"properties": properties,
	})
}

var bareNumberRe = regexp.MustCompile(`^\d+([.,]\d+)?$`)

// numericSensitiveFields are fields where a bare number is meaningless
// without a unit or timeframe.
var numericSensitiveFields = map[string]struct{}{
	FieldVolume:   {},
	FieldTimeline: {},
}

// styleFields get a lexical consistency check: the extracted value must
// share at least one token with the message or the model invented it.
var styleFields = map[string]struct{}{
	FieldCoffeeStyle:        {},
	FieldCurrentCoffeeStyle: {},
	FieldCoffeePreference:   {},
}

// refineExtraction applies the post-extraction validation rules.
func refineExtraction(raw map[string]string, input ExtractionInput) Extraction {
	out := Extraction{
		Values:    make(map[string]string),
		Ambiguous: make(map[string]string),
	}
	allowed := make(map[string]struct{})
	for _, f := range KnownFields(input.CustomerType) {
		allowed[f] = struct{}{}
	}
	if input.ExplorationOnly {
		allowed = map[string]struct{}{FieldName: {}, FieldPhone: {}, FieldEmail: {}}
	}

	messageTokens := tokenSet(input.Message)
	for field, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := allowed[field]; !ok {
			continue
		}
		if strings.EqualFold(value, unclearMarker) {
			out.Unclear = append(out.Unclear, field)
			continue
		}
		if _, ok := styleFields[field]; ok && !sharesToken(value, messageTokens) {
			continue
		}
		if _, ok := numericSensitiveFields[field]; ok && bareNumberRe.MatchString(value) {
			out.Ambiguous[field] = value
			continue
		}
		out.Values[field] = value
	}
	return out
}

func emptyExtraction() Extraction {
	return Extraction{Values: map[string]string{}, Ambiguous: map[string]string{}}
}

var tokenSplitRe = regexp.MustCompile(`[^a-z0-9]+`)

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenSplitRe.Split(strings.ToLower(text), -1) {
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

func sharesToken(value string, messageTokens map[string]struct{}) bool {
	for _, tok := range tokenSplitRe.Split(strings.ToLower(value), -1) {
		if tok == "" {
			continue
		}
		if _, ok := messageTokens[tok]; ok {
			return true
		}
	}
	return false
}

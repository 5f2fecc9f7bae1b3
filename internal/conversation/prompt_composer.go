package conversation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
)

// personaPrompt is the fixed outward-facing voice of the outbound bot.
const personaPrompt = "You are Logan, a friendly wholesale specialist for Abbotsford Road Coffee, a specialty roaster supplying cafes. You talk like a knowledgeable human, not a form. Keep replies short, warm, and concrete. Never invent pricing or availability. Your goal is to understand the prospect's cafe and, when the moment is right, collect a name and one way to reach them."

// historyWindow bounds how many prior turns ride along on the final
// completion call.
const historyWindow = 8

// briefResponseThreshold is how many consecutive one-or-two-word replies
// switch the prompt to simpler pacing.
const briefResponseThreshold = 3

var stageInstructions = map[IntentStage]string{
	StageExploring:        "The prospect is exploring. Be helpful and curious, do not push for details or contact info. Answer what they ask and keep the door open.",
	StageInterestDetected: "The prospect has shown some interest but has not committed. Gently learn more about their situation. Do not start a checklist of questions.",
	StageIntentConfirmed:  "The prospect has a real plan. You may start learning the specifics of their cafe, one question at a time, woven into normal conversation.",
	StageQualifying:       "You are gathering the remaining details. Ask exactly one question per reply, acknowledge their last answer first, and never re-ask anything already collected.",
	StageQualified:        "Everything needed is collected. Wrap up warmly, tell them the team will follow up, and answer any remaining questions without asking for more details.",
}

var fieldLabels = map[string]string{
	FieldName:               "name",
	FieldPhone:              "phone",
	FieldEmail:              "email",
	FieldTimeline:           "opening timeline",
	FieldCoffeeStyle:        "coffee style",
	FieldEquipment:          "equipment situation",
	FieldVolume:             "expected volume",
	FieldPainPoints:         "current pain points",
	FieldCafeCount:          "number of locations",
	FieldSupportNeeds:       "support needs",
	FieldCurrentCoffeeStyle: "current coffee",
	FieldCoffeePreference:   "coffee preference",
}

// PromptComposer assembles the one-shot message list for the final
// response call: persona, stage guidance, the already-collected block, any
// extra context (RAG excerpts, redirect instructions), then trimmed history
// and the user's message.
type PromptComposer struct{}

func NewPromptComposer() *PromptComposer {
	return &PromptComposer{}
}

// Compose builds the system blocks and message list for one completion.
func (p *PromptComposer) Compose(s *State, history []llm.ChatMessage, userMessage, extraContext string) ([]string, []llm.ChatMessage) {
	system := []string{personaPrompt}

	if inst, ok := stageInstructions[s.IntentStage]; ok {
		system = append(system, inst)
	}
	if block := collectedFieldsBlock(s); block != "" {
		system = append(system, block)
	}
	if s.BriefResponseCount >= briefResponseThreshold {
		system = append(system, "The prospect is giving very short answers. Keep your replies to one or two short sentences and offer to simplify or wrap up.")
	}
	if extraContext != "" {
		system = append(system, extraContext)
	}

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	messages := make([]llm.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: userMessage})
	return system, messages
}

// collectedFieldsBlock renders the never-re-ask block from populated
// fields. Sentinel values are listed as skipped so the model does not
// circle back to them either.
func collectedFieldsBlock(s *State) string {
	if len(s.Fields) == 0 {
		return ""
	}
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var collected, skipped []string
	for _, name := range names {
		label := fieldLabels[name]
		if label == "" {
			label = name
		}
		switch s.Fields[name] {
		case ValueToBeDiscussed:
			skipped = append(skipped, label+" (will be covered by the team)")
		case ValueUserDeclined:
			skipped = append(skipped, label+" (declined, do not bring it up again)")
		default:
			collected = append(collected, fmt.Sprintf("%s: %s", label, s.Fields[name]))
		}
	}

	var sb strings.Builder
	sb.WriteString("Already collected, never ask for these again:\n")
	for _, line := range collected {
		sb.WriteString("- " + line + "\n")
	}
	for _, line := range skipped {
		sb.WriteString("- " + line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ragRedirectInstruction words the escalating redirect appended after a
// knowledge-base answer, keyed by how many questions the prospect has
// asked so far (1-based, after incrementing).
func ragRedirectInstruction(count int, pendingField string) string {
	pending := fieldLabels[pendingField]
	if pending == "" {
		pending = pendingField
	}
	switch {
	case count <= 1:
		return fmt.Sprintf("After answering, gently steer back to the conversation, e.g. pick up the pending question about their %s.", pending)
	case count == 2:
		return fmt.Sprintf("After answering, steer back more firmly: remind them you just need a couple of details, starting with their %s.", pending)
	case count == 3:
		return fmt.Sprintf("After answering, acknowledge they're doing their homework, then ask directly for their %s so the team can take the detailed questions.", pending)
	default:
		return "After a brief answer, explain the team call is the right place for this level of detail and ask for the one thing still needed to set it up."
	}
}

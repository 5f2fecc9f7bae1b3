package conversation

import (
	"strings"
	"testing"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
)

func TestComposeIncludesCollectedFields(t *testing.T) {
	p := NewPromptComposer()
	s := NewState()
	s.IntentStage = StageQualifying
	s.SetField(FieldName, "Sam")
	s.MarkDeferred(FieldEquipment)
	s.MarkDeclined(FieldPhone)

	system, messages := p.Compose(s, nil, "hello", "")
	joined := strings.Join(system, "\n")
	if !strings.Contains(joined, personaPrompt) {
		t.Fatal("persona missing")
	}
	if !strings.Contains(joined, "name: Sam") {
		t.Fatalf("collected block missing name:\n%s", joined)
	}
	if !strings.Contains(joined, "equipment situation (will be covered by the team)") {
		t.Fatalf("deferred field not rendered:\n%s", joined)
	}
	if !strings.Contains(joined, "phone (declined, do not bring it up again)") {
		t.Fatalf("declined field not rendered:\n%s", joined)
	}
	if len(messages) != 1 || messages[0].Content != "hello" {
		t.Fatalf("messages = %v", messages)
	}
}

func TestComposeTrimsHistory(t *testing.T) {
	p := NewPromptComposer()
	s := NewState()

	history := make([]llm.ChatMessage, 0, historyWindow+4)
	for i := 0; i < historyWindow+4; i++ {
		history = append(history, llm.ChatMessage{Role: llm.RoleUser, Content: "turn"})
	}
	_, messages := p.Compose(s, history, "latest", "")
	if len(messages) != historyWindow+1 {
		t.Fatalf("messages = %d, want %d", len(messages), historyWindow+1)
	}
	if messages[len(messages)-1].Content != "latest" {
		t.Fatal("user message must come last")
	}
}

func TestComposeBriefResponsePacing(t *testing.T) {
	p := NewPromptComposer()
	s := NewState()
	s.BriefResponseCount = briefResponseThreshold

	system, _ := p.Compose(s, nil, "ok", "")
	joined := strings.Join(system, "\n")
	if !strings.Contains(joined, "very short answers") {
		t.Fatalf("pacing block missing:\n%s", joined)
	}
}

func TestComposeAppendsExtraContext(t *testing.T) {
	p := NewPromptComposer()
	s := NewState()

	system, _ := p.Compose(s, nil, "hi", "some retrieved excerpts")
	if system[len(system)-1] != "some retrieved excerpts" {
		t.Fatalf("extra context must come last, got %v", system)
	}
}

func TestRAGRedirectInstructionTiers(t *testing.T) {
	tests := []struct {
		count int
		want  string
	}{
		{1, "gently steer back"},
		{2, "more firmly"},
		{3, "doing their homework"},
		{4, "team call is the right place"},
		{7, "team call is the right place"},
	}
	for _, tt := range tests {
		got := ragRedirectInstruction(tt.count, FieldTimeline)
		if !strings.Contains(got, tt.want) {
			t.Errorf("count %d: %q does not contain %q", tt.count, got, tt.want)
		}
	}
}

func TestQuestionGeneratorVariants(t *testing.T) {
	g := NewQuestionGenerator()
	if g.Question(FieldVolume, 0) != firstAskQuestions[FieldVolume] {
		t.Fatal("first ask should use the direct wording")
	}
	if g.Question(FieldVolume, 1) != reAskQuestions[FieldVolume] {
		t.Fatal("re-ask should use the softened wording")
	}
	if got := g.Question("roast_profile", 0); !strings.Contains(got, "roast_profile") {
		t.Fatalf("unknown field fallback = %q", got)
	}
	if got := g.ClarifyAmbiguousNumber(FieldTimeline, "3"); got != "3 days, weeks, or months?" {
		t.Fatalf("clarify = %q", got)
	}
}

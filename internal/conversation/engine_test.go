package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
)

type recordingListener struct {
	ids    []string
	states []*State
	err    error
}

func (l *recordingListener) QualifiedLead(_ context.Context, conversationID string, s *State) error {
	l.ids = append(l.ids, conversationID)
	l.states = append(l.states, s)
	return l.err
}

type failingClient struct{}

func (failingClient) Complete(context.Context, llm.Request) (llm.Response, error) {
	return llm.Response{}, errors.New("model unavailable")
}

func TestEngineProcessMessageFreshConversation(t *testing.T) {
	f := defaultFixture()
	f.types.det = TypeDetection{Type: CustomerTypeNewCafe, Confidence: ConfidenceHigh}
	e := NewEngine(newTestController(f), nil)

	result, err := e.ProcessMessage(context.Background(), ProcessRequest{
		ConversationID: "conv-1",
		Message:        "hey, I'm opening a cafe this fall",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Response == "" || result.Qualified {
		t.Fatalf("result = %+v", result)
	}
	if result.State["intent_stage"] != "qualifying" {
		t.Fatalf("state stage = %v", result.State["intent_stage"])
	}
}

func TestEngineNotifiesListenerOnQualification(t *testing.T) {
	f := defaultFixture()
	f.extractor.ext = Extraction{Values: map[string]string{FieldEmail: "sam@gmail.com"}}
	listener := &recordingListener{}
	e := NewEngine(newTestController(f), nil, WithQualifiedListener(listener))

	prior := NewState()
	prior.CustomerType = CustomerTypeNewCafe
	prior.IntentStage = StageQualifying
	prior.SetField(FieldName, "Sam")
	prior.LastAskedField = FieldEmail

	result, err := e.ProcessMessage(context.Background(), ProcessRequest{
		ConversationID: "conv-2",
		Message:        "sam@gmail.com",
		State:          prior.ToMap(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Qualified {
		t.Fatal("expected qualification")
	}
	if len(listener.ids) != 1 || listener.ids[0] != "conv-2" {
		t.Fatalf("listener ids = %v", listener.ids)
	}
	if v := listener.states[0].Fields[FieldEmail]; v != "sam@gmail.com" {
		t.Fatalf("listener state email = %q", v)
	}
	if result.State["is_qualified"] != true {
		t.Fatalf("state = %v", result.State["is_qualified"])
	}
}

func TestEngineListenerErrorDoesNotFailTurn(t *testing.T) {
	f := defaultFixture()
	f.extractor.ext = Extraction{Values: map[string]string{FieldEmail: "sam@gmail.com"}}
	listener := &recordingListener{err: errors.New("crm down")}
	e := NewEngine(newTestController(f), nil, WithQualifiedListener(listener))

	prior := NewState()
	prior.CustomerType = CustomerTypeNewCafe
	prior.IntentStage = StageQualifying
	prior.SetField(FieldName, "Sam")
	prior.LastAskedField = FieldEmail

	result, err := e.ProcessMessage(context.Background(), ProcessRequest{
		ConversationID: "conv-3",
		Message:        "sam@gmail.com",
		State:          prior.ToMap(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Qualified {
		t.Fatal("listener failure must not undo qualification")
	}
}

func TestEngineReturnsOriginalStateOnError(t *testing.T) {
	f := defaultFixture()
	deps := ControllerDeps{
		Types:     f.types,
		Flows:     f.flows,
		Extractor: f.extractor,
		Responder: NewResponseBuilder(failingClient{}, "test-model", nil),
	}
	e := NewEngine(NewController(deps, WithDetectionStagger(0)), nil)

	prior := NewState()
	prior.IntentStage = StageInterestDetected
	priorMap := prior.ToMap()

	result, err := e.ProcessMessage(context.Background(), ProcessRequest{
		ConversationID: "conv-4",
		Message:        "tell me more about your beans and roasting style",
		State:          priorMap,
	})
	if err == nil {
		t.Fatal("expected response failure to propagate")
	}
	if result.State["intent_stage"] != priorMap["intent_stage"] {
		t.Fatal("failed turn must return the caller's state untouched")
	}
}

func TestHistoryToMessages(t *testing.T) {
	got := historyToMessages([]Turn{
		{Role: "user", Content: "hi"},
		{Role: "bot", Content: "hello!"},
		{Role: llm.RoleAssistant, Content: "anything else?"},
	})
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Role != llm.RoleUser || got[1].Role != llm.RoleAssistant || got[2].Role != llm.RoleAssistant {
		t.Fatalf("roles = %v", got)
	}
}

package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/rag"
)

// promptEchoClient reflects the composed system blocks back as the reply so
// tests can assert what the controller instructed the model to do.
type promptEchoClient struct{}

func (promptEchoClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	return llm.Response{Text: strings.Join(req.System, "\n")}, nil
}

type stubTypes struct {
	det   TypeDetection
	err   error
	calls int
}

func (s *stubTypes) DetectType(context.Context, string, []llm.ChatMessage) (TypeDetection, error) {
	s.calls++
	return s.det, s.err
}

type stubFlows struct {
	det   FlowDetection
	err   error
	calls int
}

func (s *stubFlows) DetectFlow(context.Context, string, string, []llm.ChatMessage) (FlowDetection, error) {
	s.calls++
	return s.det, s.err
}

type stubExtractor struct {
	ext Extraction
	err error
}

func (s *stubExtractor) Extract(context.Context, ExtractionInput) (Extraction, error) {
	return s.ext, s.err
}

type stubRetriever struct {
	results []rag.Result
	queries []string
}

func (s *stubRetriever) Retrieve(_ context.Context, query string, _ int) ([]rag.Result, error) {
	s.queries = append(s.queries, query)
	return s.results, nil
}

type controllerFixture struct {
	types     *stubTypes
	flows     *stubFlows
	extractor *stubExtractor
	retriever *stubRetriever
}

func newTestController(f *controllerFixture) *Controller {
	checker := &recordingChecker{err: errors.New("dns disabled in tests")}
	deps := ControllerDeps{
		Types:     f.types,
		Flows:     f.flows,
		Extractor: f.extractor,
		Responder: NewResponseBuilder(promptEchoClient{}, "test-model", nil),
		Retriever: f.retriever,
		Emails:    NewEmailValidator(checker),
	}
	return NewController(deps, WithDetectionStagger(0))
}

func defaultFixture() *controllerFixture {
	return &controllerFixture{
		types:     &stubTypes{det: TypeDetection{Type: CustomerTypeUnknown, Confidence: ConfidenceLow}},
		flows:     &stubFlows{det: FlowDetection{State: FlowContinuing}},
		extractor: &stubExtractor{ext: Extraction{}},
		retriever: &stubRetriever{},
	}
}

func TestProcessTurnHighConfidenceStartsQualifying(t *testing.T) {
	f := defaultFixture()
	f.types.det = TypeDetection{Type: CustomerTypeNewCafe, Confidence: ConfidenceHigh}
	c := newTestController(f)
	s := NewState()

	result, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "Hi! I'm signing a lease and opening a cafe"})
	if err != nil {
		t.Fatal(err)
	}
	if s.CustomerType != CustomerTypeNewCafe || s.IntentStage != StageQualifying {
		t.Fatalf("type=%s stage=%s", s.CustomerType, s.IntentStage)
	}
	if s.LastAskedField != FieldName || s.FieldAskCounts[FieldName] != 1 {
		t.Fatalf("asked=%q counts=%v", s.LastAskedField, s.FieldAskCounts)
	}
	if !strings.Contains(result.Response, firstAskQuestions[FieldName]) {
		t.Fatalf("reply should instruct the name question, got %q", result.Response)
	}
	if f.flows.calls != 0 {
		t.Fatal("flow detector must not run before the customer type is known")
	}
}

func TestProcessTurnMediumConfidenceParksInterest(t *testing.T) {
	f := defaultFixture()
	f.types.det = TypeDetection{Type: CustomerTypeNewCafe, Confidence: ConfidenceMedium}
	c := newTestController(f)
	s := NewState()

	if _, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "been thinking about maybe opening a little cafe"}); err != nil {
		t.Fatal(err)
	}
	if s.IntentStage != StageInterestDetected {
		t.Fatalf("stage = %s, want interest_detected", s.IntentStage)
	}
	if s.LastAskedField != "" {
		t.Fatalf("no qualification question yet, but asked %q", s.LastAskedField)
	}
}

// gatedExtractor mimics the production extractor's restriction: while the
// input says contact-only, qualification fields are withheld.
type gatedExtractor struct {
	ext Extraction
}

func (g *gatedExtractor) Extract(_ context.Context, input ExtractionInput) (Extraction, error) {
	if !input.ExplorationOnly {
		return g.ext, nil
	}
	contact := Extraction{Values: map[string]string{}, Ambiguous: map[string]string{}}
	for _, f := range []string{FieldName, FieldPhone, FieldEmail} {
		if v, ok := g.ext.Values[f]; ok {
			contact.Values[f] = v
		}
	}
	return contact, nil
}

func TestProcessTurnMediumConfidenceCanStillQualify(t *testing.T) {
	f := defaultFixture()
	f.types.det = TypeDetection{Type: CustomerTypeNewCafe, Confidence: ConfidenceMedium}
	gated := &gatedExtractor{ext: Extraction{}}
	deps := ControllerDeps{
		Types:     f.types,
		Flows:     f.flows,
		Extractor: gated,
		Responder: NewResponseBuilder(promptEchoClient{}, "test-model", nil),
	}
	c := NewController(deps, WithDetectionStagger(0))
	s := NewState()
	ctx := context.Background()

	if _, err := c.ProcessTurn(ctx, s, TurnInput{Message: "been thinking about maybe opening a little cafe"}); err != nil {
		t.Fatal(err)
	}
	if s.IntentStage != StageInterestDetected {
		t.Fatalf("stage = %s, want interest_detected", s.IntentStage)
	}

	// A concrete timeline is a commitment signal. The type is known now, so
	// extraction must be allowed to see qualification fields.
	gated.ext = Extraction{Values: map[string]string{FieldTimeline: "3 months"}}
	if _, err := c.ProcessTurn(ctx, s, TurnInput{Message: "we're aiming to open in about 3 months"}); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetField(FieldTimeline); v != "3 months" {
		t.Fatalf("timeline = %q, want stored during interest_detected", v)
	}
	if s.IntentStage != StageQualifying {
		t.Fatalf("stage = %s, want qualifying", s.IntentStage)
	}
	if s.LastAskedField != FieldName {
		t.Fatalf("asked = %q, want name first", s.LastAskedField)
	}
}

func TestProcessTurnCommitmentSignalUpgradesInterest(t *testing.T) {
	f := defaultFixture()
	c := newTestController(f)
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageInterestDetected
	s.SetField(FieldTimeline, "3 months")

	if _, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "so yeah that's the plan"}); err != nil {
		t.Fatal(err)
	}
	if s.IntentStage != StageQualifying {
		t.Fatalf("stage = %s, want qualifying", s.IntentStage)
	}
	if s.LastAskedField != FieldName {
		t.Fatalf("asked = %q, want name first", s.LastAskedField)
	}
}

func TestProcessTurnFallbackStoresAskedField(t *testing.T) {
	f := defaultFixture()
	c := newTestController(f)
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageQualifying
	s.LastAskedField = FieldName
	s.RecordAsk(FieldName)

	if _, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "Sam"}); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetField(FieldName); v != "Sam" {
		t.Fatalf("name = %q", v)
	}
	if s.LastAskedField != FieldTimeline {
		t.Fatalf("next ask = %q, want timeline", s.LastAskedField)
	}
}

func TestProcessTurnContactRefusalOffersAlternate(t *testing.T) {
	f := defaultFixture()
	f.flows.det = FlowDetection{State: FlowRefusesContact}
	c := newTestController(f)
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageQualifying
	s.SetField(FieldName, "Sam")
	s.LastAskedField = FieldPhone

	result, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "I'd rather not share my number"})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetField(FieldPhone); v != ValueUserDeclined {
		t.Fatalf("phone = %q, want declined sentinel", v)
	}
	if s.ContactRefusalCount != 1 {
		t.Fatalf("refusals = %d", s.ContactRefusalCount)
	}
	if !strings.Contains(strings.ToLower(result.Response), "email") {
		t.Fatalf("reply should offer email, got %q", result.Response)
	}
	// The declined channel satisfies completion, but qualification waits
	// for the next turn so the alternate offer lands first.
	if s.Qualified || result.QualifiedNow {
		t.Fatal("refusal turn must not complete qualification")
	}
	if s.LastAskedField != FieldEmail {
		t.Fatalf("asked = %q, want email", s.LastAskedField)
	}
}

func TestProcessTurnQualifiesOnCompletion(t *testing.T) {
	f := defaultFixture()
	f.extractor.ext = Extraction{Values: map[string]string{FieldEmail: "sam@gmail.com"}}
	c := newTestController(f)
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageQualifying
	s.SetField(FieldName, "Sam")
	s.LastAskedField = FieldEmail

	result, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "sure, sam@gmail.com works"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.QualifiedNow || !s.Qualified || s.IntentStage != StageQualified {
		t.Fatalf("qualifiedNow=%v qualified=%v stage=%s", result.QualifiedNow, s.Qualified, s.IntentStage)
	}
	if v, _ := s.GetField(FieldEmail); v != "sam@gmail.com" {
		t.Fatalf("email = %q", v)
	}

	// Qualification latches: a second completion never fires again.
	f.extractor.ext = Extraction{}
	result, err = c.ProcessTurn(context.Background(), s, TurnInput{Message: "great, looking forward to it"})
	if err != nil {
		t.Fatal(err)
	}
	if result.QualifiedNow {
		t.Fatal("qualification must fire once")
	}
}

func TestProcessTurnKnowledgeQuestionEscalation(t *testing.T) {
	f := defaultFixture()
	f.flows.det = FlowDetection{State: FlowAskingQuestion}
	f.retriever.results = []rag.Result{{Text: "We ship wholesale orders across the US and Canada.", Score: 0.92}}
	c := newTestController(f)
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageQualifying

	result, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "do you ship to Canada?"})
	if err != nil {
		t.Fatal(err)
	}
	if s.RAGQuestionsCount != 1 {
		t.Fatalf("rag count = %d", s.RAGQuestionsCount)
	}
	if len(f.retriever.queries) != 1 || f.retriever.queries[0] != "do you ship to Canada?" {
		t.Fatalf("retriever queries = %v", f.retriever.queries)
	}
	if !strings.Contains(result.Response, "We ship wholesale orders") {
		t.Fatalf("reply should carry retrieved excerpts, got %q", result.Response)
	}
	if !strings.Contains(result.Response, "gently steer back") {
		t.Fatalf("first question gets the gentle redirect, got %q", result.Response)
	}
	if s.LastAskedField != FieldName {
		t.Fatalf("redirect should target the next missing field, got %q", s.LastAskedField)
	}

	// Fourth question gets the defer-to-team wording.
	s.RAGQuestionsCount = 3
	result, err = c.ProcessTurn(context.Background(), s, TurnInput{Message: "what roasters do you use?"})
	if err != nil {
		t.Fatal(err)
	}
	if s.RAGQuestionsCount != 4 {
		t.Fatalf("rag count = %d", s.RAGQuestionsCount)
	}
	if !strings.Contains(result.Response, "team call is the right place") {
		t.Fatalf("fourth question defers to the team, got %q", result.Response)
	}
}

func TestProcessTurnWantsToExitResetsStage(t *testing.T) {
	f := defaultFixture()
	f.flows.det = FlowDetection{State: FlowWantsToExit}
	c := newTestController(f)
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageQualifying
	s.LastAskedField = FieldTimeline

	if _, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "can we slow down, I'm not ready to commit to anything"}); err != nil {
		t.Fatal(err)
	}
	if s.IntentStage != StageExploring || s.LastAskedField != "" {
		t.Fatalf("stage=%s asked=%q", s.IntentStage, s.LastAskedField)
	}
}

func TestProcessTurnGoodbye(t *testing.T) {
	c := newTestController(defaultFixture())
	s := NewState()
	result, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "gotta go, talk later!"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.ShouldEnd || result.Response != farewellReply {
		t.Fatalf("result = %+v", result)
	}
}

func TestProcessTurnQualifiedClosureUsesName(t *testing.T) {
	c := newTestController(defaultFixture())
	s := NewState()
	s.SetField(FieldName, "Sam")
	s.Qualified = true
	s.IntentStage = StageQualified

	result, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "that's all, thanks"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.ShouldEnd || !strings.Contains(result.Response, "Sam") {
		t.Fatalf("result = %+v", result)
	}
}

func TestProcessTurnContactSubFlowCanQualify(t *testing.T) {
	f := defaultFixture()
	c := newTestController(f)
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageQualifying
	s.SetField(FieldName, "Sam")
	ctx := context.Background()

	result, err := c.ProcessTurn(ctx, s, TurnInput{Message: "actually can I just talk to a real person?"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Response != HumanConnectionFlowConfig.AskMethod {
		t.Fatalf("reply = %q", result.Response)
	}

	if _, err = c.ProcessTurn(ctx, s, TurnInput{Message: "email works"}); err != nil {
		t.Fatal(err)
	}
	result, err = c.ProcessTurn(ctx, s, TurnInput{Message: "sam@gmail.com"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.QualifiedNow || !s.Qualified {
		t.Fatalf("sub-flow completion should qualify, got %+v", result)
	}
	if result.Response != HumanConnectionFlowConfig.Done {
		t.Fatalf("reply = %q", result.Response)
	}
}

func TestProcessTurnAmbiguousNumberAsksForUnit(t *testing.T) {
	f := defaultFixture()
	f.extractor.ext = Extraction{Ambiguous: map[string]string{FieldVolume: "200"}}
	c := newTestController(f)
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageQualifying
	s.LastAskedField = FieldVolume

	result, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "200"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Response != "200 what, roughly, cups a day, kilos a week?" {
		t.Fatalf("reply = %q", result.Response)
	}
	if _, collected := s.GetField(FieldVolume); collected {
		t.Fatal("ambiguous value must not be stored")
	}
}

func TestProcessTurnAssumedCountryNeedsConfirmation(t *testing.T) {
	f := defaultFixture()
	f.extractor.ext = Extraction{Values: map[string]string{FieldPhone: "2125550123"}}
	c := newTestController(f)
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageQualifying
	s.SetField(FieldName, "Sam")
	s.LastAskedField = FieldPhone
	ctx := context.Background()

	result, err := c.ProcessTurn(ctx, s, TurnInput{Message: "2125550123"})
	if err != nil {
		t.Fatal(err)
	}
	if s.PendingPhone != "+12125550123" {
		t.Fatalf("pending = %q", s.PendingPhone)
	}
	if !strings.Contains(result.Response, "+1 212-555-0123") {
		t.Fatalf("reply = %q", result.Response)
	}
	if _, collected := s.GetField(FieldPhone); collected {
		t.Fatal("unconfirmed number must not be stored")
	}

	f.extractor.ext = Extraction{}
	result, err = c.ProcessTurn(ctx, s, TurnInput{Message: "yep"})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetField(FieldPhone); v != "+12125550123" {
		t.Fatalf("phone = %q", v)
	}
	if !result.QualifiedNow {
		t.Fatal("confirmed phone completes qualification")
	}
}

func TestProcessTurnSkipRequestDefersPreferredField(t *testing.T) {
	f := defaultFixture()
	c := newTestController(f)
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageQualifying
	s.SetField(FieldName, "Sam")
	s.LastAskedField = FieldEquipment

	if _, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "let's skip that one"}); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetField(FieldEquipment); v != ValueToBeDiscussed {
		t.Fatalf("equipment = %q, want deferred", v)
	}
	if s.SkippedPreferredCount != 1 {
		t.Fatalf("skips = %d", s.SkippedPreferredCount)
	}
}

func TestProcessTurnTwoAsksAutoDeferPreferredField(t *testing.T) {
	f := defaultFixture()
	c := newTestController(f)
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageQualifying
	s.SetField(FieldName, "Sam")
	s.FieldAskCounts[FieldTimeline] = maxFieldAsks

	if _, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "anyway, where were we"}); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetField(FieldTimeline); v != ValueToBeDiscussed {
		t.Fatalf("timeline = %q, want auto-deferred", v)
	}
	if s.LastAskedField != FieldCoffeeStyle {
		t.Fatalf("asked = %q, want coffee_style", s.LastAskedField)
	}
}

func TestProcessTurnCasualBrowsingStaysExploring(t *testing.T) {
	f := defaultFixture()
	f.types.det = TypeDetection{Type: CustomerTypeNewCafe, Confidence: ConfidenceMedium}
	c := newTestController(f)
	s := NewState()

	if _, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "oh I'm just browsing for now honestly"}); err != nil {
		t.Fatal(err)
	}
	if s.IntentStage != StageExploring {
		t.Fatalf("stage = %s, want exploring", s.IntentStage)
	}
}

func TestProcessTurnClassifierErrorsDegrade(t *testing.T) {
	f := defaultFixture()
	f.types.err = errors.New("upstream timeout")
	f.extractor.err = errors.New("upstream timeout")
	c := newTestController(f)
	s := NewState()

	result, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "hey, looking into coffee for a new shop"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Response == "" {
		t.Fatal("degraded turn must still answer")
	}
	if s.IntentStage != StageExploring || s.CustomerType != CustomerTypeUnknown {
		t.Fatalf("degraded turn must not advance state: %s/%s", s.IntentStage, s.CustomerType)
	}
}

func TestProcessTurnEmptyMessage(t *testing.T) {
	c := newTestController(defaultFixture())
	s := NewState()
	result, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "   "})
	if err != nil {
		t.Fatal(err)
	}
	if result.Response == "" || result.ShouldEnd {
		t.Fatalf("result = %+v", result)
	}
}

func TestProcessTurnCountryHintFlowsIntoValidation(t *testing.T) {
	f := defaultFixture()
	f.extractor.ext = Extraction{Values: map[string]string{FieldPhone: "02 9374 4000"}}
	c := newTestController(f)
	s := NewState()
	s.CustomerType = CustomerTypeNewCafe
	s.IntentStage = StageQualifying
	s.LastAskedField = FieldPhone

	if _, err := c.ProcessTurn(context.Background(), s, TurnInput{Message: "02 9374 4000", CountryHint: "au"}); err != nil {
		t.Fatal(err)
	}
	if s.CountryCode != "AU" {
		t.Fatalf("country = %q", s.CountryCode)
	}
	if s.PendingPhone != "+61293744000" {
		t.Fatalf("pending = %q", s.PendingPhone)
	}
}

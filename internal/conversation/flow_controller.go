package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/observability/metrics"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/rag"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
	"go.opentelemetry.io/otel"
)

var controllerTracer = otel.Tracer("cafeai.internal.conversation.controller")

// defaultDetectionStagger is the fixed pause between dispatching the two
// parallel classifier calls. Client-side pacing for the upstream API, not
// a logical dependency.
const defaultDetectionStagger = 100 * time.Millisecond

const defaultRAGTopK = 3

const farewellReply = "Thanks for stopping by! Whenever you're ready to talk coffee, I'm here."

// TurnInput is one inbound message with its context.
type TurnInput struct {
	Message     string
	History     []llm.ChatMessage
	CountryHint string
}

// TurnResult is the controller's per-turn decision.
type TurnResult struct {
	Response     string
	ShouldEnd    bool
	QualifiedNow bool
}

// ControllerDeps are the collaborators the controller sequences. Detector
// and extractor ports take deterministic stubs in tests.
type ControllerDeps struct {
	Types     TypeDetector
	Flows     FlowDetector
	Questions QuestionIntentDetector
	Extractor Extractor
	Responder *ResponseBuilder
	Retriever rag.Retriever
	Emails    *EmailValidator
	Metrics   *metrics.ConversationMetrics
	Logger    *logging.Logger
}

// ControllerOption customizes controller behavior.
type ControllerOption func(*Controller)

// WithDetectionStagger overrides the pause between parallel LLM dispatches.
func WithDetectionStagger(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d >= 0 {
			c.stagger = d
		}
	}
}

// WithRAGTopK overrides how many chunks feed a knowledge answer.
func WithRAGTopK(k int) ControllerOption {
	return func(c *Controller) {
		if k > 0 {
			c.ragTopK = k
		}
	}
}

// Controller is the per-turn orchestration core: it sequences detectors,
// extractors, validators, and stage transitions into one decision. It holds
// no per-conversation state; every turn works on the State passed in.
type Controller struct {
	types     TypeDetector
	flows     FlowDetector
	questions QuestionIntentDetector
	extractor Extractor
	fallback  *FallbackExtractor
	responder *ResponseBuilder
	generator *QuestionGenerator
	emails    *EmailValidator
	retriever rag.Retriever
	metrics   *metrics.ConversationMetrics
	logger    *logging.Logger

	stagger time.Duration
	ragTopK int
}

func NewController(deps ControllerDeps, opts ...ControllerOption) *Controller {
	if deps.Types == nil || deps.Flows == nil || deps.Extractor == nil {
		panic("conversation: type detector, flow detector, and extractor are required")
	}
	if deps.Responder == nil {
		panic("conversation: response builder is required")
	}
	if deps.Questions == nil {
		deps.Questions = NewRuleBasedQuestionDetector(nil, "")
	}
	if deps.Emails == nil {
		deps.Emails = NewEmailValidator(nil)
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	c := &Controller{
		types:     deps.Types,
		flows:     deps.Flows,
		questions: deps.Questions,
		extractor: deps.Extractor,
		fallback:  NewFallbackExtractor(),
		responder: deps.Responder,
		generator: NewQuestionGenerator(),
		emails:    deps.Emails,
		retriever: deps.Retriever,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		stagger:   defaultDetectionStagger,
		ragTopK:   defaultRAGTopK,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessTurn runs the priority-ordered turn pipeline. The only error that
// propagates is a failure of the final response generation; every
// classifier or extraction failure degrades to a safe default and the turn
// proceeds.
func (c *Controller) ProcessTurn(ctx context.Context, s *State, in TurnInput) (TurnResult, error) {
	ctx, span := controllerTracer.Start(ctx, "conversation.process_turn")
	defer span.End()
	start := time.Now()
	defer func() {
		c.metrics.ObserveTurn("outbound", string(s.IntentStage), time.Since(start).Seconds())
	}()

	message := strings.TrimSpace(in.Message)
	if message == "" {
		return TurnResult{Response: "Sorry, I didn't catch that. What can I help you with?"}, nil
	}
	if hint := strings.ToUpper(strings.TrimSpace(in.CountryHint)); hint != "" {
		s.CountryCode = hint
	}
	if region := DetectCountry(message); region != "" {
		s.CountryCode = region
	}
	c.trackEngagement(s, message)

	// 1. Goodbye fast path.
	if IsGoodbye(message) {
		return TurnResult{Response: farewellReply, ShouldEnd: true}, nil
	}

	// 2. Post-qualification closure.
	if s.Qualified && IsClosure(message) {
		reply := "Perfect. The team has everything they need and will be in touch soon. Thanks for the chat!"
		if name, _ := s.GetField(FieldName); s.HasRealValue(FieldName) {
			reply = "Perfect, " + name + ". The team has everything they need and will be in touch soon. Thanks for the chat!"
		}
		return TurnResult{Response: reply, ShouldEnd: true}, nil
	}

	// 3/4. Nested contact sub-flow: resume an active one, or enter on a
	// human-connection or order request.
	if result, handled := c.handleContactSubFlow(ctx, s, message); handled {
		return result, nil
	}

	// 5. Parallel detection.
	det := c.detect(ctx, s, message, in.History)

	// 6. Flow-state dispatch.
	if det.flowRan {
		switch det.flow.State {
		case FlowWantsToExit:
			s.IntentStage = StageExploring
			s.LastAskedField = ""
			return c.respond(ctx, s, message, in.History,
				"The prospect wants to step back from the sales conversation. Acknowledge it warmly, take all pressure off, and leave the door open. Do not ask any qualifying question.")
		case FlowRefusesContact:
			return c.handleContactRefusal(s), nil
		case FlowAskingQuestion:
			c.applyExtraction(ctx, s, det, message)
			return c.answerKnowledgeQuestion(ctx, s, message, in.History)
		}
	}

	// The rule-based question detector backstops the flow classifier for
	// unmistakable questions.
	if isQ, err := c.questions.IsQuestion(ctx, message); err == nil && isQ && s.IntentStage != StageExploring {
		c.applyExtraction(ctx, s, det, message)
		return c.answerKnowledgeQuestion(ctx, s, message, in.History)
	} else if err != nil {
		c.observeClassifierError("question_detector", err)
	}

	// 7. Casual browsers stay in exploration indefinitely.
	if IsCasualBrowsing(message) {
		s.IntentStage = StageExploring
		return c.respond(ctx, s, message, in.History,
			"The prospect is just browsing. Be friendly and useful with zero sales pressure, and do not ask for any details.")
	}

	// 8. Customer-type and stage transitions.
	c.applyTypeDetection(s, det)

	// 9. Extraction, validation, and pending confirmations.
	if clarify := c.applyPendingConfirmations(s, message); clarify != "" {
		return TurnResult{Response: clarify}, nil
	}
	if clarify := c.applyExtraction(ctx, s, det, message); clarify != "" {
		return TurnResult{Response: clarify}, nil
	}
	c.applyCommitmentSignals(s)

	// 10. Qualification completion.
	if s.IntentStage == StageQualifying && s.IsComplete() && !s.Qualified {
		s.MarkQualified()
		c.metrics.ObserveQualified(string(s.CustomerType))
		result, err := c.respond(ctx, s, message, in.History,
			"Every detail needed is now collected. Thank the prospect by name, tell them the team will reach out on the contact they shared, and invite any last questions.")
		result.QualifiedNow = true
		return result, err
	}

	// 11. Ask the next qualification question.
	if s.IntentStage == StageQualifying {
		if question := c.nextQuestion(s); question != "" {
			return c.respond(ctx, s, message, in.History,
				"Acknowledge the prospect's last message in a sentence, then your reply must end by asking, in your own words: "+question)
		}
	}

	// 12. Default response.
	return c.respond(ctx, s, message, in.History, "")
}

// respond delegates to the response builder; its error is the one failure
// allowed out of the controller.
func (c *Controller) respond(ctx context.Context, s *State, message string, history []llm.ChatMessage, extraContext string) (TurnResult, error) {
	reply, err := c.responder.Respond(ctx, s, message, history, extraContext)
	if err != nil {
		return TurnResult{}, err
	}
	return TurnResult{Response: reply}, nil
}

func (c *Controller) trackEngagement(s *State, message string) {
	if len(strings.Fields(message)) <= 2 {
		s.BriefResponseCount++
	} else {
		s.BriefResponseCount = 0
	}
}

// handleContactSubFlow resumes or enters the nested contact state machine.
func (c *Controller) handleContactSubFlow(ctx context.Context, s *State, message string) (TurnResult, bool) {
	active := s.ContactFlowStage != ContactStageNone && s.ContactFlowStage != ContactStageConfirmed

	var cfg ContactFlowConfig
	switch {
	case active && s.ContactFlowReason == ContactReasonOrder:
		cfg = OrderFlowConfig
	case active:
		cfg = HumanConnectionFlowConfig
	case IsHumanConnectionRequest(message):
		cfg = HumanConnectionFlowConfig
		s.ContactFlowStage = ContactStageNone
	case IsOrderIntent(message):
		cfg = OrderFlowConfig
		s.WantsOrder = true
		s.ContactFlowStage = ContactStageNone
	default:
		return TurnResult{}, false
	}

	flow := newContactFlow(cfg, c.emails, c.logger)
	reply, done := flow.Handle(ctx, s, message)
	if done && s.IsComplete() && !s.Qualified {
		// Contact collected through the sub-flow can complete
		// qualification as a side effect.
		s.MarkQualified()
		c.metrics.ObserveQualified(string(s.CustomerType))
		return TurnResult{Response: reply, QualifiedNow: true}, true
	}
	return TurnResult{Response: reply}, true
}

type detectionResults struct {
	typeRan bool
	typeDet TypeDetection
	flowRan bool
	flow    FlowDetection
	extRan  bool
	ext     Extraction
}

// detect fans out the independent classification calls for this turn with
// a fixed stagger between dispatches. Which calls run depends on what the
// turn still needs: customer type before it is known, flow state after,
// and extraction whenever the stage allows fields to be collected.
func (c *Controller) detect(ctx context.Context, s *State, message string, history []llm.ChatMessage) detectionResults {
	needType := s.CustomerType == CustomerTypeUnknown
	needExtraction := true
	// Qualification fields open up as soon as the customer type is known,
	// even while the stage is still interest_detected: those early answers
	// are the commitment signals that confirm intent.
	explorationOnly := s.CustomerType == CustomerTypeUnknown

	var det detectionResults
	type typeOut struct {
		d   TypeDetection
		err error
	}
	type flowOut struct {
		d   FlowDetection
		err error
	}
	type extOut struct {
		e   Extraction
		err error
	}

	typeCh := make(chan typeOut, 1)
	flowCh := make(chan flowOut, 1)
	extCh := make(chan extOut, 1)

	if needType {
		go func() {
			d, err := c.types.DetectType(ctx, message, history)
			typeCh <- typeOut{d, err}
		}()
	} else {
		go func() {
			d, err := c.flows.DetectFlow(ctx, message, c.lastBotQuestion(history), history)
			flowCh <- flowOut{d, err}
		}()
	}

	if needExtraction {
		// Deliberate pacing gap before the second upstream call.
		if c.stagger > 0 {
			time.Sleep(c.stagger)
		}
		go func() {
			e, err := c.extractor.Extract(ctx, ExtractionInput{
				Message:         message,
				CustomerType:    s.CustomerType,
				History:         history,
				ExplorationOnly: explorationOnly,
			})
			extCh <- extOut{e, err}
		}()
	}

	if needType {
		out := <-typeCh
		det.typeRan = true
		det.typeDet = out.d
		if out.err != nil {
			c.observeClassifierError("type_detector", out.err)
			det.typeDet = TypeDetection{Type: CustomerTypeUnknown, Confidence: ConfidenceLow}
		}
	} else {
		out := <-flowCh
		det.flowRan = true
		det.flow = out.d
		if out.err != nil {
			c.observeClassifierError("flow_detector", out.err)
			det.flow = FlowDetection{State: FlowContinuing}
		}
	}
	if needExtraction {
		out := <-extCh
		det.extRan = true
		det.ext = out.e
		if out.err != nil {
			c.observeClassifierError("extractor", out.err)
			det.ext = emptyExtraction()
		}
	}
	return det
}

func (c *Controller) observeClassifierError(name string, err error) {
	c.metrics.ObserveClassifierError(name)
	c.logger.Warn("classifier degraded to default", "classifier", name, "error", err.Error())
}

// lastBotQuestion digs the bot's previous message out of history for the
// flow detector's "what was just asked" context.
func (c *Controller) lastBotQuestion(history []llm.ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}

// applyTypeDetection folds a type verdict into the stage machine. High
// confidence confirms intent immediately; medium only parks the
// conversation in interest_detected until a commitment signal shows up.
func (c *Controller) applyTypeDetection(s *State, det detectionResults) {
	if !det.typeRan || det.typeDet.Type == CustomerTypeUnknown {
		return
	}
	s.CustomerType = det.typeDet.Type
	switch det.typeDet.Confidence {
	case ConfidenceHigh:
		if s.IntentStage == StageExploring || s.IntentStage == StageInterestDetected {
			s.IntentStage = StageIntentConfirmed
		}
	case ConfidenceMedium:
		if s.IntentStage == StageExploring {
			s.IntentStage = StageInterestDetected
		}
	}
	if s.IntentStage == StageIntentConfirmed {
		s.IntentStage = StageQualifying
	}
}

// applyCommitmentSignals upgrades interest_detected once any qualification
// field holds a real value. The two-tier confirmation guards against
// starting qualification on a vague remark.
func (c *Controller) applyCommitmentSignals(s *State) {
	if s.IntentStage != StageInterestDetected {
		return
	}
	for _, f := range PreferredFields(s.CustomerType) {
		if s.HasRealValue(f) {
			s.IntentStage = StageQualifying
			return
		}
	}
}

// applyPendingConfirmations resolves an outstanding phone or email
// confirmation before new extraction runs. Returns a reply when the turn
// should short-circuit.
func (c *Controller) applyPendingConfirmations(s *State, message string) string {
	if s.PendingPhone != "" {
		switch {
		case IsAffirmative(message):
			s.SetField(FieldPhone, s.PendingPhone)
			s.PendingPhone = ""
		case IsNegative(message):
			s.PendingPhone = ""
			return "No problem, what's the right number then?"
		}
	}
	if s.PendingEmailSuggestion != "" {
		switch {
		case IsAffirmative(message):
			s.SetField(FieldEmail, s.PendingEmailSuggestion)
			s.PendingEmailSuggestion = ""
		case IsNegative(message):
			s.PendingEmailSuggestion = ""
			return emailRetypePrompt
		}
	}
	return ""
}

// applyExtraction stores extracted fields through validation. Returns a
// clarification question when one is needed, which short-circuits the turn.
func (c *Controller) applyExtraction(ctx context.Context, s *State, det detectionResults, message string) string {
	ext := det.ext
	if !det.extRan {
		ext = emptyExtraction()
	}

	// Fallback quick path: the bot just asked for a field and the LLM pass
	// produced nothing for it.
	if s.LastAskedField != "" && ext.Values[s.LastAskedField] == "" {
		if c.isSkipOfAskedField(s, message) {
			return ""
		}
		if value, ok := c.fallback.Extract(s.LastAskedField, message); ok {
			if ext.Values == nil {
				ext.Values = map[string]string{}
			}
			ext.Values[s.LastAskedField] = value
		}
	}

	// Ambiguous bare numbers beat storage: ask "200 what?" instead.
	for field, value := range ext.Ambiguous {
		if !s.HasRealValue(field) {
			return c.generator.ClarifyAmbiguousNumber(field, value)
		}
	}

	var clarify string
	for field, value := range ext.Values {
		switch field {
		case FieldName:
			if name, err := CleanName(value); err == nil {
				s.SetField(FieldName, name)
			}
		case FieldPhone:
			if q := c.storePhone(s, value, message); q != "" && clarify == "" {
				clarify = q
			}
		case FieldEmail:
			if q := c.storeEmail(ctx, s, value); q != "" && clarify == "" {
				clarify = q
			}
		default:
			if IsVagueResponse(value) {
				if field == s.LastAskedField && clarify == "" {
					clarify = c.generator.ClarifyVague(field)
				}
				continue
			}
			s.SetField(field, value)
		}
	}

	// Fields mentioned but unclear get one clarification when they are
	// what the bot just asked about.
	if clarify == "" {
		for _, field := range ext.Unclear {
			if field == s.LastAskedField {
				clarify = c.generator.ClarifyVague(field)
				break
			}
		}
	}
	return clarify
}

// isSkipOfAskedField handles an explicit skip of a preferred field.
func (c *Controller) isSkipOfAskedField(s *State, message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	skip := false
	for _, phrase := range []string{"skip", "pass", "rather not say", "doesn't matter", "doesnt matter", "not important", "next question", "don't worry about"} {
		if strings.Contains(lower, phrase) {
			skip = true
			break
		}
	}
	if !skip {
		return false
	}
	for _, f := range PreferredFields(s.CustomerType) {
		if f == s.LastAskedField {
			s.MarkDeferred(f)
			s.RecordPreferredSkip()
			return true
		}
	}
	return false
}

// storePhone validates and stores an extracted phone number. A number
// parsed under an assumed country comes back as a confirmation question
// instead of a silent write.
func (c *Controller) storePhone(s *State, value, message string) string {
	if s.HasRealValue(FieldPhone) {
		return ""
	}
	normalized, err := ValidatePhone(value, s.CountryCode, message)
	if err != nil {
		if s.LastAskedField != FieldPhone {
			return ""
		}
		s.PhoneValidationAttempts++
		if s.PhoneValidationAttempts >= maxContactValidationAttempts {
			s.ManualReviewNeeded = true
			s.MarkDeferred(FieldPhone)
			return ""
		}
		return phoneReprompt(err)
	}
	if !strings.HasPrefix(strings.TrimSpace(value), "+") {
		// Country was assumed; read it back before trusting it.
		s.PendingPhone = normalized
		return "Just to confirm, that's " + FormatPhoneForDisplay(normalized) + "?"
	}
	s.SetField(FieldPhone, normalized)
	return ""
}

// storeEmail validates and stores an extracted email address.
func (c *Controller) storeEmail(ctx context.Context, s *State, value string) string {
	if s.HasRealValue(FieldEmail) {
		return ""
	}
	normalized, suggestion, err := c.emails.Validate(ctx, value)
	if err != nil {
		if suggestion != "" {
			s.PendingEmailSuggestion = suggestion
			return emailSuggestionPrompt(suggestion)
		}
		if s.LastAskedField != FieldEmail {
			return ""
		}
		s.EmailValidationAttempts++
		if s.EmailValidationAttempts >= maxContactValidationAttempts {
			s.ManualReviewNeeded = true
			s.MarkDeferred(FieldEmail)
			return ""
		}
		return emailRetryPrompt
	}
	s.SetField(FieldEmail, normalized)
	return ""
}

// handleContactRefusal marks the contact field currently being asked as
// declined and offers the alternate channel rather than repeating the ask.
func (c *Controller) handleContactRefusal(s *State) TurnResult {
	s.RecordContactRefusal()

	target := s.LastAskedField
	if target != FieldPhone && target != FieldEmail {
		// Infer from missing-field context: phone is asked before email.
		if _, collected := s.GetField(FieldPhone); !collected {
			target = FieldPhone
		} else {
			target = FieldEmail
		}
	}
	s.MarkDeclined(target)

	alternate := FieldEmail
	if target == FieldEmail {
		alternate = FieldPhone
	}
	if _, collected := s.GetField(alternate); !collected {
		s.LastAskedField = alternate
		s.RecordAsk(alternate)
		intro := "Totally understand. "
		if alternate == FieldEmail {
			return TurnResult{Response: intro + "Would an email work instead? Just so the team can send over details."}
		}
		return TurnResult{Response: intro + "Would a quick phone call work better? If so, what's a good number?"}
	}

	s.LastAskedField = ""
	return TurnResult{Response: "No problem at all, we'll work with what you've shared."}
}

// answerKnowledgeQuestion runs the RAG path with the escalating redirect.
func (c *Controller) answerKnowledgeQuestion(ctx context.Context, s *State, message string, history []llm.ChatMessage) (TurnResult, error) {
	s.RAGQuestionsCount++
	c.metrics.ObserveRAGQuestion()

	var contextBlock string
	if c.retriever != nil {
		results, err := c.retriever.Retrieve(ctx, message, c.ragTopK)
		if err != nil {
			c.observeClassifierError("rag_retriever", err)
		} else {
			contextBlock = rag.FormatContext(results)
		}
	}

	pending := s.NextMissingField()
	extra := ragRedirectInstruction(s.RAGQuestionsCount, pending)
	if contextBlock != "" {
		extra = contextBlock + "\n\n" + extra
	}
	if pending != "" {
		s.LastAskedField = pending
	}
	return c.respond(ctx, s, message, history, extra)
}

// nextQuestion picks the next field to ask, applying the two-ask auto-skip
// for preferred fields, and records the ask.
func (c *Controller) nextQuestion(s *State) string {
	preferred := make(map[string]struct{})
	for _, f := range PreferredFields(s.CustomerType) {
		preferred[f] = struct{}{}
	}
	for {
		field := s.NextMissingField()
		if field == "" {
			return ""
		}
		if _, isPreferred := preferred[field]; isPreferred && s.FieldAskCounts[field] >= maxFieldAsks {
			s.MarkDeferred(field)
			continue
		}
		askCount := s.FieldAskCounts[field]
		s.LastAskedField = field
		s.RecordAsk(field)
		return c.generator.Question(field, askCount)
	}
}

package conversation

import (
	"time"
)

// CustomerType is the prospect segment the outbound bot is qualifying.
type CustomerType string

const (
	CustomerTypeUnknown      CustomerType = ""
	CustomerTypeNewCafe      CustomerType = "new_cafe"
	CustomerTypeExistingCafe CustomerType = "existing_cafe"
)

// IntentStage is the outer qualification stage. Progression is forward-only:
// exploring -> interest_detected -> intent_confirmed -> qualifying ->
// qualified. The single exception is an explicit reset back to exploring
// when the prospect asks to slow down.
type IntentStage string

const (
	StageExploring        IntentStage = "exploring"
	StageInterestDetected IntentStage = "interest_detected"
	StageIntentConfirmed  IntentStage = "intent_confirmed"
	StageQualifying       IntentStage = "qualifying"
	StageQualified        IntentStage = "qualified"
)

// FlowState classifies how the prospect's latest message relates to the
// conversation the bot is trying to have.
type FlowState string

const (
	FlowContinuing     FlowState = "continuing"
	FlowWantsToExit    FlowState = "wants_to_exit"
	FlowRefusesContact FlowState = "refuses_contact_info"
	FlowAskingQuestion FlowState = "asking_question"
)

// ContactFlowStage tracks the nested contact-collection state machine.
type ContactFlowStage string

const (
	ContactStageNone              ContactFlowStage = ""
	ContactStageAwaitingMethod    ContactFlowStage = "awaiting_method"
	ContactStageAwaitingPhone     ContactFlowStage = "awaiting_phone"
	ContactStageAwaitingPhoneConf ContactFlowStage = "awaiting_phone_confirmation"
	ContactStageAwaitingEmail     ContactFlowStage = "awaiting_email"
	ContactStageAwaitingEmailBkp  ContactFlowStage = "awaiting_email_backup"
	ContactStageConfirmed         ContactFlowStage = "confirmed"
)

// ContactFlowReason names which caller entered the contact sub-flow. The
// same state machine serves both; only the wording differs.
type ContactFlowReason string

const (
	ContactReasonNone            ContactFlowReason = ""
	ContactReasonHumanConnection ContactFlowReason = "human_connection"
	ContactReasonOrder           ContactFlowReason = "order"
)

// State is the per-conversation qualification record. One instance per
// conversation, owned by the caller's store and round-tripped through
// ToMap/StateFromMap every turn. Nothing here is shared across turns in
// process; each turn mutates its own copy and hands it back.
type State struct {
	CustomerType CustomerType
	IntentStage  IntentStage

	// Fields maps field name to value. Absent means never collected. The
	// sentinels ValueToBeDiscussed and ValueUserDeclined are stored in
	// place of a real value and count as "collected" for ask ordering.
	Fields map[string]string

	// FieldAskCounts counts how many times each field has been asked.
	FieldAskCounts map[string]int

	SkippedPreferredCount int
	RAGQuestionsCount     int

	PhoneValidationAttempts int
	EmailValidationAttempts int

	ContactRefusalCount int
	ContactRefusalTimes []time.Time

	ContactFlowStage  ContactFlowStage
	ContactFlowReason ContactFlowReason

	// PendingPhone holds a normalized number awaiting a yes/no from the
	// prospect when the parse involved a correction or country assumption.
	PendingPhone string
	// PendingEmailSuggestion holds a typo-corrected address awaiting
	// confirmation before acceptance.
	PendingEmailSuggestion string

	BriefResponseCount int
	ManualReviewNeeded bool
	WantsOrder         bool

	// Qualified is derived exactly once by the completion check and never
	// reverted.
	Qualified bool

	// CountryCode is the detected or assumed ISO region for phone parsing.
	CountryCode string

	// LastAskedField is the field the bot's previous turn asked about,
	// used by the fallback extractor and refusal disambiguation.
	LastAskedField string
}

// NewState returns the empty state a conversation starts with.
func NewState() *State {
	return &State{
		IntentStage:    StageExploring,
		Fields:         make(map[string]string),
		FieldAskCounts: make(map[string]int),
		CountryCode:    "US",
	}
}

// Clone returns a deep copy. The flow controller works on a clone so a
// failed turn never leaves half-applied mutations in the caller's map.
func (s *State) Clone() *State {
	if s == nil {
		return NewState()
	}
	out := *s
	out.Fields = make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		out.Fields[k] = v
	}
	out.FieldAskCounts = make(map[string]int, len(s.FieldAskCounts))
	for k, v := range s.FieldAskCounts {
		out.FieldAskCounts[k] = v
	}
	out.ContactRefusalTimes = append([]time.Time(nil), s.ContactRefusalTimes...)
	return &out
}

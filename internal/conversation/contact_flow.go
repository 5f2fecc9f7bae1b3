package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// maxContactValidationAttempts flags the conversation for manual review and
// moves on rather than looping on a number or address that will not parse.
const maxContactValidationAttempts = 3

// ContactFlowConfig is the per-caller wording for the shared
// contact-collection state machine. Human hand-off and order placement run
// the same transitions; only these strings differ. Qualification collects
// contact details through extraction instead and shares only the validators
// and clarification wording below.
type ContactFlowConfig struct {
	Reason ContactFlowReason

	AskMethod       string
	AskPhone        string
	AskEmail        string
	AskEmailBackup  string
	ConfirmPhone    string // fmt template, %s is the formatted number
	Done            string
	DoneExisting    string // short-circuit when contact is already on file
	PhonePivot      string // phone refused, offer email
	PhoneOnlyClose  string // email backup refused, phone is enough
	RefusedAllClose string // nothing shared, exit gracefully
}

// HumanConnectionFlowConfig words the flow for "let me talk to a person".
var HumanConnectionFlowConfig = ContactFlowConfig{
	Reason:          ContactReasonHumanConnection,
	AskMethod:       "Happy to get you connected with someone on our team. What works better for you, a quick call or an email?",
	AskPhone:        "Great, what's the best number to reach you on?",
	AskEmail:        "No problem at all. What's the best email for the team to reach you at?",
	AskEmailBackup:  "Perfect. Could I also grab an email as a backup, in case the call doesn't connect?",
	ConfirmPhone:    "Just to make sure I have it right, that's %s?",
	Done:            "You're all set. Someone from the team will reach out shortly.",
	DoneExisting:    "You're all set. I've passed along the details you already shared, and someone from the team will reach out shortly.",
	PhonePivot:      "That's completely fine. Would an email work instead?",
	PhoneOnlyClose:  "No worries, the number is all we need. Someone will give you a call soon.",
	RefusedAllClose: "No problem. If you change your mind, just say the word and I'll connect you with the team.",
}

// OrderFlowConfig words the flow for "I want to place an order".
var OrderFlowConfig = ContactFlowConfig{
	Reason:          ContactReasonOrder,
	AskMethod:       "Love it, let's get your order moving. Should our team call you or email you to sort out the details?",
	AskPhone:        "Great, what number should the team call to set up your order?",
	AskEmail:        "Sure thing. What email should the order details go to?",
	AskEmailBackup:  "Got it. Mind sharing an email too, so we can send the order confirmation?",
	ConfirmPhone:    "Quick check, is %s the right number?",
	Done:            "Done! The team will be in touch to finalize your order.",
	DoneExisting:    "Done! I already have your details, so the team will be in touch to finalize your order.",
	PhonePivot:      "No problem. Want to give me an email for the order instead?",
	PhoneOnlyClose:  "All good, the number works fine. The team will call you about the order.",
	RefusedAllClose: "That's fine. Whenever you're ready to order, just let me know and we'll sort it out.",
}

// contactFlow runs the nested contact-collection state machine over the
// ContactFlowStage stored in State.
type contactFlow struct {
	cfg    ContactFlowConfig
	emails *EmailValidator
	logger *logging.Logger
}

func newContactFlow(cfg ContactFlowConfig, emails *EmailValidator, logger *logging.Logger) *contactFlow {
	if emails == nil {
		emails = NewEmailValidator(nil)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &contactFlow{cfg: cfg, emails: emails, logger: logger}
}

// Handle advances the sub-flow one step. done reports that the sub-flow has
// finished (successfully or by graceful refusal) and the outer flow may
// resume next turn.
func (f *contactFlow) Handle(ctx context.Context, s *State, message string) (reply string, done bool) {
	switch s.ContactFlowStage {
	case ContactStageNone:
		return f.enter(s)
	case ContactStageAwaitingMethod:
		return f.handleMethod(s, message)
	case ContactStageAwaitingPhone:
		return f.handlePhone(s, message)
	case ContactStageAwaitingPhoneConf:
		return f.handlePhoneConfirmation(s, message)
	case ContactStageAwaitingEmail, ContactStageAwaitingEmailBkp:
		return f.handleEmail(ctx, s, message)
	case ContactStageConfirmed:
		return f.cfg.Done, true
	default:
		s.ContactFlowStage = ContactStageNone
		return f.enter(s)
	}
}

func (f *contactFlow) enter(s *State) (string, bool) {
	s.ContactFlowReason = f.cfg.Reason
	// A contact method already on file short-circuits the whole flow.
	if s.HasRealValue(FieldPhone) || s.HasRealValue(FieldEmail) {
		s.ContactFlowStage = ContactStageConfirmed
		return f.cfg.DoneExisting, true
	}
	s.ContactFlowStage = ContactStageAwaitingMethod
	return f.cfg.AskMethod, false
}

func (f *contactFlow) handleMethod(s *State, message string) (string, bool) {
	lower := strings.ToLower(message)
	switch {
	case IsContactRefusal(message) || IsNegative(message):
		s.RecordContactRefusal()
		s.ContactFlowStage = ContactStageConfirmed
		return f.cfg.RefusedAllClose, true
	case strings.Contains(lower, "email") || strings.Contains(lower, "mail"):
		s.ContactFlowStage = ContactStageAwaitingEmail
		return f.cfg.AskEmail, false
	case strings.Contains(lower, "call") || strings.Contains(lower, "phone") ||
		strings.Contains(lower, "text") || strings.Contains(lower, "number"):
		s.ContactFlowStage = ContactStageAwaitingPhone
		return f.cfg.AskPhone, false
	default:
		return f.cfg.AskMethod, false
	}
}

func (f *contactFlow) handlePhone(s *State, message string) (string, bool) {
	if IsContactRefusal(message) || IsNegative(message) {
		s.RecordContactRefusal()
		s.MarkDeclined(FieldPhone)
		s.ContactFlowStage = ContactStageAwaitingEmail
		return f.cfg.PhonePivot, false
	}

	candidate := ExtractPhoneCandidate(message)
	if candidate == "" {
		candidate = message
	}
	normalized, err := ValidatePhone(candidate, s.CountryCode, message)
	if err != nil {
		s.PhoneValidationAttempts++
		if s.PhoneValidationAttempts >= maxContactValidationAttempts {
			s.ManualReviewNeeded = true
			s.ContactFlowStage = ContactStageAwaitingEmail
			return "I'm having trouble with that number, so let's not fight it. " + f.cfg.AskEmail, false
		}
		return phoneReprompt(err), false
	}

	s.PendingPhone = normalized
	s.ContactFlowStage = ContactStageAwaitingPhoneConf
	return fmt.Sprintf(f.cfg.ConfirmPhone, FormatPhoneForDisplay(normalized)), false
}

func (f *contactFlow) handlePhoneConfirmation(s *State, message string) (string, bool) {
	switch {
	case IsAffirmative(message):
		s.SetField(FieldPhone, s.PendingPhone)
		s.PendingPhone = ""
		s.ContactFlowStage = ContactStageAwaitingEmailBkp
		return f.cfg.AskEmailBackup, false
	case IsNegative(message):
		s.PendingPhone = ""
		s.ContactFlowStage = ContactStageAwaitingPhone
		return "My mistake. " + f.cfg.AskPhone, false
	default:
		return fmt.Sprintf(f.cfg.ConfirmPhone, FormatPhoneForDisplay(s.PendingPhone)), false
	}
}

func (f *contactFlow) handleEmail(ctx context.Context, s *State, message string) (string, bool) {
	backup := s.ContactFlowStage == ContactStageAwaitingEmailBkp

	// A typo suggestion is outstanding; this message answers it.
	if s.PendingEmailSuggestion != "" {
		if IsAffirmative(message) {
			s.SetField(FieldEmail, s.PendingEmailSuggestion)
			s.PendingEmailSuggestion = ""
			s.ContactFlowStage = ContactStageConfirmed
			return f.cfg.Done, true
		}
		if IsNegative(message) {
			s.PendingEmailSuggestion = ""
			return emailRetypePrompt, false
		}
	}

	if IsContactRefusal(message) || IsNegative(message) {
		// Refusing the backup email is fine, the phone is already on file.
		if backup {
			s.ContactFlowStage = ContactStageConfirmed
			return f.cfg.PhoneOnlyClose, true
		}
		s.RecordContactRefusal()
		s.MarkDeclined(FieldEmail)
		s.ContactFlowStage = ContactStageConfirmed
		return f.cfg.RefusedAllClose, true
	}

	candidate := ExtractEmailCandidate(message)
	if candidate == "" {
		candidate = strings.TrimSpace(message)
	}
	normalized, suggestion, err := f.emails.Validate(ctx, candidate)
	if err != nil {
		if suggestion != "" {
			s.PendingEmailSuggestion = suggestion
			return emailSuggestionPrompt(suggestion), false
		}
		s.EmailValidationAttempts++
		if s.EmailValidationAttempts >= maxContactValidationAttempts {
			s.ManualReviewNeeded = true
			s.MarkDeferred(FieldEmail)
			s.ContactFlowStage = ContactStageConfirmed
			if backup {
				return f.cfg.PhoneOnlyClose, true
			}
			return f.cfg.RefusedAllClose, true
		}
		return emailRetryPrompt, false
	}

	s.SetField(FieldEmail, normalized)
	s.ContactFlowStage = ContactStageConfirmed
	return f.cfg.Done, true
}

// Email clarification wording shared by the contact sub-flow and the
// qualification extraction path.
const (
	emailRetypePrompt = "Got it, could you type the address out once more for me?"
	emailRetryPrompt  = "Hmm, that address doesn't look quite right. Could you double-check it for me?"
)

func emailSuggestionPrompt(suggestion string) string {
	return "Did you mean " + suggestion + "?"
}

// phoneReprompt words a retry for the specific validation failure.
func phoneReprompt(err error) string {
	pe, ok := AsPhoneError(err)
	if !ok {
		return "I couldn't quite read that number. Could you send it again, digits only is fine?"
	}
	switch pe.Reason {
	case PhoneErrTooShort:
		return "That looks a few digits short. Could you send the full number, area code included?"
	case PhoneErrTooLong:
		return "That looks like a few digits too many. Could you double-check the number for me?"
	default:
		return "I couldn't quite read that number. Could you send it again, digits only is fine?"
	}
}

// RecordContactRefusal bumps the refusal counter with a timestamp.
func (s *State) RecordContactRefusal() {
	s.ContactRefusalCount++
	s.ContactRefusalTimes = append(s.ContactRefusalTimes, time.Now().UTC())
}

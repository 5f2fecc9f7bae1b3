package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/conversation"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/inbound"
	"github.com/abbotsfordroad/cafe-ai-platform/internal/leads"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// Service emails the sales and support teams when the bots produce
// something a person needs to act on.
type Service struct {
	email      EmailSender
	recipients []string
	logger     *logging.Logger
}

// NewService creates a notification service. With no sender or no
// recipients configured every alert becomes a logged no-op.
func NewService(email EmailSender, recipients []string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:      email,
		recipients: recipients,
		logger:     logger,
	}
}

var _ leads.Alerter = (*Service)(nil)
var _ inbound.EscalationAlerter = (*Service)(nil)

// QualifiedLeadAlert emails the team when the outbound bot qualifies a lead.
func (s *Service) QualifiedLeadAlert(ctx context.Context, lead *leads.Lead) error {
	if s.email == nil || len(s.recipients) == 0 {
		s.logger.Debug("notify: email not configured, skipping lead alert", "lead_id", lead.ID)
		return nil
	}

	name := lead.Name
	if name == "" {
		name = "A prospect"
	}

	flag := ""
	if lead.ManualReview {
		flag = "\n⚠ Contact details could not be verified in chat. Please double-check before reaching out."
	}
	orderLine := ""
	if lead.WantsOrder {
		orderLine = "\nWants to place an order."
	}

	subject := fmt.Sprintf("☕ Qualified Lead - %s", name)
	body := fmt.Sprintf(`%s just finished qualifying with Logan.

Name: %s
Phone: %s
Email: %s
Customer Type: %s%s%s
%s
Please follow up while the conversation is still warm.

— Abbotsford Road AI`,
		name, valueOrDash(lead.Name), valueOrDash(lead.Phone), valueOrDash(lead.Email),
		valueOrDash(lead.CustomerType), orderLine, flag, formatDetails(lead.Details))

	return s.fanOut(ctx, subject, body, "lead_id", lead.ID)
}

// NewLeadAlert emails the team when a lead arrives through the web form.
func (s *Service) NewLeadAlert(ctx context.Context, lead *leads.Lead) error {
	if s.email == nil || len(s.recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("🆕 New Web Lead - %s", lead.Name)
	body := fmt.Sprintf(`A new lead came in from the website.

Name: %s
Phone: %s
Email: %s
Message: %s

— Abbotsford Road AI`,
		valueOrDash(lead.Name), valueOrDash(lead.Phone), valueOrDash(lead.Email), valueOrDash(lead.Message))

	return s.fanOut(ctx, subject, body, "lead_id", lead.ID)
}

// EscalationAlert emails the team when the support bot hands a
// conversation off.
func (s *Service) EscalationAlert(ctx context.Context, e *inbound.Escalation) error {
	if s.email == nil || len(s.recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("🔔 Support Escalation (%s) - %s", e.Priority, e.Type)
	body := fmt.Sprintf(`The support bot escalated a conversation.

Type: %s
Priority: %s
Customer: %s
Message: %s

Conversation: %s

— Abbotsford Road AI`,
		e.Type, e.Priority, valueOrDash(e.CustomerEmail), e.Message, e.ConversationID)

	return s.fanOut(ctx, subject, body, "escalation_id", e.ID.String())
}

// fanOut delivers one message to every configured recipient, collecting
// failures so one bad address does not mask the rest.
func (s *Service) fanOut(ctx context.Context, subject, body string, refKey, refValue string) error {
	var errs []error
	for _, recipient := range s.recipients {
		msg := EmailMessage{
			To:      recipient,
			Subject: subject,
			Body:    body,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: send failed", "error", err, "to", recipient, refKey, refValue)
			errs = append(errs, err)
			continue
		}
		s.logger.Info("notify: alert sent", "to", recipient, refKey, refValue)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return nil
}

// contactFields already appear in the header block of the lead alert.
var contactFields = map[string]bool{
	conversation.FieldName:  true,
	conversation.FieldPhone: true,
	conversation.FieldEmail: true,
}

// formatDetails renders the qualification answers, spelling out the
// placeholder values the bot records when a prospect skips or declines.
func formatDetails(details map[string]string) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		if contactFields[k] && details[k] != conversation.ValueToBeDiscussed && details[k] != conversation.ValueUserDeclined {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("\nFrom the conversation:\n")
	for _, k := range keys {
		label := strings.ReplaceAll(k, "_", " ")
		switch details[k] {
		case conversation.ValueToBeDiscussed:
			fmt.Fprintf(&b, "  %s: to be discussed with the team\n", label)
		case conversation.ValueUserDeclined:
			fmt.Fprintf(&b, "  %s: declined to share\n", label)
		default:
			fmt.Fprintf(&b, "  %s: %s\n", label, details[k])
		}
	}
	return b.String()
}

func valueOrDash(v string) string {
	if v == "" {
		return "—"
	}
	return v
}

package leads

import (
	"context"
	"fmt"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/conversation"
	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

// Alerter notifies the team about a freshly captured lead. Alert failures
// never fail the capture.
type Alerter interface {
	QualifiedLeadAlert(ctx context.Context, lead *Lead) error
}

// Capture turns qualified conversations into stored leads. It implements
// conversation.QualifiedListener.
type Capture struct {
	repo    Repository
	alerter Alerter
	logger  *logging.Logger
}

func NewCapture(repo Repository, alerter Alerter, logger *logging.Logger) *Capture {
	if repo == nil {
		panic("leads: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Capture{repo: repo, alerter: alerter, logger: logger}
}

var _ conversation.QualifiedListener = (*Capture)(nil)

// QualifiedLead snapshots the conversation state into a lead record. Only
// real values become contact columns; sentinels ride along in Details so
// the team sees what was skipped or declined.
func (c *Capture) QualifiedLead(ctx context.Context, conversationID string, s *conversation.State) error {
	req := &CreateLeadRequest{
		ConversationID: conversationID,
		Source:         SourceOutboundBot,
		CustomerType:   string(s.CustomerType),
		WantsOrder:     s.WantsOrder,
		ManualReview:   s.ManualReviewNeeded,
		Details:        make(map[string]string, len(s.Fields)),
	}
	for field, value := range s.Fields {
		req.Details[field] = value
	}
	if s.HasRealValue(conversation.FieldName) {
		req.Name, _ = s.GetField(conversation.FieldName)
	}
	if s.HasRealValue(conversation.FieldPhone) {
		req.Phone, _ = s.GetField(conversation.FieldPhone)
	}
	if s.HasRealValue(conversation.FieldEmail) {
		req.Email, _ = s.GetField(conversation.FieldEmail)
	}

	lead, err := c.repo.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("leads: capture qualified conversation: %w", err)
	}
	c.logger.Info("qualified lead captured",
		"lead_id", lead.ID,
		"conversation_id", conversationID,
		"customer_type", lead.CustomerType,
	)

	if c.alerter != nil {
		if err := c.alerter.QualifiedLeadAlert(ctx, lead); err != nil {
			c.logger.Error("lead alert failed", "lead_id", lead.ID, "error", err.Error())
		}
	}
	return nil
}

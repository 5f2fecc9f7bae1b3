package leads

import (
	"strings"
	"time"
)

// Lead is one qualified prospect or web inquiry handed to the sales team.
type Lead struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Name           string            `json:"name"`
	Email          string            `json:"email,omitempty"`
	Phone          string            `json:"phone,omitempty"`
	CustomerType   string            `json:"customer_type,omitempty"`
	Source         string            `json:"source"`
	Details        map[string]string `json:"details,omitempty"`
	WantsOrder     bool              `json:"wants_order,omitempty"`
	ManualReview   bool              `json:"manual_review,omitempty"`
	Message        string            `json:"message,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Lead sources.
const (
	SourceOutboundBot = "outbound_bot"
	SourceWebForm     = "web_form"
)

// CreateLeadRequest is the input for creating a lead.
type CreateLeadRequest struct {
	ConversationID string            `json:"conversation_id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone"`
	CustomerType   string            `json:"customer_type"`
	Source         string            `json:"source"`
	Details        map[string]string `json:"details"`
	WantsOrder     bool              `json:"wants_order"`
	ManualReview   bool              `json:"manual_review"`
	Message        string            `json:"message"`
}

// Validate checks the request and fills source defaults.
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.Phone) == "" {
		return ErrMissingContact
	}
	if r.Source == "" {
		r.Source = SourceWebForm
	}
	return nil
}

// ListLeadsFilter narrows and pages a lead listing.
type ListLeadsFilter struct {
	Source string
	Limit  int
	Offset int
}

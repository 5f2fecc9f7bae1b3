package inbound

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/abbotsfordroad/cafe-ai-platform/pkg/logging"
)

var escalationTracer = otel.Tracer("cafeai.internal.inbound.escalation")

var refundRe = regexp.MustCompile(`(?i)\brefund\b`)

// EscalationType categorizes why a support conversation needs a person.
type EscalationType string

const (
	EscalationComplaint    EscalationType = "COMPLAINT"
	EscalationRefund       EscalationType = "REFUND_REQUEST"
	EscalationOrderIssue   EscalationType = "ORDER_ISSUE"
	EscalationHumanRequest EscalationType = "HUMAN_REQUEST"
)

// EscalationPriority is the urgency level for the support queue.
type EscalationPriority string

const (
	PriorityHigh   EscalationPriority = "HIGH"
	PriorityMedium EscalationPriority = "MEDIUM"
	PriorityLow    EscalationPriority = "LOW"
)

// EscalationStatus tracks the record through the support queue.
type EscalationStatus string

const (
	StatusPending      EscalationStatus = "PENDING"
	StatusAcknowledged EscalationStatus = "ACKNOWLEDGED"
	StatusResolved     EscalationStatus = "RESOLVED"
)

// Escalation is one hand-off to the support team.
type Escalation struct {
	ID             uuid.UUID          `json:"id"`
	Type           EscalationType     `json:"type"`
	Priority       EscalationPriority `json:"priority"`
	Status         EscalationStatus   `json:"status"`
	ConversationID string             `json:"conversation_id"`
	CustomerEmail  string             `json:"customer_email,omitempty"`
	Message        string             `json:"message"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// EscalationStore persists escalation records.
type EscalationStore interface {
	Create(ctx context.Context, e *Escalation) error
	Acknowledge(ctx context.Context, id uuid.UUID, staffMember string) error
}

// SQLEscalationStore persists escalations through database/sql.
type SQLEscalationStore struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewSQLEscalationStore(db *sql.DB, logger *logging.Logger) *SQLEscalationStore {
	if db == nil {
		panic("inbound: db cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQLEscalationStore{db: db, logger: logger}
}

func (s *SQLEscalationStore) Create(ctx context.Context, e *Escalation) error {
	ctx, span := escalationTracer.Start(ctx, "inbound.escalation.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("escalation.type", string(e.Type)),
		attribute.String("escalation.priority", string(e.Priority)),
	)

	query := `
		INSERT INTO escalations (id, type, priority, status, conversation_id, customer_email, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := s.db.ExecContext(ctx, query,
		e.ID, e.Type, e.Priority, e.Status, e.ConversationID, e.CustomerEmail, e.Message, e.CreatedAt, e.UpdatedAt,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("inbound: store escalation: %w", err)
	}

	s.logger.Info("escalation created",
		"id", e.ID,
		"type", string(e.Type),
		"priority", string(e.Priority),
	)
	return nil
}

func (s *SQLEscalationStore) Acknowledge(ctx context.Context, id uuid.UUID, staffMember string) error {
	now := time.Now().UTC()
	query := `
		UPDATE escalations
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := s.db.ExecContext(ctx, query, StatusAcknowledged, now, id, StatusPending)
	if err != nil {
		return fmt.Errorf("inbound: acknowledge escalation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("inbound: escalation not found or already acknowledged")
	}
	s.logger.Info("escalation acknowledged", "id", id, "by", staffMember)
	return nil
}

// ListPending returns unacknowledged escalations, most urgent first.
func (s *SQLEscalationStore) ListPending(ctx context.Context, limit int) ([]*Escalation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT id, type, priority, status, conversation_id, customer_email, message, created_at, updated_at
		FROM escalations
		WHERE status = $1
		ORDER BY CASE priority WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END, created_at
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("inbound: list escalations: %w", err)
	}
	defer rows.Close()

	var out []*Escalation
	for rows.Next() {
		var e Escalation
		if err := rows.Scan(&e.ID, &e.Type, &e.Priority, &e.Status, &e.ConversationID, &e.CustomerEmail, &e.Message, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("inbound: scan escalation: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// newEscalation builds a pending record for an intent.
func newEscalation(intent Intent, conversationID, customerEmail, message string) *Escalation {
	e := &Escalation{
		ID:             uuid.New(),
		Status:         StatusPending,
		ConversationID: conversationID,
		CustomerEmail:  customerEmail,
		Message:        message,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	switch intent {
	case IntentComplaint:
		e.Type = EscalationComplaint
		e.Priority = PriorityHigh
		if refundRe.MatchString(message) {
			e.Type = EscalationRefund
		}
	case IntentOrderStatus:
		e.Type = EscalationOrderIssue
		e.Priority = PriorityMedium
	default:
		e.Type = EscalationHumanRequest
		e.Priority = PriorityLow
	}
	return e
}

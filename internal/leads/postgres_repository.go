package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// Create inserts a new row. Details are stored as JSONB.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	details, err := json.Marshal(req.Details)
	if err != nil {
		return nil, fmt.Errorf("leads: encode details: %w", err)
	}

	id := uuid.New()
	query := `
		INSERT INTO leads (id, conversation_id, name, email, phone, customer_type, source, details, wants_order, manual_review, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		id,
		req.ConversationID,
		req.Name,
		req.Email,
		req.Phone,
		req.CustomerType,
		req.Source,
		details,
		req.WantsOrder,
		req.ManualReview,
		req.Message,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	return &Lead{
		ID:             id.String(),
		ConversationID: req.ConversationID,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		CustomerType:   req.CustomerType,
		Source:         req.Source,
		Details:        req.Details,
		WantsOrder:     req.WantsOrder,
		ManualReview:   req.ManualReview,
		Message:        req.Message,
		CreatedAt:      createdAt,
	}, nil
}

// GetByID fetches a single lead.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	query := `
		SELECT id, conversation_id, name, email, phone, customer_type, source, details, wants_order, manual_review, message, created_at
		FROM leads
		WHERE id = $1
	`
	lead, err := scanLead(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// List returns leads newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListLeadsFilter) ([]*Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, conversation_id, name, email, phone, customer_type, source, details, wants_order, manual_review, message, created_at
		FROM leads
		WHERE ($1 = '' OR source = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, filter.Source, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

func scanLead(row pgx.Row) (*Lead, error) {
	var lead Lead
	var details []byte
	if err := row.Scan(
		&lead.ID,
		&lead.ConversationID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.CustomerType,
		&lead.Source,
		&details,
		&lead.WantsOrder,
		&lead.ManualReview,
		&lead.Message,
		&lead.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &lead.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
	}
	return &lead, nil
}

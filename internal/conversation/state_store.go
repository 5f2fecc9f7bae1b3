package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// defaultConversationTTL bounds how long an idle conversation survives in
// Redis when no TTL is configured.
const defaultConversationTTL = 7 * 24 * time.Hour

// ErrConversationNotFound is returned for an unknown conversation id.
var ErrConversationNotFound = fmt.Errorf("conversation: not found")

// RedisStore persists serialized state maps and turn history per
// conversation. It is the caller-side persistence the engine itself stays
// agnostic of.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// StoreOption customizes a RedisStore.
type StoreOption func(*RedisStore)

// WithConversationTTL overrides how long idle conversations are retained.
func WithConversationTTL(ttl time.Duration) StoreOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewRedisStore(client *redis.Client, tracer trace.Tracer, opts ...StoreOption) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("cafeai.internal.conversation.store")
	}
	s := &RedisStore{redis: client, tracer: tracer, ttl: defaultConversationTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveState persists the serialized state map.
func (s *RedisStore) SaveState(ctx context.Context, conversationID string, state map[string]any) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_state")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(conversationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: persist state: %w", err)
	}
	return nil
}

// LoadState returns the serialized state map, or nil for a new
// conversation.
func (s *RedisStore) LoadState(ctx context.Context, conversationID string) (map[string]any, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(conversationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load state: %w", err)
	}
	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: decode state: %w", err)
	}
	return state, nil
}

// SaveHistory persists the full turn history.
func (s *RedisStore) SaveHistory(ctx context.Context, conversationID string, history []Turn) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_history")
	defer span.End()

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, historyKey(conversationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: persist history: %w", err)
	}
	return nil
}

// LoadHistory returns the turn history, empty for a new conversation.
func (s *RedisStore) LoadHistory(ctx context.Context, conversationID string) ([]Turn, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, historyKey(conversationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}
	var history []Turn
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: decode history: %w", err)
	}
	return history, nil
}

func stateKey(id string) string {
	return fmt.Sprintf("conversation:%s:state", id)
}

func historyKey(id string) string {
	return fmt.Sprintf("conversation:%s:history", id)
}

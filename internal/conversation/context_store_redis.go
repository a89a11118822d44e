package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const redisUpdateAttempts = 32

// RedisContextStore keeps one JSON document per session under
// conv:{account}:{session}. Writes use optimistic WATCH transactions so
// concurrent turns on the same session never lose an update.
type RedisContextStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisContextStore builds a store; ttl 0 keeps sessions forever.
func NewRedisContextStore(client *redis.Client, ttl time.Duration) *RedisContextStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisContextStore{
		redis:  client,
		tracer: otel.Tracer("clinic.internal.conversation.context"),
		ttl:    ttl,
		now:    time.Now,
	}
}

func conversationKey(accountID, sessionID string) string {
	return fmt.Sprintf("conv:%s:%s", accountID, sessionID)
}

func (s *RedisContextStore) Get(ctx context.Context, accountID, sessionID string) (*Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.get_context")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.session_id", sessionID))

	conv, err := s.load(ctx, s.redis, accountID, sessionID)
	if err != nil {
		if !errors.Is(err, ErrConversationNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}
	return conv, nil
}

func (s *RedisContextStore) Upsert(ctx context.Context, accountID, sessionID string, patch Patch) (*Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.upsert_context")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.session_id", sessionID))

	var out *Conversation
	err := s.update(ctx, accountID, sessionID, true, func(conv *Conversation) error {
		state, err := conv.Context.Apply(patch)
		if err != nil {
			return err
		}
		conv.Context = state
		out = conv
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out.clone(), nil
}

func (s *RedisContextStore) AppendMessages(ctx context.Context, accountID, sessionID string, entries ...Message) error {
	ctx, span := s.tracer.Start(ctx, "conversation.append_messages")
	defer span.End()

	err := s.update(ctx, accountID, sessionID, true, func(conv *Conversation) error {
		conv.Messages = append(conv.Messages, stamp(entries, s.now().UTC())...)
		return nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *RedisContextStore) Archive(ctx context.Context, accountID, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.archive")
	defer span.End()

	err := s.update(ctx, accountID, sessionID, false, func(conv *Conversation) error {
		conv.IsActive = false
		return nil
	})
	if err != nil && !errors.Is(err, ErrConversationNotFound) {
		span.RecordError(err)
	}
	return err
}

func (s *RedisContextStore) update(ctx context.Context, accountID, sessionID string, create bool, fn func(*Conversation) error) error {
	key := conversationKey(accountID, sessionID)
	txf := func(tx *redis.Tx) error {
		now := s.now().UTC()
		conv, err := s.load(ctx, tx, accountID, sessionID)
		switch {
		case errors.Is(err, ErrConversationNotFound) && create:
			conv = newConversation(accountID, sessionID, now)
		case err != nil:
			return err
		}
		if err := fn(conv); err != nil {
			return err
		}
		conv.UpdatedAt = now
		data, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("conversation: failed to marshal context: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisUpdateAttempts; attempt++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			if err := sleepCtx(ctx, time.Duration(attempt+1)*time.Millisecond); err != nil {
				return err
			}
			continue
		}
		if err != nil && !errors.Is(err, ErrConversationNotFound) && !errors.Is(err, ErrPendingWithoutDoctor) {
			return fmt.Errorf("conversation: failed to persist context: %w", err)
		}
		return err
	}
	return ErrConcurrentUpdate
}

func (s *RedisContextStore) load(ctx context.Context, client redis.Cmdable, accountID, sessionID string) (*Conversation, error) {
	data, err := client.Get(ctx, conversationKey(accountID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("conversation: failed to load context: %w", err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode context: %w", err)
	}
	if conv.Messages == nil {
		conv.Messages = []Message{}
	}
	return &conv, nil
}

package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/clinic-booking-engine/internal/intent"
)

// ContextStore persists conversations keyed by (accountID, sessionID).
// Upsert and AppendMessages are read-modify-write operations serialized per
// key and create the row on first use.
type ContextStore interface {
	Get(ctx context.Context, accountID, sessionID string) (*Conversation, error)
	Upsert(ctx context.Context, accountID, sessionID string, patch Patch) (*Conversation, error)
	AppendMessages(ctx context.Context, accountID, sessionID string, entries ...Message) error
	Archive(ctx context.Context, accountID, sessionID string) error
}

type sessionKey struct {
	account string
	session string
}

type sessionEntry struct {
	mu   sync.Mutex
	conv *Conversation
}

// MemoryContextStore keeps conversations in process.
type MemoryContextStore struct {
	mu       sync.Mutex
	sessions map[sessionKey]*sessionEntry
	now      func() time.Time
}

func NewMemoryContextStore() *MemoryContextStore {
	return &MemoryContextStore{sessions: make(map[sessionKey]*sessionEntry), now: time.Now}
}

func (s *MemoryContextStore) entry(accountID, sessionID string, create bool) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{account: accountID, session: sessionID}
	e, ok := s.sessions[key]
	if !ok && create {
		e = &sessionEntry{}
		s.sessions[key] = e
	}
	return e
}

func (s *MemoryContextStore) Get(ctx context.Context, accountID, sessionID string) (*Conversation, error) {
	e := s.entry(accountID, sessionID, false)
	if e == nil {
		return nil, ErrConversationNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conv == nil {
		return nil, ErrConversationNotFound
	}
	return e.conv.clone(), nil
}

func (s *MemoryContextStore) Upsert(ctx context.Context, accountID, sessionID string, patch Patch) (*Conversation, error) {
	e := s.entry(accountID, sessionID, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now().UTC()
	conv := e.conv
	if conv == nil {
		conv = newConversation(accountID, sessionID, now)
	} else {
		conv = conv.clone()
	}
	state, err := conv.Context.Apply(patch)
	if err != nil {
		return nil, err
	}
	conv.Context = state
	conv.UpdatedAt = now
	e.conv = conv
	return conv.clone(), nil
}

func (s *MemoryContextStore) AppendMessages(ctx context.Context, accountID, sessionID string, entries ...Message) error {
	e := s.entry(accountID, sessionID, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now().UTC()
	if e.conv == nil {
		e.conv = newConversation(accountID, sessionID, now)
	}
	e.conv.Messages = append(e.conv.Messages, stamp(entries, now)...)
	e.conv.UpdatedAt = now
	return nil
}

func (s *MemoryContextStore) Archive(ctx context.Context, accountID, sessionID string) error {
	e := s.entry(accountID, sessionID, false)
	if e == nil {
		return ErrConversationNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conv == nil {
		return ErrConversationNotFound
	}
	e.conv.IsActive = false
	e.conv.UpdatedAt = s.now().UTC()
	return nil
}

func stamp(entries []Message, now time.Time) []Message {
	out := make([]Message, len(entries))
	for i, m := range entries {
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		out[i] = m
	}
	return out
}

func (c *Conversation) clone() *Conversation {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	out.Context.LastDoctors = append([]intent.DoctorRef(nil), c.Context.LastDoctors...)
	if c.Context.ExtractedInfo != nil {
		out.Context.ExtractedInfo = make(map[string]string, len(c.Context.ExtractedInfo))
		for k, v := range c.Context.ExtractedInfo {
			out.Context.ExtractedInfo[k] = v
		}
	}
	return &out
}

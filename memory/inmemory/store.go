package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KamdynS/agentflows/memory"
)

// Store implements an in-memory storage for agent memory
type Store struct {
	mu   sync.RWMutex
	data map[string]interface{}
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{data: make(map[string]interface{})}
}

func (s *Store) Store(ctx context.Context, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) Retrieve(ctx context.Context, key string) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, exists := s.data[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", memory.ErrNotFound, key)
	}
	return value, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]interface{})
	return nil
}

// ConversationStore keeps per-session message logs next to plain keys.
// Session logs live under "conversation:<id>" and are not listed as keys.
type ConversationStore struct {
	kv       *Store
	convMu   sync.RWMutex
	sessions map[string][]memory.Message
}

// NewConversationStore creates a new in-memory conversation store
func NewConversationStore() *ConversationStore {
	return &ConversationStore{kv: NewStore(), sessions: make(map[string][]memory.Message)}
}

func (cs *ConversationStore) Store(ctx context.Context, key string, value interface{}) error {
	return cs.kv.Store(ctx, key, value)
}

func (cs *ConversationStore) Retrieve(ctx context.Context, key string) (interface{}, error) {
	return cs.kv.Retrieve(ctx, key)
}

func (cs *ConversationStore) Delete(ctx context.Context, key string) error {
	return cs.kv.Delete(ctx, key)
}

func (cs *ConversationStore) List(ctx context.Context) ([]string, error) {
	return cs.kv.List(ctx)
}

func (cs *ConversationStore) AppendMessage(ctx context.Context, sessionID string, role, content string) error {
	cs.convMu.Lock()
	defer cs.convMu.Unlock()
	cs.sessions[sessionID] = append(cs.sessions[sessionID], memory.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Unix(),
	})
	return nil
}

// GetMessages returns a copy of the session log.
func (cs *ConversationStore) GetMessages(ctx context.Context, sessionID string) ([]memory.Message, error) {
	cs.convMu.RLock()
	defer cs.convMu.RUnlock()
	msgs := cs.sessions[sessionID]
	out := make([]memory.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (cs *ConversationStore) ClearSession(ctx context.Context, sessionID string) error {
	cs.convMu.Lock()
	defer cs.convMu.Unlock()
	delete(cs.sessions, sessionID)
	return nil
}

// Sessions returns the ids of sessions with at least one message.
func (cs *ConversationStore) Sessions() []string {
	cs.convMu.RLock()
	defer cs.convMu.RUnlock()
	ids := make([]string, 0, len(cs.sessions))
	for id, msgs := range cs.sessions {
		if len(msgs) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Clear removes keys and every session.
func (cs *ConversationStore) Clear(ctx context.Context) error {
	cs.convMu.Lock()
	cs.sessions = make(map[string][]memory.Message)
	cs.convMu.Unlock()
	return cs.kv.Clear(ctx)
}

// Ensure implementations satisfy interfaces
var _ memory.Store = (*Store)(nil)
var _ memory.ConversationStore = (*ConversationStore)(nil)

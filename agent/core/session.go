package core

import (
	"context"
	"fmt"

	"github.com/KamdynS/agentflows/memory"
	"github.com/rs/xid"
)

// Session carries conversation history across runs of an agent.
type Session struct {
	ID    string
	Store memory.ConversationStore
}

// NewSession returns a session on store. An empty id gets a fresh one.
func NewSession(store memory.ConversationStore, id string) *Session {
	if id == "" {
		id = xid.New().String()
	}
	return &Session{ID: id, Store: store}
}

// Messages returns the stored history, oldest first.
func (s *Session) Messages(ctx context.Context) ([]Message, error) {
	stored, err := s.Store.GetMessages(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", s.ID, err)
	}
	out := make([]Message, len(stored))
	for i, m := range stored {
		out[i] = Message{Role: m.Role, Content: m.Content, Meta: m.Meta}
	}
	return out, nil
}

func (s *Session) append(ctx context.Context, msgs ...Message) error {
	for _, m := range msgs {
		if err := s.Store.AppendMessage(ctx, s.ID, m.Role, m.Content); err != nil {
			return fmt.Errorf("save session %s: %w", s.ID, err)
		}
	}
	return nil
}

// Reset forgets the history.
func (s *Session) Reset(ctx context.Context) error {
	return s.Store.ClearSession(ctx, s.ID)
}

// Snapshot is the JSON-ready form of the session written to the state file.
func (s *Session) Snapshot(ctx context.Context) (map[string]interface{}, error) {
	msgs, err := s.Store.GetMessages(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("snapshot session %s: %w", s.ID, err)
	}
	history := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, map[string]interface{}{
			"role":      m.Role,
			"content":   m.Content,
			"timestamp": m.Timestamp,
		})
	}
	return map[string]interface{}{
		"session_id": s.ID,
		"messages":   history,
	}, nil
}

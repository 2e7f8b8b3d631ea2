// Package redis keeps conversation history and workflow state in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KamdynS/agentflows/memory"
	rds "github.com/redis/go-redis/v9"
)

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*rds.Client, error) {
	opts, err := rds.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := rds.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Store is a memory.Store of JSON values under "<prefix>:<key>".
type Store struct {
	client *rds.Client
	ttl    time.Duration
	prefix string
}

func NewStore(client *rds.Client, ttl time.Duration, prefix string) *Store {
	return &Store{client: client, ttl: ttl, prefix: prefix}
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *Store) Store(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), b, s.ttl).Err()
}

func (s *Store) Retrieve(ctx context.Context, key string) (interface{}, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, rds.Nil) {
			return nil, fmt.Errorf("%w: %s", memory.ErrNotFound, key)
		}
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// List returns keys with the prefix stripped.
func (s *Store) List(ctx context.Context) ([]string, error) {
	raw, err := scan(ctx, s.client, s.key("*"))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if s.prefix != "" {
			k = strings.TrimPrefix(k, s.prefix+":")
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *Store) Clear(ctx context.Context) error {
	raw, err := scan(ctx, s.client, s.key("*"))
	if err != nil || len(raw) == 0 {
		return err
	}
	return s.client.Del(ctx, raw...).Err()
}

func scan(ctx context.Context, client *rds.Client, pattern string) ([]string, error) {
	var cursor uint64
	keys := []string{}
	for {
		ks, cur, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, ks...)
		if cur == 0 {
			return keys, nil
		}
		cursor = cur
	}
}

var _ memory.Store = (*Store)(nil)

// ConversationStore keeps each session as a Redis list of JSON messages
// under "<prefix>:conversation:<id>"; plain keys go through kv.
type ConversationStore struct {
	kv  *Store
	ttl time.Duration
}

func NewConversationStore(client *rds.Client, prefix string, ttl time.Duration) *ConversationStore {
	return &ConversationStore{kv: NewStore(client, ttl, prefix), ttl: ttl}
}

func (cs *ConversationStore) convKey(sessionID string) string {
	return cs.kv.key("conversation:" + sessionID)
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

// Clear removes keys and session logs under the prefix.
func (cs *ConversationStore) Clear(ctx context.Context) error {
	return cs.kv.Clear(ctx)
}

// List omits session logs.
func (cs *ConversationStore) List(ctx context.Context) ([]string, error) {
	keys, err := cs.kv.List(ctx)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if !strings.HasPrefix(k, "conversation:") {
			out = append(out, k)
		}
	}
	return out, nil
}

func (cs *ConversationStore) AppendMessage(ctx context.Context, sessionID string, role, content string) error {
	key := cs.convKey(sessionID)
	b, err := json.Marshal(memory.Message{Role: role, Content: content, Timestamp: time.Now().Unix()})
	if err != nil {
		return err
	}
	pipe := cs.kv.client.TxPipeline()
	pipe.RPush(ctx, key, b)
	if cs.ttl > 0 {
		pipe.Expire(ctx, key, cs.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (cs *ConversationStore) GetMessages(ctx context.Context, sessionID string) ([]memory.Message, error) {
	vals, err := cs.kv.client.LRange(ctx, cs.convKey(sessionID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, rds.Nil) {
			return []memory.Message{}, nil
		}
		return nil, err
	}
	msgs := make([]memory.Message, 0, len(vals))
	for _, v := range vals {
		var m memory.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (cs *ConversationStore) ClearSession(ctx context.Context, sessionID string) error {
	return cs.kv.client.Del(ctx, cs.convKey(sessionID)).Err()
}

var _ memory.ConversationStore = (*ConversationStore)(nil)

package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// State is the shared key/value mapping agents and tools read and write
// during a workflow run. Values must be JSON-serialisable.
//
// Only the agent holding control mutates state; the mutex makes Update
// atomic with respect to other callers in the same process.
type State struct {
	mu    sync.Mutex
	store Store
	local map[string]interface{}
}

// NewState returns an in-process state seeded with initial.
func NewState(initial map[string]interface{}) *State {
	s := &State{local: make(map[string]interface{}, len(initial))}
	for k, v := range initial {
		s.local[k] = v
	}
	return s
}

// NewStoreState returns state kept in store, e.g. Redis, seeded with initial.
func NewStoreState(ctx context.Context, store Store, initial map[string]interface{}) (*State, error) {
	s := &State{store: store}
	for k, v := range initial {
		if err := store.Store(ctx, k, v); err != nil {
			return nil, fmt.Errorf("seed state %q: %w", k, err)
		}
	}
	return s, nil
}

// Get returns the value for key and whether it was present.
func (s *State) Get(ctx context.Context, key string) (interface{}, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, key)
}

func (s *State) get(ctx context.Context, key string) (interface{}, bool, error) {
	if s.store == nil {
		v, ok := s.local[key]
		return v, ok, nil
	}
	v, err := s.store.Retrieve(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// GetString returns the value for key formatted as a string, or "".
func (s *State) GetString(ctx context.Context, key string) string {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

func (s *State) Set(ctx context.Context, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(ctx, key, value)
}

func (s *State) set(ctx context.Context, key string, value interface{}) error {
	if s.store == nil {
		s.local[key] = value
		return nil
	}
	return s.store.Store(ctx, key, value)
}

// Update replaces the value for key with fn(old, present).
func (s *State) Update(ctx context.Context, key string, fn func(old interface{}, present bool) interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok, err := s.get(ctx, key)
	if err != nil {
		return err
	}
	return s.set(ctx, key, fn(old, ok))
}

// Keys returns the state keys, sorted.
func (s *State) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys(ctx)
}

func (s *State) keys(ctx context.Context) ([]string, error) {
	var keys []string
	if s.store == nil {
		keys = make([]string, 0, len(s.local))
		for k := range s.local {
			keys = append(keys, k)
		}
	} else {
		var err error
		if keys, err = s.store.List(ctx); err != nil {
			return nil, err
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Snapshot copies the whole mapping.
func (s *State) Snapshot(ctx context.Context) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		v, ok, err := s.get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// Save writes a snapshot to path as indented JSON.
func (s *State) Save(ctx context.Context, path string) error {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	return SaveJSON(path, snap)
}

// SaveJSON writes m to path as an indented JSON object, replacing any
// existing file.
func SaveJSON(path string, m map[string]interface{}) error {
	if m == nil {
		m = map[string]interface{}{}
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// LoadJSON reads a state file written by SaveJSON.
func LoadJSON(path string) (map[string]interface{}, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

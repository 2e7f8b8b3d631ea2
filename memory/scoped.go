package memory

import (
	"context"
	"strings"
)

type scoped struct {
	store  Store
	prefix string
}

// Scoped views the keys of store under "<scope>:". List and Clear only see
// that scope, so several runs can share one backing store.
func Scoped(store Store, scope string) Store {
	return &scoped{store: store, prefix: scope + ":"}
}

func (s *scoped) Store(ctx context.Context, key string, value interface{}) error {
	return s.store.Store(ctx, s.prefix+key, value)
}

func (s *scoped) Retrieve(ctx context.Context, key string) (interface{}, error) {
	return s.store.Retrieve(ctx, s.prefix+key)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.prefix+key)
}

func (s *scoped) List(ctx context.Context) ([]string, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, s.prefix) {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
	}
	return keys, nil
}

func (s *scoped) Clear(ctx context.Context) error {
	keys, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

package workflow

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotRegistered is returned for an unknown diagram name.
var ErrNotRegistered = errors.New("workflow not registered")

// Registry holds named diagrams for the debug endpoint and the graph
// command.
type Registry struct {
	mu     sync.RWMutex
	graphs map[string]Diagrammer
}

func NewRegistry() *Registry {
	return &Registry{graphs: make(map[string]Diagrammer)}
}

// Register adds a diagram under a name. Returns error if the name already exists or d is nil.
func (r *Registry) Register(name string, d Diagrammer) error {
	if d == nil {
		return errors.New("nil workflow")
	}
	if name == "" {
		return errors.New("workflow name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.graphs[name]; exists {
		return fmt.Errorf("workflow %q already registered", name)
	}
	r.graphs[name] = d
	return nil
}

// Get returns a registered diagram by name.
func (r *Registry) Get(name string) (Diagrammer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.graphs[name]
	return d, ok
}

// List returns sorted names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.graphs))
	for k := range r.graphs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Mermaid renders the named diagram.
func (r *Registry) Mermaid(name string, opts ...MermaidOption) (string, error) {
	d, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return d.Graph().Mermaid(opts...), nil
}

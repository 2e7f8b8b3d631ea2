// Package handoff runs a group of function agents that pass control to one
// another. Which agent may hand off to which is fixed up front in a Router;
// the Workflow enforces it at run time.
package handoff

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KamdynS/agentflows/agent/core"
	"github.com/KamdynS/agentflows/llm"
	"github.com/KamdynS/agentflows/tools"
	"github.com/KamdynS/agentflows/workflow"
)

var (
	ErrNoMembers         = errors.New("handoff: no members")
	ErrDuplicateAgent    = errors.New("handoff: duplicate agent")
	ErrUnknownAgent      = errors.New("handoff: unknown agent")
	ErrHandoffNotAllowed = errors.New("handoff: transition not allowed")
	ErrMaxHandoffs       = errors.New("handoff: too many handoffs")
)

// Member is one agent of a hand-off group.
type Member struct {
	ID           string
	Description  string
	SystemPrompt string
	Tools        []tools.Tool
	// CanHandoffTo lists the members this one may pass control to. Listing
	// the member itself allows a self-loop.
	CanHandoffTo  []string
	MaxIterations int
	// Model overrides the workflow model for this member.
	Model llm.Client
}

// MemberFromConfig builds a member from an agent configuration.
func MemberFromConfig(cfg core.AgentConfig, ts ...tools.Tool) Member {
	return Member{
		ID:            cfg.Name,
		Description:   cfg.Description,
		SystemPrompt:  cfg.SystemPrompt,
		Tools:         ts,
		CanHandoffTo:  cfg.CanHandoffTo,
		MaxIterations: cfg.MaxIterations,
	}
}

// Router is the validated transition table of a hand-off group. It is
// immutable after NewRouter.
type Router struct {
	root    string
	order   []string
	members map[string]Member
	allowed map[string][]string
}

// NewRouter checks that member ids are unique and non-empty, that root is a
// member and that every hand-off target names a member.
func NewRouter(root string, members ...Member) (*Router, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}
	r := &Router{
		root:    root,
		members: make(map[string]Member, len(members)),
		allowed: make(map[string][]string, len(members)),
	}
	for _, m := range members {
		if strings.TrimSpace(m.ID) == "" {
			return nil, fmt.Errorf("%w: empty agent name", ErrUnknownAgent)
		}
		if _, dup := r.members[m.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAgent, m.ID)
		}
		r.members[m.ID] = m
		r.order = append(r.order, m.ID)
	}
	if _, ok := r.members[root]; !ok {
		return nil, fmt.Errorf("%w: root %q", ErrUnknownAgent, root)
	}
	for _, id := range r.order {
		seen := make(map[string]bool)
		for _, to := range r.members[id].CanHandoffTo {
			if _, ok := r.members[to]; !ok {
				return nil, fmt.Errorf("%w: %s hands off to %q", ErrUnknownAgent, id, to)
			}
			if seen[to] {
				continue
			}
			seen[to] = true
			r.allowed[id] = append(r.allowed[id], to)
		}
	}
	return r, nil
}

// Root is the member that receives the user message.
func (r *Router) Root() string { return r.root }

// Members returns member ids in declaration order.
func (r *Router) Members() []string { return append([]string(nil), r.order...) }

// Member returns the member with the given id.
func (r *Router) Member(id string) (Member, bool) {
	m, ok := r.members[id]
	return m, ok
}

// Allowed returns the targets from may hand off to, in declaration order.
func (r *Router) Allowed(from string) []string {
	return append([]string(nil), r.allowed[from]...)
}

// Check reports whether control may pass from one member to another.
func (r *Router) Check(from, to string) error {
	if _, ok := r.members[from]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAgent, from)
	}
	if _, ok := r.members[to]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAgent, to)
	}
	for _, t := range r.allowed[from] {
		if t == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrHandoffNotAllowed, from, to)
}

// Graph draws members as nodes and allowed hand-offs as edges.
func (r *Router) Graph() workflow.Graph {
	var g workflow.Graph
	ids := make(map[string]string, len(r.order))
	for i, id := range r.order {
		ids[id] = fmt.Sprintf("a%d", i+1)
		g.Nodes = append(g.Nodes, workflow.Node{ID: ids[id], Label: id, Start: id == r.root})
	}
	for _, from := range r.order {
		for _, to := range r.allowed[from] {
			g.Edges = append(g.Edges, workflow.Edge{From: ids[from], To: ids[to], Label: "handoff"})
		}
	}
	return g
}

var _ workflow.Diagrammer = (*Router)(nil)

package workflow

import (
	"fmt"
	"strings"
)

// MermaidOption configures Mermaid rendering.
type MermaidOption func(*mermaidConfig)

type mermaidConfig struct {
	direction               string // TD, LR, BT, RL
	showConditionIndicators bool   // label conditional edges "cond"
}

// WithDirection sets graph direction (e.g., "TD", "LR").
func WithDirection(dir string) MermaidOption {
	return func(c *mermaidConfig) {
		dir = strings.TrimSpace(strings.ToUpper(dir))
		switch dir {
		case "TD", "LR", "BT", "RL":
			c.direction = dir
		}
	}
}

// WithConditionIndicators toggles generic condition labels on edges when a condition exists.
func WithConditionIndicators(enabled bool) MermaidOption {
	return func(c *mermaidConfig) { c.showConditionIndicators = enabled }
}

// Node is a vertex of a Graph. Start nodes render with rounded ends.
type Node struct {
	ID    string
	Label string
	Start bool
}

// Edge connects two node ids. Cond marks a conditional edge; Label, when
// set, is always shown.
type Edge struct {
	From  string
	To    string
	Label string
	Cond  bool
}

// Graph is a renderable node and edge list, in insertion order.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Graph lets a bare Graph be registered as a Diagrammer.
func (g Graph) Graph() Graph { return g }

// Diagrammer is anything that can draw itself: step workflows, crews and
// hand-off routers.
type Diagrammer interface {
	Graph() Graph
}

// Mermaid renders g as a Mermaid flowchart, "graph TD" by default.
func (g Graph) Mermaid(opts ...MermaidOption) string {
	cfg := mermaidConfig{direction: "TD"}
	for _, o := range opts {
		o(&cfg)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "graph %s\n", cfg.direction)
	for _, n := range g.Nodes {
		label := strings.ReplaceAll(n.Label, "\"", "\\\"")
		if n.Start {
			fmt.Fprintf(&b, "%s([\"%s\"])\n", n.ID, label)
		} else {
			fmt.Fprintf(&b, "%s[\"%s\"]\n", n.ID, label)
		}
	}
	for _, e := range g.Edges {
		label := e.Label
		if label == "" && e.Cond && cfg.showConditionIndicators {
			label = "cond"
		}
		if label != "" {
			fmt.Fprintf(&b, "%s -->|%s| %s\n", e.From, strings.ReplaceAll(label, "|", "/"), e.To)
		} else {
			fmt.Fprintf(&b, "%s --> %s\n", e.From, e.To)
		}
	}
	return b.String()
}

// MermaidFlowchart renders the workflow graph as a Mermaid flowchart definition.
func (w *Workflow) MermaidFlowchart(opts ...MermaidOption) string {
	return w.Graph().Mermaid(opts...)
}

// Graph walks the step graph. Node ids are n1, n2, ... in discovery order;
// branch tails are joined to their merge node.
func (w *Workflow) Graph() Graph {
	var g Graph
	if w == nil || w.root == nil {
		return g
	}

	stepIDs := make(map[*step]string)
	mergeIDs := make(map[*mergeStep]string)
	nextID := func() string { return fmt.Sprintf("n%d", len(g.Nodes)+1) }

	ensureStep := func(s *step) string {
		if id, ok := stepIDs[s]; ok {
			return id
		}
		id := nextID()
		stepIDs[s] = id
		g.Nodes = append(g.Nodes, Node{ID: id, Label: s.name, Start: s == w.root})
		return id
	}
	ensureMerge := func(m *mergeStep) string {
		if id, ok := mergeIDs[m]; ok {
			return id
		}
		id := nextID()
		mergeIDs[m] = id
		g.Nodes = append(g.Nodes, Node{ID: id, Label: m.name})
		return id
	}

	var tails func(s *step, acc *[]*step)
	tails = func(s *step, acc *[]*step) {
		for cur := s; cur != nil; cur = cur.next {
			if len(cur.branches) > 0 {
				for _, child := range cur.branches {
					tails(child, acc)
				}
				return
			}
			if cur.next == nil {
				*acc = append(*acc, cur)
			}
		}
	}

	visited := make(map[*step]bool)
	var walk func(s *step)
	walk = func(s *step) {
		if s == nil || visited[s] {
			return
		}
		visited[s] = true
		sid := ensureStep(s)

		if s.next != nil {
			g.Edges = append(g.Edges, Edge{From: sid, To: ensureStep(s.next), Cond: s.next.precond != nil})
		}
		for i, child := range s.branches {
			cond := (len(s.brConds) > i && s.brConds[i] != nil) || child.precond != nil
			g.Edges = append(g.Edges, Edge{From: sid, To: ensureStep(child), Cond: cond})
		}
		for _, child := range s.branches {
			walk(child)
		}
		if s.merge != nil {
			mid := ensureMerge(s.merge)
			var ends []*step
			for _, child := range s.branches {
				tails(child, &ends)
			}
			for _, t := range ends {
				g.Edges = append(g.Edges, Edge{From: ensureStep(t), To: mid})
			}
			if s.merge.next != nil {
				g.Edges = append(g.Edges, Edge{From: mid, To: ensureStep(s.merge.next)})
				walk(s.merge.next)
			}
		}
		walk(s.next)
	}
	walk(w.root)
	return g
}

// Package workflow runs small step graphs: linear chains, conditional steps
// and fan-out branches joined by a merge. Crews run their tasks on it, and
// every orchestrator can render itself as a Mermaid flowchart.
package workflow

import (
	"context"
	"fmt"
	"time"

	obs "github.com/KamdynS/agentflows/observability"
)

// StepFunc is the function executed by a step. It receives the previous output and returns the next output.
type StepFunc func(ctx context.Context, input any) (any, error)

// ConditionFunc decides whether the step/edge should execute.
type ConditionFunc func(ctx context.Context, input any, previousOutput any) bool

// MergeFunc combines outputs from multiple branches.
type MergeFunc func(ctx context.Context, inputs []any) (any, error)

// Event types.
const (
	EventStartStep = "start_step"
	EventEndStep   = "end_step"
	EventSkipStep  = "skip_step"
	EventError     = "error"
)

// Event represents a single execution event for observability/streaming.
type Event struct {
	Type      string    `json:"type"`
	Step      string    `json:"step"`
	Status    string    `json:"status"` // "ok" or "error"
	Timestamp time.Time `json:"timestamp"`
	Output    any       `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Option configures workflow runs.
type Option func(*runConfig)

type runConfig struct {
	events chan<- Event
	sink   func(Event)
	tel    obs.Telemetry
}

// WithEvents streams events to the provided channel during Run. Sends never
// block; events are dropped when the channel is full.
func WithEvents(events chan<- Event) Option { return func(rc *runConfig) { rc.events = events } }

// WithEventSink calls fn synchronously for every event.
func WithEventSink(fn func(Event)) Option { return func(rc *runConfig) { rc.sink = fn } }

// WithTelemetry opens a workflow.step span per executed step.
func WithTelemetry(tel obs.Telemetry) Option {
	return func(rc *runConfig) { rc.tel = tel.WithDefaults() }
}

// step represents a node in a workflow.
type step struct {
	name     string
	fn       StepFunc
	precond  ConditionFunc
	next     *step
	branches []*step
	brConds  []ConditionFunc
	merge    *mergeStep
}

type mergeStep struct {
	name string
	fn   MergeFunc
	next *step
}

// Builder constructs a workflow graph using a fluent API.
type Builder struct {
	root              *step
	current           *step
	pendingMerge      *mergeStep // merge awaiting its successor
	lastBranchParent  *step
	lastEdgeIsBranch  bool
	lastBranchEdgeIdx int
}

// New creates a workflow builder.
func New() *Builder { return &Builder{} }

// Branch creates a new branch builder with a single root step.
func Branch(name string, fn StepFunc) *Builder {
	b := &Builder{}
	b.Step(name, fn)
	return b
}

// Step adds a step. If this is the first, it becomes the root; otherwise it
// chains after the current step, or after the last merge.
func (b *Builder) Step(name string, fn StepFunc) *Builder {
	s := &step{name: name, fn: fn}
	switch {
	case b.root == nil:
		b.root = s
	case b.pendingMerge != nil:
		b.pendingMerge.next = s
		b.pendingMerge = nil
	default:
		b.current.next = s
	}
	b.current = s
	b.lastBranchParent = nil
	b.lastEdgeIsBranch = false
	return b
}

// Then is an alias for Step.
func (b *Builder) Then(name string, fn StepFunc) *Builder { return b.Step(name, fn) }

// When applies a condition to the most recently added edge or step.
// If called after Branch(), it applies to the last attached branch edge.
// If called after Step/Then, it applies to the precondition of the current step.
func (b *Builder) When(cond ConditionFunc) *Builder {
	if cond == nil {
		return b
	}
	if b.lastEdgeIsBranch && b.lastBranchParent != nil && b.lastBranchEdgeIdx >= 0 {
		parent := b.lastBranchParent
		if b.lastBranchEdgeIdx < len(parent.branches) {
			if len(parent.brConds) < len(parent.branches) {
				conds := make([]ConditionFunc, len(parent.branches))
				copy(conds, parent.brConds)
				parent.brConds = conds
			}
			parent.brConds[b.lastBranchEdgeIdx] = cond
		}
		return b
	}
	if b.current != nil {
		b.current.precond = cond
	}
	return b
}

// Branch attaches the provided branches to the current step. Use Merge() after this to combine outputs.
func (b *Builder) Branch(branches ...*Builder) *Builder {
	if b.current == nil {
		return b
	}
	parent := b.current
	for _, childB := range branches {
		if childB == nil || childB.root == nil {
			continue
		}
		parent.branches = append(parent.branches, childB.root)
		b.lastEdgeIsBranch = true
		b.lastBranchParent = parent
		b.lastBranchEdgeIdx = len(parent.branches) - 1
	}
	return b
}

// Merge attaches a merge step after the current step's branches. It will
// receive the outputs of every branch that ran; the next Step follows it.
func (b *Builder) Merge(name string, fn MergeFunc) *Builder {
	if b.current == nil || b.current.merge != nil || len(b.current.branches) == 0 {
		return b
	}
	b.current.merge = &mergeStep{name: name, fn: fn}
	b.pendingMerge = b.current.merge
	b.lastBranchParent = nil
	b.lastEdgeIsBranch = false
	return b
}

// Build finalizes the workflow and returns a runnable Workflow.
func (b *Builder) Build() *Workflow { return &Workflow{root: b.root} }

// Workflow executes a built graph.
type Workflow struct {
	root *step
}

// Steps lists step names along the main chain, branches and merges
// included, in graph order.
func (w *Workflow) Steps() []string {
	g := w.Graph()
	out := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = n.Label
	}
	return out
}

// Run executes the workflow. An empty workflow returns its input.
func (w *Workflow) Run(ctx context.Context, input any, opts ...Option) (any, error) {
	rc := &runConfig{tel: obs.Nop()}
	for _, o := range opts {
		o(rc)
	}
	if w == nil || w.root == nil {
		return input, nil
	}
	return w.execStep(ctx, w.root, input, rc)
}

func (w *Workflow) execStep(ctx context.Context, s *step, in any, rc *runConfig) (any, error) {
	cur := s
	prevOut := in
	for cur != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cur.precond != nil && !cur.precond(ctx, in, prevOut) {
			rc.emit(Event{Type: EventSkipStep, Step: cur.name, Status: "ok", Timestamp: time.Now()})
			in = prevOut
			cur = cur.next
			continue
		}

		out, err := rc.run(ctx, cur.name, func(ctx context.Context) (any, error) { return cur.fn(ctx, prevOut) })
		if err != nil {
			return nil, err
		}

		if len(cur.branches) == 0 {
			in = prevOut
			prevOut = out
			cur = cur.next
			continue
		}

		results := make([]any, 0, len(cur.branches))
		for i, child := range cur.branches {
			if len(cur.brConds) > i && cur.brConds[i] != nil && !cur.brConds[i](ctx, out, out) {
				rc.emit(Event{Type: EventSkipStep, Step: child.name, Status: "ok", Timestamp: time.Now()})
				continue
			}
			childOut, err := w.execStep(ctx, child, out, rc)
			if err != nil {
				return nil, err
			}
			results = append(results, childOut)
		}
		if cur.merge == nil {
			if len(results) > 0 {
				return results[len(results)-1], nil
			}
			return out, nil
		}
		merge := cur.merge
		merged, err := rc.run(ctx, merge.name, func(ctx context.Context) (any, error) { return merge.fn(ctx, results) })
		if err != nil {
			return nil, err
		}
		in = out
		prevOut = merged
		cur = merge.next
	}
	return prevOut, nil
}

// run executes one step inside a span, bracketed by start/end events.
func (rc *runConfig) run(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) (any, error) {
	span, ctx := rc.tel.StartSpan(ctx, "workflow.step", obs.SpanKindChain)
	span.SetAttribute("workflow.step", name)
	rc.emit(Event{Type: EventStartStep, Step: name, Status: "ok", Timestamp: time.Now()})

	out, err := fn(ctx)
	if err != nil {
		rc.emit(Event{Type: EventError, Step: name, Status: "error", Timestamp: time.Now(), Error: err.Error()})
		obs.EndSpan(span, err)
		return nil, &StepError{Step: name, Err: err}
	}
	rc.emit(Event{Type: EventEndStep, Step: name, Status: "ok", Timestamp: time.Now(), Output: out})
	obs.EndSpan(span, nil)
	return out, nil
}

func (rc *runConfig) emit(e Event) {
	if rc.sink != nil {
		rc.sink(e)
	}
	if rc.events != nil {
		select {
		case rc.events <- e:
		default:
		}
	}
}

// StepError reports which step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

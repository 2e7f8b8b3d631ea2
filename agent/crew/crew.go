package crew

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KamdynS/agentflows/agent/core"
	"github.com/KamdynS/agentflows/llm"
	obs "github.com/KamdynS/agentflows/observability"
	"github.com/KamdynS/agentflows/tools"
	"github.com/KamdynS/agentflows/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Process is how a crew orders its tasks. Only sequential is supported.
type Process string

const ProcessSequential Process = "sequential"

var (
	ErrNoTasks     = errors.New("crew: no tasks")
	ErrNoAgent     = errors.New("crew: task has no agent")
	ErrUnknownTask = errors.New("crew: unknown context task")
	ErrNoModel     = errors.New("crew: agent has no model")
)

// Crew runs Tasks in order. Agents lists the members available for
// delegation; task agents missing from it are added.
type Crew struct {
	Agents  []*Agent
	Tasks   []*Task
	Process Process
	// Model serves agents without their own.
	Model  llm.Client
	Memory *Memory
	// OutputDir resolves relative task output files; empty means the
	// working directory.
	OutputDir      string
	Temperature    *float64
	ThinkingBudget *int
	Telemetry      obs.Telemetry
}

// KickoffOption configures one kickoff.
type KickoffOption func(*kickoffConfig)

type kickoffConfig struct {
	events core.EventSink
	steps  func(workflow.Event)
}

// WithEvents streams agent events.
func WithEvents(sink core.EventSink) KickoffOption {
	return func(k *kickoffConfig) { k.events = sink }
}

// WithStepEvents reports task start and end as workflow step events.
func WithStepEvents(fn func(workflow.Event)) KickoffOption {
	return func(k *kickoffConfig) { k.steps = fn }
}

// Validate checks the crew can run: there is at least one task, every task
// has an agent with a model, names are unique and context only names
// earlier tasks.
func (c *Crew) Validate() error {
	if len(c.Tasks) == 0 {
		return ErrNoTasks
	}
	if c.Process != "" && c.Process != ProcessSequential {
		return fmt.Errorf("crew: unsupported process %q", c.Process)
	}
	seen := make(map[string]bool, len(c.Tasks))
	for i, t := range c.Tasks {
		name := taskName(t, i)
		if seen[name] {
			return fmt.Errorf("crew: duplicate task %q", name)
		}
		if t.Agent == nil {
			return fmt.Errorf("%w: %s", ErrNoAgent, name)
		}
		if t.Agent.Model == nil && c.Model == nil {
			return fmt.Errorf("%w: %s", ErrNoModel, t.Agent.Role)
		}
		for _, ref := range t.Context {
			if !seen[ref] {
				return fmt.Errorf("%w: %s needs %q", ErrUnknownTask, name, ref)
			}
		}
		seen[name] = true
	}
	return nil
}

func taskName(t *Task, i int) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("task_%d", i+1)
}

// agents returns the crew members, task agents included, without
// duplicates.
func (c *Crew) agents() []*Agent {
	var out []*Agent
	seen := make(map[*Agent]bool)
	add := func(a *Agent) {
		if a != nil && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	for _, a := range c.Agents {
		add(a)
	}
	for _, t := range c.Tasks {
		add(t.Agent)
	}
	return out
}

// Kickoff runs every task in order, one workflow step per task, and returns
// all task outputs. Placeholders in agent and task texts are filled from
// inputs.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string, opts ...KickoffOption) (*CrewOutput, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	kc := kickoffConfig{}
	for _, o := range opts {
		o(&kc)
	}
	tel := c.Telemetry.WithDefaults()
	kickoffID := uuid.NewString()

	span, ctx := tel.StartSpan(ctx, "crew.kickoff", obs.SpanKindChain)
	span.SetAttribute(obs.AttrSessionID, kickoffID)
	span.SetAttribute("crew.tasks", len(c.Tasks))

	run := &kickoff{crew: c, id: kickoffID, inputs: inputs, cfg: kc, tel: tel}
	b := workflow.New()
	for i, t := range c.Tasks {
		b.Step(taskName(t, i), func(ctx context.Context, _ any) (any, error) {
			return run.task(ctx, i, t)
		})
	}
	wopts := []workflow.Option{workflow.WithTelemetry(tel)}
	if kc.steps != nil {
		wopts = append(wopts, workflow.WithEventSink(kc.steps))
	}
	_, err := b.Build().Run(ctx, nil, wopts...)
	if err != nil {
		tel.Logger.Warn("crew kickoff failed", zap.String("kickoff_id", kickoffID), zap.Error(err))
		obs.EndSpan(span, err)
		return nil, err
	}

	out := &CrewOutput{Tasks: run.outputs}
	out.Raw = run.outputs[len(run.outputs)-1].Raw
	span.SetAttribute(obs.AttrOutputValue, out.Raw)
	obs.EndSpan(span, nil)
	return out, nil
}

type kickoff struct {
	crew    *Crew
	id      string
	inputs  map[string]string
	cfg     kickoffConfig
	tel     obs.Telemetry
	outputs []TaskOutput
}

func (k *kickoff) task(ctx context.Context, i int, t *Task) (TaskOutput, error) {
	name := taskName(t, i)
	shared := k.context(t)

	var memories string
	if m := k.crew.Memory; m != nil {
		var err error
		memories, err = m.recall(ctx, t.Description, k.id+"/")
		if err != nil {
			k.tel.Logger.Warn("crew memory recall failed", zap.String("task", name), zap.Error(err))
			memories = ""
		}
	}

	prompt, err := t.prompt(k.inputs, shared, memories)
	if err != nil {
		return TaskOutput{}, fmt.Errorf("task %s: %w", name, err)
	}
	raw, err := k.runAgent(ctx, t.Agent, prompt, true)
	if err != nil {
		return TaskOutput{}, err
	}

	desc, _ := Interpolate(t.Description, k.inputs)
	out := TaskOutput{Task: name, Description: desc, Agent: t.Agent.Role, Context: shared, Raw: raw}
	k.outputs = append(k.outputs, out)

	if t.OutputFile != "" {
		if err := k.writeOutput(t.OutputFile, raw); err != nil {
			return TaskOutput{}, err
		}
	}
	if m := k.crew.Memory; m != nil {
		if err := m.save(ctx, k.id+"/"+name, raw); err != nil {
			k.tel.Logger.Warn("crew memory save failed", zap.String("task", name), zap.Error(err))
		}
	}
	k.tel.Logger.Info("task finished", zap.String("kickoff_id", k.id), zap.String("task", name), zap.String("agent", t.Agent.Role))
	return out, nil
}

// context joins the raw outputs t depends on, verbatim.
func (k *kickoff) context(t *Task) string {
	var parts []string
	if t.Context == nil {
		for _, o := range k.outputs {
			parts = append(parts, o.Raw)
		}
	} else {
		for _, ref := range t.Context {
			for _, o := range k.outputs {
				if o.Task == ref {
					parts = append(parts, o.Raw)
				}
			}
		}
	}
	return strings.Join(parts, contextSeparator)
}

// runAgent runs a as a function agent on prompt. Delegation tools are
// only offered at the top level so coworkers cannot delegate back.
func (k *kickoff) runAgent(ctx context.Context, a *Agent, prompt string, delegate bool) (string, error) {
	system, err := a.systemPrompt(k.inputs)
	if err != nil {
		return "", err
	}
	reg := tools.NewRegistry().WithTelemetry(k.tel)
	if err := reg.RegisterAll(a.Tools...); err != nil {
		return "", fmt.Errorf("agent %s: %w", a.Role, err)
	}
	if delegate && a.AllowDelegation {
		run := func(ctx context.Context, coworker *Agent, prompt string) (string, error) {
			return k.runAgent(ctx, coworker, prompt, false)
		}
		if err := reg.RegisterAll(newDelegateTools(a, k.crew.agents(), run)...); err != nil {
			return "", fmt.Errorf("agent %s: %w", a.Role, err)
		}
	}

	model := a.Model
	if model == nil {
		model = k.crew.Model
	}
	agent := core.NewFunctionAgent(core.FunctionConfig{
		Model: model,
		Tools: reg,
		Config: core.AgentConfig{
			Name:          a.Role,
			SystemPrompt:  system,
			MaxIterations: a.MaxIterations,
		},
		Events:         k.cfg.events,
		Temperature:    k.crew.Temperature,
		ThinkingBudget: k.crew.ThinkingBudget,
		Telemetry:      k.tel,
	})
	reply, err := agent.Run(ctx, core.Message{Role: llm.RoleUser, Content: prompt})
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.Role, err)
	}
	return reply.Content, nil
}

func (k *kickoff) writeOutput(file, raw string) error {
	path := file
	if !filepath.IsAbs(path) && k.crew.OutputDir != "" {
		path = filepath.Join(k.crew.OutputDir, path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

// Graph draws tasks in order; explicit context from a task other than the
// previous one is drawn as a labelled edge.
func (c *Crew) Graph() workflow.Graph {
	var g workflow.Graph
	ids := make(map[string]string, len(c.Tasks))
	for i, t := range c.Tasks {
		name := taskName(t, i)
		ids[name] = fmt.Sprintf("t%d", i+1)
		label := name
		if t.Agent != nil {
			label = fmt.Sprintf("%s (%s)", name, t.Agent.Role)
		}
		g.Nodes = append(g.Nodes, workflow.Node{ID: ids[name], Label: label, Start: i == 0})
		if i > 0 {
			g.Edges = append(g.Edges, workflow.Edge{From: fmt.Sprintf("t%d", i), To: ids[name]})
		}
		for _, ref := range t.Context {
			if from, ok := ids[ref]; ok && from != fmt.Sprintf("t%d", i) {
				g.Edges = append(g.Edges, workflow.Edge{From: from, To: ids[name], Label: "context"})
			}
		}
	}
	return g
}

var _ workflow.Diagrammer = (*Crew)(nil)

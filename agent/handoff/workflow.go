package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/KamdynS/agentflows/agent/core"
	"github.com/KamdynS/agentflows/llm"
	"github.com/KamdynS/agentflows/memory"
	"github.com/KamdynS/agentflows/memory/inmemory"
	obs "github.com/KamdynS/agentflows/observability"
	"github.com/KamdynS/agentflows/tools"
	"github.com/KamdynS/agentflows/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ToolName is the name of the tool members call to pass control.
const ToolName = "handoff"

// DefaultMaxHandoffs bounds the hand-offs of one run.
const DefaultMaxHandoffs = 10

// Workflow runs the members of a Router over shared state. One member
// holds control at a time; it keeps it until it answers without calling
// the handoff tool.
type Workflow struct {
	router      *Router
	model       llm.Client
	tel         obs.Telemetry
	initial     map[string]interface{}
	stateStore  memory.Store
	history     memory.ConversationStore
	maxHandoffs int
	temperature *float64
	thinking    *int
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithInitialState seeds the state of every run. The map is deep-copied
// per run.
func WithInitialState(state map[string]interface{}) Option {
	return func(w *Workflow) { w.initial = state }
}

// WithStateStore keeps run state in store, e.g. Redis, instead of process
// memory. Each run writes under its own "<run id>:" scope; expiry is up to
// the store.
func WithStateStore(store memory.Store) Option {
	return func(w *Workflow) { w.stateStore = store }
}

// WithHistory keeps the shared transcript in store.
func WithHistory(store memory.ConversationStore) Option {
	return func(w *Workflow) { w.history = store }
}

func WithMaxHandoffs(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.maxHandoffs = n
		}
	}
}

func WithTelemetry(tel obs.Telemetry) Option {
	return func(w *Workflow) { w.tel = tel.WithDefaults() }
}

func WithTemperature(t float64) Option {
	return func(w *Workflow) { w.temperature = llm.Float64(t) }
}

// WithThinkingBudget sets the thinking budget of every member; 0 disables
// thinking.
func WithThinkingBudget(n int) Option {
	return func(w *Workflow) { w.thinking = llm.Int(n) }
}

// New returns a workflow over router. model serves every member without
// its own Model.
func New(router *Router, model llm.Client, opts ...Option) (*Workflow, error) {
	if router == nil {
		return nil, ErrNoMembers
	}
	w := &Workflow{router: router, model: model, tel: obs.Nop(), maxHandoffs: DefaultMaxHandoffs}
	for _, o := range opts {
		o(w)
	}
	for _, id := range router.order {
		if router.members[id].Model == nil && model == nil {
			return nil, fmt.Errorf("handoff: member %s has no model", id)
		}
	}
	return w, nil
}

// Router returns the transition table.
func (w *Workflow) Router() *Router { return w.router }

// Graph draws the router.
func (w *Workflow) Graph() workflow.Graph { return w.router.Graph() }

// RunOption configures a single run.
type RunOption func(*runConfig)

type runConfig struct {
	events    core.EventSink
	state     *memory.State
	sessionID string
}

// WithEvents streams agent events, hand-offs included, to sink.
func WithEvents(sink core.EventSink) RunOption {
	return func(rc *runConfig) { rc.events = sink }
}

// WithState runs on existing state instead of fresh initial state.
func WithState(st *memory.State) RunOption {
	return func(rc *runConfig) { rc.state = st }
}

// WithSessionID names the transcript; by default each run gets a new uuid.
func WithSessionID(id string) RunOption {
	return func(rc *runConfig) { rc.sessionID = id }
}

// Result is the outcome of a run.
type Result struct {
	RunID      string
	Response   string
	FinalAgent string
	State      *memory.State
	Handoffs   []core.Handoff
}

// Run hands userMsg to the root member and follows hand-offs until a member
// answers. On ErrMaxHandoffs the partial result is returned with the error.
func (w *Workflow) Run(ctx context.Context, userMsg string, opts ...RunOption) (*Result, error) {
	rc := runConfig{}
	for _, o := range opts {
		o(&rc)
	}
	if rc.sessionID == "" {
		rc.sessionID = uuid.NewString()
	}
	st := rc.state
	if st == nil {
		var err error
		if st, err = w.newState(ctx, rc.sessionID); err != nil {
			return nil, fmt.Errorf("init state: %w", err)
		}
	}
	history := w.history
	if history == nil {
		history = inmemory.NewConversationStore()
	}
	session := core.NewSession(history, rc.sessionID)

	span, ctx := w.tel.StartSpan(ctx, "workflow.run", obs.SpanKindChain)
	span.SetAttribute(obs.AttrSessionID, session.ID)
	span.SetAttribute(obs.AttrInputValue, userMsg)

	res, err := w.run(ctx, userMsg, st, session, rc.events)
	span.SetAttribute("workflow.handoffs", len(res.Handoffs))
	if err != nil {
		w.tel.Logger.Warn("workflow run failed", zap.String("run_id", session.ID), zap.Error(err))
	} else {
		span.SetAttribute(obs.AttrAgentName, res.FinalAgent)
		span.SetAttribute(obs.AttrOutputValue, res.Response)
	}
	obs.EndSpan(span, err)
	return res, err
}

func (w *Workflow) run(ctx context.Context, userMsg string, st *memory.State, session *core.Session, events core.EventSink) (*Result, error) {
	res := &Result{RunID: session.ID, State: st}
	active := w.router.Root()
	message := userMsg
	for {
		member, _ := w.router.Member(active)
		reg, ho, err := w.registry(member, st)
		if err != nil {
			return res, err
		}
		model := member.Model
		if model == nil {
			model = w.model
		}
		agent := core.NewFunctionAgent(core.FunctionConfig{
			Model:   model,
			Tools:   reg,
			Session: session,
			Config: core.AgentConfig{
				Name:          member.ID,
				Description:   member.Description,
				SystemPrompt:  member.SystemPrompt,
				MaxIterations: member.MaxIterations,
			},
			ReturnDirect:   []string{ToolName},
			Events:         events,
			Temperature:    w.temperature,
			ThinkingBudget: w.thinking,
			Telemetry:      w.tel,
		})

		input, err := formatInput(ctx, st, message)
		if err != nil {
			return res, err
		}
		reply, err := agent.Run(ctx, core.Message{Role: llm.RoleUser, Content: input})
		if err != nil {
			return res, fmt.Errorf("agent %s: %w", active, err)
		}
		if ho == nil || ho.chosen == nil {
			res.Response = reply.Content
			res.FinalAgent = active
			return res, nil
		}

		if len(res.Handoffs) >= w.maxHandoffs {
			res.FinalAgent = active
			return res, fmt.Errorf("%w (%d)", ErrMaxHandoffs, w.maxHandoffs)
		}
		h := core.Handoff{From: active, To: ho.chosen.ToAgent, Reason: ho.chosen.Reason}
		res.Handoffs = append(res.Handoffs, h)
		if events != nil {
			events(h)
		}
		w.tel.Logger.Info("handoff",
			zap.String("run_id", session.ID),
			zap.String("from", h.From),
			zap.String("to", h.To),
			zap.String("reason", h.Reason))
		active = h.To
		message = reply.Content
	}
}

// registry gives member its own tools, bound to st, plus the handoff tool
// when it has somewhere to go.
func (w *Workflow) registry(m Member, st *memory.State) (*tools.DefaultRegistry, *handoffTool, error) {
	reg := tools.NewRegistry().WithTelemetry(w.tel)
	for _, t := range m.Tools {
		if err := reg.Register(tools.WithState(t, st)); err != nil {
			return nil, nil, fmt.Errorf("agent %s: %w", m.ID, err)
		}
	}
	if len(w.router.allowed[m.ID]) == 0 {
		return reg, nil, nil
	}
	ho := &handoffTool{from: m.ID, router: w.router}
	if err := reg.Register(ho); err != nil {
		return nil, nil, fmt.Errorf("agent %s: %w", m.ID, err)
	}
	return reg, ho, nil
}

func (w *Workflow) newState(ctx context.Context, runID string) (*memory.State, error) {
	initial, err := deepCopy(w.initial)
	if err != nil {
		return nil, err
	}
	if w.stateStore != nil {
		return memory.NewStoreState(ctx, memory.Scoped(w.stateStore, runID), initial)
	}
	return memory.NewState(initial), nil
}

func deepCopy(m map[string]interface{}) (map[string]interface{}, error) {
	if len(m) == 0 {
		return map[string]interface{}{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("initial state is not JSON: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// formatInput shows the active member the current state next to the
// message it has to act on.
func formatInput(ctx context.Context, st *memory.State, msg string) (string, error) {
	snap, err := st.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("read state: %w", err)
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	return fmt.Sprintf("Current state:\n%s\nCurrent message:\n%s\n", b, msg), nil
}

type handoffArgs struct {
	ToAgent string `json:"to_agent"`
	Reason  string `json:"reason"`
}

// handoffTool records the first valid hand-off of one activation.
type handoffTool struct {
	from   string
	router *Router
	chosen *handoffArgs
}

func (h *handoffTool) Name() string { return ToolName }

func (h *handoffTool) Description() string {
	agents := make(map[string]string)
	for _, id := range h.router.allowed[h.from] {
		agents[id] = h.router.members[id].Description
	}
	info, _ := json.MarshalIndent(agents, "", "  ")
	return "Useful for handing off to another agent.\n" +
		"If you are currently not equipped to handle the user's request, or another agent is better suited " +
		"to handle the request, please hand off to the appropriate agent.\n\n" +
		"Currently available agents:\n" + string(info)
}

func (h *handoffTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"to_agent": map[string]interface{}{
				"type":        "string",
				"description": "Name of the agent to hand off to",
				"enum":        h.router.Allowed(h.from),
			},
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Why the other agent should take over",
			},
		},
		"required": []string{"to_agent", "reason"},
	}
}

func (h *handoffTool) Execute(ctx context.Context, input string) (string, error) {
	var args handoffArgs
	if err := tools.DecodeArgs(input, &args); err != nil {
		return "", err
	}
	args.ToAgent = strings.TrimSpace(args.ToAgent)
	if args.ToAgent == "" {
		return "", fmt.Errorf("%w: missing \"to_agent\"", tools.ErrInvalidInput)
	}
	if err := h.router.Check(h.from, args.ToAgent); err != nil {
		return "", fmt.Errorf("%w: %w", tools.ErrInvalidInput, err)
	}
	if h.chosen == nil {
		h.chosen = &args
	}
	return fmt.Sprintf("Agent %s is now handling the request due to the following reason: %s.\nPlease continue with the current request.",
		args.ToAgent, args.Reason), nil
}

// FormatFailure tells the model which targets it may use instead.
func (h *handoffTool) FormatFailure(err error) string {
	valid := strings.Join(h.router.Allowed(h.from), ", ")
	if errors.Is(err, ErrUnknownAgent) || errors.Is(err, ErrHandoffNotAllowed) {
		return fmt.Sprintf("Handoff failed: %v. Please select a valid agent to hand off to. Valid agents: %s", err, valid)
	}
	return fmt.Sprintf("Handoff failed: %v. Valid agents: %s", err, valid)
}

var (
	_ tools.Tool             = (*handoffTool)(nil)
	_ tools.FailureFormatter = (*handoffTool)(nil)
	_ workflow.Diagrammer    = (*Workflow)(nil)
)

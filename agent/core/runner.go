package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KamdynS/agentflows/llm"
	obs "github.com/KamdynS/agentflows/observability"
	"github.com/KamdynS/agentflows/tools"
	"go.uber.org/zap"
)

// FunctionAgent runs the tool-calling loop: it sends the conversation to the
// model, executes every tool call the reply asks for and feeds the results
// back until the model answers without tools.
type FunctionAgent struct {
	Model      llm.Client
	Tools      tools.Registry
	Session    *Session
	Config     AgentConfig
	Middleware []Middleware
	Processors []Processor
	// ReturnDirect names tools whose successful output ends the run and
	// becomes the reply.
	ReturnDirect   []string
	Events         EventSink
	Temperature    *float64
	ThinkingBudget *int

	tel obs.Telemetry
}

// FunctionConfig holds configuration for FunctionAgent
type FunctionConfig struct {
	Model          llm.Client
	Tools          tools.Registry
	Session        *Session
	Config         AgentConfig
	Middleware     []Middleware
	Processors     []Processor
	ReturnDirect   []string
	Events         EventSink
	Temperature    *float64
	ThinkingBudget *int
	Telemetry      obs.Telemetry
}

// NewFunctionAgent creates a new FunctionAgent with the given configuration
func NewFunctionAgent(config FunctionConfig) *FunctionAgent {
	return &FunctionAgent{
		Model:          config.Model,
		Tools:          config.Tools,
		Session:        config.Session,
		Config:         config.Config,
		Middleware:     config.Middleware,
		Processors:     config.Processors,
		ReturnDirect:   config.ReturnDirect,
		Events:         config.Events,
		Temperature:    config.Temperature,
		ThinkingBudget: config.ThinkingBudget,
		tel:            config.Telemetry.WithDefaults(),
	}
}

// Name is the configured agent name, "Agent" when unset.
func (a *FunctionAgent) Name() string {
	if a.Config.Name == "" {
		return "Agent"
	}
	return a.Config.Name
}

// WithEvents returns a copy of the agent that reports to sink.
func (a *FunctionAgent) WithEvents(sink EventSink) *FunctionAgent {
	cp := *a
	cp.Events = sink
	return &cp
}

// Run implements the Agent interface
func (a *FunctionAgent) Run(ctx context.Context, input Message) (Message, error) {
	return a.run(ctx, input, nil)
}

// RunStream streams text deltas as partial messages (Meta "partial") when the
// agent has no tools, then sends the complete reply. With tools, only the
// complete reply is sent.
func (a *FunctionAgent) RunStream(ctx context.Context, input Message, output chan<- Message) error {
	defer close(output)
	_, err := a.run(ctx, input, output)
	return err
}

func (a *FunctionAgent) run(ctx context.Context, input Message, stream chan<- Message) (Message, error) {
	name := a.Name()
	span, ctx := a.tel.StartSpan(ctx, "agent.run", obs.SpanKindAgent)
	span.SetAttribute(obs.AttrAgentName, name)
	span.SetAttribute(obs.AttrInputValue, input.Content)
	if a.Session != nil {
		span.SetAttribute(obs.AttrSessionID, a.Session.ID)
	}

	final, err := a.loop(ctx, name, input, stream)
	if err != nil {
		a.tel.Logger.Warn("agent run failed", zap.String("agent", name), zap.Error(err))
	} else {
		span.SetAttribute(obs.AttrOutputValue, final.Content)
	}
	obs.EndSpan(span, err)
	return final, err
}

func (a *FunctionAgent) loop(ctx context.Context, name string, input Message, stream chan<- Message) (Message, error) {
	if a.Config.Timeout != "" {
		timeout, err := time.ParseDuration(a.Config.Timeout)
		if err != nil {
			return Message{}, fmt.Errorf("invalid timeout duration: %w", err)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if input.Role == "" {
		input.Role = llm.RoleUser
	}

	var history []Message
	if a.Session != nil {
		var err error
		if history, err = a.Session.Messages(ctx); err != nil {
			return Message{}, err
		}
	}
	for _, p := range a.Processors {
		history = p.Process(ctx, history)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	if a.Config.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.Config.SystemPrompt})
	}
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: input.Role, Content: input.Content})
	a.Events.emit(AgentInput{Agent: name, Input: input.Content})

	var defs []llm.Tool
	if a.Tools != nil {
		defs = tools.Definitions(a.Tools)
	}
	maxIter := a.Config.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	for iter := 0; iter < maxIter; iter++ {
		req := &llm.ChatRequest{
			Messages:       messages,
			Tools:          defs,
			Temperature:    a.Temperature,
			ThinkingBudget: a.ThinkingBudget,
		}
		for _, mw := range a.Middleware {
			if err := mw.BeforeLLMCall(ctx, req); err != nil {
				return Message{}, fmt.Errorf("before llm call: %w", err)
			}
		}

		resp, err := a.call(ctx, name, req, stream)
		if err != nil {
			return Message{}, fmt.Errorf("LLM call failed: %w", err)
		}
		for _, mw := range a.Middleware {
			if err := mw.AfterLLMResponse(ctx, resp); err != nil {
				return Message{}, fmt.Errorf("after llm response: %w", err)
			}
		}

		calls := make([]ToolCall, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			calls[i] = ToolCall{Agent: name, ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
		}
		a.Events.emit(AgentOutput{Agent: name, Content: resp.Content, ToolCalls: calls})
		a.tel.Logger.Debug("model replied",
			zap.String("agent", name),
			zap.Int("iteration", iter),
			zap.Int("tool_calls", len(calls)))

		if len(calls) == 0 || a.Tools == nil {
			return a.finish(ctx, input, Message{Role: llm.RoleAssistant, Content: resp.Content}, name, stream)
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		var direct *Message
		for _, call := range calls {
			a.Events.emit(call)
			for _, mw := range a.Middleware {
				if err := mw.BeforeToolExecute(ctx, call.Name, call.Arguments); err != nil {
					return Message{}, fmt.Errorf("before tool %s: %w", call.Name, err)
				}
			}

			res := a.Tools.Invoke(ctx, call.Name, call.Arguments)
			var execErr error
			if res.Err != nil {
				execErr = res.Err
			}
			for _, mw := range a.Middleware {
				if err := mw.AfterToolExecute(ctx, call.Name, res.Text(), execErr); err != nil {
					return Message{}, fmt.Errorf("after tool %s: %w", call.Name, err)
				}
			}

			ev := ToolCallResult{Agent: name, ID: call.ID, Name: call.Name, Arguments: call.Arguments, Output: res.Text()}
			if res.Err != nil {
				ev.Failure = res.Err.Reason
			}
			a.Events.emit(ev)

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Name:       call.Name,
				ToolCallID: call.ID,
				Content:    res.Text(),
			})
			if res.OK() && direct == nil && a.returnsDirect(call.Name) {
				direct = &Message{
					Role:    llm.RoleAssistant,
					Content: res.Output,
					Meta:    map[string]string{MetaReturnDirect: call.Name},
				}
			}
		}
		if direct != nil {
			return a.finish(ctx, input, *direct, name, stream)
		}
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}
	}
	return Message{}, fmt.Errorf("%w (%d)", ErrMaxIterations, maxIter)
}

func (a *FunctionAgent) returnsDirect(tool string) bool {
	for _, n := range a.ReturnDirect {
		if n == tool {
			return true
		}
	}
	return false
}

// call streams the reply when a stream is attached and no tools are offered;
// providers only stream text.
func (a *FunctionAgent) call(ctx context.Context, name string, req *llm.ChatRequest, stream chan<- Message) (*llm.Response, error) {
	if stream == nil || len(req.Tools) > 0 {
		return a.Model.Chat(ctx, req)
	}

	chunks := make(chan *llm.Response, 16)
	errc := make(chan error, 1)
	go func() { errc <- a.Model.Stream(ctx, req, chunks) }()

	var b strings.Builder
	out := &llm.Response{Role: llm.RoleAssistant}
	for chunk := range chunks {
		b.WriteString(chunk.Content)
		out.Model, out.Provider = chunk.Model, chunk.Provider
		a.Events.emit(AgentStream{Agent: name, Delta: chunk.Content})
		partial := Message{
			Role:    llm.RoleAssistant,
			Content: chunk.Content,
			Meta:    map[string]string{MetaAgent: name, MetaPartial: "true"},
		}
		select {
		case stream <- partial:
		case <-ctx.Done():
		}
	}
	if err := <-errc; err != nil {
		return nil, err
	}
	out.Content = b.String()
	return out, nil
}

func (a *FunctionAgent) finish(ctx context.Context, input, reply Message, name string, stream chan<- Message) (Message, error) {
	if reply.Meta == nil {
		reply.Meta = map[string]string{}
	}
	reply.Meta[MetaAgent] = name

	if a.Session != nil {
		if err := a.Session.append(ctx, input, reply); err != nil {
			return Message{}, err
		}
	}
	for _, mw := range a.Middleware {
		if err := mw.AfterRun(ctx, reply); err != nil {
			return Message{}, fmt.Errorf("after run: %w", err)
		}
	}
	if stream != nil {
		select {
		case stream <- reply:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
	return reply, nil
}

var _ Agent = (*FunctionAgent)(nil)

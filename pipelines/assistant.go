package pipelines

import (
	"context"
	"fmt"

	"github.com/KamdynS/agentflows/agent/core"
	"github.com/KamdynS/agentflows/llm"
	"github.com/KamdynS/agentflows/memory"
	"github.com/KamdynS/agentflows/tools"
	"github.com/KamdynS/agentflows/tools/search"
	"github.com/KamdynS/agentflows/tools/webpage"
	"go.uber.org/zap"
)

// AssistantPrompt is the search assistant's system prompt.
const AssistantPrompt = `You are a helpful assistant with access to web search capabilities.
    You can search the web for current information including:
    - Weather forecasts and current conditions
    - Latest news and events
    - Real-time data and updates
    - General information and facts

    When a user asks for information, especially current/live data like weather,
    you should use your web search tool to find the most up-to-date information.
    Always try to search for the information before saying you cannot provide it.`

// AssistantOptions configures NewAssistant.
type AssistantOptions struct {
	// Memory carries the conversation across turns.
	Memory bool
	// SessionID resumes a stored conversation; empty starts a new one.
	SessionID string
	// HistoryTokens trims remembered history to this many tokens; 0 keeps
	// everything.
	HistoryTokens int
	// Browse adds a tool that reads a result page in full.
	Browse bool
	Events core.EventSink
}

// Assistant is the single-agent web search pipeline.
type Assistant struct {
	*core.FunctionAgent
}

// NewAssistant builds the search assistant.
func NewAssistant(rt *Runtime, opts AssistantOptions) (*Assistant, error) {
	if rt.Search == nil {
		return nil, fmt.Errorf("assistant: no search backend")
	}
	reg := tools.NewRegistry().WithTelemetry(rt.Telemetry)
	if err := reg.Register(search.NewTool(rt.Search)); err != nil {
		return nil, err
	}
	if opts.Browse {
		if err := reg.Register(webpage.NewFetchTool(0, 0)); err != nil {
			return nil, err
		}
	}

	cfg := core.FunctionConfig{
		Model: rt.Model,
		Tools: reg,
		Config: core.AgentConfig{
			Name:         "Agent",
			SystemPrompt: AssistantPrompt,
		},
		Events:         opts.Events,
		Temperature:    llm.Float64(rt.temperature()),
		ThinkingBudget: llm.Int(rt.thinkingBudget()),
		Telemetry:      rt.Telemetry,
	}
	if opts.Memory {
		if rt.Conversations == nil {
			return nil, fmt.Errorf("assistant: memory needs a conversation store")
		}
		cfg.Session = core.NewSession(rt.Conversations, opts.SessionID)
		if opts.HistoryTokens > 0 {
			counter, err := memory.NewTikTokenCounter("cl100k_base")
			if err != nil {
				rt.Telemetry.Logger.Warn("tiktoken unavailable, counting words", zap.Error(err))
				cfg.Processors = append(cfg.Processors, core.WindowLimiter{Window: memory.NewWindow(opts.HistoryTokens, memory.WordCounter{})})
			} else {
				cfg.Processors = append(cfg.Processors, core.WindowLimiter{Window: memory.NewWindow(opts.HistoryTokens, counter)})
			}
		}
	}
	return &Assistant{FunctionAgent: core.NewFunctionAgent(cfg)}, nil
}

// Ask runs one turn and returns the reply text.
func (a *Assistant) Ask(ctx context.Context, msg string) (string, error) {
	reply, err := a.Run(ctx, core.Message{Role: llm.RoleUser, Content: msg})
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// SaveState writes the conversation to path as JSON. Without memory there
// is nothing to save and the file holds an empty object.
func (a *Assistant) SaveState(ctx context.Context, path string) error {
	snap := map[string]interface{}{}
	if a.Session != nil {
		var err error
		if snap, err = a.Session.Snapshot(ctx); err != nil {
			return err
		}
	}
	return memory.SaveJSON(path, snap)
}

// RestoreState loads a conversation saved by SaveState into the session,
// unless the store already holds it. It returns the number of messages
// restored.
func (a *Assistant) RestoreState(ctx context.Context, path string) (int, error) {
	if a.Session == nil {
		return 0, fmt.Errorf("assistant: restore needs memory")
	}
	m, err := memory.LoadJSON(path)
	if err != nil {
		return 0, err
	}
	if id, _ := m["session_id"].(string); id != "" {
		a.Session.ID = id
	}
	existing, err := a.Session.Messages(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	history, _ := m["messages"].([]interface{})
	n := 0
	for _, h := range history {
		msg, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		role, _ := msg["role"].(string)
		content, _ := msg["content"].(string)
		if role == "" {
			continue
		}
		if err := a.Session.Store.AppendMessage(ctx, a.Session.ID, role, content); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

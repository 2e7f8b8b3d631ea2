package crew

import (
	"context"
	"fmt"
	"strings"

	"github.com/KamdynS/agentflows/tools"
)

const (
	DelegateToolName = "Delegate work to coworker"
	AskToolName      = "Ask question to coworker"
)

// coworkerRunner runs a coworker on a prompt and returns its answer.
type coworkerRunner func(ctx context.Context, coworker *Agent, prompt string) (string, error)

// DelegateTool hands a piece of work, or a question, to another crew agent.
type DelegateTool struct {
	name      string
	coworkers []*Agent
	run       coworkerRunner
}

type delegateArgs struct {
	Task     string `json:"task"`
	Question string `json:"question"`
	Context  string `json:"context"`
	Coworker string `json:"coworker"`
}

func newDelegateTools(self *Agent, all []*Agent, run coworkerRunner) []tools.Tool {
	var coworkers []*Agent
	for _, a := range all {
		if a != self {
			coworkers = append(coworkers, a)
		}
	}
	if len(coworkers) == 0 {
		return nil
	}
	return []tools.Tool{
		&DelegateTool{name: DelegateToolName, coworkers: coworkers, run: run},
		&DelegateTool{name: AskToolName, coworkers: coworkers, run: run},
	}
}

func (d *DelegateTool) Name() string { return d.name }

func (d *DelegateTool) Description() string {
	roles := make([]string, len(d.coworkers))
	for i, a := range d.coworkers {
		roles[i] = a.Role
	}
	what := "Delegate a specific task to"
	if d.name == AskToolName {
		what = "Ask a specific question to"
	}
	return fmt.Sprintf("%s one of the following coworkers: %s\n"+
		"The input to this tool should be the coworker, the %s, and ALL necessary context to execute the task; "+
		"they know nothing about the task, so share absolutely everything you know and explain things rather than referencing them.",
		what, strings.Join(roles, ", "), d.field())
}

func (d *DelegateTool) field() string {
	if d.name == AskToolName {
		return "question"
	}
	return "task"
}

func (d *DelegateTool) Schema() map[string]interface{} {
	roles := make([]string, len(d.coworkers))
	for i, a := range d.coworkers {
		roles[i] = a.Role
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			d.field():  map[string]interface{}{"type": "string", "description": "The " + d.field() + " for the coworker"},
			"context":  map[string]interface{}{"type": "string", "description": "Everything the coworker needs to know"},
			"coworker": map[string]interface{}{"type": "string", "enum": roles},
		},
		"required": []string{d.field(), "context", "coworker"},
	}
}

func (d *DelegateTool) Execute(ctx context.Context, input string) (string, error) {
	var args delegateArgs
	if err := tools.DecodeArgs(input, &args); err != nil {
		return "", err
	}
	work := args.Task
	if d.name == AskToolName {
		work = args.Question
	}
	if strings.TrimSpace(work) == "" {
		return "", fmt.Errorf("%w: missing %q", tools.ErrInvalidInput, d.field())
	}
	var target *Agent
	for _, a := range d.coworkers {
		if strings.EqualFold(strings.TrimSpace(args.Coworker), a.Role) {
			target = a
			break
		}
	}
	if target == nil {
		return "", fmt.Errorf("%w: no coworker named %q", tools.ErrInvalidInput, args.Coworker)
	}
	prompt := "Current Task: " + work
	if args.Context != "" {
		prompt += "\n\nThis is the context you're working with:\n" + args.Context
	}
	return d.run(ctx, target, prompt)
}

// FormatFailure lists the coworkers so the model can retry.
func (d *DelegateTool) FormatFailure(err error) string {
	roles := make([]string, len(d.coworkers))
	for i, a := range d.coworkers {
		roles[i] = a.Role
	}
	return fmt.Sprintf("Error executing tool: %v. The coworker must be one of the following options:\n- %s",
		err, strings.Join(roles, "\n- "))
}

var (
	_ tools.Tool             = (*DelegateTool)(nil)
	_ tools.FailureFormatter = (*DelegateTool)(nil)
)

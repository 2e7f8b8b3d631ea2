// Package crew runs role-playing agents through an ordered list of tasks.
// Each task is handed to its agent together with the outputs of the tasks
// it depends on; the last output is the crew's answer.
package crew

import (
	"fmt"

	"github.com/KamdynS/agentflows/llm"
	"github.com/KamdynS/agentflows/tools"
)

// Agent is a crew member: a role with a goal and a backstory.
type Agent struct {
	Role            string
	Goal            string
	Backstory       string
	Tools           []tools.Tool
	AllowDelegation bool
	MaxIterations   int
	// Model overrides the crew model.
	Model llm.Client
}

// systemPrompt introduces the agent to the model. Placeholders are already
// interpolated.
func (a *Agent) systemPrompt(inputs map[string]string) (string, error) {
	role, err := Interpolate(a.Role, inputs)
	if err != nil {
		return "", fmt.Errorf("agent role: %w", err)
	}
	goal, err := Interpolate(a.Goal, inputs)
	if err != nil {
		return "", fmt.Errorf("agent %s goal: %w", a.Role, err)
	}
	backstory, err := Interpolate(a.Backstory, inputs)
	if err != nil {
		return "", fmt.Errorf("agent %s backstory: %w", a.Role, err)
	}
	return fmt.Sprintf("You are %s. %s\nYour personal goal is: %s", role, backstory, goal), nil
}

package crew

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Task is one unit of crew work.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agent          *Agent
	// Context names earlier tasks whose outputs this task receives. nil
	// means every earlier task; an empty slice means none.
	Context []string
	// OutputFile, when set, receives the raw output; it is overwritten on
	// every kickoff.
	OutputFile string
}

// TaskOutput records what a task was given and what it produced.
type TaskOutput struct {
	Task        string `json:"task"`
	Description string `json:"description"`
	Agent       string `json:"agent"`
	Context     string `json:"context,omitempty"`
	Raw         string `json:"raw"`
}

// CrewOutput is the result of a kickoff. Raw is the output of the last task.
type CrewOutput struct {
	Raw   string       `json:"raw"`
	Tasks []TaskOutput `json:"tasks_output"`
}

func (o *CrewOutput) String() string { return o.Raw }

// contextSeparator joins the outputs a task receives as context.
const contextSeparator = "\n\n----------\n\n"

// ErrMissingInput is returned when a {placeholder} has no input value.
var ErrMissingInput = errors.New("crew: missing input")

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Interpolate replaces {name} placeholders with inputs[name].
func Interpolate(s string, inputs map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := inputs[key]; ok {
			return v
		}
		missing = append(missing, key)
		return m
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingInput, strings.Join(missing, ", "))
	}
	return out, nil
}

// prompt is the user turn an agent receives for a task.
func (t *Task) prompt(inputs map[string]string, context, memories string) (string, error) {
	desc, err := Interpolate(t.Description, inputs)
	if err != nil {
		return "", fmt.Errorf("description: %w", err)
	}
	expected, err := Interpolate(t.ExpectedOutput, inputs)
	if err != nil {
		return "", fmt.Errorf("expected output: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Current Task: %s\n\n", desc)
	fmt.Fprintf(&b, "This is the expected criteria for your final answer: %s\n", expected)
	b.WriteString("you MUST return the actual complete content as the final answer, not a summary.")
	if context != "" {
		fmt.Fprintf(&b, "\n\nThis is the context you're working with:\n%s", context)
	}
	if memories != "" {
		fmt.Fprintf(&b, "\n\nRelevant notes from earlier work:\n%s", memories)
	}
	return b.String(), nil
}

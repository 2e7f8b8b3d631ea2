package crew

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/KamdynS/agentflows/tools"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AgentDefinition is one entry of an agents file.
type AgentDefinition struct {
	Name            string   `yaml:"-" validate:"required"`
	Role            string   `yaml:"role" validate:"required"`
	Goal            string   `yaml:"goal" validate:"required"`
	Backstory       string   `yaml:"backstory" validate:"required"`
	Tools           []string `yaml:"tools"`
	AllowDelegation bool     `yaml:"allow_delegation"`
	MaxIterations   int      `yaml:"max_iter" validate:"gte=0"`
}

// TaskDefinition is one entry of a tasks file. Agent names an agent entry.
type TaskDefinition struct {
	Name           string   `yaml:"-" validate:"required"`
	Description    string   `yaml:"description" validate:"required"`
	ExpectedOutput string   `yaml:"expected_output" validate:"required"`
	Agent          string   `yaml:"agent" validate:"required"`
	Context        []string `yaml:"context"`
	OutputFile     string   `yaml:"output_file"`
}

// Definitions holds agents and tasks in file order.
type Definitions struct {
	Agents []AgentDefinition
	Tasks  []TaskDefinition
}

var validate = validator.New()

// ParseDefinitions reads an agents document and a tasks document. Both are
// YAML mappings keyed by name:
//
//	researcher:
//	  role: Senior Researcher
//	  goal: Find facts about {topic}
//	  backstory: ...
//
//	research_task:
//	  description: Research {topic}
//	  expected_output: A list of facts
//	  agent: researcher
func ParseDefinitions(agentsYAML, tasksYAML []byte) (*Definitions, error) {
	var defs Definitions
	err := decodeOrdered(agentsYAML, func(name string, node *yaml.Node) error {
		a := AgentDefinition{Name: name}
		if err := node.Decode(&a); err != nil {
			return err
		}
		defs.Agents = append(defs.Agents, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("agents: %w", err)
	}
	err = decodeOrdered(tasksYAML, func(name string, node *yaml.Node) error {
		t := TaskDefinition{Name: name}
		if err := node.Decode(&t); err != nil {
			return err
		}
		defs.Tasks = append(defs.Tasks, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tasks: %w", err)
	}
	if err := defs.Validate(); err != nil {
		return nil, err
	}
	return &defs, nil
}

// LoadDefinitions reads the two documents from disk.
func LoadDefinitions(agentsPath, tasksPath string) (*Definitions, error) {
	agents, err := os.ReadFile(agentsPath)
	if err != nil {
		return nil, err
	}
	tasks, err := os.ReadFile(tasksPath)
	if err != nil {
		return nil, err
	}
	return ParseDefinitions(agents, tasks)
}

// decodeOrdered walks a top-level mapping in document order.
func decodeOrdered(data []byte, fn func(name string, node *yaml.Node) error) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of names", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if err := fn(key.Value, val); err != nil {
			return fmt.Errorf("%s: %w", key.Value, err)
		}
	}
	return nil
}

// Validate checks required fields and that task agents exist.
func (d *Definitions) Validate() error {
	var msgs []string
	agents := make(map[string]bool, len(d.Agents))
	for i := range d.Agents {
		msgs = append(msgs, fieldErrors("agent "+d.Agents[i].Name, &d.Agents[i])...)
		agents[d.Agents[i].Name] = true
	}
	for i := range d.Tasks {
		t := &d.Tasks[i]
		msgs = append(msgs, fieldErrors("task "+t.Name, t)...)
		if t.Agent != "" && !agents[t.Agent] {
			msgs = append(msgs, fmt.Sprintf("task %s: unknown agent %q", t.Name, t.Agent))
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("invalid crew definitions: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func fieldErrors(prefix string, v any) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{fmt.Sprintf("%s: %v", prefix, err)}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s: %s fails %q", prefix, fe.Field(), fe.Tag()))
	}
	return out
}

// Crew builds agents and tasks from the definitions. Tool names are looked up
// in reg; the returned crew has no model, memory or telemetry set.
func (d *Definitions) Crew(reg tools.Registry) (*Crew, error) {
	c := &Crew{Process: ProcessSequential}
	byName := make(map[string]*Agent, len(d.Agents))
	for _, def := range d.Agents {
		a := &Agent{
			Role:            strings.TrimSpace(def.Role),
			Goal:            strings.TrimSpace(def.Goal),
			Backstory:       strings.TrimSpace(def.Backstory),
			AllowDelegation: def.AllowDelegation,
			MaxIterations:   def.MaxIterations,
		}
		for _, name := range def.Tools {
			if reg == nil {
				return nil, fmt.Errorf("agent %s: unknown tool %q", def.Name, name)
			}
			t, ok := reg.Get(name)
			if !ok {
				return nil, fmt.Errorf("agent %s: unknown tool %q", def.Name, name)
			}
			a.Tools = append(a.Tools, t)
		}
		byName[def.Name] = a
		c.Agents = append(c.Agents, a)
	}
	for _, def := range d.Tasks {
		a, ok := byName[def.Agent]
		if !ok {
			return nil, fmt.Errorf("task %s: unknown agent %q", def.Name, def.Agent)
		}
		c.Tasks = append(c.Tasks, &Task{
			Name:           def.Name,
			Description:    strings.TrimSpace(def.Description),
			ExpectedOutput: strings.TrimSpace(def.ExpectedOutput),
			Agent:          a,
			Context:        def.Context,
			OutputFile:     def.OutputFile,
		})
	}
	if len(c.Tasks) == 0 {
		return nil, ErrNoTasks
	}
	return c, nil
}

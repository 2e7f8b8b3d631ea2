package crew

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KamdynS/agentflows/tools"
)

const testAgents = `
researcher:
  role: >
    {topic} Senior Data Researcher
  goal: >
    Uncover cutting-edge developments in {topic}
  backstory: >
    You're a seasoned researcher.
  tools: [echo]
reporting_analyst:
  role: Reporting Analyst
  goal: Create detailed reports
  backstory: You're meticulous.
  allow_delegation: true
  max_iter: 4
`

const testTasks = `
research_task:
  description: Conduct a thorough research about {topic}
  expected_output: A list with 10 bullet points
  agent: researcher
reporting_task:
  description: Review the context you got
  expected_output: A fully fledged report
  agent: reporting_analyst
  context: [research_task]
  output_file: report.md
closing_task:
  description: Close
  expected_output: Nothing
  agent: reporting_analyst
  context: []
`

type echoTool struct{}

func (echoTool) Name() string                                         { return "echo" }
func (echoTool) Description() string                                  { return "echoes" }
func (echoTool) Schema() map[string]interface{}                       { return tools.StringSchema("text", "text") }
func (echoTool) Execute(_ context.Context, in string) (string, error) { return in, nil }

func TestParseDefinitions(t *testing.T) {
	defs, err := ParseDefinitions([]byte(testAgents), []byte(testTasks))
	if err != nil {
		t.Fatal(err)
	}
	if len(defs.Agents) != 2 || defs.Agents[0].Name != "researcher" || defs.Agents[1].MaxIterations != 4 {
		t.Fatalf("agents = %+v", defs.Agents)
	}
	var names []string
	for _, task := range defs.Tasks {
		names = append(names, task.Name)
	}
	if strings.Join(names, ",") != "research_task,reporting_task,closing_task" {
		t.Fatalf("task order = %v", names)
	}

	reg := tools.NewRegistry()
	if err := reg.Register(echoTool{}); err != nil {
		t.Fatal(err)
	}
	c, err := defs.Crew(reg)
	if err != nil {
		t.Fatal(err)
	}
	if c.Agents[0].Role != "{topic} Senior Data Researcher" || len(c.Agents[0].Tools) != 1 {
		t.Fatalf("researcher = %+v", c.Agents[0])
	}
	if !c.Agents[1].AllowDelegation || c.Tasks[1].OutputFile != "report.md" {
		t.Fatalf("crew = %+v", c)
	}
	if c.Tasks[0].Context != nil {
		t.Fatal("missing context should mean all prior tasks")
	}
	if c.Tasks[2].Context == nil || len(c.Tasks[2].Context) != 0 {
		t.Fatalf("empty context = %#v", c.Tasks[2].Context)
	}
	if c.Tasks[1].Agent != c.Agents[1] {
		t.Fatal("task agent not linked")
	}
}

func TestParseDefinitionsErrors(t *testing.T) {
	tests := []struct {
		name   string
		agents string
		tasks  string
		want   string
	}{
		{"missing goal", "a:\n  role: R\n  backstory: B\n", "t:\n  description: d\n  expected_output: e\n  agent: a\n", `Goal fails "required"`},
		{"unknown agent", testAgents, "t:\n  description: d\n  expected_output: e\n  agent: nobody\n", `unknown agent "nobody"`},
		{"not a mapping", "- a\n- b\n", testTasks, "expected a mapping"},
		{"bad yaml", "a: [", testTasks, "agents"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinitions([]byte(tt.agents), []byte(tt.tasks))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestDefinitionsUnknownTool(t *testing.T) {
	defs, err := ParseDefinitions([]byte(testAgents), []byte(testTasks))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := defs.Crew(tools.NewRegistry()); err == nil || !strings.Contains(err.Error(), `unknown tool "echo"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	ap, tp := filepath.Join(dir, "agents.yaml"), filepath.Join(dir, "tasks.yaml")
	if err := os.WriteFile(ap, []byte(testAgents), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tp, []byte(testTasks), 0o644); err != nil {
		t.Fatal(err)
	}
	defs, err := LoadDefinitions(ap, tp)
	if err != nil {
		t.Fatal(err)
	}
	if len(defs.Tasks) != 3 {
		t.Fatalf("tasks = %d", len(defs.Tasks))
	}
	if _, err := LoadDefinitions(filepath.Join(dir, "missing.yaml"), tp); err == nil {
		t.Fatal("expected read error")
	}
}

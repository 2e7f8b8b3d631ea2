package pipelines

import (
	"embed"
	"path"

	"github.com/KamdynS/agentflows/agent/crew"
	"github.com/KamdynS/agentflows/llm"
	"github.com/KamdynS/agentflows/tools"
	"github.com/KamdynS/agentflows/tools/search"
	"github.com/KamdynS/agentflows/tools/support"
)

//go:embed crews/*/*.yaml
var crewFiles embed.FS

// Default inputs of the crew pipelines.
const (
	DefaultBlogTopic    = "What is the revenue outlook in this sector?"
	DefaultSupportQuery = "last quarter support data"
)

// loadCrew builds the crew defined under crews/<name>, resolving tool names
// in reg.
func loadCrew(name string, reg tools.Registry) (*crew.Crew, error) {
	agents, err := crewFiles.ReadFile(path.Join("crews", name, "agents.yaml"))
	if err != nil {
		return nil, err
	}
	tasks, err := crewFiles.ReadFile(path.Join("crews", name, "tasks.yaml"))
	if err != nil {
		return nil, err
	}
	defs, err := crew.ParseDefinitions(agents, tasks)
	if err != nil {
		return nil, err
	}
	return defs.Crew(reg)
}

func (rt *Runtime) crewMemory() *crew.Memory {
	if rt.Embedder == nil || rt.Vectors == nil {
		return nil
	}
	return &crew.Memory{Store: rt.Vectors, Embedder: rt.Embedder}
}

// NewBlogCrew builds the researcher -> writer crew. It runs at temperature
// 0 with memory when an embedder is available; the post is written to
// final_output.txt.
func NewBlogCrew(rt *Runtime) (*crew.Crew, error) {
	reg := tools.NewRegistry().WithTelemetry(rt.Telemetry)
	if rt.Search != nil {
		if err := reg.Register(search.NewTool(rt.Search)); err != nil {
			return nil, err
		}
	}
	c, err := loadCrew("blog", reg)
	if err != nil {
		return nil, err
	}
	c.Model = rt.Model
	c.Memory = rt.crewMemory()
	c.OutputDir = rt.outputDir()
	c.Temperature = llm.Float64(0)
	c.ThinkingBudget = llm.Int(rt.thinkingBudget())
	c.Telemetry = rt.Telemetry
	return c, nil
}

// NewSupportCrew builds the analyst -> optimizer -> report writer crew.
// onFetch, when set, sees every query the data tool receives.
func NewSupportCrew(rt *Runtime, onFetch func(query string)) (*crew.Crew, error) {
	data := support.NewDataTool(rt.Telemetry.Logger)
	data.OnFetch = onFetch
	reg := tools.NewRegistry().WithTelemetry(rt.Telemetry)
	if err := reg.Register(data); err != nil {
		return nil, err
	}
	c, err := loadCrew("support", reg)
	if err != nil {
		return nil, err
	}
	c.Model = rt.Model
	c.OutputDir = rt.outputDir()
	c.Temperature = llm.Float64(0)
	c.ThinkingBudget = llm.Int(rt.thinkingBudget())
	c.Telemetry = rt.Telemetry
	return c, nil
}

package pipelines

import (
	"context"
	"fmt"
	"sort"

	"github.com/KamdynS/agentflows/agent/core"
	"github.com/KamdynS/agentflows/agent/crew"
	"github.com/KamdynS/agentflows/agent/handoff"
	"github.com/KamdynS/agentflows/tools"
	"github.com/KamdynS/agentflows/tools/search"
	"github.com/KamdynS/agentflows/tools/support"
	"github.com/KamdynS/agentflows/workflow"
)

// Pipeline names.
const (
	NameAssistant = "assistant"
	NameResearch  = "research"
	NameBlog      = "blog"
	NameSupport   = "support"
)

// RunResult is the outcome of a one-shot pipeline run.
type RunResult struct {
	Pipeline string                 `json:"pipeline"`
	Output   string                 `json:"output"`
	Tasks    []crew.TaskOutput      `json:"tasks,omitempty"`
	State    map[string]interface{} `json:"state,omitempty"`
}

// RunOptions carries the event callbacks of a run.
type RunOptions struct {
	Events core.EventSink
	Steps  func(workflow.Event)
}

// Runnable lists the pipelines RunPipeline accepts.
func Runnable() []string {
	names := []string{NameResearch, NameBlog, NameSupport}
	sort.Strings(names)
	return names
}

// RunPipeline runs a one-shot pipeline. Inputs fill the pipeline's
// placeholders: "topic" for research and blog, "data_query" for support.
// Missing inputs take the pipeline defaults.
func (rt *Runtime) RunPipeline(ctx context.Context, name string, inputs map[string]string, opts RunOptions) (*RunResult, error) {
	switch name {
	case NameResearch:
		return rt.runResearch(ctx, inputs, opts)
	case NameBlog:
		c, err := NewBlogCrew(rt)
		if err != nil {
			return nil, err
		}
		return runCrew(ctx, name, c, withDefault(inputs, "topic", DefaultBlogTopic), opts)
	case NameSupport:
		c, err := NewSupportCrew(rt, nil)
		if err != nil {
			return nil, err
		}
		return runCrew(ctx, name, c, withDefault(inputs, "data_query", DefaultSupportQuery), opts)
	}
	return nil, fmt.Errorf("unknown pipeline %q", name)
}

func (rt *Runtime) runResearch(ctx context.Context, inputs map[string]string, opts RunOptions) (*RunResult, error) {
	wf, err := NewResearch(rt)
	if err != nil {
		return nil, err
	}
	topic := withDefault(inputs, "topic", ResearchTopic)["topic"]
	res, err := wf.Run(ctx, topic, handoff.WithEvents(opts.Events))
	if res == nil {
		return nil, err
	}
	out := &RunResult{Pipeline: NameResearch, Output: res.Response}
	if snap, serr := res.State.Snapshot(ctx); serr == nil {
		out.State = snap
		if report, ok := snap[KeyReportContent].(string); ok {
			out.Output = report
		}
	}
	return out, err
}

func runCrew(ctx context.Context, name string, c *crew.Crew, inputs map[string]string, opts RunOptions) (*RunResult, error) {
	var kopts []crew.KickoffOption
	if opts.Events != nil {
		kopts = append(kopts, crew.WithEvents(opts.Events))
	}
	if opts.Steps != nil {
		kopts = append(kopts, crew.WithStepEvents(opts.Steps))
	}
	out, err := c.Kickoff(ctx, inputs, kopts...)
	if err != nil {
		return nil, err
	}
	return &RunResult{Pipeline: name, Output: out.Raw, Tasks: out.Tasks}, nil
}

func withDefault(inputs map[string]string, key, def string) map[string]string {
	out := make(map[string]string, len(inputs)+1)
	for k, v := range inputs {
		out[k] = v
	}
	if out[key] == "" {
		out[key] = def
	}
	return out
}

// RegisterGraphs registers the pipeline diagrams in rt.Workflows.
func RegisterGraphs(rt *Runtime) error {
	if rt.Workflows == nil {
		rt.Workflows = workflow.NewRegistry()
	}
	return RegisterDiagrams(rt.Workflows)
}

// RegisterDiagrams registers the diagram of every multi-agent pipeline.
// Drawing needs no model or credentials; names already present are kept.
func RegisterDiagrams(reg *workflow.Registry) error {
	research, err := handoff.NewRouter("ResearchAgent", ResearchMembers(search.NewTool(nil))...)
	if err != nil {
		return err
	}
	toolset := tools.NewRegistry()
	if err := toolset.RegisterAll(search.NewTool(nil), support.NewDataTool(nil)); err != nil {
		return err
	}
	blogCrew, err := loadCrew("blog", toolset)
	if err != nil {
		return err
	}
	supportCrew, err := loadCrew("support", toolset)
	if err != nil {
		return err
	}
	for name, d := range map[string]workflow.Diagrammer{NameResearch: research, NameBlog: blogCrew, NameSupport: supportCrew} {
		if _, ok := reg.Get(name); ok {
			continue
		}
		if err := reg.Register(name, d); err != nil {
			return err
		}
	}
	return nil
}

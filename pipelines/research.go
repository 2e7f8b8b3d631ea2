package pipelines

import (
	"context"
	"fmt"
	"io"

	"github.com/KamdynS/agentflows/agent/handoff"
	"github.com/KamdynS/agentflows/memory"
	"github.com/KamdynS/agentflows/tools"
	"github.com/KamdynS/agentflows/tools/search"
)

// ResearchTopic is the request the research pipeline runs when none is given.
const ResearchTopic = `Write me a report on the history of the web.
Briefly describe the history of the world wide web, including
the development of the internet and the development of the web,
including 21st century developments`

// Keys of the research workflow state.
const (
	KeyResearchNotes = "research_notes"
	KeyReportContent = "report_content"
	KeyReview        = "review"
)

// ResearchInitialState returns a fresh copy of the state a research run
// starts from.
func ResearchInitialState() map[string]interface{} {
	return map[string]interface{}{
		KeyResearchNotes: map[string]interface{}{},
		KeyReportContent: "Not written yet.",
		KeyReview:        "Review required.",
	}
}

type recordNotesArgs struct {
	Notes      string `json:"notes"`
	NotesTitle string `json:"notes_title"`
}

// RecordNotes files notes under their title in research_notes.
func RecordNotes() *tools.StateFunc {
	return &tools.StateFunc{
		ToolName: "record_notes",
		Desc:     "Useful for recording notes on a given topic.",
		Params: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"notes":       map[string]interface{}{"type": "string", "description": "The notes to record"},
				"notes_title": map[string]interface{}{"type": "string", "description": "A title for the notes"},
			},
			"required": []string{"notes", "notes_title"},
		},
		Fn: func(ctx context.Context, st *memory.State, input string) (string, error) {
			var args recordNotesArgs
			if err := tools.DecodeArgs(input, &args); err != nil {
				return "", err
			}
			if args.NotesTitle == "" {
				return "", fmt.Errorf("%w: missing \"notes_title\"", tools.ErrInvalidInput)
			}
			err := st.Update(ctx, KeyResearchNotes, func(old interface{}, present bool) interface{} {
				notes, ok := old.(map[string]interface{})
				if !ok {
					notes = map[string]interface{}{}
				}
				notes[args.NotesTitle] = args.Notes
				return notes
			})
			if err != nil {
				return "", err
			}
			return "Notes recorded.", nil
		},
	}
}

// setStringTool stores its single string argument under key.
func setStringTool(name, desc, key, reply string) *tools.StateFunc {
	return &tools.StateFunc{
		ToolName: name,
		Desc:     desc,
		Params:   tools.StringSchema(key, "The "+key),
		Fn: func(ctx context.Context, st *memory.State, input string) (string, error) {
			v, err := tools.StringArg(input, key)
			if err != nil {
				return "", err
			}
			if err := st.Set(ctx, key, v); err != nil {
				return "", err
			}
			return reply, nil
		},
	}
}

// WriteReport stores the report in report_content.
func WriteReport() *tools.StateFunc {
	return setStringTool("write_report", "Useful for writing a report on a given topic.", KeyReportContent, "Report written.")
}

// ReviewReport stores the feedback in review.
func ReviewReport() *tools.StateFunc {
	return setStringTool("review_report", "Useful for reviewing a report and providing feedback.", KeyReview, "Report reviewed.")
}

// ResearchMembers are the three agents of the research workflow.
func ResearchMembers(searchTool tools.Tool) []handoff.Member {
	return []handoff.Member{
		{
			ID:          "ResearchAgent",
			Description: "Useful for searching the web for information on a given topic and recording notes on the topic.",
			SystemPrompt: "You are the ResearchAgent that can search the web for information on a given topic and record notes on the topic. " +
				"Once notes are recorded and you are satisfied, you should hand off control to the WriteAgent to write a report on the topic.",
			Tools:        []tools.Tool{searchTool, RecordNotes()},
			CanHandoffTo: []string{"WriteAgent"},
		},
		{
			ID:          "WriteAgent",
			Description: "Useful for writing a report on a given topic.",
			SystemPrompt: "You are the WriteAgent that can write a report on a given topic. " +
				"Your report should be in a markdown format. The content should be grounded in the research notes. " +
				"Once the report is written, you should get feedback at least once from the ReviewAgent.",
			Tools:        []tools.Tool{WriteReport()},
			CanHandoffTo: []string{"ReviewAgent", "ResearchAgent"},
		},
		{
			ID:          "ReviewAgent",
			Description: "Useful for reviewing a report and providing feedback.",
			SystemPrompt: "You are the ReviewAgent that can review a report and provide feedback. " +
				"Your feedback should either approve the current report or request changes for the WriteAgent to implement.",
			Tools:        []tools.Tool{ReviewReport()},
			CanHandoffTo: []string{"ResearchAgent", "WriteAgent"},
		},
	}
}

// NewResearch builds the Research -> Write -> Review hand-off workflow.
func NewResearch(rt *Runtime) (*handoff.Workflow, error) {
	backend := rt.researchSearch()
	if backend == nil {
		return nil, fmt.Errorf("research: no search backend")
	}
	searchTool := search.NewTool(backend,
		search.WithDescription("Useful for searching the web about a specific query or topic"))

	router, err := handoff.NewRouter("ResearchAgent", ResearchMembers(searchTool)...)
	if err != nil {
		return nil, err
	}
	opts := []handoff.Option{
		handoff.WithInitialState(ResearchInitialState()),
		handoff.WithTelemetry(rt.Telemetry),
		handoff.WithTemperature(rt.temperature()),
		handoff.WithThinkingBudget(rt.thinkingBudget()),
	}
	if rt.StateStore != nil {
		opts = append(opts, handoff.WithStateStore(rt.StateStore))
	}
	if rt.Conversations != nil {
		opts = append(opts, handoff.WithHistory(rt.Conversations))
	}
	return handoff.New(router, rt.Model, opts...)
}

// WriteReportSummary prints the report and review held in st.
func WriteReportSummary(ctx context.Context, w io.Writer, st *memory.State) {
	fmt.Fprintln(w, "--------final report and review --------")
	fmt.Fprintln(w, "Report Content:\n", st.GetString(ctx, KeyReportContent))
	fmt.Fprintln(w, "\n------------\nFinal Review:\n", st.GetString(ctx, KeyReview))
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
)

// projectTypes maps each scaffold to its extra files.
var projectTypes = map[string]func(name string) map[string]string{
	"assistant": func(name string) map[string]string {
		return map[string]string{
			"main.go":   assistantMainGo,
			"README.md": fmt.Sprintf(assistantReadme, name),
		}
	},
	"crew": func(name string) map[string]string {
		return map[string]string{
			"main.go":     crewMainGo,
			"agents.yaml": crewAgentsYAML,
			"tasks.yaml":  crewTasksYAML,
			"README.md":   fmt.Sprintf(crewReadme, name),
		}
	},
	"handoff": func(name string) map[string]string {
		return map[string]string{
			"main.go":   handoffMainGo,
			"README.md": fmt.Sprintf(handoffReadme, name),
		}
	},
}

func projectTypeNames() []string {
	names := make([]string, 0, len(projectTypes))
	for k := range projectTypes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func newInitCmd() *cobra.Command {
	var projectType string
	cmd := &cobra.Command{
		Use:   "init [project-dir]",
		Short: "Scaffold a new agentflows project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "my-agent"
			if len(args) > 0 {
				dir = args[0]
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Initializing new %s project: %s\n", projectType, dir)
			if err := initProject(dir, projectType); err != nil {
				return err
			}
			fmt.Fprintf(out, "Project %s initialized successfully!\n", dir)
			fmt.Fprintf(out, "Next steps:\n")
			fmt.Fprintf(out, "  cd %s\n", dir)
			fmt.Fprintf(out, "  cp .env.example .env\n")
			fmt.Fprintf(out, "  go mod tidy\n")
			fmt.Fprintf(out, "  go run .\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&projectType, "type", "assistant", fmt.Sprintf("project type %v", projectTypeNames()))
	return cmd
}

func initProject(dir, projectType string) error {
	files, ok := projectTypes[projectType]
	if !ok {
		return fmt.Errorf("unknown project type %q (want one of %v)", projectType, projectTypeNames())
	}

	// Create project directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	all := files(filepath.Base(dir))
	all["go.mod"] = fmt.Sprintf(goModTemplate, filepath.Base(dir))
	all[".env.example"] = envTemplate
	all["Dockerfile"] = dockerfileTemplate
	all[".gitignore"] = gitignoreTemplate
	return writeFiles(dir, all)
}

func writeFiles(projectDir string, files map[string]string) error {
	for filename, content := range files {
		filePath := filepath.Join(projectDir, filename)
		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", filename, err)
		}
	}
	return nil
}

// Template files
const goModTemplate = `module %s

go 1.24

require github.com/KamdynS/agentflows v0.2.0
`

const envTemplate = `# Model: gemini (default), openai or anthropic
MODEL_PROVIDER=gemini
MODEL_NAME=gemini-2.5-flash
MODEL_TEMPERATURE=0.5
GOOGLE_API_KEY=
OPENAI_API_KEY=
ANTHROPIC_API_KEY=

# Search: tavily, serper, searxng or grounded (Gemini only)
SEARCH_PROVIDER=tavily
TAVILY_API_KEY=

# Optional tracing to Phoenix
PHOENIX_COLLECTOR_ENDPOINT=
PHOENIX_API_KEY=

# Optional storage
REDIS_URL=
PGVECTOR_DSN=
`

const assistantMainGo = `package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/KamdynS/agentflows/config"
	"github.com/KamdynS/agentflows/console"
	obs "github.com/KamdynS/agentflows/observability"
	"github.com/KamdynS/agentflows/pipelines"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := obs.NewLogger(cfg.LogLevel, true)
	if err != nil {
		log.Fatal(err)
	}
	rt, err := pipelines.NewRuntime(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close(context.Background())

	assistant, err := pipelines.NewAssistant(rt, pipelines.AssistantOptions{Memory: true})
	if err != nil {
		log.Fatal(err)
	}
	repl := &console.REPL{Agent: assistant, Logger: logger}
	if err := repl.Run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
`

const crewMainGo = `package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/KamdynS/agentflows/agent/crew"
	"github.com/KamdynS/agentflows/config"
	"github.com/KamdynS/agentflows/console"
	obs "github.com/KamdynS/agentflows/observability"
	"github.com/KamdynS/agentflows/pipelines"
	"github.com/KamdynS/agentflows/tools"
	"github.com/KamdynS/agentflows/tools/search"
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := obs.NewLogger(cfg.LogLevel, true)
	if err != nil {
		log.Fatal(err)
	}
	rt, err := pipelines.NewRuntime(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close(ctx)

	reg := tools.NewRegistry().WithTelemetry(rt.Telemetry)
	if err := reg.Register(search.NewTool(rt.Search)); err != nil {
		log.Fatal(err)
	}
	defs, err := crew.LoadDefinitions("agents.yaml", "tasks.yaml")
	if err != nil {
		log.Fatal(err)
	}
	c, err := defs.Crew(reg)
	if err != nil {
		log.Fatal(err)
	}
	c.Model = rt.Model
	c.Telemetry = rt.Telemetry

	printer := console.NewEventPrinter(os.Stdout)
	out, err := c.Kickoff(ctx, map[string]string{"topic": "open source AI agents"},
		crew.WithEvents(printer.Sink()), crew.WithStepEvents(printer.Step))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(out.Raw)
}
`

const crewAgentsYAML = `researcher:
  role: Researcher
  goal: Find the most relevant recent facts about {topic}
  backstory: You search the web carefully and cite what you find.
  tools: [search_web]

writer:
  role: Writer
  goal: Turn research about {topic} into a short, clear summary
  backstory: You write plain, engaging prose.
`

const crewTasksYAML = `research_task:
  description: Find 3-5 recent facts about {topic}.
  expected_output: A bullet list of 3-5 facts
  agent: researcher

writing_task:
  description: Write a 100-word summary about {topic} from the research.
  expected_output: A short summary
  agent: writer
  context: [research_task]
  output_file: summary.txt
`

const handoffMainGo = `package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/KamdynS/agentflows/agent/handoff"
	"github.com/KamdynS/agentflows/config"
	"github.com/KamdynS/agentflows/console"
	obs "github.com/KamdynS/agentflows/observability"
	"github.com/KamdynS/agentflows/pipelines"
	"github.com/KamdynS/agentflows/tools"
	"github.com/KamdynS/agentflows/tools/search"
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := obs.NewLogger(cfg.LogLevel, true)
	if err != nil {
		log.Fatal(err)
	}
	rt, err := pipelines.NewRuntime(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close(ctx)

	router, err := handoff.NewRouter("Triage",
		handoff.Member{
			ID:           "Triage",
			Description:  "Decides who should answer.",
			SystemPrompt: "You route questions. Hand off to Researcher for anything that needs current facts.",
			CanHandoffTo: []string{"Researcher"},
		},
		handoff.Member{
			ID:           "Researcher",
			Description:  "Answers with web search.",
			SystemPrompt: "You answer questions using web search.",
			Tools:        []tools.Tool{search.NewTool(rt.Search)},
		},
	)
	if err != nil {
		log.Fatal(err)
	}
	wf, err := handoff.New(router, rt.Model, handoff.WithTelemetry(rt.Telemetry))
	if err != nil {
		log.Fatal(err)
	}

	printer := console.NewEventPrinter(os.Stdout)
	res, err := wf.Run(ctx, "What changed in Go 1.24?", handoff.WithEvents(printer.Sink()))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Response)
}
`

const assistantReadme = `# %s

A web search assistant built with agentflows.

## Setup

` + "```" + `bash
cp .env.example .env   # fill in the model and search keys
go mod tidy
go run .
` + "```" + `

Type a question at the ` + "`user:`" + ` prompt; ` + "`quit`" + `, ` + "`exit`" + ` or ` + "`bye`" + ` leaves.
`

const crewReadme = `# %s

A two-agent crew built with agentflows. Agents and tasks live in
` + "`agents.yaml`" + ` and ` + "`tasks.yaml`" + `; ` + "`{topic}`" + ` placeholders are
filled from the kickoff inputs in ` + "`main.go`" + `.

## Setup

` + "```" + `bash
cp .env.example .env
go mod tidy
go run .
` + "```" + `

The writer's answer is also written to ` + "`summary.txt`" + `.
`

const handoffReadme = `# %s

A hand-off workflow built with agentflows: a triage agent passes questions to
a researcher with web search.

## Setup

` + "```" + `bash
cp .env.example .env
go mod tidy
go run .
` + "```" + `
`

const dockerfileTemplate = `FROM golang:1.24-alpine AS builder

WORKDIR /app
COPY go.mod go.sum ./
RUN go mod download

COPY . .
RUN CGO_ENABLED=0 GOOS=linux go build -o main .

FROM alpine:latest
RUN apk --no-cache add ca-certificates
WORKDIR /root/
COPY --from=builder /app/main .
EXPOSE 8080
CMD ["./main"]
`

const gitignoreTemplate = `# Binaries
*.exe
*.exe~
*.dll
*.so
*.dylib
main

# Test binary
*.test

# Output of go coverage tool
*.out

# Go workspace file
go.work

# Environment variables
.env

# Agent state and outputs
agent_state.json
*.txt

# IDE files
.vscode/
.idea/
*.swp
*.swo

# OS generated files
.DS_Store
Thumbs.db
`

// Package agentflows is the root of a small agent framework and the
// pipelines built on it.
//
// The packages, bottom up:
//
//   - llm: chat clients for Gemini, OpenAI and Anthropic behind one interface,
//     with retries and tracing.
//   - tools: the tool interface, registry and the concrete tools (web search,
//     page fetch, support data).
//   - memory and rag: conversation and vector stores (in memory, Redis,
//     pgvector), workflow state and embeddings.
//   - agent/core: the function-calling agent loop and its events.
//   - agent/handoff and agent/crew: multi-agent hand-off workflows and
//     sequential task crews.
//   - workflow: step graphs, the workflow registry and Mermaid diagrams.
//   - pipelines: the search assistant, research hand-off, blog and support
//     crews, wired from config.
//   - console, server/http and cmd/agentctl: the terminal, HTTP and CLI
//     front ends.
//
// Importers depend on the subpackages directly:
//
//	import (
//	  "github.com/KamdynS/agentflows/agent/core"
//	  "github.com/KamdynS/agentflows/pipelines"
//	)
package agentflows

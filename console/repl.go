// Package console is the terminal front end: a line-based chat loop and a
// printer for agent and workflow events.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/KamdynS/agentflows/agent/core"
	"github.com/KamdynS/agentflows/llm"
	"go.uber.org/zap"
)

// DefaultPrompt is printed before each line is read.
const DefaultPrompt = "user: "

var exitTokens = map[string]bool{"quit": true, "exit": true, "bye": true}

// IsExitToken reports whether line asks to leave the chat. Case and
// surrounding space are ignored.
func IsExitToken(line string) bool {
	return exitTokens[strings.ToLower(strings.TrimSpace(line))]
}

// REPL feeds lines from a reader to an agent and prints one reply per line.
type REPL struct {
	Agent  core.Agent
	Prompt string
	Logger *zap.Logger
}

// Run loops until an exit token, end of input or ctx is done. A failed turn
// prints "Error: ..." and the loop continues. Blank lines are skipped.
func (r *REPL) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	prompt := r.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, prompt)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if IsExitToken(line) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		reply, err := r.Agent.Run(ctx, core.Message{Role: llm.RoleUser, Content: line})
		if err != nil {
			log.Warn("turn failed", zap.Error(err))
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Agent: %s\n", reply.Content)
	}
}

// Package support holds the customer support data tool used by the support
// crew. The data is simulated.
package support

import (
	"context"

	"github.com/KamdynS/agentflows/tools"
	"go.uber.org/zap"
)

const (
	ToolName        = "Customer Support Data Fetcher"
	ToolDescription = "Fetches recent customer support interactions, tickets, and feedback. " +
		"Returns a summary string."
)

// Summary is the simulated support data every call returns.
const Summary = `Recent Support Data Summary:
- 50 tickets related to 'login issues'. High resolution time (avg 48h).
- 30 tickets about 'billing discrepancies'. Mostly resolved within 12h.
- 20 tickets on 'feature requests'. Often closed without resolution.
- Frequent feedback mentions 'confusing user interface' for password reset.
- High volume of calls related to 'account verification process'.
- Sentiment analysis shows growing frustration with 'login issues' resolution time.
- Support agent notes indicate difficulty reproducing 'login issues'.`

// DataTool returns Summary regardless of the query and logs what it was
// asked for.
type DataTool struct {
	logger *zap.Logger
	// OnFetch, when set, receives each query. The CLI prints it.
	OnFetch func(query string)
}

func NewDataTool(logger *zap.Logger) *DataTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataTool{logger: logger}
}

func (t *DataTool) Name() string        { return ToolName }
func (t *DataTool) Description() string { return ToolDescription }

func (t *DataTool) Schema() map[string]interface{} {
	return tools.StringSchema("argument", "What support data to fetch, e.g. 'last quarter support data'")
}

func (t *DataTool) Execute(ctx context.Context, input string) (string, error) {
	query, err := tools.StringArg(input, "argument")
	if err != nil {
		query = input
	}
	t.logger.Info("fetching support data", zap.String("query", query))
	if t.OnFetch != nil {
		t.OnFetch(query)
	}
	return Summary, nil
}

var _ tools.Tool = (*DataTool)(nil)

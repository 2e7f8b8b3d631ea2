package support

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDataToolReturnsSummary(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tool := NewDataTool(zap.New(core))
	var seen string
	tool.OnFetch = func(q string) { seen = q }

	out, err := tool.Execute(context.Background(), `{"argument":"last quarter support data"}`)
	if err != nil || out != Summary {
		t.Fatalf("execute: %v %q", err, out)
	}
	if seen != "last quarter support data" {
		t.Fatalf("OnFetch got %q", seen)
	}
	entries := logs.FilterMessage("fetching support data").All()
	if len(entries) != 1 || entries[0].ContextMap()["query"] != "last quarter support data" {
		t.Fatalf("log entries = %+v", entries)
	}

	if out, _ := tool.Execute(context.Background(), "{}"); out != Summary {
		t.Fatalf("summary must not depend on input")
	}
}

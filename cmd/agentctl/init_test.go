package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KamdynS/agentflows/agent/crew"
)

func TestInitProjectVariants(t *testing.T) {
	dir := t.TempDir()
	for _, typ := range projectTypeNames() {
		if err := initProject(filepath.Join(dir, typ), typ); err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		for _, f := range []string{"main.go", "go.mod", ".env.example", "README.md", "Dockerfile", ".gitignore"} {
			if _, err := os.Stat(filepath.Join(dir, typ, f)); err != nil {
				t.Fatalf("%s: %v", typ, err)
			}
		}
	}
	// unknown
	if err := initProject(filepath.Join(dir, "bad"), "nope"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	mod, _ := os.ReadFile(filepath.Join(dir, "crew", "go.mod"))
	if !strings.HasPrefix(string(mod), "module crew\n") {
		t.Fatalf("go.mod = %q", mod)
	}
}

func TestInitCrewDefinitionsParse(t *testing.T) {
	defs, err := crew.ParseDefinitions([]byte(crewAgentsYAML), []byte(crewTasksYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(defs.Tasks) != 2 || defs.Tasks[1].OutputFile != "summary.txt" {
		t.Fatalf("tasks = %+v", defs.Tasks)
	}
}

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bot")
	var out bytes.Buffer
	root := newRootCmd(&app{})
	root.SetOut(&out)
	root.SetArgs([]string{"init", dir, "--type", "handoff"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Project "+dir+" initialized successfully!") {
		t.Fatalf("out = %s", out.String())
	}
	src, _ := os.ReadFile(filepath.Join(dir, "main.go"))
	if !strings.Contains(string(src), "handoff.NewRouter") {
		t.Fatal("handoff template not written")
	}
}

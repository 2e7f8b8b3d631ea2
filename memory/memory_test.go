package memory

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func TestStateSetGetUpdate(t *testing.T) {
	ctx := context.Background()
	st := NewState(map[string]interface{}{"research_notes": map[string]interface{}{}, "report_content": "Not written yet."})

	if got := st.GetString(ctx, "report_content"); got != "Not written yet." {
		t.Fatalf("report_content = %q", got)
	}
	if _, ok, _ := st.Get(ctx, "missing"); ok {
		t.Fatalf("missing key reported present")
	}

	err := st.Update(ctx, "research_notes", func(old interface{}, present bool) interface{} {
		notes, _ := old.(map[string]interface{})
		out := map[string]interface{}{}
		for k, v := range notes {
			out[k] = v
		}
		out["history"] = "notes"
		return out
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	v, _, _ := st.Get(ctx, "research_notes")
	if v.(map[string]interface{})["history"] != "notes" {
		t.Fatalf("update lost: %v", v)
	}

	keys, _ := st.Keys(ctx)
	if !reflect.DeepEqual(keys, []string{"report_content", "research_notes"}) {
		t.Fatalf("keys = %v", keys)
	}
}

func TestNewStateCopiesInitial(t *testing.T) {
	initial := map[string]interface{}{"a": 1}
	st := NewState(initial)
	initial["b"] = 2
	keys, _ := st.Keys(context.Background())
	if len(keys) != 1 {
		t.Fatalf("state aliased the initial map: %v", keys)
	}
}

func TestStateSaveLoadRoundTripKeepsExactlyTheKeys(t *testing.T) {
	ctx := context.Background()
	st := NewState(map[string]interface{}{
		"research_notes": map[string]interface{}{"topic": "notes"},
		"report_content": "draft",
		"review":         "Review required.",
		"count":          3,
	})
	path := filepath.Join(t.TempDir(), "nested", "agent_state.json")
	if err := st.Save(ctx, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want, _ := st.Keys(ctx)
	got := make([]string, 0, len(loaded))
	for k := range loaded {
		got = append(got, k)
	}
	sort.Strings(got)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("keys after round trip = %v, want %v", got, want)
	}
	if loaded["review"] != "Review required." {
		t.Fatalf("review = %v", loaded["review"])
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestSaveJSONEmptyAndOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	if err := SaveJSON(path, map[string]interface{}{"old": true}); err != nil {
		t.Fatal(err)
	}
	if err := SaveJSON(path, nil); err != nil {
		t.Fatal(err)
	}
	m, err := LoadJSON(path)
	if err != nil || len(m) != 0 {
		t.Fatalf("expected empty object, got %v %v", m, err)
	}
}

func TestLoadJSONRejectsNonObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	_ = os.WriteFile(path, []byte(`[1,2]`), 0o644)
	if _, err := LoadJSON(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestWindowTrimKeepsNewestWithinBudget(t *testing.T) {
	w := NewWindow(14, nil)
	msgs := []Message{
		{Role: "user", Content: "one two three four"},
		{Role: "assistant", Content: "five six"},
		{Role: "user", Content: "seven eight nine"},
	}
	out := w.Trim(msgs)
	if len(out) != 2 || out[0].Content != "five six" {
		t.Fatalf("trim = %+v", out)
	}
	if w.Tokens(out) > 14 {
		t.Fatalf("over budget: %d", w.Tokens(out))
	}
}

func TestWindowAlwaysKeepsLastMessage(t *testing.T) {
	w := NewWindow(2, WordCounter{})
	out := w.Trim([]Message{{Content: "a"}, {Content: "a very long final message"}})
	if len(out) != 1 || out[0].Content != "a very long final message" {
		t.Fatalf("trim = %+v", out)
	}
	if got := NewWindow(0, nil).Trim([]Message{{Content: "x"}, {Content: "y"}}); len(got) != 2 {
		t.Fatalf("zero budget should disable trimming")
	}
}

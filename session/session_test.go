package session

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	// Sessions persist under .codeflow relative to the working directory;
	// run everything inside a scratch dir.
	dir, err := os.MkdirTemp("", "codeflow-session-test")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	if err := os.Chdir(dir); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestSaveAndLoad(t *testing.T) {
	s, err := New("roundtrip")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Mode = "prompt"
	s.Toolset = "default"
	s.AddMessage(Message{Role: "user", Content: "create a schools list"})
	s.AddMessage(Message{
		Role: "assistant",
		ToolCalls: []ToolCall{
			{ToolCallID: "call_1", Name: "create_file", Args: map[string]interface{}{"path": "schools.json"}, StepIndex: 1},
		},
	})

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load("roundtrip")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(loaded.Messages))
	}
	if loaded.Mode != "prompt" || loaded.Toolset != "default" {
		t.Errorf("session flags not restored: %+v", loaded)
	}
	tc := loaded.Messages[1].ToolCalls
	if len(tc) != 1 || tc[0].Name != "create_file" || tc[0].StepIndex != 1 {
		t.Errorf("tool calls not restored: %+v", tc)
	}

	// A loaded session must save back to the same file.
	loaded.AddMessage(Message{Role: "assistant", Content: "done"})
	if err := loaded.Save(); err != nil {
		t.Fatalf("Save after Load failed: %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("does-not-exist"); err == nil {
		t.Fatal("expected an error for a missing session")
	}
}

func TestRecent(t *testing.T) {
	var msgs []Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs, Message{Role: "user", Content: "m"})
	}

	if got := len(Recent(msgs, 3)); got != 3 {
		t.Errorf("Recent(3) returned %d messages", got)
	}
	if got := len(Recent(msgs, 0)); got != 5 {
		t.Errorf("Recent(0) should return everything, got %d", got)
	}
	if got := len(Recent(msgs, 10)); got != 5 {
		t.Errorf("Recent(10) should cap at history length, got %d", got)
	}
}

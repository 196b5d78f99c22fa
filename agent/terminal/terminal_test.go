package terminal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codeflow-cli/codeflow/agent"
	"github.com/codeflow-cli/codeflow/changelog"
	"github.com/codeflow-cli/codeflow/config"
	"github.com/codeflow-cli/codeflow/errors"
	"github.com/codeflow-cli/codeflow/session"
	"github.com/codeflow-cli/codeflow/tools"
	"github.com/codeflow-cli/codeflow/workspace"
)

func newTerminal(t *testing.T, files map[string]string) (*Terminal, *strings.Builder) {
	t.Helper()
	dir := t.TempDir()
	for path, body := range files {
		if err := os.WriteFile(filepath.Join(dir, path), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	index, err := workspace.NewIndex(dir, &config.FilesystemAccess{})
	if err != nil {
		t.Fatal(err)
	}
	var out strings.Builder
	term := New(changelog.NewLog(""), index, VerbosityInfo)
	term.Out = &out
	return term, &out
}

func TestCommands(t *testing.T) {
	term, out := newTerminal(t, map[string]string{"a.go": "package a\n"})

	if quit := term.handleCommand("/files"); quit {
		t.Fatal("/files must not quit")
	}
	if !strings.Contains(out.String(), "a.go") || !strings.Contains(out.String(), "1 files") {
		t.Fatalf("unexpected /files output: %s", out.String())
	}

	out.Reset()
	term.handleCommand("/history")
	if !strings.Contains(out.String(), "No changes applied yet") {
		t.Fatalf("unexpected /history output: %s", out.String())
	}

	out.Reset()
	term.handleCommand("/rescan")
	if !strings.Contains(out.String(), "Rescanned: 1 files") {
		t.Fatalf("unexpected /rescan output: %s", out.String())
	}

	out.Reset()
	term.handleCommand("/bogus")
	if !strings.Contains(out.String(), "Unknown command") {
		t.Fatalf("unexpected output for bad command: %s", out.String())
	}

	if !term.handleCommand("/quit") {
		t.Fatal("/quit must quit")
	}
}

func TestHistoryShowsAppliedChanges(t *testing.T) {
	term, out := newTerminal(t, nil)
	if err := term.log.Append(changelog.Record{Path: "x.go", Kind: tools.MutationEdit, Summary: "+1 -1"}); err != nil {
		t.Fatal(err)
	}
	term.handleCommand("/history")
	if !strings.Contains(out.String(), "x.go") {
		t.Fatalf("history missing applied change: %s", out.String())
	}
}

func TestReportFailedRunShowsRecords(t *testing.T) {
	term, out := newTerminal(t, nil)
	term.report(&agent.Outcome{
		Status:    agent.StatusFailed,
		StepsUsed: 20,
		Err:       errors.BudgetExceeded(errors.New("step budget of 20 exhausted")),
		Records: []changelog.Record{
			{Path: "kept.go", Kind: tools.MutationCreate, Summary: "+3 -0"},
		},
	})
	s := out.String()
	if !strings.Contains(s, "Run failed after 20 steps") {
		t.Fatalf("missing failure line: %s", s)
	}
	if !strings.Contains(s, "kept.go") {
		t.Fatalf("failed run must still report applied changes: %s", s)
	}
}

func TestCallbackVerbosity(t *testing.T) {
	term, out := newTerminal(t, nil)
	call := session.ToolCall{Name: "read_file", Args: map[string]interface{}{"path": "a.go"}}

	term.Verbosity = VerbosityNone
	cb := term.Callbacks()
	cb.OnToolCall(call)
	cb.OnToolResult(call, "body")
	if out.String() != "" {
		t.Fatalf("verbosity none should print nothing, got %s", out.String())
	}

	term.Verbosity = VerbosityInfo
	cb = term.Callbacks()
	cb.OnToolCall(call)
	cb.OnToolResult(call, "body")
	if !strings.Contains(out.String(), "read_file") || strings.Contains(out.String(), "body") {
		t.Fatalf("verbosity info should print the call only: %s", out.String())
	}

	out.Reset()
	term.Verbosity = VerbosityAll
	cb = term.Callbacks()
	cb.OnToolCall(call)
	cb.OnToolResult(call, "body")
	if !strings.Contains(out.String(), "args:") || !strings.Contains(out.String(), "body") {
		t.Fatalf("verbosity all should print args and results: %s", out.String())
	}
}

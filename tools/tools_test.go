package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codeflow-cli/codeflow/config"
	"github.com/codeflow-cli/codeflow/workspace"
)

func testWorkspace(t *testing.T, files map[string]string) (workspace.FileSystem, *workspace.Index) {
	t.Helper()
	dir := t.TempDir()
	for path, body := range files {
		full := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })

	access := &config.FilesystemAccess{}
	index, err := workspace.NewIndex(".", access)
	if err != nil {
		t.Fatal(err)
	}
	return workspace.NewOSFileSystem(access), index
}

func TestRegistryDistinguishesUnknownFromInvalid(t *testing.T) {
	fs, index := testWorkspace(t, map[string]string{"a.txt": "hello\n"})
	r := NewRegistry()
	if err := r.Register(&ReadFileTool{FS: fs}); err != nil {
		t.Fatal(err)
	}
	_ = index

	if _, ok := r.Get("no_such_tool"); ok {
		t.Fatal("unknown tool reported as registered")
	}

	tool, ok := r.Get("read_file")
	if !ok {
		t.Fatal("read_file should be registered")
	}
	err := tool.Validate(map[string]interface{}{})
	if err == nil {
		t.Fatal("missing path should fail validation")
	}
	if _, isValidation := err.(ValidationError); !isValidation {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&SubGoalTool{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&SubGoalTool{}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestActiveToolsetSelection(t *testing.T) {
	fs, index := testWorkspace(t, nil)
	r := NewRegistry()
	for _, tool := range []Tool{
		&ReadFileTool{FS: fs},
		&SearchTool{Index: index},
		&SubGoalTool{},
	} {
		if err := r.Register(tool); err != nil {
			t.Fatal(err)
		}
	}

	active, err := r.Active(&config.Toolset{Name: "narrow", Tools: []string{"read_file"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Name() != "read_file" {
		t.Fatalf("expected only read_file, got %d tools", len(active))
	}

	// MCP-qualified names resolve against the short name.
	active, err = r.Active(&config.Toolset{Name: "q", Tools: []string{"someserver:search"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Name() != "search" {
		t.Fatal("qualified name should resolve to the short-named tool")
	}

	if _, err := r.Active(&config.Toolset{Name: "bad", Tools: []string{"missing"}}); err == nil {
		t.Fatal("toolset naming an unregistered tool should fail")
	}

	all, err := r.Active(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("nil toolset should select everything, got %d", len(all))
	}
}

func TestMutatingToolsProposeWithoutWriting(t *testing.T) {
	fs, _ := testWorkspace(t, map[string]string{"app.py": "one\ntwo\n"})
	ctx := context.Background()

	edit := &EditFileTool{FS: fs}
	res, err := edit.Execute(ctx, map[string]interface{}{
		"path":    "app.py",
		"content": "one\nTWO\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mutation == nil {
		t.Fatal("edit must return a pending mutation")
	}
	if res.Mutation.Kind != MutationEdit {
		t.Fatalf("wrong mutation kind: %s", res.Mutation.Kind)
	}
	if res.Mutation.Diff.Empty() {
		t.Fatal("changed content should produce a non-empty diff")
	}

	// The file on disk is untouched until the mutation is applied.
	body, err := fs.Read("app.py")
	if err != nil {
		t.Fatal(err)
	}
	if body != "one\ntwo\n" {
		t.Fatalf("edit tool wrote to disk before review: %q", body)
	}

	create := &CreateFileTool{FS: fs}
	res, err = create.Execute(ctx, map[string]interface{}{
		"path":    "new.txt",
		"content": "fresh\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mutation == nil || res.Mutation.Kind != MutationCreate {
		t.Fatal("create must return a create mutation")
	}
	if fs.Exists("new.txt") {
		t.Fatal("create tool wrote to disk before review")
	}

	del := &DeleteFileTool{FS: fs}
	res, err = del.Execute(ctx, map[string]interface{}{"path": "app.py"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mutation == nil || res.Mutation.Kind != MutationDelete {
		t.Fatal("delete must return a delete mutation")
	}
	if !fs.Exists("app.py") {
		t.Fatal("delete tool removed the file before review")
	}
}

func TestCreateRejectsExistingFile(t *testing.T) {
	fs, _ := testWorkspace(t, map[string]string{"a.txt": "x"})
	create := &CreateFileTool{FS: fs}
	_, err := create.Execute(context.Background(), map[string]interface{}{
		"path":    "a.txt",
		"content": "y",
	})
	if err == nil {
		t.Fatal("creating over an existing file should fail")
	}
}

func TestMutationRecompute(t *testing.T) {
	fs, _ := testWorkspace(t, map[string]string{"a.txt": "one\ntwo\n"})
	edit := &EditFileTool{FS: fs}
	res, err := edit.Execute(context.Background(), map[string]interface{}{
		"path":    "a.txt",
		"content": "one\nTWO\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	m := res.Mutation

	m.Recompute("one\ntwo\n")
	if !m.Diff.Empty() {
		t.Fatal("recompute back to the original should yield an empty diff")
	}
	m.Recompute("entirely different\n")
	if m.Diff.Empty() {
		t.Fatal("recompute with new content should yield a non-empty diff")
	}
	if m.Proposed != "entirely different\n" {
		t.Fatal("recompute must replace the proposed body")
	}
}

func TestReadFileLineRange(t *testing.T) {
	fs, _ := testWorkspace(t, map[string]string{"a.txt": "l1\nl2\nl3\nl4\n"})
	read := &ReadFileTool{FS: fs}
	res, err := read.Execute(context.Background(), map[string]interface{}{
		"path":       "a.txt",
		"start_line": float64(2), // JSON numbers decode as float64
		"end_line":   float64(3),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != "l2\nl3" {
		t.Fatalf("unexpected range output: %q", res.Output)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	fs, _ := testWorkspace(t, nil)
	for _, tool := range []Tool{
		&ReadFileTool{FS: fs},
		&EditFileTool{FS: fs},
		&DeleteFileTool{FS: fs},
	} {
		err := tool.Validate(map[string]interface{}{"path": "../outside", "content": "x"})
		if err == nil {
			t.Fatalf("%s accepted a path with '..'", tool.Name())
		}
	}
}

func TestSearchToolFormatsHits(t *testing.T) {
	_, index := testWorkspace(t, map[string]string{
		"a.go": "package a\n// needle here\n",
		"b.go": "package b\n",
	})
	search := &SearchTool{Index: index}
	res, err := search.Execute(context.Background(), map[string]interface{}{"query": "needle"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mutation != nil {
		t.Fatal("search must not propose mutations")
	}
	if want := "a.go:2: // needle here\n"; res.Output != want {
		t.Fatalf("unexpected search output: %q", res.Output)
	}
}

func TestAnalyzeReportsMetrics(t *testing.T) {
	fs, _ := testWorkspace(t, map[string]string{
		"m.py": "# comment\n\nx = 1\n# TODO: fix this\n",
	})
	analyze := &AnalyzeTool{FS: fs}
	res, err := analyze.Execute(context.Background(), map[string]interface{}{"path": "m.py"})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"language: python", "blank", "issues:", "TODO"} {
		if !strings.Contains(res.Output, want) {
			t.Fatalf("analyze output missing %q:\n%s", want, res.Output)
		}
	}
}

func TestExecuteCommandAllowlist(t *testing.T) {
	tool := &ExecuteCommandTool{AllowedCommands: []string{`^echo( .*)?$`}}
	ctx := context.Background()

	res, err := tool.Execute(ctx, map[string]interface{}{"command": "echo hi"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Output, "hi") {
		t.Fatalf("expected command output, got %q", res.Output)
	}

	if _, err := tool.Execute(ctx, map[string]interface{}{"command": "rm -rf /"}); err == nil {
		t.Fatal("command outside the allowlist should be rejected")
	}
}

func TestSubGoalWithoutRunner(t *testing.T) {
	tool := &SubGoalTool{}
	if _, err := tool.Execute(context.Background(), map[string]interface{}{"goal": "g"}); err == nil {
		t.Fatal("subgoal without a wired runner should fail")
	}
}

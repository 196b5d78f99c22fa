package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeflow-cli/codeflow/diff"
	"github.com/codeflow-cli/codeflow/errors"
	"github.com/codeflow-cli/codeflow/workspace"
)

// ReadFileTool returns the contents of a workspace file, optionally
// restricted to a line range.
type ReadFileTool struct {
	FS workspace.FileSystem
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Kind() Kind   { return KindRead }
func (t *ReadFileTool) Description() string {
	return "Reads the content of a file. Args: path (string), start_line (int, optional), end_line (int, optional)."
}

func (t *ReadFileTool) Validate(args map[string]interface{}) error {
	_, err := requirePath(args)
	return err
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	path, err := requirePath(args)
	if err != nil {
		return Result{}, err
	}

	body, err := t.FS.Read(path)
	if err != nil {
		return Result{}, err
	}

	start := GetInt(args, "start_line", 0)
	end := GetInt(args, "end_line", 0)
	if start > 0 || end > 0 {
		lines := strings.Split(body, "\n")
		if start < 1 {
			start = 1
		}
		if end <= 0 || end > len(lines) {
			end = len(lines)
		}
		if start > len(lines) {
			return Result{}, errors.New("start_line %d is past the end of '%s' (%d lines)", start, path, len(lines))
		}
		body = strings.Join(lines[start-1:end], "\n")
	}
	return Result{Output: body}, nil
}

// CreateFileTool proposes a new file. It never writes; the proposal goes
// through diff review first.
type CreateFileTool struct {
	FS workspace.FileSystem
}

func (t *CreateFileTool) Name() string { return "create_file" }
func (t *CreateFileTool) Kind() Kind   { return KindMutate }
func (t *CreateFileTool) Description() string {
	return "Creates a new file with the given content, subject to review. Args: path (string), content (string)."
}

func (t *CreateFileTool) Validate(args map[string]interface{}) error {
	if _, err := requirePath(args); err != nil {
		return err
	}
	if _, ok := GetString(args, "content"); !ok {
		return ValidationError{Field: "content", Message: "is required"}
	}
	return nil
}

func (t *CreateFileTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	path, err := requirePath(args)
	if err != nil {
		return Result{}, err
	}
	content, _ := GetString(args, "content")

	if t.FS.Exists(path) {
		return Result{}, errors.New("file '%s' already exists; use edit_file instead", path)
	}

	m := &Mutation{
		Path:     path,
		Kind:     MutationCreate,
		Proposed: content,
		Diff:     diff.Compute("", content),
	}
	return Result{Output: m.Describe(), Mutation: m}, nil
}

// EditFileTool proposes replacing a file's body.
type EditFileTool struct {
	FS workspace.FileSystem
}

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Kind() Kind   { return KindMutate }
func (t *EditFileTool) Description() string {
	return "Replaces the content of an existing file, subject to review. Args: path (string), content (string)."
}

func (t *EditFileTool) Validate(args map[string]interface{}) error {
	if _, err := requirePath(args); err != nil {
		return err
	}
	if _, ok := GetString(args, "content"); !ok {
		return ValidationError{Field: "content", Message: "is required"}
	}
	return nil
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	path, err := requirePath(args)
	if err != nil {
		return Result{}, err
	}
	content, _ := GetString(args, "content")

	original, err := t.FS.Read(path)
	if err != nil {
		return Result{}, err
	}

	m := &Mutation{
		Path:     path,
		Kind:     MutationEdit,
		Original: original,
		Proposed: content,
		Diff:     diff.Compute(original, content),
	}
	return Result{Output: m.Describe(), Mutation: m}, nil
}

// DeleteFileTool proposes removing a file.
type DeleteFileTool struct {
	FS workspace.FileSystem
}

func (t *DeleteFileTool) Name() string { return "delete_file" }
func (t *DeleteFileTool) Kind() Kind   { return KindMutate }
func (t *DeleteFileTool) Description() string {
	return "Deletes a file, subject to review. Args: path (string)."
}

func (t *DeleteFileTool) Validate(args map[string]interface{}) error {
	_, err := requirePath(args)
	return err
}

func (t *DeleteFileTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	path, err := requirePath(args)
	if err != nil {
		return Result{}, err
	}

	original, err := t.FS.Read(path)
	if err != nil {
		return Result{}, err
	}

	m := &Mutation{
		Path:     path,
		Kind:     MutationDelete,
		Original: original,
		Diff:     diff.Compute(original, ""),
	}
	return Result{Output: m.Describe(), Mutation: m}, nil
}

// ListFilesTool lists the workspace snapshot.
type ListFilesTool struct {
	Index *workspace.Index
}

func (t *ListFilesTool) Name() string { return "list_files" }
func (t *ListFilesTool) Kind() Kind   { return KindRead }
func (t *ListFilesTool) Description() string {
	return "Lists the accessible files in the workspace. Args: none."
}

func (t *ListFilesTool) Validate(args map[string]interface{}) error { return nil }

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	paths := t.Index.Files()
	var b strings.Builder
	for _, p := range paths {
		info, _ := t.Index.Stat(p)
		fmt.Fprintf(&b, "%s (%d bytes)\n", p, info.Size)
	}
	if b.Len() == 0 {
		return Result{Output: "workspace is empty"}, nil
	}
	return Result{Output: b.String()}, nil
}

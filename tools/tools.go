package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeflow-cli/codeflow/config"
	"github.com/codeflow-cli/codeflow/diff"
	"github.com/codeflow-cli/codeflow/errors"
)

// Kind is the capability class of a tool. The orchestrator routes results
// by kind: mutate results carry a pending mutation through review, the
// rest feed straight back into the next model turn.
type Kind string

const (
	KindRead    Kind = "read"
	KindSearch  Kind = "search"
	KindAnalyze Kind = "analyze"
	KindMutate  Kind = "mutate"
	// KindExec covers external-collaborator tools (shell commands, MCP
	// servers) whose effects are outside the reviewed workspace.
	KindExec Kind = "exec"
)

// MutationKind distinguishes the three reviewable file operations.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationEdit   MutationKind = "edit"
	MutationDelete MutationKind = "delete"
)

// Mutation is a proposed file change awaiting review. It exists only
// between proposal and the confirmation decision; mutating tools return
// one instead of writing, so no write can bypass review.
type Mutation struct {
	Path     string
	Kind     MutationKind
	Original string
	Proposed string
	Diff     *diff.Diff
}

// Recompute replaces the proposed body and rederives the diff. The
// confirmation flow calls this when the user edits the proposal.
func (m *Mutation) Recompute(proposed string) {
	m.Proposed = proposed
	m.Diff = diff.Compute(m.Original, proposed)
}

// Describe returns a one-line human summary, e.g. "edit app.py (+2 -2)".
func (m *Mutation) Describe() string {
	return fmt.Sprintf("%s %s (%s)", m.Kind, m.Path, m.Diff.Summary())
}

// Result is what a tool execution produces: output text for the model,
// and, for mutating tools only, the pending mutation.
type Result struct {
	Output   string
	Mutation *Mutation
}

// Tool defines the interface for any action the agent can take. Validate
// runs before Execute and never touches the workspace; an argument that
// fails validation short-circuits to an error result without invoking the
// handler.
type Tool interface {
	Name() string
	Description() string
	Kind() Kind
	Validate(args map[string]interface{}) error
	Execute(ctx context.Context, args map[string]interface{}) (Result, error)
}

// ValidationError reports a specific bad argument.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// UnknownToolError is a distinct error class from invalid arguments: the
// model asked for a tool that is not in the registry at all.
type UnknownToolError struct {
	Name string
}

func (e UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool '%s'", e.Name)
}

// Registry is the closed dispatch table, built once at startup. Lookups
// after that are read-only.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering the same name twice is a programming
// error and fails loudly.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return errors.New("tool already registered: %s", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a tool by name; the second return distinguishes unknown
// names from registered ones.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns the registered tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Active returns the tools selected by a toolset. An empty toolset means
// everything; MCP-qualified names (<server>:<tool>) resolve against their
// short name since MCP tools register under it.
func (r *Registry) Active(ts *config.Toolset) ([]Tool, error) {
	if ts == nil || len(ts.Tools) == 0 {
		return r.List(), nil
	}
	var active []Tool
	for _, name := range ts.Tools {
		if i := strings.Index(name, ":"); i >= 0 {
			name = name[i+1:]
		}
		t, ok := r.Get(name)
		if !ok {
			return nil, errors.New("tool '%s' from toolset '%s' is not registered", name, ts.Name)
		}
		active = append(active, t)
	}
	return active, nil
}

// GetString extracts a required string argument.
func GetString(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt extracts an integer argument, tolerating the float64 that JSON
// decoding produces.
func GetInt(args map[string]interface{}, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// requirePath validates the mandatory "path" string argument shared by
// all file tools.
func requirePath(args map[string]interface{}) (string, error) {
	path, ok := GetString(args, "path")
	if !ok || path == "" {
		return "", ValidationError{Field: "path", Message: "is required"}
	}
	if strings.Contains(path, "..") {
		return "", ValidationError{Field: "path", Message: "must not contain '..'"}
	}
	return path, nil
}

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeflow-cli/codeflow/workspace"
)

// SearchTool scans the workspace snapshot for a substring, ranking files
// with more matches first. It reads the indexed files but never mutates
// the snapshot.
type SearchTool struct {
	Index *workspace.Index
}

func (t *SearchTool) Name() string { return "search" }
func (t *SearchTool) Kind() Kind   { return KindSearch }
func (t *SearchTool) Description() string {
	return "Searches the codebase for a string. Args: query (string), max_results (int, optional, default 20)."
}

func (t *SearchTool) Validate(args map[string]interface{}) error {
	query, ok := GetString(args, "query")
	if !ok || query == "" {
		return ValidationError{Field: "query", Message: "is required"}
	}
	return nil
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	query, _ := GetString(args, "query")
	limit := GetInt(args, "max_results", 20)

	hits := t.Index.Search(query, limit)
	if len(hits) == 0 {
		return Result{Output: fmt.Sprintf("no matches for %q", query)}, nil
	}

	var b strings.Builder
	for _, hit := range hits {
		fmt.Fprintf(&b, "%s:%d: %s\n", hit.Path, hit.LineNum, strings.TrimSpace(hit.Line))
	}
	return Result{Output: b.String()}, nil
}

package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/codeflow-cli/codeflow/workspace"
)

// AnalyzeTool reports basic structural metrics for a file: language,
// line counts, and simple issue heuristics. Read-only.
type AnalyzeTool struct {
	FS workspace.FileSystem
}

func (t *AnalyzeTool) Name() string { return "analyze" }
func (t *AnalyzeTool) Kind() Kind   { return KindAnalyze }
func (t *AnalyzeTool) Description() string {
	return "Analyzes a file's structure: language, line counts, and potential issues. Args: path (string)."
}

func (t *AnalyzeTool) Validate(args map[string]interface{}) error {
	_, err := requirePath(args)
	return err
}

func (t *AnalyzeTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	path, err := requirePath(args)
	if err != nil {
		return Result{}, err
	}

	body, err := t.FS.Read(path)
	if err != nil {
		return Result{}, err
	}

	lines := strings.Split(body, "\n")
	var blank, comment, long int
	var issues []string
	commentPrefix := commentMarker(path)

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			blank++
		case commentPrefix != "" && strings.HasPrefix(trimmed, commentPrefix):
			comment++
		}
		if len(line) > 120 {
			long++
		}
		upper := strings.ToUpper(trimmed)
		if strings.Contains(upper, "TODO") || strings.Contains(upper, "FIXME") {
			issues = append(issues, fmt.Sprintf("line %d: open marker: %s", i+1, trimmed))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "path: %s\n", path)
	fmt.Fprintf(&b, "language: %s\n", detectLanguage(path))
	fmt.Fprintf(&b, "lines: %d total, %d blank, %d comment\n", len(lines), blank, comment)
	if long > 0 {
		fmt.Fprintf(&b, "long lines (>120 chars): %d\n", long)
	}
	if len(issues) > 0 {
		b.WriteString("issues:\n")
		for _, issue := range issues {
			fmt.Fprintf(&b, "  %s\n", issue)
		}
	}
	return Result{Output: b.String()}, nil
}

func detectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "c++"
	case ".sh":
		return "shell"
	case ".md":
		return "markdown"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "unknown"
	}
}

func commentMarker(path string) string {
	switch detectLanguage(path) {
	case "go", "javascript", "typescript", "rust", "java", "c", "c++":
		return "//"
	case "python", "ruby", "shell", "yaml":
		return "#"
	default:
		return ""
	}
}

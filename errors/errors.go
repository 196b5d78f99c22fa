package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return fmt.Errorf("[%s:%d] %s", file, line, fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return fmt.Errorf("[%s:%d] %s: %w", file, line, fmt.Sprintf(format, a...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// Kind classifies an agent-level failure. Every failure the orchestrator
// can encounter maps onto exactly one kind, which decides whether the run
// continues (recoverable kinds are surfaced back to the model as tool
// results) or terminates.
type Kind string

const (
	// KindInvalidToolCall covers unknown tool names and arguments that
	// fail schema validation. Recoverable.
	KindInvalidToolCall Kind = "invalid_tool_call"

	// KindToolExecution covers handler-level failures such as a file
	// vanishing between proposal and apply. Recoverable.
	KindToolExecution Kind = "tool_execution"

	// KindTransport covers model-client failures. Retried with bounded
	// backoff; fatal to the run once retries are exhausted.
	KindTransport Kind = "transport"

	// KindConfirmationTimeout means the confirmation gate timed out. The
	// pending mutation is treated as rejected. Recoverable.
	KindConfirmationTimeout Kind = "confirmation_timeout"

	// KindBudgetExceeded means the step budget ran out. Fatal, and kept
	// distinct so callers can tell "gave up" from "erred".
	KindBudgetExceeded Kind = "budget_exceeded"

	// KindRecursion means a child goal failed. Surfaced to the parent as
	// a single tool-execution failure, never as a raw panic or a crash of
	// the parent run.
	KindRecursion Kind = "recursion"
)

// AgentError carries a failure kind through wrapping so the orchestrator
// and surfaces can branch on it with IsKind / AsKind.
type AgentError struct {
	Kind Kind
	Err  error
}

func (e *AgentError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

// Is matches another AgentError of the same kind, so sentinel-style
// comparisons work regardless of the wrapped cause.
func (e *AgentError) Is(target error) bool {
	t, ok := target.(*AgentError)
	return ok && t.Kind == e.Kind
}

// InvalidToolCall wraps err as a recoverable bad-tool-call failure.
func InvalidToolCall(err error) error { return &AgentError{Kind: KindInvalidToolCall, Err: err} }

// ToolExecution wraps err as a recoverable handler failure.
func ToolExecution(err error) error { return &AgentError{Kind: KindToolExecution, Err: err} }

// Transport wraps err as a model-client failure.
func Transport(err error) error { return &AgentError{Kind: KindTransport, Err: err} }

// ConfirmationTimeout wraps err as a confirmation-gate timeout.
func ConfirmationTimeout(err error) error {
	return &AgentError{Kind: KindConfirmationTimeout, Err: err}
}

// BudgetExceeded wraps err as step-budget exhaustion.
func BudgetExceeded(err error) error { return &AgentError{Kind: KindBudgetExceeded, Err: err} }

// Recursion wraps err as a child-goal failure.
func Recursion(err error) error { return &AgentError{Kind: KindRecursion, Err: err} }

// AsKind extracts the failure kind from anywhere in err's chain. The
// second return is false when no AgentError is present.
func AsKind(err error) (Kind, bool) {
	var ae *AgentError
	if stderrors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// IsKind reports whether err's chain contains an AgentError of kind k.
func IsKind(err error, k Kind) bool {
	kind, ok := AsKind(err)
	return ok && kind == k
}

// NotFound marks a path that no longer exists. The file capability returns
// it from Read and Delete; the orchestrator treats it as a recoverable
// tool-execution failure.
var NotFound = stderrors.New("not found")

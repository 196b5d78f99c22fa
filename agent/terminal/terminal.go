package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/codeflow-cli/codeflow/agent"
	"github.com/codeflow-cli/codeflow/changelog"
	"github.com/codeflow-cli/codeflow/session"
	"github.com/codeflow-cli/codeflow/workspace"
)

// Verbosity controls how much tool activity is printed.
type Verbosity string

const (
	VerbosityNone Verbosity = "none"
	VerbosityInfo Verbosity = "info"
	VerbosityAll  Verbosity = "all"
)

// Terminal is the interactive CLI surface. It reads goals from the user,
// hands them to the orchestrator, prints what happens, and reports the
// applied changes when each run ends, whatever state it ended in.
type Terminal struct {
	In        io.Reader
	Out       io.Writer
	Verbosity Verbosity

	log   *changelog.Log
	index *workspace.Index
}

// New creates the terminal surface on stdin/stdout.
func New(log *changelog.Log, index *workspace.Index, verbosity Verbosity) *Terminal {
	return &Terminal{
		In:        os.Stdin,
		Out:       os.Stdout,
		Verbosity: verbosity,
		log:       log,
		index:     index,
	}
}

// Callbacks returns the observer hooks to wire into the orchestrator.
func (t *Terminal) Callbacks() agent.Callbacks {
	return agent.Callbacks{
		OnAssistantMessage: func(message string) {
			fmt.Fprintf(t.Out, "Codeflow: %s\n", message)
		},
		OnToolCall: func(call session.ToolCall) {
			switch t.Verbosity {
			case VerbosityAll:
				fmt.Fprintf(t.Out, "Codeflow calls `%s` with args: %v\n", call.Name, call.Args)
			case VerbosityInfo:
				fmt.Fprintf(t.Out, "Codeflow calls `%s`\n", call.Name)
			}
		},
		OnToolResult: func(call session.ToolCall, result string) {
			if t.Verbosity == VerbosityAll {
				fmt.Fprintf(t.Out, "Tool `%s` output: %s\n", call.Name, result)
			}
		},
		OnMutationApplied: func(rec changelog.Record) {
			fmt.Fprintf(t.Out, "Applied: %s\n", rec)
		},
		OnWarning: func(warning string) {
			fmt.Fprintf(t.Out, "Warning: %s\n", warning)
		},
	}
}

// Run starts the interactive session. An initial prompt from the command
// line runs first; after that the loop reads goals and commands until
// /quit or EOF.
func (t *Terminal) Run(ctx context.Context, orch *agent.Orchestrator, initialPrompt string) error {
	if initialPrompt != "" {
		t.runGoal(ctx, orch, initialPrompt)
	}

	scanner := bufio.NewScanner(t.In)
	for {
		fmt.Fprint(t.Out, "You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if quit := t.handleCommand(input); quit {
				break
			}
			continue
		}
		t.runGoal(ctx, orch, input)
	}
	return scanner.Err()
}

func (t *Terminal) runGoal(ctx context.Context, orch *agent.Orchestrator, prompt string) {
	outcome, err := orch.Run(ctx, prompt)
	if err != nil {
		fmt.Fprintf(t.Out, "Error: %v\n", err)
		return
	}
	t.report(outcome)
}

// report prints the terminal state and the changes applied during the
// run. A failed run still shows what already reached disk.
func (t *Terminal) report(outcome *agent.Outcome) {
	switch outcome.Status {
	case agent.StatusSucceeded:
		// The final answer was already printed via OnAssistantMessage.
	case agent.StatusAborted:
		fmt.Fprintf(t.Out, "Run aborted after %d steps.\n", outcome.StepsUsed)
	case agent.StatusFailed:
		fmt.Fprintf(t.Out, "Run failed after %d steps: %v\n", outcome.StepsUsed, outcome.Err)
	}
	if len(outcome.Records) > 0 {
		fmt.Fprintln(t.Out, "Changes applied this session:")
		for _, rec := range outcome.Records {
			fmt.Fprintf(t.Out, "  %s\n", rec)
		}
	}
}

// handleCommand processes a slash command, returning true on quit.
func (t *Terminal) handleCommand(input string) bool {
	switch input {
	case "/quit", "/exit":
		return true
	case "/history":
		records := t.log.Recent(20)
		if len(records) == 0 {
			fmt.Fprintln(t.Out, "No changes applied yet.")
			return false
		}
		for _, rec := range records {
			fmt.Fprintf(t.Out, "%s\n", rec)
		}
	case "/files":
		for _, path := range t.index.Files() {
			fmt.Fprintln(t.Out, path)
		}
		fmt.Fprintf(t.Out, "%d files\n", t.index.Len())
	case "/rescan":
		if err := t.index.Rescan(); err != nil {
			fmt.Fprintf(t.Out, "Rescan failed: %v\n", err)
			return false
		}
		fmt.Fprintf(t.Out, "Rescanned: %d files\n", t.index.Len())
	case "/help":
		fmt.Fprintln(t.Out, `Commands:
  /history  show recently applied changes
  /files    list the workspace snapshot
  /rescan   rebuild the workspace snapshot
  /help     show this help
  /quit     exit`)
	default:
		fmt.Fprintf(t.Out, "Unknown command %s (try /help)\n", input)
	}
	return false
}

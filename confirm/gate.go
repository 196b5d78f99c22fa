// Package confirm is the gate every pending mutation passes through
// before it touches the workspace. A gate renders the proposed change and
// returns the user's decision; nothing in the agent writes a file without
// an accept from here.
package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/codeflow-cli/codeflow/errors"
	"github.com/codeflow-cli/codeflow/tools"
)

// Decision is the reviewer's verdict on a pending mutation.
type Decision string

const (
	// DecisionAccept applies the mutation as proposed.
	DecisionAccept Decision = "accept"
	// DecisionReject discards the mutation. Timeouts and ambiguous input
	// resolve to reject, never to accept.
	DecisionReject Decision = "reject"
	// DecisionReview asks for the full diff before deciding again. It
	// consumes no step budget.
	DecisionReview Decision = "review"
	// DecisionEdit replaces the proposed content with Revised and routes
	// the recomputed diff back through the gate. It consumes no step
	// budget.
	DecisionEdit Decision = "edit"
)

// Response carries the decision plus, for edits, the revised content.
type Response struct {
	Decision Decision
	Revised  string
}

// Gate decides the fate of a pending mutation. Decide may block on user
// input; implementations must honor ctx cancellation and their own
// timeout, returning a reject (with a confirmation-timeout error) when
// either fires.
type Gate interface {
	Decide(ctx context.Context, m *tools.Mutation) (Response, error)
}

// PolicyGate resolves every mutation the same way without asking anyone.
// Scripted runs use it to auto-accept; a locked-down run auto-rejects.
type PolicyGate struct {
	Accept bool
}

func (g *PolicyGate) Decide(ctx context.Context, m *tools.Mutation) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{Decision: DecisionReject}, err
	}
	if g.Accept {
		return Response{Decision: DecisionAccept}, nil
	}
	return Response{Decision: DecisionReject}, nil
}

// TerminalGate prompts on the terminal. It shows the one-line mutation
// summary, offers the full diff, and supports revising the proposal in
// $EDITOR before deciding.
type TerminalGate struct {
	In      io.Reader
	Out     io.Writer
	Timeout time.Duration

	once  sync.Once
	lines chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewTerminalGate builds a gate on stdin/stdout with the given timeout.
func NewTerminalGate(timeout time.Duration) *TerminalGate {
	return &TerminalGate{In: os.Stdin, Out: os.Stdout, Timeout: timeout}
}

func (g *TerminalGate) Decide(ctx context.Context, m *tools.Mutation) (Response, error) {
	fmt.Fprintf(g.Out, "\nProposed change: %s\n", m.Describe())
	for {
		fmt.Fprint(g.Out, "[a]ccept / [r]eject / [v]iew diff / [e]dit > ")

		line, err := g.readLine(ctx)
		if err != nil {
			return Response{Decision: DecisionReject}, err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "accept", "y", "yes":
			return Response{Decision: DecisionAccept}, nil
		case "r", "reject", "n", "no":
			return Response{Decision: DecisionReject}, nil
		case "v", "view", "d", "diff":
			fmt.Fprintln(g.Out, m.Diff.Render())
		case "e", "edit":
			revised, err := g.editProposal(m)
			if err != nil {
				fmt.Fprintf(g.Out, "edit failed: %v\n", err)
				continue
			}
			return Response{Decision: DecisionEdit, Revised: revised}, nil
		default:
			fmt.Fprintln(g.Out, "unrecognized choice")
		}
	}
}

// readLine reads one line of input, racing the configured timeout and ctx
// cancellation. Either one resolves to a reject upstream. A single pump
// goroutine owns the reader for the gate's lifetime, so a prompt that
// timed out never leaves a stale reader behind to swallow the next
// answer; a line typed after a timeout answers the next prompt instead.
func (g *TerminalGate) readLine(ctx context.Context) (string, error) {
	g.once.Do(func() {
		g.lines = make(chan lineResult, 1)
		go g.pump()
	})

	var timeout <-chan time.Time
	if g.Timeout > 0 {
		timer := time.NewTimer(g.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-g.lines:
		if res.err != nil && res.line == "" {
			return "", errors.ConfirmationTimeout(errors.Wrapf(res.err, "confirmation input closed"))
		}
		return res.line, nil
	case <-timeout:
		return "", errors.ConfirmationTimeout(errors.New("no confirmation within %s", g.Timeout))
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *TerminalGate) pump() {
	r := bufio.NewReader(g.In)
	for {
		line, err := r.ReadString('\n')
		g.lines <- lineResult{line, err}
		if err != nil {
			return
		}
	}
}

// editProposal writes the proposed content to a temp file, opens $EDITOR
// on it, and returns the saved result.
func (g *TerminalGate) editProposal(m *tools.Mutation) (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	tmp, err := os.CreateTemp("", "codeflow-edit-*")
	if err != nil {
		return "", errors.Wrapf(err, "creating temp file for edit")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(m.Proposed); err != nil {
		tmp.Close()
		return "", errors.Wrapf(err, "writing proposal to temp file")
	}
	tmp.Close()

	cmd := exec.Command(editor, tmp.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "running editor '%s'", editor)
	}

	revised, err := os.ReadFile(tmp.Name())
	if err != nil {
		return "", errors.Wrapf(err, "reading revised proposal")
	}
	return string(revised), nil
}

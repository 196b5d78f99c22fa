package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codeflow-cli/codeflow/changelog"
	"github.com/codeflow-cli/codeflow/config"
	"github.com/codeflow-cli/codeflow/confirm"
	"github.com/codeflow-cli/codeflow/errors"
	"github.com/codeflow-cli/codeflow/llm"
	"github.com/codeflow-cli/codeflow/session"
	"github.com/codeflow-cli/codeflow/tools"
	"github.com/codeflow-cli/codeflow/workspace"
)

// maxPlanningMessages bounds the history window sent to the model each
// planning cycle, most recent last.
const maxPlanningMessages = 40

// Callbacks lets a surface observe a run without owning the loop.
type Callbacks struct {
	OnAssistantMessage func(message string)
	OnToolCall         func(call session.ToolCall)
	OnToolResult       func(call session.ToolCall, result string)
	OnMutationApplied  func(record changelog.Record)
	OnWarning          func(warning string)
}

// Options wires an orchestrator together at session start.
type Options struct {
	Config    *config.Config
	Session   *session.Session
	Client    llm.Client
	Registry  *tools.Registry
	Gate      confirm.Gate
	Log       *changelog.Log
	FS        workspace.FileSystem
	Index     *workspace.Index
	Logger    *zap.Logger
	Toolset   string
	Callbacks Callbacks
}

// Orchestrator drives one goal at a time through the planning loop:
// plan, dispatch, confirm, apply, and around again until the model is
// done, the budget runs out, or the user aborts. It is the only place
// tool calls are dispatched and the only place mutations are applied.
type Orchestrator struct {
	cfg    *config.Config
	sess   *session.Session
	client llm.Client
	gate   confirm.Gate
	log    *changelog.Log
	fs     workspace.FileSystem
	index  *workspace.Index
	logger *zap.Logger
	cb     Callbacks

	registry *tools.Registry
	active   []tools.Tool

	// cur is the state of the run in flight. The loop is single-threaded
	// per orchestrator, so no locking is needed around it.
	cur *State
}

// New builds an orchestrator, resolving the toolset against the registry
// and wiring the sub-goal runner back into it. The model client is
// wrapped with the configured retry policy here, so every caller gets
// the same transport behavior.
func New(opts Options) (*Orchestrator, error) {
	ts, err := opts.Config.GetToolset(opts.Toolset)
	if err != nil {
		return nil, err
	}
	active, err := opts.Registry.Active(ts)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		cfg:      opts.Config,
		sess:     opts.Session,
		client:   llm.WithRetry(opts.Client, opts.Config.Retry.Attempts, opts.Config.RetryBackoff(), opts.Config.PlanTimeout()),
		gate:     opts.Gate,
		log:      opts.Log,
		fs:       opts.FS,
		index:    opts.Index,
		logger:   logger,
		cb:       opts.Callbacks,
		registry: opts.Registry,
		active:   active,
	}

	for _, t := range active {
		if sg, ok := t.(*tools.SubGoalTool); ok {
			sg.SetRunner(o.runSubGoal)
		}
	}
	return o, nil
}

// Run executes one goal to a terminal state. The returned outcome always
// carries the change records applied so far, whatever the terminal state.
func (o *Orchestrator) Run(ctx context.Context, prompt string) (*Outcome, error) {
	goal := Goal{ID: uuid.New(), Prompt: prompt}
	st := newState(goal, o.cfg.MaxSteps)
	st.Messages = append([]session.Message(nil), o.sess.Messages...)
	return o.run(ctx, st, prompt)
}

// runSubGoal is the entry point the subgoal tool calls. The child run
// inherits the parent's remaining budget and a private conversation; its
// failure comes back as an error for the tool layer to wrap, never as a
// failure of the parent run.
func (o *Orchestrator) runSubGoal(ctx context.Context, prompt string) (string, error) {
	parent := o.cur
	if parent == nil {
		return "", errors.New("no run in flight to decompose")
	}
	remaining := parent.remaining()
	if remaining <= 0 {
		return "", errors.BudgetExceeded(errors.New("no budget left for a sub-goal"))
	}

	child := newState(Goal{ID: uuid.New(), Prompt: prompt, ParentID: parent.Goal.ID}, remaining)
	outcome, err := o.run(ctx, child, prompt)

	// The parent resumes as the current run.
	o.cur = parent
	if err != nil {
		return "", err
	}
	if outcome.Status != StatusSucceeded {
		if outcome.Err != nil {
			return "", outcome.Err
		}
		return "", errors.New("sub-goal ended %s", outcome.Status)
	}
	return outcome.FinalAnswer, nil
}

func (o *Orchestrator) run(ctx context.Context, st *State, prompt string) (*Outcome, error) {
	o.cur = st
	o.appendMessage(st, session.Message{Role: "user", Content: prompt})
	o.logger.Info("run started",
		zap.String("goal_id", st.Goal.ID.String()),
		zap.Int("max_steps", st.MaxSteps))

	var finalAnswer string
	for {
		// Cancellation is cooperative: checked between transitions, never
		// mid-apply, so a mutation is fully applied and logged or not at
		// all.
		if ctx.Err() != nil {
			return o.finish(st, StatusAborted, finalAnswer, ctx.Err()), nil
		}
		if st.StepIndex >= st.MaxSteps {
			err := errors.BudgetExceeded(errors.New("step budget of %d exhausted", st.MaxSteps))
			return o.finish(st, StatusFailed, finalAnswer, err), nil
		}
		st.StepIndex++

		msg, err := o.client.Chat(ctx, o.planningWindow(st), o.active)
		if err != nil {
			if ctx.Err() != nil {
				return o.finish(st, StatusAborted, finalAnswer, ctx.Err()), nil
			}
			// Retries are already exhausted inside the client wrapper.
			return o.finish(st, StatusFailed, finalAnswer, err), nil
		}

		o.appendMessage(st, *msg)
		if msg.Content != "" && o.cb.OnAssistantMessage != nil {
			o.cb.OnAssistantMessage(msg.Content)
		}

		if len(msg.ToolCalls) == 0 {
			// A text answer with no tool calls is the done signal; an
			// empty response counts toward the idle-step limit instead.
			if msg.Content != "" {
				finalAnswer = msg.Content
				return o.finish(st, StatusSucceeded, finalAnswer, nil), nil
			}
			st.idleSteps++
			if st.idleSteps >= o.cfg.IdleSteps {
				return o.finish(st, StatusSucceeded, finalAnswer, nil), nil
			}
			continue
		}
		st.idleSteps = 0

		if err := o.dispatch(ctx, st, msg.ToolCalls); err != nil {
			status := StatusFailed
			if ctx.Err() != nil {
				status = StatusAborted
			}
			return o.finish(st, status, finalAnswer, err), nil
		}
	}
}

func (o *Orchestrator) finish(st *State, status Status, answer string, err error) *Outcome {
	st.Status = status
	o.logger.Info("run finished",
		zap.String("goal_id", st.Goal.ID.String()),
		zap.String("status", string(status)),
		zap.Int("steps", st.StepIndex),
		zap.Error(err))
	return &Outcome{
		Status:      status,
		FinalAnswer: answer,
		StepsUsed:   st.StepIndex,
		Records:     o.log.Records(),
		Err:         err,
	}
}

// appendMessage records a message on the run. The root run also mirrors
// it into the persisted session; child runs keep their conversation
// private.
func (o *Orchestrator) appendMessage(st *State, msg session.Message) {
	st.Messages = append(st.Messages, msg)
	if st.Goal.ParentID == uuid.Nil {
		o.sess.AddMessage(msg)
		if err := o.sess.Save(); err != nil {
			o.warn("failed to save session: %v", err)
		}
	}
}

// planningWindow assembles the bounded context for one planning call: a
// system preamble carrying the goal framing and recent change activity,
// then the most recent messages.
func (o *Orchestrator) planningWindow(st *State) []session.Message {
	var b strings.Builder
	b.WriteString("You are a coding assistant working inside the user's codebase. ")
	b.WriteString("Use the available tools to inspect and modify files; every file change you propose is reviewed before it is applied. ")
	b.WriteString("When the goal is satisfied, answer in plain text without calling tools.")
	if summary := o.log.ActivitySummary(10); summary != "" {
		b.WriteString("\n\n")
		b.WriteString(summary)
	}

	window := []session.Message{{Role: "system", Content: b.String()}}
	return append(window, session.Recent(st.Messages, maxPlanningMessages)...)
}

// dispatch resolves one planning step's tool calls. Independent read-only
// calls run concurrently; everything else runs strictly in proposal
// order, so a later mutation sees the effect of an earlier accepted one.
// The returned error is non-nil only for run-terminating conditions.
func (o *Orchestrator) dispatch(ctx context.Context, st *State, calls []session.ToolCall) error {
	type resolved struct {
		tool tools.Tool
		err  error // validation or unknown-tool error, pre-dispatch
	}
	res := make([]resolved, len(calls))

	for i := range calls {
		calls[i].StepIndex = st.StepIndex
		call := calls[i]
		if o.cb.OnToolCall != nil {
			o.cb.OnToolCall(call)
		}

		t, ok := o.registry.Get(call.Name)
		if !ok {
			res[i].err = errors.InvalidToolCall(tools.UnknownToolError{Name: call.Name})
			st.invalidCalls[call.Name]++
			continue
		}
		if err := t.Validate(call.Args); err != nil {
			res[i].err = errors.InvalidToolCall(err)
			st.invalidCalls[call.Name]++
			continue
		}
		res[i].tool = t
		delete(st.invalidCalls, call.Name)
	}

	// Repeated bad calls to the same tool across the run mean the model
	// is stuck; give up instead of burning the rest of the budget. A
	// successful validation of the tool resets its count above.
	for name, n := range st.invalidCalls {
		if n > o.cfg.ValidationRetries {
			return errors.InvalidToolCall(errors.New("tool '%s' failed validation %d times", name, n))
		}
	}

	// Read-only calls are independent of each other and of the snapshot,
	// so they run concurrently. Outputs land by index to keep proposal
	// order in the history.
	outputs := make([]tools.Result, len(calls))
	execErrs := make([]error, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i := range calls {
		if res[i].tool == nil || !isReadOnly(res[i].tool.Kind()) {
			continue
		}
		i := i
		g.Go(func() error {
			outputs[i], execErrs[i] = res[i].tool.Execute(gctx, calls[i].Args)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, call := range calls {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch {
		case res[i].err != nil:
			o.feedResult(st, call, "", res[i].err)
		case isReadOnly(res[i].tool.Kind()):
			execErr := execErrs[i]
			if execErr != nil {
				execErr = errors.ToolExecution(execErr)
			}
			o.feedResult(st, call, outputs[i].Output, execErr)
		default:
			result, err := res[i].tool.Execute(ctx, call.Args)
			if err != nil {
				o.feedResult(st, call, "", errors.ToolExecution(err))
				continue
			}
			if result.Mutation == nil {
				o.feedResult(st, call, result.Output, nil)
				continue
			}
			if err := o.resolveMutation(ctx, st, call, result.Mutation); err != nil {
				return err
			}
		}
	}
	return nil
}

func isReadOnly(k tools.Kind) bool {
	return k == tools.KindRead || k == tools.KindSearch || k == tools.KindAnalyze
}

// resolveMutation routes one pending mutation through the confirmation
// gate and, on accept, applies it. Review and Edit loop here without
// consuming step budget; only a terminal Accept or Reject lets the run
// advance. The returned error is non-nil only for cancellation.
func (o *Orchestrator) resolveMutation(ctx context.Context, st *State, call session.ToolCall, m *tools.Mutation) error {
	for {
		resp, err := o.gate.Decide(ctx, m)
		if err != nil {
			if errors.IsKind(err, errors.KindConfirmationTimeout) {
				// Silence is never consent.
				o.warn("confirmation timed out for %s; rejecting", m.Describe())
				o.feedResult(st, call, fmt.Sprintf("mutation rejected (confirmation timeout): %s", m.Describe()), nil)
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.feedResult(st, call, "", errors.ToolExecution(err))
			return nil
		}

		switch resp.Decision {
		case confirm.DecisionAccept:
			o.apply(st, call, m)
			return nil
		case confirm.DecisionReject:
			o.feedResult(st, call, fmt.Sprintf("mutation rejected by user: %s", m.Describe()), nil)
			return nil
		case confirm.DecisionEdit:
			// A revised body goes back through the diff and the gate,
			// even when it ends up identical to the last proposal.
			m.Recompute(resp.Revised)
		case confirm.DecisionReview:
			// Re-render and ask again.
		default:
			o.feedResult(st, call, fmt.Sprintf("mutation rejected (unknown decision %q)", resp.Decision), nil)
			return nil
		}
	}
}

// apply persists an accepted mutation. Failures here are recoverable:
// the error feeds back to the model and the run continues. A change
// record is appended exactly when the write succeeded.
func (o *Orchestrator) apply(st *State, call session.ToolCall, m *tools.Mutation) {
	var err error
	switch m.Kind {
	case tools.MutationDelete:
		err = o.fs.Delete(m.Path)
	case tools.MutationEdit:
		// The file may have vanished between proposal and accept.
		if !o.fs.Exists(m.Path) {
			err = errors.Wrapf(errors.NotFound, "applying edit to '%s'", m.Path)
		} else {
			err = o.fs.Write(m.Path, m.Proposed)
		}
	default:
		err = o.fs.Write(m.Path, m.Proposed)
	}
	if err != nil {
		o.feedResult(st, call, "", errors.ToolExecution(err))
		return
	}

	rec := changelog.Record{
		GoalID:    st.Goal.ID,
		StepIndex: st.StepIndex,
		Path:      m.Path,
		Kind:      m.Kind,
		Summary:   m.Diff.Summary(),
	}
	if err := o.log.Append(rec); err != nil {
		o.warn("change applied but handbook append failed: %v", err)
	}
	if o.cb.OnMutationApplied != nil {
		o.cb.OnMutationApplied(rec)
	}
	if err := o.index.Rescan(); err != nil {
		o.warn("workspace rescan after apply failed: %v", err)
	}

	o.logger.Info("mutation applied",
		zap.String("path", m.Path),
		zap.String("kind", string(m.Kind)),
		zap.String("summary", m.Diff.Summary()))
	o.feedResult(st, call, fmt.Sprintf("applied: %s", m.Describe()), nil)
}

// feedResult appends a tool result to the history and the conversation so
// the next planning cycle sees it. Errors travel the same road as data:
// the model adapts, the run continues.
func (o *Orchestrator) feedResult(st *State, call session.ToolCall, output string, err error) {
	st.record(call, output, err)

	content := output
	if err != nil {
		content = fmt.Sprintf("Error: %v", err)
		o.logger.Debug("tool call failed",
			zap.String("tool", call.Name),
			zap.Error(err))
	}
	if o.cb.OnToolResult != nil {
		o.cb.OnToolResult(call, content)
	}
	o.appendMessage(st, session.Message{
		Role:      "tool",
		Content:   content,
		ToolCalls: []session.ToolCall{call},
	})
}

func (o *Orchestrator) warn(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	o.logger.Warn(msg)
	if o.cb.OnWarning != nil {
		o.cb.OnWarning(msg)
	}
}

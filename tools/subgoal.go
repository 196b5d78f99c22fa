package tools

import (
	"context"

	"github.com/codeflow-cli/codeflow/errors"
)

// SubGoalRunner executes a child goal and returns its final answer. The
// orchestrator injects it at startup; the indirection keeps this package
// free of a dependency on the agent.
type SubGoalRunner func(ctx context.Context, goal string) (string, error)

// SubGoalTool lets the model decompose work into a child goal that runs
// with the parent's remaining step budget. A failing child surfaces as a
// single tool error, never as a failure of the parent run.
type SubGoalTool struct {
	runner SubGoalRunner
}

func (t *SubGoalTool) Name() string { return "subgoal" }
func (t *SubGoalTool) Kind() Kind   { return KindExec }
func (t *SubGoalTool) Description() string {
	return "Runs a focused sub-goal with the remaining step budget and returns its result. Args: goal (string)."
}

// SetRunner wires the orchestrator's child-run entry point.
func (t *SubGoalTool) SetRunner(r SubGoalRunner) { t.runner = r }

func (t *SubGoalTool) Validate(args map[string]interface{}) error {
	goal, ok := GetString(args, "goal")
	if !ok || goal == "" {
		return ValidationError{Field: "goal", Message: "is required"}
	}
	return nil
}

func (t *SubGoalTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	if t.runner == nil {
		return Result{}, errors.New("subgoal execution is not available in this context")
	}
	goal, _ := GetString(args, "goal")
	answer, err := t.runner(ctx, goal)
	if err != nil {
		return Result{}, errors.ToolExecution(errors.Recursion(err))
	}
	return Result{Output: answer}, nil
}

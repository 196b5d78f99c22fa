package agent

import (
	"github.com/google/uuid"

	"github.com/codeflow-cli/codeflow/changelog"
	"github.com/codeflow-cli/codeflow/session"
)

// Status is the terminal or in-flight condition of one goal run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// Goal is one user request driving one run. A decomposed sub-goal holds
// its parent's ID; the parent never holds a handle into the child, which
// keeps the reference graph acyclic.
type Goal struct {
	ID       uuid.UUID
	Prompt   string
	ParentID uuid.UUID
}

// StepRecord pairs one dispatched tool call with its outcome.
type StepRecord struct {
	Call   session.ToolCall
	Output string
	Err    string
}

// State is owned exclusively by one run; nothing here is shared across
// concurrent goals. Messages is the run's own conversation; the root run
// mirrors it into the persisted session, children keep theirs private.
type State struct {
	Goal      Goal
	StepIndex int
	MaxSteps  int
	History   []StepRecord
	Status    Status
	Messages  []session.Message

	idleSteps int

	// invalidCalls tallies validation failures per tool name across the
	// run; a successful validation of the same tool resets its count.
	invalidCalls map[string]int
}

func newState(goal Goal, maxSteps int) *State {
	return &State{
		Goal:         goal,
		MaxSteps:     maxSteps,
		Status:       StatusRunning,
		invalidCalls: make(map[string]int),
	}
}

// remaining is the budget a child run inherits.
func (s *State) remaining() int {
	return s.MaxSteps - s.StepIndex
}

func (s *State) record(call session.ToolCall, output string, err error) {
	rec := StepRecord{Call: call, Output: output}
	if err != nil {
		rec.Err = err.Error()
	}
	s.History = append(s.History, rec)
}

// Outcome is what a finished run reports. Records always lists the
// changes applied so far: a failed run never hides already-confirmed
// mutations.
type Outcome struct {
	Status      Status
	FinalAnswer string
	StepsUsed   int
	Records     []changelog.Record
	Err         error
}

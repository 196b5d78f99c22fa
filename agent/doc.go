// Package agent contains the orchestrator that drives a goal through the
// planning loop shared by every interaction surface.
//
// # Architecture
//
// The agent package is organized into three main components:
//
//   - Core orchestrator (this package): the state machine that plans,
//     dispatches tool calls, routes mutations through review, and applies
//     accepted changes
//   - Terminal subpackage (agent/terminal): the interactive CLI surface
//   - ACP subpackage (agent/acp): the Agent Client Protocol server for
//     IDE integration
//
// # The planning loop
//
// One run moves through Planning, Dispatching, AwaitingConfirmation and
// Applying until it reaches a terminal state:
//
//   - Planning sends the goal plus a bounded window of recent history to
//     the model client and receives either a final answer or tool calls.
//   - Dispatching validates each call against the registry; read-only
//     calls in the same step run concurrently, everything else runs
//     strictly in proposal order.
//   - Mutating tools never write. They return a pending mutation whose
//     diff goes to the confirmation gate; only an accept reaches disk,
//     and exactly then a change record is appended.
//   - The run completes when the model answers without tool calls, fails
//     when the step budget or the transport retry policy is exhausted,
//     and aborts on user cancellation. Every terminal state reports the
//     changes applied so far.
//
// # Usage
//
//	orch, err := agent.New(agent.Options{
//	    Config:   cfg,
//	    Session:  sess,
//	    Client:   client,
//	    Registry: registry,
//	    Gate:     gate,
//	    Log:      log,
//	    FS:       fs,
//	    Index:    index,
//	})
//	if err != nil {
//	    // handle error
//	}
//	outcome, err := orch.Run(ctx, "add input validation to server.go")
//
// # Callbacks
//
// The Callbacks structure lets each surface observe assistant messages,
// tool calls and results, applied mutations, and warnings without owning
// the loop. The terminal prints them; the ACP server turns them into
// JSON-RPC session updates.
//
// # Sub-goals
//
// A subgoal tool call runs a child orchestrator state with the parent's
// remaining step budget. The child holds its parent's ID and a private
// conversation; a failing child surfaces to the parent as a single error
// tool result.
package agent

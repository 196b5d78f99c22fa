// Package terminal implements the interactive command-line surface.
//
// The terminal reads goals and slash commands from the user, hands goals
// to the orchestrator, and prints assistant messages, tool activity
// (subject to the configured verbosity) and applied changes as they
// happen. Confirmation prompts are not handled here: the orchestrator
// blocks on its confirmation gate, which for CLI runs is a
// confirm.TerminalGate sharing the same stdin.
//
// # Commands
//
//   - /history  show recently applied changes
//   - /files    list the workspace snapshot
//   - /rescan   rebuild the workspace snapshot
//   - /help     show the command list
//   - /quit     exit the session
//
// Every run's termination is reported along with the change records
// applied so far, including failed and aborted runs.
package terminal

package tools

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/codeflow-cli/codeflow/errors"
)

// ExecuteCommandTool runs an allowlisted OS command. Command execution is
// an external collaborator: nothing it does goes through mutation review,
// which is why the allowlist gates it instead.
type ExecuteCommandTool struct {
	AllowedCommands []string
}

func (t *ExecuteCommandTool) Name() string { return "execute_command" }
func (t *ExecuteCommandTool) Kind() Kind   { return KindExec }

func (t *ExecuteCommandTool) Description() string {
	if len(t.AllowedCommands) == 0 {
		return "Executes a shell command. No commands are currently allowed. Args: command (string)."
	}
	allowedList := "Allowed command patterns:\n"
	for _, cmd := range t.AllowedCommands {
		allowedList += fmt.Sprintf("- %s\n", cmd)
	}
	return fmt.Sprintf("Executes a shell command. Args: command (string).\n%s", allowedList)
}

func (t *ExecuteCommandTool) Validate(args map[string]interface{}) error {
	command, ok := GetString(args, "command")
	if !ok || strings.TrimSpace(command) == "" {
		return ValidationError{Field: "command", Message: "is required"}
	}
	return nil
}

func (t *ExecuteCommandTool) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	command, _ := GetString(args, "command")

	allowed, err := isCommandAllowed(command, t.AllowedCommands)
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		return Result{}, errors.New("command '%s' is not in the list of allowed commands", command)
	}

	parts := strings.Fields(command)
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, errors.Wrapf(err, "command execution failed. Output:\n%s", string(output))
	}
	return Result{Output: fmt.Sprintf("Command executed successfully. Output:\n%s", string(output))}, nil
}

// isCommandAllowed checks a command against the allowlist, where each
// entry is a regular expression. Invalid patterns fall back to exact
// string comparison.
func isCommandAllowed(command string, allowed []string) (bool, error) {
	if len(strings.Fields(command)) == 0 {
		return false, nil
	}
	for _, pattern := range allowed {
		re, err := regexp.Compile(pattern)
		if err != nil {
			if command == pattern {
				return true, nil
			}
			continue
		}
		if re.MatchString(command) {
			return true, nil
		}
	}
	return false, nil
}

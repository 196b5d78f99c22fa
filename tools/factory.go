package tools

import (
	"context"
	"fmt"

	"github.com/codeflow-cli/codeflow/config"
	"github.com/codeflow-cli/codeflow/errors"
	"github.com/codeflow-cli/codeflow/tools/mcp"
	"github.com/codeflow-cli/codeflow/workspace"
)

// MCPToolAdapter exposes one MCP server tool through the registry. MCP
// tools are external collaborators: their effects happen outside the
// reviewed workspace, so they carry no mutation and argument validation
// is left to the server.
type MCPToolAdapter struct {
	tool *mcp.Tool
}

func (a *MCPToolAdapter) Name() string        { return a.tool.Name() }
func (a *MCPToolAdapter) Description() string { return a.tool.Description() }
func (a *MCPToolAdapter) Kind() Kind          { return KindExec }

func (a *MCPToolAdapter) Validate(args map[string]interface{}) error {
	return nil
}

func (a *MCPToolAdapter) Execute(ctx context.Context, args map[string]interface{}) (Result, error) {
	out, err := a.tool.Call(ctx, args)
	if err != nil {
		return Result{}, errors.ToolExecution(err)
	}
	return Result{Output: out}, nil
}

// NewDefaultRegistry builds the closed dispatch table: the reviewed file
// tools, the read-only inspection tools, command execution, sub-goal
// decomposition, and any tools discovered from configured MCP servers.
func NewDefaultRegistry(cfg *config.Config, fs workspace.FileSystem, index *workspace.Index) (*Registry, []*mcp.Client, error) {
	r := NewRegistry()

	builtin := []Tool{
		&ReadFileTool{FS: fs},
		&CreateFileTool{FS: fs},
		&EditFileTool{FS: fs},
		&DeleteFileTool{FS: fs},
		&SearchTool{Index: index},
		&AnalyzeTool{FS: fs},
		&ListFilesTool{Index: index},
		&ExecuteCommandTool{AllowedCommands: cfg.AllowedCommands},
		&SubGoalTool{},
	}
	for _, t := range builtin {
		if err := r.Register(t); err != nil {
			return nil, nil, err
		}
	}

	var clients []*mcp.Client
	for _, server := range cfg.AdditionalMCPServers {
		client, err := mcp.NewClient(server.Name, server.Command, server.Args)
		if err != nil {
			// A broken MCP server should not take the whole agent down.
			fmt.Printf("Warning: skipping MCP server '%s': %v\n", server.Name, err)
			continue
		}
		clients = append(clients, client)
		for _, t := range client.Tools() {
			if err := r.Register(&MCPToolAdapter{tool: t}); err != nil {
				return nil, clients, errors.Wrapf(err, "registering MCP tool from '%s'", server.Name)
			}
		}
	}

	return r, clients, nil
}

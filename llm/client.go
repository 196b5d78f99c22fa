// Package llm abstracts the model providers behind a single Chat
// interface. Adapters convert between the internal session.Message shape
// and each provider's wire format; none of them execute tools. Tool
// calls come back to the orchestrator, which is the only place dispatch
// and review happen.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeflow-cli/codeflow/errors"
	"github.com/codeflow-cli/codeflow/session"
	"github.com/codeflow-cli/codeflow/tools"
)

// Client is the interface for interacting with a Large Language Model.
type Client interface {
	Chat(ctx context.Context, messages []session.Message, availableTools []tools.Tool) (*session.Message, error)
}

// New builds the provider adapter named by provider. Supported values:
// openai, anthropic, gemini, bedrock, mock.
func New(ctx context.Context, provider, model string) (Client, error) {
	switch strings.ToLower(provider) {
	case "openai":
		return NewOpenAIClient(ctx, model)
	case "anthropic":
		return NewAnthropicClient(ctx, model)
	case "gemini":
		return NewGeminiClient(ctx, model)
	case "bedrock":
		return NewBedrockClient(ctx, model)
	case "mock":
		return &MockClient{}, nil
	default:
		return nil, errors.New("unknown LLM provider '%s'", provider)
	}
}

// MockClient is a scripted client for tests and offline runs. Responses
// are played back in order; once the script is exhausted it answers with
// a plain text echo, which reads as an idle step to the orchestrator.
type MockClient struct {
	Script []*session.Message
	next   int

	// Calls records the message histories Chat received, for assertions.
	Calls [][]session.Message
}

func (m *MockClient) Chat(ctx context.Context, messages []session.Message, availableTools []tools.Tool) (*session.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Transport(err)
	}
	m.Calls = append(m.Calls, append([]session.Message(nil), messages...))
	if m.next < len(m.Script) {
		msg := m.Script[m.next]
		m.next++
		return msg, nil
	}
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return &session.Message{
		Role:    "assistant",
		Content: fmt.Sprintf("Mock response to: %s", last),
	}, nil
}

package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codeflow-cli/codeflow/agent"
	"github.com/codeflow-cli/codeflow/changelog"
	"github.com/codeflow-cli/codeflow/session"
)

// OrchestratorFactory builds a run-ready orchestrator bound to a session
// and the server's notification callbacks. ACP runs are non-interactive,
// so the caller is expected to wire a policy gate, never a blocking one.
type OrchestratorFactory func(sess *session.Session, cb agent.Callbacks) (*agent.Orchestrator, error)

// Run serves the Agent Client Protocol over newline-delimited JSON-RPC.
// Supported methods: initialize, session/new, session/load,
// session/prompt. Nothing but JSON-RPC messages is ever written to out;
// diagnostics go to the logger.
func Run(ctx context.Context, factory OrchestratorFactory, in *bufio.Reader, out *bufio.Writer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{
		ctx:      ctx,
		factory:  factory,
		sessions: make(map[string]*session.Session),
		in:       in,
		out:      out,
		logger:   logger,
	}

	for {
		line, _, err := s.in.ReadLine()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("acp: read error: %w", err)
		}
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("acp: parse error", zap.Error(err))
			_ = s.writeError(nil, -32700, "Parse error", nil)
			continue
		}

		s.logger.Debug("acp: request", zap.String("method", req.Method))
		switch req.Method {
		case "initialize":
			s.handleInitialize(&req)
		case "session/new":
			s.handleSessionNew(&req)
		case "session/load":
			s.handleSessionLoad(&req)
		case "session/prompt":
			s.handleSessionPrompt(&req)
		default:
			_ = s.writeError(req.ID, -32601, "Method not found", nil)
		}
	}
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type server struct {
	ctx     context.Context
	factory OrchestratorFactory

	sessionsMu sync.Mutex
	sessions   map[string]*session.Session
	sessionSeq int64

	in      *bufio.Reader
	out     *bufio.Writer
	writeMu sync.Mutex
	logger  *zap.Logger
}

func (s *server) write(obj any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("acp: serializing message: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		return err
	}
	// Messages are newline-delimited.
	if _, err := s.out.WriteString("\n"); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *server) writeOK(id any, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("acp: marshalling result", zap.Error(err))
		return err
	}
	return s.write(response{JSONRPC: "2.0", ID: id, Result: raw})
}

func (s *server) writeError(id any, code int, msg string, data any) error {
	return s.write(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg, Data: data}})
}

func (s *server) notify(method string, params any) error {
	return s.write(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

func (s *server) handleInitialize(req *request) {
	_ = s.writeOK(req.ID, map[string]any{
		"protocolVersion": 1,
		"agentCapabilities": map[string]any{
			"loadSession": true,
			"promptCapabilities": map[string]bool{
				"audio":           false,
				"embeddedContext": false,
				"image":           false,
			},
		},
		"authMethods": []any{},
	})
}

func (s *server) handleSessionNew(req *request) {
	sid := s.nextSessionID()
	sess, err := session.New(sid)
	if err != nil {
		_ = s.writeError(req.ID, -32603, "Internal error", fmt.Sprintf("failed to create session: %v", err))
		return
	}
	sess.Acp = true
	if err := sess.Save(); err != nil {
		_ = s.writeError(req.ID, -32603, "Internal error", fmt.Sprintf("failed to persist session: %v", err))
		return
	}

	s.sessionsMu.Lock()
	s.sessions[sid] = sess
	s.sessionsMu.Unlock()

	_ = s.writeOK(req.ID, map[string]any{"sessionId": sid})
}

func (s *server) handleSessionLoad(req *request) {
	var p struct {
		SessionID string `json:"sessionId"`
	}
	if err := reparse(req.Params, &p); err != nil {
		_ = s.writeError(req.ID, -32603, "Internal error", err.Error())
		return
	}

	sess, err := session.Load(p.SessionID)
	if err != nil {
		_ = s.writeError(req.ID, -32602, "Invalid params", fmt.Sprintf("session not found: %v", err))
		return
	}

	s.sessionsMu.Lock()
	s.sessions[p.SessionID] = sess
	s.sessionsMu.Unlock()

	// Replay the conversation so the client can render the history.
	for _, msg := range sess.Messages {
		switch msg.Role {
		case "user":
			_ = s.sendMessageChunk(p.SessionID, "user_message_chunk", msg.Content)
		case "assistant":
			if msg.Content != "" {
				_ = s.sendMessageChunk(p.SessionID, "agent_message_chunk", msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				_ = s.sendToolCall(p.SessionID, tc)
			}
		case "tool":
			if len(msg.ToolCalls) > 0 {
				_ = s.sendToolResult(p.SessionID, msg.ToolCalls[0].ToolCallID, msg.Content)
			}
		}
	}
	_ = s.writeOK(req.ID, nil)
}

// contentBlock is the subset of ACP prompt content this server handles:
// plain text.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (s *server) handleSessionPrompt(req *request) {
	var p struct {
		SessionID string         `json:"sessionId"`
		Prompt    []contentBlock `json:"prompt"`
	}
	if err := reparse(req.Params, &p); err != nil {
		_ = s.writeError(req.ID, -32603, "Internal error", err.Error())
		return
	}

	s.sessionsMu.Lock()
	sess, ok := s.sessions[p.SessionID]
	s.sessionsMu.Unlock()
	if !ok {
		_ = s.writeError(req.ID, -32602, "Invalid params", "unknown sessionId")
		return
	}

	userText := extractText(p.Prompt)
	cb := agent.Callbacks{
		OnAssistantMessage: func(message string) {
			_ = s.sendMessageChunk(p.SessionID, "agent_message_chunk", message)
		},
		OnToolCall: func(call session.ToolCall) {
			_ = s.sendToolCall(p.SessionID, call)
		},
		OnToolResult: func(call session.ToolCall, result string) {
			_ = s.sendToolResult(p.SessionID, call.ToolCallID, result)
		},
		OnMutationApplied: func(rec changelog.Record) {
			_ = s.sendMutationApplied(p.SessionID, rec)
		},
		OnWarning: func(warning string) {
			s.logger.Warn("acp: run warning", zap.String("warning", warning))
		},
	}

	orch, err := s.factory(sess, cb)
	if err != nil {
		_ = s.writeError(req.ID, -32603, "Internal error", fmt.Sprintf("building orchestrator: %v", err))
		return
	}

	outcome, err := orch.Run(s.ctx, userText)
	if err != nil {
		_ = s.writeError(req.ID, -32603, "Internal error", fmt.Sprintf("run failed: %v", err))
		return
	}

	stopReason := "end_turn"
	switch outcome.Status {
	case agent.StatusAborted:
		stopReason = "cancelled"
	case agent.StatusFailed:
		stopReason = "refusal"
	}
	_ = s.writeOK(req.ID, map[string]any{"stopReason": stopReason})
}

func (s *server) sendMessageChunk(sessionID, kind, text string) error {
	return s.notify("session/update", map[string]any{
		"sessionId": sessionID,
		"update": map[string]any{
			"sessionUpdate": kind,
			"content": map[string]any{
				"type": "text",
				"text": text,
			},
		},
	})
}

func (s *server) sendToolCall(sessionID string, call session.ToolCall) error {
	return s.notify("session/update", map[string]any{
		"sessionId": sessionID,
		"update": map[string]any{
			"sessionUpdate": "tool_call",
			"toolCall": map[string]any{
				"id":   call.ToolCallID,
				"name": call.Name,
				"args": call.Args,
			},
		},
	})
}

func (s *server) sendToolResult(sessionID, toolCallID, result string) error {
	return s.notify("session/update", map[string]any{
		"sessionId": sessionID,
		"update": map[string]any{
			"sessionUpdate": "tool_result",
			"toolResult": map[string]any{
				"toolCallId": toolCallID,
				"result":     result,
			},
		},
	})
}

func (s *server) sendMutationApplied(sessionID string, rec changelog.Record) error {
	return s.notify("session/update", map[string]any{
		"sessionId": sessionID,
		"update": map[string]any{
			"sessionUpdate": "mutation_applied",
			"mutation": map[string]any{
				"path":    rec.Path,
				"kind":    string(rec.Kind),
				"summary": rec.Summary,
				"step":    rec.StepIndex,
			},
		},
	})
}

func (s *server) nextSessionID() string {
	s.sessionSeq++
	return fmt.Sprintf("sess_%d_%d", time.Now().UnixNano(), s.sessionSeq)
}

// reparse round-trips loosely-typed params into a concrete shape.
func reparse(params any, dst any) error {
	b, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func extractText(blocks []contentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

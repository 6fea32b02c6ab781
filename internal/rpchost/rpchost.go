// Package rpchost implements the line-delimited JSON-RPC 2.0 stdio
// server that exposes broker operations as named tools. It translates
// protocol requests into broker client calls and wraps results in the
// tools/call content shape. The publish tool checks the sender
// identity and the message type itself before calling the broker;
// backend errors are never constructed here, only rendered as the
// broker returns them.
package rpchost

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/jb-8200/asdlc-coord/internal/broker"
	"github.com/jb-8200/asdlc-coord/internal/config"
)

const protocolVersion = "2025-03-26"
const serverName = "coord-host"

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response. Only one of Result/Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

// ErrNoHandler, when returned by a tool, is reported as method not
// found (-32601) rather than as an internal error. Tool names with no
// registered handler get -32601 directly.
var ErrNoHandler = errors.New("no handler registered for tool")

// Tool is a single named handler exposed via tools/call.
type Tool func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)

// Host is the JSON-RPC stdio server. One Host per process; it is
// constructed with an already-identity-resolved broker client and
// owns no other mutable state beyond the tool registry.
type Host struct {
	client *broker.Client
	cfg    config.Config
	self   string
	tools  map[string]Tool
	log    zerolog.Logger
}

// New constructs a Host bound to client, acting as identity self.
func New(client *broker.Client, cfg config.Config, self string, log zerolog.Logger) *Host {
	h := &Host{client: client, cfg: cfg, self: self, tools: map[string]Tool{}, log: log}
	h.registerTools()
	return h
}

// Register adds or replaces a named tool handler.
func (h *Host) Register(name string, t Tool) {
	h.tools[name] = t
}

// Serve reads one line at a time from r, dispatches, and writes one
// response line to w per non-null response. It returns nil on EOF.
func (h *Host) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	writer := bufio.NewWriter(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytesTrimSpace(line)) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			h.log.Warn().Err(err).Msg("skipping malformed JSON-RPC line")
			continue
		}

		resp := h.dispatch(ctx, req)
		if resp == nil {
			continue
		}
		data, err := json.Marshal(resp)
		if err != nil {
			h.log.Error().Err(err).Msg("encoding JSON-RPC response")
			continue
		}
		if _, err := writer.Write(data); err != nil {
			return err
		}
		if _, err := writer.WriteString("\n"); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func bytesTrimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }

func (h *Host) dispatch(ctx context.Context, req Request) *Response {
	switch req.Method {
	case "initialize":
		return h.reply(req.ID, map[string]interface{}{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]string{"name": serverName, "version": "1.0.0"},
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		return h.reply(req.ID, map[string]interface{}{"tools": h.toolSchemas()})
	case "tools/call":
		return h.handleToolsCall(ctx, req)
	default:
		return h.errorReply(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

type toolsCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (h *Host) handleToolsCall(ctx context.Context, req Request) *Response {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return h.errorReply(req.ID, codeInternalError, "invalid tools/call params: "+err.Error())
	}

	tool, ok := h.tools[params.Name]
	if !ok {
		return h.errorReply(req.ID, codeMethodNotFound, fmt.Sprintf("unknown tool: %s", params.Name))
	}

	result, err := tool(ctx, params.Arguments)
	if err != nil {
		if errors.Is(err, ErrNoHandler) {
			return h.errorReply(req.ID, codeMethodNotFound, err.Error())
		}
		return h.errorReply(req.ID, codeInternalError, err.Error())
	}

	text, err := json.Marshal(result)
	if err != nil {
		return h.errorReply(req.ID, codeInternalError, "encoding tool result: "+err.Error())
	}
	return h.reply(req.ID, map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": string(text)},
		},
	})
}

func (h *Host) reply(id json.RawMessage, result interface{}) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

func (h *Host) errorReply(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
}

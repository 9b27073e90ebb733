package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Coykto/debug-mcp/gateway"
	"github.com/Coykto/debug-mcp/logger"
	"github.com/Coykto/debug-mcp/mcp"
	"github.com/Coykto/debug-mcp/mcp/jsonrpc"
)

// LegacyProtocolVersion is the newest pre-2025-06 revision still accepted
// from older clients.
const LegacyProtocolVersion = "2025-03-26"

var supportedProtocolVersions = map[string]struct{}{
	"2024-11-05":          {},
	LegacyProtocolVersion: {},
	mcp.ProtocolVersion:   {},
}

// DispatchStandardMethod handles the non-initialize JSON-RPC methods shared
// by the stdio and streamable HTTP transports. It returns nil for
// notifications that require no response.
func DispatchStandardMethod(ctx context.Context, msg jsonrpc.Request, gw *gateway.Gateway) any {
	switch msg.Method {
	case "tools/list":
		return BuildToolsListResponse(msg)
	case "tools/call":
		return BuildToolCallResponse(ctx, msg, gw)
	case "ping":
		return BuildPingResponse(msg)
	case "notifications/cancelled", "notifications/progress":
		if msg.ID != nil {
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidRequest, "Invalid request", nil)
		}
		return nil
	default:
		if msg.ID != nil {
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrMethodNotFound, "Method not found", map[string]any{
				"method": msg.Method,
			})
		}
		return nil
	}
}

// BuildToolsListResponse advertises the single gateway tool. The cursor
// handling exists so clients that paginate unconditionally still work.
func BuildToolsListResponse(msg jsonrpc.Request) *jsonrpc.Response {
	tools := []mcp.Tool{gateway.Definition()}

	start, err := ParseCursor(msg.Params, len(tools))
	if err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidParams, err.Error(), nil)
	}

	return jsonrpc.NewResponse(msg.ID, map[string]any{
		"tools": tools[start:],
	})
}

// BuildToolCallResponse routes tools/call through the gateway. Every routing
// or execution failure comes back as a structured payload inside a successful
// tool result; JSON-RPC errors are reserved for malformed requests and
// unknown tool names.
func BuildToolCallResponse(ctx context.Context, msg jsonrpc.Request, gw *gateway.Gateway) *jsonrpc.Response {
	var toolCall struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(msg.Params, &toolCall); err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidParams, "Invalid tool call payload", nil)
	}

	toolName := strings.TrimSpace(toolCall.Name)
	if toolName == "" {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidParams, "Tool name is required", nil)
	}
	if toolName != gateway.ToolName {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrInvalidParams, fmt.Sprintf("Unknown tool: %s", toolName), nil)
	}

	arguments := toolCall.Arguments
	if arguments == nil {
		arguments = map[string]any{}
	}

	envelope := gw.CallRaw(ctx, arguments)
	return jsonrpc.NewResponse(msg.ID, BuildToolResult(envelope))
}

// BuildToolResult wraps a gateway envelope as an MCP tool result. The
// envelope's own error flag drives isError so clients see routing failures
// without having to parse the payload.
func BuildToolResult(envelope map[string]any) map[string]any {
	isError, _ := envelope["error"].(bool)
	return map[string]any{
		"content":           ToolContentFromResult(envelope),
		"structuredContent": envelope,
		"isError":           isError,
	}
}

// ToolContentFromResult serializes a result as the single text content block
// MCP clients expect.
func ToolContentFromResult(result any) []map[string]any {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		logger.Warn("Failed to marshal tool result", "error", err)
		return []map[string]any{{"type": "text", "text": "tool call completed"}}
	}
	return []map[string]any{{"type": "text", "text": string(resultJSON)}}
}

func BuildPingResponse(msg jsonrpc.Request) *jsonrpc.Response {
	return jsonrpc.NewResponse(msg.ID, map[string]any{})
}

// BuildInitializeResult negotiates the protocol version and describes the
// server. sessionID is included when the transport assigned one.
func BuildInitializeResult(msg jsonrpc.Request, sessionID string) (*jsonrpc.Response, string) {
	negotiated := NegotiateProtocolVersion(msg.Params)
	result := map[string]any{
		"protocolVersion": negotiated,
		"capabilities":    ServerCapabilities(),
		"serverInfo": map[string]any{
			"name":    mcp.ServerName,
			"version": mcp.ServerVersion,
		},
	}
	if sessionID != "" {
		result["sessionId"] = sessionID
	}
	return jsonrpc.NewResponse(msg.ID, result), negotiated
}

func ServerCapabilities() map[string]any {
	return map[string]any{
		"tools": map[string]any{},
	}
}

// IsSupportedProtocolVersion reports whether a client-requested protocol
// revision can be honored.
func IsSupportedProtocolVersion(version string) bool {
	if version == "" {
		return false
	}
	_, ok := supportedProtocolVersions[version]
	return ok
}

// NegotiateProtocolVersion picks the client's requested revision when
// supported, otherwise the server's preferred one.
func NegotiateProtocolVersion(paramsRaw json.RawMessage) string {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return mcp.ProtocolVersion
	}
	if IsSupportedProtocolVersion(params.ProtocolVersion) {
		return params.ProtocolVersion
	}
	return mcp.ProtocolVersion
}

// ParseCursor extracts the pagination offset from a list request.
func ParseCursor(paramsRaw json.RawMessage, total int) (int, error) {
	if len(paramsRaw) == 0 {
		return 0, nil
	}

	var params struct {
		Cursor string `json:"cursor"`
	}
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return 0, fmt.Errorf("invalid params payload")
	}
	if strings.TrimSpace(params.Cursor) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(params.Cursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor value")
	}
	if offset < 0 || offset > total {
		return 0, fmt.Errorf("invalid cursor value")
	}
	return offset, nil
}

// ParseJSONRPCFrame validates and parses one JSON-RPC message frame. Both
// stdio and streamable HTTP require a single message per frame; batches are
// rejected outright. The returned acceptedOneWay flag reports whether the
// frame carried a well-formed client response that needs no reply.
func ParseJSONRPCFrame(frame []byte) (requests []jsonrpc.Request, prebuiltResponses []any, acceptedOneWay bool, err error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return nil, nil, false, fmt.Errorf("empty message")
	}

	if trimmed[0] == '[' {
		return nil, []any{jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid request", nil)}, false, nil
	}

	var envelope map[string]json.RawMessage
	if unmarshalErr := json.Unmarshal(trimmed, &envelope); unmarshalErr != nil {
		return nil, []any{jsonrpc.NewErrorResponse(nil, jsonrpc.ErrParseError, "Parse error", nil)}, false, nil
	}

	requestID, hasID, validID := parseIDFromEnvelope(envelope)
	if !validID {
		return nil, []any{jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid request", nil)}, false, nil
	}

	var msg jsonrpc.Request
	if unmarshalErr := json.Unmarshal(trimmed, &msg); unmarshalErr != nil {
		return nil, []any{jsonrpc.NewErrorResponse(requestID, jsonrpc.ErrInvalidRequest, "Invalid request", nil)}, false, nil
	}

	if msg.Method == "" {
		_, hasResult := envelope["result"]
		_, hasErr := envelope["error"]
		if hasResult || hasErr {
			if msg.JSONRPC != jsonrpc.Version || !hasID || (hasResult && hasErr) {
				return nil, []any{jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid request", nil)}, false, nil
			}
			return nil, nil, true, nil
		}
		return nil, []any{jsonrpc.NewErrorResponse(requestID, jsonrpc.ErrInvalidRequest, "Invalid request", nil)}, false, nil
	}

	if msg.JSONRPC != jsonrpc.Version {
		return nil, []any{jsonrpc.NewErrorResponse(requestID, jsonrpc.ErrInvalidRequest, "Invalid request", nil)}, false, nil
	}

	if rawParams, ok := envelope["params"]; ok && !isValidParamsValue(rawParams) {
		return nil, []any{jsonrpc.NewErrorResponse(requestID, jsonrpc.ErrInvalidRequest, "Invalid request", nil)}, false, nil
	}

	if msg.Method == "initialize" && msg.ID == nil {
		return nil, []any{jsonrpc.NewErrorResponse(nil, jsonrpc.ErrInvalidRequest, "Invalid request", nil)}, false, nil
	}

	return []jsonrpc.Request{msg}, nil, false, nil
}

func parseIDFromEnvelope(envelope map[string]json.RawMessage) (id any, hasID bool, valid bool) {
	rawID, exists := envelope["id"]
	if !exists {
		return nil, false, true
	}
	trimmed := bytes.TrimSpace(rawID)
	if len(trimmed) == 0 {
		return nil, true, false
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&id); err != nil {
		return nil, true, false
	}
	if !isValidJSONRPCID(id) {
		return nil, true, false
	}
	return id, true, true
}

func isValidJSONRPCID(id any) bool {
	switch v := id.(type) {
	case string:
		return true
	case json.Number:
		return isJSONInteger(v.String())
	default:
		return false
	}
}

func isValidParamsValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	return trimmed[0] == '{'
}

func isJSONInteger(value string) bool {
	if value == "" || strings.ContainsAny(value, ".eE") {
		return false
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return true
	}
	if strings.HasPrefix(value, "-") {
		return false
	}
	_, err := strconv.ParseUint(value, 10, 64)
	return err == nil
}

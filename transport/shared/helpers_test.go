package shared

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/Coykto/debug-mcp/gateway"
	"github.com/Coykto/debug-mcp/logger"
	"github.com/Coykto/debug-mcp/mcp"
	"github.com/Coykto/debug-mcp/mcp/jsonrpc"
	"github.com/Coykto/debug-mcp/registry"
)

func TestMain(m *testing.M) {
	logger.Init(logger.GetLevelFromString("debug"), logger.FormatJSON, "logs/shared_test.log")
	os.Exit(m.Run())
}

func newTestGateway(t *testing.T) *gateway.Gateway {
	t.Helper()
	reg := registry.New()
	err := reg.Register(registry.Schema{
		Name:        "describe_log_groups",
		Description: "List CloudWatch log groups",
		Category:    "cloudwatch",
		Parameters: []registry.Parameter{
			{Name: "log_group_name_prefix", Type: registry.KindString, Description: "Prefix filter"},
		},
	}, func(ctx context.Context, args registry.Args) (any, error) {
		return map[string]any{"logGroups": []any{}}, nil
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	reg.Seal()
	return gateway.New(reg)
}

func TestDispatchToolsList(t *testing.T) {
	gw := newTestGateway(t)
	msg := jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: "1", Method: "tools/list"}

	response := DispatchStandardMethod(context.Background(), msg, gw)
	resp, ok := response.(*jsonrpc.Response)
	if !ok {
		t.Fatalf("expected *jsonrpc.Response, got %T", response)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", resp.Result)
	}
	tools, ok := result["tools"].([]mcp.Tool)
	if !ok {
		t.Fatalf("expected []mcp.Tool, got %T", result["tools"])
	}
	if len(tools) != 1 {
		t.Fatalf("expected exactly one advertised tool, got %d", len(tools))
	}
	if tools[0].Name != gateway.ToolName {
		t.Errorf("tool name = %q, want %q", tools[0].Name, gateway.ToolName)
	}
	if len(tools[0].InputSchema.Properties) == 0 {
		t.Error("advertised tool has no input schema properties")
	}
}

func TestDispatchToolCallList(t *testing.T) {
	gw := newTestGateway(t)
	msg := jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      "2",
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name": "debug", "arguments": {"tool": "list"}}`),
	}

	response := DispatchStandardMethod(context.Background(), msg, gw)
	resp, ok := response.(*jsonrpc.Response)
	if !ok {
		t.Fatalf("expected *jsonrpc.Response, got %T", response)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	result := resp.Result.(map[string]any)
	if isError, _ := result["isError"].(bool); isError {
		t.Error("list call flagged as error")
	}
	envelope, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("expected structuredContent map, got %T", result["structuredContent"])
	}
	if _, ok := envelope["categories"]; !ok {
		t.Errorf("expected categories in envelope, got %v", envelope)
	}
	content, ok := result["content"].([]map[string]any)
	if !ok || len(content) != 1 {
		t.Fatalf("expected one content block, got %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type = %v, want text", content[0]["type"])
	}
}

func TestDispatchToolCallUnknownToolEnvelope(t *testing.T) {
	gw := newTestGateway(t)
	msg := jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      "3",
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name": "debug", "arguments": {"tool": "nonexistent_tool"}}`),
	}

	response := DispatchStandardMethod(context.Background(), msg, gw)
	resp := response.(*jsonrpc.Response)
	if resp.Error != nil {
		t.Fatalf("routing failures must be tool results, got JSON-RPC error: %v", resp.Error)
	}

	result := resp.Result.(map[string]any)
	if isError, _ := result["isError"].(bool); !isError {
		t.Error("unknown tool call not flagged as error")
	}
	envelope := result["structuredContent"].(map[string]any)
	if envelope["error"] != true {
		t.Errorf("envelope error flag = %v, want true", envelope["error"])
	}
}

func TestDispatchToolCallWrongName(t *testing.T) {
	gw := newTestGateway(t)
	msg := jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      "4",
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name": "other", "arguments": {}}`),
	}

	response := DispatchStandardMethod(context.Background(), msg, gw)
	resp := response.(*jsonrpc.Response)
	if resp.Error == nil {
		t.Fatal("expected JSON-RPC error for unknown tool name")
	}
	if resp.Error.Code != jsonrpc.ErrInvalidParams {
		t.Errorf("error code = %d, want %d", resp.Error.Code, jsonrpc.ErrInvalidParams)
	}
}

func TestDispatchPing(t *testing.T) {
	gw := newTestGateway(t)
	msg := jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: "5", Method: "ping"}

	response := DispatchStandardMethod(context.Background(), msg, gw)
	resp, ok := response.(*jsonrpc.Response)
	if !ok || resp.Error != nil {
		t.Fatalf("expected success response, got %v", response)
	}
}

func TestDispatchMethodNotFound(t *testing.T) {
	gw := newTestGateway(t)

	msg := jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: "6", Method: "resources/list"}
	response := DispatchStandardMethod(context.Background(), msg, gw)
	resp := response.(*jsonrpc.Response)
	if resp.Error == nil || resp.Error.Code != jsonrpc.ErrMethodNotFound {
		t.Fatalf("expected method not found, got %v", response)
	}

	notification := jsonrpc.Request{JSONRPC: jsonrpc.Version, Method: "some/notification"}
	if got := DispatchStandardMethod(context.Background(), notification, gw); got != nil {
		t.Errorf("unknown notification must be dropped, got %v", got)
	}
}

func TestParseJSONRPCFrameValidRequest(t *testing.T) {
	frame := []byte(`{"jsonrpc": "2.0", "id": 1, "method": "tools/list"}`)
	requests, prebuilt, oneWay, err := ParseJSONRPCFrame(frame)
	if err != nil {
		t.Fatalf("ParseJSONRPCFrame failed: %v", err)
	}
	if len(requests) != 1 || len(prebuilt) != 0 || oneWay {
		t.Fatalf("unexpected parse result: requests=%d prebuilt=%d oneWay=%v", len(requests), len(prebuilt), oneWay)
	}
	if requests[0].Method != "tools/list" {
		t.Errorf("method = %q", requests[0].Method)
	}
	if requests[0].ID == nil {
		t.Error("request ID was dropped")
	}
}

func TestParseJSONRPCFrameNotification(t *testing.T) {
	frame := []byte(`{"jsonrpc": "2.0", "method": "notifications/initialized"}`)
	requests, prebuilt, oneWay, err := ParseJSONRPCFrame(frame)
	if err != nil || len(requests) != 1 || len(prebuilt) != 0 || oneWay {
		t.Fatalf("unexpected parse result: %v %d %d %v", err, len(requests), len(prebuilt), oneWay)
	}
	if requests[0].ID != nil {
		t.Errorf("notification must have nil ID, got %v", requests[0].ID)
	}
}

func TestParseJSONRPCFrameRejectsBatch(t *testing.T) {
	frame := []byte(`[{"jsonrpc": "2.0", "id": 1, "method": "ping"}]`)
	requests, prebuilt, _, err := ParseJSONRPCFrame(frame)
	if err != nil {
		t.Fatalf("ParseJSONRPCFrame failed: %v", err)
	}
	if len(requests) != 0 || len(prebuilt) != 1 {
		t.Fatalf("batch frames must produce a prebuilt rejection, got requests=%d prebuilt=%d", len(requests), len(prebuilt))
	}
}

func TestParseJSONRPCFrameRejectsBadID(t *testing.T) {
	frame := []byte(`{"jsonrpc": "2.0", "id": 1.5, "method": "ping"}`)
	requests, prebuilt, _, err := ParseJSONRPCFrame(frame)
	if err != nil {
		t.Fatalf("ParseJSONRPCFrame failed: %v", err)
	}
	if len(requests) != 0 || len(prebuilt) != 1 {
		t.Fatal("fractional IDs must be rejected")
	}
}

func TestParseJSONRPCFrameAcceptsClientResponse(t *testing.T) {
	frame := []byte(`{"jsonrpc": "2.0", "id": "srv-1", "result": {}}`)
	requests, prebuilt, oneWay, err := ParseJSONRPCFrame(frame)
	if err != nil {
		t.Fatalf("ParseJSONRPCFrame failed: %v", err)
	}
	if len(requests) != 0 || len(prebuilt) != 0 || !oneWay {
		t.Fatalf("client responses must be accepted one-way, got requests=%d prebuilt=%d oneWay=%v", len(requests), len(prebuilt), oneWay)
	}
}

func TestParseJSONRPCFrameRejectsInitializeNotification(t *testing.T) {
	frame := []byte(`{"jsonrpc": "2.0", "method": "initialize"}`)
	requests, prebuilt, _, err := ParseJSONRPCFrame(frame)
	if err != nil {
		t.Fatalf("ParseJSONRPCFrame failed: %v", err)
	}
	if len(requests) != 0 || len(prebuilt) != 1 {
		t.Fatal("initialize without an ID must be rejected")
	}
}

func TestParseCursor(t *testing.T) {
	if offset, err := ParseCursor(nil, 5); err != nil || offset != 0 {
		t.Errorf("empty params: offset=%d err=%v", offset, err)
	}
	if offset, err := ParseCursor(json.RawMessage(`{"cursor": "3"}`), 5); err != nil || offset != 3 {
		t.Errorf("valid cursor: offset=%d err=%v", offset, err)
	}
	if _, err := ParseCursor(json.RawMessage(`{"cursor": "abc"}`), 5); err == nil {
		t.Error("non-numeric cursor accepted")
	}
	if _, err := ParseCursor(json.RawMessage(`{"cursor": "9"}`), 5); err == nil {
		t.Error("out-of-range cursor accepted")
	}
}

func TestNegotiateProtocolVersion(t *testing.T) {
	if got := NegotiateProtocolVersion(json.RawMessage(`{"protocolVersion": "2024-11-05"}`)); got != "2024-11-05" {
		t.Errorf("supported version not honored: %q", got)
	}
	if got := NegotiateProtocolVersion(json.RawMessage(`{"protocolVersion": "1999-01-01"}`)); got != mcp.ProtocolVersion {
		t.Errorf("unsupported version must fall back, got %q", got)
	}
	if got := NegotiateProtocolVersion(nil); got != mcp.ProtocolVersion {
		t.Errorf("missing params must fall back, got %q", got)
	}
}

func TestBuildInitializeResult(t *testing.T) {
	msg := jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: "init-1", Method: "initialize"}
	resp, negotiated := BuildInitializeResult(msg, "session_abc")
	if negotiated != mcp.ProtocolVersion {
		t.Errorf("negotiated = %q, want %q", negotiated, mcp.ProtocolVersion)
	}
	result := resp.Result.(map[string]any)
	if result["sessionId"] != "session_abc" {
		t.Errorf("sessionId = %v", result["sessionId"])
	}
	serverInfo := result["serverInfo"].(map[string]any)
	if serverInfo["name"] != mcp.ServerName {
		t.Errorf("server name = %v", serverInfo["name"])
	}
	if _, ok := result["capabilities"].(map[string]any)["tools"]; !ok {
		t.Error("tools capability missing")
	}
}

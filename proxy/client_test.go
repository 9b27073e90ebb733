package proxy

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Coykto/debug-mcp/logger"
	"github.com/Coykto/debug-mcp/mcp/jsonrpc"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	logger.Init(logger.GetLevelFromString("debug"), logger.FormatJSON)

	m.Run()
}

func TestExtractContentJSONText(t *testing.T) {
	result := []byte(`{
		"content": [
			{"type": "text", "text": "{\"logGroups\": [\"/aws/lambda/ingest\"]}"}
		]
	}`)

	decoded, err := extractContent(result)
	if err != nil {
		t.Fatalf("extractContent failed: %v", err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("expected decoded JSON object, got %T", decoded)
	}
	if _, ok := obj["logGroups"]; !ok {
		t.Errorf("expected logGroups key, got %v", obj)
	}
}

func TestExtractContentPlainText(t *testing.T) {
	result := []byte(`{"content": [{"type": "text", "text": "no executions found"}]}`)

	decoded, err := extractContent(result)
	if err != nil {
		t.Fatalf("extractContent failed: %v", err)
	}
	if decoded != "no executions found" {
		t.Errorf("expected plain string passthrough, got %v", decoded)
	}
}

func TestExtractContentSkipsNonTextBlocks(t *testing.T) {
	result := []byte(`{
		"content": [
			{"type": "image", "data": "...base64..."},
			{"type": "text", "text": "42"}
		]
	}`)

	decoded, err := extractContent(result)
	if err != nil {
		t.Fatalf("extractContent failed: %v", err)
	}
	if decoded != float64(42) {
		t.Errorf("expected first text block decoded, got %v", decoded)
	}
}

func TestExtractContentUpstreamError(t *testing.T) {
	result := []byte(`{"isError": true, "content": [{"type": "text", "text": "AccessDenied"}]}`)

	_, err := extractContent(result)
	if err == nil || !strings.Contains(err.Error(), "AccessDenied") {
		t.Errorf("expected upstream error with detail, got %v", err)
	}
}

func TestExtractContentNoTextBlock(t *testing.T) {
	result := []byte(`{"structuredContent": {"count": 3}}`)

	decoded, err := extractContent(result)
	if err != nil {
		t.Fatalf("extractContent failed: %v", err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("expected whole result decoded, got %T", decoded)
	}
	if _, ok := obj["structuredContent"]; !ok {
		t.Errorf("expected structuredContent key, got %v", obj)
	}
}

func TestScrubRequestMasksSecrets(t *testing.T) {
	params, _ := json.Marshal(map[string]any{
		"name": "search_jira_tickets",
		"arguments": map[string]any{
			"query":     "login failure",
			"api_token": "very-secret",
		},
	})
	req := &jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      "1",
		Method:  "tools/call",
		Params:  params,
	}

	logged := scrubRequest(req)
	if strings.Contains(logged, "very-secret") {
		t.Error("secret value leaked into log output")
	}
	if !strings.Contains(logged, "***") {
		t.Error("expected masked placeholder in log output")
	}
	if !strings.Contains(logged, "login failure") {
		t.Error("non-secret arguments should survive scrubbing")
	}
}

func TestStartUnknownCommand(t *testing.T) {
	client := New("missing", "definitely-not-a-real-command-xyz", nil, nil)
	if err := client.Start(context.Background()); err == nil {
		t.Error("expected start failure for unknown command")
		client.Close()
	}
}

func TestCallAfterClose(t *testing.T) {
	client := New("closed", "true", nil, nil)
	client.closed = true

	if _, err := client.CallTool(context.Background(), "anything", nil); err == nil {
		t.Error("expected error calling a closed client")
	}
}

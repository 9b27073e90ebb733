package gateway

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/Coykto/debug-mcp/logger"
	"github.com/Coykto/debug-mcp/registry"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	logger.Init(logger.GetLevelFromString("debug"), logger.FormatJSON, "logs/gateway_test.log")

	m.Run()
}

// recordingHandler captures the typed arguments of its last invocation.
type recordingHandler struct {
	calls    int
	lastArgs registry.Args
	result   any
	err      error
}

func (h *recordingHandler) handle(_ context.Context, args registry.Args) (any, error) {
	h.calls++
	h.lastArgs = args
	return h.result, h.err
}

func newTestGateway(t *testing.T) (*Gateway, *recordingHandler, *recordingHandler) {
	t.Helper()

	reg := registry.New()
	logGroups := &recordingHandler{result: map[string]any{"logGroups": []string{"/aws/lambda/ingest"}}}
	jiraSearch := &recordingHandler{result: map[string]any{"issues": []string{"PROJ-42"}}}

	err := reg.Register(registry.Schema{
		Name:        "describe_log_groups",
		Description: "List CloudWatch log groups",
		Category:    "cloudwatch",
		Parameters: []registry.Parameter{
			{Name: "prefix", Type: registry.KindString, Description: "Log group name prefix", Default: ""},
		},
	}, logGroups.handle)
	if err != nil {
		t.Fatalf("register describe_log_groups: %v", err)
	}

	err = reg.Register(registry.Schema{
		Name:        "search_jira_tickets",
		Description: "Search Jira tickets by filters",
		Category:    "jira",
		Parameters: []registry.Parameter{
			{Name: "query", Type: registry.KindString, Description: "Free text query", Default: ""},
			{Name: "status", Type: registry.KindString, Description: "Ticket status", Default: ""},
			{Name: "assignee", Type: registry.KindString, Description: "Assignee email", Default: ""},
			{Name: "max_results", Type: registry.KindInteger, Description: "Result cap", Default: 20},
		},
	}, jiraSearch.handle)
	if err != nil {
		t.Fatalf("register search_jira_tickets: %v", err)
	}

	reg.Seal()
	return New(reg), logGroups, jiraSearch
}

func TestCallDefaultsToDiscovery(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	resp := gw.Call(context.Background(), "", "")
	categories, ok := resp["categories"].([]registry.CategorySummary)
	if !ok {
		t.Fatalf("expected categories in response, got %v", resp)
	}
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(categories))
	}
	for _, c := range categories {
		if c.ToolCount != 1 {
			t.Errorf("category %s: expected 1 tool, got %d", c.Category, c.ToolCount)
		}
	}
}

func TestCallListCategory(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	resp := gw.Call(context.Background(), "list:jira", "{}")
	tools, ok := resp["tools"].([]registry.Schema)
	if !ok {
		t.Fatalf("expected tools in response, got %v", resp)
	}
	if len(tools) != 1 || tools[0].Name != "search_jira_tickets" {
		t.Fatalf("expected exactly search_jira_tickets, got %v", tools)
	}
}

func TestCallListUnknownCategory(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	resp := gw.Call(context.Background(), "list:datadog", "{}")
	if resp["error"] != true {
		t.Fatalf("expected error envelope, got %v", resp)
	}
	available, ok := resp["available_categories"].([]string)
	if !ok {
		t.Fatalf("expected available_categories hint, got %v", resp)
	}
	if !slices.Contains(available, "cloudwatch") || !slices.Contains(available, "jira") {
		t.Errorf("available_categories should list active categories, got %v", available)
	}
}

func TestCallExecutesWithDefaults(t *testing.T) {
	gw, logGroups, _ := newTestGateway(t)

	resp := gw.Call(context.Background(), "describe_log_groups", "{}")
	if _, ok := resp["result"]; !ok {
		t.Fatalf("expected result envelope, got %v", resp)
	}
	if logGroups.calls != 1 {
		t.Fatalf("expected one handler invocation, got %d", logGroups.calls)
	}
	if got := logGroups.lastArgs.String("prefix"); got != "" {
		t.Errorf("expected default prefix \"\", got %q", got)
	}
}

func TestCallUnknownTool(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	resp := gw.Call(context.Background(), "unknown_tool", "{}")
	if resp["error"] != true {
		t.Fatalf("expected error envelope, got %v", resp)
	}
	message, _ := resp["message"].(string)
	if !strings.Contains(message, "unknown_tool") {
		t.Errorf("message should name the unknown tool, got %q", message)
	}
	available, ok := resp["available_tools"].([]string)
	if !ok {
		t.Fatalf("expected available_tools hint, got %v", resp)
	}
	if !slices.Contains(available, "describe_log_groups") || !slices.Contains(available, "search_jira_tickets") {
		t.Errorf("available_tools should list registered tools, got %v", available)
	}
}

func TestCallUnknownToolSuggestions(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	resp := gw.Call(context.Background(), "search_jira_ticket", "{}")
	available, ok := resp["available_tools"].([]string)
	if !ok {
		t.Fatalf("expected available_tools hint, got %v", resp)
	}
	if !slices.Equal(available, []string{"search_jira_tickets"}) {
		t.Errorf("expected near-miss suggestion only, got %v", available)
	}
}

func TestCallMalformedJSON(t *testing.T) {
	gw, logGroups, _ := newTestGateway(t)

	resp := gw.Call(context.Background(), "describe_log_groups", "not json")
	if resp["error"] != true {
		t.Fatalf("expected error envelope, got %v", resp)
	}
	message, _ := resp["message"].(string)
	if !strings.HasPrefix(message, "Invalid JSON:") {
		t.Errorf("expected Invalid JSON message, got %q", message)
	}
	if logGroups.calls != 0 {
		t.Error("malformed JSON must not reach the registry or handler")
	}
}

func TestCallInvalidArguments(t *testing.T) {
	gw, _, jiraSearch := newTestGateway(t)

	resp := gw.Call(context.Background(), "search_jira_tickets", `{"max_results": "lots"}`)
	if resp["error"] != true {
		t.Fatalf("expected error envelope, got %v", resp)
	}
	message, _ := resp["message"].(string)
	if !strings.Contains(message, "max_results") {
		t.Errorf("message should name the mismatched argument, got %q", message)
	}
	if jiraSearch.calls != 0 {
		t.Error("handler must not run on invalid arguments")
	}
}

func TestCallHandlerFailure(t *testing.T) {
	gw, logGroups, _ := newTestGateway(t)
	logGroups.err = errors.New("throttled by CloudWatch")

	resp := gw.Call(context.Background(), "describe_log_groups", "{}")
	if resp["error"] != true {
		t.Fatalf("expected error envelope, got %v", resp)
	}
	message, _ := resp["message"].(string)
	if !strings.Contains(message, "throttled by CloudWatch") {
		t.Errorf("message should carry the handler cause, got %q", message)
	}
}

func TestEnvelopeIsExactlyOneShape(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	cases := []struct {
		tool string
		args string
	}{
		{"", ""},
		{"list:jira", "{}"},
		{"describe_log_groups", "{}"},
		{"unknown_tool", "{}"},
		{"describe_log_groups", "not json"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%s", tc.tool, tc.args), func(t *testing.T) {
			resp := gw.Call(context.Background(), tc.tool, tc.args)
			_, hasResult := resp["result"]
			_, hasCategories := resp["categories"]
			_, hasTools := resp["tools"]
			_, hasError := resp["error"]
			success := hasResult || hasCategories || hasTools
			if success == hasError {
				t.Errorf("envelope must be exactly one of success or error, got %v", resp)
			}
		})
	}
}

func TestDefinitionSchema(t *testing.T) {
	def := Definition()
	if def.Name != "debug" {
		t.Fatalf("expected tool name debug, got %s", def.Name)
	}
	if !strings.Contains(def.Description, "cloudwatch") {
		t.Error("description should name the categories")
	}
	if def.InputSchema.Type != "object" {
		t.Errorf("expected object schema, got %s", def.InputSchema.Type)
	}
	for _, prop := range []string{"tool", "arguments"} {
		if _, ok := def.InputSchema.Properties[prop]; !ok {
			t.Errorf("schema missing property %s", prop)
		}
	}
	if len(def.InputSchema.Required) != 0 {
		t.Errorf("both params are optional, got required %v", def.InputSchema.Required)
	}
}

func TestParseParams(t *testing.T) {
	params := ParseParams(map[string]any{"tool": "list:jira", "arguments": `{"a":1}`})
	if params.Tool != "list:jira" || params.Arguments != `{"a":1}` {
		t.Errorf("unexpected params: %+v", params)
	}

	empty := ParseParams(map[string]any{})
	if empty.Tool != "" || empty.Arguments != "" {
		t.Errorf("expected zero params, got %+v", empty)
	}
}

package registry

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"
)

func okHandler(result any) Handler {
	return func(ctx context.Context, args Args) (any, error) {
		return result, nil
	}
}

// countingHandler records how often it was invoked and with what arguments.
type countingHandler struct {
	mu    sync.Mutex
	calls int
	last  Args
}

func (h *countingHandler) handle(ctx context.Context, args Args) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.last = args
	return map[string]any{"ok": true}, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New()
	register := func(schema Schema, handler Handler) {
		if err := r.Register(schema, handler); err != nil {
			t.Fatalf("Register %s failed: %v", schema.Name, err)
		}
	}
	register(Schema{
		Name:        "describe_log_groups",
		Description: "List CloudWatch log groups with optional prefix filtering",
		Category:    "cloudwatch",
		Parameters: []Parameter{
			{Name: "prefix", Type: KindString, Description: "Log group name prefix", Required: false, Default: ""},
		},
	}, okHandler(map[string]any{"log_groups": []string{}}))
	register(Schema{
		Name:        "search_jira_tickets",
		Description: "Search for Jira tickets with filters and text search",
		Category:    "jira",
		Parameters: []Parameter{
			{Name: "query", Type: KindString, Description: "Text search", Required: false, Default: ""},
			{Name: "status", Type: KindString, Description: "Status filter", Required: false, Default: ""},
			{Name: "assignee", Type: KindString, Description: "Assignee filter", Required: false, Default: ""},
			{Name: "limit", Type: KindInteger, Description: "Maximum results", Required: false, Default: 10},
		},
	}, okHandler(map[string]any{"tickets": []string{}}))
	return r
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Register(Schema{Name: "describe_log_groups", Category: "cloudwatch"}, okHandler(nil))
	var dup *DuplicateToolError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateToolError, got %v", err)
	}
	if dup.Name != "describe_log_groups" {
		t.Errorf("Unexpected duplicate name %q", dup.Name)
	}
}

func TestRegisterAfterSealFails(t *testing.T) {
	r := newTestRegistry(t)
	r.Seal()
	err := r.Register(Schema{Name: "late_tool", Category: "jira"}, okHandler(nil))
	if !errors.Is(err, ErrSealed) {
		t.Fatalf("Expected ErrSealed, got %v", err)
	}
}

func TestListCategories(t *testing.T) {
	r := newTestRegistry(t)

	first := r.ListCategories()
	if len(first) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(first))
	}
	// Ordered by category name.
	if first[0].Category != "cloudwatch" || first[1].Category != "jira" {
		t.Errorf("Unexpected category order: %v", first)
	}
	if first[0].ToolCount != 1 || first[1].ToolCount != 1 {
		t.Errorf("Unexpected tool counts: %v", first)
	}
	if first[0].Description == "" {
		t.Error("Expected a category description")
	}

	// Idempotent and order-stable with no intervening registration.
	second := r.ListCategories()
	if !slices.Equal(first, second) {
		t.Errorf("ListCategories is not stable: %v vs %v", first, second)
	}

	if got := New().ListCategories(); len(got) != 0 {
		t.Errorf("Expected empty categories for empty registry, got %v", got)
	}
}

func TestListToolsMirrorsDescriptors(t *testing.T) {
	r := newTestRegistry(t)

	tools, err := r.ListTools("jira")
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "search_jira_tickets" {
		t.Fatalf("Expected exactly search_jira_tickets, got %v", tools)
	}
	params := tools[0].Parameters
	want := []string{"query", "status", "assignee", "limit"}
	if len(params) != len(want) {
		t.Fatalf("Expected %d parameters, got %d", len(want), len(params))
	}
	for i, name := range want {
		if params[i].Name != name {
			t.Errorf("Parameter %d: expected %q, got %q (order must be preserved)", i, name, params[i].Name)
		}
	}
	if params[3].Type != KindInteger || params[3].Default != 10 {
		t.Errorf("limit parameter lost its type or default: %+v", params[3])
	}
}

func TestListToolsUnknownCategory(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.ListTools("datadog")
	categoryErr, ok := AsUnknownCategory(err)
	if !ok {
		t.Fatalf("Expected UnknownCategoryError, got %v", err)
	}
	if !slices.Equal(categoryErr.Available, []string{"cloudwatch", "jira"}) {
		t.Errorf("Unexpected available categories: %v", categoryErr.Available)
	}

	// A known category with no registered tools is also unknown to callers.
	if _, err := r.ListTools("langsmith"); err == nil {
		t.Error("Expected error for category without registered tools")
	}
}

func TestExecuteNeverInvokesHandlerOnInvalidArguments(t *testing.T) {
	r := New()
	h := &countingHandler{}
	err := r.Register(Schema{
		Name:     "analyze_log_group",
		Category: "cloudwatch",
		Parameters: []Parameter{
			{Name: "log_group_name", Type: KindString, Required: true},
			{Name: "start_time", Type: KindString, Required: true},
		},
	}, h.handle)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, execErr := r.Execute(context.Background(), "analyze_log_group", map[string]any{})
	var invalid *InvalidArgumentsError
	if !errors.As(execErr, &invalid) {
		t.Fatalf("Expected InvalidArgumentsError, got %v", execErr)
	}
	if !slices.Contains(invalid.Missing, "log_group_name") || !slices.Contains(invalid.Missing, "start_time") {
		t.Errorf("Expected full missing list, got %v", invalid.Missing)
	}
	if h.calls != 0 {
		t.Errorf("Handler invoked %d times despite invalid arguments", h.calls)
	}
}

func TestExecuteSubstitutesDefaults(t *testing.T) {
	r := New()
	h := &countingHandler{}
	if err := r.Register(Schema{
		Name:     "describe_log_groups",
		Category: "cloudwatch",
		Parameters: []Parameter{
			{Name: "prefix", Type: KindString, Required: false, Default: ""},
			{Name: "limit", Type: KindInteger, Required: false, Default: 50},
		},
	}, h.handle); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := r.Execute(context.Background(), "describe_log_groups", map[string]any{}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if h.calls != 1 {
		t.Fatalf("Expected one handler invocation, got %d", h.calls)
	}
	if h.last.String("prefix") != "" || h.last.Int("limit") != 50 {
		t.Errorf("Defaults not substituted: %v", h.last)
	}
}

func TestExecuteUnknownToolSuggestions(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Execute(context.Background(), "search_jira_ticket", map[string]any{})
	unknown, ok := AsUnknownTool(err)
	if !ok {
		t.Fatalf("Expected UnknownToolError, got %v", err)
	}
	if !slices.Contains(unknown.Suggestions, "search_jira_tickets") {
		t.Errorf("Expected near-miss suggestion, got %v", unknown.Suggestions)
	}
}

func TestExecuteWrapsHandlerFailures(t *testing.T) {
	r := New()
	cause := errors.New("upstream unavailable")
	if err := r.Register(Schema{
		Name:     "get_jira_ticket",
		Category: "jira",
		Parameters: []Parameter{
			{Name: "issue_key", Type: KindString, Required: true},
		},
	}, func(ctx context.Context, args Args) (any, error) {
		return nil, cause
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := r.Execute(context.Background(), "get_jira_ticket", map[string]any{"issue_key": "IGAL-123"})
	var handlerErr *HandlerError
	if !errors.As(err, &handlerErr) {
		t.Fatalf("Expected HandlerError, got %v", err)
	}
	if handlerErr.Tool != "get_jira_ticket" || !errors.Is(handlerErr, cause) {
		t.Errorf("HandlerError lost tool or cause: %v", handlerErr)
	}
}

func TestRegistrationRoundTrip(t *testing.T) {
	// Discover a tool, then call it using exactly the documented required
	// parameters; validation must accept the call.
	r := newTestRegistry(t)
	tools, err := r.ListTools("cloudwatch")
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}

	raw := make(map[string]any)
	for _, param := range tools[0].Parameters {
		if param.Required {
			raw[param.Name] = "value"
		}
	}
	if _, err := r.Execute(context.Background(), tools[0].Name, raw); err != nil {
		t.Fatalf("Round-trip execute failed: %v", err)
	}
}

func TestConcurrentExecution(t *testing.T) {
	r := New()
	if err := r.Register(Schema{
		Name:     "slow_tool",
		Category: "langsmith",
		Parameters: []Parameter{
			{Name: "environment", Type: KindString, Required: true},
		},
	}, func(ctx context.Context, args Args) (any, error) {
		time.Sleep(20 * time.Millisecond)
		return map[string]any{"environment": args.String("environment")}, nil
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	r.Seal()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := r.Execute(context.Background(), "slow_tool", map[string]any{"environment": "production"})
			if err != nil {
				t.Errorf("Concurrent Execute failed: %v", err)
				return
			}
			if result.(map[string]any)["environment"] != "production" {
				t.Errorf("Unexpected result: %v", result)
			}
		}()
	}
	wg.Wait()
}

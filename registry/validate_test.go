package registry

import (
	"slices"
	"testing"
)

func searchSchema() Schema {
	return Schema{
		Name:        "search_jira_tickets",
		Description: "Search for Jira tickets with filters and text search",
		Category:    "jira",
		Parameters: []Parameter{
			{Name: "query", Type: KindString, Description: "Text search", Required: false, Default: ""},
			{Name: "status", Type: KindString, Description: "Status filter", Required: false, Default: ""},
			{Name: "limit", Type: KindInteger, Description: "Maximum results", Required: false, Default: 10},
			{Name: "error_only", Type: KindBoolean, Description: "Errors only", Required: false, Default: false},
		},
	}
}

func querySchema() Schema {
	return Schema{
		Name:     "execute_log_insights_query",
		Category: "cloudwatch",
		Parameters: []Parameter{
			{Name: "log_group_names", Type: KindStringList, Description: "Log groups", Required: true},
			{Name: "query_string", Type: KindString, Description: "Insights query", Required: true},
			{Name: "limit", Type: KindInteger, Description: "Maximum results", Required: false, Default: 100},
		},
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	v := NewValidator(searchSchema())

	args, invalid := v.Validate(map[string]any{})
	if invalid != nil {
		t.Fatalf("Validate failed: %v", invalid)
	}
	if args.String("query") != "" {
		t.Errorf("Expected empty default query, got %q", args.String("query"))
	}
	if args.Int("limit") != 10 {
		t.Errorf("Expected default limit 10, got %d", args.Int("limit"))
	}
	if args.Bool("error_only") {
		t.Error("Expected default error_only false")
	}
}

func TestValidateCoercions(t *testing.T) {
	v := NewValidator(querySchema())

	// JSON-decoded arguments arrive as float64 and []any.
	args, invalid := v.Validate(map[string]any{
		"log_group_names": []any{"/aws/lambda/api", "/ecs/worker"},
		"query_string":    "fields @message",
		"limit":           float64(25),
	})
	if invalid != nil {
		t.Fatalf("Validate failed: %v", invalid)
	}
	if got := args.StringList("log_group_names"); !slices.Equal(got, []string{"/aws/lambda/api", "/ecs/worker"}) {
		t.Errorf("Unexpected log_group_names: %v", got)
	}
	if args.Int("limit") != 25 {
		t.Errorf("Expected limit 25, got %d", args.Int("limit"))
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	v := NewValidator(querySchema())

	args, invalid := v.Validate(map[string]any{
		"limit": "not a number",
	})
	if args != nil {
		t.Fatal("Expected no typed args on failure")
	}
	if invalid == nil {
		t.Fatal("Expected violations")
	}
	if !slices.Contains(invalid.Missing, "log_group_names") || !slices.Contains(invalid.Missing, "query_string") {
		t.Errorf("Expected both required parameters reported missing, got %v", invalid.Missing)
	}
	if len(invalid.Mismatched) != 1 || invalid.Mismatched[0].Name != "limit" || invalid.Mismatched[0].Expected != KindInteger {
		t.Errorf("Expected limit type mismatch, got %v", invalid.Mismatched)
	}
}

func TestValidateRejectsFractionalIntegers(t *testing.T) {
	v := NewValidator(querySchema())

	_, invalid := v.Validate(map[string]any{
		"log_group_names": []any{"/aws/lambda/api"},
		"query_string":    "fields @message",
		"limit":           1.5,
	})
	if invalid == nil {
		t.Fatal("Expected fractional limit to be rejected")
	}
}

func TestValidateBooleanTokens(t *testing.T) {
	schema := Schema{
		Name:     "bool_tool",
		Category: "jira",
		Parameters: []Parameter{
			{Name: "flag", Type: KindBoolean, Required: true},
		},
	}
	v := NewValidator(schema)

	for _, raw := range []any{true, "true", "false"} {
		if _, invalid := v.Validate(map[string]any{"flag": raw}); invalid != nil {
			t.Errorf("Expected %v to coerce to boolean: %v", raw, invalid)
		}
	}
	for _, raw := range []any{"yes", "TRUE", "1", 1} {
		if _, invalid := v.Validate(map[string]any{"flag": raw}); invalid == nil {
			t.Errorf("Expected %v to be rejected as boolean", raw)
		}
	}
}

func TestCheckSchemaRejectsBadDescriptors(t *testing.T) {
	cases := []struct {
		name   string
		schema Schema
	}{
		{
			name:   "empty name",
			schema: Schema{Category: "jira"},
		},
		{
			name:   "unknown category",
			schema: Schema{Name: "t", Category: "datadog"},
		},
		{
			name: "duplicate parameter",
			schema: Schema{Name: "t", Category: "jira", Parameters: []Parameter{
				{Name: "a", Type: KindString, Required: true},
				{Name: "a", Type: KindString, Required: true},
			}},
		},
		{
			name: "unsupported parameter type",
			schema: Schema{Name: "t", Category: "jira", Parameters: []Parameter{
				{Name: "a", Type: Kind("float"), Required: true},
			}},
		},
		{
			name: "default does not match type",
			schema: Schema{Name: "t", Category: "jira", Parameters: []Parameter{
				{Name: "a", Type: KindInteger, Required: false, Default: "ten"},
			}},
		},
		{
			name: "required parameter with default",
			schema: Schema{Name: "t", Category: "jira", Parameters: []Parameter{
				{Name: "a", Type: KindString, Required: true, Default: "x"},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := checkSchema(tc.schema); err == nil {
				t.Error("Expected schema to be rejected")
			}
		})
	}
}

// Package stepfunctions registers the Step Functions debugging tools,
// relayed to the upstream Step Functions MCP server through a proxy
// client.
package stepfunctions

import (
	"context"

	"github.com/Coykto/debug-mcp/registry"
)

const category = "stepfunctions"

// Caller is the proxy surface the handlers need.
type Caller interface {
	CallTool(ctx context.Context, tool string, arguments map[string]any) (any, error)
}

// Register adds all Step Functions tools to the registry.
func Register(reg registry.Registrar, upstream Caller) error {
	tools := []struct {
		schema  registry.Schema
		handler registry.Handler
	}{
		{
			schema: registry.Schema{
				Name:        "list_state_machines",
				Description: "List all Step Functions state machines in the account",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "max_results", Type: registry.KindInteger, Description: "Maximum number of state machines to return (default: 100)", Default: 100},
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return upstream.CallTool(ctx, "list_state_machines", map[string]any{
					"max_results": args.Int("max_results"),
				})
			},
		},
		{
			schema: registry.Schema{
				Name:        "get_state_machine_definition",
				Description: "Get the definition of a state machine including Lambda ARNs",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "state_machine_arn", Type: registry.KindString, Description: "ARN of the state machine", Required: true},
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return upstream.CallTool(ctx, "get_state_machine_definition", map[string]any{
					"state_machine_arn": args.String("state_machine_arn"),
				})
			},
		},
		{
			schema: registry.Schema{
				Name:        "list_step_function_executions",
				Description: "List executions for a state machine with optional status filtering",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "state_machine_arn", Type: registry.KindString, Description: "ARN of the state machine", Required: true},
					{Name: "status_filter", Type: registry.KindString, Description: "Optional status filter (RUNNING, SUCCEEDED, FAILED, TIMED_OUT, ABORTED)", Default: ""},
					{Name: "max_results", Type: registry.KindInteger, Description: "Maximum number of executions to return (default: 100)", Default: 100},
					{Name: "hours_back", Type: registry.KindInteger, Description: "Number of hours to look back (default: 168 = 7 days)", Default: 168},
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return upstream.CallTool(ctx, "list_step_function_executions", map[string]any{
					"state_machine_arn": args.String("state_machine_arn"),
					"status_filter":     args.String("status_filter"),
					"max_results":       args.Int("max_results"),
					"hours_back":        args.Int("hours_back"),
				})
			},
		},
		{
			schema: registry.Schema{
				Name:        "get_step_function_execution_details",
				Description: "Get detailed information about an execution including state-level inputs and outputs",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "execution_arn", Type: registry.KindString, Description: "ARN of the execution", Required: true},
					{Name: "include_definition", Type: registry.KindBoolean, Description: "If true, includes the state machine definition with Lambda ARNs (default: false)", Default: false},
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return upstream.CallTool(ctx, "get_step_function_execution_details", map[string]any{
					"execution_arn":      args.String("execution_arn"),
					"include_definition": args.Bool("include_definition"),
				})
			},
		},
		{
			schema: registry.Schema{
				Name:        "search_step_function_executions",
				Description: "Search executions by state name and input/output patterns",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "state_machine_arn", Type: registry.KindString, Description: "ARN of the state machine", Required: true},
					{Name: "state_name", Type: registry.KindString, Description: `Filter by state name (supports regex, e.g., "Match.*Entity")`, Default: ""},
					{Name: "input_pattern", Type: registry.KindString, Description: `Regex pattern to match in state inputs (e.g., "customer_id.*12345")`, Default: ""},
					{Name: "output_pattern", Type: registry.KindString, Description: `Regex pattern to match in state outputs (e.g., "entity_type.*company")`, Default: ""},
					{Name: "status_filter", Type: registry.KindString, Description: "Optional status filter (RUNNING, SUCCEEDED, FAILED, etc.)", Default: ""},
					{Name: "max_results", Type: registry.KindInteger, Description: "Maximum number of executions to process (default: 50)", Default: 50},
					{Name: "hours_back", Type: registry.KindInteger, Description: "Number of hours to look back (default: 168 = 7 days)", Default: 168},
					{Name: "include_definition", Type: registry.KindBoolean, Description: "If true, includes the state machine definition with Lambda ARNs (default: false)", Default: false},
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return upstream.CallTool(ctx, "search_step_function_executions", map[string]any{
					"state_machine_arn":  args.String("state_machine_arn"),
					"state_name":         args.String("state_name"),
					"input_pattern":      args.String("input_pattern"),
					"output_pattern":     args.String("output_pattern"),
					"status_filter":      args.String("status_filter"),
					"max_results":        args.Int("max_results"),
					"hours_back":         args.Int("hours_back"),
					"include_definition": args.Bool("include_definition"),
				})
			},
		},
	}

	for _, tool := range tools {
		if err := reg.Register(tool.schema, tool.handler); err != nil {
			return err
		}
	}
	return nil
}

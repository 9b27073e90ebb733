// Package cloudwatch registers the CloudWatch Logs debugging tools. The
// handlers relay to the upstream CloudWatch MCP server through a proxy
// client.
package cloudwatch

import (
	"context"

	"github.com/Coykto/debug-mcp/registry"
)

const category = "cloudwatch"

// Caller is the proxy surface the handlers need. *proxy.Client satisfies
// it; tests substitute a fake.
type Caller interface {
	CallTool(ctx context.Context, tool string, arguments map[string]any) (any, error)
}

// regionParam is shared by every CloudWatch tool.
var regionParam = registry.Parameter{
	Name:        "region",
	Type:        registry.KindString,
	Description: "AWS region to query (uses configured region if empty)",
	Default:     "",
}

// Register adds all CloudWatch tools to the registry.
func Register(reg registry.Registrar, upstream Caller) error {
	tools := []struct {
		schema  registry.Schema
		handler registry.Handler
	}{
		{
			schema: registry.Schema{
				Name:        "describe_log_groups",
				Description: "List CloudWatch log groups with optional prefix filtering",
				Category:    category,
				Parameters: []registry.Parameter{
					{
						Name:        "log_group_name_prefix",
						Type:        registry.KindString,
						Description: "Filter log groups by prefix (e.g., /aws/lambda/, /ecs/)",
						Default:     "",
					},
					regionParam,
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return upstream.CallTool(ctx, "describe_log_groups", map[string]any{
					"log_group_name_prefix": args.String("log_group_name_prefix"),
					"region":                args.String("region"),
				})
			},
		},
		{
			schema: registry.Schema{
				Name:        "analyze_log_group",
				Description: "Analyze CloudWatch logs for anomalies, message patterns, and error patterns",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "log_group_name", Type: registry.KindString, Description: "Log group name", Required: true},
					{Name: "start_time", Type: registry.KindString, Description: "Start time (ISO format)", Required: true},
					{Name: "end_time", Type: registry.KindString, Description: "End time (ISO format)", Required: true},
					{Name: "filter_pattern", Type: registry.KindString, Description: "Optional filter pattern", Default: ""},
					regionParam,
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return upstream.CallTool(ctx, "analyze_log_group", map[string]any{
					"log_group_name": args.String("log_group_name"),
					"start_time":     args.String("start_time"),
					"end_time":       args.String("end_time"),
					"filter_pattern": args.String("filter_pattern"),
					"region":         args.String("region"),
				})
			},
		},
		{
			schema: registry.Schema{
				Name:        "execute_log_insights_query",
				Description: "Execute CloudWatch Logs Insights query",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "log_group_names", Type: registry.KindStringList, Description: "List of log group names to query", Required: true},
					{Name: "query_string", Type: registry.KindString, Description: "CloudWatch Insights query", Required: true},
					{Name: "start_time", Type: registry.KindString, Description: "Start time (ISO format)", Required: true},
					{Name: "end_time", Type: registry.KindString, Description: "End time (ISO format)", Required: true},
					{Name: "limit", Type: registry.KindInteger, Description: "Maximum results", Default: 100},
					regionParam,
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return upstream.CallTool(ctx, "execute_log_insights_query", map[string]any{
					"log_group_names": args.StringList("log_group_names"),
					"query_string":    args.String("query_string"),
					"start_time":      args.String("start_time"),
					"end_time":        args.String("end_time"),
					"limit":           args.Int("limit"),
					"region":          args.String("region"),
				})
			},
		},
		{
			schema: registry.Schema{
				Name:        "get_logs_insight_query_results",
				Description: "Get results from a CloudWatch Logs Insights query",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "query_id", Type: registry.KindString, Description: "Query ID from execute_log_insights_query", Required: true},
					regionParam,
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return upstream.CallTool(ctx, "get_logs_insight_query_results", map[string]any{
					"query_id": args.String("query_id"),
					"region":   args.String("region"),
				})
			},
		},
		{
			schema: registry.Schema{
				Name:        "cancel_logs_insight_query",
				Description: "Cancel an in-progress CloudWatch Logs Insights query",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "query_id", Type: registry.KindString, Description: "Query ID to cancel", Required: true},
					regionParam,
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return upstream.CallTool(ctx, "cancel_logs_insight_query", map[string]any{
					"query_id": args.String("query_id"),
					"region":   args.String("region"),
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

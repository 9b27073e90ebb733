package langsmith

import (
	"context"

	"github.com/Coykto/debug-mcp/registry"
)

const category = "langsmith"

// Register adds the LangSmith tools to the registry.
func Register(reg registry.Registrar, client *Client) error {
	tools := []struct {
		schema  registry.Schema
		handler registry.Handler
	}{
		{
			schema: registry.Schema{
				Name:        "list_langsmith_projects",
				Description: "List available LangSmith projects",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "limit", Type: registry.KindInteger, Description: "Maximum number of projects to return (default: 100)", Default: 100},
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return client.ListProjects(ctx, args.Int("limit"))
			},
		},
		{
			schema: registry.Schema{
				Name:        "list_langsmith_runs",
				Description: "List runs/traces from a LangSmith project",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "project_name", Type: registry.KindString, Description: "Project name to query (default: the configured project)", Default: ""},
					{Name: "run_type", Type: registry.KindString, Description: "Filter by type: chain, llm, tool, retriever, embedding, prompt, parser", Default: ""},
					{Name: "is_root", Type: registry.KindBoolean, Description: "If true, return only root runs/top-level traces (default: true)", Default: true},
					{Name: "error_only", Type: registry.KindBoolean, Description: "If true, return only errored runs (default: false)", Default: false},
					{Name: "hours_back", Type: registry.KindInteger, Description: "Number of hours to look back (default: 24)", Default: 24},
					{Name: "limit", Type: registry.KindInteger, Description: "Maximum number of runs to return (default: 100)", Default: 100},
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return client.ListRuns(
					ctx,
					args.String("project_name"),
					args.String("run_type"),
					args.Bool("is_root"),
					args.Bool("error_only"),
					args.Int("hours_back"),
					args.Int("limit"),
				)
			},
		},
		{
			schema: registry.Schema{
				Name:        "search_langsmith_runs",
				Description: "Search recent LangSmith runs for text in their inputs/outputs",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "search_text", Type: registry.KindString, Description: "Text to search for (case-insensitive)", Required: true},
					{Name: "project_name", Type: registry.KindString, Description: "Project name to query (default: the configured project)", Default: ""},
					{Name: "hours_back", Type: registry.KindInteger, Description: "Number of hours to look back (default: 24)", Default: 24},
					{Name: "limit", Type: registry.KindInteger, Description: "Maximum number of runs to scan (default: 50)", Default: 50},
					{Name: "include_children", Type: registry.KindBoolean, Description: "If true, also search child runs (default: true)", Default: true},
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return client.SearchRuns(
					ctx,
					args.String("search_text"),
					args.String("project_name"),
					args.Int("hours_back"),
					args.Int("limit"),
					args.Bool("include_children"),
				)
			},
		},
		{
			schema: registry.Schema{
				Name:        "get_langsmith_run_details",
				Description: "Get a summary of a LangSmith run/trace and cache its full content for field-level access",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "run_id", Type: registry.KindString, Description: "The run ID (UUID) to retrieve", Required: true},
					{Name: "include_children", Type: registry.KindBoolean, Description: "If true, also fetch child runs (default: true)", Default: true},
					{Name: "full_content", Type: registry.KindBoolean, Description: "If true, return the full run content instead of just the summary (default: false)", Default: false},
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return client.GetRunDetails(ctx, args.String("run_id"), args.Bool("include_children"), args.Bool("full_content"))
			},
		},
		{
			schema: registry.Schema{
				Name:        "search_run_content",
				Description: "Search inside a previously fetched run's cached content",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "reference_id", Type: registry.KindString, Description: "Reference ID returned by get_langsmith_run_details", Required: true},
					{Name: "query", Type: registry.KindString, Description: "Text to search for", Required: true},
					{Name: "search_type", Type: registry.KindString, Description: "Search method: auto, keyword or similar (default: auto)", Default: "auto"},
					{Name: "max_results", Type: registry.KindInteger, Description: "Maximum number of matches to return (default: 5)", Default: 5},
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return client.SearchRunContent(
					args.String("reference_id"),
					args.String("query"),
					args.String("search_type"),
					args.Int("max_results"),
				)
			},
		},
		{
			schema: registry.Schema{
				Name:        "get_run_field",
				Description: "Read one field from a previously fetched run using dot notation, e.g. outputs.chat_history.0.content",
				Category:    category,
				Parameters: []registry.Parameter{
					{Name: "reference_id", Type: registry.KindString, Description: "Reference ID returned by get_langsmith_run_details", Required: true},
					{Name: "field_path", Type: registry.KindString, Description: "Dot-notation path to the field", Required: true},
				},
			},
			handler: func(ctx context.Context, args registry.Args) (any, error) {
				return client.GetRunField(args.String("reference_id"), args.String("field_path"))
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

package jira

import (
	"context"

	"github.com/Coykto/debug-mcp/registry"
)

const category = "jira"

// Register adds the Jira tools to the registry.
func Register(reg registry.Registrar, client *Client) error {
	err := reg.Register(registry.Schema{
		Name:        "get_jira_ticket",
		Description: "Get full details of a Jira ticket by issue key",
		Category:    category,
		Parameters: []registry.Parameter{
			{Name: "issue_key", Type: registry.KindString, Description: "The Jira issue key (e.g., IGAL-123)", Required: true},
		},
	}, func(ctx context.Context, args registry.Args) (any, error) {
		return client.GetTicket(ctx, args.String("issue_key"))
	})
	if err != nil {
		return err
	}

	return reg.Register(registry.Schema{
		Name:        "search_jira_tickets",
		Description: "Search for Jira tickets with filters and text search",
		Category:    category,
		Parameters: []registry.Parameter{
			{Name: "query", Type: registry.KindString, Description: "Text to search for in ticket summaries", Default: ""},
			{Name: "issue_type", Type: registry.KindString, Description: "Filter by issue type (e.g., Bug, Story, Task, Epic)", Default: ""},
			{Name: "status", Type: registry.KindString, Description: "Filter by status (e.g., To Do, In Progress, Done)", Default: ""},
			{Name: "assignee", Type: registry.KindString, Description: "Filter by assignee (username or display name)", Default: ""},
			{Name: "limit", Type: registry.KindInteger, Description: "Maximum results to return (default: 10)", Default: 10},
		},
	}, func(ctx context.Context, args registry.Args) (any, error) {
		return client.SearchTickets(
			ctx,
			args.String("query"),
			args.String("issue_type"),
			args.String("status"),
			args.String("assignee"),
			args.Int("limit"),
		)
	})
}

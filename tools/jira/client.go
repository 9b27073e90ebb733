// Package jira registers the Jira ticket tools, backed by the Jira Cloud
// REST API with basic auth.
package jira

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Coykto/debug-mcp/logger"
)

const (
	searchFields = "key,summary,status,assignee,priority,issuetype,created,updated"
	detailFields = "key,summary,description,status,issuetype,priority," +
		"assignee,reporter,labels,created,updated,issuelinks,attachment,parent,subtasks"
)

// Client talks to one Jira Cloud site.
type Client struct {
	baseURL string
	email   string
	token   string
	project string
	http    *http.Client
}

// NewClient creates a Jira client. host may be bare ("example.atlassian.net")
// or carry a scheme already.
func NewClient(host, email, token, project string) *Client {
	baseURL := host
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		email:   email,
		token:   token,
		project: project,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// get performs an authenticated GET and returns the response body. A non-2xx
// status is reported as an apiError carrying the status code.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		logger.Debug("jira request failed", "path", path, "status", resp.StatusCode)
		return nil, &apiError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// apiError is a non-2xx Jira response.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	detail := e.Body
	if messages := gjson.Get(e.Body, "errorMessages").Array(); len(messages) > 0 {
		parts := make([]string, 0, len(messages))
		for _, m := range messages {
			parts = append(parts, m.String())
		}
		detail = strings.Join(parts, "; ")
	}
	return fmt.Sprintf("status %d: %s", e.Status, detail)
}

// SearchTickets runs a JQL search built from the given filters. At least
// one filter must be supplied; that rule lives here rather than in the
// argument validator because it spans fields.
func (c *Client) SearchTickets(ctx context.Context, query, issueType, status, assignee string, limit int) (any, error) {
	if query == "" && issueType == "" && status == "" && assignee == "" {
		return map[string]any{
			"error": "At least one search parameter is required (query, issue_type, status, or assignee)",
		}, nil
	}

	var jqlParts []string
	if c.project != "" {
		jqlParts = append(jqlParts, fmt.Sprintf("project = %q", c.project))
	}
	if query != "" {
		jqlParts = append(jqlParts, fmt.Sprintf("summary ~ %q", query))
	}
	if issueType != "" {
		jqlParts = append(jqlParts, fmt.Sprintf("issuetype = %q", issueType))
	}
	if status != "" {
		jqlParts = append(jqlParts, fmt.Sprintf("status = %q", status))
	}
	if assignee != "" {
		jqlParts = append(jqlParts, fmt.Sprintf("assignee = %q", assignee))
	}
	jql := strings.Join(jqlParts, " AND ") + " ORDER BY updated DESC"

	body, err := c.search(ctx, jql, limit, searchFields)
	if err != nil {
		var apiErr *apiError
		if asAPIError(err, &apiErr) {
			return map[string]any{"error": "Jira API error: " + apiErr.Error()}, nil
		}
		return nil, err
	}

	issues := gjson.GetBytes(body, "issues").Array()
	results := make([]map[string]any, 0, len(issues))
	for _, issue := range issues {
		results = append(results, summarizeIssue(issue))
	}
	return map[string]any{"total": len(results), "results": results}, nil
}

func (c *Client) search(ctx context.Context, jql string, limit int, fields string) ([]byte, error) {
	query := url.Values{}
	query.Set("jql", jql)
	query.Set("maxResults", strconv.Itoa(limit))
	query.Set("fields", fields)
	return c.get(ctx, "/rest/api/2/search", query)
}

// GetTicket fetches full details of one issue. Not-found and permission
// failures come back as error payloads rather than handler failures, so
// the caller sees an explanation instead of a bare execution error.
func (c *Client) GetTicket(ctx context.Context, issueKey string) (any, error) {
	query := url.Values{}
	query.Set("fields", detailFields)

	body, err := c.get(ctx, "/rest/api/2/issue/"+url.PathEscape(issueKey), query)
	if err != nil {
		var apiErr *apiError
		if asAPIError(err, &apiErr) {
			switch apiErr.Status {
			case http.StatusNotFound:
				return map[string]any{"error": fmt.Sprintf("Issue %s not found", issueKey)}, nil
			case http.StatusForbidden:
				return map[string]any{"error": fmt.Sprintf("Permission denied: Cannot access issue %s", issueKey)}, nil
			}
			return map[string]any{"error": "Jira API error: " + apiErr.Error()}, nil
		}
		return nil, err
	}

	issue := gjson.ParseBytes(body)
	details := detailIssue(issue)

	// Epics additionally list their children.
	if strings.EqualFold(issue.Get("fields.issuetype.name").String(), "epic") {
		details["epic_children"] = c.epicChildren(ctx, issue.Get("key").String())
	} else {
		details["epic_children"] = []map[string]any{}
	}
	return details, nil
}

// epicChildren looks up the issues parented under an epic. Failures are
// swallowed: an epic with unreadable children still has useful details.
func (c *Client) epicChildren(ctx context.Context, epicKey string) []map[string]any {
	children := []map[string]any{}

	jql := fmt.Sprintf("parent = %q ORDER BY created ASC", epicKey)
	body, err := c.search(ctx, jql, 50, "key,summary,status")
	if err != nil {
		// Older sites use the Epic Link custom field instead of parent.
		jql = fmt.Sprintf("\"Epic Link\" = %q ORDER BY created ASC", epicKey)
		body, err = c.search(ctx, jql, 50, "key,summary,status")
		if err != nil {
			return children
		}
	}

	for _, child := range gjson.GetBytes(body, "issues").Array() {
		children = append(children, map[string]any{
			"key":     child.Get("key").String(),
			"summary": child.Get("fields.summary").String(),
			"status":  child.Get("fields.status.name").String(),
		})
	}
	return children
}

func asAPIError(err error, target **apiError) bool {
	if e, ok := err.(*apiError); ok {
		*target = e
		return true
	}
	return false
}

func summarizeIssue(issue gjson.Result) map[string]any {
	return map[string]any{
		"key":        issue.Get("key").String(),
		"summary":    issue.Get("fields.summary").String(),
		"status":     issue.Get("fields.status.name").String(),
		"assignee":   nullableString(issue.Get("fields.assignee.displayName")),
		"priority":   nullableString(issue.Get("fields.priority.name")),
		"issue_type": issue.Get("fields.issuetype.name").String(),
		"created":    issue.Get("fields.created").String(),
		"updated":    issue.Get("fields.updated").String(),
	}
}

func detailIssue(issue gjson.Result) map[string]any {
	labels := []string{}
	for _, label := range issue.Get("fields.labels").Array() {
		labels = append(labels, label.String())
	}

	linked := []map[string]any{}
	for _, link := range issue.Get("fields.issuelinks").Array() {
		if outward := link.Get("outwardIssue"); outward.Exists() {
			linked = append(linked, map[string]any{
				"key":     outward.Get("key").String(),
				"type":    link.Get("type.outward").String(),
				"summary": outward.Get("fields.summary").String(),
			})
		} else if inward := link.Get("inwardIssue"); inward.Exists() {
			linked = append(linked, map[string]any{
				"key":     inward.Get("key").String(),
				"type":    link.Get("type.inward").String(),
				"summary": inward.Get("fields.summary").String(),
			})
		}
	}

	attachments := []string{}
	for _, att := range issue.Get("fields.attachment").Array() {
		attachments = append(attachments, att.Get("filename").String())
	}

	var parent any
	if p := issue.Get("fields.parent"); p.Exists() {
		parent = map[string]any{
			"key":     p.Get("key").String(),
			"summary": p.Get("fields.summary").String(),
		}
	}

	subtasks := []map[string]any{}
	for _, sub := range issue.Get("fields.subtasks").Array() {
		subtasks = append(subtasks, map[string]any{
			"key":     sub.Get("key").String(),
			"summary": sub.Get("fields.summary").String(),
			"status":  sub.Get("fields.status.name").String(),
		})
	}

	return map[string]any{
		"key":           issue.Get("key").String(),
		"summary":       issue.Get("fields.summary").String(),
		"description":   nullableString(issue.Get("fields.description")),
		"status":        issue.Get("fields.status.name").String(),
		"issue_type":    issue.Get("fields.issuetype.name").String(),
		"priority":      nullableString(issue.Get("fields.priority.name")),
		"assignee":      nullableString(issue.Get("fields.assignee.displayName")),
		"reporter":      nullableString(issue.Get("fields.reporter.displayName")),
		"labels":        labels,
		"created":       issue.Get("fields.created").String(),
		"updated":       issue.Get("fields.updated").String(),
		"linked_issues": linked,
		"attachments":   attachments,
		"parent":        parent,
		"subtasks":      subtasks,
	}
}

func nullableString(result gjson.Result) any {
	if !result.Exists() || result.Type == gjson.Null {
		return nil
	}
	return result.String()
}

// Package langsmith registers the LangSmith trace debugging tools, backed
// by the LangSmith REST API.
package langsmith

import (
	"bytes"
	"context"
	"encoding/json"
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

// Client talks to one LangSmith instance. Runs fetched through
// GetRunDetails are cached in memory for field-level access.
type Client struct {
	baseURL        string
	apiKey         string
	defaultProject string
	http           *http.Client
	memory         *runMemory
}

// NewClient creates a LangSmith client for the given endpoint.
// defaultProject is used when a tool call does not name a project.
func NewClient(endpoint, apiKey, defaultProject string) *Client {
	return &Client{
		baseURL:        endpoint,
		apiKey:         apiKey,
		defaultProject: defaultProject,
		http:           &http.Client{Timeout: 30 * time.Second},
		memory:         newRunMemory(),
	}
}

func (c *Client) projectOrDefault(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if c.defaultProject != "" {
		return c.defaultProject, nil
	}
	return "", fmt.Errorf("no project specified: pass project_name or configure a default LangSmith project")
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		logger.Debug("langsmith request failed", "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("LangSmith API error: status %d: %s", resp.StatusCode, gjson.GetBytes(raw, "detail").String())
	}
	return raw, nil
}

// ListProjects lists tracer projects.
func (c *Client) ListProjects(ctx context.Context, limit int) (any, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	body, err := c.do(ctx, http.MethodGet, "/api/v1/sessions", query, nil)
	if err != nil {
		return nil, err
	}

	projects := []map[string]any{}
	for _, project := range gjson.ParseBytes(body).Array() {
		projects = append(projects, map[string]any{
			"id":        project.Get("id").String(),
			"name":      project.Get("name").String(),
			"run_count": project.Get("run_count").Int(),
		})
	}
	return map[string]any{"total": len(projects), "projects": projects}, nil
}

// resolveProject finds a project id by name.
func (c *Client) resolveProject(ctx context.Context, name string) (string, error) {
	query := url.Values{}
	query.Set("name", name)

	body, err := c.do(ctx, http.MethodGet, "/api/v1/sessions", query, nil)
	if err != nil {
		return "", err
	}
	projects := gjson.ParseBytes(body).Array()
	if len(projects) == 0 {
		return "", fmt.Errorf("project %q not found", name)
	}
	return projects[0].Get("id").String(), nil
}

// ListRuns lists runs from a project with optional filters. An empty
// projectName falls back to the configured default project.
func (c *Client) ListRuns(ctx context.Context, projectName, runType string, isRoot, errorOnly bool, hoursBack, limit int) (any, error) {
	projectName, err := c.projectOrDefault(projectName)
	if err != nil {
		return nil, err
	}
	projectID, err := c.resolveProject(ctx, projectName)
	if err != nil {
		return nil, err
	}

	request := map[string]any{
		"session":    []string{projectID},
		"is_root":    isRoot,
		"start_time": time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour).Format(time.RFC3339),
		"limit":      limit,
	}
	if runType != "" {
		request["run_type"] = runType
	}
	if errorOnly {
		request["error"] = true
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v1/runs/query", nil, request)
	if err != nil {
		return nil, err
	}

	runs := []map[string]any{}
	for _, run := range gjson.GetBytes(body, "runs").Array() {
		runs = append(runs, summarizeRun(run))
	}
	return map[string]any{"total": len(runs), "runs": runs}, nil
}

// GetRunDetails fetches one run with inputs and outputs, optionally with
// its child runs. The full run is cached in memory under the returned
// reference_id; the response carries a compact summary unless fullContent
// is set, so large traces can be explored with get_run_field and
// search_run_content instead of dumping everything at once.
func (c *Client) GetRunDetails(ctx context.Context, runID string, includeChildren, fullContent bool) (any, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(runID), nil, nil)
	if err != nil {
		return nil, err
	}
	run := gjson.ParseBytes(body)

	details := summarizeRun(run)
	details["inputs"] = decodeField(run.Get("inputs"))
	details["outputs"] = decodeField(run.Get("outputs"))
	if errText := run.Get("error"); errText.Exists() && errText.Type != gjson.Null {
		details["error"] = errText.String()
	}

	summary := extractRunSummary(run)

	if includeChildren {
		children, err := c.childRuns(ctx, run.Get("trace_id").String(), runID)
		if err != nil {
			// A run without readable children is still useful.
			logger.Warn("failed to fetch child runs", "run_id", runID, "error", err)
			children = []map[string]any{}
		}
		details["children"] = children
		summary["child_count"] = len(children)
	}

	if err := c.memory.store(runID, details, summary); err != nil {
		logger.Warn("failed to cache run", "run_id", runID, "error", err)
	}

	result := map[string]any{
		"reference_id": runID,
		"summary":      summary,
		"hint":         "Full content is cached. Use search_run_content to search it or get_run_field to read a specific field.",
	}
	if fullContent {
		result["run"] = details
		result["warning"] = "Full run content can be very large. Prefer get_run_field for targeted access."
	}
	return result, nil
}

// SearchRuns looks for text inside the inputs and outputs of recent root
// runs. Runs whose own payloads miss are optionally searched through their
// child runs.
func (c *Client) SearchRuns(ctx context.Context, searchText, projectName string, hoursBack, limit int, includeChildren bool) (any, error) {
	projectName, err := c.projectOrDefault(projectName)
	if err != nil {
		return nil, err
	}
	projectID, err := c.resolveProject(ctx, projectName)
	if err != nil {
		return nil, err
	}

	request := map[string]any{
		"session":    []string{projectID},
		"is_root":    true,
		"start_time": time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour).Format(time.RFC3339),
		"limit":      limit,
	}
	body, err := c.do(ctx, http.MethodPost, "/api/v1/runs/query", nil, request)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(searchText)
	matches := []map[string]any{}
	for _, run := range gjson.GetBytes(body, "runs").Array() {
		location, snippet, found := searchRunPayloads(run, needle)
		if !found && includeChildren {
			children, err := c.traceRuns(ctx, run.Get("trace_id").String(), run.Get("id").String())
			if err != nil {
				logger.Warn("failed to search child runs", "run_id", run.Get("id").String(), "error", err)
			}
			for _, child := range children {
				childLoc, childSnippet, ok := searchRunPayloads(child, needle)
				if ok {
					location = "child:" + child.Get("name").String() + ":" + childLoc
					snippet = childSnippet
					found = true
					break
				}
			}
		}
		if found {
			matches = append(matches, map[string]any{
				"run_id":          run.Get("id").String(),
				"run_name":        run.Get("name").String(),
				"match_location":  location,
				"context_snippet": snippet,
				"start_time":      run.Get("start_time").String(),
			})
		}
	}

	return map[string]any{
		"query":         searchText,
		"project":       projectName,
		"hours_back":    hoursBack,
		"total_matches": len(matches),
		"matches":       matches,
	}, nil
}

// SearchRunContent searches inside a previously fetched run. Only keyword
// matching is implemented; "similar" and "auto" fall back to it.
func (c *Client) SearchRunContent(referenceID, query, searchType string, maxResults int) (any, error) {
	switch searchType {
	case "", "auto", "keyword", "similar":
	default:
		return nil, fmt.Errorf("unknown search_type %q: use auto, keyword or similar", searchType)
	}
	return c.memory.searchKeyword(referenceID, query, maxResults)
}

// GetRunField reads one dot-notation field from a previously fetched run.
func (c *Client) GetRunField(referenceID, fieldPath string) (any, error) {
	return c.memory.getField(referenceID, fieldPath)
}

func (c *Client) childRuns(ctx context.Context, traceID, parentID string) ([]map[string]any, error) {
	runs, err := c.traceRuns(ctx, traceID, parentID)
	if err != nil {
		return nil, err
	}
	children := []map[string]any{}
	for _, run := range runs {
		children = append(children, summarizeRun(run))
	}
	return children, nil
}

// traceRuns fetches every run in a trace except the parent itself.
func (c *Client) traceRuns(ctx context.Context, traceID, parentID string) ([]gjson.Result, error) {
	if traceID == "" {
		return nil, nil
	}

	request := map[string]any{
		"trace": traceID,
	}
	body, err := c.do(ctx, http.MethodPost, "/api/v1/runs/query", nil, request)
	if err != nil {
		return nil, err
	}

	runs := []gjson.Result{}
	for _, run := range gjson.GetBytes(body, "runs").Array() {
		if run.Get("id").String() == parentID {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func summarizeRun(run gjson.Result) map[string]any {
	summary := map[string]any{
		"id":         run.Get("id").String(),
		"name":       run.Get("name").String(),
		"run_type":   run.Get("run_type").String(),
		"status":     run.Get("status").String(),
		"start_time": run.Get("start_time").String(),
		"end_time":   run.Get("end_time").String(),
		"latency_ms": latencyMillis(run),
	}
	if errText := run.Get("error"); errText.Exists() && errText.Type != gjson.Null {
		summary["error"] = errText.String()
	}
	return summary
}

// extractRunSummary builds the compact view returned instead of full run
// content. Agent-shaped payloads (chat_history, user_query, final_text)
// get extra fields when present.
func extractRunSummary(run gjson.Result) map[string]any {
	summary := summarizeRun(run)

	if tokens := run.Get("total_tokens"); tokens.Exists() && tokens.Type == gjson.Number {
		summary["total_tokens"] = tokens.Int()
	}
	if query := run.Get("inputs.input.user_query"); query.Type == gjson.String {
		summary["user_query"] = query.String()
	}
	if history := run.Get("outputs.chat_history"); history.IsArray() {
		messages := history.Array()
		summary["message_count"] = len(messages)
		toolsCalled := []string{}
		for _, msg := range messages {
			for _, call := range msg.Get("tool_calls").Array() {
				if name := call.Get("name").String(); name != "" {
					toolsCalled = append(toolsCalled, name)
				}
			}
		}
		if len(toolsCalled) > 0 {
			summary["tools_called"] = toolsCalled
		}
	}
	if preview := run.Get("outputs.response.final_text"); preview.Type == gjson.String {
		summary["response_preview"] = truncateText(preview.String(), 500)
	}
	return summary
}

// searchRunPayloads checks a run's inputs, then outputs, for the needle.
func searchRunPayloads(run gjson.Result, needle string) (location, snippet string, found bool) {
	if snip, ok := searchValueForText(run.Get("inputs"), needle); ok {
		return "inputs", snip, true
	}
	if snip, ok := searchValueForText(run.Get("outputs"), needle); ok {
		return "outputs", snip, true
	}
	return "", "", false
}

func searchValueForText(value gjson.Result, needle string) (string, bool) {
	var snippet string
	found := false
	walkStrings(value, "", func(_, text string) bool {
		if strings.Contains(strings.ToLower(text), needle) {
			snippet = matchSnippet(text, needle)
			found = true
			return false
		}
		return true
	})
	return snippet, found
}

// matchSnippet cuts 50 characters of context around the first match, capped
// at 150 characters overall.
func matchSnippet(text, needle string) string {
	idx := strings.Index(strings.ToLower(text), needle)
	if idx < 0 {
		return truncateText(text, 150)
	}

	start := idx - 50
	if start < 0 {
		start = 0
	}
	end := idx + len(needle) + 50
	if end > len(text) {
		end = len(text)
	}

	snippet := text[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet += "..."
	}
	return truncateText(snippet, 150)
}

func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}

func latencyMillis(run gjson.Result) any {
	start, err := time.Parse(time.RFC3339, run.Get("start_time").String())
	if err != nil {
		return nil
	}
	end, err := time.Parse(time.RFC3339, run.Get("end_time").String())
	if err != nil {
		return nil
	}
	return end.Sub(start).Milliseconds()
}

func decodeField(result gjson.Result) any {
	if !result.Exists() || result.Type == gjson.Null {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(result.Raw), &decoded); err != nil {
		return result.String()
	}
	return decoded
}

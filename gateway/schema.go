package gateway

import (
	"context"
	"encoding/json"

	invopop "github.com/invopop/jsonschema"

	"github.com/Coykto/debug-mcp/mcp"
)

// callParams is the argument struct the single gateway tool accepts.
// Both fields are optional: a bare call is a top-level discovery query.
type callParams struct {
	Tool      string `json:"tool,omitempty" jsonschema_description:"Tool to execute, or 'list' to list categories, or 'list:<category>' to list tools in a category. Defaults to 'list'."`
	Arguments string `json:"arguments,omitempty" jsonschema_description:"JSON-encoded arguments for the tool. Defaults to '{}'."`
}

// ToolName is the name of the single tool every transport advertises.
const ToolName = "debug"

const debugDescription = "Single entry point for debugging tools. Call with tool='list' to discover categories, " +
	"tool='list:<category>' to see the tools in one category with their argument schemas, " +
	"or tool='<name>' with JSON arguments to execute. " +
	"Categories: cloudwatch, stepfunctions, langsmith, jira."

// inputSchemaFor derives an MCP input schema from a Go struct. Fields
// tagged omitempty are optional; the rest land in the required list.
func inputSchemaFor[T any]() mcp.InputSchema {
	reflector := invopop.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	raw, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		panic("tool schema reflection failed: " + err.Error())
	}

	var schema mcp.InputSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		panic("tool schema reflection failed: " + err.Error())
	}
	if schema.Required == nil {
		schema.Required = []string{}
	}
	return schema
}

// Definition returns the MCP descriptor for the one tool this server
// advertises.
func Definition() mcp.Tool {
	return mcp.Tool{
		Name:        ToolName,
		Description: debugDescription,
		InputSchema: inputSchemaFor[callParams](),
	}
}

// ParseParams decodes the MCP tool-call arguments into callParams.
func ParseParams(arguments map[string]any) callParams {
	var params callParams
	if v, ok := arguments["tool"].(string); ok {
		params.Tool = v
	}
	if v, ok := arguments["arguments"].(string); ok {
		params.Arguments = v
	}
	return params
}

// CallRaw runs one MCP tool call through the gateway: it pulls the
// gateway params out of the decoded MCP arguments and dispatches.
func (g *Gateway) CallRaw(ctx context.Context, arguments map[string]any) map[string]any {
	params := ParseParams(arguments)
	return g.Call(ctx, params.Tool, params.Arguments)
}

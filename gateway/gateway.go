// Package gateway exposes the registry behind a single callable entry
// point. Callers pass an operation name and a JSON argument blob; the
// gateway routes between discovery and execution and folds every outcome
// into one response envelope: {"result": ...} on success, or
// {"error": true, "message": ...} with optional hints on failure.
package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Coykto/debug-mcp/logger"
	"github.com/Coykto/debug-mcp/registry"
)

const (
	// listOp answers the top-level discovery query.
	listOp = "list"
	// listPrefix answers per-category discovery, as in "list:cloudwatch".
	listPrefix = "list:"
)

// Gateway routes calls against a sealed registry.
type Gateway struct {
	registry *registry.Registry
}

// New creates a gateway over the given registry. The registry is expected
// to be sealed before the gateway starts serving calls.
func New(reg *registry.Registry) *Gateway {
	return &Gateway{registry: reg}
}

// Call dispatches one gateway request. tool defaults to "list" and
// arguments to "{}" so a bare call is a discovery query. The returned
// map is always exactly one of the two envelope shapes, never both.
func (g *Gateway) Call(ctx context.Context, tool string, arguments string) map[string]any {
	if tool == "" {
		tool = listOp
	}
	if arguments == "" {
		arguments = "{}"
	}

	// Arguments must parse before any registry interaction.
	var raw map[string]any
	if err := json.Unmarshal([]byte(arguments), &raw); err != nil {
		return errorEnvelope("Invalid JSON: " + err.Error())
	}

	switch {
	case tool == listOp:
		return map[string]any{"categories": g.registry.ListCategories()}
	case strings.HasPrefix(tool, listPrefix):
		return g.listCategory(strings.TrimPrefix(tool, listPrefix))
	default:
		return g.execute(ctx, tool, raw)
	}
}

func (g *Gateway) listCategory(category string) map[string]any {
	tools, err := g.registry.ListTools(category)
	if err != nil {
		if categoryErr, ok := registry.AsUnknownCategory(err); ok {
			env := errorEnvelope(categoryErr.Error())
			env["available_categories"] = categoryErr.Available
			return env
		}
		return errorEnvelope(err.Error())
	}
	return map[string]any{"tools": tools}
}

func (g *Gateway) execute(ctx context.Context, tool string, raw map[string]any) map[string]any {
	logger.DebugContext(ctx, "executing tool", "tool", tool)

	result, err := g.registry.Execute(ctx, tool, raw)
	if err == nil {
		return map[string]any{"result": result}
	}

	if unknownErr, ok := registry.AsUnknownTool(err); ok {
		env := errorEnvelope(unknownErr.Error())
		env["available_tools"] = g.availableTools(unknownErr)
		return env
	}
	logger.WarnContext(ctx, "tool call failed", "tool", tool, "error", err)
	return errorEnvelope(err.Error())
}

// availableTools prefers near-miss suggestions; with none to offer it
// falls back to the full registered name list so the caller can
// self-correct without a discovery round trip.
func (g *Gateway) availableTools(err *registry.UnknownToolError) []string {
	if len(err.Suggestions) > 0 {
		return err.Suggestions
	}
	return g.registry.Names()
}

func errorEnvelope(message string) map[string]any {
	return map[string]any{
		"error":   true,
		"message": message,
	}
}

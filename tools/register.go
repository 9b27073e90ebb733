// Package tools assembles the per-category registration tables into one
// sealed registry. Categories whose backends are not configured are
// skipped entirely, so discovery only ever advertises callable tools.
package tools

import (
	"github.com/Coykto/debug-mcp/config"
	"github.com/Coykto/debug-mcp/logger"
	"github.com/Coykto/debug-mcp/registry"
	"github.com/Coykto/debug-mcp/tools/cloudwatch"
	"github.com/Coykto/debug-mcp/tools/jira"
	"github.com/Coykto/debug-mcp/tools/langsmith"
	"github.com/Coykto/debug-mcp/tools/stepfunctions"
)

// Deps carries the external collaborators the AWS-backed categories need.
// The REST-backed categories build their clients from config.
type Deps struct {
	CloudWatch    cloudwatch.Caller
	StepFunctions stepfunctions.Caller
}

// RegisterAll registers every configured category, applies the
// exposed-tool filter, and seals the registry. After it returns the
// registry is read-only.
func RegisterAll(reg *registry.Registry, cfg *config.Config, deps Deps) error {
	target := registry.Registrar(reg)
	if allowed := cfg.ExposedTools(); allowed != nil {
		target = registry.Filtered(reg, allowed)
	}

	if cfg.AWS.Configured() {
		if deps.CloudWatch != nil {
			if err := cloudwatch.Register(target, deps.CloudWatch); err != nil {
				return err
			}
		}
		if deps.StepFunctions != nil {
			if err := stepfunctions.Register(target, deps.StepFunctions); err != nil {
				return err
			}
		}
	} else {
		logger.Info("AWS region not configured, skipping cloudwatch and stepfunctions tools")
	}

	if cfg.LangSmith.Configured() {
		client := langsmith.NewClient(cfg.LangSmith.Endpoint, cfg.LangSmith.APIKey, cfg.LangSmith.Project)
		if err := langsmith.Register(target, client); err != nil {
			return err
		}
	} else {
		logger.Info("LangSmith API key not configured, skipping langsmith tools")
	}

	if cfg.Jira.Configured() {
		client := jira.NewClient(cfg.Jira.Host, cfg.Jira.Email, cfg.Jira.APIToken, cfg.Jira.Project)
		if err := jira.Register(target, client); err != nil {
			return err
		}
	} else {
		logger.Info("Jira credentials not configured, skipping jira tools")
	}

	reg.Seal()
	logger.Info("tool registry sealed", "tools", reg.Len())
	return nil
}

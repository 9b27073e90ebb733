package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Coykto/debug-mcp/config"
	"github.com/Coykto/debug-mcp/gateway"
	"github.com/Coykto/debug-mcp/logger"
	"github.com/Coykto/debug-mcp/proxy"
	"github.com/Coykto/debug-mcp/registry"
	"github.com/Coykto/debug-mcp/tools"
	transporthttp "github.com/Coykto/debug-mcp/transport/http"
	"github.com/Coykto/debug-mcp/transport/stdio"
)

var (
	flagConfigPath string
	flagAWSRegion  string
	flagAWSProfile string
)

func main() {
	root := &cobra.Command{
		Use:           "debug-mcp",
		Short:         "Single-tool MCP gateway for CloudWatch, Step Functions, LangSmith and Jira debugging",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVar(&flagConfigPath, "config", "", "path to the configuration file")
	root.Flags().StringVar(&flagAWSRegion, "aws-region", "", "AWS region for the CloudWatch and Step Functions backends")
	root.Flags().StringVar(&flagAWSProfile, "aws-profile", "", "AWS profile for the CloudWatch and Step Functions backends")

	if err := root.Execute(); err != nil {
		log.Fatalf("debug-mcp: %+v", err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	configPath := flagConfigPath
	if configPath == "" {
		resolved, err := config.ResolveConfigPath()
		if err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
		configPath = resolved
	}
	if err := config.EnsureDefaultConfig(configPath); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if flagAWSRegion != "" {
		cfg.AWS.Region = flagAWSRegion
	}
	if flagAWSProfile != "" {
		cfg.AWS.Profile = flagAWSProfile
	}
	if os.Getenv("MCP_DEBUG") == "true" {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
	}

	if err := logger.Init(logger.GetLevelFromString(cfg.Logging.Level), logger.Format(cfg.Logging.Format), cfg.Logging.Path); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, closeProxies := startProxies(ctx, cfg)
	defer closeProxies()

	reg := registry.New()
	if err := tools.RegisterAll(reg, cfg, deps); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	gw := gateway.New(reg)

	go func() {
		if err := config.Watch(ctx, configPath, func(next *config.Config) {
			logger.SetDefaultLevel(logger.GetLevelFromString(next.Logging.Level))
			logger.Info("Configuration reloaded", "path", configPath, "log_level", next.Logging.Level)
		}); err != nil {
			logger.Warn("Config watcher stopped", "error", err)
		}
	}()

	return serveTransports(ctx, cfg, gw, stop)
}

// startProxies launches the upstream MCP servers the AWS categories proxy
// to. A proxy that fails to start disables its category instead of taking
// down the whole server.
func startProxies(ctx context.Context, cfg *config.Config) (tools.Deps, func()) {
	var deps tools.Deps
	var clients []*proxy.Client

	if !cfg.AWS.Configured() {
		return deps, func() {}
	}

	env := []string{
		"AWS_REGION=" + cfg.AWS.Region,
		"FASTMCP_LOG_LEVEL=ERROR",
	}
	if cfg.AWS.Profile != "" {
		env = append(env, "AWS_PROFILE="+cfg.AWS.Profile)
	}

	cloudwatchClient := proxy.New("cloudwatch", "uvx", []string{"awslabs.cloudwatch-mcp-server@latest"}, env)
	if err := cloudwatchClient.Start(ctx); err != nil {
		logger.Error("CloudWatch proxy failed to start, category disabled", "error", err)
	} else {
		deps.CloudWatch = cloudwatchClient
		clients = append(clients, cloudwatchClient)
	}

	stepfunctionsClient := proxy.New("stepfunctions", "uvx", []string{"awslabs.stepfunctions-tool-mcp-server@latest"}, env)
	if err := stepfunctionsClient.Start(ctx); err != nil {
		logger.Error("Step Functions proxy failed to start, category disabled", "error", err)
	} else {
		deps.StepFunctions = stepfunctionsClient
		clients = append(clients, stepfunctionsClient)
	}

	return deps, func() {
		for _, client := range clients {
			if err := client.Close(); err != nil {
				logger.Warn("Proxy shutdown error", "proxy", client.Name(), "error", err)
			}
		}
	}
}

func serveTransports(ctx context.Context, cfg *config.Config, gw *gateway.Gateway, stop context.CancelFunc) error {
	errCh := make(chan error, len(cfg.Transports))
	running := 0

	for _, tr := range cfg.Transports {
		if !tr.Enabled {
			continue
		}
		switch tr.Type {
		case "stdio":
			logger.Info("Starting MCP server in stdio mode")
			running++
			go func() {
				errCh <- stdio.NewServer(gw).Start(ctx)
			}()
		case "streamable_http":
			logger.Info("Starting MCP server in streamable HTTP mode", "port", cfg.Server.Port)
			running++
			server := transporthttp.NewServer(cfg, gw)
			go func() {
				errCh <- server.Start(ctx)
			}()
		default:
			logger.Warn("Unknown transport type, skipping", "type", tr.Type)
		}
	}
	if running == 0 {
		return fmt.Errorf("no transports enabled")
	}

	// The first transport to exit takes the rest down with it.
	for i := 0; i < running; i++ {
		err := <-errCh
		stop()
		if err != nil {
			return err
		}
	}
	return nil
}

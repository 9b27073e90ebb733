package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Coykto/debug-mcp/mcp"
)

// Config represents the MCP server configuration
type Config struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Description string      `json:"description"`
	Server      Server      `json:"server"`
	Transports  []Transport `json:"transports"`
	Logging     Logging     `json:"logging"`
	AWS         AWS         `json:"aws"`
	Jira        Jira        `json:"jira"`
	LangSmith   LangSmith   `json:"langsmith"`
	Tools       Tools       `json:"tools"`
}

// Server represents server configuration
type Server struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Debug bool   `json:"debug"`
}

// Transport represents a transport configuration
type Transport struct {
	Type    string            `json:"type"`
	Enabled bool              `json:"enabled"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Logging represents logging configuration
type Logging struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Path   string `json:"path"`
}

// AWS holds settings for the CloudWatch and Step Functions backends.
type AWS struct {
	Region  string `json:"region"`
	Profile string `json:"profile,omitempty"`
}

// Configured reports whether AWS-backed tools can be registered.
func (a AWS) Configured() bool {
	return a.Region != ""
}

// Jira holds the Jira REST API credentials.
type Jira struct {
	Host     string `json:"host"`
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
	Project  string `json:"project,omitempty"`
}

// Configured reports whether Jira tools can be registered.
func (j Jira) Configured() bool {
	return j.Host != "" && j.Email != "" && j.APIToken != ""
}

// LangSmith holds the LangSmith API settings. Project is the default
// tracer project used when a tool call does not name one.
type LangSmith struct {
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint"`
	Project  string `json:"project,omitempty"`
}

// Configured reports whether LangSmith tools can be registered.
func (l LangSmith) Configured() bool {
	return l.APIKey != ""
}

// Tools controls which registered tools the gateway exposes.
type Tools struct {
	// Exposed is the explicit tool allow-list. Empty means the default
	// set; the single value "all" disables filtering entirely.
	Exposed []string `json:"exposed"`
}

// defaultTools is the set exposed when no explicit filter is configured.
// It keeps the advertised surface small for callers that only need the
// AWS-side debugging workflow.
var defaultTools = []string{
	"describe_log_groups",
	"analyze_log_group",
	"execute_log_insights_query",
	"get_logs_insight_query_results",
	"cancel_logs_insight_query",
	"list_state_machines",
	"get_state_machine_definition",
	"list_step_function_executions",
	"get_step_function_execution_details",
	"search_step_function_executions",
}

// DefaultTools returns a copy of the default exposed-tool set.
func DefaultTools() []string {
	return slices.Clone(defaultTools)
}

// ExposedTools resolves the tool filter. A nil return means no filtering:
// every registered tool is exposed.
func (c *Config) ExposedTools() []string {
	if len(c.Tools.Exposed) == 0 {
		return DefaultTools()
	}
	if len(c.Tools.Exposed) == 1 && c.Tools.Exposed[0] == "all" {
		return nil
	}
	return slices.Clone(c.Tools.Exposed)
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return &Config{
		Name:        mcp.ServerName,
		Version:     mcp.ServerVersion,
		Description: "Single-endpoint MCP gateway for debugging tools",
		Server: Server{
			Host:  "localhost",
			Port:  9080,
			Debug: false,
		},
		Transports: []Transport{
			{
				Type:    "stdio",
				Enabled: true,
			},
			{
				Type:    "streamable_http",
				Enabled: false,
				URL:     "http://localhost:9080/mcp",
				Headers: map[string]string{
					"Accept":               "application/json, text/event-stream",
					"Content-Type":         "application/json",
					"MCP-Protocol-Version": mcp.ProtocolVersion,
				},
			},
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
			Path:   filepath.Join(home, ".debug-mcp", "logs", "mcp.log"),
		},
		AWS: AWS{
			Region: "us-east-1",
		},
		LangSmith: LangSmith{
			Endpoint: "https://api.smith.langchain.com",
		},
	}
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Override with environment variables (highest priority).
	applyEnvOverrides(cfg)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %v", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if portStr := os.Getenv("MCP_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
		} else {
			log.Printf("warning: ignoring invalid MCP_PORT value %q: %v", portStr, err)
		}
	}

	if host := os.Getenv("MCP_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if debug := os.Getenv("MCP_DEBUG"); debug != "" {
		if parsed, err := strconv.ParseBool(debug); err == nil {
			cfg.Server.Debug = parsed
		} else {
			log.Printf("warning: ignoring invalid MCP_DEBUG value %q: %v", debug, err)
		}
	}

	if logLevel := os.Getenv("MCP_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if logPath := os.Getenv("MCP_LOG_PATH"); logPath != "" {
		cfg.Logging.Path = logPath
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWS.Region = region
	}

	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		cfg.AWS.Profile = profile
	}

	if host := os.Getenv("JIRA_HOST"); host != "" {
		cfg.Jira.Host = host
	}

	if email := os.Getenv("JIRA_EMAIL"); email != "" {
		cfg.Jira.Email = email
	}

	if token := os.Getenv("JIRA_API_TOKEN"); token != "" {
		cfg.Jira.APIToken = token
	}

	if project := os.Getenv("JIRA_PROJECT"); project != "" {
		cfg.Jira.Project = project
	}

	if apiKey := os.Getenv("LANGSMITH_API_KEY"); apiKey != "" {
		cfg.LangSmith.APIKey = apiKey
	}

	if endpoint := os.Getenv("LANGSMITH_ENDPOINT"); endpoint != "" {
		cfg.LangSmith.Endpoint = endpoint
	}

	if project := os.Getenv("LANGSMITH_PROJECT"); project != "" {
		cfg.LangSmith.Project = project
	}

	if exposed := os.Getenv("DEBUG_MCP_TOOLS"); exposed != "" {
		cfg.Tools.Exposed = parseCSV(exposed)
	}
}

// Normalize canonicalizes config values so downstream validation and runtime
// logic operate on stable representations.
func (c *Config) Normalize() {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Path = strings.TrimSpace(c.Logging.Path)
	c.AWS.Region = strings.TrimSpace(c.AWS.Region)
	c.AWS.Profile = strings.TrimSpace(c.AWS.Profile)
	c.Jira.Host = strings.TrimSuffix(strings.TrimSpace(c.Jira.Host), "/")
	c.Jira.Email = strings.TrimSpace(c.Jira.Email)
	c.Jira.APIToken = strings.TrimSpace(c.Jira.APIToken)
	c.Jira.Project = strings.TrimSpace(c.Jira.Project)
	c.LangSmith.APIKey = strings.TrimSpace(c.LangSmith.APIKey)
	c.LangSmith.Endpoint = strings.TrimSuffix(strings.TrimSpace(c.LangSmith.Endpoint), "/")
	c.LangSmith.Project = strings.TrimSpace(c.LangSmith.Project)
	c.Tools.Exposed = dedupeStrings(c.Tools.Exposed)
	for i := range c.Transports {
		c.Transports[i].Type = strings.ToLower(strings.TrimSpace(c.Transports[i].Type))
		c.Transports[i].URL = strings.TrimSpace(c.Transports[i].URL)
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid port number")
	}

	if c.Server.Host == "" {
		return errors.New("host cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return errors.New("invalid log level")
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return errors.New("invalid log format")
	}

	if c.Logging.Path == "" {
		return errors.New("log path cannot be empty")
	}

	if len(c.Transports) == 0 {
		return errors.New("at least one transport must be enabled")
	}

	validTransportTypes := map[string]bool{
		"stdio":           true,
		"streamable_http": true,
	}

	enabledTransports := 0
	for _, t := range c.Transports {
		if !validTransportTypes[t.Type] {
			return fmt.Errorf("invalid transport type: %s", t.Type)
		}
		if t.Enabled {
			enabledTransports++
		}
	}

	if enabledTransports == 0 {
		return errors.New("at least one transport must be enabled")
	}

	if len(c.Tools.Exposed) > 1 && slices.Contains(c.Tools.Exposed, "all") {
		return errors.New(`tool filter "all" cannot be combined with explicit tool names`)
	}

	return nil
}

// ResolveConfigPath returns the path that should be used for configuration.
func ResolveConfigPath() (string, error) {
	// First check environment variable
	if path := strings.TrimSpace(os.Getenv("MCP_CONFIG_PATH")); path != "" {
		return path, nil
	}

	// Then check config/mcp_config.json in current directory
	if _, err := os.Stat("config/mcp_config.json"); err == nil {
		return "config/mcp_config.json", nil
	}

	// Finally check home directory
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".debug-mcp", "config", "mcp_config.json"), nil
}

// EnsureDefaultConfig creates a default config file if one does not exist.
func EnsureDefaultConfig(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path cannot be empty")
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	defaultConfig := NewConfig()
	defaultConfig.Normalize()
	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func dedupeStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/codeflow-cli/codeflow/errors"
	"gopkg.in/yaml.v3"
)

// FilesystemAccess restricts what the workspace index and the file
// capability may touch. Hidden paths are invisible to every tool;
// read-only paths can be read but never mutated.
type FilesystemAccess struct {
	Hidden   []string `yaml:"hidden"`
	ReadOnly []string `yaml:"read_only"`
}

// MCPServer describes an external Model Context Protocol server whose
// tools are surfaced into the registry.
type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Toolset is a named group of tool names the agent may be limited to.
type Toolset struct {
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

// Retry bounds how often a failing model call is retried before the run
// gives up with a transport failure.
type Retry struct {
	Attempts  int `yaml:"attempts"`
	BackoffMS int `yaml:"backoff_ms"`
}

// Logging selects the structured log level and optional file sink.
type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config is the merged user-level and project-level configuration.
type Config struct {
	LLMClient            string           `yaml:"llm"`
	Model                string           `yaml:"model"`
	Toolsets             []Toolset        `yaml:"toolsets"`
	AdditionalMCPServers []MCPServer      `yaml:"additional_mcp_servers"`
	AllowedCommands      []string         `yaml:"allowed_commands"`
	FilesystemAccess     FilesystemAccess `yaml:"filesystem_access"`

	// Orchestrator budgets and timeouts.
	MaxSteps           int   `yaml:"max_steps"`
	IdleSteps          int   `yaml:"idle_steps"`
	PlanTimeoutSeconds int   `yaml:"plan_timeout_seconds"`
	ConfirmTimeoutSecs int   `yaml:"confirm_timeout_seconds"`
	ValidationRetries  int   `yaml:"validation_retries"`
	Retry              Retry `yaml:"retry"`

	// Handbook is the markdown file receiving one appended record per
	// applied change. Empty disables the append.
	Handbook string `yaml:"handbook"`

	Logging Logging `yaml:"logging"`
}

const (
	defaultMaxSteps          = 20
	defaultIdleSteps         = 2
	defaultPlanTimeout       = 120
	defaultConfirmTimeout    = 300
	defaultValidationRetries = 3
	defaultRetryAttempts     = 3
	defaultRetryBackoffMS    = 500
)

// LoadConfig loads configuration from the user's home directory and the
// current working directory, with the latter taking precedence.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// The agent's own state directory is never shown to the model.
	cfg.FilesystemAccess.Hidden = append(cfg.FilesystemAccess.Hidden, ".codeflow", ".codeflow/**")

	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".codeflow", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".codeflow", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites fields present in the YAML, which gives a
	// simple merge where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) applyDefaults() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = defaultMaxSteps
	}
	if c.IdleSteps <= 0 {
		c.IdleSteps = defaultIdleSteps
	}
	if c.PlanTimeoutSeconds <= 0 {
		c.PlanTimeoutSeconds = defaultPlanTimeout
	}
	if c.ConfirmTimeoutSecs <= 0 {
		c.ConfirmTimeoutSecs = defaultConfirmTimeout
	}
	if c.ValidationRetries <= 0 {
		c.ValidationRetries = defaultValidationRetries
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = defaultRetryAttempts
	}
	if c.Retry.BackoffMS <= 0 {
		c.Retry.BackoffMS = defaultRetryBackoffMS
	}
}

// PlanTimeout returns the model-call timeout as a duration.
func (c *Config) PlanTimeout() time.Duration {
	return time.Duration(c.PlanTimeoutSeconds) * time.Second
}

// ConfirmTimeout returns the confirmation-gate timeout as a duration.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSecs) * time.Second
}

// RetryBackoff returns the base backoff between model-call retries.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Retry.BackoffMS) * time.Millisecond
}

// GetToolset finds a toolset by name. An empty name selects "default",
// and a missing "default" toolset means every registered tool is allowed.
func (c *Config) GetToolset(name string) (*Toolset, error) {
	if name == "" {
		name = "default"
	}
	for i := range c.Toolsets {
		if c.Toolsets[i].Name == name {
			return &c.Toolsets[i], nil
		}
	}
	if name == "default" {
		// No toolsets configured at all: allow everything.
		return &Toolset{Name: "default"}, nil
	}
	// Fall back to default if a specific toolset was requested but not found.
	return c.GetToolset("default")
}

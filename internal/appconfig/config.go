package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/icoder/internal/executor"
	"pkt.systems/icoder/internal/gateway"
	"pkt.systems/icoder/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	Gateway       GatewayConfig   `mapstructure:"gateway" yaml:"gateway"`
	Executor      ExecutorConfig  `mapstructure:"executor" yaml:"executor"`
	Workspace     WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Agent         AgentConfig     `mapstructure:"agent" yaml:"agent"`
	HTTP          HTTPConfig      `mapstructure:"http" yaml:"http"`
	SSH           SSHConfig       `mapstructure:"ssh" yaml:"ssh"`
	Logging       LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// GatewayConfig configures the chat-completions endpoint.
type GatewayConfig struct {
	BaseURL               string  `mapstructure:"base_url" yaml:"base_url"`
	APIKey                string  `mapstructure:"api_key" yaml:"api_key"`
	APIKeyEnv             string  `mapstructure:"api_key_env" yaml:"api_key_env"`
	Model                 string  `mapstructure:"model" yaml:"model"`
	MaxTokens             int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature           float64 `mapstructure:"temperature" yaml:"temperature"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// ExecutorConfig configures shell command execution.
type ExecutorConfig struct {
	Shell          string          `mapstructure:"shell" yaml:"shell"`
	TimeoutSeconds int             `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxOutputBytes int             `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
	DevServer      DevServerConfig `mapstructure:"dev_server" yaml:"dev_server"`
}

// DevServerConfig configures dev-server discovery.
type DevServerConfig struct {
	Mode        string `mapstructure:"mode" yaml:"mode"`
	Trigger     string `mapstructure:"trigger" yaml:"trigger"`
	ExtraArgs   string `mapstructure:"extra_args" yaml:"extra_args"`
	DefaultPort int    `mapstructure:"default_port" yaml:"default_port"`
	URLTemplate string `mapstructure:"url_template" yaml:"url_template"`
}

// Dev-server discovery modes.
const (
	DevServerOff  = "off"
	DevServerPort = "port"
)

// WorkspaceConfig configures the preview and workspace roots.
type WorkspaceConfig struct {
	PreviewRoot   string `mapstructure:"preview_root" yaml:"preview_root"`
	WorkspaceRoot string `mapstructure:"workspace_root" yaml:"workspace_root"`
	PreviewURL    string `mapstructure:"preview_url" yaml:"preview_url"`
}

// AgentConfig controls agent turn behavior.
type AgentConfig struct {
	CommandDir      string `mapstructure:"command_dir" yaml:"command_dir"`
	HistoryMax      int    `mapstructure:"history_max" yaml:"history_max"`
	SystemPrompt    string `mapstructure:"system_prompt" yaml:"system_prompt"`
	DisableGreeting bool   `mapstructure:"disable_greeting" yaml:"disable_greeting"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr    string `mapstructure:"addr" yaml:"addr"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// SSHConfig configures the SSH chat server.
type SSHConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr        string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath string `mapstructure:"host_key_path" yaml:"host_key_path"`

	// AuthorizedKeysPath lists the public keys allowed to connect.
	AuthorizedKeysPath string `mapstructure:"authorized_keys_path" yaml:"authorized_keys_path"`
	Prompt             string `mapstructure:"prompt" yaml:"prompt"`
}

// LoggingConfig controls audit logging behavior.
type LoggingConfig struct {
	DisableAuditTrails bool `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	stateDir := filepath.Join(home, ".icoder")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Gateway: GatewayConfig{
			BaseURL:               gateway.DefaultBaseURL,
			APIKey:                "",
			APIKeyEnv:             "MISTRAL_API_KEY",
			Model:                 gateway.DefaultModel,
			MaxTokens:             gateway.DefaultMaxTokens,
			Temperature:           gateway.DefaultTemperature,
			RequestTimeoutSeconds: 120,
		},
		Executor: ExecutorConfig{
			Shell:          "/bin/sh",
			TimeoutSeconds: int(executor.DefaultTimeout.Seconds()),
			MaxOutputBytes: executor.DefaultMaxOutputBytes,
			DevServer: DevServerConfig{
				Mode:        DevServerOff,
				Trigger:     "npm run dev",
				ExtraArgs:   "-- --host 0.0.0.0 --port 5174",
				DefaultPort: 5174,
				URLTemplate: "http://localhost:{port}",
			},
		},
		Workspace: WorkspaceConfig{
			PreviewRoot:   filepath.Join(stateDir, "preview"),
			WorkspaceRoot: filepath.Join(stateDir, "workspace"),
			PreviewURL:    "http://localhost:3001/preview/index.html",
		},
		Agent: AgentConfig{
			CommandDir: filepath.Join(stateDir, "workspace"),
			HistoryMax: schema.DefaultHistoryMax,
		},
		HTTP: HTTPConfig{
			Addr:    ":3001",
			BaseURL: "",
		},
		SSH: SSHConfig{
			Enabled:            false,
			Addr:               ":3022",
			HostKeyPath:        filepath.Join(stateDir, "ssh_host_key"),
			AuthorizedKeysPath: filepath.Join(stateDir, "authorized_keys"),
			Prompt:             "> ",
		},
		Logging: LoggingConfig{
			DisableAuditTrails: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".icoder", "config.yaml"), nil
}

// ResolveAPIKey returns the configured API key, falling back to the
// environment variable named by APIKeyEnv.
func (c GatewayConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// DevServerDetector builds the configured dev-server discovery strategy.
func (c ExecutorConfig) DevServerDetector() executor.DevServerDetector {
	if c.DevServer.Mode != DevServerPort {
		return executor.NoDevServer{}
	}
	return executor.PortSniffer{
		Trigger:     c.DevServer.Trigger,
		ExtraArgs:   c.DevServer.ExtraArgs,
		DefaultPort: c.DevServer.DefaultPort,
		URLTemplate: c.DevServer.URLTemplate,
	}
}

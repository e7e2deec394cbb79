package appconfig

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ICODER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("gateway.base_url", cfg.Gateway.BaseURL)
	v.SetDefault("gateway.api_key", cfg.Gateway.APIKey)
	v.SetDefault("gateway.api_key_env", cfg.Gateway.APIKeyEnv)
	v.SetDefault("gateway.model", cfg.Gateway.Model)
	v.SetDefault("gateway.max_tokens", cfg.Gateway.MaxTokens)
	v.SetDefault("gateway.temperature", cfg.Gateway.Temperature)
	v.SetDefault("gateway.request_timeout_seconds", cfg.Gateway.RequestTimeoutSeconds)
	v.SetDefault("executor.shell", cfg.Executor.Shell)
	v.SetDefault("executor.timeout_seconds", cfg.Executor.TimeoutSeconds)
	v.SetDefault("executor.max_output_bytes", cfg.Executor.MaxOutputBytes)
	v.SetDefault("executor.dev_server.mode", cfg.Executor.DevServer.Mode)
	v.SetDefault("executor.dev_server.trigger", cfg.Executor.DevServer.Trigger)
	v.SetDefault("executor.dev_server.extra_args", cfg.Executor.DevServer.ExtraArgs)
	v.SetDefault("executor.dev_server.default_port", cfg.Executor.DevServer.DefaultPort)
	v.SetDefault("executor.dev_server.url_template", cfg.Executor.DevServer.URLTemplate)
	v.SetDefault("workspace.preview_root", cfg.Workspace.PreviewRoot)
	v.SetDefault("workspace.workspace_root", cfg.Workspace.WorkspaceRoot)
	v.SetDefault("workspace.preview_url", cfg.Workspace.PreviewURL)
	v.SetDefault("agent.command_dir", cfg.Agent.CommandDir)
	v.SetDefault("agent.history_max", cfg.Agent.HistoryMax)
	v.SetDefault("agent.system_prompt", cfg.Agent.SystemPrompt)
	v.SetDefault("agent.disable_greeting", cfg.Agent.DisableGreeting)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_url", cfg.HTTP.BaseURL)
	v.SetDefault("ssh.enabled", cfg.SSH.Enabled)
	v.SetDefault("ssh.addr", cfg.SSH.Addr)
	v.SetDefault("ssh.host_key_path", cfg.SSH.HostKeyPath)
	v.SetDefault("ssh.authorized_keys_path", cfg.SSH.AuthorizedKeysPath)
	v.SetDefault("ssh.prompt", cfg.SSH.Prompt)
	v.SetDefault("logging.disable_audit_trails", cfg.Logging.DisableAuditTrails)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if err := validateURL("gateway.base_url", cfg.Gateway.BaseURL, true); err != nil {
		return err
	}
	if err := validateURL("http.base_url", cfg.HTTP.BaseURL, false); err != nil {
		return err
	}
	if cfg.Gateway.MaxTokens < 0 {
		return fmt.Errorf("gateway.max_tokens must not be negative")
	}
	if cfg.Gateway.Temperature < 0 || cfg.Gateway.Temperature > 2 {
		return fmt.Errorf("gateway.temperature must be between 0 and 2")
	}
	if cfg.Executor.TimeoutSeconds <= 0 {
		return fmt.Errorf("executor.timeout_seconds must be positive")
	}
	if cfg.Agent.HistoryMax < 0 {
		return fmt.Errorf("agent.history_max must not be negative")
	}
	if strings.TrimSpace(cfg.Workspace.PreviewRoot) == "" {
		return fmt.Errorf("workspace.preview_root is required")
	}
	if strings.TrimSpace(cfg.Workspace.WorkspaceRoot) == "" {
		return fmt.Errorf("workspace.workspace_root is required")
	}
	if cfg.SSH.Enabled && strings.TrimSpace(cfg.SSH.AuthorizedKeysPath) == "" {
		return fmt.Errorf("ssh.authorized_keys_path is required when ssh is enabled")
	}
	switch cfg.Executor.DevServer.Mode {
	case DevServerOff, "":
	case DevServerPort:
		if !strings.Contains(cfg.Executor.DevServer.URLTemplate, "{port}") {
			return fmt.Errorf("executor.dev_server.url_template must contain {port}")
		}
	default:
		return fmt.Errorf("unsupported executor.dev_server.mode %q", cfg.Executor.DevServer.Mode)
	}
	return nil
}

func validateURL(key, raw string, required bool) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return fmt.Errorf("%s is required", key)
		}
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must include scheme and host (e.g. https://example.com)", key)
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Gateway.APIKey = expandEnv(cfg.Gateway.APIKey)
	cfg.Executor.Shell = expandEnv(cfg.Executor.Shell)
	cfg.Workspace.PreviewRoot = expandEnv(cfg.Workspace.PreviewRoot)
	cfg.Workspace.WorkspaceRoot = expandEnv(cfg.Workspace.WorkspaceRoot)
	cfg.Agent.CommandDir = expandEnv(cfg.Agent.CommandDir)
	cfg.SSH.HostKeyPath = expandEnv(cfg.SSH.HostKeyPath)
	cfg.SSH.AuthorizedKeysPath = expandEnv(cfg.SSH.AuthorizedKeysPath)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

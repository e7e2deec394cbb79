package schema

import (
	"errors"
	"os"
	"path/filepath"
)

// ServiceConfig defines defaults and limits for the core service.
type ServiceConfig struct {
	// CommandDir is where agent and terminal commands run.
	CommandDir string
	// HistoryMax bounds the flattened chat history fed into prompts, in bytes.
	HistoryMax int
	// SystemPrompt overrides the built-in agent contract prompt.
	SystemPrompt string
	// DisableGreeting skips the initial agent message in new sessions.
	DisableGreeting bool
	// DisableAuditLogging disables audit trail debug logs for commands.
	DisableAuditLogging bool
}

// DefaultHistoryMax is the default flattened history limit.
const DefaultHistoryMax = 64 * 1024

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.CommandDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.CommandDir = filepath.Join(home, ".icoder", "workspace")
	}
	if cfg.HistoryMax == 0 {
		cfg.HistoryMax = DefaultHistoryMax
	}
	if cfg.HistoryMax < 0 {
		return ServiceConfig{}, errors.New("history max must not be negative")
	}
	return cfg, nil
}

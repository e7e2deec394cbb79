package main

import (
	"context"
	"strings"
	"time"

	"pkt.systems/icoder/core"
	"pkt.systems/icoder/internal/appconfig"
	"pkt.systems/icoder/internal/backendclient"
	"pkt.systems/icoder/internal/executor"
	"pkt.systems/icoder/internal/gateway"
	"pkt.systems/icoder/internal/workspace"
	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

func serviceConfig(cfg appconfig.Config) schema.ServiceConfig {
	return schema.ServiceConfig{
		CommandDir:          cfg.Agent.CommandDir,
		HistoryMax:          cfg.Agent.HistoryMax,
		SystemPrompt:        cfg.Agent.SystemPrompt,
		DisableGreeting:     cfg.Agent.DisableGreeting,
		DisableAuditLogging: cfg.Logging.DisableAuditTrails,
	}
}

func newGateway(cfg appconfig.GatewayConfig) *gateway.Client {
	return gateway.New(gateway.Config{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.ResolveAPIKey(),
		Model:          cfg.Model,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	})
}

// newExecutor runs requests without a working directory in the preview root.
func newExecutor(cfg appconfig.Config, previewRoot string) *executor.Executor {
	return executor.New(executor.Config{
		Shell:          cfg.Executor.Shell,
		Timeout:        time.Duration(cfg.Executor.TimeoutSeconds) * time.Second,
		DefaultDir:     previewRoot,
		MaxOutputBytes: cfg.Executor.MaxOutputBytes,
		DevServer:      cfg.Executor.DevServerDetector(),
	})
}

func newMaterializer(cfg appconfig.WorkspaceConfig) (*workspace.Materializer, error) {
	return workspace.New(workspace.Config{
		PreviewRoot:   cfg.PreviewRoot,
		WorkspaceRoot: cfg.WorkspaceRoot,
		PreviewURL:    cfg.PreviewURL,
	})
}

// backendDeps resolves the command runner and materializer. A non-empty
// backend URL routes both through a remote backend.
func backendDeps(ctx context.Context, cfg appconfig.Config, backendURL string) (core.CommandRunner, core.Materializer, error) {
	logger := pslog.Ctx(ctx)
	backendURL = strings.TrimSpace(backendURL)
	if backendURL != "" {
		client, err := backendclient.New(backendURL, backendclient.WithTimeout(
			time.Duration(cfg.Executor.TimeoutSeconds)*time.Second+backendclient.DefaultTimeout,
		))
		if err != nil {
			return nil, nil, err
		}
		if err := client.Health(ctx); err != nil {
			logger.Warn("backend health check failed", "backend", backendURL, "err", err)
		} else {
			logger.Info("backend selected", "backend", backendURL)
		}
		return client, client, nil
	}
	materializer, err := newMaterializer(cfg.Workspace)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("local backend selected", "preview_root", materializer.PreviewRoot(), "workspace_root", materializer.WorkspaceRoot())
	return newExecutor(cfg, materializer.PreviewRoot()), materializer, nil
}

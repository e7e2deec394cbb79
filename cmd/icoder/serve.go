package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/icoder"
	"pkt.systems/icoder/core"
	"pkt.systems/icoder/httpapi"
	"pkt.systems/icoder/internal/appconfig"
	"pkt.systems/icoder/internal/workspace"
	"pkt.systems/icoder/schema"
	"pkt.systems/icoder/sshserver"
	"pkt.systems/pslog"
)

const streamHistory = 1000

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var importDir string
	var enableSSH bool
	var disableAuditTrails bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP backend and optional SSH chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if enableSSH {
				cfg.SSH.Enabled = true
			}
			if disableAuditTrails {
				cfg.Logging.DisableAuditTrails = true
			}

			materializer, err := newMaterializer(cfg.Workspace)
			if err != nil {
				return err
			}
			var seed []schema.WireFile
			if importDir != "" {
				seed, err = workspace.Import(cmd.Context(), importDir, workspace.ImportOptions{})
				if err != nil {
					return err
				}
				logger.Info("project imported", "dir", importDir, "files", len(seed))
			}
			if cfg.Gateway.ResolveAPIKey() == "" {
				logger.Warn("gateway api key not set", "env", cfg.Gateway.APIKeyEnv)
			}
			logger.Info("gateway selected", "base_url", cfg.Gateway.BaseURL, "model", cfg.Gateway.Model)

			serverCfg := icoder.ServerConfig{
				Service: serviceConfig(cfg),
				HTTP:    toHTTPConfig(cfg, materializer.PreviewRoot()),
				SSH:     toSSHConfig(cfg.SSH),
			}
			serverDeps := icoder.ServerDeps{
				ServiceDeps: core.ServiceDeps{
					Gateway:      newGateway(cfg.Gateway),
					Runner:       newExecutor(cfg, materializer.PreviewRoot()),
					Materializer: materializer,
					Logger:       logger,
				},
				Seed: seed,
			}
			opts := []icoder.ServerOption{icoder.WithHTTP()}
			if cfg.SSH.Enabled {
				opts = append(opts, icoder.WithSSH())
			}
			server, err := icoder.New(serverCfg, serverDeps, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides http.addr)")
	cmd.Flags().StringVar(&importDir, "import", "", "seed SSH chat sessions from a project directory")
	cmd.Flags().BoolVar(&enableSSH, "ssh", false, "enable the SSH chat server")
	cmd.Flags().BoolVar(&disableAuditTrails, "disable-audit-trails", false, "disable audit trail logging for commands")
	return cmd
}

func toHTTPConfig(cfg appconfig.Config, previewRoot string) httpapi.Config {
	return httpapi.Config{
		Addr:          cfg.HTTP.Addr,
		PreviewRoot:   previewRoot,
		StreamHistory: streamHistory,
	}
}

func toSSHConfig(cfg appconfig.SSHConfig) sshserver.Config {
	return sshserver.Config{
		Addr:               cfg.Addr,
		HostKeyPath:        cfg.HostKeyPath,
		AuthorizedKeysPath: cfg.AuthorizedKeysPath,
		Prompt:             cfg.Prompt,
	}
}

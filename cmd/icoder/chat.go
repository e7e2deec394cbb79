package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/icoder/core"
	"pkt.systems/icoder/internal/appconfig"
	"pkt.systems/icoder/internal/chat"
	"pkt.systems/icoder/internal/eventbus"
	"pkt.systems/icoder/internal/workspace"
	"pkt.systems/icoder/schema"
	"pkt.systems/pslog"
)

type stdio struct {
	io.Reader
	io.Writer
}

func newChatCmd() *cobra.Command {
	var cfgPath string
	var backendURL string
	var importDir string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the agent in this terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if backendURL == "" {
				backendURL = cfg.HTTP.BaseURL
			}
			runner, materializer, err := backendDeps(ctx, cfg, backendURL)
			if err != nil {
				return err
			}
			var seed []schema.WireFile
			if importDir != "" {
				seed, err = workspace.Import(ctx, importDir, workspace.ImportOptions{})
				if err != nil {
					return err
				}
				logger.Info("project imported", "dir", importDir, "files", len(seed))
			}

			bus := eventbus.New(logger)
			service, err := core.NewService(serviceConfig(cfg), core.ServiceDeps{
				Gateway:      newGateway(cfg.Gateway),
				Runner:       runner,
				Materializer: materializer,
				EventSink:    bus,
				Logger:       logger,
			})
			if err != nil {
				return err
			}
			created, err := service.CreateSession(ctx, schema.CreateSessionRequest{Files: seed})
			if err != nil {
				return err
			}
			events, unsubscribe := bus.Subscribe(created.Session.ID)
			defer unsubscribe()

			return runTerminalChat(ctx, cmd, service, created.Session.ID, cfg.SSH.Prompt, events)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&backendURL, "backend", "", "remote backend URL (defaults to http.base_url, else local)")
	cmd.Flags().StringVar(&importDir, "import", "", "seed the session from a project directory")
	return cmd
}

func runTerminalChat(ctx context.Context, cmd *cobra.Command, service core.Service, id schema.SessionID, prompt string, events <-chan eventbus.Event) error {
	in := cmd.InOrStdin()
	out := cmd.OutOrStdout()
	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fd := int(file.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer func() { _ = term.Restore(fd, state) }()
		repl := chat.New(stdio{Reader: in, Writer: out}, service, id, chat.Options{Prompt: prompt, Events: events})
		if width, height, err := term.GetSize(fd); err == nil {
			repl.SetSize(width, height)
		}
		return repl.Run(ctx)
	}
	return chat.New(stdio{Reader: in, Writer: out}, service, id, chat.Options{Prompt: prompt, Events: events}).Run(ctx)
}

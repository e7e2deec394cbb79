package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/icoder/internal/appconfig"
	"pkt.systems/icoder/schema"
)

func newExecCmd() *cobra.Command {
	var cfgPath string
	var backendURL string
	var dir string
	cmd := &cobra.Command{
		Use:   "exec -- <command>",
		Short: "Run one shell command through the executor",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			runner, _, err := backendDeps(cmd.Context(), cfg, backendURL)
			if err != nil {
				return err
			}
			resp, err := runner.Execute(cmd.Context(), schema.ExecuteRequest{
				Command:    strings.Join(args, " "),
				WorkingDir: dir,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if resp.Output != "" {
				if _, err := fmt.Fprintln(out, strings.TrimRight(resp.Output, "\n")); err != nil {
					return err
				}
			}
			if resp.ServerURL != "" {
				if _, err := fmt.Fprintf(out, "server: %s\n", resp.ServerURL); err != nil {
					return err
				}
			}
			if !resp.Success {
				return errors.New("command failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&backendURL, "backend", "", "remote backend URL (local executor when empty)")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory (defaults to the preview root)")
	return cmd
}

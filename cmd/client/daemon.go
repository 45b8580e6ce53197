package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openmined/syftdrop/internal/client"
	"github.com/openmined/syftdrop/internal/client/config"
	"github.com/openmined/syftdrop/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	var addr string
	var authToken string

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start the SyftDrop client daemon",
		Long:  "Run uploads in the background and serve the local control plane",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flag("http-addr").Changed || cfg.ClientAddr == "" {
				cfg.ClientAddr = addr
			}
			if cmd.Flag("http-token").Changed {
				cfg.ClientToken = authToken
			}

			cmd.SilenceUsage = true
			slog.Info("syftdrop", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)
			slog.Info("daemon using config", "path", cfg.Path)

			daemon, err := client.NewClientDaemon(cfg)
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			if err := daemon.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("daemon start", "error", err)
				return err
			}
			return nil
		},
	}

	daemonCmd.Flags().StringVarP(&addr, "http-addr", "a", config.DefaultClientAddr, "Address to bind the local http server")
	daemonCmd.Flags().StringVarP(&authToken, "http-token", "t", "", "Access token for the local http server")

	return daemonCmd
}

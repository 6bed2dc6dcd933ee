package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hbomb79/Aria/internal"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "aria: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the CLI for Aria. The root command loads the users
// configuration and starts the HTTP server, stopping gracefully on SIGINT/SIGTERM.
func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "aria",
		Short:         "Extract MP3 audio from uploaded or remote videos over HTTP",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := internal.LoadConfig(configPath)
			if err != nil {
				return err
			}

			aria, err := internal.New(*config)
			if err != nil {
				return fmt.Errorf("failed to initialise Aria: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return aria.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "aria.toml", "path to the TOML configuration file (optional)")
	return cmd
}

package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mithrel/tickler/internal/daemon"
	"github.com/mithrel/tickler/internal/wire"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd) // resolved via PersistentPreRunE

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := wire.BuildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting tickler daemon...\n")
			return daemon.Run(ctx, app)
		},
	}
	return cmd
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mithrel/tickler/internal/ipc"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			sock, err := ipc.SocketPath()
			if err != nil {
				return err
			}
			resp, err := ipc.Request(cmd.Context(), sock, ipc.Message{Name: "status"})
			if err != nil {
				return fmt.Errorf("daemon unreachable at %s: %w", sock, err)
			}
			if !resp.OK || resp.Status == nil {
				return fmt.Errorf("daemon error: %s", resp.Msg)
			}
			up := time.Since(resp.Status.StartedAt).Round(time.Second)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "up %s, %d armed notifications\n", up, resp.Status.ActiveTimers)
			return nil
		},
	}
	return cmd
}

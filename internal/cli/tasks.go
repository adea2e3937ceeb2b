package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mithrel/tickler/internal/ipc"
	"github.com/mithrel/tickler/pkg/api"
)

func newTasksCmd() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List a user's upcoming events via the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			sock, err := ipc.SocketPath()
			if err != nil {
				return err
			}
			resp, err := ipc.Request(cmd.Context(), sock, ipc.Message{Name: "tasks", UserID: userID})
			if err != nil {
				return fmt.Errorf("daemon unreachable at %s: %w", sock, err)
			}
			if !resp.OK {
				return fmt.Errorf("daemon error: %s", resp.Msg)
			}
			writeEvents(cmd.OutOrStdout(), resp.Events)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "chat user ID to list events for")
	return cmd
}

func writeEvents(w io.Writer, events []api.Event) {
	if len(events) == 0 {
		_, _ = fmt.Fprintln(w, "No upcoming events.")
		return
	}
	for _, ev := range events {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", ev.ID, ev.ScheduledAt.Format("02.01.2006 15:04"), ev.Description)
	}
}

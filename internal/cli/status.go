package cli

import (
	"time"

	"github.com/kmchat/kmchat/internal/app"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is active",
		Long: `Check the stored session and print authenticated or unauthenticated.

Examples:
  kmchat status
  kmchat status -j`,
		RunE: runtimeRunE(runStatus),
	}
}

func runStatus(cmd *cobra.Command, rt *runtime, args []string) error {
	state := "unauthenticated"
	fields := map[string]any{"version_cli": Version}
	if rt.app.Screen() == app.ScreenHome {
		state = "authenticated"
		if sess := rt.sdk.Session(); sess != nil {
			fields["user_id"] = sess.UserID
			fields["visitor"] = sess.Visitor
			if !sess.LoggedInAt.IsZero() {
				fields["logged_in_at"] = sess.LoggedInAt.Format(time.RFC3339)
			}
		}
	}
	fields["session"] = state
	rt.result(state, fields)
	return nil
}

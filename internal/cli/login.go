package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// EnvPassword supplies the login password when --password is not given.
const EnvPassword = "KMCHAT_PASSWORD"

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a user id and password",
		Long: `Log in to the chat backend. An existing session is logged out first.
The token issued by the backend is stored in the state directory; the password is not.

Examples:
  kmchat login --user u1 --password p1
  KMCHAT_PASSWORD=p1 kmchat login --user u1`,
		RunE: runtimeRunE(runLogin),
	}
	cmd.Flags().String("user", "", "User id")
	cmd.Flags().String("password", "", "Password, defaults to $"+EnvPassword)
	return cmd
}

func runLogin(cmd *cobra.Command, rt *runtime, args []string) error {
	user, _ := cmd.Flags().GetString("user")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(EnvPassword)
	}

	if err := rt.app.PressLogin(cmd.Context(), user, password); err != nil {
		return handled(err)
	}
	rt.result("Logged in as "+user, map[string]any{"user_id": user})
	return nil
}

func newVisitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "visitor",
		Short: "Log in anonymously as a visitor",
		RunE: runtimeRunE(func(cmd *cobra.Command, rt *runtime, args []string) error {
			if err := rt.app.PressLoginAsVisitor(cmd.Context()); err != nil {
				return handled(err)
			}
			fields := map[string]any{}
			if sess := rt.sdk.Session(); sess != nil {
				fields["user_id"] = sess.UserID
			}
			rt.result("Logged in as visitor", fields)
			return nil
		}),
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: runtimeRunE(func(cmd *cobra.Command, rt *runtime, args []string) error {
			if err := rt.app.PressLogout(cmd.Context()); err != nil {
				return handled(err)
			}
			rt.result("Logged out", nil)
			return nil
		}),
	}
}

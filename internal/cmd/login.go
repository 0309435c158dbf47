package cmd

import (
	"fmt"

	"github.com/gigan-store/session-client/apiclient"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Long: `Log in to the backoffice API with a username and password.

The returned token and role are stored so that every other running instance
picks up the new session.

Examples:
  gigan-session login --username sowner --password 's@123'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		if username == "" {
			return fmt.Errorf("--username is required")
		}
		if password == "" {
			return fmt.Errorf("--password is required")
		}

		ctx := cmd.Context()
		env, err := newSessionEnv(ctx, nil)
		if err != nil {
			return err
		}
		defer env.close()

		resp, err := env.client.Login(ctx, apiclient.LoginRequest{Username: username, Password: password})
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		env.manager.Login(resp.Token, resp.User.Role)
		if env.manager.Current().Empty() {
			return fmt.Errorf("login failed: the backend returned an unusable session")
		}

		left, _ := env.manager.Remaining()
		fmt.Printf("Logged in as %s (%s). Session ends in %s.\n", resp.User.Username, resp.User.Role, formatLeft(left))
		return nil
	},
}

func init() {
	loginCmd.Flags().String("username", "", "Backoffice username")
	loginCmd.Flags().String("password", "", "Backoffice password")
	rootCmd.AddCommand(loginCmd)
}

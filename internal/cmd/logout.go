package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var revokeOnLogout bool

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the stored session",
	Long: `End the stored session. Every other running instance follows and
returns to the login prompt.

Examples:
  gigan-session logout
  gigan-session logout --revoke`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := newSessionEnv(ctx, nil)
		if err != nil {
			return err
		}
		if err := env.start(ctx); err != nil {
			return err
		}
		defer env.close()

		if revokeOnLogout && !env.manager.Current().Empty() {
			if err := env.client.EndSession(ctx); err != nil {
				log.Warn().Err(err).Msg("backend did not end the session")
			}
		}
		env.manager.Logout()
		return nil
	},
}

func init() {
	logoutCmd.Flags().BoolVar(&revokeOnLogout, "revoke", false, "Also ask the backend to revoke the token")
	rootCmd.AddCommand(logoutCmd)
}

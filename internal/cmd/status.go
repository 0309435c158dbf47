package cmd

import (
	"fmt"
	"time"

	"github.com/gigan-store/session-client/auth"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	Long: `Show the role and remaining lifetime of the stored session. A stored
session that has already expired is cleared.

Examples:
  gigan-session status`,
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

		s := env.manager.Current()
		if s.Empty() {
			fmt.Println("Not logged in.")
			return nil
		}
		left, _ := env.manager.Remaining()
		fmt.Printf("Logged in as %s. Session ends in %s.\n", s.Role, formatLeft(left))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func formatLeft(d time.Duration) string {
	return auth.FormatRemaining(d)
}

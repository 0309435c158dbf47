package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

var requestCmd = &cobra.Command{
	Use:   "request <path>",
	Short: "Call the API with the stored session",
	Long: `Send a GET request to the backoffice API with the stored session attached
and print the JSON response. A 401 response ends the session.

Examples:
  gigan-session request /api/account
  gigan-session request /api/products --query page=2 --query q=kaos`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringToString("query")
		query := url.Values{}
		for k, v := range pairs {
			query.Set(k, v)
		}

		ctx := cmd.Context()
		env, err := newSessionEnv(ctx, nil)
		if err != nil {
			return err
		}
		if err := env.start(ctx); err != nil {
			return err
		}
		defer env.close()

		var out json.RawMessage
		if err := env.client.Get(ctx, args[0], query, &out); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if len(out) == 0 {
			fmt.Println("(empty response)")
			return nil
		}
		return enc.Encode(out)
	},
}

func init() {
	requestCmd.Flags().StringToString("query", nil, "Query parameters as key=value")
	rootCmd.AddCommand(requestCmd)
}

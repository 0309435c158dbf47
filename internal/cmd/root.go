package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/gigan-store/session-client/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gigan-session",
	Short: "Session client for the Gigan Store Management backoffice",
	Long: `gigan-session keeps a backoffice login alive on this machine the way the web
front end does in a browser tab.

The session (bearer token and role) is stored in a shared medium, a directory
or a Redis key, so several running instances behave like several tabs: a login
or logout in one is followed by the others. Each instance logs out on its own
when the token expires and re-checks expiry when it is resumed.

Configuration comes from environment variables, optionally backed by a YAML
file given with --config whose keys mirror the variable names.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		setupLogging(cfg.GetLogLevel())
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which is cancelled on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (keys mirror the environment variables)")
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

package cmd

import (
	"errors"
	"net/http"

	"github.com/gigan-store/session-client/server"
	"github.com/gigan-store/session-client/users"
	fakeuserrepo "github.com/gigan-store/session-client/users/repofake"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveDevCmd = &cobra.Command{
	Use:   "serve-dev",
	Short: "Run a development stand-in for the backoffice API",
	Long: `Run a small API that behaves like the backoffice backend for sessions:
POST /api/auth/login issues signed bearer tokens for the demo users, GET
/api/account requires one and GET /api/health is open.

Demo users:
  sowner / s@123  OWNER
  sstaff / s@123  STAFF

Examples:
  gigan-session serve-dev
  DEV_TOKEN_TTL=2m gigan-session serve-dev`,
	RunE: func(cmd *cobra.Command, args []string) error {
		displayAppname(cfg.GetAppName())

		userRepo, err := fakeuserrepo.NewSeededUserRepo(users.DemoUsers...)
		if err != nil {
			return err
		}
		srv := &http.Server{Addr: cfg.GetDevPort(), Handler: server.New(cfg, userRepo)}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Dur("token_ttl", cfg.GetDevTokenTTL()).Msg("server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}
		shutdown(srv)
		log.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveDevCmd)
}

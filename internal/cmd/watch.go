package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gigan-store/session-client/auth"
	"github.com/gigan-store/session-client/metrics"
	"github.com/gigan-store/session-client/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep a session open like a browser tab",
	Long: `Run as one "tab" of the backoffice: restore the stored session, log out
when it expires, follow logins and logouts made elsewhere and re-check expiry
whenever the process is resumed (SIGCONT).

Examples:
  gigan-session watch
  gigan-session watch --countdown --metrics-addr :9464`,
	RunE: func(cmd *cobra.Command, args []string) error {
		countdown, _ := cmd.Flags().GetBool("countdown")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		if !cmd.Flags().Changed("countdown") {
			countdown = cfg.GetShowSessionTimer()
		}
		if metricsAddr == "" {
			metricsAddr = cfg.GetMetricsAddr()
		}

		displayAppname(cfg.GetAppName())
		ctx := cmd.Context()

		var rec *metrics.Recorder
		if metricsAddr != "" {
			reg := prometheus.NewRegistry()
			r, err := metrics.New(reg)
			if err != nil {
				return err
			}
			rec = r
			srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
			go serveMetrics(srv)
			defer shutdown(srv)
		}

		env, err := newSessionEnv(ctx, rec)
		if err != nil {
			return err
		}
		cancelSub := env.manager.Subscribe(func(s sessions.Session) {
			if s.Empty() {
				log.Info().Msg("session ended")
				return
			}
			log.Info().Str("role", string(s.Role)).Msg("session active")
		})
		defer cancelSub()

		if err := env.start(ctx); err != nil {
			return err
		}
		defer env.close()

		go env.manager.WatchForeground(ctx, foregroundEvents(ctx))
		if countdown {
			go runCountdown(ctx, env.manager)
		}

		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().Bool("countdown", false, "Log the remaining session time every second (default from SHOW_SESSION_TIMER)")
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (default from METRICS_ADDR)")
	rootCmd.AddCommand(watchCmd)
}

func runCountdown(ctx context.Context, m *auth.Manager) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if left, ok := m.Remaining(); ok {
				log.Info().Str("left", auth.FormatRemaining(left)).Msg("session expires in")
			}
		}
	}
}

func serveMetrics(srv *http.Server) {
	log.Info().Str("addr", srv.Addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Str("addr", srv.Addr).Msg("server.Shutdown")
	}
}

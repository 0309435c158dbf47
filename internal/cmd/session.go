package cmd

import (
	"context"
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/gigan-store/session-client/apiclient"
	"github.com/gigan-store/session-client/auth"
	"github.com/gigan-store/session-client/metrics"
	"github.com/gigan-store/session-client/storage"
	"github.com/gigan-store/session-client/storage/filestore"
	"github.com/gigan-store/session-client/storage/redisstore"
	"github.com/gigan-store/session-client/transport"
	"github.com/rs/zerolog/log"
)

// openRepo opens the durable medium named by SESSION_BACKEND.
func openRepo(ctx context.Context) (storage.Repo, error) {
	switch backend := cfg.GetSessionBackend(); backend {
	case "file", "":
		return filestore.New(cfg.GetSessionDir(),
			filestore.WithLogger(log.With().Str("component", "filestore").Logger()))
	case "redis":
		return redisstore.Dial(ctx, cfg.GetRedisAddr(), cfg.GetRedisPassword(),
			redisstore.WithKey(cfg.GetRedisKey()),
			redisstore.WithLogger(log.With().Str("component", "redisstore").Logger()))
	default:
		return nil, fmt.Errorf("unknown session backend %q (want file or redis)", backend)
	}
}

// cliNavigator stands in for the login view: it tells the user how to log in again.
type cliNavigator struct{}

func (cliNavigator) RedirectToLogin() {
	fmt.Println("Run 'gigan-session login' to start a new session.")
}

// sessionEnv is what every command that touches the session needs.
type sessionEnv struct {
	repo    storage.Repo
	manager *auth.Manager
	client  *apiclient.Client
}

func newSessionEnv(ctx context.Context, rec *metrics.Recorder, options ...auth.Option) (*sessionEnv, error) {
	repo, err := openRepo(ctx)
	if err != nil {
		return nil, err
	}

	options = append([]auth.Option{
		auth.WithNavigator(cliNavigator{}),
		auth.WithExpiryWarning(cfg.GetExpiryWarning()),
		auth.WithMetrics(rec),
	}, options...)
	manager := auth.New(repo, options...)

	interceptor := transport.New(nil, manager,
		transport.WithAuthPathFragment(cfg.GetAuthPathFragment()),
		transport.WithMetrics(rec),
	)
	client := apiclient.New(cfg.GetAPIBaseURL(), interceptor, apiclient.WithTimeout(cfg.GetRequestTimeout()))

	return &sessionEnv{repo: repo, manager: manager, client: client}, nil
}

// start restores the stored session and follows other instances.
func (e *sessionEnv) start(ctx context.Context) error {
	if err := e.manager.Start(ctx); err != nil {
		_ = e.close()
		return err
	}
	return nil
}

func (e *sessionEnv) close() error {
	e.manager.Close()
	return e.repo.Close()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

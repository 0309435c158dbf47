// Package transport attaches the session token to outbound API requests and
// ends the session when the backend rejects it.
package transport

import (
	"net/http"
	"strings"

	"github.com/gigan-store/session-client/metrics"
	"github.com/gigan-store/session-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// DefaultAuthPathFragment marks authentication endpoints. Requests whose path
// contains it are passed through untouched.
const DefaultAuthPathFragment = "/api/auth/"

// Outcomes recorded per request.
const (
	OutcomeAttached     = "attached"     // Session token added
	OutcomeExempt       = "exempt"       // Authentication endpoint
	OutcomeExplicit     = "explicit"     // Caller supplied its own Authorization header
	OutcomeAnonymous    = "anonymous"    // No usable session
	OutcomeUnauthorized = "unauthorized" // 401 on a request that carried a token
)

// Holder supplies the session token and is told when the backend rejects it.
type Holder interface {
	oauth2.TokenSource
	Unauthorized(token string)
}

// Interceptor is an http.RoundTripper in front of the application's API calls.
type Interceptor struct {
	next         http.RoundTripper
	holder       Holder
	authFragment string
	logger       zerolog.Logger
	metrics      *metrics.Recorder
}

type Option func(*Interceptor)

func WithAuthPathFragment(fragment string) Option {
	return func(i *Interceptor) {
		if fragment != "" {
			i.authFragment = fragment
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(i *Interceptor) {
		i.metrics = r
	}
}

// New wraps next, which defaults to http.DefaultTransport.
func New(next http.RoundTripper, holder Holder, options ...Option) *Interceptor {
	if next == nil {
		next = http.DefaultTransport
	}
	i := &Interceptor{
		next:         next,
		holder:       holder,
		authFragment: DefaultAuthPathFragment,
		logger:       log.With().Str("component", "transport").Logger(),
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// IsAuthEndpoint reports whether req targets an authentication endpoint.
func (i *Interceptor) IsAuthEndpoint(req *http.Request) bool {
	return req.URL != nil && strings.Contains(req.URL.Path, i.authFragment)
}

func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if i.IsAuthEndpoint(req) {
		i.metrics.Request(OutcomeExempt)
		return i.next.RoundTrip(req)
	}
	if explicit := req.Header.Get("Authorization"); explicit != "" {
		i.metrics.Request(OutcomeExplicit)
		return i.send(req, token.StripBearer(explicit))
	}

	tok, err := i.holder.Token()
	if err != nil || tok == nil || tok.AccessToken == "" {
		i.metrics.Request(OutcomeAnonymous)
		return i.next.RoundTrip(req)
	}

	// A RoundTripper must not modify the caller's request.
	authed := req.Clone(req.Context())
	if authed.Header == nil {
		authed.Header = make(http.Header)
	}
	tok.SetAuthHeader(authed)
	i.metrics.Request(OutcomeAttached)

	return i.send(authed, tok.AccessToken)
}

// send forwards req and reports a 401 against the token it carried. The
// holder ignores tokens that are no longer current.
func (i *Interceptor) send(req *http.Request, carried string) (*http.Response, error) {
	resp, err := i.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && carried != "" {
		i.metrics.Request(OutcomeUnauthorized)
		i.logger.Warn().Str("method", req.Method).Str("path", req.URL.Path).Msg("request rejected as unauthorized")
		i.holder.Unauthorized(carried)
	}
	return resp, nil
}

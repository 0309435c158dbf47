// Package auth owns the client side session lifecycle: it holds the current
// token and role, logs out when the token expires, mirrors the session to
// durable storage and follows changes made by other tabs.
//
// The expiry timer is best-effort. A suspended or throttled process can fire
// it late, so Revalidate, driven by foreground events, is what guarantees an
// expired token is never used once the user is back. Both paths must be tested.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/gigan-store/session-client/internal/errors"
	"github.com/gigan-store/session-client/metrics"
	"github.com/gigan-store/session-client/sessions"
	"github.com/gigan-store/session-client/storage"
	"github.com/gigan-store/session-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const defaultSaveTimeout = 5 * time.Second

var _ oauth2.TokenSource = (*Manager)(nil)

// Manager is the session store of one tab. All methods are safe for
// concurrent use. State changes are serialized; storage writes, notifications,
// redirects and subscriber callbacks run after the state lock is released, so
// reads of the in-memory session never wait on storage.
type Manager struct {
	repo          storage.Repo      // Durable medium shared with other tabs
	clock         Clock             // Time source and timer factory
	navigator     Navigator         // Redirects to the login view
	notifier      Notifier          // User facing notices
	logger        zerolog.Logger    // Component logger
	metrics       *metrics.Recorder // Optional, nil records nothing
	expiryWarning bool              // Warn shortly before expiry
	saveTimeout   time.Duration     // Bound on a single durable write

	lock        sync.Mutex
	session     sessions.Session
	gen         uint64 // Bumped on every session change; stale timers compare against it
	logoutTimer Timer
	warnTimer   Timer
	subscribers map[int]func(sessions.Session)
	nextSubID   int
	started     bool
	cancelWatch context.CancelFunc
	watchDone   chan struct{}
	saveSeq     uint64 // Numbers queued writes; guarded by lock

	saveLock sync.Mutex // Serializes durable writes; never taken under lock
	savedSeq uint64     // Highest write number written; guarded by saveLock
}

// Option configures a Manager.
type Option func(*Manager)

func WithClock(c Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

func WithNavigator(n Navigator) Option {
	return func(m *Manager) {
		m.navigator = n
	}
}

func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) {
		m.metrics = r
	}
}

// WithExpiryWarning enables the notice shown a few minutes before expiry.
func WithExpiryWarning(enabled bool) Option {
	return func(m *Manager) {
		m.expiryWarning = enabled
	}
}

// New creates a Manager over repo. The Manager holds no session until Start
// loads one or Login is called.
func New(repo storage.Repo, options ...Option) *Manager {
	m := &Manager{
		repo:        repo,
		clock:       realClock{},
		navigator:   noopNavigator{},
		logger:      log.With().Str("component", "auth").Logger(),
		saveTimeout: defaultSaveTimeout,
		subscribers: make(map[int]func(sessions.Session)),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = LogNotifier{Logger: m.logger}
	}
	return m
}

// Start restores the stored session and begins following other tabs. A
// stored token that is expired or undecodable logs out straight away.
// Start must be called at most once; it may be retried after it failed.
func (m *Manager) Start(ctx context.Context) error {
	m.lock.Lock()
	if m.started {
		m.lock.Unlock()
		return errors.ErrAlreadyStarted
	}
	m.started = true
	m.lock.Unlock()

	// Subscribe before reading, so a write landing in between is still
	// delivered. Events repeating the loaded state are no-ops.
	watchCtx, cancel := context.WithCancel(ctx)
	events, err := m.repo.Watch(watchCtx)
	if err != nil {
		cancel()
		m.lock.Lock()
		m.started = false
		m.lock.Unlock()
		return errors.Wrapf(err, "watching session storage")
	}

	stored, err := m.repo.Load(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not load stored session, starting without one")
		stored = sessions.Cleared()
	}

	done := make(chan struct{})
	m.lock.Lock()
	m.cancelWatch = cancel
	m.watchDone = done
	var eff effects
	if s := stored.Session(); !s.Empty() {
		m.stopTimersLocked()
		m.gen++
		if exp, reason, ok := m.admissible(s); ok {
			m.session = s
			eff = m.armLocked(exp, true)
			eff.publish = true
			m.logger.Debug().Str("role", string(s.Role)).Time("expires", exp).Msg("restored stored session")
		} else {
			eff = m.clearLocked(reason, true)
			eff.notifyAndRedirect(reason)
		}
	}
	m.lock.Unlock()
	m.apply(eff)

	go func() {
		defer close(done)
		for ev := range events {
			m.HandleEvent(ev)
		}
	}()
	return nil
}

// Login replaces the current session. A token that is empty, undecodable or
// already expired, or a role outside the known set, logs out immediately
// instead.
func (m *Manager) Login(tok string, role sessions.Role) {
	s := sessions.Session{Token: token.StripBearer(tok), Role: role}

	m.lock.Lock()
	m.stopTimersLocked()
	m.gen++

	exp, reason, ok := m.admissible(s)
	if !ok {
		eff := m.clearLocked(reason, true)
		eff.notifyAndRedirect(reason)
		m.lock.Unlock()
		m.logger.Info().Str("reason", string(reason)).Msg("rejected login")
		m.apply(eff)
		return
	}

	m.session = s
	eff := m.armLocked(exp, true)
	if !m.session.Empty() {
		m.queueSaveLocked(&eff, sessions.Updated(s))
	}
	eff.publish = true
	m.metrics.Login()
	m.lock.Unlock()

	m.logger.Info().Str("role", string(s.Role)).Time("expires", exp).Msg("logged in")
	m.apply(eff)
}

// Logout clears the session, writes the cleared state and redirects to
// login. It always runs in full, with or without a current session.
func (m *Manager) Logout() {
	m.lock.Lock()
	eff := m.clearLocked(ReasonUser, true)
	eff.notifyAndRedirect(ReasonUser)
	m.lock.Unlock()

	m.logger.Info().Msg("logged out")
	m.apply(eff)
}

// Current returns the in-memory session. It never blocks on I/O.
func (m *Manager) Current() sessions.Session {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.session
}

// Remaining returns the time left before the current token expires.
func (m *Manager) Remaining() (time.Duration, bool) {
	m.lock.Lock()
	s := m.session
	m.lock.Unlock()

	if s.Empty() {
		return 0, false
	}
	exp, ok := token.ExpiresAt(s.Token)
	if !ok {
		return 0, false
	}
	left := exp.Sub(m.clock.Now())
	if left < 0 {
		left = 0
	}
	return left, true
}

// Token implements oauth2.TokenSource over the current session.
func (m *Manager) Token() (*oauth2.Token, error) {
	s := m.Current()
	if s.Empty() {
		return nil, errors.ErrNoSession
	}
	exp, ok := token.ExpiresAt(s.Token)
	if !ok || !m.clock.Now().Before(exp) {
		m.Revalidate()
		return nil, errors.ErrTokenExpired
	}
	return &oauth2.Token{
		AccessToken: s.Token,
		TokenType:   "Bearer",
		Expiry:      exp,
	}, nil
}

// Unauthorized ends the session after the backend rejected tok. It does
// nothing when no session is held or when tok is no longer the current token,
// so the requests a logout itself triggers cannot log out again.
func (m *Manager) Unauthorized(tok string) {
	m.lock.Lock()
	if m.session.Empty() || tok != m.session.Token {
		m.lock.Unlock()
		m.logger.Debug().Msg("ignoring 401 for a session that is no longer current")
		return
	}
	eff := m.clearLocked(ReasonUnauthorized, true)
	eff.notifyAndRedirect(ReasonUnauthorized)
	m.lock.Unlock()

	m.logger.Warn().Msg("backend rejected the session token")
	m.apply(eff)
}

// Subscribe registers fn to receive the session after every change. The
// returned function removes the subscription.
func (m *Manager) Subscribe(fn func(sessions.Session)) (cancel func()) {
	m.lock.Lock()
	defer m.lock.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	return func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		delete(m.subscribers, id)
	}
}

// Close stops the timers and the storage watch. The session itself is left
// in storage for the next start.
func (m *Manager) Close() {
	m.lock.Lock()
	m.stopTimersLocked()
	m.gen++
	cancel, done := m.cancelWatch, m.watchDone
	m.cancelWatch, m.watchDone = nil, nil
	m.lock.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// admissible checks a session before it is adopted and returns its expiry.
func (m *Manager) admissible(s sessions.Session) (time.Time, Reason, bool) {
	if s.Empty() || !s.Role.Valid() {
		return time.Time{}, ReasonInvalid, false
	}
	exp, ok := token.ExpiresAt(s.Token)
	if !ok {
		return time.Time{}, ReasonInvalid, false
	}
	if !m.clock.Now().Before(exp) {
		return exp, ReasonExpired, false
	}
	return exp, "", true
}

// clearLocked drops the session and its timers. Callers decide whether the
// user is told.
func (m *Manager) clearLocked(reason Reason, persist bool) effects {
	had := !m.session.Empty()
	m.stopTimersLocked()
	m.gen++
	m.session = sessions.Session{}
	eff := effects{publish: had}
	if persist {
		m.queueSaveLocked(&eff, sessions.Cleared())
	}
	if had || reason == ReasonUser {
		m.metrics.Logout(string(reason))
	}
	return eff
}

// queueSaveLocked numbers msg and attaches it to e. The write itself happens
// in apply, after the state lock is released.
func (m *Manager) queueSaveLocked(e *effects, msg sessions.Message) {
	msg.At = m.clock.Now().UTC()
	m.saveSeq++
	e.save, e.saveSeq = &msg, m.saveSeq
}

// save writes a queued message unless a newer one has already been written,
// or it describes a session this tab no longer holds.
func (m *Manager) save(msg *sessions.Message, seq uint64) {
	m.saveLock.Lock()
	defer m.saveLock.Unlock()

	if seq <= m.savedSeq {
		return
	}
	if msg.Type == sessions.MessageUpdated && msg.Session() != m.Current() {
		return
	}
	m.savedSeq = seq

	ctx, cancel := context.WithTimeout(context.Background(), m.saveTimeout)
	defer cancel()
	if err := m.repo.Save(ctx, *msg); err != nil {
		m.logger.Error().Err(err).Str("type", string(msg.Type)).Msg("could not write session to storage")
	}
}

// effects are the outward consequences of a state change, applied after the
// lock is released.
type effects struct {
	save     *sessions.Message
	saveSeq  uint64
	publish  bool
	redirect bool
	level    NoticeLevel
	notice   string
}

func (e *effects) notifyAndRedirect(reason Reason) {
	e.level, e.notice = reason.Notice()
	e.redirect = true
}

func (m *Manager) apply(e effects) {
	if e.save != nil {
		m.save(e.save, e.saveSeq)
	}
	if e.notice != "" {
		m.notifier.Notify(e.level, e.notice)
	}
	if e.publish {
		m.publish()
	}
	if e.redirect {
		m.navigator.RedirectToLogin()
	}
}

func (m *Manager) publish() {
	m.lock.Lock()
	s := m.session
	fns := make([]func(sessions.Session), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.lock.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gigan-store/session-client/auth"
	"github.com/gigan-store/session-client/auth/clockfake"
	"github.com/gigan-store/session-client/internal/errors"
	"github.com/gigan-store/session-client/metrics"
	"github.com/gigan-store/session-client/sessions"
	"github.com/gigan-store/session-client/storage"
	"github.com/gigan-store/session-client/storage/repofake"
	"github.com/gigan-store/session-client/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var epoch = time.Unix(1_700_000_000, 0)

type notice struct {
	level auth.NoticeLevel
	msg   string
}

// ui records what the user would have seen in one tab.
type ui struct {
	lock      sync.Mutex
	notices   []notice
	redirects int
}

func (u *ui) Notify(level auth.NoticeLevel, msg string) {
	u.lock.Lock()
	defer u.lock.Unlock()
	u.notices = append(u.notices, notice{level: level, msg: msg})
}

func (u *ui) RedirectToLogin() {
	u.lock.Lock()
	defer u.lock.Unlock()
	u.redirects++
}

func (u *ui) Redirects() int {
	u.lock.Lock()
	defer u.lock.Unlock()
	return u.redirects
}

func (u *ui) Notices() []notice {
	u.lock.Lock()
	defer u.lock.Unlock()
	return append([]notice(nil), u.notices...)
}

type tab struct {
	repo    *repofake.FakeSessionRepo
	ui      *ui
	manager *auth.Manager
}

type testFixture struct {
	clock  *clockfake.FakeClock
	hub    *repofake.Hub
	issuer *token.Issuer
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	clk := clockfake.New(epoch)
	return &testFixture{
		clock:  clk,
		hub:    repofake.NewHub(),
		issuer: token.NewIssuer(testSecret, token.WithNowFunc(clk.Now)),
	}
}

func (f *testFixture) newTab(t *testing.T, options ...auth.Option) *tab {
	t.Helper()
	tb := &tab{repo: f.hub.Tab(), ui: &ui{}}
	options = append([]auth.Option{
		auth.WithClock(f.clock),
		auth.WithNotifier(tb.ui),
		auth.WithNavigator(tb.ui),
	}, options...)
	tb.manager = auth.New(tb.repo, options...)
	t.Cleanup(tb.manager.Close)
	return tb
}

func (f *testFixture) startTab(t *testing.T, options ...auth.Option) *tab {
	t.Helper()
	tb := f.newTab(t, options...)
	require.NoError(t, tb.manager.Start(context.Background()))
	return tb
}

// tokenExpiringIn mints a token whose exp claim lies d after the fake clock's now.
func (f *testFixture) tokenExpiringIn(t *testing.T, d time.Duration) string {
	t.Helper()
	tok, err := f.issuer.IssueWithExpiry("user-1", string(sessions.RoleOwner), f.clock.Now().Add(d))
	require.NoError(t, err)
	return tok
}

func (f *testFixture) stored(t *testing.T) sessions.Message {
	t.Helper()
	m, _, err := sessions.DecodeMessage(f.hub.Value())
	require.NoError(t, err)
	return m
}

func TestLogin_StoresAndArms(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)
	tok := f.tokenExpiringIn(t, time.Hour)

	a.manager.Login(tok, sessions.RoleOwner)

	require.Equal(t, sessions.Session{Token: tok, Role: sessions.RoleOwner}, a.manager.Current())
	require.Equal(t, 1, f.clock.Pending())
	require.Equal(t, sessions.MessageUpdated, f.stored(t).Type)
	require.Equal(t, tok, f.stored(t).Token)
	require.Equal(t, a.repo.Origin(), f.stored(t).Origin)

	left, ok := a.manager.Remaining()
	require.True(t, ok)
	require.Equal(t, time.Hour, left)
	require.Zero(t, a.ui.Redirects())
}

func TestLogin_AcceptsBearerPrefix(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)
	tok := f.tokenExpiringIn(t, time.Hour)

	a.manager.Login("Bearer "+tok, sessions.RoleStaff)
	require.Equal(t, tok, a.manager.Current().Token)
}

// Scenario A: a token two seconds from expiry logs out on its own.
func TestScheduler_LogsOutAtExpiry(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)

	a.manager.Login(f.tokenExpiringIn(t, 2*time.Second), sessions.RoleOwner)
	f.clock.Advance(2 * time.Second)

	require.True(t, a.manager.Current().Empty())
	require.Equal(t, 1, a.ui.Redirects())
	require.Equal(t, []notice{{auth.NoticeError, auth.MsgSessionExpired}}, a.ui.Notices())
	require.Equal(t, sessions.MessageCleared, f.stored(t).Type)
	require.Zero(t, f.clock.Pending())
}

// Scenario B: an explicit logout leaves no timer behind.
func TestScheduler_LogoutCancelsTimer(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)

	a.manager.Login(f.tokenExpiringIn(t, time.Hour), sessions.RoleOwner)
	f.clock.Advance(time.Second)
	a.manager.Logout()
	require.Zero(t, f.clock.Pending())

	f.clock.Advance(2 * time.Hour)
	require.Zero(t, f.clock.Fired())
	require.Equal(t, 1, a.ui.Redirects())
	require.Equal(t, []notice{{auth.NoticeInfo, auth.MsgLoggedOut}}, a.ui.Notices())
}

func TestScheduler_NeverLogsOutEarly(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)

	a.manager.Login(f.tokenExpiringIn(t, 100*time.Second), sessions.RoleOwner)
	f.clock.Advance(99*time.Second + 999*time.Millisecond)
	require.False(t, a.manager.Current().Empty())

	f.clock.Advance(time.Millisecond)
	require.True(t, a.manager.Current().Empty())
	require.Equal(t, 1, a.ui.Redirects())
}

func TestScheduler_AtMostOneTimer(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)

	for i := 1; i <= 5; i++ {
		a.manager.Login(f.tokenExpiringIn(t, time.Duration(i)*time.Hour), sessions.RoleOwner)
		require.Equal(t, 1, f.clock.Pending())
	}
	a.manager.Logout()
	require.Zero(t, f.clock.Pending())
	a.manager.Logout()
	require.Zero(t, f.clock.Pending())

	// Only the last login's deadline counts.
	a.manager.Login(f.tokenExpiringIn(t, time.Minute), sessions.RoleOwner)
	a.manager.Login(f.tokenExpiringIn(t, time.Hour), sessions.RoleOwner)
	f.clock.Advance(time.Minute)
	require.False(t, a.manager.Current().Empty())
	require.Zero(t, f.clock.Fired())
}

func TestLogin_PastExpiryLogsOutImmediately(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)
	tok := f.tokenExpiringIn(t, -time.Minute)

	a.manager.Login(tok, sessions.RoleOwner)

	require.True(t, a.manager.Current().Empty())
	require.Zero(t, f.clock.Pending())
	require.Equal(t, 1, a.ui.Redirects())
	require.Equal(t, []notice{{auth.NoticeError, auth.MsgSessionExpired}}, a.ui.Notices())
	require.Equal(t, sessions.MessageCleared, f.stored(t).Type)
}

func TestLogin_RejectsUnusableSessions(t *testing.T) {
	tests := []struct {
		name  string
		token func(f *testFixture) string
		role  sessions.Role
	}{
		{name: "empty token", token: func(*testFixture) string { return "" }, role: sessions.RoleOwner},
		{name: "undecodable token", token: func(*testFixture) string { return "not-a-token" }, role: sessions.RoleOwner},
		{name: "unknown role", token: func(f *testFixture) string { return f.tokenExpiringIn(t, time.Hour) }, role: "ADMIN"},
		{name: "missing role", token: func(f *testFixture) string { return f.tokenExpiringIn(t, time.Hour) }, role: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			a := f.newTab(t)

			a.manager.Login(tc.token(f), tc.role)

			require.True(t, a.manager.Current().Empty())
			require.Zero(t, f.clock.Pending())
			require.Equal(t, 1, a.ui.Redirects())
			require.Equal(t, sessions.MessageCleared, f.stored(t).Type)
		})
	}
}

func TestRevalidate_CatchesThrottledTimer(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)
	a.manager.Login(f.tokenExpiringIn(t, time.Minute), sessions.RoleOwner)

	// The process was suspended: time passed but the timer never ran.
	f.clock.Jump(2 * time.Minute)
	require.False(t, a.manager.Current().Empty())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	foreground := make(chan struct{})
	go a.manager.WatchForeground(ctx, foreground)
	foreground <- struct{}{}

	require.Eventually(t, func() bool { return a.manager.Current().Empty() }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, a.ui.Redirects())
	require.Zero(t, f.clock.Pending())

	// A late timer for the old session must not log out a second time.
	f.clock.Advance(time.Hour)
	require.Equal(t, 1, a.ui.Redirects())
}

func TestRevalidate_KeepsLiveSession(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)
	a.manager.Login(f.tokenExpiringIn(t, time.Hour), sessions.RoleOwner)

	f.clock.Jump(30 * time.Minute)
	a.manager.Revalidate()
	require.False(t, a.manager.Current().Empty())

	a.manager.Logout()
	a.manager.Revalidate()
	require.Equal(t, 1, a.ui.Redirects())
}

func TestWatchForeground_StopsWhenClosed(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)
	foreground := make(chan struct{})
	done := make(chan struct{})
	go func() {
		a.manager.WatchForeground(context.Background(), foreground)
		close(done)
	}()
	close(foreground)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchForeground did not return")
	}
}

func TestToken(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)

	_, err := a.manager.Token()
	require.True(t, errors.Is(err, errors.ErrNoSession))

	tok := f.tokenExpiringIn(t, time.Hour)
	a.manager.Login(tok, sessions.RoleStaff)
	ot, err := a.manager.Token()
	require.NoError(t, err)
	require.Equal(t, tok, ot.AccessToken)
	require.Equal(t, "Bearer", ot.Type())
	require.True(t, ot.Expiry.Equal(epoch.Add(time.Hour)))

	f.clock.Jump(2 * time.Hour)
	_, err = a.manager.Token()
	require.True(t, errors.Is(err, errors.ErrTokenExpired))
	require.True(t, a.manager.Current().Empty())
	require.Equal(t, 1, a.ui.Redirects())
}

// Scenario E and its loop guards.
func TestUnauthorized(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)

	a.manager.Unauthorized("")
	require.Zero(t, a.ui.Redirects())

	old := f.tokenExpiringIn(t, time.Hour)
	a.manager.Login(old, sessions.RoleOwner)
	current := f.tokenExpiringIn(t, 2*time.Hour)
	a.manager.Login(current, sessions.RoleOwner)

	a.manager.Unauthorized(old)
	require.Equal(t, current, a.manager.Current().Token)
	require.Zero(t, a.ui.Redirects())

	a.manager.Unauthorized(current)
	require.True(t, a.manager.Current().Empty())
	require.Equal(t, 1, a.ui.Redirects())
	require.Equal(t, []notice{{auth.NoticeError, auth.MsgSessionExpired}}, a.ui.Notices())
	require.Zero(t, f.clock.Pending())

	a.manager.Unauthorized(current)
	require.Equal(t, 1, a.ui.Redirects())
}

// Scenario C: the other tab follows a login without calling Login itself.
func TestSync_AdoptsSessionFromOtherTab(t *testing.T) {
	f := setupTestFixture(t)
	a := f.startTab(t)
	b := f.startTab(t)

	tok := f.tokenExpiringIn(t, 10*time.Minute)
	a.manager.Login(tok, sessions.RoleStaff)

	require.Eventually(t, func() bool { return b.manager.Current().Token == tok }, time.Second, 5*time.Millisecond)
	require.Equal(t, sessions.RoleStaff, b.manager.Current().Role)
	left, ok := b.manager.Remaining()
	require.True(t, ok)
	require.Equal(t, 10*time.Minute, left)
	require.Equal(t, 2, f.clock.Pending())
	require.Zero(t, f.hub.Writes(b.repo.Origin()))

	f.clock.Advance(10 * time.Minute)
	require.True(t, b.manager.Current().Empty())
	require.Eventually(t, func() bool { return b.ui.Redirects() == 1 }, time.Second, 5*time.Millisecond)
}

// Scenario D: a logout in one tab sends the other to login without an echo.
func TestSync_FollowsRemoteLogout(t *testing.T) {
	f := setupTestFixture(t)
	a := f.startTab(t)
	b := f.startTab(t)

	tok := f.tokenExpiringIn(t, time.Hour)
	a.manager.Login(tok, sessions.RoleOwner)
	require.Eventually(t, func() bool { return b.manager.Current().Token == tok }, time.Second, 5*time.Millisecond)

	a.manager.Logout()

	require.Eventually(t, func() bool { return b.ui.Redirects() == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, b.manager.Current().Empty())
	require.Equal(t, []notice{{auth.NoticeInfo, auth.MsgRemoteLogout}}, b.ui.Notices())
	require.Zero(t, f.hub.Writes(b.repo.Origin()))
	require.Equal(t, 2, f.hub.Writes(a.repo.Origin()))
	require.Zero(t, f.clock.Pending())
}

func TestSync_DuplicateClearIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	b := f.newTab(t)
	b.manager.HandleEvent(storage.Event{Message: sessions.Updated(sessions.Session{
		Token: f.tokenExpiringIn(t, time.Hour),
		Role:  sessions.RoleOwner,
	})})
	require.False(t, b.manager.Current().Empty())

	cleared := storage.Event{Message: sessions.Cleared()}
	b.manager.HandleEvent(cleared)
	b.manager.HandleEvent(cleared)

	require.True(t, b.manager.Current().Empty())
	require.Equal(t, 1, b.ui.Redirects())
	require.Len(t, b.ui.Notices(), 1)
	require.Zero(t, f.clock.Pending())
	require.Zero(t, f.hub.Writes(b.repo.Origin()))
}

func TestSync_DuplicateUpdateIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	b := f.newTab(t)
	ev := storage.Event{Message: sessions.Updated(sessions.Session{
		Token: f.tokenExpiringIn(t, time.Hour),
		Role:  sessions.RoleOwner,
	})}

	b.manager.HandleEvent(ev)
	b.manager.HandleEvent(ev)

	require.Equal(t, 1, f.clock.Pending())
	require.Zero(t, b.ui.Redirects())
}

func TestSync_UnusableRemoteSession(t *testing.T) {
	f := setupTestFixture(t)
	b := f.newTab(t)

	expired := storage.Event{Message: sessions.Updated(sessions.Session{
		Token: f.tokenExpiringIn(t, -time.Second),
		Role:  sessions.RoleOwner,
	})}

	// Nothing to lose, nothing to announce.
	b.manager.HandleEvent(expired)
	require.True(t, b.manager.Current().Empty())
	require.Zero(t, b.ui.Redirects())

	b.manager.HandleEvent(storage.Event{Message: sessions.Updated(sessions.Session{
		Token: f.tokenExpiringIn(t, time.Hour),
		Role:  sessions.RoleOwner,
	})})
	b.manager.HandleEvent(expired)
	require.True(t, b.manager.Current().Empty())
	require.Equal(t, 1, b.ui.Redirects())
	require.Zero(t, f.clock.Pending())
	require.Zero(t, f.hub.Writes(b.repo.Origin()))
}

func TestStart_RestoresStoredSession(t *testing.T) {
	f := setupTestFixture(t)
	tok := f.tokenExpiringIn(t, time.Hour)
	raw, err := sessions.EncodeMessage(sessions.Updated(sessions.Session{Token: tok, Role: sessions.RoleOwner}))
	require.NoError(t, err)
	f.hub.Seed(raw)

	a := f.startTab(t)

	require.Equal(t, tok, a.manager.Current().Token)
	require.Equal(t, 1, f.clock.Pending())
	require.Zero(t, a.ui.Redirects())
	require.True(t, errors.Is(a.manager.Start(context.Background()), errors.ErrAlreadyStarted))
}

func TestStart_ExpiredStoredSessionLogsOut(t *testing.T) {
	f := setupTestFixture(t)
	f.hub.Seed([]byte(`{"state":{"token":"` + f.tokenExpiringIn(t, -time.Hour) + `","role":"OWNER"},"version":0}`))

	a := f.startTab(t)

	require.True(t, a.manager.Current().Empty())
	require.Equal(t, 1, a.ui.Redirects())
	require.Equal(t, sessions.MessageCleared, f.stored(t).Type)
	require.Zero(t, f.clock.Pending())
}

func TestStart_EmptyStorage(t *testing.T) {
	f := setupTestFixture(t)
	a := f.startTab(t)

	require.True(t, a.manager.Current().Empty())
	require.Zero(t, a.ui.Redirects())
	require.Empty(t, f.hub.Value())
}

// loadHookRepo runs afterLoad once the stored value has been read.
type loadHookRepo struct {
	*repofake.FakeSessionRepo
	afterLoad func()
}

func (r *loadHookRepo) Load(ctx context.Context) (sessions.Message, error) {
	m, err := r.FakeSessionRepo.Load(ctx)
	if r.afterLoad != nil {
		r.afterLoad()
	}
	return m, err
}

// flakyWatchRepo fails Watch while fail is set.
type flakyWatchRepo struct {
	*repofake.FakeSessionRepo
	fail bool
}

func (r *flakyWatchRepo) Watch(ctx context.Context) (<-chan storage.Event, error) {
	if r.fail {
		return nil, errors.ErrStorageClosed
	}
	return r.FakeSessionRepo.Watch(ctx)
}

// slowSaveRepo holds every Save until release is closed.
type slowSaveRepo struct {
	*repofake.FakeSessionRepo
	entered chan struct{}
	release chan struct{}
}

func (r *slowSaveRepo) Save(ctx context.Context, m sessions.Message) error {
	r.entered <- struct{}{}
	<-r.release
	return r.FakeSessionRepo.Save(ctx, m)
}

func (f *testFixture) seedSession(t *testing.T, tok string) {
	t.Helper()
	raw, err := sessions.EncodeMessage(sessions.Updated(sessions.Session{Token: tok, Role: sessions.RoleOwner}))
	require.NoError(t, err)
	f.hub.Seed(raw)
}

func TestStart_FollowsLogoutWrittenDuringLoad(t *testing.T) {
	f := setupTestFixture(t)
	f.seedSession(t, f.tokenExpiringIn(t, time.Hour))
	other := f.hub.Tab()

	repo := &loadHookRepo{FakeSessionRepo: f.hub.Tab()}
	repo.afterLoad = func() {
		require.NoError(t, other.Save(context.Background(), sessions.Cleared()))
	}
	u := &ui{}
	m := auth.New(repo, auth.WithClock(f.clock), auth.WithNotifier(u), auth.WithNavigator(u))
	t.Cleanup(m.Close)

	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool { return m.Current().Empty() }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return u.Redirects() == 1 }, time.Second, 5*time.Millisecond)
	require.Zero(t, f.clock.Pending())
	require.Equal(t, sessions.MessageCleared, f.stored(t).Type)
	require.Zero(t, f.hub.Writes(repo.Origin()))
}

func TestStart_CanRetryAfterWatchFails(t *testing.T) {
	f := setupTestFixture(t)
	tok := f.tokenExpiringIn(t, time.Hour)
	f.seedSession(t, tok)

	repo := &flakyWatchRepo{FakeSessionRepo: f.hub.Tab(), fail: true}
	m := auth.New(repo, auth.WithClock(f.clock), auth.WithNotifier(&ui{}))
	t.Cleanup(m.Close)

	require.Error(t, m.Start(context.Background()))
	require.True(t, m.Current().Empty())
	require.Zero(t, f.clock.Pending())

	repo.fail = false
	require.NoError(t, m.Start(context.Background()))
	require.Equal(t, tok, m.Current().Token)
	require.Equal(t, 1, f.clock.Pending())
}

func TestLogin_ReadsDoNotWaitForStorage(t *testing.T) {
	f := setupTestFixture(t)
	tok := f.tokenExpiringIn(t, time.Hour)
	repo := &slowSaveRepo{FakeSessionRepo: f.hub.Tab(), entered: make(chan struct{}, 2), release: make(chan struct{})}
	m := auth.New(repo, auth.WithClock(f.clock), auth.WithNotifier(&ui{}))
	t.Cleanup(m.Close)

	loggedIn := make(chan struct{})
	go func() {
		m.Login(tok, sessions.RoleOwner)
		close(loggedIn)
	}()
	<-repo.entered

	read := make(chan sessions.Session, 1)
	go func() { read <- m.Current() }()
	select {
	case s := <-read:
		require.Equal(t, tok, s.Token)
	case <-time.After(time.Second):
		t.Fatal("Current waited for the storage write")
	}
	got, err := m.Token()
	require.NoError(t, err)
	require.Equal(t, tok, got.AccessToken)

	close(repo.release)
	<-loggedIn
	require.Equal(t, sessions.MessageUpdated, f.stored(t).Type)
}

func TestLogout_WhileLoginWriteIsPending(t *testing.T) {
	f := setupTestFixture(t)
	repo := &slowSaveRepo{FakeSessionRepo: f.hub.Tab(), entered: make(chan struct{}, 2), release: make(chan struct{})}
	m := auth.New(repo, auth.WithClock(f.clock), auth.WithNotifier(&ui{}))
	t.Cleanup(m.Close)

	loggedIn := make(chan struct{})
	go func() {
		m.Login(f.tokenExpiringIn(t, time.Hour), sessions.RoleOwner)
		close(loggedIn)
	}()
	<-repo.entered

	loggedOut := make(chan struct{})
	go func() {
		m.Logout()
		close(loggedOut)
	}()
	require.Eventually(t, func() bool { return m.Current().Empty() }, time.Second, 5*time.Millisecond)

	close(repo.release)
	<-loggedIn
	<-loggedOut
	require.Equal(t, sessions.MessageCleared, f.stored(t).Type)
	require.Equal(t, 2, f.hub.Writes(repo.Origin()))
}

func TestExpiryWarning(t *testing.T) {
	tests := []struct {
		name     string
		lifetime time.Duration
		warnAt   time.Duration
		message  string
	}{
		{name: "five minutes ahead", lifetime: 30 * time.Minute, warnAt: 25 * time.Minute, message: "Your session will end in 5 minutes."},
		{name: "one minute ahead", lifetime: 3 * time.Minute, warnAt: 2 * time.Minute, message: "Your session will end in 1 minute."},
		{name: "too short to warn", lifetime: 30 * time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupTestFixture(t)
			a := f.newTab(t, auth.WithExpiryWarning(true))
			a.manager.Login(f.tokenExpiringIn(t, tc.lifetime), sessions.RoleOwner)

			if tc.message == "" {
				require.Equal(t, 1, f.clock.Pending())
				f.clock.Advance(tc.lifetime)
				require.Equal(t, []notice{{auth.NoticeError, auth.MsgSessionExpired}}, a.ui.Notices())
				return
			}

			require.Equal(t, 2, f.clock.Pending())
			f.clock.Advance(tc.warnAt - time.Second)
			require.Empty(t, a.ui.Notices())
			f.clock.Advance(time.Second)
			require.Equal(t, []notice{{auth.NoticeWarning, tc.message}}, a.ui.Notices())
			require.False(t, a.manager.Current().Empty())
		})
	}
}

func TestExpiryWarning_CancelledByLogout(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t, auth.WithExpiryWarning(true))
	a.manager.Login(f.tokenExpiringIn(t, time.Hour), sessions.RoleOwner)
	a.manager.Logout()

	require.Zero(t, f.clock.Pending())
	f.clock.Advance(2 * time.Hour)
	require.Equal(t, []notice{{auth.NoticeInfo, auth.MsgLoggedOut}}, a.ui.Notices())
}

func TestSubscribe(t *testing.T) {
	f := setupTestFixture(t)
	a := f.newTab(t)

	var lock sync.Mutex
	var seen []sessions.Session
	cancel := a.manager.Subscribe(func(s sessions.Session) {
		lock.Lock()
		defer lock.Unlock()
		seen = append(seen, s)
	})

	tok := f.tokenExpiringIn(t, time.Hour)
	a.manager.Login(tok, sessions.RoleOwner)
	a.manager.Logout()
	cancel()
	a.manager.Login(tok, sessions.RoleOwner)

	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, []sessions.Session{{Token: tok, Role: sessions.RoleOwner}, {}}, seen)
}

func TestMetrics(t *testing.T) {
	f := setupTestFixture(t)
	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	require.NoError(t, err)
	a := f.newTab(t, auth.WithMetrics(rec))

	a.manager.Login(f.tokenExpiringIn(t, time.Second), sessions.RoleOwner)
	f.clock.Advance(time.Second)
	a.manager.Login(f.tokenExpiringIn(t, time.Hour), sessions.RoleOwner)
	a.manager.Logout()

	expected := `
# HELP gigan_session_logouts_total Sessions ended in this tab, by reason.
# TYPE gigan_session_logouts_total counter
gigan_session_logouts_total{reason="expired"} 1
gigan_session_logouts_total{reason="user"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "gigan_session_logouts_total"))
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{d: -time.Second, want: "0:00"},
		{d: 0, want: "0:00"},
		{d: 59 * time.Second, want: "0:59"},
		{d: 61*time.Second + 900*time.Millisecond, want: "1:01"},
		{d: 65 * time.Minute, want: "65:00"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, auth.FormatRemaining(tc.d), tc.d.String())
	}
}

func TestExpiryWarningMessage(t *testing.T) {
	require.Equal(t, "Your session will end in 1 minute.", auth.ExpiryWarning(10*time.Second))
	require.Equal(t, "Your session will end in 2 minutes.", auth.ExpiryWarning(90*time.Second))
	require.Equal(t, "Your session will end in 5 minutes.", auth.ExpiryWarning(5*time.Minute))
}

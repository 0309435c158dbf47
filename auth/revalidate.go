package auth

import (
	"context"

	"github.com/gigan-store/session-client/token"
)

// Revalidate re-reads the current token's expiry and logs out if it has
// passed. Call it whenever the application returns to the foreground: the
// expiry timer may have been held back while the process was in the
// background, and this check does not depend on it.
func (m *Manager) Revalidate() {
	m.lock.Lock()
	if m.session.Empty() || !token.Expired(m.session.Token, m.clock.Now()) {
		m.lock.Unlock()
		return
	}
	eff := m.clearLocked(ReasonExpired, true)
	eff.notifyAndRedirect(ReasonExpired)
	m.lock.Unlock()

	m.logger.Info().Msg("session found expired on return to foreground")
	m.apply(eff)
}

// WatchForeground calls Revalidate for every signal on foreground until ctx is
// done or the channel is closed.
func (m *Manager) WatchForeground(ctx context.Context, foreground <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-foreground:
			if !ok {
				return
			}
			m.Revalidate()
		}
	}
}
